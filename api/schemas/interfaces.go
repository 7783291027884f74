package schemas

import (
	"context"
	"errors"
)

// Sentinel errors shared by the engine and its collaborators.
var (
	// ErrNotFound reports a dangling or missing entity reference. Store
	// implementations return it (possibly wrapped) from lookups that match
	// nothing, and the risk cascade surfaces it as a consistency fault.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRule reports a malformed alerting rule: an empty condition
	// or a scope attribute that does not resolve to a queryable finding
	// attribute. Malformed rules are a configuration fault and are never
	// silently skipped.
	ErrInvalidRule = errors.New("invalid rule")
)

// FindingStore persists raw and curated findings. Implementations must be
// safe for concurrent use; the engine holds no state between invocations.
type FindingStore interface {
	GetRawFinding(ctx context.Context, id string) (RawFinding, error)
	GetFinding(ctx context.Context, id string) (Finding, error)

	// FilterRawFindings and FilterFindings return every entity matching
	// all clauses of the predicate.
	FilterRawFindings(ctx context.Context, pred Predicate) ([]RawFinding, error)
	FilterFindings(ctx context.Context, pred Predicate) ([]Finding, error)

	CreateRawFinding(ctx context.Context, f *RawFinding) error
	SaveRawFinding(ctx context.Context, f *RawFinding) error
	DeleteRawFinding(ctx context.Context, id string) error

	CreateFinding(ctx context.Context, f *Finding) error
	SaveFinding(ctx context.Context, f *Finding) error
	DeleteFinding(ctx context.Context, id string) error
}

// AssetRef is the resolved view of an asset, exposing at least its display
// value (hostname, URL, CIDR, ...).
type AssetRef struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// AssetDirectory is the asset-inventory collaborator. The risk-grade
// algorithm itself is external; this engine only invokes it. Recomputation
// must be idempotent and last-write-wins safe, since concurrent finding
// updates may trigger overlapping recomputations.
type AssetDirectory interface {
	Resolve(ctx context.Context, assetID string) (AssetRef, error)
	RecomputeRiskGrade(ctx context.Context, assetID string) error
}

// EventSink receives audit events for finding lifecycle transitions.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}

// RuleProvider enumerates the configured alerting rules.
type RuleProvider interface {
	Rules(ctx context.Context) ([]Rule, error)
}

// Notifier dispatches a notification for a matched rule. Channel
// implementations (email, webhook, ...) live outside this engine.
type Notifier interface {
	Notify(ctx context.Context, rule Rule, n Notification) error
}
