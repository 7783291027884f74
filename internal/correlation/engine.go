// Package correlation orchestrates finding lifecycle transitions: identity
// hashing, severity ranking, persistence, audit emission and the conditional
// risk cascade. Side effects that the legacy system fired implicitly on save
// are owned and sequenced here so each is visible and testable in isolation.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-sec/correlator/api/schemas"
	"github.com/veracity-sec/correlator/internal/cascade"
	"github.com/veracity-sec/correlator/internal/identity"
	"github.com/veracity-sec/correlator/internal/rules"
	"github.com/veracity-sec/correlator/internal/severity"
)

// Engine wires ingestion, promotion and lifecycle transitions of findings.
// It is request-scoped and stateless between invocations; all blocking I/O
// is delegated to the injected collaborators, which must be safe for
// concurrent use.
type Engine struct {
	store   schemas.FindingStore
	events  schemas.EventSink
	cascade *cascade.Coordinator
	rules   *rules.Engine
	log     *zap.Logger

	now func() time.Time
}

// New creates a correlation engine with its dependencies injected.
func New(store schemas.FindingStore, events schemas.EventSink, coordinator *cascade.Coordinator, ruleEngine *rules.Engine, logger *zap.Logger) (*Engine, error) {
	if store == nil || events == nil || coordinator == nil || ruleEngine == nil {
		return nil, errors.New("cannot initialize correlation engine with nil dependencies")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		events:  events,
		cascade: coordinator,
		rules:   ruleEngine,
		log:     logger.Named("correlation"),
		now:     time.Now,
	}, nil
}

// CreateRawFinding ingests a scanner observation: assigns identifiers,
// recomputes the dedup hash and severity rank, persists and emits a CREATE
// audit event. Raw findings never trigger the risk cascade.
func (e *Engine) CreateRawFinding(ctx context.Context, f *schemas.RawFinding) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.TaskID == uuid.Nil {
		f.TaskID = uuid.New()
	}
	f.ApplyDefaults()
	e.stampRaw(f)
	now := e.now()
	f.CreatedAt = now
	f.UpdatedAt = now

	if err := e.store.CreateRawFinding(ctx, f); err != nil {
		return fmt.Errorf("create raw finding: %w", err)
	}
	return e.emit(ctx, schemas.EventCreate,
		fmt.Sprintf("[RawFinding] New raw finding created (id=%s): %s", f.ID, f.Summary()))
}

// UpdateRawFinding persists a mutated raw finding. The dedup hash and rank
// are recomputed and the updated-at timestamp refreshed; created-at is never
// touched after creation.
func (e *Engine) UpdateRawFinding(ctx context.Context, f *schemas.RawFinding) error {
	e.stampRaw(f)
	f.UpdatedAt = e.now()

	if err := e.store.SaveRawFinding(ctx, f); err != nil {
		return fmt.Errorf("update raw finding: %w", err)
	}
	return e.emit(ctx, schemas.EventUpdate,
		fmt.Sprintf("[RawFinding] Raw finding '%s' modified (id=%s)", f.Summary(), f.ID))
}

// DeleteRawFinding removes a raw finding. Deletion is operator-initiated and
// triggers audit logging only; curated findings derived from it are detached,
// not deleted, and no risk cascade runs.
func (e *Engine) DeleteRawFinding(ctx context.Context, f *schemas.RawFinding) error {
	if err := e.store.DeleteRawFinding(ctx, f.ID); err != nil {
		return fmt.Errorf("delete raw finding: %w", err)
	}
	return e.emit(ctx, schemas.EventDelete,
		fmt.Sprintf("[RawFinding] Raw finding '%s' deleted (id=%s)", f.Summary(), f.ID))
}

// CreateFinding promotes a triaged observation into a curated finding.
// Creation does not recompute asset risk; only transitions that change an
// already-visible finding's contribution do.
func (e *Engine) CreateFinding(ctx context.Context, f *schemas.Finding) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.TaskID == uuid.Nil {
		f.TaskID = uuid.New()
	}
	now := e.now()
	f.ApplyDefaults(now)
	e.stamp(f)
	f.CreatedAt = now
	f.UpdatedAt = now

	if err := e.store.CreateFinding(ctx, f); err != nil {
		return fmt.Errorf("create finding: %w", err)
	}
	return e.emit(ctx, schemas.EventCreate,
		fmt.Sprintf("[Finding] New finding created (id=%s): %s", f.ID, f.Summary()))
}

// UpdateFinding persists a retriaged or re-confirmed finding, then cascades
// into the owning asset's risk grade. The store write is committed even when
// the cascade or the audit emission fails; those failures are reported
// alongside, never rolled back.
func (e *Engine) UpdateFinding(ctx context.Context, f *schemas.Finding) error {
	e.stamp(f)
	f.UpdatedAt = e.now()

	if err := e.store.SaveFinding(ctx, f); err != nil {
		return fmt.Errorf("update finding: %w", err)
	}

	cascadeErr := e.cascade.OnFindingChanged(ctx, f, cascade.ChangeUpdate)
	emitErr := e.emit(ctx, schemas.EventUpdate,
		fmt.Sprintf("[Finding] Finding '%s' modified (id=%s)", f.Summary(), f.ID))
	return errors.Join(cascadeErr, emitErr)
}

// DeleteFinding withdraws a curated finding, then cascades into the owning
// asset's risk grade. The asset is resolved from the finding's stored
// reference since the row is already gone; an unresolvable reference is a
// consistency fault surfaced to the caller.
func (e *Engine) DeleteFinding(ctx context.Context, f *schemas.Finding) error {
	if err := e.store.DeleteFinding(ctx, f.ID); err != nil {
		return fmt.Errorf("delete finding: %w", err)
	}

	cascadeErr := e.cascade.OnFindingChanged(ctx, f, cascade.ChangeDelete)
	emitErr := e.emit(ctx, schemas.EventDelete,
		fmt.Sprintf("[Finding] Finding '%s' deleted (id=%s)", f.Summary(), f.ID))
	return errors.Join(cascadeErr, emitErr)
}

// EvaluateAlertRules runs rule evaluation for a curated finding. It is an
// explicit operation: callers decide when to run it, it is never auto-fired
// on save.
func (e *Engine) EvaluateAlertRules(ctx context.Context, f *schemas.Finding, trigger string) (int, error) {
	return e.rules.Evaluate(ctx, f, trigger)
}

// EvaluateRawAlertRules runs rule evaluation for a raw finding.
func (e *Engine) EvaluateRawAlertRules(ctx context.Context, f *schemas.RawFinding, trigger string) (int, error) {
	return e.rules.EvaluateRaw(ctx, f, trigger)
}

// stampRaw recomputes the derived fields every save must refresh.
func (e *Engine) stampRaw(f *schemas.RawFinding) {
	f.Hash = identity.ComputeHash(f.AssetName, f.Title)
	f.SeverityNum = severity.Rank(f.Severity)
}

func (e *Engine) stamp(f *schemas.Finding) {
	f.Hash = identity.ComputeHash(f.AssetName, f.Title)
	f.SeverityNum = severity.Rank(f.Severity)
}

func (e *Engine) emit(ctx context.Context, kind schemas.EventKind, message string) error {
	ev := schemas.Event{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		Severity:  schemas.EventDebug,
		CreatedAt: e.now(),
	}
	if err := e.events.Emit(ctx, ev); err != nil {
		return fmt.Errorf("emit %s event: %w", kind, err)
	}
	return nil
}
