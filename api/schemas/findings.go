package schemas

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// -- Finding Schemas --

// Severity represents the severity label of a finding. The values are
// lowercase to align with database ENUMs and scanner output.
type Severity string

// Constants defining the standard severity labels for findings.
const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status represents the triage lifecycle state of a finding. Transitions are
// free-form: no state machine is enforced by the engine.
type Status string

// Constants for the known triage states.
const (
	StatusNew           Status = "new"
	StatusAck           Status = "ack"
	StatusMitigated     Status = "mitigated"
	StatusConfirmed     Status = "confirmed"
	StatusPatched       Status = "patched"
	StatusClosed        Status = "closed"
	StatusFalsePositive Status = "false-positive"
)

// DefaultComments is the placeholder stored when a finding carries no
// operator comments.
const DefaultComments = "n/a"

// RawFinding is an unprocessed, scanner-reported observation. It maps
// directly to the `raw_findings` table.
//
// The dedup hash is a deterministic digest of (AssetName, Title) and is
// recomputed on every save. SeverityNum is fully determined by Severity via
// the rank table in the severity package.
type RawFinding struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`   // Reference to the owning asset.
	AssetName string    `json:"asset_name"` // Denormalized snapshot of the asset's display value.
	TaskID    uuid.UUID `json:"task_id"`
	ScanID    string    `json:"scan_id"`
	OwnerID   string    `json:"owner_id"`

	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Hash       string   `json:"hash"`
	Confidence string   `json:"confidence"`
	Severity   Severity `json:"severity"`
	// SeverityNum is the numeric rank derived from Severity. Unrecognized
	// labels (and "critical") rank 0, below "info".
	SeverityNum int      `json:"severity_num"`
	ScopeIDs    []string `json:"scope_ids,omitempty"` // Engine policy scope references.

	Description string `json:"description"`
	Solution    string `json:"solution,omitempty"`

	// Opaque structured payloads carried through from the scanner, stored
	// as JSONB in the database.
	RawData  json.RawMessage `json:"raw_data,omitempty"`
	RiskInfo json.RawMessage `json:"risk_info,omitempty"`
	VulnRefs json.RawMessage `json:"vuln_refs,omitempty"`
	Links    json.RawMessage `json:"links,omitempty"`
	Tags     json.RawMessage `json:"tags,omitempty"`

	Status     Status     `json:"status"`
	EngineType string     `json:"engine_type"`
	FoundAt    *time.Time `json:"found_at,omitempty"`
	CheckedAt  *time.Time `json:"checked_at,omitempty"`
	Comments   string     `json:"comments"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Summary returns the audit-log identity string for a raw finding.
func (f *RawFinding) Summary() string {
	return fmt.Sprintf("%s/%s/%s", f.ID, f.AssetName, f.Title)
}

// Risk returns the (severity, confidence) pair used by risk reporting.
func (f *RawFinding) Risk() (Severity, string) {
	return f.Severity, f.Confidence
}

// Finding is a curated, triage-tracked record, optionally derived from
// exactly one RawFinding. It maps directly to the `findings` table.
//
// RawFindingID may become nil after the source raw finding is deleted; the
// curated record outlives its origin.
type Finding struct {
	RawFindingID *string   `json:"raw_finding_id,omitempty"`
	ID           string    `json:"id"`
	AssetID      string    `json:"asset_id"`
	AssetName    string    `json:"asset_name"`
	TaskID       uuid.UUID `json:"task_id"`
	ScanID       string    `json:"scan_id,omitempty"`
	OwnerID      string    `json:"owner_id"`

	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Hash        string   `json:"hash"`
	Confidence  string   `json:"confidence"`
	Severity    Severity `json:"severity"`
	SeverityNum int      `json:"severity_num"`
	ScopeIDs    []string `json:"scope_ids,omitempty"`

	Description string `json:"description"`
	Solution    string `json:"solution,omitempty"`

	RawData  json.RawMessage `json:"raw_data,omitempty"`
	RiskInfo json.RawMessage `json:"risk_info,omitempty"`
	VulnRefs json.RawMessage `json:"vuln_refs,omitempty"`
	Links    json.RawMessage `json:"links,omitempty"`
	Tags     json.RawMessage `json:"tags,omitempty"`

	Status     Status    `json:"status"`
	EngineType string    `json:"engine_type"`
	FoundAt    time.Time `json:"found_at"`
	CheckedAt  time.Time `json:"checked_at"`
	Comments   string    `json:"comments"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Summary returns the audit-log identity string for a curated finding.
func (f *Finding) Summary() string {
	return fmt.Sprintf("%s/%s", f.ID, f.Title)
}

// Risk returns the (severity, confidence) pair used by risk reporting.
func (f *Finding) Risk() (Severity, string) {
	return f.Severity, f.Confidence
}

// ApplyDefaults fills the curated-finding defaults for fields the caller
// left unset: title "title", status "new", severity "info", comments "n/a",
// and found/checked timestamps at creation time.
func (f *Finding) ApplyDefaults(now time.Time) {
	if f.Title == "" {
		f.Title = "title"
	}
	if f.Status == "" {
		f.Status = StatusNew
	}
	if f.Severity == "" {
		f.Severity = SeverityInfo
	}
	if f.Comments == "" {
		f.Comments = DefaultComments
	}
	if f.FoundAt.IsZero() {
		f.FoundAt = now
	}
	if f.CheckedAt.IsZero() {
		f.CheckedAt = now
	}
}

// ApplyDefaults fills the raw-finding defaults: severity "info" and
// comments "n/a". Raw findings keep nil discovery timestamps unless the
// scanner reported them.
func (f *RawFinding) ApplyDefaults() {
	if f.Severity == "" {
		f.Severity = SeverityInfo
	}
	if f.Comments == "" {
		f.Comments = DefaultComments
	}
}
