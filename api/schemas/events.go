package schemas

import "time"

// -- Audit Event Schemas --

// EventKind classifies the lifecycle transition an audit event records.
type EventKind string

// Lifecycle transition kinds.
const (
	EventCreate EventKind = "CREATE"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// EventSeverity is the audit-log level of an event. Lifecycle events emitted
// by the correlation engine are DEBUG.
type EventSeverity string

// Audit event severities.
const (
	EventDebug EventSeverity = "DEBUG"
	EventInfo  EventSeverity = "INFO"
	EventWarn  EventSeverity = "WARN"
	EventError EventSeverity = "ERROR"
)

// Event is a single audit-log record describing a finding lifecycle
// transition.
type Event struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Kind      EventKind     `json:"kind"`
	Severity  EventSeverity `json:"severity"`
	CreatedAt time.Time     `json:"created_at"`
}
