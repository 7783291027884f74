package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/veracity-sec/correlator/api/schemas"
)

// EventExecer is the slice of pgxpool.Pool the Postgres sink needs, kept
// narrow so tests can mock it.
type EventExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink persists audit events to the `events` table so lifecycle
// history survives restarts.
type PostgresSink struct {
	pool EventExecer
	log  *zap.Logger
}

// Ensures PostgresSink implements the EventSink interface at compile time.
var _ schemas.EventSink = (*PostgresSink)(nil)

// NewPostgresSink creates a database-backed audit sink.
func NewPostgresSink(pool EventExecer, logger *zap.Logger) *PostgresSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSink{
		pool: pool,
		log:  logger.Named("audit_store"),
	}
}

// Emit inserts the event row.
func (s *PostgresSink) Emit(ctx context.Context, ev schemas.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, message, kind, severity, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`, ev.ID, ev.Message, string(ev.Kind), string(ev.Severity), ev.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}
