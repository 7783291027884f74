// Package events provides audit-event sinks for finding lifecycle
// transitions.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/veracity-sec/correlator/api/schemas"
)

// ZapSink writes audit events to the structured log. It is the default sink
// when no persistent audit store is configured.
type ZapSink struct {
	log *zap.Logger
}

// Ensures ZapSink implements the EventSink interface at compile time.
var _ schemas.EventSink = (*ZapSink)(nil)

// NewZapSink creates a log-backed audit sink.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{log: logger.Named("audit")}
}

// Emit logs the event at the level matching its severity.
func (s *ZapSink) Emit(ctx context.Context, ev schemas.Event) error {
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("kind", string(ev.Kind)),
	}
	switch ev.Severity {
	case schemas.EventDebug:
		s.log.Debug(ev.Message, fields...)
	case schemas.EventWarn:
		s.log.Warn(ev.Message, fields...)
	case schemas.EventError:
		s.log.Error(ev.Message, fields...)
	default:
		s.log.Info(ev.Message, fields...)
	}
	return nil
}
