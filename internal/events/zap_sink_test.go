package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/veracity-sec/correlator/api/schemas"
)

func TestZapSinkEmit(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewZapSink(zap.New(core))

	cases := []struct {
		severity schemas.EventSeverity
		want     zapcore.Level
	}{
		{schemas.EventDebug, zapcore.DebugLevel},
		{schemas.EventInfo, zapcore.InfoLevel},
		{schemas.EventWarn, zapcore.WarnLevel},
		{schemas.EventError, zapcore.ErrorLevel},
		{schemas.EventSeverity("bogus"), zapcore.InfoLevel},
	}

	for _, tc := range cases {
		ev := schemas.Event{
			ID:       "ev-1",
			Message:  "[Finding] New finding created",
			Kind:     schemas.EventCreate,
			Severity: tc.severity,
		}
		require.NoError(t, sink.Emit(context.Background(), ev))

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		entry := entries[0]
		assert.Equal(t, tc.want, entry.Level, "severity %q", tc.severity)
		assert.Equal(t, ev.Message, entry.Message)

		fields := entry.ContextMap()
		assert.Equal(t, "ev-1", fields["event_id"])
		assert.Equal(t, string(schemas.EventCreate), fields["kind"])
	}
}
