package rules

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veracity-sec/correlator/api/schemas"
)

// LogNotifier dispatches notifications to the structured log. It is the
// default sink when no external channel is wired; a rate limiter smooths
// alert storms from noisy re-scans.
type LogNotifier struct {
	log     *zap.Logger
	limiter *rate.Limiter
}

// Ensures LogNotifier implements the Notifier interface at compile time.
var _ schemas.Notifier = (*LogNotifier)(nil)

// NewLogNotifier builds a log-backed notifier emitting at most perSecond
// notifications per second with the given burst.
func NewLogNotifier(logger *zap.Logger, perSecond float64, burst int) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &LogNotifier{
		log:     logger.Named("notifier"),
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Notify logs the notification once the rate limiter admits it.
func (n *LogNotifier) Notify(ctx context.Context, rule schemas.Rule, note schemas.Notification) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification for rule %q cancelled: %w", rule.Name, err)
	}
	n.log.Info("Alert rule matched",
		zap.String("rule", rule.Name),
		zap.String("message", note.Message),
		zap.String("asset_id", note.Asset.ID),
		zap.String("asset", note.Asset.Value),
		zap.String("description", note.Description),
	)
	return nil
}
