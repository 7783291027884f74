// Package ingest consumes scanner observations and drives the
// create-vs-merge decision for raw findings.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veracity-sec/correlator/api/schemas"
	"github.com/veracity-sec/correlator/internal/correlation"
	"github.com/veracity-sec/correlator/internal/identity"
)

// Options tune the batching behavior of the processor.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	// Trigger, when non-empty, runs raw-finding alert rule evaluation with
	// this trigger label after each observation is applied.
	Trigger string
}

// Processor manages the ingestion and batching of scanner observations.
// Observations sharing a dedup hash with a stored raw finding merge into it;
// everything else creates a new raw finding.
type Processor struct {
	input  <-chan schemas.RawFinding
	engine *correlation.Engine
	store  schemas.FindingStore
	logger *zap.Logger
	opts   Options

	buffer []schemas.RawFinding
	mu     sync.Mutex
	wg     sync.WaitGroup

	flushSignal chan struct{}
	stopSignal  chan struct{}
	stopOnce    sync.Once
}

// NewProcessor initializes an ingest processor.
func NewProcessor(input <-chan schemas.RawFinding, engine *correlation.Engine, store schemas.FindingStore, logger *zap.Logger, opts Options) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		input:       input,
		engine:      engine,
		store:       store,
		logger:      logger.Named("ingest"),
		opts:        opts,
		buffer:      make([]schemas.RawFinding, 0, opts.BatchSize),
		flushSignal: make(chan struct{}, 1),
		stopSignal:  make(chan struct{}),
	}
}

// Start runs the main processing loop until the context is cancelled, Stop
// is called, or the input channel closes.
func (p *Processor) Start(ctx context.Context) {
	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	p.logger.Info("Ingest processor started.",
		zap.Int("batch_size", p.opts.BatchSize),
		zap.Duration("flush_interval", p.opts.FlushInterval))

	for {
		select {
		case obs, ok := <-p.input:
			if !ok {
				p.flush(ctx)
				return
			}
			p.enqueue(obs)

		case <-ticker.C:
			p.flush(ctx)

		case <-p.flushSignal:
			p.flush(ctx)

		case <-ctx.Done():
			p.logger.Warn("Context cancelled. Flushing remaining buffer.")
			p.drain()
			p.flush(context.WithoutCancel(ctx))
			return

		case <-p.stopSignal:
			p.drain()
			p.flush(ctx)
			return
		}
	}
}

// drain reads any remaining observations from the input channel until it is
// empty, without blocking.
func (p *Processor) drain() {
	for {
		select {
		case obs, ok := <-p.input:
			if !ok {
				return
			}
			p.enqueue(obs)
		default:
			return
		}
	}
}

// enqueue buffers an observation and requests a flush once the batch fills.
func (p *Processor) enqueue(obs schemas.RawFinding) {
	p.mu.Lock()
	p.buffer = append(p.buffer, obs)
	full := len(p.buffer) >= p.opts.BatchSize
	p.mu.Unlock()

	if full {
		select {
		case p.flushSignal <- struct{}{}:
		default:
			// A flush is already pending.
		}
	}
}

// flush applies the buffered observations through the correlation engine.
func (p *Processor) flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}
	batch := make([]schemas.RawFinding, len(p.buffer))
	copy(batch, p.buffer)
	p.buffer = p.buffer[:0]
	p.mu.Unlock()

	p.logger.Debug("Flushing observations.", zap.Int("count", len(batch)))
	for i := range batch {
		if err := p.apply(ctx, &batch[i]); err != nil {
			p.logger.Error("Failed to apply observation.",
				zap.String("asset", batch[i].AssetName),
				zap.String("title", batch[i].Title),
				zap.Error(err))
		}
	}
}

// apply performs the create-vs-merge decision for a single observation and
// optionally evaluates alert rules on the result.
func (p *Processor) apply(ctx context.Context, obs *schemas.RawFinding) error {
	hash := identity.ComputeHash(obs.AssetName, obs.Title)
	existing, err := p.store.FilterRawFindings(ctx, schemas.Predicate{
		schemas.Eq(schemas.FieldHash, hash),
	})
	if err != nil {
		return err
	}

	var applied *schemas.RawFinding
	if len(existing) > 0 {
		merged := merge(existing[0], *obs)
		if err := p.engine.UpdateRawFinding(ctx, &merged); err != nil {
			return err
		}
		applied = &merged
	} else {
		if err := p.engine.CreateRawFinding(ctx, obs); err != nil {
			return err
		}
		applied = obs
	}

	if p.opts.Trigger == "" {
		return nil
	}
	matches, err := p.engine.EvaluateRawAlertRules(ctx, applied, p.opts.Trigger)
	if err != nil {
		// Invalid rules are a configuration fault; per-rule store failures
		// were already isolated and only need reporting.
		if errors.Is(err, schemas.ErrInvalidRule) {
			return err
		}
		p.logger.Warn("Rule evaluation finished with failures.",
			zap.String("finding_id", applied.ID), zap.Error(err))
	}
	if matches > 0 {
		p.logger.Info("Alert rules matched.",
			zap.String("finding_id", applied.ID), zap.Int("matches", matches))
	}
	return nil
}

// merge folds a fresh observation into the stored raw finding for the same
// (asset, title) pair, preserving identity and creation metadata.
func merge(existing, obs schemas.RawFinding) schemas.RawFinding {
	merged := obs
	merged.ID = existing.ID
	merged.TaskID = existing.TaskID
	merged.CreatedAt = existing.CreatedAt
	if merged.Status == "" {
		merged.Status = existing.Status
	}
	if merged.FoundAt == nil {
		merged.FoundAt = existing.FoundAt
	}
	if merged.Comments == "" {
		merged.Comments = existing.Comments
	}
	return merged
}

// Stop gracefully shuts down the processor, draining the channel and
// flushing the remaining buffer. It is idempotent.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopSignal)
	})
	p.wg.Wait()
	p.logger.Info("Ingest processor stopped.")
}
