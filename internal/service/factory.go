// Package service assembles the engine from configuration: store, audit
// sink, rule engine, cascade coordinator and correlation engine.
package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/veracity-sec/correlator/api/schemas"
	"github.com/veracity-sec/correlator/internal/assets"
	"github.com/veracity-sec/correlator/internal/cascade"
	"github.com/veracity-sec/correlator/internal/config"
	"github.com/veracity-sec/correlator/internal/correlation"
	"github.com/veracity-sec/correlator/internal/events"
	"github.com/veracity-sec/correlator/internal/rules"
	"github.com/veracity-sec/correlator/internal/store"
)

// Components is the fully wired set of engine collaborators.
type Components struct {
	Store      schemas.FindingStore
	Events     schemas.EventSink
	Assets     *assets.StaticDirectory
	RuleEngine *rules.Engine
	Correlator *correlation.Engine

	pool *pgxpool.Pool
}

// Close releases pooled resources. Safe to call on memory-backed builds.
func (c *Components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// Build wires the components from configuration. A configured database URL
// selects the PostgreSQL store and audit sink; otherwise everything runs
// in memory.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("cannot build components with nil config or logger")
	}

	c := &Components{
		Assets: assets.NewStaticDirectory(logger),
	}

	if cfg.Database.URL != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database url: %w", err)
		}
		if cfg.Database.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Database.MaxConns
		}
		if cfg.Database.ConnectTimeout > 0 {
			poolCfg.ConnConfig.ConnectTimeout = cfg.Database.ConnectTimeout
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		c.pool = pool

		pgStore, err := store.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		c.Store = pgStore
		c.Events = events.NewPostgresSink(pool, logger)
	} else {
		c.Store = store.NewMemoryStore(logger)
		c.Events = events.NewZapSink(logger)
	}

	provider, err := rules.NewStaticProvider(cfg.SchemaRules())
	if err != nil {
		c.Close()
		return nil, err
	}
	notifier := rules.NewLogNotifier(logger, cfg.Engine.NotifyRatePerSecond, cfg.Engine.NotifyBurst)

	ruleEngine, err := rules.NewEngine(c.Store, provider, notifier, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	ruleEngine.SetLookupConcurrency(cfg.Engine.RuleLookupConcurrency)
	c.RuleEngine = ruleEngine

	coordinator, err := cascade.NewCoordinator(c.Assets, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	correlator, err := correlation.New(c.Store, c.Events, coordinator, ruleEngine, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Correlator = correlator

	return c, nil
}
