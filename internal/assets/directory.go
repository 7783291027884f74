// Package assets provides a minimal asset-directory implementation for
// deployments that run the correlator without a full asset inventory. The
// inventory's own risk-grade algorithm lives outside this module; this
// directory only satisfies the invocation contract.
package assets

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/veracity-sec/correlator/api/schemas"
)

// StaticDirectory is a concurrency-safe in-memory asset registry.
type StaticDirectory struct {
	mu     sync.RWMutex
	assets map[string]schemas.AssetRef
	log    *zap.Logger
}

// Ensures StaticDirectory implements the AssetDirectory interface at compile time.
var _ schemas.AssetDirectory = (*StaticDirectory)(nil)

// NewStaticDirectory creates an empty directory.
func NewStaticDirectory(logger *zap.Logger) *StaticDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaticDirectory{
		assets: make(map[string]schemas.AssetRef),
		log:    logger.Named("asset_directory"),
	}
}

// Register adds or refreshes an asset reference.
func (d *StaticDirectory) Register(ref schemas.AssetRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets[ref.ID] = ref
}

// Resolve looks up an asset by ID.
func (d *StaticDirectory) Resolve(ctx context.Context, assetID string) (schemas.AssetRef, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ref, ok := d.assets[assetID]
	if !ok {
		return schemas.AssetRef{}, fmt.Errorf("asset %q: %w", assetID, schemas.ErrNotFound)
	}
	return ref, nil
}

// RecomputeRiskGrade acknowledges a risk-grade recomputation request. The
// scoring algorithm is owned by the external inventory; here the request is
// recorded so operators can see the cascade fire. Recomputation is
// idempotent and safe under concurrent overlapping invocations.
func (d *StaticDirectory) RecomputeRiskGrade(ctx context.Context, assetID string) error {
	if _, err := d.Resolve(ctx, assetID); err != nil {
		return err
	}
	d.log.Debug("Risk grade recomputation requested", zap.String("asset_id", assetID))
	return nil
}
