// Package cascade propagates finding lifecycle changes into asset-level risk
// recomputation.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/veracity-sec/correlator/api/schemas"
)

// ChangeKind names the finding transition that triggered the cascade.
type ChangeKind string

// Only updates and deletes cascade. Creation of a curated finding does not
// recompute asset risk, and raw findings never cascade at all; both
// asymmetries are load-bearing for existing deployments.
const (
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Coordinator recomputes an owning asset's aggregate risk grade when a
// curated finding changes. The risk-grade algorithm itself belongs to the
// asset inventory; the coordinator only drives its invocation contract.
type Coordinator struct {
	assets schemas.AssetDirectory
	log    *zap.Logger
}

// NewCoordinator wires a cascade coordinator. The asset directory is required.
func NewCoordinator(assets schemas.AssetDirectory, logger *zap.Logger) (*Coordinator, error) {
	if assets == nil {
		return nil, errors.New("cannot initialize cascade coordinator with nil asset directory")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		assets: assets,
		log:    logger.Named("risk_cascade"),
	}, nil
}

// OnFindingChanged recomputes the owning asset's risk grade for an update or
// delete of a curated finding.
//
// For deletes the asset is resolved by the finding's stored reference first:
// the finding object may already be detached from the store. A reference
// that no longer resolves is a consistency fault and is reported, never
// swallowed.
func (c *Coordinator) OnFindingChanged(ctx context.Context, f *schemas.Finding, kind ChangeKind) error {
	switch kind {
	case ChangeUpdate:
		if err := c.assets.RecomputeRiskGrade(ctx, f.AssetID); err != nil {
			return fmt.Errorf("risk grade recomputation for asset %q: %w", f.AssetID, err)
		}
	case ChangeDelete:
		ref, err := c.assets.Resolve(ctx, f.AssetID)
		if err != nil {
			return fmt.Errorf("asset %q unresolvable during finding delete cascade: %w", f.AssetID, err)
		}
		if err := c.assets.RecomputeRiskGrade(ctx, ref.ID); err != nil {
			return fmt.Errorf("risk grade recomputation for asset %q: %w", ref.ID, err)
		}
	default:
		return fmt.Errorf("unsupported change kind %q", kind)
	}

	c.log.Debug("Asset risk grade recomputed",
		zap.String("asset_id", f.AssetID),
		zap.String("finding_id", f.ID),
		zap.String("change", string(kind)),
	)
	return nil
}
