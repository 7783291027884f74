package cascade

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-sec/correlator/api/schemas"
)

// fakeDirectory counts invocations and simulates dangling references.
type fakeDirectory struct {
	known      map[string]schemas.AssetRef
	resolves   int
	recomputes int
}

func (d *fakeDirectory) Resolve(ctx context.Context, assetID string) (schemas.AssetRef, error) {
	d.resolves++
	ref, ok := d.known[assetID]
	if !ok {
		return schemas.AssetRef{}, fmt.Errorf("asset %q: %w", assetID, schemas.ErrNotFound)
	}
	return ref, nil
}

func (d *fakeDirectory) RecomputeRiskGrade(ctx context.Context, assetID string) error {
	d.recomputes++
	return nil
}

func TestOnFindingChanged(t *testing.T) {
	ctx := context.Background()
	finding := &schemas.Finding{ID: "f-1", AssetID: "a-1", AssetName: "host1"}

	t.Run("update recomputes the owning asset", func(t *testing.T) {
		dir := &fakeDirectory{known: map[string]schemas.AssetRef{"a-1": {ID: "a-1", Value: "host1"}}}
		c, err := NewCoordinator(dir, nil)
		require.NoError(t, err)

		require.NoError(t, c.OnFindingChanged(ctx, finding, ChangeUpdate))
		assert.Equal(t, 1, dir.recomputes)
		// Updates use the finding's stored reference directly.
		assert.Zero(t, dir.resolves)
	})

	t.Run("delete resolves the asset before recomputing", func(t *testing.T) {
		dir := &fakeDirectory{known: map[string]schemas.AssetRef{"a-1": {ID: "a-1", Value: "host1"}}}
		c, err := NewCoordinator(dir, nil)
		require.NoError(t, err)

		require.NoError(t, c.OnFindingChanged(ctx, finding, ChangeDelete))
		assert.Equal(t, 1, dir.resolves)
		assert.Equal(t, 1, dir.recomputes)
	})

	t.Run("dangling asset reference is a consistency fault", func(t *testing.T) {
		dir := &fakeDirectory{known: map[string]schemas.AssetRef{}}
		c, err := NewCoordinator(dir, nil)
		require.NoError(t, err)

		err = c.OnFindingChanged(ctx, finding, ChangeDelete)
		require.Error(t, err)
		assert.ErrorIs(t, err, schemas.ErrNotFound)
		assert.Zero(t, dir.recomputes)
	})

	t.Run("unsupported change kind", func(t *testing.T) {
		dir := &fakeDirectory{known: map[string]schemas.AssetRef{}}
		c, err := NewCoordinator(dir, nil)
		require.NoError(t, err)

		assert.Error(t, c.OnFindingChanged(ctx, finding, ChangeKind("create")))
	})

	t.Run("recomputation failures propagate", func(t *testing.T) {
		c, err := NewCoordinator(&failingDirectory{}, nil)
		require.NoError(t, err)

		err = c.OnFindingChanged(ctx, finding, ChangeUpdate)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "risk grade recomputation")
	})
}

type failingDirectory struct{}

func (d *failingDirectory) Resolve(ctx context.Context, assetID string) (schemas.AssetRef, error) {
	return schemas.AssetRef{ID: assetID}, nil
}

func (d *failingDirectory) RecomputeRiskGrade(ctx context.Context, assetID string) error {
	return errors.New("inventory unavailable")
}

func TestNewCoordinator(t *testing.T) {
	_, err := NewCoordinator(nil, nil)
	assert.Error(t, err)
}
