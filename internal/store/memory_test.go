package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-sec/correlator/api/schemas"
)

func TestMemoryStoreRawFindings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	f := schemas.RawFinding{
		ID:        "r-1",
		AssetID:   "a-1",
		AssetName: "host1",
		Title:     "Open Port",
		Hash:      "abc",
		Severity:  schemas.SeverityHigh,
		Status:    schemas.StatusNew,
	}
	require.NoError(t, s.CreateRawFinding(ctx, &f))

	t.Run("duplicate create is rejected", func(t *testing.T) {
		assert.Error(t, s.CreateRawFinding(ctx, &f))
	})

	t.Run("get returns a copy of the stored entity", func(t *testing.T) {
		got, err := s.GetRawFinding(ctx, "r-1")
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(f, got))
	})

	t.Run("filter matches all clauses", func(t *testing.T) {
		got, err := s.FilterRawFindings(ctx, schemas.Predicate{
			schemas.Eq(schemas.FieldHash, "abc"),
			schemas.Eq(schemas.FieldSeverity, "high"),
		})
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = s.FilterRawFindings(ctx, schemas.Predicate{
			schemas.Eq(schemas.FieldHash, "abc"),
			schemas.Eq(schemas.FieldSeverity, "low"),
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("save requires an existing entity", func(t *testing.T) {
		missing := schemas.RawFinding{ID: "nope"}
		assert.ErrorIs(t, s.SaveRawFinding(ctx, &missing), schemas.ErrNotFound)

		f.Severity = schemas.SeverityLow
		require.NoError(t, s.SaveRawFinding(ctx, &f))
		got, err := s.GetRawFinding(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, schemas.SeverityLow, got.Severity)
	})

	t.Run("delete detaches derived findings", func(t *testing.T) {
		rawID := "r-1"
		derived := schemas.Finding{ID: "f-1", RawFindingID: &rawID, AssetName: "host1"}
		require.NoError(t, s.CreateFinding(ctx, &derived))

		require.NoError(t, s.DeleteRawFinding(ctx, rawID))
		assert.ErrorIs(t, s.DeleteRawFinding(ctx, rawID), schemas.ErrNotFound)

		got, err := s.GetFinding(ctx, "f-1")
		require.NoError(t, err)
		assert.Nil(t, got.RawFindingID)
	})
}

func TestMemoryStoreFindings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	f := schemas.Finding{ID: "f-1", AssetName: "host1", Title: "t", Status: schemas.StatusNew}
	require.NoError(t, s.CreateFinding(ctx, &f))

	t.Run("lookup by id clause", func(t *testing.T) {
		got, err := s.FilterFindings(ctx, schemas.Predicate{
			schemas.Eq(schemas.FieldID, "f-1"),
			schemas.Eq(schemas.FieldStatus, "new"),
		})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("missing entities report not found", func(t *testing.T) {
		_, err := s.GetFinding(ctx, "missing")
		assert.ErrorIs(t, err, schemas.ErrNotFound)
		assert.ErrorIs(t, s.DeleteFinding(ctx, "missing"), schemas.ErrNotFound)
	})

	t.Run("delete removes the entity", func(t *testing.T) {
		require.NoError(t, s.DeleteFinding(ctx, "f-1"))
		_, err := s.GetFinding(ctx, "f-1")
		assert.ErrorIs(t, err, schemas.ErrNotFound)
	})
}
