package schemas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	for _, name := range []string{
		"id", "asset_id", "asset_name", "title", "type", "hash",
		"confidence", "severity", "severity_num", "status", "engine_type",
	} {
		f, err := ParseField(name)
		require.NoError(t, err, name)
		assert.Equal(t, Field(name), f)
	}

	for _, name := range []string{"", "Severity", "severity ", "raw_data", "description"} {
		_, err := ParseField(name)
		assert.Error(t, err, "%q must not resolve", name)
	}
}

func TestPredicateMatches(t *testing.T) {
	f := Finding{
		ID:          "f-1",
		AssetName:   "host1",
		Severity:    SeverityHigh,
		SeverityNum: 4,
		Status:      StatusNew,
	}

	t.Run("empty predicate matches everything", func(t *testing.T) {
		assert.True(t, Predicate(nil).Matches(f.FieldValue))
	})

	t.Run("conjunction requires every clause", func(t *testing.T) {
		assert.True(t, Predicate{
			Eq(FieldSeverity, "high"),
			Eq(FieldStatus, "new"),
		}.Matches(f.FieldValue))

		assert.False(t, Predicate{
			Eq(FieldSeverity, "high"),
			Eq(FieldStatus, "closed"),
		}.Matches(f.FieldValue))
	})

	t.Run("numeric rank compares through its string form", func(t *testing.T) {
		assert.True(t, Predicate{Eq(FieldSeverityNum, "4")}.Matches(f.FieldValue))
	})

	t.Run("raw findings expose the same attributes", func(t *testing.T) {
		raw := RawFinding{EngineType: "nmap", Hash: "abc"}
		assert.True(t, Predicate{
			Eq(FieldEngineType, "nmap"),
			Eq(FieldHash, "abc"),
		}.Matches(raw.FieldValue))
	})
}

func TestFindingApplyDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fills unset fields", func(t *testing.T) {
		var f Finding
		f.ApplyDefaults(now)

		assert.Equal(t, "title", f.Title)
		assert.Equal(t, StatusNew, f.Status)
		assert.Equal(t, SeverityInfo, f.Severity)
		assert.Equal(t, DefaultComments, f.Comments)
		assert.Equal(t, now, f.FoundAt)
		assert.Equal(t, now, f.CheckedAt)
	})

	t.Run("keeps populated fields", func(t *testing.T) {
		found := now.Add(-time.Hour)
		f := Finding{
			Title:    "Open Port",
			Status:   StatusConfirmed,
			Severity: SeverityHigh,
			Comments: "triaged",
			FoundAt:  found,
		}
		f.ApplyDefaults(now)

		assert.Equal(t, "Open Port", f.Title)
		assert.Equal(t, StatusConfirmed, f.Status)
		assert.Equal(t, SeverityHigh, f.Severity)
		assert.Equal(t, "triaged", f.Comments)
		assert.Equal(t, found, f.FoundAt)
		assert.Equal(t, now, f.CheckedAt)
	})
}

func TestRawFindingApplyDefaults(t *testing.T) {
	var f RawFinding
	f.ApplyDefaults()

	assert.Equal(t, SeverityInfo, f.Severity)
	assert.Equal(t, DefaultComments, f.Comments)
	assert.Empty(t, f.Title, "raw findings carry no title placeholder")
	assert.Nil(t, f.FoundAt)
	assert.Nil(t, f.CheckedAt)
}

func TestSummary(t *testing.T) {
	raw := RawFinding{ID: "r-1", AssetName: "host1", Title: "Open Port"}
	assert.Equal(t, "r-1/host1/Open Port", raw.Summary())

	f := Finding{ID: "f-1", AssetName: "host1", Title: "Open Port"}
	assert.Equal(t, "f-1/Open Port", f.Summary())
}
