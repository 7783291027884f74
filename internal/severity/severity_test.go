package severity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veracity-sec/correlator/api/schemas"
)

func TestRank(t *testing.T) {
	cases := []struct {
		label schemas.Severity
		rank  int
	}{
		{schemas.SeverityInfo, 1},
		{schemas.SeverityLow, 2},
		{schemas.SeverityMedium, 3},
		{schemas.SeverityHigh, 4},
		// "critical" falls through to the fallback bucket, below "info".
		{schemas.SeverityCritical, 0},
		{schemas.Severity("unknown"), 0},
		{schemas.Severity(""), 0},
	}
	for _, tc := range cases {
		t.Run(string(tc.label), func(t *testing.T) {
			assert.Equal(t, tc.rank, Rank(tc.label))
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(schemas.SeverityCritical))
	assert.True(t, Valid(schemas.SeverityInfo))
	assert.False(t, Valid(schemas.Severity("urgent")))
}

func TestOrderFindings(t *testing.T) {
	t.Run("descending rank with critical in the fallback bucket", func(t *testing.T) {
		findings := []schemas.Finding{
			{Severity: schemas.SeverityLow, AssetName: "a", Title: "t"},
			{Severity: schemas.SeverityCritical, AssetName: "a", Title: "t"},
			{Severity: schemas.SeverityInfo, AssetName: "a", Title: "t"},
			{Severity: schemas.SeverityHigh, AssetName: "a", Title: "t"},
		}
		OrderFindings(findings)

		got := make([]schemas.Severity, 0, len(findings))
		for _, f := range findings {
			got = append(got, f.Severity)
		}
		assert.Equal(t, []schemas.Severity{
			schemas.SeverityHigh,
			schemas.SeverityLow,
			schemas.SeverityInfo,
			schemas.SeverityCritical,
		}, got)
	})

	t.Run("ties broken by asset name then title", func(t *testing.T) {
		findings := []schemas.Finding{
			{Severity: schemas.SeverityHigh, AssetName: "beta", Title: "z"},
			{Severity: schemas.SeverityHigh, AssetName: "alpha", Title: "z"},
			{Severity: schemas.SeverityHigh, AssetName: "alpha", Title: "a"},
		}
		OrderFindings(findings)

		assert.Equal(t, "alpha", findings[0].AssetName)
		assert.Equal(t, "a", findings[0].Title)
		assert.Equal(t, "alpha", findings[1].AssetName)
		assert.Equal(t, "z", findings[1].Title)
		assert.Equal(t, "beta", findings[2].AssetName)
	})

	t.Run("raw findings share the key order", func(t *testing.T) {
		findings := []schemas.RawFinding{
			{Severity: schemas.SeverityCritical, AssetName: "a", Title: "t"},
			{Severity: schemas.SeverityMedium, AssetName: "a", Title: "t"},
		}
		OrderRawFindings(findings)
		assert.Equal(t, schemas.SeverityMedium, findings[0].Severity)
	})
}
