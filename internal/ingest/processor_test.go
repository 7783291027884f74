package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/veracity-sec/correlator/api/schemas"
	"github.com/veracity-sec/correlator/internal/cascade"
	"github.com/veracity-sec/correlator/internal/correlation"
	"github.com/veracity-sec/correlator/internal/rules"
	"github.com/veracity-sec/correlator/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type nopSink struct{}

func (nopSink) Emit(ctx context.Context, ev schemas.Event) error { return nil }

type nopDirectory struct{}

func (nopDirectory) Resolve(ctx context.Context, assetID string) (schemas.AssetRef, error) {
	return schemas.AssetRef{ID: assetID}, nil
}

func (nopDirectory) RecomputeRiskGrade(ctx context.Context, assetID string) error { return nil }

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) Notify(ctx context.Context, rule schemas.Rule, note schemas.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func newTestEngine(t *testing.T, mem *store.MemoryStore, ruleSet []schemas.Rule, notifier schemas.Notifier) *correlation.Engine {
	t.Helper()

	coordinator, err := cascade.NewCoordinator(nopDirectory{}, nil)
	require.NoError(t, err)

	provider, err := rules.NewStaticProvider(ruleSet)
	require.NoError(t, err)
	if notifier == nil {
		notifier = &countingNotifier{}
	}
	ruleEngine, err := rules.NewEngine(mem, provider, notifier, nil)
	require.NoError(t, err)

	engine, err := correlation.New(mem, nopSink{}, coordinator, ruleEngine, nil)
	require.NoError(t, err)
	return engine
}

func observation(asset, title string, severity schemas.Severity) schemas.RawFinding {
	return schemas.RawFinding{
		AssetID:   "a-" + asset,
		AssetName: asset,
		Title:     title,
		Severity:  severity,
		Type:      "network",
	}
}

func TestProcessorCreateVsMerge(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore(nil)
	engine := newTestEngine(t, mem, nil, nil)

	input := make(chan schemas.RawFinding, 4)
	input <- observation("host1", "Open Port", schemas.SeverityLow)
	input <- observation("host1", "Open Port", schemas.SeverityHigh) // same identity, re-observed
	input <- observation("host2", "Open Port", schemas.SeverityLow)
	close(input)

	p := NewProcessor(input, engine, mem, nil, Options{})
	p.Start(ctx)

	got, err := mem.FilterRawFindings(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byAsset := map[string]schemas.RawFinding{}
	for _, f := range got {
		byAsset[f.AssetName] = f
	}

	merged := byAsset["host1"]
	assert.Equal(t, schemas.SeverityHigh, merged.Severity, "re-observation overrides mutable fields")
	assert.Equal(t, 4, merged.SeverityNum)
	assert.NotEmpty(t, merged.ID)

	fresh := byAsset["host2"]
	assert.NotEqual(t, merged.ID, fresh.ID)
}

func TestProcessorMergePreservesIdentity(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore(nil)
	engine := newTestEngine(t, mem, nil, nil)

	seed := observation("host1", "Open Port", schemas.SeverityLow)
	require.NoError(t, engine.CreateRawFinding(ctx, &seed))

	input := make(chan schemas.RawFinding, 1)
	input <- observation("host1", "Open Port", schemas.SeverityMedium)
	close(input)

	p := NewProcessor(input, engine, mem, nil, Options{BatchSize: 1})
	p.Start(ctx)

	got, err := mem.GetRawFinding(ctx, seed.ID)
	require.NoError(t, err)
	assert.Equal(t, seed.ID, got.ID)
	assert.Equal(t, seed.CreatedAt, got.CreatedAt)
	assert.Equal(t, schemas.SeverityMedium, got.Severity)
	assert.True(t, !got.UpdatedAt.Before(seed.UpdatedAt))
}

func TestProcessorEvaluatesRulesOnIngest(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore(nil)
	notifier := &countingNotifier{}

	rule := schemas.Rule{
		Name:      "high severity",
		Enabled:   true,
		Scope:     schemas.RuleScopeFinding,
		ScopeAttr: "severity",
		Condition: schemas.Condition{Value: string(schemas.SeverityHigh)},
	}
	engine := newTestEngine(t, mem, []schemas.Rule{rule}, notifier)

	input := make(chan schemas.RawFinding, 2)
	input <- observation("host1", "RCE", schemas.SeverityHigh)
	input <- observation("host2", "Banner", schemas.SeverityInfo)
	close(input)

	p := NewProcessor(input, engine, mem, nil, Options{Trigger: schemas.TriggerAll})
	p.Start(ctx)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, 1, notifier.calls)
}

func TestProcessorStop(t *testing.T) {
	mem := store.NewMemoryStore(nil)
	engine := newTestEngine(t, mem, nil, nil)

	input := make(chan schemas.RawFinding, 2)
	input <- observation("host1", "Open Port", schemas.SeverityLow)
	input <- observation("host2", "Open Port", schemas.SeverityLow)

	p := NewProcessor(input, engine, mem, nil, Options{BatchSize: 2, FlushInterval: time.Hour})
	go p.Start(context.Background())

	// The batch fills after the second observation and flushes on its own.
	require.Eventually(t, func() bool {
		got, err := mem.FilterRawFindings(context.Background(), nil)
		return err == nil && len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	p.Stop()
	p.Stop() // idempotent
}

func TestProcessorContextCancel(t *testing.T) {
	mem := store.NewMemoryStore(nil)
	engine := newTestEngine(t, mem, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	input := make(chan schemas.RawFinding, 1)
	input <- observation("host1", "Open Port", schemas.SeverityLow)

	p := NewProcessor(input, engine, mem, nil, Options{FlushInterval: time.Hour})
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	cancel()
	<-done

	got, err := mem.FilterRawFindings(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, got, 1, "the final flush runs on a detached context")
}

func TestMerge(t *testing.T) {
	foundAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	existing := schemas.RawFinding{
		ID:        "r-1",
		Status:    schemas.StatusAck,
		Comments:  "triaged",
		FoundAt:   &foundAt,
		CreatedAt: foundAt,
	}
	obs := schemas.RawFinding{AssetName: "host1", Title: "Open Port"}

	merged := merge(existing, obs)
	assert.Equal(t, "r-1", merged.ID)
	assert.Equal(t, foundAt, merged.CreatedAt)
	assert.Equal(t, schemas.StatusAck, merged.Status, "empty status falls back to the stored one")
	assert.Equal(t, "triaged", merged.Comments)
	require.NotNil(t, merged.FoundAt)
	assert.Equal(t, foundAt, *merged.FoundAt)

	obs.Status = schemas.StatusConfirmed
	merged = merge(existing, obs)
	assert.Equal(t, schemas.StatusConfirmed, merged.Status, "observed status wins when present")
}
