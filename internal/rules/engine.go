// Package rules evaluates enabled alerting rules against findings and
// dispatches notifications on match.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veracity-sec/correlator/api/schemas"
)

// defaultLookupConcurrency bounds the number of per-rule store lookups in
// flight. Lookups are independent queries; the match count is an unordered
// sum, so no ordering between rules is required.
const defaultLookupConcurrency = 4

// Engine evaluates enabled rules with scope "finding" against a single
// finding and dispatches a notification per match. It is stateless between
// invocations; every evaluation reads current rules and store state.
type Engine struct {
	store       schemas.FindingStore
	provider    schemas.RuleProvider
	notifier    schemas.Notifier
	log         *zap.Logger
	lookupLimit int
}

// NewEngine wires a rule engine. All dependencies are required.
func NewEngine(store schemas.FindingStore, provider schemas.RuleProvider, notifier schemas.Notifier, logger *zap.Logger) (*Engine, error) {
	if store == nil || provider == nil || notifier == nil {
		return nil, errors.New("cannot initialize rule engine with nil dependencies")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:       store,
		provider:    provider,
		notifier:    notifier,
		log:         logger.Named("rule_engine"),
		lookupLimit: defaultLookupConcurrency,
	}, nil
}

// SetLookupConcurrency overrides the bound on concurrent per-rule lookups.
func (e *Engine) SetLookupConcurrency(n int) {
	if n > 0 {
		e.lookupLimit = n
	}
}

// target is the rule-visible projection of a finding, shared by raw and
// curated evaluation paths.
type target struct {
	id          string
	assetID     string
	assetValue  string
	title       string
	description string
	lookup      func(ctx context.Context, pred schemas.Predicate) (bool, error)
}

// Evaluate runs every enabled "finding"-scoped rule against a curated
// finding. With trigger "all" every such rule is a candidate; otherwise only
// rules carrying that exact trigger label run.
//
// A malformed rule (empty condition, or a scope attribute that does not
// resolve to a queryable field) aborts evaluation with ErrInvalidRule. Store
// and notification failures on individual rules are isolated: the remaining
// rules still run, the failures are logged, excluded from the match count
// and joined into the returned error.
func (e *Engine) Evaluate(ctx context.Context, f *schemas.Finding, trigger string) (int, error) {
	return e.evaluate(ctx, target{
		id:          f.ID,
		assetID:     f.AssetID,
		assetValue:  f.AssetName,
		title:       f.Title,
		description: f.Description,
		lookup: func(ctx context.Context, pred schemas.Predicate) (bool, error) {
			matches, err := e.store.FilterFindings(ctx, pred)
			return len(matches) > 0, err
		},
	}, trigger)
}

// EvaluateRaw runs rule evaluation against a raw finding, matching against
// the raw_findings store.
func (e *Engine) EvaluateRaw(ctx context.Context, f *schemas.RawFinding, trigger string) (int, error) {
	return e.evaluate(ctx, target{
		id:          f.ID,
		assetID:     f.AssetID,
		assetValue:  f.AssetName,
		title:       f.Title,
		description: f.Description,
		lookup: func(ctx context.Context, pred schemas.Predicate) (bool, error) {
			matches, err := e.store.FilterRawFindings(ctx, pred)
			return len(matches) > 0, err
		},
	}, trigger)
}

type candidate struct {
	rule  schemas.Rule
	field schemas.Field
}

func (e *Engine) evaluate(ctx context.Context, t target, trigger string) (int, error) {
	rules, err := e.provider.Rules(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate rules: %w", err)
	}

	// Validate every candidate before any lookup runs: a misconfigured rule
	// is a configuration fault, not a per-rule evaluation failure.
	var candidates []candidate
	for _, rule := range rules {
		if !rule.Enabled || rule.Scope != schemas.RuleScopeFinding {
			continue
		}
		if trigger != schemas.TriggerAll && rule.Trigger != trigger {
			continue
		}
		c, err := validate(rule)
		if err != nil {
			return 0, err
		}
		candidates = append(candidates, c)
	}

	var (
		mu      sync.Mutex
		matches int
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.lookupLimit)

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			pred := schemas.Predicate{
				schemas.Eq(schemas.FieldID, t.id),
				schemas.Eq(c.field, c.rule.Condition.Value),
			}
			ok, err := t.lookup(gctx, pred)
			if err != nil {
				e.log.Warn("Rule lookup failed; excluding from match count",
					zap.String("rule", c.rule.Name), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("rule %q: %w", c.rule.Name, err))
				mu.Unlock()
				return nil
			}
			if !ok {
				return nil
			}

			n := schemas.Notification{
				Message:     fmt.Sprintf("[Asset=%s] %s", t.assetValue, t.title),
				Asset:       schemas.AssetRef{ID: t.assetID, Value: t.assetValue},
				Description: t.description,
			}
			mu.Lock()
			matches++
			mu.Unlock()

			if err := e.notifier.Notify(gctx, c.rule, n); err != nil {
				e.log.Warn("Notification dispatch failed",
					zap.String("rule", c.rule.Name), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("rule %q notify: %w", c.rule.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	// Workers never return errors through the group; failures are collected
	// per rule above.
	_ = g.Wait()

	return matches, errors.Join(errs...)
}

// validate rejects malformed rules: an empty condition, or a derived
// attribute name outside the queryable field enum.
func validate(rule schemas.Rule) (candidate, error) {
	if rule.Condition == (schemas.Condition{}) {
		return candidate{}, fmt.Errorf("rule %q has an empty condition: %w", rule.Name, schemas.ErrInvalidRule)
	}
	field, err := schemas.ParseField(rule.ScopeAttr + rule.Condition.Key)
	if err != nil {
		return candidate{}, fmt.Errorf("rule %q: %v: %w", rule.Name, err, schemas.ErrInvalidRule)
	}
	return candidate{rule: rule, field: field}, nil
}
