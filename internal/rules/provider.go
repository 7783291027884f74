package rules

import (
	"context"
	"fmt"

	"github.com/veracity-sec/correlator/api/schemas"
)

// StaticProvider serves a fixed rule set, typically loaded from the config
// file. Malformed rules are rejected at registration time rather than at
// evaluation time.
type StaticProvider struct {
	rules []schemas.Rule
}

// Ensures StaticProvider implements the RuleProvider interface at compile time.
var _ schemas.RuleProvider = (*StaticProvider)(nil)

// NewStaticProvider validates and registers a fixed rule set. Disabled rules
// are accepted as-is; enabled "finding"-scoped rules must carry a non-empty
// condition and a resolvable attribute name.
func NewStaticProvider(rules []schemas.Rule) (*StaticProvider, error) {
	for _, rule := range rules {
		if !rule.Enabled || rule.Scope != schemas.RuleScopeFinding {
			continue
		}
		if _, err := validate(rule); err != nil {
			return nil, fmt.Errorf("rule registration: %w", err)
		}
	}
	out := make([]schemas.Rule, len(rules))
	copy(out, rules)
	return &StaticProvider{rules: out}, nil
}

// Rules returns a copy of the registered rule set.
func (p *StaticProvider) Rules(ctx context.Context) ([]schemas.Rule, error) {
	out := make([]schemas.Rule, len(p.rules))
	copy(out, p.rules)
	return out, nil
}
