package schemas

// -- Alerting Rule Schemas --

// Rule scope and trigger constants. Only the "finding" scope is evaluated by
// this engine; TriggerAll selects every enabled rule regardless of its
// trigger label.
const (
	RuleScopeFinding = "finding"
	TriggerAll       = "all"
)

// Condition is the single exact-match condition a rule carries. It is an
// explicit (key, value) pair: the key is a suffix appended to the rule's
// ScopeAttr to form the target attribute name, the value is the value that
// attribute must hold for the rule to match.
type Condition struct {
	Key   string `json:"key" mapstructure:"key"`
	Value string `json:"value" mapstructure:"value"`
}

// Rule is a configured alerting condition. When a finding matches, a
// notification is dispatched through the Notifier.
type Rule struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	// Scope names the entity kind the rule applies to ("finding").
	Scope string `json:"scope"`
	// Trigger is an optional label limiting when the rule fires. Empty
	// means the rule only runs on "all"-trigger evaluations.
	Trigger string `json:"trigger,omitempty"`
	// ScopeAttr is the attribute-name prefix concatenated with
	// Condition.Key to select the finding attribute to match.
	ScopeAttr string    `json:"scope_attr"`
	Condition Condition `json:"condition"`
}

// Notification is the payload handed to a Notifier when a rule matches.
type Notification struct {
	Message     string
	Asset       AssetRef
	Description string
}
