// Package bidding provides the rule engine that turns campaign metrics into
// bid recommendations.
package bidding

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/blackwell-systems/bidctl/internal/campaign"
	"github.com/blackwell-systems/bidctl/internal/condition"
)

// Action is the bid adjustment a rule prescribes.
type Action string

// Supported actions.
const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
	ActionPause    Action = "pause"
	ActionNoChange Action = "no_change"
)

// Actions lists every action in display order.
var Actions = []Action{ActionIncrease, ActionDecrease, ActionPause, ActionNoChange}

// ParseAction converts a case-insensitive action token. Both "no_change" and
// "NO_CHANGE" are accepted.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if a.Valid() {
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Valid reports whether a is one of the supported actions.
func (a Action) Valid() bool {
	switch a {
	case ActionIncrease, ActionDecrease, ActionPause, ActionNoChange:
		return true
	}
	return false
}

// Token returns the upper-case form used in exports.
func (a Action) Token() string {
	return strings.ToUpper(string(a))
}

// Errors returned by rule construction and engine mutation.
var (
	ErrDuplicateRule = errors.New("duplicate rule name")
	ErrInvalidRule   = errors.New("invalid rule")
)

// Rule pairs a condition with the bid action to take when it holds. Rules
// are immutable once built; use NewRule to construct one.
type Rule struct {
	name        string
	cond        *condition.Expr
	action      Action
	adjustment  *float64
	explanation string
}

// RuleSpec is the plain description of a rule, as read from configuration.
type RuleSpec struct {
	Name              string   `json:"name" yaml:"name"`
	Condition         string   `json:"condition" yaml:"condition"`
	Action            Action   `json:"action" yaml:"action"`
	AdjustmentPercent *float64 `json:"adjustment_percent,omitempty" yaml:"adjustment_percent,omitempty"`
	Explanation       string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// NewRule compiles spec into a Rule. Increase and decrease rules need an
// adjustment percentage.
func NewRule(spec RuleSpec) (Rule, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return Rule{}, fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if !spec.Action.Valid() {
		return Rule{}, fmt.Errorf("%w %q: unknown action %q", ErrInvalidRule, name, spec.Action)
	}
	if (spec.Action == ActionIncrease || spec.Action == ActionDecrease) && spec.AdjustmentPercent == nil {
		return Rule{}, fmt.Errorf("%w %q: %s needs adjustment_percent", ErrInvalidRule, name, spec.Action)
	}
	if pct := spec.AdjustmentPercent; pct != nil && (math.IsNaN(*pct) || math.IsInf(*pct, 0)) {
		return Rule{}, fmt.Errorf("%w %q: adjustment_percent must be finite, got %v", ErrInvalidRule, name, *pct)
	}
	cond, err := condition.Compile(spec.Condition)
	if err != nil {
		return Rule{}, fmt.Errorf("%w %q: condition %q: %w", ErrInvalidRule, name, spec.Condition, err)
	}

	r := Rule{
		name:        name,
		cond:        cond,
		action:      spec.Action,
		explanation: spec.Explanation,
	}
	if spec.AdjustmentPercent != nil {
		pct := *spec.AdjustmentPercent
		r.adjustment = &pct
	}
	return r, nil
}

// MustRule is like NewRule but panics on error.
func MustRule(spec RuleSpec) Rule {
	r, err := NewRule(spec)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the rule's unique identifier.
func (r Rule) Name() string { return r.name }

// Condition returns the condition source text.
func (r Rule) Condition() string {
	if r.cond == nil {
		return ""
	}
	return r.cond.String()
}

// Action returns the prescribed action.
func (r Rule) Action() Action { return r.action }

// Adjustment returns the signed adjustment percentage, if any.
func (r Rule) Adjustment() (float64, bool) {
	if r.adjustment == nil {
		return 0, false
	}
	return *r.adjustment, true
}

// Explanation returns the unrendered explanation template.
func (r Rule) Explanation() string { return r.explanation }

// Spec returns the plain description of r.
func (r Rule) Spec() RuleSpec {
	s := RuleSpec{
		Name:        r.name,
		Condition:   r.Condition(),
		Action:      r.action,
		Explanation: r.explanation,
	}
	if r.adjustment != nil {
		pct := *r.adjustment
		s.AdjustmentPercent = &pct
	}
	return s
}

// Matches evaluates the rule's condition against m.
func (r Rule) Matches(m campaign.Metrics) (bool, error) {
	if r.cond == nil {
		return false, fmt.Errorf("%w %q: no compiled condition", ErrInvalidRule, r.name)
	}
	return r.cond.Eval(m)
}

// Explain renders the explanation template for m.
func (r Rule) Explain(m campaign.Metrics) string {
	return RenderTemplate(r.explanation, m)
}

// RuleSummary is a display row for listing rules.
type RuleSummary struct {
	Name       string `json:"name"`
	Condition  string `json:"condition"`
	Action     Action `json:"action"`
	Adjustment string `json:"adjustment"`
}

// Summary returns a display row for r. The adjustment is formatted as a
// signed percentage, or "N/A" when absent or zero.
func (r Rule) Summary() RuleSummary {
	adj := "N/A"
	if pct, ok := r.Adjustment(); ok && pct != 0 {
		adj = fmt.Sprintf("%+.0f%%", pct)
	}
	return RuleSummary{
		Name:       r.name,
		Condition:  r.Condition(),
		Action:     r.action,
		Adjustment: adj,
	}
}

// Recommendation is the outcome of evaluating one row.
type Recommendation struct {
	CampaignID     string           `json:"campaign_id"`
	SKU            string           `json:"sku"`
	CurrentBid     float64          `json:"current_bid"`
	RecommendedBid float64          `json:"recommended_bid"`
	Action         Action           `json:"action"`
	Reason         string           `json:"reason"`
	Rule           string           `json:"rule,omitempty"`
	Metrics        campaign.Metrics `json:"metrics"`
}

// BidChange returns the recommended minus the current bid, rounded to cents.
func (r Recommendation) BidChange() float64 {
	return RoundCents(r.RecommendedBid - r.CurrentBid)
}
