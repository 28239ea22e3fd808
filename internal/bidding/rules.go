package bidding

// Built-in rule names.
const (
	RuleHighPerformance      = "high_performance"
	RulePoorPerformance      = "poor_performance"
	RuleNoConversion         = "no_conversion"
	RuleLowSpendNoSales      = "low_spend_no_sales"
	RuleExcellentPerformance = "excellent_performance"
)

// NoMatchReason is the reason attached to rows no rule matched.
const NoMatchReason = "No rules matched - maintaining current bid"

func pct(f float64) *float64 { return &f }

// DefaultRuleSpecs returns the built-in rule set in priority order.
//
// excellent_performance can never fire while high_performance precedes it:
// any row with acos < 15 and sales > 5 also satisfies acos < 30 and sales > 0.
// The order is kept as is so results match the established defaults.
func DefaultRuleSpecs() []RuleSpec {
	return []RuleSpec{
		{
			Name:              RuleHighPerformance,
			Condition:         "acos < 30 and sales > 0",
			Action:            ActionIncrease,
			AdjustmentPercent: pct(10),
			Explanation:       "ACOS is {acos:.1f}% (below 30% target), indicating profitable ads. Increasing bid by 10% to capture more traffic.",
		},
		{
			Name:              RulePoorPerformance,
			Condition:         "acos > 30 and sales > 0",
			Action:            ActionDecrease,
			AdjustmentPercent: pct(-10),
			Explanation:       "ACOS is {acos:.1f}% (above 30% target), indicating unprofitable ads. Decreasing bid by 10% to improve efficiency.",
		},
		{
			Name:              RuleNoConversion,
			Condition:         "ad_spend >= 10 and sales == 0",
			Action:            ActionPause,
			AdjustmentPercent: pct(0),
			Explanation:       "Spent ${ad_spend:.2f} with 0 sales. Pausing to prevent further losses.",
		},
		{
			Name:              RuleLowSpendNoSales,
			Condition:         "5 <= ad_spend < 10 and sales == 0",
			Action:            ActionDecrease,
			AdjustmentPercent: pct(-20),
			Explanation:       "Spent ${ad_spend:.2f} with no sales yet. Decreasing bid by 20% to test lower cost.",
		},
		{
			Name:              RuleExcellentPerformance,
			Condition:         "acos < 15 and sales > 5",
			Action:            ActionIncrease,
			AdjustmentPercent: pct(20),
			Explanation:       "Excellent ACOS of {acos:.1f}% with {sales} sales. Increasing bid by 20% to maximize profitable volume.",
		},
	}
}

// DefaultRules compiles DefaultRuleSpecs.
func DefaultRules() []Rule {
	specs := DefaultRuleSpecs()
	rules := make([]Rule, len(specs))
	for i, s := range specs {
		rules[i] = MustRule(s)
	}
	return rules
}
