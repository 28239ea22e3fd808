package bidding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/bidctl/internal/campaign"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithLogger(quietLogger())}, opts...)...)
}

// --- Evaluate: default rule set ---

func TestEvaluate_Rule1WinsOverRule5(t *testing.T) {
	e := newTestEngine()
	rec := e.Evaluate(campaign.Row{
		CampaignID: "CAM_001", SKU: "SKU_1",
		AdSpend: 1, Revenue: 10, Sales: 6, CurrentBid: 1.00,
	})

	assert.InDelta(t, 10.0, rec.Metrics.ACOS, 1e-9)
	assert.Equal(t, ActionIncrease, rec.Action)
	assert.Equal(t, RuleHighPerformance, rec.Rule)
	assert.Equal(t, 1.10, rec.RecommendedBid)
}

func TestEvaluate_HighPerformanceScenario(t *testing.T) {
	e := newTestEngine()
	rec := e.Evaluate(campaign.Row{AdSpend: 30, Revenue: 300, Sales: 10, CurrentBid: 1.00})

	assert.InDelta(t, 10.0, rec.Metrics.ACOS, 1e-9)
	assert.Equal(t, ActionIncrease, rec.Action)
	assert.Equal(t, 1.10, rec.RecommendedBid)
	assert.Equal(t, "ACOS is 10.0% (below 30% target), indicating profitable ads. Increasing bid by 10% to capture more traffic.", rec.Reason)
}

func TestEvaluate_PauseScenario(t *testing.T) {
	e := newTestEngine()
	rec := e.Evaluate(campaign.Row{AdSpend: 15, Sales: 0, CurrentBid: 2.00})

	assert.True(t, rec.Metrics.UndefinedACOS())
	assert.Equal(t, ActionPause, rec.Action)
	assert.Equal(t, RuleNoConversion, rec.Rule)
	assert.Equal(t, 0.0, rec.RecommendedBid)
	assert.Equal(t, "Spent $15.00 with 0 sales. Pausing to prevent further losses.", rec.Reason)
}

func TestEvaluate_PoorPerformance(t *testing.T) {
	e := newTestEngine()
	rec := e.Evaluate(campaign.Row{AdSpend: 25, Revenue: 50, Sales: 2, CurrentBid: 1.50})

	assert.Equal(t, ActionDecrease, rec.Action)
	assert.Equal(t, RulePoorPerformance, rec.Rule)
	assert.Equal(t, 1.35, rec.RecommendedBid)
}

func TestEvaluate_LowSpendNoSales(t *testing.T) {
	e := newTestEngine()
	rec := e.Evaluate(campaign.Row{AdSpend: 7.5, CurrentBid: 1.00})

	assert.Equal(t, ActionDecrease, rec.Action)
	assert.Equal(t, RuleLowSpendNoSales, rec.Rule)
	assert.Equal(t, 0.80, rec.RecommendedBid)
	assert.Equal(t, "Spent $7.50 with no sales yet. Decreasing bid by 20% to test lower cost.", rec.Reason)
}

func TestEvaluate_AcosExactlyThirtyMatchesNothing(t *testing.T) {
	e := newTestEngine()
	rec := e.Evaluate(campaign.Row{CampaignID: "C", SKU: "S", AdSpend: 30, Revenue: 100, Sales: 3, CurrentBid: 0.75})

	assert.Equal(t, ActionNoChange, rec.Action)
	assert.Equal(t, 0.75, rec.RecommendedBid)
	assert.Equal(t, NoMatchReason, rec.Reason)
	assert.Empty(t, rec.Rule)
}

func TestEvaluate_NoSpendNoSales(t *testing.T) {
	e := newTestEngine()
	rec := e.Evaluate(campaign.Row{CurrentBid: 0.40})

	assert.Equal(t, 0.0, rec.Metrics.ACOS)
	assert.Equal(t, ActionNoChange, rec.Action)
	assert.Equal(t, 0.40, rec.RecommendedBid)
}

func TestEvaluate_DefaultsUnknownIdentifiers(t *testing.T) {
	e := newTestEngine()
	rec := e.Evaluate(campaign.Row{})
	assert.Equal(t, campaign.UnknownID, rec.CampaignID)
	assert.Equal(t, campaign.UnknownID, rec.SKU)
}

// --- bid floor ---

func TestEvaluate_DecreaseClampedToFloor(t *testing.T) {
	rule := MustRule(RuleSpec{
		Name: "slash", Condition: "current_bid > 0", Action: ActionDecrease,
		AdjustmentPercent: pct(-90),
	})
	e := newTestEngine(WithRules(rule))

	rec := e.Evaluate(campaign.Row{CurrentBid: 0.05})
	assert.Equal(t, ActionDecrease, rec.Action)
	assert.Equal(t, 0.01, rec.RecommendedBid)
}

func TestEvaluate_CustomFloor(t *testing.T) {
	rule := MustRule(RuleSpec{
		Name: "slash", Condition: "current_bid > 0", Action: ActionDecrease,
		AdjustmentPercent: pct(-100),
	})
	e := newTestEngine(WithRules(rule), WithBidFloor(0.25))

	rec := e.Evaluate(campaign.Row{CurrentBid: 3})
	assert.Equal(t, 0.25, rec.RecommendedBid)
}

// --- condition failures ---

type recordingObserver struct {
	mu       sync.Mutex
	rows     int
	failures map[string]int
}

func (o *recordingObserver) RowEvaluated(Recommendation) {
	o.mu.Lock()
	o.rows++
	o.mu.Unlock()
}

func (o *recordingObserver) ConditionFailed(rule string, _ error) {
	o.mu.Lock()
	if o.failures == nil {
		o.failures = make(map[string]int)
	}
	o.failures[rule]++
	o.mu.Unlock()
}

func TestEvaluate_FailingConditionFallsThrough(t *testing.T) {
	broken := MustRule(RuleSpec{Name: "typo", Condition: "acoss < 30", Action: ActionPause})
	divides := MustRule(RuleSpec{Name: "ratio", Condition: "ad_spend / revenue > 1", Action: ActionPause})
	good := MustRule(RuleSpec{Name: "always", Condition: "true", Action: ActionIncrease, AdjustmentPercent: pct(5)})

	obs := &recordingObserver{}
	e := newTestEngine(WithRules(broken, divides, good), WithObserver(obs))

	rec := e.Evaluate(campaign.Row{CurrentBid: 2, AdSpend: 1})
	assert.Equal(t, "always", rec.Rule)
	assert.Equal(t, 2.10, rec.RecommendedBid)
	assert.Equal(t, 1, obs.rows)
	assert.Equal(t, map[string]int{"typo": 1, "ratio": 1}, obs.failures)
}

func TestEvaluate_ZeroValueRuleNeverMatches(t *testing.T) {
	e := newTestEngine(WithRules(Rule{name: "empty", action: ActionPause}))
	rec := e.Evaluate(campaign.Row{CurrentBid: 1})
	assert.Equal(t, ActionNoChange, rec.Action)
}

func TestEvaluate_WarningIsLogged(t *testing.T) {
	l := logrus.New()
	var buf syncBuffer
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	broken := MustRule(RuleSpec{Name: "typo", Condition: "acoss < 30", Action: ActionPause})
	e := NewEngine(WithRules(broken), WithLogger(logrus.NewEntry(l)))
	e.Evaluate(campaign.Row{CampaignID: "C1", SKU: "S1"})

	out := buf.String()
	assert.Contains(t, out, `"level":"warning"`)
	assert.Contains(t, out, `"rule":"typo"`)
	assert.Contains(t, out, `"campaign_id":"C1"`)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// --- rule list management ---

func TestNewEngine_DefaultOrder(t *testing.T) {
	e := newTestEngine()
	var names []string
	for _, r := range e.Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{
		RuleHighPerformance, RulePoorPerformance, RuleNoConversion,
		RuleLowSpendNoSales, RuleExcellentPerformance,
	}, names)
}

func TestAddRule_AppendsAtLowestPriority(t *testing.T) {
	e := newTestEngine()
	extra := MustRule(RuleSpec{Name: "catch_all", Condition: "true", Action: ActionNoChange})
	require.NoError(t, e.AddRule(extra))

	rules := e.Rules()
	assert.Equal(t, 6, e.Len())
	assert.Equal(t, "catch_all", rules[len(rules)-1].Name())

	// A row the defaults ignore now reaches the catch-all.
	rec := e.Evaluate(campaign.Row{CurrentBid: 1})
	assert.Equal(t, "catch_all", rec.Rule)
	assert.Equal(t, ActionNoChange, rec.Action)
}

func TestAddRule_Duplicate(t *testing.T) {
	e := newTestEngine()
	dup := MustRule(RuleSpec{Name: RuleNoConversion, Condition: "true", Action: ActionPause})
	err := e.AddRule(dup)
	assert.True(t, errors.Is(err, ErrDuplicateRule))
	assert.Equal(t, 5, e.Len())
}

func TestRemoveRule(t *testing.T) {
	e := newTestEngine()
	assert.True(t, e.RemoveRule(RuleHighPerformance))
	assert.False(t, e.RemoveRule(RuleHighPerformance))
	assert.False(t, e.RemoveRule("does_not_exist"))
	assert.Equal(t, 4, e.Len())

	// With rule 1 gone the overlapping row falls through to rule 5.
	rec := e.Evaluate(campaign.Row{AdSpend: 1, Revenue: 10, Sales: 6, CurrentBid: 1.00})
	assert.Equal(t, RuleExcellentPerformance, rec.Rule)
	assert.Equal(t, 1.20, rec.RecommendedBid)

	// Index stays consistent after the shift.
	r, ok := e.Rule(RuleExcellentPerformance)
	require.True(t, ok)
	assert.Equal(t, RuleExcellentPerformance, r.Name())
	require.True(t, e.RemoveRule(RulePoorPerformance))
	r, ok = e.Rule(RuleLowSpendNoSales)
	require.True(t, ok)
	assert.Equal(t, "5 <= ad_spend < 10 and sales == 0", r.Condition())
}

func TestRemoveThenAdd_ReusesName(t *testing.T) {
	e := newTestEngine()
	require.True(t, e.RemoveRule(RuleNoConversion))
	replacement := MustRule(RuleSpec{Name: RuleNoConversion, Condition: "ad_spend >= 20 and sales == 0", Action: ActionPause})
	require.NoError(t, e.AddRule(replacement))

	rec := e.Evaluate(campaign.Row{AdSpend: 15, CurrentBid: 2})
	assert.Equal(t, ActionNoChange, rec.Action)
}

func TestWithRules_SkipsDuplicates(t *testing.T) {
	a := MustRule(RuleSpec{Name: "a", Condition: "true", Action: ActionPause})
	a2 := MustRule(RuleSpec{Name: "a", Condition: "false", Action: ActionPause})
	e := newTestEngine(WithRules(a, a2))
	assert.Equal(t, 1, e.Len())
	r, _ := e.Rule("a")
	assert.Equal(t, "true", r.Condition())
}

func TestSummaries(t *testing.T) {
	e := newTestEngine()
	sums := e.Summaries()
	require.Len(t, sums, 5)
	assert.Equal(t, "+10%", sums[0].Adjustment)
	assert.Equal(t, "-10%", sums[1].Adjustment)
	assert.Equal(t, "N/A", sums[2].Adjustment)
	assert.Equal(t, "-20%", sums[3].Adjustment)
	assert.Equal(t, "+20%", sums[4].Adjustment)
}

// --- EvaluateBatch ---

func makeRows(n int) []campaign.Row {
	rows := make([]campaign.Row, n)
	for i := range rows {
		rows[i] = campaign.Row{
			CampaignID: fmt.Sprintf("CAM_%04d", i),
			SKU:        fmt.Sprintf("SKU_%04d", i),
			CurrentBid: 1 + float64(i%7)/10,
			AdSpend:    float64(i % 40),
			Revenue:    float64((i * 13) % 200),
			Sales:      float64(i % 9),
			Clicks:     int64(i % 50),
		}
	}
	return rows
}

func TestEvaluateBatch_PreservesOrderAndLength(t *testing.T) {
	for _, n := range []int{0, 1, 10, 1000, 5000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			e := newTestEngine(WithWorkers(4))
			rows := makeRows(n)
			recs, err := e.EvaluateBatch(context.Background(), rows)
			require.NoError(t, err)
			require.Len(t, recs, n)
			for i, rec := range recs {
				assert.Equal(t, rows[i].CampaignID, rec.CampaignID)
				assert.True(t, rec.Action.Valid())
				assert.Equal(t, e.Evaluate(rows[i]), rec)
			}
		})
	}
}

func TestEvaluateBatch_EmptyIsNotAnError(t *testing.T) {
	recs, err := newTestEngine().EvaluateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestEvaluateBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine(WithWorkers(4)).EvaluateBatch(ctx, makeRows(2000))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateBatch_ConcurrentRuleChanges(t *testing.T) {
	e := newTestEngine(WithWorkers(8))
	rows := makeRows(3000)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			name := fmt.Sprintf("extra_%d", i)
			_ = e.AddRule(MustRule(RuleSpec{Name: name, Condition: "false", Action: ActionPause}))
			e.RemoveRule(name)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			recs, err := e.EvaluateBatch(context.Background(), rows)
			assert.NoError(t, err)
			assert.Len(t, recs, len(rows))
		}
	}()
	wg.Wait()
	assert.Equal(t, 5, e.Len())
}
