// Package analysis runs the bidding engine over a dataset and summarizes the
// outcome.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/blackwell-systems/bidctl/internal/bidding"
	"github.com/blackwell-systems/bidctl/internal/campaign"
)

// Evaluator is the part of the bidding engine the aggregator needs.
type Evaluator interface {
	EvaluateBatch(ctx context.Context, rows []campaign.Row) ([]bidding.Recommendation, error)
}

// Aggregator runs analysis passes. It holds no per-run state, so one
// Aggregator can serve concurrent runs.
type Aggregator struct {
	engine       Evaluator
	skipInactive bool
	log          *logrus.Entry
	now          func() time.Time
}

// Options configures an Aggregator.
type Options struct {
	// SkipInactive drops rows whose status is set and not "active".
	SkipInactive bool

	Logger *logrus.Entry
}

// NewAggregator creates an Aggregator around engine.
func NewAggregator(engine Evaluator, opts Options) *Aggregator {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Aggregator{
		engine:       engine,
		skipInactive: opts.SkipInactive,
		log:          log.WithField("component", "analysis"),
		now:          time.Now,
	}
}

// Result is the outcome of one analysis pass.
type Result struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	// Evaluated is the number of rows run through the engine.
	Evaluated int `json:"evaluated"`

	// Skipped is the number of inactive rows left out.
	Skipped int `json:"skipped"`

	// Recommendations holds every non-no_change outcome in input order.
	Recommendations []bidding.Recommendation `json:"recommendations"`

	Summary Summary `json:"summary"`
}

// Summary holds aggregate statistics over a set of recommendations. Bid
// totals are rounded to cents.
type Summary struct {
	TotalRecommendations int                    `json:"total_recommendations"`
	Actions              map[bidding.Action]int `json:"actions"`
	CurrentTotalBid      float64                `json:"current_total_bid"`
	RecommendedTotalBid  float64                `json:"recommended_total_bid"`
	NetChange            float64                `json:"net_change"`
	PercentChange        float64                `json:"percent_change"`
}

// Analyze evaluates rows and keeps the actionable recommendations. An
// empty dataset produces an empty Result, not an error.
func (a *Aggregator) Analyze(ctx context.Context, rows []campaign.Row) (*Result, error) {
	res := &Result{
		RunID:           uuid.New().String(),
		GeneratedAt:     a.now(),
		Recommendations: []bidding.Recommendation{},
	}

	eligible := rows
	if a.skipInactive {
		eligible = make([]campaign.Row, 0, len(rows))
		for _, r := range rows {
			if r.IsActive() {
				eligible = append(eligible, r)
			}
		}
		res.Skipped = len(rows) - len(eligible)
	}

	recs, err := a.engine.EvaluateBatch(ctx, eligible)
	if err != nil {
		return nil, fmt.Errorf("evaluating %d rows: %w", len(eligible), err)
	}
	res.Evaluated = len(recs)

	for _, rec := range recs {
		if rec.Action != bidding.ActionNoChange {
			res.Recommendations = append(res.Recommendations, rec)
		}
	}
	res.Summary = Summarize(res.Recommendations)

	a.log.WithFields(logrus.Fields{
		"run_id":          res.RunID,
		"evaluated":       res.Evaluated,
		"skipped":         res.Skipped,
		"recommendations": len(res.Recommendations),
	}).Info("Analysis complete")

	return res, nil
}

// Summarize computes statistics over recs. Percent change is 0 when the
// current bid total is 0.
func Summarize(recs []bidding.Recommendation) Summary {
	s := Summary{
		TotalRecommendations: len(recs),
		Actions:              make(map[bidding.Action]int),
	}

	current := decimal.Zero
	recommended := decimal.Zero
	for _, r := range recs {
		s.Actions[r.Action]++
		current = current.Add(decimal.NewFromFloat(r.CurrentBid))
		recommended = recommended.Add(decimal.NewFromFloat(r.RecommendedBid))
	}

	net := recommended.Sub(current)
	s.CurrentTotalBid = current.Round(2).InexactFloat64()
	s.RecommendedTotalBid = recommended.Round(2).InexactFloat64()
	s.NetChange = net.Round(2).InexactFloat64()
	if current.IsPositive() {
		s.PercentChange = net.Div(current).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return s
}

// ByAction returns the recommendations with the given action, in order.
func (r *Result) ByAction(action bidding.Action) []bidding.Recommendation {
	return FilterByAction(r.Recommendations, action)
}

// Top returns the first n recommendations in insertion order. n <= 0 or
// n beyond the length returns all of them.
func (r *Result) Top(n int) []bidding.Recommendation {
	return TopN(r.Recommendations, n)
}

// Empty reports whether the run produced no actionable recommendations.
func (r *Result) Empty() bool {
	return len(r.Recommendations) == 0
}

// FilterByAction returns the recommendations in recs with the given action.
func FilterByAction(recs []bidding.Recommendation, action bidding.Action) []bidding.Recommendation {
	var out []bidding.Recommendation
	for _, rec := range recs {
		if rec.Action == action {
			out = append(out, rec)
		}
	}
	return out
}

// TopN returns the first n entries of recs without reordering.
func TopN(recs []bidding.Recommendation, n int) []bidding.Recommendation {
	if n <= 0 || n >= len(recs) {
		return recs
	}
	return recs[:n]
}
