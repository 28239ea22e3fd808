package bidding

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/bidctl/internal/campaign"
)

// sequentialBatch is the batch size below which EvaluateBatch does not fan
// out to workers.
const sequentialBatch = 256

// Observer receives engine events. Implementations must be safe for
// concurrent use.
type Observer interface {
	RowEvaluated(rec Recommendation)
	ConditionFailed(rule string, err error)
}

// Engine evaluates rows against an ordered rule list. The first rule whose
// condition holds decides the recommendation.
//
// The rule list is copy-on-write: AddRule and RemoveRule publish a new slice,
// and evaluation always works on the slice it picked up when it started.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
	index map[string]int

	floor    float64
	workers  int
	log      *logrus.Entry
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the built-in rule set. Later duplicates of a name are
// ignored.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.rules = nil
		e.index = make(map[string]int, len(rules))
		for _, r := range rules {
			if _, dup := e.index[r.Name()]; dup {
				continue
			}
			e.index[r.Name()] = len(e.rules)
			e.rules = append(e.rules, r)
		}
	}
}

// WithBidFloor sets the minimum bid a decrease may produce.
func WithBidFloor(floor float64) Option {
	return func(e *Engine) {
		if floor > 0 {
			e.floor = floor
		}
	}
}

// WithWorkers bounds the number of goroutines EvaluateBatch uses. Zero or
// negative means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithLogger sets the logger used for rule evaluation warnings.
func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an engine loaded with the built-in rules unless
// WithRules says otherwise.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		floor: DefaultBidFloor,
		log:   logrus.NewEntry(logrus.StandardLogger()).WithField("component", "engine"),
	}
	WithRules(DefaultRules()...)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddRule appends r at the lowest priority.
func (e *Engine) AddRule(r Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, dup := e.index[r.Name()]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateRule, r.Name())
	}
	next := make([]Rule, len(e.rules), len(e.rules)+1)
	copy(next, e.rules)
	e.index[r.Name()] = len(next)
	e.rules = append(next, r)
	return nil
}

// RemoveRule drops the named rule. It reports whether a rule was removed;
// removing an unknown name is a no-op.
func (e *Engine) RemoveRule(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.index[name]
	if !ok {
		return false
	}
	next := make([]Rule, 0, len(e.rules)-1)
	next = append(next, e.rules[:pos]...)
	next = append(next, e.rules[pos+1:]...)
	delete(e.index, name)
	for i := pos; i < len(next); i++ {
		e.index[next[i].Name()] = i
	}
	e.rules = next
	return true
}

// Rule returns the named rule.
func (e *Engine) Rule(name string) (Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pos, ok := e.index[name]
	if !ok {
		return Rule{}, false
	}
	return e.rules[pos], true
}

// Rules returns the current rules in priority order.
func (e *Engine) Rules() []Rule {
	snap := e.snapshot()
	out := make([]Rule, len(snap))
	copy(out, snap)
	return out
}

// Len returns the number of rules.
func (e *Engine) Len() int {
	return len(e.snapshot())
}

// Summaries returns display rows for every rule in priority order.
func (e *Engine) Summaries() []RuleSummary {
	snap := e.snapshot()
	out := make([]RuleSummary, len(snap))
	for i, r := range snap {
		out[i] = r.Summary()
	}
	return out
}

func (e *Engine) snapshot() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules
}

// Evaluate produces the recommendation for a single row.
func (e *Engine) Evaluate(row campaign.Row) Recommendation {
	return e.evaluate(e.snapshot(), row)
}

// EvaluateBatch evaluates every row independently. The result has one
// recommendation per row, in input order. The only error is ctx's.
func (e *Engine) EvaluateBatch(ctx context.Context, rows []campaign.Row) ([]Recommendation, error) {
	out := make([]Recommendation, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	rules := e.snapshot()

	workers := e.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if len(rows) < sequentialBatch || workers == 1 {
		for i, row := range rows {
			if i%sequentialBatch == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			out[i] = e.evaluate(rules, row)
		}
		return out, nil
	}

	chunk := (len(rows) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if (i-start)%sequentialBatch == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				out[i] = e.evaluate(rules, rows[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) evaluate(rules []Rule, row campaign.Row) Recommendation {
	row = row.Normalize()
	m := campaign.Calculate(row)

	rec := Recommendation{
		CampaignID:     row.CampaignID,
		SKU:            row.SKU,
		CurrentBid:     m.CurrentBid,
		RecommendedBid: m.CurrentBid,
		Action:         ActionNoChange,
		Reason:         NoMatchReason,
		Metrics:        m,
	}

	for _, r := range rules {
		ok, err := r.Matches(m)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"rule":        r.Name(),
				"condition":   r.Condition(),
				"campaign_id": row.CampaignID,
				"sku":         row.SKU,
			}).WithError(err).Warn("Rule condition failed; treating as no match")
			if e.observer != nil {
				e.observer.ConditionFailed(r.Name(), err)
			}
			continue
		}
		if !ok {
			continue
		}
		adj, _ := r.Adjustment()
		rec.RecommendedBid = ComputeBid(r.Action(), m.CurrentBid, adj, e.floor)
		rec.Action = r.Action()
		rec.Reason = r.Explain(m)
		rec.Rule = r.Name()
		break
	}

	if e.observer != nil {
		e.observer.RowEvaluated(rec)
	}
	return rec
}
