// Package watcher re-analyzes a performance report on an interval and emits
// alerts when the recommendations change in a notable way.
package watcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blackwell-systems/bidctl/internal/analysis"
	"github.com/blackwell-systems/bidctl/internal/bidding"
	"github.com/blackwell-systems/bidctl/internal/campaign"
	"github.com/blackwell-systems/bidctl/internal/report"
)

// Analyzer turns rows into an analysis result. *analysis.Aggregator
// satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, rows []campaign.Row) (*analysis.Result, error)
}

// WatchState captures a point-in-time analysis of the watched report.
type WatchState struct {
	Timestamp       time.Time
	ModTime         time.Time
	Size            int64
	Rows            int
	Recommendations int
	Actions         map[bidding.Action]int
	AdSpend         float64
	NetChange       float64

	// listing key -> latest recommendation, for rows with a bid change.
	listings map[string]listing
}

type listing struct {
	action bidding.Action
	reason string
}

// Alert represents a notable event detected by the watcher.
type Alert struct {
	Level   string // "info", "warning", "critical"
	Title   string
	Message string
	Time    time.Time
}

// Watcher re-reads a report at a regular interval and emits alerts when
// notable changes are detected.
type Watcher struct {
	path          string
	interval      time.Duration
	analyzer      Analyzer
	load          func(path string) ([]campaign.Row, error)
	previous      *WatchState
	alertFn       func(Alert)     // callback for emitting alerts
	lastAlertKeys map[string]bool // dedup: suppress repeated identical alerts
	SpendLimit    float64         // total ad spend ceiling; 0 means no limit alert
}

// New creates a Watcher for the report at path.
func New(path string, interval time.Duration, a Analyzer, alertFn func(Alert)) *Watcher {
	return &Watcher{
		path:          path,
		interval:      interval,
		analyzer:      a,
		load:          report.Load,
		alertFn:       alertFn,
		lastAlertKeys: make(map[string]bool),
	}
}

// Run takes an initial snapshot, then checks at every interval. Blocks until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.previous == nil {
		initial, err := w.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("initial snapshot: %w", err)
		}
		w.previous = initial
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, a := range w.Check(ctx) {
				if w.alertFn != nil {
					w.alertFn(a)
				}
			}
		}
	}
}

// Baseline records s as the state later checks compare against.
func (w *Watcher) Baseline(s *WatchState) {
	w.previous = s
}

// Check performs a single check cycle. An unmodified report produces no
// alerts; otherwise the report is re-analyzed and compared against the
// previous state. Identical alerts are suppressed until the data changes.
func (w *Watcher) Check(ctx context.Context) []Alert {
	if w.previous != nil {
		info, err := os.Stat(w.path)
		if err == nil && info.ModTime().Equal(w.previous.ModTime) && info.Size() == w.previous.Size {
			return nil
		}
	}

	curr, err := w.Snapshot(ctx)
	if err != nil {
		// The previous state stays as the baseline until the report recovers.
		return w.dedup([]Alert{{
			Level:   "warning",
			Title:   "Snapshot failed",
			Message: fmt.Sprintf("Could not analyze report: %v", err),
			Time:    time.Now(),
		}})
	}

	var raw []Alert
	if w.previous != nil {
		raw = Compare(w.previous, curr)
	}

	if w.SpendLimit > 0 && curr.AdSpend > w.SpendLimit {
		raw = append(raw, Alert{
			Level:   "warning",
			Title:   "Ad spend limit exceeded",
			Message: fmt.Sprintf("Report shows $%.2f spent (limit: $%.2f)", curr.AdSpend, w.SpendLimit),
			Time:    time.Now(),
		})
	}

	w.previous = curr
	return w.dedup(raw)
}

// dedup drops alerts that were already raised by the previous check.
func (w *Watcher) dedup(raw []Alert) []Alert {
	currentKeys := make(map[string]bool, len(raw))
	var alerts []Alert
	for _, a := range raw {
		key := a.Level + ":" + a.Title + ":" + a.Message
		currentKeys[key] = true
		if !w.lastAlertKeys[key] {
			alerts = append(alerts, a)
		}
	}
	w.lastAlertKeys = currentKeys
	return alerts
}

// Snapshot loads and analyzes the report as it is on disk now.
func (w *Watcher) Snapshot(ctx context.Context) (*WatchState, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	rows, err := w.load(w.path)
	if err != nil {
		return nil, err
	}
	res, err := w.analyzer.Analyze(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("analyzing report: %w", err)
	}

	state := &WatchState{
		Timestamp:       time.Now(),
		ModTime:         info.ModTime(),
		Size:            info.Size(),
		Rows:            len(rows),
		Recommendations: res.Summary.TotalRecommendations,
		Actions:         make(map[bidding.Action]int, len(res.Summary.Actions)),
		NetChange:       res.Summary.NetChange,
		listings:        make(map[string]listing, len(res.Recommendations)),
	}
	for a, n := range res.Summary.Actions {
		state.Actions[a] = n
	}
	for _, r := range rows {
		state.AdSpend += r.AdSpend
	}
	state.AdSpend = bidding.RoundCents(state.AdSpend)
	for _, rec := range res.Recommendations {
		state.listings[listingKey(rec.CampaignID, rec.SKU)] = listing{action: rec.Action, reason: rec.Reason}
	}
	return state, nil
}

func listingKey(campaignID, sku string) string {
	return campaignID + "/" + sku
}
