package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackwell-systems/bidctl/internal/analysis"
	"github.com/blackwell-systems/bidctl/internal/bidding"
	"github.com/blackwell-systems/bidctl/internal/logging"
)

const reportHeader = "Campaign ID,SKU,Current Bid,Impressions,Clicks,Ad Spend,Sales,Revenue\n"

// writeReport writes a report and stamps it with mtime so successive writes
// are always seen as modifications.
func writeReport(t *testing.T, path, body string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(reportHeader+body), 0o644); err != nil {
		t.Fatalf("failed to write report: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}
}

func newTestWatcher(path string, alertFn func(Alert)) *Watcher {
	log := logging.Component(logging.Discard(), "test")
	engine := bidding.NewEngine(bidding.WithLogger(log))
	agg := analysis.NewAggregator(engine, analysis.Options{Logger: log})
	return New(path, 10*time.Millisecond, agg, alertFn)
}

func hasAlert(alerts []Alert, level, title string) bool {
	for _, a := range alerts {
		if a.Level == level && a.Title == title {
			return true
		}
	}
	return false
}

func TestSnapshot_MissingReport(t *testing.T) {
	w := newTestWatcher("/nonexistent/report.csv", nil)
	if _, err := w.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error for missing report")
	}
}

func TestSnapshot_Counts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	writeReport(t, path, "C1,S1,1.00,1000,50,10,5,100\nC2,S2,2.00,1000,50,4,0,0\n", time.Now())

	w := newTestWatcher(path, nil)
	state, err := w.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Rows != 2 {
		t.Errorf("expected 2 rows, got %d", state.Rows)
	}
	if state.Recommendations != 1 {
		t.Errorf("expected 1 recommendation, got %d", state.Recommendations)
	}
	if state.Actions[bidding.ActionIncrease] != 1 {
		t.Errorf("expected 1 increase, got %d", state.Actions[bidding.ActionIncrease])
	}
	if state.AdSpend != 14 {
		t.Errorf("expected ad spend 14, got %v", state.AdSpend)
	}
	if got := state.listings["C1/S1"].action; got != bidding.ActionIncrease {
		t.Errorf("expected C1/S1 increase, got %q", got)
	}
}

func TestCheck_DetectsNewPause(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	base := time.Now().Add(-time.Hour)
	writeReport(t, path, "C1,S1,1.00,1000,50,10,5,100\nC2,S2,2.00,1000,50,4,0,0\n", base)

	w := newTestWatcher(path, nil)
	ctx := context.Background()
	if alerts := w.Check(ctx); len(alerts) != 0 {
		t.Fatalf("first check establishes the baseline, got %d alerts", len(alerts))
	}

	// Unchanged file: nothing to report.
	if alerts := w.Check(ctx); alerts != nil {
		t.Errorf("expected no alerts for unmodified report, got %v", alerts)
	}

	writeReport(t, path, "C1,S1,1.00,1000,50,10,5,100\nC2,S2,2.00,1000,50,15,0,0\n", base.Add(time.Minute))
	alerts := w.Check(ctx)

	if !hasAlert(alerts, "critical", "Pause recommended: C2/S2") {
		t.Errorf("expected critical pause alert, got %v", alerts)
	}
	if !hasAlert(alerts, "info", "Report updated") {
		t.Errorf("expected report updated info alert, got %v", alerts)
	}
	if !hasAlert(alerts, "warning", "Ad spend spike") {
		t.Errorf("expected ad spend spike warning, got %v", alerts)
	}
}

func TestCheck_SpendLimitDeduplicated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	base := time.Now().Add(-time.Hour)
	body := "C1,S1,1.00,1000,50,30,5,100\n"
	writeReport(t, path, body, base)

	w := newTestWatcher(path, nil)
	w.SpendLimit = 20
	ctx := context.Background()

	alerts := w.Check(ctx)
	if !hasAlert(alerts, "warning", "Ad spend limit exceeded") {
		t.Fatalf("expected spend limit alert, got %v", alerts)
	}

	// Same content, new mtime: the repeated limit alert is suppressed.
	writeReport(t, path, body, base.Add(time.Minute))
	if alerts := w.Check(ctx); len(alerts) != 0 {
		t.Errorf("expected repeated alert to be suppressed, got %v", alerts)
	}
}

func TestCheck_ReportRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	writeReport(t, path, "C1,S1,1.00,1000,50,10,5,100\n", time.Now())

	w := newTestWatcher(path, nil)
	w.Check(context.Background())

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	alerts := w.Check(context.Background())
	if !hasAlert(alerts, "warning", "Snapshot failed") {
		t.Errorf("expected snapshot failure warning, got %v", alerts)
	}

	// Still missing on the next tick: the same failure is not repeated.
	if alerts := w.Check(context.Background()); len(alerts) != 0 {
		t.Errorf("expected repeated snapshot failure to be suppressed, got %v", alerts)
	}
}

func TestRun_EmitsAlertsUntilCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	base := time.Now().Add(-time.Hour)
	writeReport(t, path, "C1,S1,1.00,1000,50,4,0,0\n", base)

	got := make(chan Alert, 16)
	w := newTestWatcher(path, func(a Alert) { got <- a })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	initial, err := w.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	w.Baseline(initial)
	go func() { done <- w.Run(ctx) }()

	writeReport(t, path, "C1,S1,1.00,1000,50,12,0,0\n", base.Add(time.Minute))

	select {
	case a := <-got:
		if a.Level == "" || a.Title == "" {
			t.Errorf("unexpected empty alert %+v", a)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for alert")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
