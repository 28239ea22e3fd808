package watcher

import (
	"fmt"
	"sort"
	"time"

	"github.com/blackwell-systems/bidctl/internal/bidding"
)

// maxListingAlerts caps per-listing alerts in one cycle; beyond it a single
// summary alert is emitted instead.
const maxListingAlerts = 3

// Compare detects notable changes between two watch states and returns alerts.
// It checks for critical, warning, and info-level changes.
func Compare(prev, curr *WatchState) []Alert {
	var alerts []Alert

	alerts = append(alerts, compareCritical(prev, curr)...)
	alerts = append(alerts, compareWarning(prev, curr)...)
	alerts = append(alerts, compareInfo(prev, curr)...)

	return alerts
}

// compareCritical reports listings that newly crossed into a pause.
func compareCritical(prev, curr *WatchState) []Alert {
	var alerts []Alert
	now := time.Now()

	paused := changedListings(prev, curr, func(was, is bidding.Action) bool {
		return is == bidding.ActionPause && was != bidding.ActionPause
	})
	if len(paused) > maxListingAlerts {
		return append(alerts, Alert{
			Level:   "critical",
			Title:   "Listings newly paused",
			Message: fmt.Sprintf("%d listings now recommended for pause", len(paused)),
			Time:    now,
		})
	}
	for _, key := range paused {
		alerts = append(alerts, Alert{
			Level:   "critical",
			Title:   fmt.Sprintf("Pause recommended: %s", key),
			Message: curr.listings[key].reason,
			Time:    now,
		})
	}
	return alerts
}

// compareWarning detects warning-level changes.
func compareWarning(prev, curr *WatchState) []Alert {
	var alerts []Alert
	now := time.Now()

	// Most recommendations now cut bids.
	prevShare, currShare := cutShare(prev), cutShare(curr)
	if currShare > 0.50 && prevShare <= 0.50 {
		alerts = append(alerts, Alert{
			Level:   "warning",
			Title:   "Bid cuts dominate",
			Message: fmt.Sprintf("%.0f%% of recommendations decrease or pause (was %.0f%%)", currShare*100, prevShare*100),
			Time:    now,
		})
	}

	// Ad spend grew by more than 20%.
	if prev.AdSpend > 0 {
		increase := (curr.AdSpend - prev.AdSpend) / prev.AdSpend
		if increase > 0.20 {
			alerts = append(alerts, Alert{
				Level:   "warning",
				Title:   "Ad spend spike",
				Message: fmt.Sprintf("Increased from $%.2f to $%.2f (+%.0f%%)", prev.AdSpend, curr.AdSpend, increase*100),
				Time:    now,
			})
		}
	}

	return alerts
}

// compareInfo detects informational changes.
func compareInfo(prev, curr *WatchState) []Alert {
	var alerts []Alert
	now := time.Now()

	if curr.Rows != prev.Rows || curr.Recommendations != prev.Recommendations {
		alerts = append(alerts, Alert{
			Level:   "info",
			Title:   "Report updated",
			Message: fmt.Sprintf("%d rows, %d recommendations (was %d)", curr.Rows, curr.Recommendations, prev.Recommendations),
			Time:    now,
		})
	}

	recovered := changedListings(prev, curr, func(was, is bidding.Action) bool {
		return was == bidding.ActionPause && is == bidding.ActionIncrease
	})
	for _, key := range recovered {
		alerts = append(alerts, Alert{
			Level:   "info",
			Title:   fmt.Sprintf("Listing recovered: %s", key),
			Message: "Previously paused, now recommended for a bid increase",
			Time:    now,
		})
	}

	return alerts
}

// changedListings returns the sorted keys of listings whose action moved in
// the way match describes. Listings absent from prev count as no_change.
func changedListings(prev, curr *WatchState, match func(was, is bidding.Action) bool) []string {
	var keys []string
	for key, l := range curr.listings {
		was := bidding.ActionNoChange
		if p, ok := prev.listings[key]; ok {
			was = p.action
		}
		if match(was, l.action) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// cutShare is the fraction of recommendations that decrease or pause.
func cutShare(s *WatchState) float64 {
	if s.Recommendations == 0 {
		return 0
	}
	cuts := s.Actions[bidding.ActionDecrease] + s.Actions[bidding.ActionPause]
	return float64(cuts) / float64(s.Recommendations)
}
