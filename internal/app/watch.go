package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/bidctl/internal/watcher"
)

var (
	watchInterval   string
	watchQuiet      bool
	watchNotify     bool
	watchSpendLimit float64
)

// minWatchInterval keeps the loop from re-parsing large reports back to back.
const minWatchInterval = 5 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch <report>",
	Short: "Re-analyze a report when it changes and alert on notable shifts",
	Long: `Poll a report file and re-run the analysis whenever it is modified.
Alerts are raised when listings newly need a pause, when bid cuts start to
dominate, when ad spend jumps and when a paused listing recovers.

Examples:
  bidctl watch report.csv                     # check every 5 minutes
  bidctl watch report.csv --interval 30s      # check every 30 seconds
  bidctl watch report.csv --spend-limit 500   # alert when spend passes $500
  bidctl watch report.csv --notify            # also send desktop notifications`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchInterval, "interval", "5m", "Check interval as duration string (e.g. 30s, 5m)")
	watchCmd.Flags().BoolVar(&watchQuiet, "quiet", false, "Suppress terminal output, only send notifications")
	watchCmd.Flags().BoolVar(&watchNotify, "notify", false, "Send desktop notifications for alerts")
	watchCmd.Flags().Float64Var(&watchSpendLimit, "spend-limit", 0, "Alert when total ad spend in the report exceeds this amount")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	interval, err := time.ParseDuration(watchInterval)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", watchInterval, err)
	}
	if interval < minWatchInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minWatchInterval, interval)
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	agg, err := s.newAggregator(s.cfg.Workers, s.cfg.SkipInactive, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	out := cmd.OutOrStdout()
	alertFn := func(a watcher.Alert) {
		s.log.WithFields(logrus.Fields{"level": a.Level, "title": a.Title}).Debug("Alert raised")
		if watchNotify {
			_ = watcher.Notify(a)
		}
		if !watchQuiet {
			printAlert(out, a)
		}
	}

	w := watcher.New(args[0], interval, agg, alertFn)
	w.SpendLimit = watchSpendLimit

	initial, err := w.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial snapshot failed: %w", err)
	}
	w.Baseline(initial)

	if !watchQuiet {
		fmt.Fprintf(out, "bidctl watching %s... (checking every %s)\n", args[0], interval)
		fmt.Fprintf(out, "[%s] %s Baseline: %d rows, %d recommendations\n",
			time.Now().Format("15:04:05"), checkMark(), initial.Rows, initial.Recommendations)
	}

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		if !watchQuiet {
			fmt.Fprintln(out, "\nStopped.")
		}
		return nil
	}
	return err
}

// printAlert formats and prints an alert to the terminal.
func printAlert(w io.Writer, a watcher.Alert) {
	fmt.Fprintf(w, "[%s] %s %s\n", a.Time.Format("15:04:05"), alertIcon(a.Level), a.Title)
	if a.Message != "" {
		fmt.Fprintf(w, "         %s\n", a.Message)
	}
}

// alertIcon returns the terminal indicator for an alert level.
func alertIcon(level string) string {
	switch level {
	case "critical":
		return "\xf0\x9f\x94\xb4" // red circle
	case "warning":
		return "\xe2\x9a\xa0\xef\xb8\x8f" // warning sign
	case "info":
		return "\xe2\x9c\x93" // check mark
	default:
		return " "
	}
}

func checkMark() string {
	return "\xe2\x9c\x93"
}
