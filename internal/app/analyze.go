package app

import (
	"errors"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/bidctl/internal/analysis"
	"github.com/blackwell-systems/bidctl/internal/bidding"
	"github.com/blackwell-systems/bidctl/internal/campaign"
	"github.com/blackwell-systems/bidctl/internal/logging"
	"github.com/blackwell-systems/bidctl/internal/output"
	"github.com/blackwell-systems/bidctl/internal/report"
	"github.com/blackwell-systems/bidctl/internal/telemetry"
)

var (
	analyzeSample       bool
	analyzeAction       string
	analyzeTop          int
	analyzeExport       bool
	analyzeOutput       string
	analyzeSkipInactive bool
	analyzeWorkers      int
	analyzeMetricsFile  string
	analyzePushgateway  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [report]",
	Short: "Evaluate a report and recommend bid changes",
	Long: `Load an ad performance report (CSV or JSON), evaluate every row against
the bidding rules and print the recommended bid changes. Rows no rule matches
keep their bid and are left out of the results.

Use --sample to run against built-in demo data.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeSample, "sample", false, "Analyze built-in sample data")
	analyzeCmd.Flags().StringVar(&analyzeAction, "action", "", "Only show one action (increase, decrease, pause)")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", -1, "Number of recommendations to show (0 for all, default from config)")
	analyzeCmd.Flags().BoolVarP(&analyzeExport, "export", "e", false, "Export recommendations to CSV in the configured export_dir")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Export to this CSV file or directory (implies --export)")
	analyzeCmd.Flags().BoolVar(&analyzeSkipInactive, "skip-inactive", false, "Skip rows whose status is not Active")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", -1, "Evaluation workers (0 for GOMAXPROCS, default from config)")
	analyzeCmd.Flags().StringVar(&analyzeMetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	analyzeCmd.Flags().StringVar(&analyzePushgateway, "pushgateway", "", "Push Prometheus metrics to this Pushgateway URL")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	cfg := s.cfg

	var filter bidding.Action
	if analyzeAction != "" {
		if filter, err = bidding.ParseAction(analyzeAction); err != nil {
			return err
		}
	}

	rows, source, err := loadRows(args)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"source": source, "rows": len(rows)}).Info("Report loaded")

	workers := cfg.Workers
	if analyzeWorkers >= 0 {
		workers = analyzeWorkers
	}
	recorder := telemetry.NewRecorder()
	agg, err := s.newAggregator(workers, cfg.SkipInactive || analyzeSkipInactive, recorder)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := agg.Analyze(cmd.Context(), rows)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", source, err)
	}
	recorder.ObserveBatch(time.Since(start), time.Now())

	w := cmd.OutOrStdout()
	if flagJSON {
		if filter != "" {
			res.Recommendations = res.ByAction(filter)
			res.Summary = analysis.Summarize(res.Recommendations)
		}
		if err := writeJSON(w, res); err != nil {
			return err
		}
	} else {
		top := cfg.Top
		if analyzeTop >= 0 {
			top = analyzeTop
		}
		renderAnalysis(w, res, source, filter, top)
	}

	if analyzeExport || analyzeOutput != "" {
		target := analyzeOutput
		if target == "" {
			target = cfg.ExportDir
		}
		path, err := report.ExportFile(target, res.Recommendations, res.GeneratedAt)
		switch {
		case errors.Is(err, report.ErrNothingToExport):
			fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to export: no bid changes recommended.")
		case err != nil:
			return err
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "%s Recommendations exported to %s\n", output.StyleSuccess.Render("✓"), path)
		}
	}

	return flushMetrics(cmd, recorder, s.log)
}

// newAggregator builds the configured rule engine and wraps it for analysis.
func (s *session) newAggregator(workers int, skipInactive bool, obs bidding.Observer) (*analysis.Aggregator, error) {
	rules, err := s.cfg.BuildRules()
	if err != nil {
		return nil, err
	}
	opts := []bidding.Option{
		bidding.WithRules(rules...),
		bidding.WithBidFloor(s.cfg.BidFloor),
		bidding.WithWorkers(workers),
		bidding.WithLogger(logging.Component(s.log, "engine")),
	}
	if obs != nil {
		opts = append(opts, bidding.WithObserver(obs))
	}
	engine := bidding.NewEngine(opts...)
	return analysis.NewAggregator(engine, analysis.Options{
		SkipInactive: skipInactive,
		Logger:       logging.Component(s.log, "analysis"),
	}), nil
}

// loadRows reads the report named in args, or the sample data.
func loadRows(args []string) ([]campaign.Row, string, error) {
	switch {
	case analyzeSample && len(args) > 0:
		return nil, "", errors.New("pass either a report file or --sample, not both")
	case analyzeSample:
		return report.Sample(), "sample data", nil
	case len(args) == 1:
		rows, err := report.Load(args[0])
		if err != nil {
			return nil, "", err
		}
		return rows, args[0], nil
	}
	return nil, "", errors.New("no input: pass a report file or --sample")
}

func flushMetrics(cmd *cobra.Command, recorder *telemetry.Recorder, log *logrus.Logger) error {
	if analyzeMetricsFile != "" {
		if err := recorder.WriteTextfile(analyzeMetricsFile); err != nil {
			return err
		}
		log.WithField("path", analyzeMetricsFile).Debug("Metrics written")
	}
	if analyzePushgateway != "" {
		if err := recorder.Push(cmd.Context(), analyzePushgateway); err != nil {
			return err
		}
		log.WithField("url", analyzePushgateway).Debug("Metrics pushed")
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderAnalysis(w io.Writer, res *analysis.Result, source string, filter bidding.Action, top int) {
	fmt.Fprintln(w, output.Section("Bid Adjustment Summary"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, output.KeyValue("Source", source))
	fmt.Fprintln(w, output.KeyValue("Rows evaluated", fmt.Sprintf("%d", res.Evaluated)))
	if res.Skipped > 0 {
		fmt.Fprintln(w, output.KeyValue("Rows skipped", fmt.Sprintf("%d", res.Skipped)))
	}

	if res.Empty() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, " No bid adjustments needed. All campaigns are performing within targets!")
		return
	}

	sum := res.Summary
	fmt.Fprintln(w, output.KeyValue("Recommendations", fmt.Sprintf("%d", sum.TotalRecommendations)))
	fmt.Fprintln(w, output.KeyValue("Current total bids", output.Money(sum.CurrentTotalBid)))
	fmt.Fprintln(w, output.KeyValue("Recommended total", output.Money(sum.RecommendedTotalBid)))
	fmt.Fprintf(w, " %s%s %s\n",
		output.StyleLabel.Render("Net change"),
		output.Money(sum.NetChange),
		output.PercentArrow(sum.PercentChange))

	fmt.Fprintln(w, output.Section("Actions"))
	fmt.Fprintln(w)
	for _, a := range bidding.Actions {
		n := sum.Actions[a]
		if n == 0 {
			continue
		}
		fmt.Fprintf(w, " %s %s\n",
			output.StyleLabel.Render(output.ActionLabel(a)),
			output.ShareBar(n, sum.TotalRecommendations, 20))
	}

	recs := res.Recommendations
	title := "Recommendations"
	if filter != "" {
		recs = res.ByAction(filter)
		title = fmt.Sprintf("Recommendations (%s)", filter.Token())
	}
	shown := analysis.TopN(recs, top)

	fmt.Fprintln(w, output.Section(title))
	fmt.Fprintln(w)
	if len(shown) == 0 {
		fmt.Fprintln(w, " None.")
		return
	}

	tbl := output.NewTable("Campaign", "SKU", "Action", "Current", "New", "Change", "ACOS", "Reason").
		AlignRight(3, 4, 5, 6).
		MaxWidth(7, 60)
	for _, r := range shown {
		tbl.AddRow(
			r.CampaignID,
			r.SKU,
			output.ActionStyle(r.Action).Render(r.Action.Token()),
			output.Money(r.CurrentBid),
			output.Money(r.RecommendedBid),
			output.ChangeArrow(r.BidChange()),
			output.ACOS(r.Metrics),
			r.Reason,
		)
	}
	fmt.Fprint(w, tbl.Render())

	if len(shown) < len(recs) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, output.StyleMuted.Render(fmt.Sprintf(" Showing %d of %d. Use --top 0 to see all.", len(shown), len(recs))))
	}
}
