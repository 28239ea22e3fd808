package app

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/bidctl/internal/analysis"
	"github.com/blackwell-systems/bidctl/internal/output"
	"github.com/blackwell-systems/bidctl/internal/report"
)

var (
	negMinClicks  int64
	negMaxACOS    float64
	negTargetACOS float64
)

var negativesCmd = &cobra.Command{
	Use:   "negatives <query-report.csv>",
	Short: "Find search queries worth adding as negative keywords",
	Long: `Read a search query report, group rows by query and list the queries
that drew enough clicks to judge but either produced no sales or ran an ACOS
above the limit. Results are sorted by estimated wasted spend.`,
	Args: cobra.ExactArgs(1),
	RunE: runNegatives,
}

func init() {
	negativesCmd.Flags().Int64Var(&negMinClicks, "min-clicks", 0, "Minimum clicks before a query is judged (default from config)")
	negativesCmd.Flags().Float64Var(&negMaxACOS, "max-acos", 0, "Flag queries above this ACOS percentage (default from config)")
	negativesCmd.Flags().Float64Var(&negTargetACOS, "target-acos", 0, "Break-even ACOS used to estimate waste (default from config)")
	rootCmd.AddCommand(negativesCmd)
}

func runNegatives(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	nc := s.cfg.NegativeConfig()
	if negMinClicks > 0 {
		nc.MinClicks = negMinClicks
	}
	if negMaxACOS > 0 {
		nc.MaxACOS = negMaxACOS
	}
	if negTargetACOS > 0 {
		nc.TargetACOS = negTargetACOS
	}

	rows, err := report.LoadQueryCSV(args[0])
	if err != nil {
		return err
	}
	found := analysis.FindNegativeKeywords(rows, nc)
	s.log.WithFields(logrus.Fields{
		"queries":    len(rows),
		"candidates": len(found),
	}).Info("Negative keyword scan complete")

	if flagJSON {
		if found == nil {
			found = []analysis.NegativeKeyword{}
		}
		return writeJSON(cmd.OutOrStdout(), found)
	}
	renderNegatives(cmd.OutOrStdout(), found, nc)
	return nil
}

func renderNegatives(w io.Writer, found []analysis.NegativeKeyword, nc analysis.NegativeConfig) {
	fmt.Fprintln(w, output.Section("Negative Keyword Candidates"))
	fmt.Fprintln(w)
	if len(found) == 0 {
		fmt.Fprintf(w, " No queries with %d+ clicks are losing money. Nothing to exclude.\n", nc.MinClicks)
		return
	}

	var wasted float64
	tbl := output.NewTable("Search Query", "Clicks", "Ad Spend", "Revenue", "ACOS", "Wasted", "Reason").
		AlignRight(1, 2, 3, 4, 5).
		MaxWidth(0, 40)
	for _, k := range found {
		acos := "N/A"
		if k.ACOS != nil {
			acos = fmt.Sprintf("%.1f%%", *k.ACOS)
		}
		tbl.AddRow(
			k.SearchQuery,
			fmt.Sprintf("%d", k.Clicks),
			output.Money(k.AdSpend),
			output.Money(k.Revenue),
			acos,
			output.StyleError.Render(output.Money(k.WastedSpend)),
			k.Recommendation,
		)
		wasted += k.WastedSpend
	}
	fmt.Fprint(w, tbl.Render())
	fmt.Fprintln(w)
	fmt.Fprintln(w, output.KeyValue("Candidates", fmt.Sprintf("%d", len(found))))
	fmt.Fprintln(w, output.KeyValue("Estimated waste", output.Money(wasted)))
}
