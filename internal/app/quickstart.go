package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/bidctl/internal/config"
	"github.com/blackwell-systems/bidctl/internal/output"
)

var quickstartCmd = &cobra.Command{
	Use:   "quickstart",
	Short: "Walk through a first analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagNoColor || !isTerminal(cmd.OutOrStdout()) {
			output.SetNoColor(true)
		}
		renderQuickstart(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quickstartCmd)
}

type quickstartStep struct {
	title   string
	command string
	note    string
}

var quickstartSteps = []quickstartStep{
	{"Try the demo data", "bidctl analyze --sample", "Twenty generated listings, the same every run."},
	{"Analyze your report", "bidctl analyze report.csv", "CSV or JSON. eBay keyword reports work as downloaded."},
	{"Focus on one action", "bidctl analyze report.csv --action pause", "Also: increase, decrease."},
	{"Export for upload", "bidctl analyze report.csv --export", "Writes bid_recommendations_<timestamp>.csv to export_dir."},
	{"See why rows matched", "bidctl analyze report.csv --verbose", "Debug logging shows every rule evaluation."},
	{"Review the rules", "bidctl rules", "First matching rule wins. --yaml prints them as config."},
	{"Add your own rule", `bidctl rules add --name big_spender --condition "ad_spend > 50 and sales == 0" --action pause`, ""},
	{"Keep an eye on it", "bidctl watch report.csv --interval 10m", "Alerts when listings newly need a pause."},
	{"Cut wasted spend", "bidctl negatives search_queries.csv", "Lists queries to add as negative keywords."},
}

func renderQuickstart(w io.Writer) {
	fmt.Fprintln(w, output.Section("bidctl quickstart"))
	fmt.Fprintln(w)
	for i, step := range quickstartSteps {
		fmt.Fprintf(w, " %s %s\n", output.StyleBold.Render(fmt.Sprintf("%d.", i+1)), step.title)
		fmt.Fprintf(w, "    %s\n", output.StyleSuccess.Render("$ "+step.command))
		if step.note != "" {
			fmt.Fprintf(w, "    %s\n", output.StyleMuted.Render(step.note))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, " Settings live in %s.\n", config.ConfigPath())
}
