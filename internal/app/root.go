// Package app contains the Cobra command tree for bidctl.
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/bidctl/internal/config"
	"github.com/blackwell-systems/bidctl/internal/logging"
	"github.com/blackwell-systems/bidctl/internal/output"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "bidctl",
	Short: "Rule-based bid recommendations for marketplace ad campaigns",
	Long: `bidctl reads advertising performance reports, derives ACOS, CTR and
CPC for every listing, and runs an ordered set of bidding rules to recommend
bid increases, decreases and pauses. Recommendations can be exported to CSV
for upload.

Run 'bidctl' with no arguments to see the available commands.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "bidctl", appVersion)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Use a subcommand:")
		fmt.Fprintln(w, "  analyze     Evaluate a report and recommend bid changes")
		fmt.Fprintln(w, "  rules       List, validate and add bidding rules")
		fmt.Fprintln(w, "  negatives   Find search queries worth adding as negatives")
		fmt.Fprintln(w, "  watch       Re-analyze a report when it changes")
		fmt.Fprintln(w, "  quickstart  Walk through a first analysis")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/bidctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")
}

// session bundles what every command needs once flags are parsed.
type session struct {
	cfg *config.Config
	log *logrus.Logger
}

// newSession loads and validates config, builds the logger and settles
// whether output is colored.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if flagVerbose {
		level = logrus.DebugLevel.String()
	}
	log := logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())

	output.SetNoColor(flagNoColor || !cfg.Output.Color || !isTerminal(cmd.OutOrStdout()))

	log.WithFields(logrus.Fields{
		"config":  flagConfig,
		"version": appVersion,
	}).Debug("Session ready")
	return &session{cfg: cfg, log: log}, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
