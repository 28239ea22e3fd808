package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/bidctl/internal/bidding"
	"github.com/blackwell-systems/bidctl/internal/campaign"
	"github.com/blackwell-systems/bidctl/internal/condition"
	"github.com/blackwell-systems/bidctl/internal/config"
	"github.com/blackwell-systems/bidctl/internal/output"
)

var rulesYAML bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the active bidding rules",
	Long: `List the bidding rules in priority order. The first rule whose condition
holds decides a row's recommendation.

Conditions may reference these metrics:
  ` + strings.Join(campaign.Names(), ", "),
	Args: cobra.NoArgs,
	RunE: runRules,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Check a configuration file and its rules",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesValidate,
}

var (
	addName        string
	addCondition   string
	addAction      string
	addPercent     float64
	addExplanation string
)

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a custom rule to the configuration file",
	Long: `Validate a custom rule and append it to the configuration file given by
--config, or ~/.config/bidctl/config.yaml. The file is created if missing.
Custom rules run after the built-in ones.`,
	Args: cobra.NoArgs,
	RunE: runRulesAdd,
}

func init() {
	rulesCmd.Flags().BoolVar(&rulesYAML, "yaml", false, "Print the rules as configuration YAML")

	rulesAddCmd.Flags().StringVar(&addName, "name", "", "Unique rule name")
	rulesAddCmd.Flags().StringVar(&addCondition, "condition", "", `Condition, e.g. "acos < 20 and sales > 3"`)
	rulesAddCmd.Flags().StringVar(&addAction, "action", "", "Action: increase, decrease or pause")
	rulesAddCmd.Flags().Float64Var(&addPercent, "percent", 10, "Adjustment percentage; negated for decrease when positive")
	rulesAddCmd.Flags().StringVar(&addExplanation, "explanation", "", "Explanation template, e.g. \"ACOS {acos:.1f}%\"")
	_ = rulesAddCmd.MarkFlagRequired("name")
	_ = rulesAddCmd.MarkFlagRequired("condition")
	_ = rulesAddCmd.MarkFlagRequired("action")

	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rootCmd.AddCommand(rulesCmd)
}

// rulesDocument is the YAML shape printed by --yaml.
type rulesDocument struct {
	UseDefaultRules bool                `yaml:"use_default_rules"`
	Rules           []config.RuleConfig `yaml:"rules"`
}

func runRules(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	rules, err := s.cfg.BuildRules()
	if err != nil {
		return err
	}
	engine := bidding.NewEngine(bidding.WithRules(rules...))

	w := cmd.OutOrStdout()
	switch {
	case flagJSON:
		return writeJSON(w, engine.Summaries())
	case rulesYAML:
		doc := rulesDocument{UseDefaultRules: false}
		for _, r := range engine.Rules() {
			doc.Rules = append(doc.Rules, config.RuleConfigFromSpec(r.Spec()))
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding rules: %w", err)
		}
		return enc.Close()
	}

	renderRules(w, engine.Summaries())
	return nil
}

func renderRules(w io.Writer, summaries []bidding.RuleSummary) {
	fmt.Fprintln(w, output.Section("Active Bidding Rules"))
	fmt.Fprintln(w)
	for i, r := range summaries {
		fmt.Fprintf(w, " %d. %s\n", i+1, output.StyleBold.Render(strings.ToUpper(r.Name)))
		fmt.Fprintf(w, "    Condition: %s\n", r.Condition)
		fmt.Fprintf(w, "    Action:    %s %s\n", output.ActionStyle(r.Action).Render(string(r.Action)), output.StyleMuted.Render(r.Adjustment))
		fmt.Fprintln(w)
	}
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		path = config.ConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagNoColor || !isTerminal(cmd.OutOrStdout()) {
		output.SetNoColor(true)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", output.StyleError.Render("✗"), path)
		return err
	}
	rules, _ := cfg.BuildRules()
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d rules valid (%d custom)\n",
		output.StyleSuccess.Render("✓"), path, len(rules), len(cfg.Rules))
	return nil
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	action, err := bidding.ParseAction(addAction)
	if err != nil {
		return err
	}
	rc := config.RuleConfig{
		Name:        addName,
		Condition:   addCondition,
		Action:      string(action),
		Explanation: addExplanation,
	}
	switch action {
	case bidding.ActionIncrease, bidding.ActionDecrease:
		pct := addPercent
		if action == bidding.ActionDecrease && pct > 0 {
			pct = -pct
		}
		rc.AdjustmentPercent = &pct
	}
	if rc.Explanation == "" {
		rc.Explanation = fmt.Sprintf("Custom rule %s matched.", addName)
	}

	path := flagConfig
	if path == "" {
		path = config.ConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.Rules = append(cfg.Rules, rc)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := appendRule(path, rc); err != nil {
		return err
	}
	if flagNoColor || !isTerminal(cmd.OutOrStdout()) {
		output.SetNoColor(true)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Rule %q added to %s\n", output.StyleSuccess.Render("✓"), addName, path)
	for _, name := range unknownMetrics(rc.Condition) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s condition reads %q, which is not a metric; the rule will not match until it is\n",
			output.StyleWarning.Render("!"), name)
	}
	return nil
}

// unknownMetrics lists the names in a condition that no metric provides.
func unknownMetrics(cond string) []string {
	expr, err := condition.Compile(cond)
	if err != nil {
		return nil
	}
	var out []string
	for _, name := range expr.Names() {
		if !campaign.IsMetric(name) {
			out = append(out, name)
		}
	}
	return out
}

// appendRule adds rc to the rules list of the YAML file at path, keeping the
// rest of the document intact.
func appendRule(path string, rc config.RuleConfig) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var existing []any
	if v, ok := doc["rules"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s: rules must be a list", path)
		}
		existing = list
	}
	doc["rules"] = append(existing, rc)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
