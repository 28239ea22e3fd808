package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/blackwell-systems/bidctl/internal/analysis"
	"github.com/blackwell-systems/bidctl/internal/bidding"
)

// Config is the top-level bidctl configuration.
type Config struct {
	BidFloor        float64      `mapstructure:"bid_floor" validate:"gt=0"`
	Workers         int          `mapstructure:"workers" validate:"gte=0"`
	SkipInactive    bool         `mapstructure:"skip_inactive"`
	Top             int          `mapstructure:"top" validate:"gte=0"`
	ExportDir       string       `mapstructure:"export_dir" validate:"required"`
	Log             Log          `mapstructure:"log"`
	Output          Output       `mapstructure:"output"`
	UseDefaultRules bool         `mapstructure:"use_default_rules"`
	Rules           []RuleConfig `mapstructure:"rules" validate:"dive"`
	Negatives       Negatives    `mapstructure:"negatives"`
}

// Log defines logging preferences.
type Log struct {
	Level  string `mapstructure:"level" validate:"loglevel"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
	Width int  `mapstructure:"width" validate:"gte=40"`
}

// RuleConfig is a user-defined rule. Rules run after the built-in set when
// use_default_rules is on, in the order listed.
type RuleConfig struct {
	Name              string   `mapstructure:"name" yaml:"name" validate:"required"`
	Condition         string   `mapstructure:"condition" yaml:"condition" validate:"required"`
	Action            string   `mapstructure:"action" yaml:"action" validate:"required,action"`
	AdjustmentPercent *float64 `mapstructure:"adjustment_percent" yaml:"adjustment_percent,omitempty" validate:"omitempty,gte=-100,lte=1000"`
	Explanation       string   `mapstructure:"explanation" yaml:"explanation"`
}

// Negatives defines the negative keyword thresholds.
type Negatives struct {
	MinClicks  int64   `mapstructure:"min_clicks" validate:"gte=1"`
	MaxACOS    float64 `mapstructure:"max_acos" validate:"gt=0"`
	TargetACOS float64 `mapstructure:"target_acos" validate:"gt=0"`
}

// ErrNoRules is returned when the configuration leaves the engine empty.
var ErrNoRules = errors.New("no rules configured")

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied. BIDCTL_* environment
// variables override file values.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults.
	v.SetDefault("bid_floor", DefaultBidFloor)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("skip_inactive", false)
	v.SetDefault("top", DefaultTop)
	v.SetDefault("export_dir", DefaultExportDir)
	v.SetDefault("log.level", DefaultLog.Level)
	v.SetDefault("log.format", DefaultLog.Format)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("output.width", DefaultOutput.Width)
	v.SetDefault("use_default_rules", true)
	v.SetDefault("negatives.min_clicks", DefaultNegatives.MinClicks)
	v.SetDefault("negatives.max_acos", DefaultNegatives.MaxACOS)
	v.SetDefault("negatives.target_acos", DefaultNegatives.TargetACOS)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(ConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.ExportDir = expandPath(cfg.ExportDir)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	return &cfg, nil
}

// Spec converts the rule config into an engine rule spec.
func (r RuleConfig) Spec() bidding.RuleSpec {
	action, err := bidding.ParseAction(r.Action)
	if err != nil {
		action = bidding.Action(r.Action)
	}
	return bidding.RuleSpec{
		Name:              r.Name,
		Condition:         r.Condition,
		Action:            action,
		AdjustmentPercent: r.AdjustmentPercent,
		Explanation:       r.Explanation,
	}
}

// RuleConfigFromSpec is the inverse of Spec, used when printing rules as
// configuration.
func RuleConfigFromSpec(s bidding.RuleSpec) RuleConfig {
	return RuleConfig{
		Name:              s.Name,
		Condition:         s.Condition,
		Action:            string(s.Action),
		AdjustmentPercent: s.AdjustmentPercent,
		Explanation:       s.Explanation,
	}
}

// BuildRules compiles the effective rule list: the built-in rules when
// enabled, followed by the configured ones.
func (c *Config) BuildRules() ([]bidding.Rule, error) {
	var rules []bidding.Rule
	seen := make(map[string]bool)
	if c.UseDefaultRules {
		for _, r := range bidding.DefaultRules() {
			rules = append(rules, r)
			seen[r.Name()] = true
		}
	}
	for i, rc := range c.Rules {
		r, err := bidding.NewRule(rc.Spec())
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if seen[r.Name()] {
			return nil, fmt.Errorf("rules[%d]: %w: %q", i, bidding.ErrDuplicateRule, r.Name())
		}
		seen[r.Name()] = true
		rules = append(rules, r)
	}
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	return rules, nil
}

// NegativeConfig returns the negative keyword thresholds for analysis.
func (c *Config) NegativeConfig() analysis.NegativeConfig {
	return analysis.NegativeConfig{
		MinClicks:  c.Negatives.MinClicks,
		MaxACOS:    c.Negatives.MaxACOS,
		TargetACOS: c.Negatives.TargetACOS,
	}
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), DefaultConfigFile)
}
