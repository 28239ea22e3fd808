package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/bidctl/internal/output"
)

// resetFlags restores every package-level flag variable so one command run
// does not leak into the next.
func resetFlags() {
	flagNoColor, flagJSON, flagVerbose, flagConfig = false, false, false, ""

	analyzeSample, analyzeAction, analyzeTop = false, "", -1
	analyzeExport, analyzeOutput, analyzeSkipInactive = false, "", false
	analyzeWorkers, analyzeMetricsFile, analyzePushgateway = -1, "", ""

	rulesYAML = false
	addName, addCondition, addAction, addPercent, addExplanation = "", "", "", 10, ""

	negMinClicks, negMaxACOS, negTargetACOS = 0, 0, 0

	watchInterval, watchQuiet, watchNotify, watchSpendLimit = "5m", false, false, 0
}

// run executes the root command with args against an isolated config file
// and returns stdout and stderr.
func run(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(func() {
		resetFlags()
		output.SetNoColor(false)
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func tempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return path
}

func TestCommands_Registered(t *testing.T) {
	want := map[string]bool{"analyze": false, "rules": false, "negatives": false, "quickstart": false, "watch": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s subcommand not registered on rootCmd", name)
		}
	}

	sub := map[string]bool{}
	for _, cmd := range rulesCmd.Commands() {
		sub[cmd.Name()] = true
	}
	assert.True(t, sub["validate"], "rules validate not registered")
	assert.True(t, sub["add"], "rules add not registered")
}

func TestRoot_Dashboard(t *testing.T) {
	stdout, _, err := run(t, tempConfig(t, ""))
	require.NoError(t, err)
	for _, name := range []string{"analyze", "rules", "negatives", "quickstart"} {
		assert.Contains(t, stdout, name)
	}
}

func TestAnalyze_SampleJSON(t *testing.T) {
	stdout, _, err := run(t, tempConfig(t, ""), "analyze", "--sample", "--json")
	require.NoError(t, err)

	var res struct {
		RunID           string `json:"run_id"`
		Evaluated       int    `json:"evaluated"`
		Recommendations []struct {
			CampaignID     string  `json:"campaign_id"`
			Action         string  `json:"action"`
			CurrentBid     float64 `json:"current_bid"`
			RecommendedBid float64 `json:"recommended_bid"`
			Rule           string  `json:"rule"`
			Metrics        struct {
				ACOS *float64 `json:"acos"`
			} `json:"metrics"`
		} `json:"recommendations"`
		Summary struct {
			TotalRecommendations int `json:"total_recommendations"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 20, res.Evaluated)
	assert.Equal(t, len(res.Recommendations), res.Summary.TotalRecommendations)

	var paused bool
	for _, r := range res.Recommendations {
		assert.NotEqual(t, "no_change", r.Action)
		if r.CampaignID == "CAM_006" {
			paused = true
			assert.Equal(t, "pause", r.Action)
			assert.Equal(t, "no_conversion", r.Rule)
			assert.Equal(t, 0.0, r.RecommendedBid)
			assert.Nil(t, r.Metrics.ACOS, "ACOS without revenue encodes as null")
		}
	}
	assert.True(t, paused, "the zero-sales sample row should be paused")
}

func TestAnalyze_ActionFilterJSON(t *testing.T) {
	stdout, _, err := run(t, tempConfig(t, ""), "analyze", "--sample", "--json", "--action", "PAUSE")
	require.NoError(t, err)

	var res struct {
		Recommendations []struct {
			Action string `json:"action"`
		} `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	require.NotEmpty(t, res.Recommendations)
	for _, r := range res.Recommendations {
		assert.Equal(t, "pause", r.Action)
	}
}

func TestAnalyze_TableAndExport(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.csv")
	metrics := filepath.Join(dir, "bidctl.prom")

	stdout, stderr, err := run(t, tempConfig(t, ""),
		"analyze", "--sample", "--top", "3", "-o", target, "--metrics-file", metrics)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Bid Adjustment Summary")
	assert.Contains(t, stdout, "sample data")
	assert.Contains(t, stdout, "Showing 3 of")
	assert.NotContains(t, stdout, "\x1b[", "output to a buffer is never colored")
	assert.Contains(t, stderr, "exported to "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Campaign ID,SKU,"))

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "bidctl_rows_evaluated_total 20")
}

func TestAnalyze_ReportFile(t *testing.T) {
	report := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(report, []byte(
		"Campaign ID,SKU,Current Bid,Impressions,Clicks,Ad Spend,Sales,Revenue\n"+
			"C1,S1,1.00,1000,50,10,5,100\n"+
			"C2,S2,2.00,1000,50,4,0,0\n"), 0644))

	stdout, _, err := run(t, tempConfig(t, ""), "analyze", report, "--json")
	require.NoError(t, err)

	var res struct {
		Evaluated       int `json:"evaluated"`
		Recommendations []struct {
			CampaignID     string  `json:"campaign_id"`
			RecommendedBid float64 `json:"recommended_bid"`
		} `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, 2, res.Evaluated)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, "C1", res.Recommendations[0].CampaignID)
	assert.Equal(t, 1.1, res.Recommendations[0].RecommendedBid)
}

func TestAnalyze_InputErrors(t *testing.T) {
	cfg := tempConfig(t, "")

	_, _, err := run(t, cfg, "analyze")
	assert.ErrorContains(t, err, "no input")

	_, _, err = run(t, cfg, "analyze", "--sample", "report.csv")
	assert.ErrorContains(t, err, "not both")

	_, _, err = run(t, cfg, "analyze", "--sample", "--action", "boost")
	assert.ErrorContains(t, err, "unknown action")
}

func TestAnalyze_InvalidConfig(t *testing.T) {
	cfg := tempConfig(t, "bid_floor: 0\n")
	_, _, err := run(t, cfg, "analyze", "--sample")
	assert.ErrorContains(t, err, "configuration validation failed")
}

func TestRules_YAML(t *testing.T) {
	stdout, _, err := run(t, tempConfig(t, ""), "rules", "--yaml")
	require.NoError(t, err)

	var doc rulesDocument
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &doc))
	assert.False(t, doc.UseDefaultRules)
	require.Len(t, doc.Rules, 5)
	assert.Equal(t, "high_performance", doc.Rules[0].Name)
	assert.Equal(t, "acos < 30 and sales > 0", doc.Rules[0].Condition)
}

func TestRules_Table(t *testing.T) {
	stdout, _, err := run(t, tempConfig(t, ""), "rules")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1. HIGH_PERFORMANCE")
	assert.Contains(t, stdout, "5. EXCELLENT_PERFORMANCE")
}

func TestRules_AddThenValidate(t *testing.T) {
	cfg := tempConfig(t, "top: 5\n")

	stdout, _, err := run(t, cfg, "rules", "add",
		"--name", "big_spender",
		"--condition", "ad_spend > 50 and sales == 0",
		"--action", "decrease",
		"--percent", "25")
	require.NoError(t, err)
	assert.Contains(t, stdout, `Rule "big_spender" added`)

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, 5, doc["top"], "existing settings survive")
	rules, ok := doc["rules"].([]any)
	require.True(t, ok)
	require.Len(t, rules, 1)
	rule := rules[0].(map[string]any)
	assert.Equal(t, "big_spender", rule["name"])
	assert.EqualValues(t, -25, rule["adjustment_percent"])

	stdout, _, err = run(t, cfg, "rules", "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "6 rules valid (1 custom)")

	_, _, err = run(t, cfg, "rules", "add",
		"--name", "big_spender", "--condition", "clicks > 1", "--action", "pause")
	assert.ErrorContains(t, err, "duplicate rule name")
}

func TestRules_AddRejectsBadCondition(t *testing.T) {
	cfg := tempConfig(t, "")
	_, _, err := run(t, cfg, "rules", "add",
		"--name", "broken", "--condition", "acos <", "--action", "pause")
	require.Error(t, err)

	_, statErr := os.Stat(cfg)
	assert.True(t, os.IsNotExist(statErr), "config file must not be written for an invalid rule")
}

func TestRules_AddRejectsNonFinitePercent(t *testing.T) {
	cfg := tempConfig(t, "")
	_, _, err := run(t, cfg, "rules", "add",
		"--name", "runaway", "--condition", "true", "--action", "increase", "--percent", "Inf")
	require.Error(t, err)

	_, statErr := os.Stat(cfg)
	assert.True(t, os.IsNotExist(statErr), "config file must not be written for an invalid rule")
}

func TestNegatives(t *testing.T) {
	report := filepath.Join(t.TempDir(), "queries.csv")
	require.NoError(t, os.WriteFile(report, []byte(
		"Search query,Clicks,Ad fees,Sales,Sold quantity\n"+
			"brass lamp,10,50,25,1\n"+
			"cheap lamp,4,8,0,0\n"+
			"good lamp,20,10,200,5\n"), 0644))

	stdout, _, err := run(t, tempConfig(t, ""), "negatives", report)
	require.NoError(t, err)
	assert.Contains(t, stdout, "brass lamp")
	assert.Contains(t, stdout, "cheap lamp")
	assert.NotContains(t, stdout, "good lamp")

	stdout, _, err = run(t, tempConfig(t, ""), "negatives", report, "--min-clicks", "5", "--json")
	require.NoError(t, err)
	var found []struct {
		SearchQuery string `json:"search_query"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "brass lamp", found[0].SearchQuery)
}

func TestQuickstart(t *testing.T) {
	stdout, _, err := run(t, tempConfig(t, ""), "quickstart")
	require.NoError(t, err)
	assert.Contains(t, stdout, "bidctl analyze --sample")
	assert.Contains(t, stdout, "bidctl negatives")
}

func TestWatch_Validation(t *testing.T) {
	cfg := tempConfig(t, "")

	_, _, err := run(t, cfg, "watch", "report.csv", "--interval", "1s")
	assert.ErrorContains(t, err, "at least 5s")

	_, _, err = run(t, cfg, "watch", "report.csv", "--interval", "soon")
	assert.ErrorContains(t, err, "invalid interval")

	_, _, err = run(t, cfg, "watch", filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "initial snapshot failed")
}

func TestRules_AddWarnsOnUnknownMetric(t *testing.T) {
	cfg := tempConfig(t, "")
	_, stderr, err := run(t, cfg, "rules", "add",
		"--name", "typo", "--condition", "acoss > 50", "--action", "pause")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"acoss"`)
}

func TestUnknownMetrics(t *testing.T) {
	assert.Equal(t, []string{"profit"}, unknownMetrics("profit > 1 and acos < 30"))
	assert.Empty(t, unknownMetrics("acos < 30"))
	assert.Empty(t, unknownMetrics("acos <"))
}
