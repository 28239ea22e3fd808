// Package config provides configuration loading and defaults for bidctl.
package config

import (
	"github.com/blackwell-systems/bidctl/internal/analysis"
	"github.com/blackwell-systems/bidctl/internal/bidding"
)

// DefaultConfigDir is the default location for bidctl configuration.
const DefaultConfigDir = "~/.config/bidctl"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes environment variable overrides, e.g. BIDCTL_BID_FLOOR.
const EnvPrefix = "BIDCTL"

// DefaultBidFloor is the lowest bid a decrease may produce.
const DefaultBidFloor = bidding.DefaultBidFloor

// DefaultWorkers lets the engine size its pool from GOMAXPROCS.
const DefaultWorkers = 0

// DefaultTop is how many recommendations the analyze table shows.
const DefaultTop = 10

// DefaultExportDir is where exports land when no path is given.
const DefaultExportDir = "data/exports"

// DefaultLog holds the default logging settings.
var DefaultLog = Log{
	Level:  "warn",
	Format: "text",
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 80,
}

// DefaultNegatives holds the default negative keyword thresholds.
var DefaultNegatives = Negatives{
	MinClicks:  analysis.DefaultNegativeConfig.MinClicks,
	MaxACOS:    analysis.DefaultNegativeConfig.MaxACOS,
	TargetACOS: analysis.DefaultNegativeConfig.TargetACOS,
}
