// Package campaign defines the advertising performance row and the metrics
// derived from it.
package campaign

import (
	"math"
	"strconv"
	"strings"
)

// UnknownID is used when a row carries no campaign id or SKU.
const UnknownID = "Unknown"

// Row is one normalized line of an ad performance report.
type Row struct {
	CampaignID  string  `json:"campaign_id"`
	SKU         string  `json:"sku"`
	CurrentBid  float64 `json:"current_bid"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	AdSpend     float64 `json:"ad_spend"`
	Sales       float64 `json:"sales"`
	Revenue     float64 `json:"revenue"`

	// Status is the listing state reported by the marketplace ("Active",
	// "Paused", ...). Empty when the report has no status column.
	Status string `json:"status,omitempty"`
}

// Normalize returns a copy of r with identifiers defaulted and every numeric
// field forced to a finite, non-negative value.
func (r Row) Normalize() Row {
	r.CampaignID = strings.TrimSpace(r.CampaignID)
	if r.CampaignID == "" {
		r.CampaignID = UnknownID
	}
	r.SKU = strings.TrimSpace(r.SKU)
	if r.SKU == "" {
		r.SKU = UnknownID
	}
	r.CurrentBid = nonNegative(r.CurrentBid)
	r.AdSpend = nonNegative(r.AdSpend)
	r.Sales = nonNegative(r.Sales)
	r.Revenue = nonNegative(r.Revenue)
	if r.Impressions < 0 {
		r.Impressions = 0
	}
	if r.Clicks < 0 {
		r.Clicks = 0
	}
	r.Status = strings.TrimSpace(r.Status)
	return r
}

// IsActive reports whether the row should be considered for bidding. Rows
// without a status are treated as active.
func (r Row) IsActive() bool {
	return r.Status == "" || strings.EqualFold(r.Status, "active")
}

// CoerceFloat parses a report cell into a non-negative float. Currency
// symbols, thousands separators and a trailing percent sign are stripped.
// Anything unparseable yields 0.
func CoerceFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return nonNegative(f)
}

// CoerceInt parses a report cell into a non-negative integer count. Values
// like "12.0" are accepted and truncated.
func CoerceInt(s string) int64 {
	return int64(CoerceFloat(s))
}

// CoerceAny converts a decoded JSON value into a non-negative float.
func CoerceAny(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return nonNegative(n)
	case float32:
		return nonNegative(float64(n))
	case int:
		return nonNegative(float64(n))
	case int64:
		return nonNegative(float64(n))
	case bool:
		return 0
	case string:
		return CoerceFloat(n)
	case interface{ String() string }:
		return CoerceFloat(n.String())
	default:
		return 0
	}
}

func nonNegative(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
