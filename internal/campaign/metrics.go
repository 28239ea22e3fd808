package campaign

import (
	"math"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// Metric names as seen by rule conditions and explanation templates.
const (
	MetricAdSpend        = "ad_spend"
	MetricSales          = "sales"
	MetricRevenue        = "revenue"
	MetricClicks         = "clicks"
	MetricImpressions    = "impressions"
	MetricCurrentBid     = "current_bid"
	MetricACOS           = "acos"
	MetricCTR            = "ctr"
	MetricCPC            = "cpc"
	MetricConversionRate = "conversion_rate"
	MetricROAS           = "roas"
)

// Metrics holds the derived performance figures for a single row.
type Metrics struct {
	AdSpend     float64 `json:"ad_spend"`
	Sales       float64 `json:"sales"`
	Revenue     float64 `json:"revenue"`
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
	CurrentBid  float64 `json:"current_bid"`

	// ACOS is ad spend as a percentage of revenue. It is +Inf when money was
	// spent without any revenue and 0 when nothing was spent.
	ACOS float64 `json:"acos"`

	// CTR is clicks as a percentage of impressions.
	CTR float64 `json:"ctr"`

	// CPC is the average cost per click.
	CPC float64 `json:"cpc"`

	// ConversionRate is sales as a percentage of clicks.
	ConversionRate float64 `json:"conversion_rate"`

	// ROAS is revenue per unit of ad spend.
	ROAS float64 `json:"roas"`
}

// Calculate derives Metrics from a row. It never fails: every zero
// denominator maps to a defined value.
func Calculate(row Row) Metrics {
	row = row.Normalize()

	m := Metrics{
		AdSpend:     row.AdSpend,
		Sales:       row.Sales,
		Revenue:     row.Revenue,
		Clicks:      row.Clicks,
		Impressions: row.Impressions,
		CurrentBid:  row.CurrentBid,
	}

	switch {
	case row.AdSpend == 0:
		m.ACOS = 0
	case row.Revenue == 0:
		m.ACOS = math.Inf(1)
	default:
		m.ACOS = row.AdSpend / row.Revenue * 100
	}

	if row.Impressions > 0 {
		m.CTR = float64(row.Clicks) / float64(row.Impressions) * 100
	}
	if row.Clicks > 0 {
		m.CPC = row.AdSpend / float64(row.Clicks)
		m.ConversionRate = row.Sales / float64(row.Clicks) * 100
	}
	if row.AdSpend > 0 {
		m.ROAS = row.Revenue / row.AdSpend
	}

	return m
}

// UndefinedACOS reports whether the ACOS is the "spent without revenue"
// sentinel.
func (m Metrics) UndefinedACOS() bool {
	return math.IsInf(m.ACOS, 1)
}

// Lookup returns the value of the named metric.
func (m Metrics) Lookup(name string) (float64, bool) {
	switch name {
	case MetricAdSpend:
		return m.AdSpend, true
	case MetricSales:
		return m.Sales, true
	case MetricRevenue:
		return m.Revenue, true
	case MetricClicks:
		return float64(m.Clicks), true
	case MetricImpressions:
		return float64(m.Impressions), true
	case MetricCurrentBid:
		return m.CurrentBid, true
	case MetricACOS:
		return m.ACOS, true
	case MetricCTR:
		return m.CTR, true
	case MetricCPC:
		return m.CPC, true
	case MetricConversionRate:
		return m.ConversionRate, true
	case MetricROAS:
		return m.ROAS, true
	}
	return 0, false
}

// Map returns the metrics keyed by name.
func (m Metrics) Map() map[string]float64 {
	out := make(map[string]float64, len(names))
	for _, n := range names {
		v, _ := m.Lookup(n)
		out[n] = v
	}
	return out
}

var names = []string{
	MetricAdSpend, MetricSales, MetricRevenue, MetricClicks, MetricImpressions,
	MetricCurrentBid, MetricACOS, MetricCTR, MetricCPC, MetricConversionRate, MetricROAS,
}

// Names returns every metric name in sorted order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}

// IsMetric reports whether name is a known metric.
func IsMetric(name string) bool {
	_, ok := Metrics{}.Lookup(name)
	return ok
}

// MarshalJSON encodes an undefined ACOS as null, since JSON has no infinity.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type plain Metrics
	aux := struct {
		plain
		ACOS *float64 `json:"acos"`
	}{plain: plain(m)}
	if !m.UndefinedACOS() {
		acos := m.ACOS
		aux.ACOS = &acos
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(aux)
}
