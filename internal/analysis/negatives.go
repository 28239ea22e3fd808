package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/blackwell-systems/bidctl/internal/bidding"
	"github.com/blackwell-systems/bidctl/internal/campaign"
)

// NegativeConfig holds the thresholds for negative keyword detection.
type NegativeConfig struct {
	// MinClicks is the click count a query needs before it is judged.
	MinClicks int64

	// MaxACOS flags queries whose ACOS exceeds this percentage.
	MaxACOS float64

	// TargetACOS is the ACOS considered break-even when estimating waste.
	TargetACOS float64
}

// DefaultNegativeConfig mirrors the dashboard defaults.
var DefaultNegativeConfig = NegativeConfig{
	MinClicks:  3,
	MaxACOS:    100,
	TargetACOS: 30,
}

// NegativeKeyword is a search query worth excluding from a campaign.
type NegativeKeyword struct {
	SearchQuery  string  `json:"search_query"`
	Clicks       int64   `json:"clicks"`
	AdSpend      float64 `json:"ad_spend"`
	Revenue      float64 `json:"revenue"`
	SoldQuantity float64 `json:"sold_quantity"`

	// ACOS is nil when the query spent money without revenue.
	ACOS *float64 `json:"acos"`

	Recommendation string  `json:"recommendation"`
	WastedSpend    float64 `json:"wasted_spend"`
}

// FindNegativeKeywords groups query rows by search term and returns the
// terms that burn spend, worst first. A term qualifies once it has at least
// MinClicks clicks and either no revenue despite spend or an ACOS above
// MaxACOS.
func FindNegativeKeywords(rows []campaign.QueryRow, cfg NegativeConfig) []NegativeKeyword {
	type agg struct {
		display string
		row     campaign.QueryRow
	}
	groups := make(map[string]*agg)
	var order []string
	for _, r := range rows {
		key := r.Key()
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &agg{display: r.SearchQuery}
			groups[key] = g
			order = append(order, key)
		}
		g.row.Impressions += r.Impressions
		g.row.Clicks += r.Clicks
		g.row.AdSpend += r.AdSpend
		g.row.Revenue += r.Revenue
		g.row.SoldQuantity += r.SoldQuantity
	}

	var out []NegativeKeyword
	for _, key := range order {
		g := groups[key]
		q := g.row
		if q.Clicks < cfg.MinClicks {
			continue
		}
		noRevenue := q.Revenue == 0 && q.AdSpend > 0
		acos := queryACOS(q)
		if !noRevenue && !(acos > cfg.MaxACOS) {
			continue
		}

		nk := NegativeKeyword{
			SearchQuery:  g.display,
			Clicks:       q.Clicks,
			AdSpend:      bidding.RoundCents(q.AdSpend),
			Revenue:      bidding.RoundCents(q.Revenue),
			SoldQuantity: q.SoldQuantity,
		}
		if noRevenue {
			nk.Recommendation = "No sales despite clicks"
			nk.WastedSpend = bidding.RoundCents(q.AdSpend)
		} else {
			rounded := bidding.RoundCents(acos)
			nk.ACOS = &rounded
			nk.Recommendation = fmt.Sprintf("ACOS too high (%.1f%%)", acos)
			nk.WastedSpend = bidding.RoundCents(q.AdSpend - q.Revenue*cfg.TargetACOS/100)
		}
		out = append(out, nk)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WastedSpend > out[j].WastedSpend
	})
	return out
}

func queryACOS(q campaign.QueryRow) float64 {
	switch {
	case q.AdSpend == 0:
		return 0
	case q.Revenue == 0:
		return math.Inf(1)
	default:
		return q.AdSpend / q.Revenue * 100
	}
}
