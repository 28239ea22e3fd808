package campaign

import "strings"

// QueryRow is one line of a search-query report: how a shopper search term
// performed against the advertised listings.
type QueryRow struct {
	SearchQuery  string  `json:"search_query"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	AdSpend      float64 `json:"ad_spend"`
	Revenue      float64 `json:"revenue"`
	SoldQuantity float64 `json:"sold_quantity"`
}

// Key returns the grouping key for the query: trimmed and lower-cased.
func (q QueryRow) Key() string {
	return strings.ToLower(strings.TrimSpace(q.SearchQuery))
}
