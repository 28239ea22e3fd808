package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Canonical fields a report column can map to.
const (
	fieldCampaignID   = "campaign_id"
	fieldSKU          = "sku"
	fieldCurrentBid   = "current_bid"
	fieldAdSpend      = "ad_spend"
	fieldSales        = "sales"
	fieldRevenue      = "revenue"
	fieldClicks       = "clicks"
	fieldImpressions  = "impressions"
	fieldStatus       = "status"
	fieldSearchQuery  = "search_query"
	fieldSoldQuantity = "sold_quantity"
)

// columnAliases maps lower-cased header text to a canonical field. Headers
// already in canonical snake_case map to themselves.
var columnAliases = map[string]string{
	"campaign id": fieldCampaignID,
	"campaign":    fieldCampaignID,
	"campaign_id": fieldCampaignID,

	"sku":            fieldSKU,
	"product sku":    fieldSKU,
	"item number":    fieldSKU,
	"item id":        fieldSKU,
	"seller keyword": fieldSKU,

	"current bid": fieldCurrentBid,
	"current_bid": fieldCurrentBid,
	"max bid":     fieldCurrentBid,
	"bid":         fieldCurrentBid,
	"keyword bid": fieldCurrentBid,

	"ad spend": fieldAdSpend,
	"ad_spend": fieldAdSpend,
	"spend":    fieldAdSpend,
	"cost":     fieldAdSpend,
	"ad fees":  fieldAdSpend,

	"sales":       fieldSales,
	"orders":      fieldSales,
	"conversions": fieldSales,

	"revenue":       fieldRevenue,
	"sales revenue": fieldRevenue,
	"total sales":   fieldRevenue,

	"clicks": fieldClicks,
	"click":  fieldClicks,

	"impressions": fieldImpressions,
	"impression":  fieldImpressions,

	"status": fieldStatus,

	"search query": fieldSearchQuery,
	"search_query": fieldSearchQuery,

	"sold quantity": fieldSoldQuantity,
	"sold_quantity": fieldSoldQuantity,
}

// preambleMarker starts the warning line eBay puts above the real header.
const preambleMarker = "some details"

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// columnIndex maps canonical fields to the first column that carries them.
type columnIndex map[string]int

// buildIndex resolves a header row. eBay keyword reports carry units in
// "Sold quantity" and money in "Sales"; when both are present "Sales" is
// read as revenue and "Sold quantity" as the sales count.
func buildIndex(header []string) columnIndex {
	idx := make(columnIndex)
	ebay := false
	for _, h := range header {
		if normalizeHeader(h) == "sold quantity" {
			ebay = true
			break
		}
	}
	for i, h := range header {
		name := normalizeHeader(h)
		field, ok := columnAliases[name]
		if !ok {
			continue
		}
		if ebay {
			switch name {
			case "sales":
				field = fieldRevenue
			case "sold quantity":
				field = fieldSales
			}
		}
		if _, taken := idx[field]; !taken {
			idx[field] = i
		}
	}
	return idx
}

// known counts the header cells that map to a field.
func known(header []string) int {
	n := 0
	for _, h := range header {
		if _, ok := columnAliases[normalizeHeader(h)]; ok {
			n++
		}
	}
	return n
}

func (c columnIndex) get(record []string, field string) string {
	i, ok := c[field]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columnIndex) has(field string) bool {
	_, ok := c[field]
	return ok
}

// toUTF8 decodes Windows-1252 input, which spreadsheet exports still
// produce, so downstream parsing always sees valid UTF-8.
func toUTF8(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decoding windows-1252: %w", err)
	}
	return out, nil
}
