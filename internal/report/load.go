// Package report reads advertising performance reports into campaign rows and
// writes bid recommendations back out as CSV.
package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/blackwell-systems/bidctl/internal/campaign"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither CSV nor JSON.
	ErrUnsupportedFormat = errors.New("unsupported report format")

	// ErrNoHeader is returned when a CSV report has no header row.
	ErrNoHeader = errors.New("report has no header row")

	// ErrNoSearchQuery is returned when a query report lacks a search query column.
	ErrNoSearchQuery = errors.New("query report has no search query column")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// headerScanLimit bounds how many leading records may precede the header.
const headerScanLimit = 10

// Load reads a report, picking the parser from the file extension.
func Load(path string) ([]campaign.Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return LoadCSV(path)
	case ".json":
		return LoadJSON(path)
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// LoadCSV reads a CSV ad report from path.
func LoadCSV(path string) ([]campaign.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	rows, err := ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// ParseCSV parses a CSV ad report. Column names are matched case-insensitively
// against the known aliases; unknown columns are ignored and missing numeric
// columns read as 0.
func ParseCSV(r io.Reader) ([]campaign.Row, error) {
	idx, records, err := readTable(r)
	if err != nil {
		return nil, err
	}
	rows := make([]campaign.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rowFromRecord(idx, rec))
	}
	return rows, nil
}

func rowFromRecord(idx columnIndex, rec []string) campaign.Row {
	return campaign.Row{
		CampaignID:  idx.get(rec, fieldCampaignID),
		SKU:         idx.get(rec, fieldSKU),
		CurrentBid:  campaign.CoerceFloat(idx.get(rec, fieldCurrentBid)),
		Impressions: campaign.CoerceInt(idx.get(rec, fieldImpressions)),
		Clicks:      campaign.CoerceInt(idx.get(rec, fieldClicks)),
		AdSpend:     campaign.CoerceFloat(idx.get(rec, fieldAdSpend)),
		Sales:       campaign.CoerceFloat(idx.get(rec, fieldSales)),
		Revenue:     campaign.CoerceFloat(idx.get(rec, fieldRevenue)),
		Status:      idx.get(rec, fieldStatus),
	}.Normalize()
}

// LoadQueryCSV reads a search-query report, as used for negative keyword
// detection.
func LoadQueryCSV(path string) ([]campaign.QueryRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query report: %w", err)
	}
	rows, err := ParseQueryCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// ParseQueryCSV parses a search-query report. In these reports "Sales" is
// always money, so it is read as revenue.
func ParseQueryCSV(r io.Reader) ([]campaign.QueryRow, error) {
	idx, records, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if !idx.has(fieldSearchQuery) {
		return nil, ErrNoSearchQuery
	}
	revenue := fieldRevenue
	if !idx.has(revenue) {
		revenue = fieldSales
	}
	sold := fieldSales
	if revenue == fieldSales {
		sold = fieldSoldQuantity
	}

	rows := make([]campaign.QueryRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, campaign.QueryRow{
			SearchQuery:  idx.get(rec, fieldSearchQuery),
			Impressions:  campaign.CoerceInt(idx.get(rec, fieldImpressions)),
			Clicks:       campaign.CoerceInt(idx.get(rec, fieldClicks)),
			AdSpend:      campaign.CoerceFloat(idx.get(rec, fieldAdSpend)),
			Revenue:      campaign.CoerceFloat(idx.get(rec, revenue)),
			SoldQuantity: campaign.CoerceFloat(idx.get(rec, sold)),
		})
	}
	return rows, nil
}

// readTable locates the header, skipping any marketplace preamble, and
// returns the non-blank data records that follow it.
func readTable(r io.Reader) (columnIndex, [][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	data, err = toUTF8(data)
	if err != nil {
		return nil, nil, err
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading csv: %w", err)
	}

	headerAt := -1
	for i := 0; i < len(all) && i < headerScanLimit; i++ {
		rec := all[i]
		if blank(rec) || strings.Contains(normalizeHeader(rec[0]), preambleMarker) {
			continue
		}
		if known(rec) >= 2 {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		for i, rec := range all {
			if !blank(rec) {
				headerAt = i
				break
			}
		}
	}
	if headerAt < 0 {
		return nil, nil, ErrNoHeader
	}

	idx := buildIndex(all[headerAt])
	var records [][]string
	for _, rec := range all[headerAt+1:] {
		if !blank(rec) {
			records = append(records, rec)
		}
	}
	return idx, records, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// LoadJSON reads a JSON ad report from path.
func LoadJSON(path string) ([]campaign.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	rows, err := ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// ParseJSON accepts an array of objects, an object with a "data" array, or a
// single object. Keys go through the same alias table as CSV headers.
func ParseJSON(data []byte) ([]campaign.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}

	var objects []any
	switch v := raw.(type) {
	case []any:
		objects = v
	case map[string]any:
		if inner, ok := v["data"].([]any); ok {
			objects = inner
		} else {
			objects = []any{v}
		}
	default:
		return nil, fmt.Errorf("decoding json: expected object or array, got %T", raw)
	}

	rows := make([]campaign.Row, 0, len(objects))
	for i, o := range objects {
		obj, ok := o.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d: expected object, got %T", i, o)
		}
		rows = append(rows, rowFromObject(obj))
	}
	return rows, nil
}

func rowFromObject(obj map[string]any) campaign.Row {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	// Key order decides which alias wins; sort for a stable choice.
	sort.Strings(keys)
	idx := buildIndex(keys)
	rec := make([]string, len(keys))
	for i, k := range keys {
		rec[i] = stringify(obj[k])
	}
	return rowFromRecord(idx, rec)
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case bool:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
