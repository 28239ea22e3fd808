package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/blackwell-systems/bidctl/internal/bidding"
	"github.com/blackwell-systems/bidctl/internal/campaign"
)

// ErrNothingToExport is returned when an export is requested for an empty
// recommendation set.
var ErrNothingToExport = errors.New("no recommendations to export")

// ExportHeader is the column layout of exported recommendation files.
var ExportHeader = []string{
	"Campaign ID",
	"SKU",
	"Current Bid",
	"Recommended Bid",
	"Action",
	"Bid Change",
	"Reason",
	"ACOS",
	"Ad Spend",
	"Revenue",
	"Sales",
}

// infACOS is how an undefined ACOS is written to CSV.
const infACOS = "inf"

// WriteCSV writes recs to w. Actions are upper-cased and money columns are
// rounded to cents.
func WriteCSV(w io.Writer, recs []bidding.Recommendation) error {
	if len(recs) == 0 {
		return ErrNothingToExport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, r := range recs {
		acos := infACOS
		if !r.Metrics.UndefinedACOS() {
			acos = money(r.Metrics.ACOS)
		}
		record := []string{
			r.CampaignID,
			r.SKU,
			money(r.CurrentBid),
			money(r.RecommendedBid),
			r.Action.Token(),
			money(r.BidChange()),
			r.Reason,
			acos,
			money(r.Metrics.AdSpend),
			money(r.Metrics.Revenue),
			strconv.FormatFloat(r.Metrics.Sales, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func money(f float64) string {
	return strconv.FormatFloat(bidding.RoundCents(f), 'f', 2, 64)
}

// ExportFileName returns the timestamped name used for exports.
func ExportFileName(now time.Time) string {
	return "bid_recommendations_" + now.Format("20060102_150405") + ".csv"
}

// ExportFile writes recs as CSV and returns the path written. A target ending
// in .csv is used as the file path; anything else is treated as a directory
// and receives a timestamped file name. Parent directories are created.
func ExportFile(target string, recs []bidding.Recommendation, now time.Time) (string, error) {
	if len(recs) == 0 {
		return "", ErrNothingToExport
	}

	path := target
	if !strings.EqualFold(filepath.Ext(target), ".csv") {
		path = filepath.Join(target, ExportFileName(now))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	if err := WriteCSV(f, recs); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// ReadCSV parses a file produced by WriteCSV. Columns are located by name.
// The fired rule name is not part of the export and comes back empty.
func ReadCSV(r io.Reader) ([]bidding.Recommendation, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, want := range ExportHeader {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("missing column %q", want)
		}
	}

	var recs []bidding.Recommendation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		get := func(name string) string { return strings.TrimSpace(rec[col[name]]) }

		action, err := bidding.ParseAction(get("Action"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		acos := math.Inf(1)
		if s := get("ACOS"); !strings.EqualFold(s, infACOS) {
			acos = campaign.CoerceFloat(s)
		}
		recs = append(recs, bidding.Recommendation{
			CampaignID:     get("Campaign ID"),
			SKU:            get("SKU"),
			CurrentBid:     campaign.CoerceFloat(get("Current Bid")),
			RecommendedBid: campaign.CoerceFloat(get("Recommended Bid")),
			Action:         action,
			Reason:         get("Reason"),
			Metrics: campaign.Metrics{
				ACOS:       acos,
				AdSpend:    campaign.CoerceFloat(get("Ad Spend")),
				Revenue:    campaign.CoerceFloat(get("Revenue")),
				Sales:      campaign.CoerceFloat(get("Sales")),
				CurrentBid: campaign.CoerceFloat(get("Current Bid")),
			},
		})
	}
	return recs, nil
}
