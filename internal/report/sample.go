package report

import (
	"fmt"
	"math/rand/v2"

	"github.com/blackwell-systems/bidctl/internal/bidding"
	"github.com/blackwell-systems/bidctl/internal/campaign"
)

// SampleSize is the number of rows Sample generates.
const SampleSize = 20

const sampleSeed = 42

// Sample returns a deterministic demo dataset. Rows are random apart from
// three fixed scenarios: row 5 spent $15 without a sale, row 10 runs at 10%
// ACOS with 10 sales, and row 15 runs at 50% ACOS.
func Sample() []campaign.Row {
	rng := rand.New(rand.NewPCG(sampleSeed, sampleSeed))
	uniform := func(lo, hi float64) float64 {
		return bidding.RoundCents(lo + rng.Float64()*(hi-lo))
	}

	rows := make([]campaign.Row, SampleSize)
	for i := range rows {
		rows[i] = campaign.Row{
			CampaignID:  fmt.Sprintf("CAM_%03d", i+1),
			SKU:         fmt.Sprintf("SKU_%04d", 1001+i),
			CurrentBid:  uniform(0.5, 5.0),
			Impressions: 100 + rng.Int64N(9900),
			Clicks:      rng.Int64N(500),
			AdSpend:     uniform(0, 100),
			Sales:       float64(rng.IntN(20)),
			Revenue:     uniform(0, 500),
		}
	}

	rows[5].Sales = 0
	rows[5].AdSpend = 15

	rows[10].Sales = 10
	rows[10].Revenue = 300
	rows[10].AdSpend = 30

	rows[15].Sales = 2
	rows[15].Revenue = 50
	rows[15].AdSpend = 25

	return rows
}
