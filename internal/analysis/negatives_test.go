package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/bidctl/internal/campaign"
)

func TestFindNegativeKeywords(t *testing.T) {
	rows := []campaign.QueryRow{
		{SearchQuery: "cheap lamp", Clicks: 5, AdSpend: 8},
		{SearchQuery: "brass lamp", Clicks: 10, AdSpend: 40, Revenue: 20, SoldQuantity: 1},
		{SearchQuery: "vintage lamp", Clicks: 20, AdSpend: 10, Revenue: 100, SoldQuantity: 3},
		{SearchQuery: "lamp shade", Clicks: 2, AdSpend: 50},
		{SearchQuery: "free lamp", Clicks: 3, AdSpend: 0},
	}

	got := FindNegativeKeywords(rows, DefaultNegativeConfig)
	require.Len(t, got, 2)

	// brass: 40 - 20*0.30 = 34 wasted; cheap: 8 wasted.
	assert.Equal(t, "brass lamp", got[0].SearchQuery)
	require.NotNil(t, got[0].ACOS)
	assert.Equal(t, 200.0, *got[0].ACOS)
	assert.Equal(t, 34.0, got[0].WastedSpend)
	assert.Equal(t, "ACOS too high (200.0%)", got[0].Recommendation)

	assert.Equal(t, "cheap lamp", got[1].SearchQuery)
	assert.Nil(t, got[1].ACOS)
	assert.Equal(t, 8.0, got[1].WastedSpend)
	assert.Equal(t, "No sales despite clicks", got[1].Recommendation)
}

func TestFindNegativeKeywords_GroupsCaseInsensitively(t *testing.T) {
	rows := []campaign.QueryRow{
		{SearchQuery: "Red Mug", Clicks: 1, AdSpend: 2},
		{SearchQuery: "red mug ", Clicks: 1, AdSpend: 3},
		{SearchQuery: "RED MUG", Clicks: 1, AdSpend: 1},
		{SearchQuery: "  ", Clicks: 50, AdSpend: 50},
	}
	got := FindNegativeKeywords(rows, DefaultNegativeConfig)
	require.Len(t, got, 1)
	assert.Equal(t, "Red Mug", got[0].SearchQuery)
	assert.Equal(t, int64(3), got[0].Clicks)
	assert.Equal(t, 6.0, got[0].AdSpend)
}

func TestFindNegativeKeywords_Thresholds(t *testing.T) {
	rows := []campaign.QueryRow{
		{SearchQuery: "a", Clicks: 4, AdSpend: 30, Revenue: 50},
	}
	assert.Empty(t, FindNegativeKeywords(rows, DefaultNegativeConfig))

	strict := NegativeConfig{MinClicks: 5, MaxACOS: 50, TargetACOS: 20}
	assert.Empty(t, FindNegativeKeywords(rows, strict))

	strict.MinClicks = 4
	got := FindNegativeKeywords(rows, strict)
	require.Len(t, got, 1)
	assert.Equal(t, 20.0, got[0].WastedSpend)
}

func TestFindNegativeKeywords_Empty(t *testing.T) {
	assert.Empty(t, FindNegativeKeywords(nil, DefaultNegativeConfig))
}
