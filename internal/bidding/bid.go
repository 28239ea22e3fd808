package bidding

import "github.com/shopspring/decimal"

// DefaultBidFloor is the lowest bid a decrease may produce.
const DefaultBidFloor = 0.01

// RoundCents rounds f to two decimal places, half away from zero on the
// decimal value of f, so 0.125 becomes 0.13 rather than the banker's 0.12.
func RoundCents(f float64) float64 {
	if f == 0 {
		return 0
	}
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

// ComputeBid applies action to currentBid. pct is the signed adjustment
// percentage; floor bounds the result of a decrease from below.
func ComputeBid(action Action, currentBid, pct, floor float64) float64 {
	current := decimal.NewFromFloat(currentBid)
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)))

	var bid decimal.Decimal
	switch action {
	case ActionIncrease:
		bid = current.Mul(factor)
	case ActionDecrease:
		bid = current.Mul(factor)
		if lowest := decimal.NewFromFloat(floor); bid.LessThan(lowest) {
			bid = lowest
		}
	case ActionPause:
		return 0
	default:
		bid = current
	}
	return bid.Round(2).InexactFloat64()
}
