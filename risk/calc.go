package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// RewardRiskRatio is |takeProfit-entry| / |entry-stop|.
//
// The ratio is never negative: a take profit on the losing side of entry
// still produces a positive number, so callers must run CheckTargetSide first.
func RewardRiskRatio(entry, stop, takeProfit float64) float64 {
	risk := abs(entry - stop)
	reward := abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// PlannedRisk is the account-currency loss if the stop is hit with the given size.
func PlannedRisk(size, entry, stop, tickValue, tickSize float64) float64 {
	if tickSize <= 0 {
		return math.Inf(1)
	}
	return size * abs(entry-stop) * tickValue / tickSize
}

// round2 rounds a display value to two decimals, half away from zero.
func round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}
