package risk

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/tradequeue/market"
	"github.com/shopspring/decimal"
)

var (
	ErrStopPlacement   = errors.New("risk: stop loss on the wrong side of entry")
	ErrTargetSide      = errors.New("risk: take profit on the wrong side of entry")
	ErrRatioOutOfRange = errors.New("risk: reward:risk ratio out of range")
)

// Bounds for a configured reward:risk ratio.
const (
	MinRatio = 0.1
	MaxRatio = 10.0
)

// CheckStopPlacement requires the stop strictly below entry for a buy limit
// and strictly above it for a sell limit. A stop equal to entry is a
// zero-risk order and is rejected.
func CheckStopPlacement(dir market.Direction, entry, stop float64) error {
	switch dir {
	case market.BuyLimit:
		if stop < entry {
			return nil
		}
		return fmt.Errorf("%w: for LIMIT BUY, stop loss %v must be below entry price %v", ErrStopPlacement, stop, entry)
	case market.SellLimit:
		if stop > entry {
			return nil
		}
		return fmt.Errorf("%w: for LIMIT SELL, stop loss %v must be above entry price %v", ErrStopPlacement, stop, entry)
	}
	return fmt.Errorf("%w: %q", market.ErrUnknownDirection, dir)
}

// CheckTargetSide requires the take profit on the profitable side of entry.
func CheckTargetSide(dir market.Direction, entry, takeProfit float64) error {
	switch dir {
	case market.BuyLimit:
		if takeProfit > entry {
			return nil
		}
		return fmt.Errorf("%w: for LIMIT BUY, take profit %v must be above entry price %v", ErrTargetSide, takeProfit, entry)
	case market.SellLimit:
		if takeProfit < entry {
			return nil
		}
		return fmt.Errorf("%w: for LIMIT SELL, take profit %v must be below entry price %v", ErrTargetSide, takeProfit, entry)
	}
	return fmt.Errorf("%w: %q", market.ErrUnknownDirection, dir)
}

// ValidateRatio checks a configured reward:risk ratio.
func ValidateRatio(r float64) error {
	if r < MinRatio || r > MaxRatio {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrRatioOutOfRange, r, MinRatio, MaxRatio)
	}
	return nil
}

// AutoTarget derives a take profit ratio times the stop distance away from
// entry, rounded to digits decimals (market.DefaultDigits when digits <= 0).
func AutoTarget(dir market.Direction, entry, stop, ratio float64, digits int) (float64, error) {
	if err := CheckStopPlacement(dir, entry, stop); err != nil {
		return 0, err
	}
	if ratio <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrRatioOutOfRange, ratio)
	}
	if digits <= 0 {
		digits = market.DefaultDigits
	}

	e := decimal.NewFromFloat(entry)
	reward := e.Sub(decimal.NewFromFloat(stop)).Abs().Mul(decimal.NewFromFloat(ratio))

	tp := e.Add(reward)
	if dir == market.SellLimit {
		tp = e.Sub(reward)
	}
	return tp.Round(int32(digits)).InexactFloat64(), nil
}

// Assessment summarises a validated order.
type Assessment struct {
	RiskDistance   float64
	RewardDistance float64
	Ratio          float64 // rounded to 2 decimals
}

// Assess runs the stop and target checks and reports distances and ratio.
func Assess(dir market.Direction, entry, stop, takeProfit float64) (Assessment, error) {
	if err := CheckStopPlacement(dir, entry, stop); err != nil {
		return Assessment{}, err
	}
	if err := CheckTargetSide(dir, entry, takeProfit); err != nil {
		return Assessment{}, err
	}
	return Assessment{
		RiskDistance:   abs(entry - stop),
		RewardDistance: abs(takeProfit - entry),
		Ratio:          round2(RewardRiskRatio(entry, stop, takeProfit)),
	}, nil
}
