package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveRisk  = errors.New("risk: risk budget must be positive")
	ErrZeroStopDistance = errors.New("risk: entry and stop are equal")
	ErrBadInstrument    = errors.New("risk: invalid instrument tick or volume parameters")
)

// SizeInputs are the parameters of a risk based position size.
type SizeInputs struct {
	RiskBudget float64 // account currency
	Entry      float64
	Stop       float64
	TickValue  float64 // account currency per tick per 1.0 volume
	TickSize   float64
	VolumeStep float64
	MinVolume  float64
	MaxVolume  float64 // 0 = no upper bound
}

// Size converts a risk budget and stop distance into a volume.
//
//	perUnit = |entry-stop| * tickValue / tickSize
//	raw     = riskBudget / perUnit
//
// raw is rounded half-up to a multiple of VolumeStep and clamped into
// [MinVolume, MaxVolume]. The math is done in decimal so steps like 0.01
// do not pick up binary float error.
func Size(in SizeInputs) (float64, error) {
	if in.RiskBudget <= 0 {
		return 0, ErrNonPositiveRisk
	}
	if in.Entry == in.Stop {
		return 0, ErrZeroStopDistance
	}
	if in.TickValue <= 0 || in.TickSize <= 0 || in.VolumeStep <= 0 {
		return 0, fmt.Errorf("%w: tickValue=%v tickSize=%v volumeStep=%v",
			ErrBadInstrument, in.TickValue, in.TickSize, in.VolumeStep)
	}
	if in.MinVolume < 0 || (in.MaxVolume > 0 && in.MinVolume > in.MaxVolume) {
		return 0, fmt.Errorf("%w: minVolume=%v maxVolume=%v", ErrBadInstrument, in.MinVolume, in.MaxVolume)
	}

	dist := decimal.NewFromFloat(in.Entry).Sub(decimal.NewFromFloat(in.Stop)).Abs()
	perUnit := dist.Mul(decimal.NewFromFloat(in.TickValue)).Div(decimal.NewFromFloat(in.TickSize))
	raw := decimal.NewFromFloat(in.RiskBudget).Div(perUnit)

	step := decimal.NewFromFloat(in.VolumeStep)
	size := raw.Div(step).Round(0).Mul(step)

	if min := decimal.NewFromFloat(in.MinVolume); size.LessThan(min) {
		size = min
	}
	if in.MaxVolume > 0 {
		if max := decimal.NewFromFloat(in.MaxVolume); size.GreaterThan(max) {
			size = max
		}
	}

	return size.InexactFloat64(), nil
}
