package risk

import (
	"testing"

	"github.com/rustyeddy/tradequeue/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStopPlacement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		dir   market.Direction
		entry float64
		stop  float64
		ok    bool
	}{
		{"buy stop equals entry", market.BuyLimit, 2000, 2000, false},
		{"buy stop just below", market.BuyLimit, 2000, 1999.99, true},
		{"buy stop above", market.BuyLimit, 2000, 2000.01, false},
		{"sell stop just above", market.SellLimit, 2000, 2000.01, true},
		{"sell stop below", market.SellLimit, 2000, 1999.99, false},
		{"sell stop equals entry", market.SellLimit, 2000, 2000, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckStopPlacement(tt.dir, tt.entry, tt.stop)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrStopPlacement)
			}
		})
	}
}

func TestCheckStopPlacementUnknownDirection(t *testing.T) {
	t.Parallel()

	err := CheckStopPlacement(market.Direction("MARKET"), 2000, 1990)
	assert.ErrorIs(t, err, market.ErrUnknownDirection)
}

func TestCheckTargetSide(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckTargetSide(market.BuyLimit, 2000, 2010))
	assert.ErrorIs(t, CheckTargetSide(market.BuyLimit, 2000, 1990), ErrTargetSide)
	assert.ErrorIs(t, CheckTargetSide(market.BuyLimit, 2000, 2000), ErrTargetSide)
	assert.NoError(t, CheckTargetSide(market.SellLimit, 2000, 1990))
	assert.ErrorIs(t, CheckTargetSide(market.SellLimit, 2000, 2010), ErrTargetSide)
}

func TestRewardRiskRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 3.0, RewardRiskRatio(2000, 1995, 2015), 1e-12)
	assert.InDelta(t, 2.0, RewardRiskRatio(2000, 2010, 1980), 1e-12)
	// Losing-side target still yields a positive ratio.
	assert.InDelta(t, 1.0, RewardRiskRatio(2000, 1995, 1995), 1e-12)
	assert.Equal(t, 0.0, RewardRiskRatio(2000, 2000, 2010))
}

func TestAutoTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		dir    market.Direction
		entry  float64
		stop   float64
		ratio  float64
		digits int
		want   float64
	}{
		{"buy 2R", market.BuyLimit, 2000, 1995, 2, 0, 2010},
		{"sell 2R", market.SellLimit, 2000, 2010, 2, 0, 1980},
		{"buy 3R", market.BuyLimit, 2000, 1990, 3, 0, 2030},
		{"sell 3R", market.SellLimit, 2000, 2005, 3, 0, 1985},
		{"buy 1.5R", market.BuyLimit, 2000, 1980, 1.5, 0, 2030},
		{"buy 5R", market.BuyLimit, 2000, 1995, 5, 0, 2025},
		{"tight gold stop", market.BuyLimit, 2000.50, 1998.50, 2, 0, 2004.50},
		{"forex default precision", market.BuyLimit, 1.0850, 1.0830, 2, 0, 1.09},
		{"forex instrument precision", market.BuyLimit, 1.0850, 1.0830, 2, 5, 1.0890},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := AutoTarget(tt.dir, tt.entry, tt.stop, tt.ratio, tt.digits)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAutoTargetSymmetric(t *testing.T) {
	t.Parallel()

	buy, err := AutoTarget(market.BuyLimit, 2000, 1990, 2, 2)
	require.NoError(t, err)
	sell, err := AutoTarget(market.SellLimit, 2000, 2010, 2, 2)
	require.NoError(t, err)

	assert.InDelta(t, 2020.0, buy, 1e-9)
	assert.InDelta(t, 1980.0, sell, 1e-9)
	assert.InDelta(t, buy-2000, 2000-sell, 1e-9)
}

func TestAutoTargetRejectsBadStop(t *testing.T) {
	t.Parallel()

	_, err := AutoTarget(market.BuyLimit, 2000, 2005, 2, 2)
	assert.ErrorIs(t, err, ErrStopPlacement)
}

func TestValidateRatio(t *testing.T) {
	t.Parallel()

	for _, r := range []float64{0.1, 1, 2, 9.99, 10} {
		assert.NoError(t, ValidateRatio(r), r)
	}
	for _, r := range []float64{0, 0.09, -1, 10.01, 100} {
		assert.ErrorIs(t, ValidateRatio(r), ErrRatioOutOfRange, r)
	}
}

func TestAssess(t *testing.T) {
	t.Parallel()

	a, err := Assess(market.BuyLimit, 2000, 1995, 2015)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, a.RiskDistance, 1e-9)
	assert.InDelta(t, 15.0, a.RewardDistance, 1e-9)
	assert.InDelta(t, 3.0, a.Ratio, 1e-9)

	a, err = Assess(market.SellLimit, 2000, 2010, 1980)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, a.Ratio, 1e-9)

	_, err = Assess(market.BuyLimit, 2000, 2005, 2015)
	assert.ErrorIs(t, err, ErrStopPlacement)

	_, err = Assess(market.BuyLimit, 2000, 1995, 1990)
	assert.ErrorIs(t, err, ErrTargetSide)
}
