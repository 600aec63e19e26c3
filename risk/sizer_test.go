package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gold(risk, entry, stop float64) SizeInputs {
	return SizeInputs{
		RiskBudget: risk,
		Entry:      entry,
		Stop:       stop,
		TickValue:  1.0,
		TickSize:   0.01,
		VolumeStep: 0.01,
		MinVolume:  0.01,
		MaxVolume:  100,
	}
}

func TestSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   SizeInputs
		want float64
	}{
		// $100 risk, 5.00 stop, $1 per 0.01 tick -> $500 per lot -> 0.20
		{"gold buy", gold(100, 2000, 1995), 0.20},
		{"gold sell", gold(100, 2000, 2005), 0.20},
		{"gold 10 point stop", gold(100, 2650, 2640), 0.10},
		{
			"forex 50 pips",
			SizeInputs{RiskBudget: 100, Entry: 1.1000, Stop: 1.0950, TickValue: 1, TickSize: 0.00001, VolumeStep: 0.01, MinVolume: 0.01, MaxVolume: 100},
			0.20,
		},
		// 117.5 / 500 = 0.235 -> half-up -> 0.24
		{"rounds half up", gold(117.5, 2000, 1995), 0.24},
		// 117 / 500 = 0.234 -> 0.23
		{"rounds down below half", gold(117, 2000, 1995), 0.23},
		// 1 / 500 = 0.002 -> 0.00 -> min
		{"clamps to min", gold(1, 2000, 1995), 0.01},
		// 75000 / 500 = 150 -> max
		{"clamps to max", gold(75000, 2000, 1995), 100},
		{
			"coarse step",
			SizeInputs{RiskBudget: 125, Entry: 2000, Stop: 1995, TickValue: 1, TickSize: 0.01, VolumeStep: 0.1, MinVolume: 0.1},
			0.3,
		},
		{
			"no max bound",
			SizeInputs{RiskBudget: 75000, Entry: 2000, Stop: 1995, TickValue: 1, TickSize: 0.01, VolumeStep: 0.01},
			150,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Size(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestSizeDeterministic(t *testing.T) {
	t.Parallel()

	in := gold(100, 2000, 1995)
	first, err := Size(in)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := Size(in)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestSizeInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   SizeInputs
		err  error
	}{
		{"zero risk", gold(0, 2000, 1995), ErrNonPositiveRisk},
		{"negative risk", gold(-100, 2000, 1995), ErrNonPositiveRisk},
		{"zero stop distance", gold(100, 2000, 2000), ErrZeroStopDistance},
		{"zero tick size", SizeInputs{RiskBudget: 100, Entry: 2000, Stop: 1995, TickValue: 1, VolumeStep: 0.01}, ErrBadInstrument},
		{"zero step", SizeInputs{RiskBudget: 100, Entry: 2000, Stop: 1995, TickValue: 1, TickSize: 0.01}, ErrBadInstrument},
		{"min above max", SizeInputs{RiskBudget: 100, Entry: 2000, Stop: 1995, TickValue: 1, TickSize: 0.01, VolumeStep: 0.01, MinVolume: 5, MaxVolume: 1}, ErrBadInstrument},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Size(tt.in)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPlannedRisk(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100.0, PlannedRisk(0.2, 2000, 1995, 1, 0.01), 1e-9)
	assert.InDelta(t, 100.0, PlannedRisk(0.2, 1.1, 1.095, 1, 0.00001), 1e-6)
}
