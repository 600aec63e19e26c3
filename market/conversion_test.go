package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrencies(t *testing.T) {
	t.Parallel()

	b, q, ok := Currencies("XAUUSD")
	require.True(t, ok)
	assert.Equal(t, "XAU", b)
	assert.Equal(t, "USD", q)

	_, _, ok = Currencies("US30")
	assert.False(t, ok)
}

func TestQuoteToAccountRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		account string
		mid     float64
		want    float64
		wantErr bool
	}{
		{name: "quote is account", base: "EURUSD", account: "USD", mid: 1.085, want: 1},
		{name: "base is account", base: "USDJPY", account: "USD", mid: 150, want: 1.0 / 150},
		{name: "base is account without price", base: "USDJPY", account: "USD", wantErr: true},
		{name: "cross", base: "EURGBP", account: "USD", mid: 0.85, wantErr: true},
		{name: "not a currency pair", base: "US30", account: "USD", mid: 39000, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := QuoteToAccountRate(tt.base, tt.account, tt.mid)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoConversion)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}
