package command

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rustyeddy/tradequeue/market"
	"github.com/rustyeddy/tradequeue/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func goldRequest() Request {
	return Request{
		AccountID:  "acct-1",
		Base:       "XAUUSD",
		Direction:  market.BuyLimit,
		Entry:      2000,
		Stop:       1990,
		TakeProfit: 2030,
		RiskAmount: 200,
		Strategy:   "BRK-01",
		Sentiment:  "calm",
	}
}

func testBuilder() Builder {
	return Builder{Suffix: ".m", Ratio: 2, Now: func() time.Time { return fixedNow }}
}

func TestBuildGoldBuy(t *testing.T) {
	t.Parallel()

	cmd, err := testBuilder().Build(goldRequest())
	require.NoError(t, err)

	assert.Equal(t, "XAUUSD.m", cmd.Instrument)
	assert.Equal(t, "XAUUSD", cmd.Base)
	assert.InDelta(t, 0.20, cmd.Size, 1e-9)
	assert.Equal(t, 2030.0, cmd.TakeProfit)
	assert.Equal(t, "calm|BRK-01", cmd.Comment())
	assert.Equal(t, fixedNow, cmd.CreatedAt)

	_, err = uuid.Parse(cmd.CommandID)
	assert.NoError(t, err, "generated command id should be a uuid")
}

func TestBuildKeepsRequestID(t *testing.T) {
	t.Parallel()

	req := goldRequest()
	req.RequestID = "req-42"
	cmd, err := testBuilder().Build(req)
	require.NoError(t, err)
	assert.Equal(t, "req-42", cmd.CommandID)
}

func TestBuildWithConfiguredInstruments(t *testing.T) {
	t.Parallel()

	b := testBuilder()
	b.Instruments = map[string]market.InstrumentInfo{
		"XAGUSD": {Symbol: "XAGUSD", TickValue: 5, TickSize: 0.001, VolumeStep: 0.01, MinVolume: 0.01, MaxVolume: 50, Digits: 3},
	}
	req := goldRequest()
	req.Base = "XAGUSD"
	req.Entry, req.Stop, req.TakeProfit = 24, 23.8, 0
	req.RiskAmount = 100

	cmd, err := b.Build(req)
	require.NoError(t, err)
	assert.Equal(t, "XAGUSD.m", cmd.Instrument)
	assert.InDelta(t, 0.10, cmd.Size, 1e-9)
	assert.InDelta(t, 24.4, cmd.TakeProfit, 1e-9)

	// the default table does not know silver
	_, err = testBuilder().Build(req)
	assert.ErrorIs(t, err, ErrUnknownInstrument)

	// and a custom table replaces it
	_, err = b.Build(goldRequest())
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestBuildAutoTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dir  market.Direction
		stop float64
		want float64
	}{
		{"buy", market.BuyLimit, 1990, 2020},
		{"sell", market.SellLimit, 2010, 1980},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := goldRequest()
			req.Direction = tt.dir
			req.Stop = tt.stop
			req.TakeProfit = 0
			cmd, err := testBuilder().Build(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.TakeProfit)
		})
	}
}

func TestBuildRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Request)
		want   error
	}{
		{"no account", func(r *Request) { r.AccountID = " " }, ErrMissingAccount},
		{"no strategy", func(r *Request) { r.Strategy = "" }, ErrMissingStrategy},
		{"bad sentiment", func(r *Request) { r.Sentiment = "euphoric" }, ErrInvalidSentiment},
		{"bad direction", func(r *Request) { r.Direction = "MARKET" }, market.ErrUnknownDirection},
		{"negative entry", func(r *Request) { r.Entry = -1 }, ErrInvalidPrice},
		{"empty base", func(r *Request) { r.Base = "  " }, market.ErrEmptyBase},
		{"unknown base", func(r *Request) { r.Base = "BTCXYZ" }, ErrUnknownInstrument},
		{"stop above buy entry", func(r *Request) { r.Stop = 2001 }, risk.ErrStopPlacement},
		{"stop equals entry", func(r *Request) { r.Stop = 2000 }, risk.ErrStopPlacement},
		{"target below buy entry", func(r *Request) { r.TakeProfit = 1995 }, risk.ErrTargetSide},
		{"zero risk", func(r *Request) { r.RiskAmount = 0 }, risk.ErrNonPositiveRisk},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := goldRequest()
			tt.mutate(&req)
			_, err := testBuilder().Build(req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildSentimentIsNormalised(t *testing.T) {
	t.Parallel()

	req := goldRequest()
	req.Sentiment = " FOMO "
	cmd, err := testBuilder().Build(req)
	require.NoError(t, err)
	assert.Equal(t, "fomo", cmd.Tags.Sentiment)
}

func TestTradeCommandJSON(t *testing.T) {
	t.Parallel()

	cmd, err := testBuilder().Build(goldRequest())
	require.NoError(t, err)

	data, err := json.Marshal(cmd)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"commandId", "accountId", "orderDirection", "instrumentIdentifier",
		"entryPrice", "stopPrice", "takeProfitPrice", "size", "riskAmount", "tags", "commandTimestamp"} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "referenceUrl")
	assert.Equal(t, "LIMIT_BUY", raw["orderDirection"])
}
