package paper

import (
	"context"
	"errors"
	"testing"

	"github.com/rustyeddy/tradequeue/broker"
	"github.com/rustyeddy/tradequeue/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVenue(t *testing.T, balance float64) *Venue {
	t.Helper()
	v := NewVenue(Account{ID: "paper-1", Currency: "USD", Balance: balance})
	for _, inst := range DefaultInstruments() {
		v.AddInstrument(inst)
	}
	require.NoError(t, v.Connect(context.Background(), broker.Credentials{}))
	return v
}

func goldOrder() broker.LimitOrder {
	return broker.LimitOrder{
		Symbol:     "XAUUSD",
		Direction:  market.BuyLimit,
		Volume:     0.2,
		Price:      2000,
		StopLoss:   1990,
		TakeProfit: 2030,
		ClientRef:  "cmd-1",
		Comment:    "calm|BRK-01",
	}
}

func rejectionReason(t *testing.T, err error) string {
	t.Helper()
	var rej *broker.RejectedError
	require.True(t, errors.As(err, &rej), "want rejection, got %v", err)
	return rej.Reason
}

func TestSubmitAcceptsAtLimit(t *testing.T) {
	t.Parallel()
	v := newVenue(t, 10000)

	exec, err := v.SubmitLimitOrder(context.Background(), goldOrder())
	require.NoError(t, err)
	assert.NotEmpty(t, exec.ExecutionID)
	assert.Equal(t, 2000.0, exec.Price)
	assert.Equal(t, 0.2, exec.Volume)
	assert.Equal(t, "cmd-1", exec.ClientRef)

	acct, err := v.Account(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 400, acct.Margin, 1e-9)
	assert.InDelta(t, 9600, acct.FreeMargin, 1e-9)
	assert.InDelta(t, 2500, acct.MarginLevel, 1e-9)
	assert.Equal(t, "paper-1", acct.Login)
}

func TestSubmitSameClientRefOnce(t *testing.T) {
	t.Parallel()
	v := newVenue(t, 10000)

	first, err := v.SubmitLimitOrder(context.Background(), goldOrder())
	require.NoError(t, err)
	second, err := v.SubmitLimitOrder(context.Background(), goldOrder())
	require.NoError(t, err)

	assert.Equal(t, first.ExecutionID, second.ExecutionID)
	assert.Equal(t, 1, v.Orders())
}

func TestSubmitRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		balance float64
		mutate  func(*broker.LimitOrder)
		reason  string
	}{
		{"volume below min", 10000, func(o *broker.LimitOrder) { o.Volume = 0.001 }, "invalid volume"},
		{"volume above max", 1e9, func(o *broker.LimitOrder) { o.Volume = 500 }, "invalid volume"},
		{"volume off step", 10000, func(o *broker.LimitOrder) { o.Volume = 0.125 }, "invalid volume"},
		{"stop above buy", 10000, func(o *broker.LimitOrder) { o.StopLoss = 2010 }, "invalid stops"},
		{"unknown symbol", 10000, func(o *broker.LimitOrder) { o.Symbol = "XAUUSD.m" }, "unknown symbol"},
		{"margin", 100, func(o *broker.LimitOrder) {}, "no money"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := newVenue(t, tt.balance)
			o := goldOrder()
			tt.mutate(&o)
			_, err := v.SubmitLimitOrder(context.Background(), o)
			assert.Equal(t, tt.reason, rejectionReason(t, err))
			assert.Equal(t, 0, v.Orders())
		})
	}
}

func TestOutage(t *testing.T) {
	t.Parallel()
	v := newVenue(t, 10000)
	ctx := context.Background()

	v.SetDown(true)
	assert.False(t, v.Healthy(ctx))
	_, err := v.SubmitLimitOrder(ctx, goldOrder())
	assert.ErrorIs(t, err, broker.ErrNotConnected)
	assert.ErrorIs(t, v.Connect(ctx, broker.Credentials{}), broker.ErrNotConnected)

	v.SetDown(false)
	assert.False(t, v.Healthy(ctx), "needs a reconnect")
	require.NoError(t, v.Connect(ctx, broker.Credentials{}))
	assert.True(t, v.Healthy(ctx))
}

func TestDroppedReplyCanBeLookedUp(t *testing.T) {
	t.Parallel()
	v := newVenue(t, 10000)
	ctx := context.Background()

	v.DropReplies(1)
	_, err := v.SubmitLimitOrder(ctx, goldOrder())
	require.ErrorIs(t, err, broker.ErrTimeout)

	exec, found, err := v.LookupOrder(ctx, "cmd-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0.2, exec.Volume)

	_, found, err = v.LookupOrder(ctx, "cmd-2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInstrumentInfo(t *testing.T) {
	t.Parallel()
	v := newVenue(t, 10000)

	info, err := v.InstrumentInfo(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 5, info.Digits)
	assert.Greater(t, info.Ask, info.Bid)

	_, err = v.InstrumentInfo(context.Background(), "EURUSD.m")
	assert.ErrorIs(t, err, broker.ErrInstrumentNotFound)
}

func TestWithSymbols(t *testing.T) {
	t.Parallel()

	insts := WithSymbols(DefaultInstruments(), "", ".m")
	for _, inst := range insts {
		assert.Regexp(t, `\.m$`, inst.Info.Symbol)
	}
}

func TestMarginInAccountCurrency(t *testing.T) {
	t.Parallel()
	v := newVenue(t, 2000)
	ctx := context.Background()

	// 1.0 USDJPY holds 150000 JPY of margin, converted at the quote mid.
	_, err := v.SubmitLimitOrder(ctx, broker.LimitOrder{
		Symbol:    "USDJPY",
		Direction: market.BuyLimit,
		Volume:    1,
		Price:     150,
		StopLoss:  149.5,
		ClientRef: "jpy-1",
	})
	require.NoError(t, err)

	want := 150000 / 150.006
	acct, err := v.Account(ctx)
	require.NoError(t, err)
	assert.InDelta(t, want, acct.Margin, 1e-6)
	assert.InDelta(t, 2000-want, acct.FreeMargin, 1e-6)
}

func TestPendingOrders(t *testing.T) {
	t.Parallel()
	v := newVenue(t, 10000)
	ctx := context.Background()

	first, err := v.SubmitLimitOrder(ctx, goldOrder())
	require.NoError(t, err)
	o := goldOrder()
	o.ClientRef = "cmd-2"
	o.Price, o.StopLoss, o.TakeProfit = 1990, 1980, 2020
	second, err := v.SubmitLimitOrder(ctx, o)
	require.NoError(t, err)

	orders, err := v.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ExecutionID, orders[0].OrderID)
	assert.Equal(t, second.ExecutionID, orders[1].OrderID)
	assert.Equal(t, market.BuyLimit, orders[0].Direction)
	assert.Equal(t, "calm|BRK-01", orders[0].Comment)

	detail, err := v.OrderDetail(ctx, second.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "cmd-2", detail.ClientRef)
	assert.Equal(t, 1980.0, detail.StopLoss)

	_, err = v.OrderDetail(ctx, "nope")
	assert.ErrorIs(t, err, broker.ErrOrderNotFound)
}

func TestCancelOrderReleasesMargin(t *testing.T) {
	t.Parallel()
	v := newVenue(t, 10000)
	ctx := context.Background()

	exec, err := v.SubmitLimitOrder(ctx, goldOrder())
	require.NoError(t, err)

	require.NoError(t, v.CancelOrder(ctx, exec.ExecutionID))
	assert.ErrorIs(t, v.CancelOrder(ctx, exec.ExecutionID), broker.ErrOrderNotFound)

	orders, err := v.PendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	acct, err := v.Account(ctx)
	require.NoError(t, err)
	assert.Zero(t, acct.Margin)
	assert.Zero(t, acct.MarginLevel)
	assert.InDelta(t, 10000, acct.FreeMargin, 1e-9)

	// the client ref still answers lookups
	_, found, err := v.LookupOrder(ctx, "cmd-1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestOrderQueriesNeedConnection(t *testing.T) {
	t.Parallel()
	v := newVenue(t, 10000)
	ctx := context.Background()
	v.SetDown(true)

	_, err := v.PendingOrders(ctx)
	assert.ErrorIs(t, err, broker.ErrNotConnected)
	_, err = v.Account(ctx)
	assert.ErrorIs(t, err, broker.ErrNotConnected)
	assert.ErrorIs(t, v.CancelOrder(ctx, "x"), broker.ErrNotConnected)
}

func TestInstrumentsFrom(t *testing.T) {
	t.Parallel()

	table := map[string]market.InstrumentInfo{
		"XAGUSD": {Symbol: "XAGUSD", TickSize: 0.001, VolumeStep: 0.01, MinVolume: 0.01, Bid: 24, Ask: 24.02},
		"XAUUSD": market.Instruments["XAUUSD"],
	}
	got := map[string]Instrument{}
	for _, inst := range InstrumentsFrom(table) {
		got[inst.Base] = inst
	}
	require.Len(t, got, 2)
	assert.Equal(t, 5000.0, got["XAGUSD"].ContractSize)
	assert.Equal(t, 24.0, got["XAGUSD"].Info.Bid)
	assert.Equal(t, 100.0, got["XAUUSD"].ContractSize)
	assert.Equal(t, 2000.0, got["XAUUSD"].Info.Bid, "built-in quote")
}
