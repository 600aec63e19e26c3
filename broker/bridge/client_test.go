package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/tradequeue/broker"
	"github.com/rustyeddy/tradequeue/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBridge is a minimal terminal bridge.
type fakeBridge struct {
	mu        sync.Mutex
	connected bool
	orders    map[string]broker.Execution
	pending   map[string]broker.Order
	lastAuth  string
	lastOrder broker.LimitOrder
}

func (f *fakeBridge) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/session", func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "bad credentials"})
			return
		}
		f.mu.Lock()
		f.connected = true
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(sessionResponse{Token: "session-1"})
	})
	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(healthResponse{Connected: f.connected})
	})
	mux.HandleFunc("GET /v1/instruments/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("symbol") != "XAUUSD.m" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		info := market.Instruments["XAUUSD"]
		info.Symbol = "XAUUSD.m"
		_ = json.NewEncoder(w).Encode(info)
	})
	mux.HandleFunc("POST /v1/orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")
		var o broker.LimitOrder
		_ = json.NewDecoder(r.Body).Decode(&o)
		f.lastOrder = o
		if o.Volume > 100 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "invalid volume"})
			return
		}
		exec := broker.Execution{ExecutionID: "X-1", ClientRef: o.ClientRef, Symbol: o.Symbol, Volume: o.Volume, Price: o.Price}
		f.orders[o.ClientRef] = exec
		f.pending[exec.ExecutionID] = broker.Order{
			OrderID: exec.ExecutionID, ClientRef: o.ClientRef, Symbol: o.Symbol, Direction: o.Direction,
			Volume: o.Volume, Price: o.Price, StopLoss: o.StopLoss, TakeProfit: o.TakeProfit, Comment: o.Comment,
		}
		_ = json.NewEncoder(w).Encode(exec)
	})
	mux.HandleFunc("GET /v1/orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		exec, ok := f.orders[r.URL.Query().Get("clientRef")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(exec)
	})
	mux.HandleFunc("GET /v1/orders/pending", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		resp := ordersResponse{Orders: []broker.Order{}}
		for _, o := range f.pending {
			resp.Orders = append(resp.Orders, o)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		o, ok := f.pending[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(o)
	})
	mux.HandleFunc("DELETE /v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.pending[r.PathValue("id")]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "order not found"})
			return
		}
		delete(f.pending, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /v1/account", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(broker.AccountInfo{
			Login: "5001", Currency: "USD", Balance: 10000, Equity: 10000, Margin: 400, FreeMargin: 9600, MarginLevel: 2500,
		})
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeBridge) {
	t.Helper()
	fb := &fakeBridge{orders: map[string]broker.Execution{}, pending: map[string]broker.Order{}}
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)
	return New(srv.URL, "static"), fb
}

func TestConnectAndHealth(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()

	assert.False(t, c.Healthy(ctx))

	err := c.Connect(ctx, broker.Credentials{Login: "1", Password: "wrong"})
	assert.ErrorIs(t, err, broker.ErrNotConnected)

	require.NoError(t, c.Connect(ctx, broker.Credentials{Login: "1", Password: "secret"}))
	assert.True(t, c.Healthy(ctx))
}

func TestSubmitUsesSessionToken(t *testing.T) {
	t.Parallel()
	c, fb := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, broker.Credentials{Password: "secret"}))

	order := broker.LimitOrder{
		Symbol: "XAUUSD.m", Direction: market.BuyLimit, Volume: 0.2,
		Price: 2000, StopLoss: 1990, TakeProfit: 2030, ClientRef: "cmd-1", Comment: "calm|BRK-01",
	}
	exec, err := c.SubmitLimitOrder(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, "X-1", exec.ExecutionID)
	assert.Equal(t, "Bearer session-1", fb.lastAuth)
	assert.Equal(t, order, fb.lastOrder)
}

func TestSubmitRejectionKeepsReason(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	_, err := c.SubmitLimitOrder(context.Background(), broker.LimitOrder{Symbol: "XAUUSD.m", Volume: 500})
	var rej *broker.RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "invalid volume", rej.Reason)
}

func TestInstrumentInfo(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	info, err := c.InstrumentInfo(context.Background(), "XAUUSD.m")
	require.NoError(t, err)
	assert.Equal(t, "XAUUSD.m", info.Symbol)
	assert.Equal(t, 0.01, info.VolumeStep)

	_, err = c.InstrumentInfo(context.Background(), "NOPE")
	assert.ErrorIs(t, err, broker.ErrInstrumentNotFound)
}

func TestLookupOrder(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, found, err := c.LookupOrder(ctx, "cmd-1")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = c.SubmitLimitOrder(ctx, broker.LimitOrder{Symbol: "XAUUSD.m", Volume: 0.2, ClientRef: "cmd-1"})
	require.NoError(t, err)

	exec, found, err := c.LookupOrder(ctx, "cmd-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "X-1", exec.ExecutionID)
}

func TestPendingOrderLifecycle(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()

	orders, err := c.PendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = c.SubmitLimitOrder(ctx, broker.LimitOrder{
		Symbol: "XAUUSD.m", Direction: market.SellLimit, Volume: 0.2, Price: 2000, StopLoss: 2010, ClientRef: "cmd-1",
	})
	require.NoError(t, err)

	orders, err = c.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "X-1", orders[0].OrderID)
	assert.Equal(t, market.SellLimit, orders[0].Direction)

	o, err := c.OrderDetail(ctx, "X-1")
	require.NoError(t, err)
	assert.Equal(t, 2010.0, o.StopLoss)

	require.NoError(t, c.CancelOrder(ctx, "X-1"))
	assert.ErrorIs(t, c.CancelOrder(ctx, "X-1"), broker.ErrOrderNotFound)
	_, err = c.OrderDetail(ctx, "X-1")
	assert.ErrorIs(t, err, broker.ErrOrderNotFound)
}

func TestAccount(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	acct, err := c.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5001", acct.Login)
	assert.Equal(t, 9600.0, acct.FreeMargin)
	assert.Equal(t, 2500.0, acct.MarginLevel)
}

func TestTransportErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.SubmitLimitOrder(ctx, broker.LimitOrder{})
	assert.ErrorIs(t, err, broker.ErrTimeout)

	down := New("http://127.0.0.1:1", "")
	_, err = down.InstrumentInfo(context.Background(), "XAUUSD")
	assert.ErrorIs(t, err, broker.ErrNotConnected)
	assert.False(t, broker.IsRejection(err))
}
