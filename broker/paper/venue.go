// Package paper is an in-memory venue. Limit orders are accepted once they
// pass the same checks a live terminal makes and then rest as pending
// orders, holding margin, until they are cancelled.
package paper

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/tradequeue/broker"
	"github.com/rustyeddy/tradequeue/market"
	"github.com/rustyeddy/tradequeue/pkg/id"
)

// Account is the paper account's money state.
type Account struct {
	ID         string
	Currency   string
	Balance    float64
	Equity     float64
	MarginUsed float64
	FreeMargin float64
}

// Instrument is a tradable symbol on the paper venue.
type Instrument struct {
	Base         string // base code for margin conversion, e.g. USDJPY
	Info         market.InstrumentInfo
	ContractSize float64 // units per 1.0 volume
	MarginRate   float64 // fraction of notional held as margin
}

type restingOrder struct {
	order  broker.Order
	margin float64
}

type Venue struct {
	mu          sync.Mutex
	acct        Account
	instruments map[string]Instrument
	orders      map[string]broker.Execution // by client ref
	pending     map[string]restingOrder     // by order id
	connected   bool
	down        bool // injected outage
	dropReplies int  // accepted orders whose reply is lost
	rejectNext  []string
	now         func() time.Time
}

var _ broker.Venue = (*Venue)(nil)

func NewVenue(acct Account) *Venue {
	if acct.Equity == 0 {
		acct.Equity = acct.Balance
	}
	acct.FreeMargin = acct.Equity - acct.MarginUsed
	return &Venue{
		acct:        acct,
		instruments: make(map[string]Instrument),
		orders:      make(map[string]broker.Execution),
		pending:     make(map[string]restingOrder),
		now:         time.Now,
	}
}

// AddInstrument lists symbol on the venue.
func (v *Venue) AddInstrument(inst Instrument) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.instruments[inst.Info.Symbol] = inst
}

// SetDown simulates losing (true) or regaining (false) the terminal.
// While down every call fails with ErrNotConnected and Connect fails.
func (v *Venue) SetDown(down bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.down = down
	if down {
		v.connected = false
	}
}

// DropReplies makes the next n accepted orders return ErrTimeout after
// they have been placed.
func (v *Venue) DropReplies(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropReplies = n
}

// RejectNext makes the next order be refused with reason, after the
// connection checks and before any others.
func (v *Venue) RejectNext(reason string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejectNext = append(v.rejectNext, reason)
}

// Orders returns the number of accepted orders.
func (v *Venue) Orders() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.orders)
}

func (v *Venue) Connect(ctx context.Context, _ broker.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.down {
		return broker.ErrNotConnected
	}
	v.connected = true
	return nil
}

func (v *Venue) Healthy(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected && !v.down
}

func (v *Venue) InstrumentInfo(ctx context.Context, symbol string) (market.InstrumentInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(ctx); err != nil {
		return market.InstrumentInfo{}, err
	}
	inst, ok := v.instruments[symbol]
	if !ok {
		return market.InstrumentInfo{}, fmt.Errorf("%w: %s", broker.ErrInstrumentNotFound, symbol)
	}
	return inst.Info, nil
}

func (v *Venue) SubmitLimitOrder(ctx context.Context, o broker.LimitOrder) (broker.Execution, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.readyLocked(ctx); err != nil {
		return broker.Execution{}, err
	}
	if prev, ok := v.orders[o.ClientRef]; ok && o.ClientRef != "" {
		return prev, nil
	}

	if len(v.rejectNext) > 0 {
		reason := v.rejectNext[0]
		v.rejectNext = v.rejectNext[1:]
		return broker.Execution{}, broker.Reject(reason)
	}

	inst, ok := v.instruments[o.Symbol]
	if !ok {
		return broker.Execution{}, broker.Reject("unknown symbol")
	}
	if err := checkOrder(inst.Info, o); err != nil {
		return broker.Execution{}, err
	}

	margin, err := v.marginLocked(inst, o)
	if err != nil {
		return broker.Execution{}, broker.Reject(err.Error())
	}
	if margin > v.acct.FreeMargin {
		return broker.Execution{}, broker.Reject("no money")
	}
	v.acct.MarginUsed += margin
	v.acct.FreeMargin = v.acct.Equity - v.acct.MarginUsed

	exec := broker.Execution{
		ExecutionID: id.New(),
		ClientRef:   o.ClientRef,
		Symbol:      o.Symbol,
		Volume:      o.Volume,
		Price:       o.Price,
		Time:        v.now().UTC(),
	}
	if o.ClientRef != "" {
		v.orders[o.ClientRef] = exec
	}
	v.pending[exec.ExecutionID] = restingOrder{
		order: broker.Order{
			OrderID:    exec.ExecutionID,
			ClientRef:  o.ClientRef,
			Symbol:     o.Symbol,
			Direction:  o.Direction,
			Volume:     o.Volume,
			Price:      o.Price,
			StopLoss:   o.StopLoss,
			TakeProfit: o.TakeProfit,
			Comment:    o.Comment,
			PlacedAt:   exec.Time,
		},
		margin: margin,
	}

	if v.dropReplies > 0 {
		v.dropReplies--
		return broker.Execution{}, broker.ErrTimeout
	}
	return exec, nil
}

// marginLocked is the margin o would hold, in account currency. The quote
// currency is converted at the instrument's mid when it has a quote.
func (v *Venue) marginLocked(inst Instrument, o broker.LimitOrder) (float64, error) {
	margin := o.Volume * inst.ContractSize * o.Price * inst.MarginRate
	if inst.Base == "" || v.acct.Currency == "" {
		return margin, nil
	}
	px := inst.Info.Mid()
	if px <= 0 {
		px = o.Price
	}
	rate, err := market.QuoteToAccountRate(inst.Base, v.acct.Currency, px)
	if err != nil {
		return 0, err
	}
	return margin * rate, nil
}

func (v *Venue) LookupOrder(ctx context.Context, clientRef string) (broker.Execution, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(ctx); err != nil {
		return broker.Execution{}, false, err
	}
	exec, ok := v.orders[clientRef]
	return exec, ok, nil
}

func (v *Venue) PendingOrders(ctx context.Context) ([]broker.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]broker.Order, 0, len(v.pending))
	for _, r := range v.pending {
		out = append(out, r.order)
	}
	// order ids are ULIDs, so this is placement order
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (v *Venue) OrderDetail(ctx context.Context, orderID string) (broker.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(ctx); err != nil {
		return broker.Order{}, err
	}
	r, ok := v.pending[orderID]
	if !ok {
		return broker.Order{}, fmt.Errorf("%w: %s", broker.ErrOrderNotFound, orderID)
	}
	return r.order, nil
}

// CancelOrder removes a pending order and releases its margin. The
// client ref stays known to LookupOrder so a resubmission is still
// answered with the original execution.
func (v *Venue) CancelOrder(ctx context.Context, orderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(ctx); err != nil {
		return err
	}
	r, ok := v.pending[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", broker.ErrOrderNotFound, orderID)
	}
	delete(v.pending, orderID)
	v.acct.MarginUsed -= r.margin
	if v.acct.MarginUsed < 1e-9 {
		v.acct.MarginUsed = 0
	}
	v.acct.FreeMargin = v.acct.Equity - v.acct.MarginUsed
	return nil
}

func (v *Venue) Account(ctx context.Context) (broker.AccountInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(ctx); err != nil {
		return broker.AccountInfo{}, err
	}
	info := broker.AccountInfo{
		Login:      v.acct.ID,
		Currency:   v.acct.Currency,
		Balance:    v.acct.Balance,
		Equity:     v.acct.Equity,
		Margin:     v.acct.MarginUsed,
		FreeMargin: v.acct.FreeMargin,
	}
	if info.Margin > 0 {
		info.MarginLevel = info.Equity / info.Margin * 100
	}
	return info, nil
}

func (v *Venue) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connected = false
	return nil
}

func (v *Venue) readyLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", broker.ErrTimeout, err)
	}
	if v.down || !v.connected {
		return broker.ErrNotConnected
	}
	return nil
}

// checkOrder applies the terminal's volume, price and stop rules.
func checkOrder(info market.InstrumentInfo, o broker.LimitOrder) error {
	if o.Volume < info.MinVolume || (info.MaxVolume > 0 && o.Volume > info.MaxVolume) || !onStep(o.Volume, info.VolumeStep) {
		return broker.Reject("invalid volume")
	}
	if o.Price <= 0 {
		return broker.Reject("invalid price")
	}
	switch o.Direction {
	case market.BuyLimit:
		if o.StopLoss >= o.Price || (o.TakeProfit != 0 && o.TakeProfit <= o.Price) {
			return broker.Reject("invalid stops")
		}
	case market.SellLimit:
		if o.StopLoss <= o.Price || (o.TakeProfit != 0 && o.TakeProfit >= o.Price) {
			return broker.Reject("invalid stops")
		}
	default:
		return broker.Reject("unsupported order type")
	}
	return nil
}

func onStep(volume, step float64) bool {
	if step <= 0 {
		return true
	}
	n := volume / step
	return math.Abs(n-math.Round(n)) < 1e-6
}
