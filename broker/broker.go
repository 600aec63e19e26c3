// Package broker is the execution venue contract the trade worker talks to.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/tradequeue/market"
)

var (
	ErrNotConnected       = errors.New("broker: not connected")
	ErrTimeout            = errors.New("broker: request timed out")
	ErrInstrumentNotFound = errors.New("broker: instrument not found")
	ErrOrderNotFound      = errors.New("broker: order not found")
)

// RejectedError is a venue refusal. Reason is the venue's text, unchanged.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "broker: order rejected: " + e.Reason }

// Reject returns a *RejectedError for reason.
func Reject(reason string) error { return &RejectedError{Reason: reason} }

// IsRejection reports whether err is a final answer from the venue rather
// than a failure to reach it.
func IsRejection(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej) || errors.Is(err, ErrInstrumentNotFound)
}

// Credentials for a venue session.
type Credentials struct {
	Login    string
	Password string
	Server   string
}

// LimitOrder is a pending limit order with attached stop loss and take
// profit. ClientRef lets the order be found again after a lost response.
type LimitOrder struct {
	Symbol     string           `json:"symbol"`
	Direction  market.Direction `json:"type"`
	Volume     float64          `json:"volume"`
	Price      float64          `json:"price"`
	StopLoss   float64          `json:"sl"`
	TakeProfit float64          `json:"tp"`
	ClientRef  string           `json:"clientRef"`
	Comment    string           `json:"comment"`
}

// Execution is the venue's acknowledgement of an accepted order.
type Execution struct {
	ExecutionID string    `json:"executionId"`
	ClientRef   string    `json:"clientRef"`
	Symbol      string    `json:"symbol"`
	Volume      float64   `json:"volume"`
	Price       float64   `json:"price"`
	Time        time.Time `json:"time"`
}

// Order is a limit order resting at the venue. OrderID is the
// ExecutionID the venue returned when the order was placed.
type Order struct {
	OrderID    string           `json:"orderId"`
	ClientRef  string           `json:"clientRef"`
	Symbol     string           `json:"symbol"`
	Direction  market.Direction `json:"type"`
	Volume     float64          `json:"volume"`
	Price      float64          `json:"price"`
	StopLoss   float64          `json:"sl"`
	TakeProfit float64          `json:"tp"`
	Comment    string           `json:"comment"`
	PlacedAt   time.Time        `json:"placedAt"`
}

// AccountInfo is the money state of the venue account.
type AccountInfo struct {
	Login       string  `json:"login"`
	Currency    string  `json:"currency"`
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	FreeMargin  float64 `json:"marginFree"`
	MarginLevel float64 `json:"marginLevel"` // percent, 0 when no margin is used
}

// Venue places orders. Implementations must be safe for concurrent use:
// the worker's health loop and poll loop share one Venue.
type Venue interface {
	Connect(ctx context.Context, creds Credentials) error
	Healthy(ctx context.Context) bool
	InstrumentInfo(ctx context.Context, symbol string) (market.InstrumentInfo, error)
	SubmitLimitOrder(ctx context.Context, order LimitOrder) (Execution, error)
	// LookupOrder finds an order previously submitted with clientRef.
	LookupOrder(ctx context.Context, clientRef string) (Execution, bool, error)

	// PendingOrders lists limit orders that have not triggered or been
	// cancelled. OrderDetail and CancelOrder return ErrOrderNotFound for
	// unknown ids.
	PendingOrders(ctx context.Context) ([]Order, error)
	OrderDetail(ctx context.Context, orderID string) (Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	Account(ctx context.Context) (AccountInfo, error)

	Close() error
}
