// Package journal is the permanent record of every trade command: created
// pending by the producer, finalized by the worker, never deleted.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/tradequeue/command"
	"github.com/rustyeddy/tradequeue/market"
)

var (
	ErrNotFound  = errors.New("journal: trade not found")
	ErrFinalized = errors.New("journal: trade already finalized")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusFilled  Status = "filled"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusFailed
}

// TradeRecord is one command and its execution outcome.
type TradeRecord struct {
	CommandID    string           `json:"commandId"`
	QueueID      string           `json:"queueId,omitempty"`
	AccountID    string           `json:"accountId"`
	Instrument   string           `json:"instrument"`
	Direction    market.Direction `json:"direction"`
	Entry        float64          `json:"entryPrice"`
	Stop         float64          `json:"stopPrice"`
	TakeProfit   float64          `json:"takeProfitPrice"`
	Size         float64          `json:"size"`
	RiskAmount   float64          `json:"riskAmount"`
	Strategy     string           `json:"strategy"`
	Sentiment    string           `json:"sentiment"`
	ReferenceURL string           `json:"referenceUrl,omitempty"`

	Status        Status  `json:"status"`
	ExecutionID   string  `json:"executionId,omitempty"`
	FillPrice     float64 `json:"fillPrice,omitempty"`
	FilledVolume  float64 `json:"filledVolume,omitempty"`
	FailureReason string  `json:"failureReason,omitempty"`
	Attempts      int     `json:"attempts"`
	LastError     string  `json:"lastError,omitempty"`

	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
}

// Fill is what the venue reported for an accepted order.
type Fill struct {
	ExecutionID string
	Price       float64
	Volume      float64
}

// Store is the trade journal. Producers only create records; the worker
// owns every later transition.
type Store interface {
	CreatePending(ctx context.Context, cmd command.TradeCommand) error
	SetQueueID(ctx context.Context, commandID, queueID string) error
	MarkSubmitted(ctx context.Context, commandID string, size float64) error
	RecordAttempt(ctx context.Context, commandID, lastError string) (int, error)
	MarkFilled(ctx context.Context, commandID string, fill Fill) error
	MarkFailed(ctx context.Context, commandID, reason string) error
	Get(ctx context.Context, commandID string) (TradeRecord, error)
	List(ctx context.Context, status Status, limit int) ([]TradeRecord, error)
	Close() error
}
