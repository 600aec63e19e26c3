// Package queue is the durable hand-off between the producer and the trade
// worker. Every entry is one JSON file; state changes are renames, so each
// command is observed whole or not at all and only one worker can own it.
package queue

import (
	"errors"
	"time"

	"github.com/rustyeddy/tradequeue/command"
)

var (
	ErrAlreadyClaimed  = errors.New("queue: entry is no longer pending")
	ErrClaimLost       = errors.New("queue: claim no longer held")
	ErrCorruptEntry    = errors.New("queue: corrupt entry")
	ErrNotFound        = errors.New("queue: entry not found")
	ErrOwnerLocked     = errors.New("queue: worker id is locked by another process")
	ErrLockUnsupported = errors.New("queue: owner locks are not supported on this platform")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusClaimed Status = "claimed"
	StatusFailed  Status = "failed"
)

// Entry is one queued command and its claim state.
type Entry struct {
	QueueID       string               `json:"queueId"`
	QueuedAt      time.Time            `json:"queuedAt"`
	Status        Status               `json:"status"`
	ClaimedBy     string               `json:"claimedBy,omitempty"`
	ClaimedAt     time.Time            `json:"claimedAt,omitzero"`
	FailedAt      time.Time            `json:"failedAt,omitzero"`
	FailureReason string               `json:"failureReason,omitempty"`
	Command       command.TradeCommand `json:"command"`
}

// Stats are entry counts per state.
type Stats struct {
	Pending int `json:"pending"`
	Claimed int `json:"claimed"`
	Failed  int `json:"failed"`
}

// Queue is the contract the producer and worker depend on.
type Queue interface {
	Enqueue(cmd command.TradeCommand) (string, error)
	ListPending() ([]string, error)
	ListClaimed() ([]Entry, error)
	Claim(id, owner string) (Entry, error)
	Renew(id string) error
	Release(id string) error
	ReleaseStale(lease time.Duration) (int, error)
	Complete(id string) error
	Fail(id, reason string) error
	ClearAll() ([]Entry, error)
	Get(id string) (Entry, error)
	Stats() (Stats, error)
}
