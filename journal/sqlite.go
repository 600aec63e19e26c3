package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/tradequeue/command"
)

// SQLite is a Store in a single SQLite file. The producer and the worker
// may open the same file from different processes.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (j *SQLite) stamp() time.Time { return j.now().UTC() }

// CreatePending inserts the record for a freshly built command.
func (j *SQLite) CreatePending(ctx context.Context, cmd command.TradeCommand) error {
	now := j.stamp()
	created := cmd.CreatedAt.UTC()
	if cmd.CreatedAt.IsZero() {
		created = now
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades
		(command_id, account_id, instrument, direction, entry_price, stop_price, take_profit,
		 size, risk_amount, strategy, sentiment, reference_url, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cmd.CommandID, cmd.AccountID, cmd.Instrument, string(cmd.Direction),
		cmd.Entry, cmd.Stop, cmd.TakeProfit, cmd.Size, cmd.RiskAmount,
		cmd.Tags.Strategy, cmd.Tags.Sentiment, cmd.ReferenceURL,
		string(StatusPending), created, now,
	)
	if err != nil {
		return fmt.Errorf("create trade %s: %w", cmd.CommandID, err)
	}
	return nil
}

func (j *SQLite) SetQueueID(ctx context.Context, commandID, queueID string) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE trades SET queue_id = ?, updated_at = ? WHERE command_id = ?`,
		queueID, j.stamp(), commandID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, commandID)
	}
	return nil
}

// MarkSubmitted records that an order is about to be sent with size.
// After this, an interrupted attempt must be reconciled with the venue
// before the order is sent again.
func (j *SQLite) MarkSubmitted(ctx context.Context, commandID string, size float64) error {
	now := j.stamp()
	res, err := j.db.ExecContext(ctx, `
		UPDATE trades SET submitted_at = ?, size = ?, updated_at = ?
		WHERE command_id = ? AND status = 'pending'`,
		now, size, now, commandID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	return j.transitionError(ctx, commandID, "")
}

// RecordAttempt counts one failed connectivity attempt and returns the
// total so far.
func (j *SQLite) RecordAttempt(ctx context.Context, commandID, lastError string) (int, error) {
	var attempts int
	err := j.db.QueryRowContext(ctx, `
		UPDATE trades SET attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE command_id = ? AND status = 'pending'
		RETURNING attempts`,
		lastError, j.stamp(), commandID).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, j.transitionError(ctx, commandID, "")
	}
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

// MarkFilled finalizes a record as filled. Repeating it is a no-op; a
// record that already failed returns ErrFinalized.
func (j *SQLite) MarkFilled(ctx context.Context, commandID string, fill Fill) error {
	now := j.stamp()
	res, err := j.db.ExecContext(ctx, `
		UPDATE trades
		SET status = 'filled', execution_id = ?, fill_price = ?, filled_volume = ?,
		    updated_at = ?, closed_at = ?
		WHERE command_id = ? AND status = 'pending'`,
		fill.ExecutionID, fill.Price, fill.Volume, now, now, commandID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	return j.transitionError(ctx, commandID, StatusFilled)
}

// MarkFailed finalizes a record as failed with reason.
func (j *SQLite) MarkFailed(ctx context.Context, commandID, reason string) error {
	now := j.stamp()
	res, err := j.db.ExecContext(ctx, `
		UPDATE trades
		SET status = 'failed', failure_reason = ?, updated_at = ?, closed_at = ?
		WHERE command_id = ? AND status = 'pending'`,
		reason, now, now, commandID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	return j.transitionError(ctx, commandID, StatusFailed)
}

// transitionError explains why an update on a pending record touched no
// rows. Reaching the target status already counts as success.
func (j *SQLite) transitionError(ctx context.Context, commandID string, target Status) error {
	var cur string
	err := j.db.QueryRowContext(ctx, `SELECT status FROM trades WHERE command_id = ?`, commandID).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, commandID)
	}
	if err != nil {
		return err
	}
	if target != "" && Status(cur) == target {
		return nil
	}
	return fmt.Errorf("%w: %s is %s", ErrFinalized, commandID, cur)
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
