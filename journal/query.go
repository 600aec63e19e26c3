package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const selectTrade = `
	SELECT command_id, queue_id, account_id, instrument, direction, entry_price, stop_price,
	       take_profit, size, risk_amount, strategy, sentiment, reference_url, status,
	       execution_id, fill_price, filled_volume, failure_reason, attempts, last_error,
	       submitted_at, created_at, updated_at, closed_at
	FROM trades`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var (
		rec       TradeRecord
		submitted sql.NullTime
		closed    sql.NullTime
	)
	err := s.Scan(
		&rec.CommandID,
		&rec.QueueID,
		&rec.AccountID,
		&rec.Instrument,
		&rec.Direction,
		&rec.Entry,
		&rec.Stop,
		&rec.TakeProfit,
		&rec.Size,
		&rec.RiskAmount,
		&rec.Strategy,
		&rec.Sentiment,
		&rec.ReferenceURL,
		&rec.Status,
		&rec.ExecutionID,
		&rec.FillPrice,
		&rec.FilledVolume,
		&rec.FailureReason,
		&rec.Attempts,
		&rec.LastError,
		&submitted,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&closed,
	)
	if err != nil {
		return TradeRecord{}, err
	}
	if submitted.Valid {
		t := submitted.Time.UTC()
		rec.SubmittedAt = &t
	}
	if closed.Valid {
		t := closed.Time.UTC()
		rec.ClosedAt = &t
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// Get returns a single trade record by command id.
func (j *SQLite) Get(ctx context.Context, commandID string) (TradeRecord, error) {
	row := j.db.QueryRowContext(ctx, selectTrade+` WHERE command_id = ?`, commandID)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("%w: %s", ErrNotFound, commandID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// List returns the newest records first. An empty status lists all;
// limit <= 0 means no limit.
func (j *SQLite) List(ctx context.Context, status Status, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	q := selectTrade + ` WHERE (? = '' OR status = ?) ORDER BY created_at DESC, command_id LIMIT ?`
	return j.query(ctx, q, string(status), string(status), limit)
}

// ListClosedBetween returns finalized trades whose closed_at is within
// [start, end).
func (j *SQLite) ListClosedBetween(ctx context.Context, start, end time.Time) ([]TradeRecord, error) {
	q := selectTrade + ` WHERE closed_at >= ? AND closed_at < ? ORDER BY closed_at ASC`
	return j.query(ctx, q, start.UTC(), end.UTC())
}

func (j *SQLite) query(ctx context.Context, q string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
