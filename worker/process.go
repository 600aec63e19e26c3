package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/tradequeue/broker"
	"github.com/rustyeddy/tradequeue/journal"
	"github.com/rustyeddy/tradequeue/market"
	"github.com/rustyeddy/tradequeue/notify"
	"github.com/rustyeddy/tradequeue/queue"
	"github.com/rustyeddy/tradequeue/risk"
	log "github.com/sirupsen/logrus"
)

// Outcome is how one pass over a command ended.
type Outcome int

const (
	Filled    Outcome = iota
	Failed            // terminal failure
	Retry             // still claimed; try again on a later cycle
	Finalized         // record was already terminal; queue entry cleaned up
)

func (o Outcome) String() string {
	switch o {
	case Filled:
		return "filled"
	case Failed:
		return "failed"
	case Retry:
		return "retry"
	case Finalized:
		return "finalized"
	}
	return "unknown"
}

// Process executes one claimed entry. Venue and journal calls run on a
// context that ignores cancellation of ctx, so a shutdown never abandons a
// command half way.
func (w *Worker) Process(ctx context.Context, e queue.Entry) Outcome {
	ctx = context.WithoutCancel(ctx)
	cmd := e.Command
	logger := log.WithFields(log.Fields{
		"queue_id":   e.QueueID,
		"command_id": cmd.CommandID,
	})
	w.processed.Add(1)

	rec, err := w.record(ctx, e)
	if err != nil {
		logger.WithError(err).Error("journal unavailable")
		w.keep(e, logger)
		return Retry
	}

	if rec.Status.Terminal() {
		logger.WithField("status", rec.Status).Info("record already final, cleaning up queue entry")
		w.finalizeQueue(e, rec, logger)
		return Finalized
	}

	symbol := cmd.Instrument
	if cmd.Base != "" {
		symbol, err = market.Resolve(cmd.Base, w.opts.Prefix, w.opts.Suffix)
		if err != nil {
			return w.fail(ctx, e, err.Error(), logger)
		}
	}
	logger = logger.WithField("instrument", symbol)

	if err := risk.CheckStopPlacement(cmd.Direction, cmd.Entry, cmd.Stop); err != nil {
		return w.fail(ctx, e, err.Error(), logger)
	}
	if err := risk.CheckTargetSide(cmd.Direction, cmd.Entry, cmd.TakeProfit); err != nil {
		return w.fail(ctx, e, err.Error(), logger)
	}

	venue := w.conn.Venue()
	submitted := rec.SubmittedAt != nil

	if submitted {
		vctx, cancel := context.WithTimeout(ctx, w.opts.VenueTimeout)
		exec, found, err := venue.LookupOrder(vctx, cmd.CommandID)
		cancel()
		if err != nil {
			return w.connectivity(ctx, e, err, true, logger)
		}
		if found {
			logger.WithField("execution_id", exec.ExecutionID).Info("earlier submission found at venue")
			return w.fill(ctx, e, exec, logger)
		}
		logger.Info("earlier submission not found at venue, resubmitting")
	}

	vctx, cancel := context.WithTimeout(ctx, w.opts.VenueTimeout)
	info, err := venue.InstrumentInfo(vctx, symbol)
	cancel()
	if err != nil {
		if broker.IsRejection(err) {
			return w.fail(ctx, e, fmt.Sprintf("instrument %s not available: %v", symbol, err), logger)
		}
		return w.connectivity(ctx, e, err, submitted, logger)
	}

	size, err := risk.Size(risk.SizeInputs{
		RiskBudget: cmd.RiskAmount,
		Entry:      cmd.Entry,
		Stop:       cmd.Stop,
		TickValue:  info.TickValue,
		TickSize:   info.TickSize,
		VolumeStep: info.VolumeStep,
		MinVolume:  info.MinVolume,
		MaxVolume:  info.MaxVolume,
	})
	if err != nil {
		return w.fail(ctx, e, fmt.Sprintf("sizing: %v", err), logger)
	}
	logger.WithFields(log.Fields{
		"size":         size,
		"queued_size":  cmd.Size,
		"planned_risk": risk.PlannedRisk(size, cmd.Entry, cmd.Stop, info.TickValue, info.TickSize),
	}).Debug("size recomputed from live instrument")

	if err := w.journal.MarkSubmitted(ctx, cmd.CommandID, size); err != nil {
		logger.WithError(err).Error("recording submission")
		w.keep(e, logger)
		return Retry
	}

	order := broker.LimitOrder{
		Symbol:     symbol,
		Direction:  cmd.Direction,
		Volume:     size,
		Price:      cmd.Entry,
		StopLoss:   cmd.Stop,
		TakeProfit: cmd.TakeProfit,
		ClientRef:  cmd.CommandID,
		Comment:    cmd.Comment(),
	}
	vctx, cancel = context.WithTimeout(ctx, w.opts.VenueTimeout)
	exec, err := venue.SubmitLimitOrder(vctx, order)
	cancel()

	switch {
	case err == nil:
		return w.fill(ctx, e, exec, logger)
	case broker.IsRejection(err):
		var rej *broker.RejectedError
		reason := err.Error()
		if errors.As(err, &rej) {
			reason = rej.Reason
		}
		return w.fail(ctx, e, reason, logger)
	}
	return w.connectivity(ctx, e, err, true, logger)
}

// record loads the trade record, creating it for commands that were
// queued without one.
func (w *Worker) record(ctx context.Context, e queue.Entry) (journal.TradeRecord, error) {
	rec, err := w.journal.Get(ctx, e.Command.CommandID)
	if errors.Is(err, journal.ErrNotFound) {
		if err := w.journal.CreatePending(ctx, e.Command); err != nil {
			return journal.TradeRecord{}, err
		}
		rec, err = w.journal.Get(ctx, e.Command.CommandID)
	}
	if err != nil {
		return journal.TradeRecord{}, err
	}
	if rec.QueueID == "" {
		if err := w.journal.SetQueueID(ctx, rec.CommandID, e.QueueID); err == nil {
			rec.QueueID = e.QueueID
		}
	}
	return rec, nil
}

func (w *Worker) fill(ctx context.Context, e queue.Entry, exec broker.Execution, logger *log.Entry) Outcome {
	cmd := e.Command
	err := w.journal.MarkFilled(ctx, cmd.CommandID, journal.Fill{
		ExecutionID: exec.ExecutionID,
		Price:       exec.Price,
		Volume:      exec.Volume,
	})
	if err != nil {
		// The order is live; the next pass finds it by client ref.
		logger.WithError(err).Error("recording fill")
		w.keep(e, logger)
		return Retry
	}
	if err := w.queue.Complete(e.QueueID); err != nil {
		logger.WithError(err).Error("completing queue entry")
	}
	w.filled.Add(1)

	logger.WithFields(log.Fields{
		"execution_id": exec.ExecutionID,
		"volume":       exec.Volume,
		"price":        exec.Price,
	}).Info("order placed")

	w.notify(notify.Notification{
		CommandID:   cmd.CommandID,
		AccountID:   cmd.AccountID,
		Success:     true,
		Message:     fmt.Sprintf("%s %s %v @ %v placed", cmd.Direction.Label(), exec.Symbol, exec.Volume, exec.Price),
		ExecutionID: exec.ExecutionID,
	}, logger)
	return Filled
}

func (w *Worker) fail(ctx context.Context, e queue.Entry, reason string, logger *log.Entry) Outcome {
	cmd := e.Command
	if err := w.journal.MarkFailed(ctx, cmd.CommandID, reason); err != nil {
		if !errors.Is(err, journal.ErrFinalized) {
			logger.WithError(err).Error("recording failure")
			w.keep(e, logger)
			return Retry
		}
		logger.WithError(err).Warn("record already final")
	}
	if err := w.queue.Fail(e.QueueID, reason); err != nil {
		logger.WithError(err).Error("archiving queue entry")
	}
	w.failed.Add(1)

	logger.WithField("reason", reason).Warn("command failed")

	w.notify(notify.Notification{
		CommandID: cmd.CommandID,
		AccountID: cmd.AccountID,
		Success:   false,
		Message:   fmt.Sprintf("%s %s %v not placed", cmd.Direction.Label(), cmd.Instrument, cmd.Entry),
		Error:     reason,
	}, logger)
	return Failed
}

// connectivity handles a failure to reach the venue. The command keeps its
// claim and place in line until MaxRetries attempts have failed.
func (w *Worker) connectivity(ctx context.Context, e queue.Entry, cause error, submitted bool, logger *log.Entry) Outcome {
	w.conn.MarkUnhealthy(cause)

	attempts, err := w.journal.RecordAttempt(ctx, e.Command.CommandID, cause.Error())
	if err != nil {
		logger.WithError(err).Error("recording attempt")
		w.keep(e, logger)
		return Retry
	}

	if attempts >= w.opts.MaxRetries {
		reason := fmt.Sprintf("venue unreachable after %d attempts: %v", attempts, cause)
		if submitted {
			reason += "; order may have reached the venue, check before resubmitting"
		}
		return w.fail(ctx, e, reason, logger)
	}

	w.retried.Add(1)
	logger.WithError(cause).WithFields(log.Fields{
		"attempt":     attempts,
		"max_retries": w.opts.MaxRetries,
	}).Warn("venue call failed, will retry")
	w.keep(e, logger)
	return Retry
}

// keep renews the claim so a stale sweep does not hand the entry to
// another worker while it waits for a retry.
func (w *Worker) keep(e queue.Entry, logger *log.Entry) {
	if err := w.queue.Renew(e.QueueID); err != nil {
		logger.WithError(err).Warn("renewing claim")
	}
}

func (w *Worker) finalizeQueue(e queue.Entry, rec journal.TradeRecord, logger *log.Entry) {
	var err error
	if rec.Status == journal.StatusFilled {
		err = w.queue.Complete(e.QueueID)
	} else {
		err = w.queue.Fail(e.QueueID, rec.FailureReason)
	}
	if err != nil {
		logger.WithError(err).Error("cleaning up queue entry")
	}
}

func (w *Worker) notify(n notify.Notification, logger *log.Entry) {
	if w.notifier == nil {
		return
	}
	if _, err := w.notifier.Enqueue(n); err != nil {
		logger.WithError(err).Warn("queueing notification")
	}
}
