package command

import (
	"context"
	"fmt"

	"github.com/rustyeddy/tradequeue/risk"
	log "github.com/sirupsen/logrus"
)

// Enqueuer is the producer side of the command queue.
type Enqueuer interface {
	Enqueue(cmd TradeCommand) (string, error)
}

// Recorder creates the permanent trade record. The producer only ever
// creates records; it never updates one after the hand-off.
type Recorder interface {
	CreatePending(ctx context.Context, cmd TradeCommand) error
	SetQueueID(ctx context.Context, commandID, queueID string) error
	MarkFailed(ctx context.Context, commandID, reason string) error
}

// Receipt is returned to the front end after a successful hand-off.
type Receipt struct {
	Command    TradeCommand
	QueueID    string
	Assessment risk.Assessment
}

// Producer builds commands, records them as pending and enqueues them.
type Producer struct {
	Builder  Builder
	Queue    Enqueuer
	Recorder Recorder
}

// Submit runs the whole producer path for one request. Input errors are
// returned before anything is written.
func (p *Producer) Submit(ctx context.Context, req Request) (Receipt, error) {
	cmd, err := p.Builder.Build(req)
	if err != nil {
		return Receipt{}, err
	}
	assessment, err := risk.Assess(cmd.Direction, cmd.Entry, cmd.Stop, cmd.TakeProfit)
	if err != nil {
		return Receipt{}, err
	}

	if err := p.Recorder.CreatePending(ctx, cmd); err != nil {
		return Receipt{}, fmt.Errorf("record command %s: %w", cmd.CommandID, err)
	}

	queueID, err := p.Queue.Enqueue(cmd)
	if err != nil {
		reason := fmt.Sprintf("enqueue failed: %v", err)
		if ferr := p.Recorder.MarkFailed(ctx, cmd.CommandID, reason); ferr != nil {
			log.WithError(ferr).WithField("command_id", cmd.CommandID).Error("mark unqueued command failed")
		}
		return Receipt{}, fmt.Errorf("enqueue command %s: %w", cmd.CommandID, err)
	}

	if err := p.Recorder.SetQueueID(ctx, cmd.CommandID, queueID); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"command_id": cmd.CommandID,
			"queue_id":   queueID,
		}).Warn("could not link queue id to trade record")
	}

	log.WithFields(log.Fields{
		"command_id": cmd.CommandID,
		"queue_id":   queueID,
		"instrument": cmd.Instrument,
		"direction":  cmd.Direction,
		"size":       cmd.Size,
		"rr":         assessment.Ratio,
	}).Info("command queued")

	return Receipt{Command: cmd, QueueID: queueID, Assessment: assessment}, nil
}
