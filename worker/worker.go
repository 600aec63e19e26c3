// Package worker executes queued trade commands against a venue, one at a
// time and in queue order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/tradequeue/journal"
	"github.com/rustyeddy/tradequeue/notify"
	"github.com/rustyeddy/tradequeue/pkg/id"
	"github.com/rustyeddy/tradequeue/queue"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	ID     string // stable across restarts; claims made under it can be resumed
	Prefix string
	Suffix string

	PollInterval   time.Duration
	HealthInterval time.Duration
	VenueTimeout   time.Duration
	ClaimLease     time.Duration
	MaxRetries     int
}

func (o *Options) setDefaults() {
	if o.ID == "" {
		o.ID = "worker"
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = 10 * time.Second
	}
	if o.VenueTimeout <= 0 {
		o.VenueTimeout = 10 * time.Second
	}
	if o.ClaimLease <= 0 {
		o.ClaimLease = 2 * time.Minute
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
}

// Stats are running totals since the worker started.
type Stats struct {
	Processed int64 `json:"processed"`
	Filled    int64 `json:"filled"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
}

type Worker struct {
	opts     Options
	owner    string // claim token, unique to this Worker value
	queue    queue.Queue
	journal  journal.Store
	conn     *Connection
	notifier notify.Notifier // optional

	// adopt is set while this worker holds the lock on its id. Only then
	// are claims left under the id by an earlier process its own.
	adopt  atomic.Bool
	unlock func() error

	processed atomic.Int64
	filled    atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

func New(opts Options, q queue.Queue, j journal.Store, conn *Connection, n notify.Notifier) *Worker {
	opts.setDefaults()
	return &Worker{
		opts:     opts,
		owner:    fmt.Sprintf("%s#%d.%s", opts.ID, os.Getpid(), id.New()),
		queue:    q,
		journal:  j,
		conn:     conn,
		notifier: n,
	}
}

func (w *Worker) ID() string { return w.opts.ID }

// Owner is the token this worker stamps on its claims.
func (w *Worker) Owner() string { return w.owner }

// ownerID is the worker id a claim token was made from. Tokens without a
// process part are taken as a bare id.
func ownerID(token string) string {
	if i := strings.LastIndexByte(token, '#'); i >= 0 {
		return token[:i]
	}
	return token
}

type ownerLocker interface {
	LockOwner(owner string) (func() error, error)
}

// LockID takes the exclusive lock on the worker id. While it is held,
// claims an earlier process left under the same id are resumed at once;
// without it they come back only when their lease runs out. A second live
// worker with the same id gets queue.ErrOwnerLocked.
func (w *Worker) LockID() error {
	if w.adopt.Load() {
		return nil
	}
	l, ok := w.queue.(ownerLocker)
	if !ok {
		return queue.ErrLockUnsupported
	}
	unlock, err := l.LockOwner(w.opts.ID)
	if err != nil {
		return err
	}
	w.unlock = unlock
	w.adopt.Store(true)
	return nil
}

// UnlockID gives up the id lock taken by LockID.
func (w *Worker) UnlockID() error {
	if !w.adopt.Swap(false) {
		return nil
	}
	unlock := w.unlock
	w.unlock = nil
	return unlock()
}

func (w *Worker) Stats() Stats {
	return Stats{
		Processed: w.processed.Load(),
		Filled:    w.filled.Load(),
		Failed:    w.failed.Load(),
		Retried:   w.retried.Load(),
	}
}

// Run polls the queue and watches the venue until ctx is cancelled. A
// command already being executed is finished before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.LockID(); err != nil {
		if !errors.Is(err, queue.ErrLockUnsupported) {
			return fmt.Errorf("worker %s: %w", w.opts.ID, err)
		}
		log.WithField("worker_id", w.opts.ID).Warn("worker id lock unsupported, earlier claims wait for their lease")
	}
	defer func() {
		if err := w.UnlockID(); err != nil {
			log.WithError(err).Warn("releasing worker id lock")
		}
	}()

	log.WithFields(log.Fields{
		"worker_id": w.opts.ID,
		"owner":     w.owner,
		"poll":      w.opts.PollInterval,
		"lease":     w.opts.ClaimLease,
	}).Info("worker started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.healthLoop(gctx) })
	g.Go(func() error { return w.pollLoop(gctx) })
	err := g.Wait()

	w.releaseClaims()

	if cerr := w.conn.Close(); cerr != nil {
		log.WithError(cerr).Warn("closing venue connection")
	}
	log.WithFields(log.Fields{
		"worker_id": w.opts.ID,
		"processed": w.processed.Load(),
	}).Info("worker stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) healthLoop(ctx context.Context) error {
	w.conn.Check(ctx)

	t := time.NewTicker(w.opts.HealthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.conn.Check(ctx)
		}
	}
}

func (w *Worker) pollLoop(ctx context.Context) error {
	t := time.NewTicker(w.opts.PollInterval)
	defer t.Stop()
	for {
		if _, err := w.Cycle(ctx); err != nil {
			log.WithError(err).Warn("poll cycle failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// releaseClaims hands claims still held by this worker back to pending so
// the next worker can start on them without waiting for the lease.
func (w *Worker) releaseClaims() {
	claimed, err := w.queue.ListClaimed()
	if err != nil {
		log.WithError(err).Warn("listing claims on shutdown")
		return
	}
	for _, e := range claimed {
		if !w.owns(e) {
			continue
		}
		if err := w.queue.Release(e.QueueID); err != nil {
			log.WithError(err).WithField("queue_id", e.QueueID).Warn("releasing claim")
			continue
		}
		log.WithField("queue_id", e.QueueID).Info("claim released")
	}
}

func (w *Worker) owns(e queue.Entry) bool {
	if e.ClaimedBy == w.owner {
		return true
	}
	return w.adopt.Load() && ownerID(e.ClaimedBy) == w.opts.ID
}

type workItem struct {
	id      string
	entry   queue.Entry
	claimed bool // by this worker
	foreign bool // by someone else
}

// Cycle runs one pass over the queue and returns how many commands it
// processed. It stops early when a command has to be retried or is held
// by another worker, so nothing behind it overtakes it.
func (w *Worker) Cycle(ctx context.Context) (int, error) {
	if n, err := w.queue.ReleaseStale(w.opts.ClaimLease); err != nil {
		log.WithError(err).Warn("releasing stale claims")
	} else if n > 0 {
		log.WithField("count", n).Info("recovered stale claims")
	}

	if !w.conn.Healthy() {
		log.Debug("venue unhealthy, skipping cycle")
		return 0, nil
	}

	items, err := w.workList()
	if err != nil {
		return 0, err
	}

	done := 0
	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		if it.foreign {
			log.WithFields(log.Fields{
				"queue_id":   it.id,
				"claimed_by": it.entry.ClaimedBy,
			}).Debug("waiting for entry claimed by another worker")
			break
		}
		entry := it.entry
		if !it.claimed {
			e, err := w.queue.Claim(it.id, w.owner)
			switch {
			case errors.Is(err, queue.ErrAlreadyClaimed):
				log.WithField("queue_id", it.id).Debug("lost claim race")
				return done, nil
			case errors.Is(err, queue.ErrCorruptEntry):
				log.WithError(err).WithField("queue_id", it.id).Error("corrupt queue entry")
				if ferr := w.queue.Fail(it.id, err.Error()); ferr != nil {
					log.WithError(ferr).WithField("queue_id", it.id).Error("archiving corrupt entry")
				}
				continue
			case err != nil:
				return done, err
			}
			entry = e
		}

		outcome := w.Process(ctx, entry)
		done++
		if outcome == Retry {
			break
		}
	}
	return done, nil
}

// workList merges every claimed entry with the pending ids, in queue order.
func (w *Worker) workList() ([]workItem, error) {
	claimed, err := w.queue.ListClaimed()
	if err != nil {
		return nil, err
	}
	pending, err := w.queue.ListPending()
	if err != nil {
		return nil, err
	}

	items := make([]workItem, 0, len(claimed)+len(pending))
	for _, e := range claimed {
		mine := w.owns(e)
		items = append(items, workItem{id: e.QueueID, entry: e, claimed: mine, foreign: !mine})
	}
	for _, qid := range pending {
		items = append(items, workItem{id: qid})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].id < items[j].id })
	return items, nil
}
