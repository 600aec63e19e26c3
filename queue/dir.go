package queue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/tradequeue/command"
	"github.com/rustyeddy/tradequeue/internal/fsutil"
	"github.com/rustyeddy/tradequeue/pkg/id"
	log "github.com/sirupsen/logrus"
)

const (
	tmpDir     = "tmp"
	pendingDir = "pending"
	claimedDir = "claimed"
	failedDir  = "failed"

	ext = ".json"
)

// Dir is a Queue backed by a directory tree:
//
//	root/tmp      partially written files
//	root/pending  entries waiting for a worker
//	root/claimed  entries owned by a worker; file mtime is the claim lease
//	root/failed   archived entries with their failure reason
//	root/workers  one lock file per worker id
//
// All four directories must be on one filesystem.
type Dir struct {
	root string
	now  func() time.Time
}

var _ Queue = (*Dir)(nil)

// Open creates the directory layout under root if needed.
func Open(root string) (*Dir, error) {
	d := &Dir{root: root, now: time.Now}
	if err := fsutil.EnsureDirs(d.dir(tmpDir), d.dir(pendingDir), d.dir(claimedDir), d.dir(failedDir), d.dir(workersDir)); err != nil {
		return nil, err
	}
	return d, nil
}

// Root returns the queue directory.
func (d *Dir) Root() string { return d.root }

func (d *Dir) dir(state string) string { return filepath.Join(d.root, state) }

func (d *Dir) path(state, qid string) string {
	return filepath.Join(d.root, state, qid+ext)
}

// Enqueue writes cmd as a new pending entry and returns its queue id.
func (d *Dir) Enqueue(cmd command.TradeCommand) (string, error) {
	now := d.now().UTC()
	qid := id.NewAt(now)
	e := Entry{
		QueueID:  qid,
		QueuedAt: now,
		Status:   StatusPending,
		Command:  cmd,
	}
	if err := fsutil.WriteJSONAtomic(d.dir(tmpDir), d.path(pendingDir, qid), e); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", cmd.CommandID, err)
	}
	log.WithFields(log.Fields{
		"queue_id":   qid,
		"command_id": cmd.CommandID,
	}).Debug("entry enqueued")
	return qid, nil
}

// ListPending returns pending ids in arrival order.
func (d *Dir) ListPending() ([]string, error) {
	return d.ids(pendingDir)
}

// ListClaimed returns every claimed entry in arrival order. Entries that
// cannot be decoded are logged and skipped.
func (d *Dir) ListClaimed() ([]Entry, error) {
	ids, err := d.ids(claimedDir)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(ids))
	for _, qid := range ids {
		e, err := d.read(claimedDir, qid)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.WithError(err).WithField("queue_id", qid).Warn("skipping unreadable claimed entry")
			}
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Claim moves a pending entry to claimed and stamps it with owner. Exactly
// one of any number of concurrent callers succeeds; the rest get
// ErrAlreadyClaimed. A claimed entry that cannot be decoded returns
// ErrCorruptEntry and stays claimed so the caller can Fail it.
func (d *Dir) Claim(qid, owner string) (Entry, error) {
	src, dst := d.path(pendingDir, qid), d.path(claimedDir, qid)

	// Rename keeps the mtime, so touch first or a stale sweep could take
	// the entry back straight after the rename.
	now := d.now()
	if err := os.Chtimes(src, now, now); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrAlreadyClaimed
		}
		return Entry{}, fmt.Errorf("claim %s: %w", qid, err)
	}
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrAlreadyClaimed
		}
		return Entry{}, fmt.Errorf("claim %s: %w", qid, err)
	}

	e, err := d.read(claimedDir, qid)
	if err != nil {
		return Entry{}, err
	}
	e.ClaimedBy = owner
	e.ClaimedAt = now.UTC()
	if err := fsutil.WriteJSONAtomic(d.dir(tmpDir), dst, e); err != nil {
		return Entry{}, fmt.Errorf("claim %s: %w", qid, err)
	}
	if err := os.Chtimes(dst, now, now); err != nil {
		return Entry{}, fmt.Errorf("claim %s: %w", qid, err)
	}
	return e, nil
}

// Renew refreshes the claim lease on qid.
func (d *Dir) Renew(qid string) error {
	now := d.now()
	if err := os.Chtimes(d.path(claimedDir, qid), now, now); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrClaimLost
		}
		return fmt.Errorf("renew %s: %w", qid, err)
	}
	return nil
}

// Release hands a claimed entry back to the pending set.
func (d *Dir) Release(qid string) error {
	if err := os.Rename(d.path(claimedDir, qid), d.path(pendingDir, qid)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrClaimLost
		}
		return fmt.Errorf("release %s: %w", qid, err)
	}
	return nil
}

// ReleaseStale returns claimed entries whose lease is older than lease to
// pending and reports how many moved.
func (d *Dir) ReleaseStale(lease time.Duration) (int, error) {
	ids, err := d.ids(claimedDir)
	if err != nil {
		return 0, err
	}
	cutoff := d.now().Add(-lease)
	released := 0
	for _, qid := range ids {
		fi, err := os.Stat(d.path(claimedDir, qid))
		if err != nil {
			continue
		}
		if !fi.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Rename(d.path(claimedDir, qid), d.path(pendingDir, qid)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return released, fmt.Errorf("release stale %s: %w", qid, err)
		}
		released++
		log.WithFields(log.Fields{
			"queue_id": qid,
			"age":      d.now().Sub(fi.ModTime()).Round(time.Second),
		}).Warn("released stale claim")
	}
	return released, nil
}

// Complete removes qid. Completing an unknown id is a no-op.
func (d *Dir) Complete(qid string) error {
	if err := fsutil.RemoveIfExists(d.path(claimedDir, qid)); err != nil {
		return fmt.Errorf("complete %s: %w", qid, err)
	}
	if err := fsutil.RemoveIfExists(d.path(pendingDir, qid)); err != nil {
		return fmt.Errorf("complete %s: %w", qid, err)
	}
	return nil
}

// Fail archives qid under failed/ with reason. Failing an entry that is
// already archived, or unknown, is a no-op.
func (d *Dir) Fail(qid, reason string) error {
	state := claimedDir
	if _, err := os.Stat(d.path(state, qid)); errors.Is(err, fs.ErrNotExist) {
		state = pendingDir
		if _, err := os.Stat(d.path(state, qid)); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	src, dst := d.path(state, qid), d.path(failedDir, qid)

	e, err := d.read(state, qid)
	switch {
	case errors.Is(err, ErrCorruptEntry):
		// Keep the raw bytes for inspection.
		if err := os.Rename(src, dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("fail %s: %w", qid, err)
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("fail %s: %w", qid, err)
	}

	e.Status = StatusFailed
	e.FailedAt = d.now().UTC()
	e.FailureReason = reason
	if err := fsutil.WriteJSONAtomic(d.dir(tmpDir), dst, e); err != nil {
		return fmt.Errorf("fail %s: %w", qid, err)
	}
	if err := fsutil.RemoveIfExists(src); err != nil {
		return fmt.Errorf("fail %s: %w", qid, err)
	}
	return nil
}

// ClearAll deletes every pending entry and returns the ones it removed.
// Claimed and failed entries are kept. An entry that cannot be decoded is
// returned with only its QueueID set.
func (d *Dir) ClearAll() ([]Entry, error) {
	ids, err := d.ids(pendingDir)
	if err != nil {
		return nil, err
	}
	var removed []Entry
	for _, qid := range ids {
		e, err := d.read(pendingDir, qid)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			e = Entry{QueueID: qid, Status: StatusPending}
		}
		err = os.Remove(d.path(pendingDir, qid))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("clear %s: %w", qid, err)
		}
		removed = append(removed, e)
	}
	return removed, nil
}

// Get returns the entry with qid from whichever state holds it.
func (d *Dir) Get(qid string) (Entry, error) {
	for _, state := range []string{claimedDir, pendingDir, failedDir} {
		e, err := d.read(state, qid)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return e, err
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, qid)
}

// Stats counts entries in each state.
func (d *Dir) Stats() (Stats, error) {
	var s Stats
	for state, n := range map[string]*int{pendingDir: &s.Pending, claimedDir: &s.Claimed, failedDir: &s.Failed} {
		ids, err := d.ids(state)
		if err != nil {
			return Stats{}, err
		}
		*n = len(ids)
	}
	return s, nil
}

// read decodes one entry. The directory is the source of truth for status.
func (d *Dir) read(state, qid string) (Entry, error) {
	var e Entry
	if err := fsutil.ReadJSON(d.path(state, qid), &e); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, err
		}
		var perr *fs.PathError
		if errors.As(err, &perr) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrCorruptEntry, qid, err)
	}
	if e.QueueID == "" {
		e.QueueID = qid
	}
	switch state {
	case pendingDir:
		e.Status = StatusPending
		e.ClaimedBy = ""
		e.ClaimedAt = time.Time{}
	case claimedDir:
		e.Status = StatusClaimed
	case failedDir:
		e.Status = StatusFailed
	}
	return e, nil
}

// ids lists entry ids in state, sorted ascending. ULIDs sort in arrival
// order; files not named by a ULID are ignored.
func (d *Dir) ids(state string) ([]string, error) {
	des, err := os.ReadDir(d.dir(state))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", state, err)
	}
	out := make([]string, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		qid := strings.TrimSuffix(name, ext)
		if !id.Valid(qid) {
			continue
		}
		out = append(out, qid)
	}
	sort.Strings(out)
	return out, nil
}
