// Package notify is the outbox the worker writes execution results to and
// the front end drains.
package notify

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/tradequeue/internal/fsutil"
	"github.com/rustyeddy/tradequeue/pkg/id"
	log "github.com/sirupsen/logrus"
)

// Notification tells the user how a command ended.
type Notification struct {
	ID          string    `json:"notificationId"`
	CommandID   string    `json:"commandId"`
	AccountID   string    `json:"accountId"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	ExecutionID string    `json:"executionId,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Notifier accepts notifications.
type Notifier interface {
	Enqueue(n Notification) (string, error)
}

// Outbox stores one JSON file per notification in a directory.
type Outbox struct {
	dir string
	now func() time.Time
}

var _ Notifier = (*Outbox)(nil)

func Open(dir string) (*Outbox, error) {
	if err := fsutil.EnsureDirs(dir); err != nil {
		return nil, err
	}
	return &Outbox{dir: dir, now: time.Now}, nil
}

func (o *Outbox) path(nid string) string { return filepath.Join(o.dir, nid+".json") }

// Enqueue stores n and returns its id.
func (o *Outbox) Enqueue(n Notification) (string, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = o.now().UTC()
	}
	if n.ID == "" {
		n.ID = id.NewAt(n.CreatedAt)
	}
	if err := fsutil.WriteJSONAtomic(o.dir, o.path(n.ID), n); err != nil {
		return "", fmt.Errorf("notify %s: %w", n.CommandID, err)
	}
	log.WithFields(log.Fields{
		"notification_id": n.ID,
		"command_id":      n.CommandID,
		"success":         n.Success,
	}).Debug("notification queued")
	return n.ID, nil
}

// Pending returns unsent notifications, oldest first. Unreadable files
// are logged and skipped.
func (o *Outbox) Pending() ([]Notification, error) {
	des, err := os.ReadDir(o.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Notification, 0, len(names))
	for _, name := range names {
		var n Notification
		if err := fsutil.ReadJSON(filepath.Join(o.dir, name), &n); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.WithError(err).WithField("file", name).Warn("skipping unreadable notification")
			}
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkSent deletes a delivered notification. It reports whether it existed.
func (o *Outbox) MarkSent(nid string) (bool, error) {
	err := os.Remove(o.path(nid))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
