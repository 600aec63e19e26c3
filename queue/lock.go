package queue

import (
	"fmt"
	"path/filepath"
	"strings"
)

const workersDir = "workers"

// LockOwner takes an exclusive lock on root/workers/<owner>.lock and holds
// it until the returned func is called. A second holder, in this process
// or another, gets ErrOwnerLocked. The lock dies with the process.
func (d *Dir) LockOwner(owner string) (func() error, error) {
	if owner == "" {
		return nil, fmt.Errorf("lock owner: empty owner")
	}
	path := filepath.Join(d.root, workersDir, lockName(owner)+".lock")
	unlock, err := lockFile(path)
	if err != nil {
		return nil, fmt.Errorf("lock owner %s: %w", owner, err)
	}
	return unlock, nil
}

func lockName(owner string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, owner)
}
