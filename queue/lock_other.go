//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package queue

func lockFile(string) (func() error, error) {
	return nil, ErrLockUnsupported
}
