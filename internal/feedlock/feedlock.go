// Package feedlock serializes operations that rewrite the record store.
// The lock is a marker file created with O_EXCL, so it works across
// processes without any daemon.
package feedlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultTimeout bounds how long Acquire waits for a competing
	// operation to finish.
	DefaultTimeout = 30 * time.Second

	retryInterval = 100 * time.Millisecond
)

// ErrTimeout indicates the lock was not acquired within the deadline.
var ErrTimeout = errors.New("timed out waiting for record store lock")

// Lock is a held file lock. Release it with Release; releasing twice is a
// no-op.
type Lock struct {
	path     string
	released bool
}

// Acquire takes the lock at path, retrying until the context is done or
// timeout elapses. A zero timeout uses DefaultTimeout.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintln(f, strconv.Itoa(os.Getpid()))
			if err := f.Close(); err != nil {
				os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", err)
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.released {
		return nil
	}
	l.released = true
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}
