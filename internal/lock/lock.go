// Package lock serializes writers of an output directory across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the lock file created inside a locked directory.
const FileName = ".lock"

// ErrBusy is returned by TryAcquire when another process holds the lock.
var ErrBusy = errors.New("output directory is locked by another process")

const retryDelay = 100 * time.Millisecond

// DirLock is an exclusive advisory lock on a directory.
type DirLock struct {
	lock *flock.Flock
}

// Acquire blocks until the exclusive lock on dir is held or ctx is done.
// The directory is created if needed.
func Acquire(ctx context.Context, dir string) (*DirLock, error) {
	l, err := newLock(dir)
	if err != nil {
		return nil, err
	}

	locked, err := l.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", dir, ErrBusy)
	}
	return &DirLock{lock: l}, nil
}

// TryAcquire takes the lock without waiting. It returns ErrBusy when another
// process holds it.
func TryAcquire(dir string) (*DirLock, error) {
	l, err := newLock(dir)
	if err != nil {
		return nil, err
	}

	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", dir, err)
	}
	if !locked {
		return nil, ErrBusy
	}
	return &DirLock{lock: l}, nil
}

func newLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return flock.New(filepath.Join(dir, FileName)), nil
}

// Release releases the lock. It is safe to call more than once.
func (d *DirLock) Release() error {
	if d == nil || d.lock == nil {
		return nil
	}
	return d.lock.Unlock()
}
