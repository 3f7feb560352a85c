package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for DirLock:
// - Acquire creates the directory and the lock file
// - a second TryAcquire on a held lock returns ErrBusy
// - Acquire gives up when its context ends while the lock is held
// - after Release the lock can be taken again
// - Release on a nil lock is a no-op

func TestDirLock(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")

	held, err := Acquire(context.Background(), dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, FileName))

	_, err = TryAcquire(dir)
	assert.ErrorIs(t, err, ErrBusy)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	_, err = Acquire(ctx, dir)
	assert.Error(t, err)

	require.NoError(t, held.Release())

	again, err := TryAcquire(dir)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func TestDirLock_ReleaseNil(t *testing.T) {
	t.Parallel()

	var l *DirLock
	assert.NoError(t, l.Release())
}
