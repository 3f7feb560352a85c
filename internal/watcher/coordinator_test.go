package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for WatchCoordinator:
// - File change event triggers Rebuild with the sorted changed files
// - The watcher is paused during a rebuild and resumed afterwards
// - Changes arriving during a rebuild are queued for the next one
// - Rebuild errors are logged and the coordinator keeps running
// - Empty change lists do not trigger a rebuild
// - Watcher Start() failure is propagated
// - Context cancellation stops the watcher and returns nil
// - RebuildFunc adapts a plain function

// mockFileWatcher implements FileWatcher for testing.
type mockFileWatcher struct {
	mu          sync.Mutex
	startErr    error
	stopErr     error
	callback    func(files []string)
	started     chan struct{}
	pauseCount  int
	resumeCount int
	paused      bool
	stopCalled  bool
}

func newMockFileWatcher() *mockFileWatcher {
	return &mockFileWatcher{started: make(chan struct{})}
}

func (m *mockFileWatcher) Start(ctx context.Context, callback func(files []string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.callback = callback
	close(m.started)
	return nil
}

func (m *mockFileWatcher) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalled = true
	return m.stopErr
}

func (m *mockFileWatcher) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseCount++
	m.paused = true
}

func (m *mockFileWatcher) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumeCount++
	m.paused = false
}

func (m *mockFileWatcher) isPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *mockFileWatcher) trigger(files ...string) {
	m.mu.Lock()
	callback := m.callback
	m.mu.Unlock()
	callback(files)
}

// mockRebuilder records Rebuild calls.
type mockRebuilder struct {
	mu       sync.Mutex
	calls    [][]string
	err      error
	onCall   func(files []string)
	rebuilt  chan struct{}
	watchers *mockFileWatcher
	paused   []bool
}

func newMockRebuilder(w *mockFileWatcher) *mockRebuilder {
	return &mockRebuilder{rebuilt: make(chan struct{}, 10), watchers: w}
}

func (m *mockRebuilder) Rebuild(ctx context.Context, changed []string) error {
	paused := m.watchers.isPaused()
	if m.onCall != nil {
		m.onCall(changed)
	}
	m.mu.Lock()
	m.calls = append(m.calls, changed)
	m.paused = append(m.paused, paused)
	err := m.err
	m.mu.Unlock()
	m.rebuilt <- struct{}{}
	return err
}

func (m *mockRebuilder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-m.rebuilt:
	case <-time.After(2 * time.Second):
		t.Fatal("Rebuild not called")
	}
}

func (m *mockRebuilder) snapshot() ([][]string, []bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string{}, m.calls...), append([]bool{}, m.paused...)
}

func runCoordinator(t *testing.T, c *WatchCoordinator) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func TestWatchCoordinator_FileChangeTriggersRebuild(t *testing.T) {
	t.Parallel()

	files := newMockFileWatcher()
	rebuilder := newMockRebuilder(files)
	c := NewWatchCoordinator(files, rebuilder, nil)
	runCoordinator(t, c)
	<-files.started

	files.trigger("/src/b.py", "/src/a.py")
	rebuilder.wait(t)

	calls, paused := rebuilder.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"/src/a.py", "/src/b.py"}, calls[0])
	assert.True(t, paused[0], "watcher must be paused during rebuild")

	assert.Eventually(t, func() bool { return !files.isPaused() }, time.Second, 10*time.Millisecond)
	files.mu.Lock()
	assert.Equal(t, 1, files.pauseCount)
	assert.Equal(t, 1, files.resumeCount)
	files.mu.Unlock()
}

func TestWatchCoordinator_ChangesDuringRebuildAreQueued(t *testing.T) {
	t.Parallel()

	files := newMockFileWatcher()
	rebuilder := newMockRebuilder(files)
	first := true
	rebuilder.onCall = func([]string) {
		if first {
			first = false
			files.trigger("/src/late.py")
		}
	}
	c := NewWatchCoordinator(files, rebuilder, nil)
	runCoordinator(t, c)
	<-files.started

	files.trigger("/src/a.py")
	rebuilder.wait(t)
	rebuilder.wait(t)

	calls, _ := rebuilder.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"/src/a.py"}, calls[0])
	assert.Equal(t, []string{"/src/late.py"}, calls[1])
}

func TestWatchCoordinator_RebuildErrorDoesNotStop(t *testing.T) {
	t.Parallel()

	files := newMockFileWatcher()
	rebuilder := newMockRebuilder(files)
	rebuilder.err = errors.New("analysis failed")
	c := NewWatchCoordinator(files, rebuilder, nil)
	_, errCh := runCoordinator(t, c)
	<-files.started

	files.trigger("/src/a.py")
	rebuilder.wait(t)
	files.trigger("/src/b.py")
	rebuilder.wait(t)

	calls, _ := rebuilder.snapshot()
	assert.Len(t, calls, 2)
	select {
	case err := <-errCh:
		t.Fatalf("coordinator stopped: %v", err)
	default:
	}
}

func TestWatchCoordinator_EmptyFileChangeList(t *testing.T) {
	t.Parallel()

	files := newMockFileWatcher()
	rebuilder := newMockRebuilder(files)
	c := NewWatchCoordinator(files, rebuilder, nil)
	runCoordinator(t, c)
	<-files.started

	files.trigger()
	time.Sleep(100 * time.Millisecond)

	calls, _ := rebuilder.snapshot()
	assert.Empty(t, calls)
}

func TestWatchCoordinator_FileWatcherStartError(t *testing.T) {
	t.Parallel()

	files := newMockFileWatcher()
	files.startErr = errors.New("inotify limit reached")
	c := NewWatchCoordinator(files, newMockRebuilder(files), nil)

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, files.startErr)
	assert.True(t, files.stopCalled)
}

func TestWatchCoordinator_ContextCancellation(t *testing.T) {
	t.Parallel()

	files := newMockFileWatcher()
	files.stopErr = errors.New("already closed")
	c := NewWatchCoordinator(files, newMockRebuilder(files), nil)
	cancel, errCh := runCoordinator(t, c)
	<-files.started

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err, "stop errors are logged, not returned")
	case <-time.After(time.Second):
		t.Fatal("coordinator did not stop")
	}

	files.mu.Lock()
	defer files.mu.Unlock()
	assert.True(t, files.stopCalled)
}

func TestRebuildFunc(t *testing.T) {
	t.Parallel()

	var got []string
	var r Rebuilder = RebuildFunc(func(ctx context.Context, changed []string) error {
		got = changed
		return nil
	})
	require.NoError(t, r.Rebuild(context.Background(), []string{"x.go"}))
	assert.Equal(t, []string{"x.go"}, got)
}
