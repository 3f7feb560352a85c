package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// WatchCoordinator routes debounced file changes from a FileWatcher to a
// Rebuilder, one rebuild at a time.
type WatchCoordinator struct {
	files     FileWatcher
	rebuilder Rebuilder
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]bool
	wake    chan struct{}
}

// NewWatchCoordinator creates a new watch coordinator.
func NewWatchCoordinator(files FileWatcher, rebuilder Rebuilder, logger *slog.Logger) *WatchCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchCoordinator{
		files:     files,
		rebuilder: rebuilder,
		logger:    logger,
		pending:   make(map[string]bool),
		wake:      make(chan struct{}, 1),
	}
}

// Start begins routing file changes to the rebuilder.
// Blocks until context is cancelled, then stops the file watcher.
func (c *WatchCoordinator) Start(ctx context.Context) error {
	if err := c.files.Start(ctx, c.handleFileChange); err != nil {
		c.cleanup()
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer c.cleanup()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.wake:
			c.rebuild(ctx, c.takePending())
		}
	}
}

// cleanup stops the file watcher.
func (c *WatchCoordinator) cleanup() {
	if err := c.files.Stop(); err != nil {
		c.logger.Warn("file watcher stop failed", "error", err)
	}
}

// handleFileChange queues a batch of changed files. It never blocks the
// watcher's event loop.
func (c *WatchCoordinator) handleFileChange(files []string) {
	if len(files) == 0 {
		return
	}

	c.mu.Lock()
	for _, f := range files {
		c.pending[f] = true
	}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *WatchCoordinator) takePending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	files := make([]string, 0, len(c.pending))
	for f := range c.pending {
		files = append(files, f)
	}
	c.pending = make(map[string]bool)
	sort.Strings(files)
	return files
}

// rebuild runs the rebuilder with the watcher paused. Changes arriving
// meanwhile accumulate and are queued again on resume.
func (c *WatchCoordinator) rebuild(ctx context.Context, files []string) {
	if len(files) == 0 || ctx.Err() != nil {
		return
	}

	c.files.Pause()
	defer c.files.Resume()

	c.logger.Info("processing file changes", "files", len(files))
	start := time.Now()
	if err := c.rebuilder.Rebuild(ctx, files); err != nil {
		c.logger.Error("rebuild failed", "error", err)
		return
	}
	c.logger.Info("rebuild complete", "files", len(files), "took", time.Since(start).Round(time.Millisecond))
}
