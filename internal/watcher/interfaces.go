package watcher

import "context"

// FileWatcher monitors source files for changes with debouncing and pause/resume support.
type FileWatcher interface {
	// Start begins watching source directories, calling callback with debounced file changes.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
	Resume()
}

// Rebuilder regenerates the structural output after source files change.
type Rebuilder interface {
	// Rebuild re-runs the pipeline. changed holds the absolute paths that
	// triggered the rebuild; unchanged files are served by the analysis cache.
	Rebuild(ctx context.Context, changed []string) error
}

// RebuildFunc adapts an ordinary function to the Rebuilder interface.
type RebuildFunc func(ctx context.Context, changed []string) error

// Rebuild calls f(ctx, changed).
func (f RebuildFunc) Rebuild(ctx context.Context, changed []string) error {
	return f(ctx, changed)
}
