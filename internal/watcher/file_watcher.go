package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kpblcaoo/llmstruct/internal/hashing"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// DefaultDebounce is the quiet period before accumulated changes are reported.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a FileWatcher.
type Options struct {
	// Extensions to monitor (e.g. ".go", ".py"). Empty means every
	// extension a registered language claims.
	Extensions []string

	// Skip reports whether a path is ignored. Directories for which Skip
	// returns true are not watched at all.
	Skip func(path string, isDir bool) bool

	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	Logger *slog.Logger
}

// fileWatcher implements FileWatcher interface.
type fileWatcher struct {
	watcher       *fsnotify.Watcher
	dirs          []string                // Directories to watch
	extensions    map[string]bool         // Extensions to monitor; nil means source extensions
	skip          func(string, bool) bool // Ignored paths; nil skips nothing
	debounceTime  time.Duration           // Quiet period before firing callback
	logger        *slog.Logger            // Logs watch errors
	callback      func(files []string)    // Callback to invoke with changed files
	ctx           context.Context         // Context for lifecycle management
	cancel        context.CancelFunc      // Cancel function for internal context
	paused        bool                    // Whether watching is paused
	pausedMu      sync.RWMutex            // Protects paused flag
	accumulated   map[string]bool         // Accumulated file changes
	accumulatedMu sync.Mutex              // Protects accumulated map
	digests       map[string]string       // Content digest of each file when last reported
	digestsMu     sync.Mutex              // Protects digests map
	debounceTimer *time.Timer             // Current debounce timer
	timerMu       sync.Mutex              // Protects debounce timer
	stopOnce      sync.Once               // Ensures Stop() is idempotent
	doneCh        chan struct{}           // Signals watch goroutine has finished
}

// NewFileWatcher creates a new file watcher for the given directories.
// Every directory is watched recursively, minus those opts.Skip rejects.
func NewFileWatcher(dirs []string, opts Options) (FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &fileWatcher{
		watcher:      watcher,
		dirs:         dirs,
		skip:         opts.Skip,
		debounceTime: DefaultDebounce,
		logger:       opts.Logger,
		accumulated:  make(map[string]bool),
		digests:      make(map[string]string),
		doneCh:       make(chan struct{}),
	}
	if opts.Debounce > 0 {
		fw.debounceTime = opts.Debounce
	}
	if fw.logger == nil {
		fw.logger = slog.Default()
	}
	if len(opts.Extensions) > 0 {
		fw.extensions = make(map[string]bool, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			fw.extensions[ext] = true
		}
	}

	for _, dir := range dirs {
		if err := fw.addDirectoriesRecursively(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	return fw, nil
}

// Start begins watching for file changes.
func (fw *fileWatcher) Start(ctx context.Context, callback func(files []string)) error {
	if callback == nil {
		return nil
	}

	fw.callback = callback
	fw.ctx, fw.cancel = context.WithCancel(ctx)

	go fw.watch()
	return nil
}

// Stop stops the file watcher.
func (fw *fileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		if fw.cancel != nil {
			fw.cancel()
			<-fw.doneCh
		} else {
			// Never started
			close(fw.doneCh)
		}
		err = fw.watcher.Close()
	})
	return err
}

// Pause stops firing callbacks but continues accumulating events.
func (fw *fileWatcher) Pause() {
	fw.pausedMu.Lock()
	defer fw.pausedMu.Unlock()
	fw.paused = true
}

// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
func (fw *fileWatcher) Resume() {
	fw.pausedMu.Lock()
	wasPaused := fw.paused
	fw.paused = false
	fw.pausedMu.Unlock()

	if wasPaused {
		fw.flush()
	}
}

// watch is the main event loop.
func (fw *fileWatcher) watch() {
	defer close(fw.doneCh)

	fireCh := make(chan struct{}, 1)

	for {
		select {
		case <-fw.ctx.Done():
			fw.stopDebounceTimer()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// New directories join the watch set
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && (fw.skip == nil || !fw.skip(event.Name, true)) {
					if err := fw.addDirectoriesRecursively(event.Name); err != nil {
						fw.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}

			if !fw.shouldProcessEvent(event) {
				continue
			}

			fw.accumulatedMu.Lock()
			fw.accumulated[event.Name] = true
			fw.accumulatedMu.Unlock()

			fw.resetDebounceTimer(fireCh)

		case <-fireCh:
			fw.handleDebounceExpired()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)
		}
	}
}

// handleDebounceExpired is called when the debounce timer expires.
func (fw *fileWatcher) handleDebounceExpired() {
	fw.pausedMu.RLock()
	paused := fw.paused
	fw.pausedMu.RUnlock()

	if paused {
		return
	}
	fw.flush()
}

// flush hands the accumulated files to the callback and clears them.
func (fw *fileWatcher) flush() {
	fw.accumulatedMu.Lock()
	if len(fw.accumulated) == 0 {
		fw.accumulatedMu.Unlock()
		return
	}
	files := make([]string, 0, len(fw.accumulated))
	for file := range fw.accumulated {
		files = append(files, file)
	}
	fw.accumulated = make(map[string]bool)
	fw.accumulatedMu.Unlock()

	files = fw.changedContent(files)
	if len(files) > 0 && fw.callback != nil {
		fw.callback(files)
	}
}

// changedContent drops files whose bytes match the digest recorded when they
// were last reported, so a touch or a save without edits does not trigger a
// rebuild. Files that cannot be hashed (deleted, unreadable) are kept.
func (fw *fileWatcher) changedContent(files []string) []string {
	fw.digestsMu.Lock()
	defer fw.digestsMu.Unlock()

	changed := files[:0]
	for _, file := range files {
		digest, err := hashing.HashFile(file)
		if err != nil {
			delete(fw.digests, file)
			changed = append(changed, file)
			continue
		}
		if prev, ok := fw.digests[file]; ok && prev == digest {
			continue
		}
		fw.digests[file] = digest
		changed = append(changed, file)
	}
	return changed
}

// resetDebounceTimer resets the debounce timer, properly stopping the old one.
func (fw *fileWatcher) resetDebounceTimer(fireCh chan struct{}) {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}

	fw.debounceTimer = time.AfterFunc(fw.debounceTime, func() {
		select {
		case fireCh <- struct{}{}:
		default:
		}
	})
}

// stopDebounceTimer stops the debounce timer if it exists.
func (fw *fileWatcher) stopDebounceTimer() {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
		fw.debounceTimer = nil
	}
}

// shouldProcessEvent filters events by operation, extension and skip rules.
func (fw *fileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	// Renames surface as Remove on the old name and Create on the new one
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	ext := filepath.Ext(event.Name)
	if fw.extensions != nil {
		if !fw.extensions[ext] {
			return false
		}
	} else if !model.IsSourceExtension(ext) {
		return false
	}

	return fw.skip == nil || !fw.skip(event.Name, false)
}

// addDirectoriesRecursively adds all directories in the tree to the watcher.
func (fw *fileWatcher) addDirectoriesRecursively(rootPath string) error {
	return filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == rootPath {
				return err
			}
			fw.logger.Warn("error accessing path", "path", path, "error", err)
			return nil
		}

		if !d.IsDir() {
			return nil
		}
		if path != rootPath && fw.skip != nil && fw.skip(path, true) {
			return filepath.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
