package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for FileWatcher:
// - NewFileWatcher creates watcher successfully with valid directories
// - NewFileWatcher returns error with invalid directory
// - Single file change fires callback after debounce
// - Multiple file changes are batched into one callback
// - Debouncing works (rapid changes coalesced into single callback)
// - Pause/Resume behavior (accumulate during pause, fire on resume)
// - Rewriting a file with identical bytes does not fire; a real edit does
// - File deleted triggers callback
// - Directory added triggers recursive watch
// - Skip rules drop files and whole directories
// - Default extensions are the registered source extensions
// - Stop() cleanup and context cancellation
// - Extension filtering (only monitored extensions trigger callback)
// - Deduplication (same file modified twice appears once in batch)
// - Concurrent Stop() calls are safe

// recorder collects callback batches.
type recorder struct {
	mu      sync.Mutex
	batches [][]string
	called  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{called: make(chan struct{}, 10)}
}

func (r *recorder) callback(files []string) {
	r.mu.Lock()
	r.batches = append(r.batches, files)
	r.mu.Unlock()
	r.called <- struct{}{}
}

func (r *recorder) wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.called:
	case <-time.After(timeout):
		t.Fatal("Callback not called after timeout")
	}
}

func (r *recorder) files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []string
	for _, b := range r.batches {
		all = append(all, b...)
	}
	return all
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func startWatcher(t *testing.T, dir string, opts Options) (FileWatcher, *recorder) {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	w, err := NewFileWatcher([]string{dir}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	rec := newRecorder()
	require.NoError(t, w.Start(context.Background(), rec.callback))
	// Wait for watcher to initialize
	time.Sleep(100 * time.Millisecond)
	return w, rec
}

func TestNewFileWatcher_Success(t *testing.T) {
	t.Parallel()

	watcher, err := NewFileWatcher([]string{t.TempDir()}, Options{Extensions: []string{".go", ".py"}})
	require.NoError(t, err)
	require.NotNil(t, watcher)
	require.NoError(t, watcher.Stop())
}

func TestNewFileWatcher_InvalidDirectory(t *testing.T) {
	t.Parallel()

	nonexistent := filepath.Join(t.TempDir(), "nonexistent")
	watcher, err := NewFileWatcher([]string{nonexistent}, Options{})
	assert.Error(t, err)
	assert.Nil(t, watcher)
}

func TestFileWatcher_SingleFileChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, rec := startWatcher(t, dir, Options{Extensions: []string{".py"}})

	testFile := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(testFile, []byte("x = 1\n"), 0644))

	rec.wait(t, 2*time.Second)
	assert.Equal(t, []string{testFile}, rec.files())
}

func TestFileWatcher_MultipleFileChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, rec := startWatcher(t, dir, Options{Extensions: []string{".go"}})

	file1 := filepath.Join(dir, "file1.go")
	file2 := filepath.Join(dir, "file2.go")
	file3 := filepath.Join(dir, "file3.go")

	// Within the debounce window
	require.NoError(t, os.WriteFile(file1, []byte("package main"), 0644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(file2, []byte("package main"), 0644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(file3, []byte("package main"), 0644))

	rec.wait(t, 2*time.Second)
	assert.Equal(t, 1, rec.count())
	assert.ElementsMatch(t, []string{file1, file2, file3}, rec.files())
}

func TestFileWatcher_Debouncing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, rec := startWatcher(t, dir, Options{Extensions: []string{".go"}})

	testFile := filepath.Join(dir, "test.go")
	for _, v := range []string{"v1", "v2", "v3"} {
		require.NoError(t, os.WriteFile(testFile, []byte("package main\n// "+v), 0644))
		time.Sleep(50 * time.Millisecond)
	}

	rec.wait(t, 2*time.Second)
	// Allow a stray second batch to show up
	time.Sleep(400 * time.Millisecond)

	assert.Equal(t, 1, rec.count(), "rapid changes should coalesce into one callback")
	assert.Equal(t, []string{testFile}, rec.files(), "file should appear only once")
}

func TestFileWatcher_PauseResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	watcher, rec := startWatcher(t, dir, Options{Extensions: []string{".go"}})

	watcher.Pause()

	pausedFile := filepath.Join(dir, "paused.go")
	require.NoError(t, os.WriteFile(pausedFile, []byte("package main"), 0644))

	// Beyond the debounce period
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 0, rec.count(), "No callbacks should fire while paused")

	watcher.Resume()

	rec.wait(t, 500*time.Millisecond)
	assert.Contains(t, rec.files(), pausedFile)
}

func TestFileWatcher_UnchangedContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, rec := startWatcher(t, dir, Options{Extensions: []string{".py"}})

	testFile := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(testFile, []byte("x = 1\n"), 0644))
	rec.wait(t, 2*time.Second)

	// Same bytes: saved without edits
	require.NoError(t, os.WriteFile(testFile, []byte("x = 1\n"), 0644))
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "identical content should not fire")

	require.NoError(t, os.WriteFile(testFile, []byte("x = 2\n"), 0644))
	rec.wait(t, 2*time.Second)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, []string{testFile, testFile}, rec.files())
}

func TestFileWatcher_FileDeleted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testFile := filepath.Join(dir, "gone.go")
	require.NoError(t, os.WriteFile(testFile, []byte("package main"), 0644))

	_, rec := startWatcher(t, dir, Options{Extensions: []string{".go"}})
	require.NoError(t, os.Remove(testFile))

	rec.wait(t, 2*time.Second)
	assert.Contains(t, rec.files(), testFile)
}

func TestFileWatcher_DirectoryAdded(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, rec := startWatcher(t, dir, Options{Extensions: []string{".go"}})

	newDir := filepath.Join(dir, "newdir")
	require.NoError(t, os.Mkdir(newDir, 0755))

	// Wait for directory to be added to watcher
	time.Sleep(300 * time.Millisecond)

	fileInNewDir := filepath.Join(newDir, "test.go")
	require.NoError(t, os.WriteFile(fileInNewDir, []byte("package main"), 0644))

	rec.wait(t, 2*time.Second)
	assert.Contains(t, rec.files(), fileInNewDir)
}

func TestFileWatcher_Skip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outDir := filepath.Join(dir, "struct")
	require.NoError(t, os.Mkdir(outDir, 0755))

	skip := func(path string, isDir bool) bool {
		return path == outDir || strings.HasSuffix(path, "_generated.py")
	}
	_, rec := startWatcher(t, dir, Options{Skip: skip})

	require.NoError(t, os.WriteFile(filepath.Join(outDir, "hidden.py"), []byte("x = 1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "api_generated.py"), []byte("x = 1"), 0644))
	kept := filepath.Join(dir, "kept.py")
	require.NoError(t, os.WriteFile(kept, []byte("x = 1"), 0644))

	rec.wait(t, 2*time.Second)
	assert.Equal(t, []string{kept}, rec.files())
}

func TestFileWatcher_DefaultExtensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, rec := startWatcher(t, dir, Options{})

	pyFile := filepath.Join(dir, "a.py")
	goFile := filepath.Join(dir, "b.go")
	require.NoError(t, os.WriteFile(pyFile, []byte("x = 1"), 0644))
	require.NoError(t, os.WriteFile(goFile, []byte("package b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("notes"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "struct.json"), []byte("{}"), 0644))

	rec.wait(t, 2*time.Second)
	assert.ElementsMatch(t, []string{pyFile, goFile}, rec.files())
}

func TestFileWatcher_ExtensionFiltering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, rec := startWatcher(t, dir, Options{Extensions: []string{".go", ".md"}})

	goFile := filepath.Join(dir, "test.go")
	mdFile := filepath.Join(dir, "README.md")
	txtFile := filepath.Join(dir, "notes.txt")
	jsFile := filepath.Join(dir, "app.js")

	require.NoError(t, os.WriteFile(goFile, []byte("package main"), 0644))
	require.NoError(t, os.WriteFile(mdFile, []byte("# Title"), 0644))
	require.NoError(t, os.WriteFile(txtFile, []byte("notes"), 0644))
	require.NoError(t, os.WriteFile(jsFile, []byte("console.log()"), 0644))

	rec.wait(t, 2*time.Second)
	files := rec.files()
	assert.Contains(t, files, goFile)
	assert.Contains(t, files, mdFile)
	assert.NotContains(t, files, txtFile)
	assert.NotContains(t, files, jsFile)
}

func TestFileWatcher_StopCleanup(t *testing.T) {
	t.Parallel()

	watcher, err := NewFileWatcher([]string{t.TempDir()}, Options{})
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background(), func(files []string) {}))
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, watcher.Stop())
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	// Calling Stop() again should be safe
	require.NoError(t, watcher.Stop())
}

func TestFileWatcher_StopWithoutStart(t *testing.T) {
	t.Parallel()

	watcher, err := NewFileWatcher([]string{t.TempDir()}, Options{})
	require.NoError(t, err)
	require.NoError(t, watcher.Stop())
}

func TestFileWatcher_ContextCancellation(t *testing.T) {
	t.Parallel()

	watcher, err := NewFileWatcher([]string{t.TempDir()}, Options{})
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, watcher.Start(ctx, func(files []string) {}))
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	cancel()

	fw := watcher.(*fileWatcher)
	<-fw.doneCh
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFileWatcher_ConcurrentStop(t *testing.T) {
	t.Parallel()

	watcher, err := NewFileWatcher([]string{t.TempDir()}, Options{})
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background(), func(files []string) {}))
	time.Sleep(100 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Stop()
		}()
	}

	// Should not panic or deadlock
	wg.Wait()
}
