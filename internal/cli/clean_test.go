package cli

// Test Plan for clean command:
// - executeClean removes the modular directory, flat document and hash database
// - the configuration directory survives
// - a second run reports there is nothing to clean
// - a directory locked by a running parse is not removed

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpblcaoo/llmstruct/internal/lock"
)

func TestExecuteClean(t *testing.T) {
	t.Parallel()

	root := setupProject(t)
	cfg := parseProject(t, root)
	writeTestFile(t, root, ".llmstruct/config.yml", "output:\n  mode: modular\n")
	writeTestFile(t, root, "struct.json", "{}")

	var out bytes.Buffer
	require.NoError(t, executeClean(root, cfg, &out))
	assert.NoDirExists(t, filepath.Join(root, "struct"))
	assert.NoFileExists(t, filepath.Join(root, "struct.json"))
	assert.NoFileExists(t, filepath.Join(root, ".llmstruct", "hashes.db"))
	assert.FileExists(t, filepath.Join(root, ".llmstruct", "config.yml"))
	assert.Contains(t, out.String(), "Removed")
	assert.Contains(t, out.String(), "Next 'llmstruct parse'")

	out.Reset()
	require.NoError(t, executeClean(root, cfg, &out))
	assert.Equal(t, "Nothing to clean\n", out.String())
}

func TestExecuteClean_LockedDirectory(t *testing.T) {
	t.Parallel()

	root := setupProject(t)
	cfg := parseProject(t, root)
	dir := filepath.Join(root, "struct")

	held, err := lock.TryAcquire(dir)
	require.NoError(t, err)
	defer held.Release()

	var out bytes.Buffer
	err = executeClean(root, cfg, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, lock.ErrBusy)

	_, statErr := os.Stat(filepath.Join(dir, "index.json"))
	assert.NoError(t, statErr)
}
