package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpblcaoo/llmstruct/internal/config"
	"github.com/kpblcaoo/llmstruct/internal/hashing"
)

// Test Plan for diff command:
// - an unchanged tree reports no changes
// - comment-only edits are not changes; code edits, new and removed files are
// - a missing database asks for a parse first
// - a disabled database is an error
// - printDiff groups paths by change kind

func TestExecuteDiff(t *testing.T) {
	t.Parallel()

	root := setupProject(t)
	cfg := parseProject(t, root)

	diff, err := executeDiff(context.Background(), root, cfg, discardLogger())
	require.NoError(t, err)
	assert.True(t, diff.Empty())

	writeTestFile(t, root, "app/main.py", `from app import db


def run():
    # connect first
    conn = db.connect("app.sqlite")
    print(conn)
`)
	diff, err = executeDiff(context.Background(), root, cfg, discardLogger())
	require.NoError(t, err)
	assert.True(t, diff.Empty(), "comments do not change the hash")

	writeTestFile(t, root, "app/db.py", "def connect(dsn, timeout):\n    return open(dsn)\n")
	writeTestFile(t, root, "app/cache.py", "def get(key):\n    return None\n")
	diff, err = executeDiff(context.Background(), root, cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"app/cache.py"}, diff.Added)
	assert.Equal(t, []string{"app/db.py"}, diff.Modified)
	assert.Empty(t, diff.Deleted)
}

func TestExecuteDiff_NoDatabase(t *testing.T) {
	t.Parallel()

	root := setupProject(t)
	_, err := executeDiff(context.Background(), root, config.Default(), discardLogger())
	assert.ErrorIs(t, err, errNoHashDatabase)

	cfg := config.Default()
	cfg.HashDB.Path = ""
	_, err = executeDiff(context.Background(), root, cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash database disabled")
}

func TestPrintDiff(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printDiff(&out, &hashing.Diff{})
	assert.Equal(t, "No changes since last parse\n", out.String())

	out.Reset()
	printDiff(&out, &hashing.Diff{Added: []string{"a.py"}, Deleted: []string{"b.py", "c.py"}})
	assert.Equal(t, "Added (1):\n  + a.py\nDeleted (2):\n  - b.py\n  - c.py\n", out.String())
}
