package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kpblcaoo/llmstruct/internal/config"
)

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeTestFile writes content to root/rel, creating parent directories.
func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setupProject creates a two-module Python project and returns its root.
func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTestFile(t, root, "app/db.py", `"""Database access."""


def connect(dsn):
    """Open a connection to the database."""
    return open(dsn)
`)
	writeTestFile(t, root, "app/main.py", `from app import db


def run():
    conn = db.connect("app.sqlite")
    print(conn)
`)
	return root
}

// parseProject runs a quiet parse of root with the default configuration.
func parseProject(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := config.Default()
	var out bytes.Buffer
	require.NoError(t, executeParse(context.Background(), root, cfg, parseFlags{quiet: true}, &out, discardLogger()))
	require.Contains(t, out.String(), "Parse complete: 2 modules")
	return cfg
}
