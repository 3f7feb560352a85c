package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpblcaoo/llmstruct/internal/assembler"
	"github.com/kpblcaoo/llmstruct/internal/search"
)

// Test Plan for query and search commands:
// - query prints a module's summary, entities and calls
// - query --json prints the module file
// - query of an entity UID prints its calls; unknown UIDs fail
// - search finds entities by identifier words and honors filters
// - search reports when nothing matches

func openProjectReader(t *testing.T) (string, *assembler.Reader) {
	t.Helper()
	root := setupProject(t)
	parseProject(t, root)
	dir := filepath.Join(root, "struct")
	reader, err := assembler.OpenReader(dir)
	require.NoError(t, err)
	return dir, reader
}

func TestExecuteQuery(t *testing.T) {
	t.Parallel()

	_, reader := openProjectReader(t)

	t.Run("module", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeQuery(reader, "app.db", false, &out))
		text := out.String()
		assert.Contains(t, text, "Module: app.db (app/db.py)")
		assert.Contains(t, text, "Doc: Database access.")
		assert.Contains(t, text, "app.db.connect#function")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeQuery(reader, "app.db", true, &out))
		var mf assembler.ModuleFile
		require.NoError(t, json.Unmarshal(out.Bytes(), &mf))
		assert.Equal(t, "app.db", mf.ModuleInfo.UID)
		require.Len(t, mf.Functions, 1)
		assert.Equal(t, "connect", mf.Functions[0].Name)
	})

	t.Run("entity", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeQuery(reader, "app.main.run#function", false, &out))
		assert.Contains(t, out.String(), "Entity: app.main.run#function")
		assert.Contains(t, out.String(), "print")
	})

	t.Run("unknown", func(t *testing.T) {
		var out bytes.Buffer
		err := executeQuery(reader, "app.nope", false, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "module not found: app.nope")

		err = executeQuery(reader, "app.nope.f#function", false, &out)
		assert.Error(t, err)
	})
}

func TestExecuteSearch(t *testing.T) {
	t.Parallel()

	dir, _ := openProjectReader(t)

	t.Run("by name", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeSearch(context.Background(), dir, "connect", &search.Options{Kind: search.KindFunction}, &out))
		assert.Contains(t, out.String(), "app.db.connect#function")
		assert.NotContains(t, out.String(), "app.main.run#function")
	})

	t.Run("no results", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeSearch(context.Background(), dir, "zzzunmatched", nil, &out))
		assert.Equal(t, "No results\n", out.String())
	})

	t.Run("missing dir", func(t *testing.T) {
		var out bytes.Buffer
		err := executeSearch(context.Background(), filepath.Join(t.TempDir(), "missing"), "connect", nil, &out)
		assert.Error(t, err)
	})
}
