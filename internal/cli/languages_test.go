package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpblcaoo/llmstruct/internal/config"
)

// Test Plan for languages command:
// - counts every language and names the dominant one
// - a configured language wins over the dominant one
// - excluded paths are not counted
// - an empty tree reports no source files

func TestExecuteLanguages(t *testing.T) {
	t.Parallel()

	root := setupProject(t)
	writeTestFile(t, root, "tools/gen.go", "package tools\n")
	writeTestFile(t, root, "vendored/lib.py", "x = 1\n")

	t.Run("dominant", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeLanguages(root, config.Default(), &out))
		assert.Contains(t, out.String(), "Languages: 3 python files, 1 go files")
		assert.Contains(t, out.String(), "Parse:     python (most files")
	})

	t.Run("configured", func(t *testing.T) {
		cfg := config.Default()
		cfg.Output.Language = "go"
		var out bytes.Buffer
		require.NoError(t, executeLanguages(root, cfg, &out))
		assert.Contains(t, out.String(), "Parse:     go (configured)")
	})

	t.Run("excluded", func(t *testing.T) {
		cfg := config.Default()
		cfg.Paths.Exclude = append(cfg.Paths.Exclude, "vendored/**")
		var out bytes.Buffer
		require.NoError(t, executeLanguages(root, cfg, &out))
		assert.Contains(t, out.String(), "Languages: 2 python files, 1 go files")
	})

	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeLanguages(t.TempDir(), config.Default(), &out))
		assert.Equal(t, "Languages: no source files\n", out.String())
	})
}
