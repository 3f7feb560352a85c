package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpblcaoo/llmstruct/internal/assembler"
	"github.com/kpblcaoo/llmstruct/internal/config"
)

// Test Plan for parse command:
// - flags override the loaded config and are validated
// - a quiet parse writes the modular directory and the hash database
// - flat mode writes the flat document at --flat-file
// - a tree without source files fails
// - watchSkipper rejects outputs, tool directories and excluded dirs

func TestParseFlags_Apply(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	flags := parseFlags{mode: "BOTH", output: "out", flatFile: "all.json", language: "go", multi: true, noCache: true}
	require.NoError(t, flags.apply(cfg))

	assert.Equal(t, "both", cfg.Output.Mode)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, "all.json", cfg.Output.FlatFile)
	assert.Equal(t, "go", cfg.Output.Language)
	assert.True(t, cfg.Output.MultiLanguage)
	assert.False(t, cfg.Cache.Enabled)

	untouched := config.Default()
	require.NoError(t, parseFlags{}.apply(untouched))
	assert.Equal(t, config.Default(), untouched)

	err := parseFlags{mode: "tree"}.apply(config.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flags")
}

func TestExecuteParse_Modular(t *testing.T) {
	t.Parallel()

	root := setupProject(t)
	parseProject(t, root)

	reader, err := assembler.OpenReader(filepath.Join(root, "struct"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app.db", "app.main"}, reader.UIDs())
	assert.FileExists(t, filepath.Join(root, ".llmstruct", "hashes.db"))
	assert.NoFileExists(t, filepath.Join(root, "struct.json"))
}

func TestExecuteParse_Flat(t *testing.T) {
	t.Parallel()

	root := setupProject(t)
	cfg := config.Default()
	require.NoError(t, parseFlags{mode: "flat", flatFile: "out/project.json"}.apply(cfg))

	var out bytes.Buffer
	require.NoError(t, executeParse(context.Background(), root, cfg, parseFlags{quiet: true}, &out, discardLogger()))
	assert.FileExists(t, filepath.Join(root, "out", "project.json"))
	assert.NoDirExists(t, filepath.Join(root, "struct"))
}

func TestExecuteParse_NoSourceFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTestFile(t, root, "README.md", "# nothing to parse\n")

	var out bytes.Buffer
	err := executeParse(context.Background(), root, config.Default(), parseFlags{quiet: true}, &out, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse failed")
}

func TestWatchSkipper(t *testing.T) {
	t.Parallel()

	root := filepath.Join(string(filepath.Separator), "project")
	cfg := config.Default()
	cfg.Paths.ExcludeDirs = []string{"vendor", "third_party/gen"}
	skip := watchSkipper(root, cfg)

	tests := []struct {
		name  string
		path  string
		isDir bool
		want  bool
	}{
		{"source file", "app/db.py", false, false},
		{"source dir", "app", true, false},
		{"output dir", "struct", true, true},
		{"file in output dir", "struct/modules/app.db.json", false, true},
		{"flat file", "struct.json", false, true},
		{"git dir", ".git", true, true},
		{"nested node_modules", "web/node_modules", true, true},
		{"config dir", ".llmstruct", true, true},
		{"excluded by name", "pkg/vendor", true, true},
		{"excluded by path", "third_party/gen", true, true},
		{"sibling of excluded path", "third_party/src", true, false},
		{"prefix of output dir", "structure", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, skip(filepath.Join(root, filepath.FromSlash(tt.path)), tt.isDir))
		})
	}
}
