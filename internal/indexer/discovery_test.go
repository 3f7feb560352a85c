package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpblcaoo/llmstruct/internal/model"
)

// Test Plan for FileDiscovery:
// - only files with a known source extension are returned, sorted and slash-separated
// - vendor-like and VCS directories are always skipped
// - include patterns narrow the selection; root files match "**/" patterns
// - exclude patterns remove files and whole directories
// - .gitignore and extra gitignore lines are honored when enabled
// - include dirs restrict and exclude dirs skip, by name or by path
// - skip paths (the run's own outputs) are never returned
// - DetectProjectLanguages counts files per language in one walk

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func discoveryTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range []string{
		"main.go",
		"setup.py",
		"README.md",
		"pkg/mod.py",
		"pkg/mod_test.py",
		"pkg/gen/generated.py",
		"internal/core.go",
		"tools/build.py",
		"vendor/dep/dep.go",
		"node_modules/lib/index.js",
		".git/hooks/hook.py",
		"struct/index.py",
	} {
		writeFile(t, root, rel, "x\n")
	}
	return root
}

func discover(t *testing.T, root string, opts DiscoveryOptions) []string {
	t.Helper()
	fd, err := NewFileDiscovery(root, opts)
	require.NoError(t, err)
	files, err := fd.DiscoverFiles()
	require.NoError(t, err)
	return files
}

func TestFileDiscovery(t *testing.T) {
	t.Parallel()

	root := discoveryTree(t)

	tests := []struct {
		name string
		opts DiscoveryOptions
		want []string
	}{
		{
			name: "defaults",
			opts: DiscoveryOptions{},
			want: []string{"internal/core.go", "main.go", "pkg/gen/generated.py", "pkg/mod.py", "pkg/mod_test.py", "setup.py", "struct/index.py", "tools/build.py"},
		},
		{
			name: "include patterns",
			opts: DiscoveryOptions{IncludePatterns: []string{"**/*.py"}},
			want: []string{"pkg/gen/generated.py", "pkg/mod.py", "pkg/mod_test.py", "setup.py", "struct/index.py", "tools/build.py"},
		},
		{
			name: "exclude patterns",
			opts: DiscoveryOptions{ExcludePatterns: []string{"**/*_test.py", "pkg/gen", "tools/**"}},
			want: []string{"internal/core.go", "main.go", "pkg/mod.py", "setup.py", "struct/index.py"},
		},
		{
			name: "gitignore lines",
			opts: DiscoveryOptions{GitignorePatterns: []string{"gen/", "*.go"}},
			want: []string{"pkg/mod.py", "pkg/mod_test.py", "setup.py", "struct/index.py", "tools/build.py"},
		},
		{
			name: "include dirs",
			opts: DiscoveryOptions{IncludeDirs: []string{"./pkg", "internal/"}},
			want: []string{"internal/core.go", "pkg/gen/generated.py", "pkg/mod.py", "pkg/mod_test.py"},
		},
		{
			name: "exclude dirs by name and path",
			opts: DiscoveryOptions{ExcludeDirs: []string{"gen", "tools"}},
			want: []string{"internal/core.go", "main.go", "pkg/mod.py", "pkg/mod_test.py", "setup.py", "struct/index.py"},
		},
		{
			name: "skip paths",
			opts: DiscoveryOptions{SkipPaths: []string{"struct", "setup.py"}},
			want: []string{"internal/core.go", "main.go", "pkg/gen/generated.py", "pkg/mod.py", "pkg/mod_test.py", "tools/build.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, discover(t, root, tt.opts))
		})
	}
}

func TestFileDiscovery_GitignoreFile(t *testing.T) {
	t.Parallel()

	root := discoveryTree(t)
	writeFile(t, root, ".gitignore", "# generated\npkg/gen/\ntools\n")

	assert.Equal(t,
		[]string{"internal/core.go", "main.go", "pkg/mod.py", "pkg/mod_test.py", "setup.py", "struct/index.py"},
		discover(t, root, DiscoveryOptions{UseGitignore: true}))

	// Ignored unless enabled
	assert.Contains(t, discover(t, root, DiscoveryOptions{}), "tools/build.py")
}

func TestFileDiscovery_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewFileDiscovery(t.TempDir(), DiscoveryOptions{IncludePatterns: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.LanguageGo, DetectLanguage("cmd/main.go"))
	assert.Equal(t, model.LanguagePython, DetectLanguage("pkg/MOD.PY"))
	assert.Equal(t, model.LanguageTypeScript, DetectLanguage("web/app.ts"))
	assert.Equal(t, model.LanguageUnknown, DetectLanguage("README.md"))
}

func TestDetectProjectLanguages(t *testing.T) {
	t.Parallel()

	root := discoveryTree(t)
	counts, err := DetectProjectLanguages(root, []string{"struct/**"})
	require.NoError(t, err)
	assert.Equal(t, map[model.Language]int{model.LanguagePython: 5, model.LanguageGo: 2}, counts)

	assert.Equal(t, model.LanguagePython, DominantLanguage(counts))
	assert.Equal(t, []model.Language{model.LanguageGo, model.LanguagePython}, orderedLanguages(counts))
	assert.Equal(t, model.LanguageGo, DominantLanguage(map[model.Language]int{model.LanguagePython: 1, model.LanguageGo: 1}), "ties follow the language order")
}
