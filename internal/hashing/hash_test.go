package hashing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gobwas/glob"
	"github.com/kpblcaoo/llmstruct/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for hashing:
// - HashContent/HashFile produce equal SHA-256 digests for equal bytes
// - HashSource ignores indentation, blank lines, spacing runs and comments (python, go)
// - HashSource keeps comment markers that appear inside string literals
// - Rust char literals (including '"') do not open strings; lifetimes are left alone
// - HashSource changes when code changes
// - HashEntity changes when a parameter is renamed with an identical body
// - CreateIncrementalHashDatabase honors glob patterns including root files
// - literal patterns match one path exactly, quoted metacharacters match literally
// - CompareHashDatabases partitions paths into added/modified/deleted
// - Store round-trips a database through sqlite

func TestHashContentAndFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	fileHash, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashContent("hello"), fileHash)
	assert.Len(t, fileHash, 64)

	_, err = HashFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestHashSource_IgnoresWhitespaceAndComments(t *testing.T) {
	t.Parallel()

	pyA := "def helper():\n    return 1\n"
	pyB := "# leading comment\n\ndef helper():   # trailing\n\n        return   1\n\n\n"
	assert.Equal(t, HashSource(pyA, model.LanguagePython), HashSource(pyB, model.LanguagePython))

	goA := "package a\n\nfunc F() int {\n\treturn 1\n}\n"
	goB := "package a\n// F returns one.\nfunc F() int { /* block\ncomment */\n    return 1 // one\n}\n"
	goC := "package a\nfunc F() int {\n/* block\ncomment */\nreturn 1\n}\n"
	assert.Equal(t, HashSource(goA, model.LanguageGo), HashSource(goB, model.LanguageGo))
	assert.Equal(t, HashSource(goA, model.LanguageGo), HashSource(goC, model.LanguageGo))
}

func TestNormalizeSource_KeepsMarkersInStrings(t *testing.T) {
	t.Parallel()

	got := NormalizeSource(`url = "http://x#frag"  # real comment`, model.LanguagePython)
	assert.Equal(t, `url = "http://x#frag"`, got)

	got = NormalizeSource("s := \"a // b\" // c\nr := `x\n// y`", model.LanguageGo)
	assert.Equal(t, "s := \"a // b\"\nr := `x\n// y`", got)

	got = NormalizeSource("x = '''doc # not comment\n'''  # comment", model.LanguagePython)
	assert.Equal(t, "x = '''doc # not comment\n'''", got)
}

func TestNormalizeSource_RustCharLiterals(t *testing.T) {
	t.Parallel()

	got := NormalizeSource("let q = '\"'; // quote\nlet e = '\\''; // escaped", model.LanguageRust)
	assert.Equal(t, "let q = '\"';\nlet e = '\\'';", got)

	assert.Equal(t,
		HashSource("fn f<'a>(x: &'a str) -> &'a str { x }", model.LanguageRust),
		HashSource("fn f<'a>(x:    &'a   str) -> &'a str { x } // lifetimes", model.LanguageRust))

	assert.Equal(t,
		HashSource("let c = '#';\nlet s = \"a // b\";", model.LanguageRust),
		HashSource("let c = '#';   /* c */\nlet s = \"a // b\"; // d", model.LanguageRust))
}

func TestHashSource_DetectsCodeChanges(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t,
		HashSource("return 1", model.LanguagePython),
		HashSource("return 2", model.LanguagePython))
}

func TestHashEntity_ParameterRename(t *testing.T) {
	t.Parallel()

	base := EntityFingerprint{
		Type:       "function",
		Name:       "f",
		Content:    "pass",
		Language:   model.LanguagePython,
		Parameters: []string{"a"},
	}
	renamed := base
	renamed.Parameters = []string{"b"}
	reformatted := base
	reformatted.Content = "   pass   # noop"

	assert.NotEqual(t, HashEntity(base), HashEntity(renamed))
	assert.Equal(t, HashEntity(base), HashEntity(reformatted))
}

func TestCreateIncrementalHashDatabase(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "pkg/b.py", "y = 2\n")
	writeFile(t, root, "pkg/c.go", "package pkg\n")
	writeFile(t, root, ".git/config", "ignored")

	db, err := CreateIncrementalHashDatabase(root, []string{"**/*.py"})
	require.NoError(t, err)
	assert.Len(t, db, 2)
	assert.Contains(t, db, "a.py")
	assert.Contains(t, db, "pkg/b.py")

	all, err := CreateIncrementalHashDatabase(root, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	exact, err := CreateIncrementalHashDatabase(root, []string{"pkg/c.go", "missing.py"})
	require.NoError(t, err)
	assert.Equal(t, Database{"pkg/c.go": HashSource("package pkg\n", model.LanguageGo)}, exact)
}

func TestCreateIncrementalHashDatabase_QuotedPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "pkg/b[1].py", "y = 2\n")
	writeFile(t, root, "pkg/b1.py", "y = 3\n")

	db, err := CreateIncrementalHashDatabase(root, []string{glob.QuoteMeta("pkg/b[1].py")})
	require.NoError(t, err)
	assert.Len(t, db, 1)
	assert.Contains(t, db, "pkg/b[1].py")
}

func TestCompareHashDatabases_Partition(t *testing.T) {
	t.Parallel()

	oldDB := Database{"same.py": "1", "changed.py": "1", "gone.py": "1"}
	newDB := Database{"same.py": "1", "changed.py": "2", "fresh.py": "1"}

	diff := CompareHashDatabases(oldDB, newDB)
	assert.Equal(t, []string{"fresh.py"}, diff.Added)
	assert.Equal(t, []string{"changed.py"}, diff.Modified)
	assert.Equal(t, []string{"gone.py"}, diff.Deleted)

	// added ∪ (old ∩ new) == new keys; no path in more than one list
	seen := map[string]int{}
	for _, p := range append(append(append([]string{}, diff.Added...), diff.Modified...), diff.Deleted...) {
		seen[p]++
	}
	for p, n := range seen {
		assert.Equal(t, 1, n, p)
	}
	union := map[string]bool{}
	for _, p := range diff.Added {
		union[p] = true
	}
	for p := range oldDB {
		if _, ok := newDB[p]; ok {
			union[p] = true
		}
	}
	assert.Len(t, union, len(newDB))
	for p := range newDB {
		assert.True(t, union[p], p)
	}

	assert.True(t, CompareHashDatabases(newDB, newDB).Empty())
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := OpenStore(filepath.Join(t.TempDir(), "state", "hashes.db"))
	require.NoError(t, err)
	defer store.Close()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.Save(ctx, Database{"a.py": "h1", "b.py": "h2"}))
	require.NoError(t, store.Save(ctx, Database{"a.py": "h3"}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Database{"a.py": "h3"}, loaded)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
