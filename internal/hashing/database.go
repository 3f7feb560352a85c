package hashing

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// Database maps slash-separated relative paths to source hashes.
type Database map[string]string

// Diff is the result of comparing two hash databases.
// Every path appears in at most one list.
type Diff struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
}

// Empty reports whether nothing changed.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}

// skippedDirs are never descended into when building a database.
var skippedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"__pycache__":  true,
}

// CreateIncrementalHashDatabase hashes every file under root whose relative
// path matches one of patterns. An empty pattern list matches every file with
// a known source extension. Patterns without glob metacharacters match one
// path exactly; use glob.QuoteMeta to pass arbitrary paths.
func CreateIncrementalHashDatabase(root string, patterns []string) (Database, error) {
	matcher, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}

	db := make(Database)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if matcher.empty() {
			if !model.IsSourceExtension(filepath.Ext(rel)) {
				return nil
			}
		} else if !matcher.match(rel) {
			return nil
		}

		content, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			// removed during the walk
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		db[rel] = HashSource(string(content), model.LanguageFromPath(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build hash database: %w", err)
	}

	return db, nil
}

// CompareHashDatabases partitions the paths of two databases:
// added = new - old, deleted = old - new, modified = paths in both whose hash differs.
// Each list is sorted.
func CompareHashDatabases(oldDB, newDB Database) *Diff {
	diff := &Diff{
		Added:    []string{},
		Modified: []string{},
		Deleted:  []string{},
	}

	for path, hash := range newDB {
		prev, ok := oldDB[path]
		switch {
		case !ok:
			diff.Added = append(diff.Added, path)
		case prev != hash:
			diff.Modified = append(diff.Modified, path)
		}
	}
	for path := range oldDB {
		if _, ok := newDB[path]; !ok {
			diff.Deleted = append(diff.Deleted, path)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Modified)
	sort.Strings(diff.Deleted)
	return diff
}

type compiledPattern struct {
	glob glob.Glob
	// root matches root-level files against a "**/" pattern without its prefix.
	root glob.Glob
}

type patternSet struct {
	literal map[string]bool
	globs   []compiledPattern
}

func compilePatterns(patterns []string) (*patternSet, error) {
	set := &patternSet{literal: make(map[string]bool)}
	for _, p := range patterns {
		if glob.QuoteMeta(p) == p {
			set.literal[p] = true
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		cp := compiledPattern{glob: g}
		if rest, ok := strings.CutPrefix(p, "**/"); ok {
			if cp.root, err = glob.Compile(rest, '/'); err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
			}
		}
		set.globs = append(set.globs, cp)
	}
	return set, nil
}

func (s *patternSet) empty() bool {
	return len(s.literal) == 0 && len(s.globs) == 0
}

// match matches rel against the set. Root-level files also match patterns
// that start with "**/".
func (s *patternSet) match(rel string) bool {
	if s.literal[rel] {
		return true
	}
	atRoot := !strings.Contains(rel, "/")
	for _, cp := range s.globs {
		if cp.glob.Match(rel) || (atRoot && cp.root != nil && cp.root.Match(rel)) {
			return true
		}
	}
	return false
}
