package indexer

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/kpblcaoo/llmstruct/internal/model"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// skipDirs are never descended into, whatever the patterns say.
var skipDirs = map[string]struct{}{
	".git":          {},
	".hg":           {},
	".svn":          {},
	".llmstruct":    {},
	"node_modules":  {},
	"vendor":        {},
	"__pycache__":   {},
	"venv":          {},
	".venv":         {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
}

// DiscoveryOptions selects which files of a tree are analyzed.
type DiscoveryOptions struct {
	// IncludePatterns are globs a file must match. Empty means every file
	// with a known source extension.
	IncludePatterns []string

	// ExcludePatterns are globs removing files or whole directories.
	ExcludePatterns []string

	// UseGitignore applies the root .gitignore.
	UseGitignore bool

	// GitignorePatterns are extra gitignore-syntax lines.
	GitignorePatterns []string

	// IncludeDirs restricts discovery to these root-relative directories.
	IncludeDirs []string

	// ExcludeDirs are directory names or root-relative directory paths to skip.
	ExcludeDirs []string

	// SkipPaths are root-relative files or directories that are always
	// skipped, e.g. the output directory.
	SkipPaths []string
}

// FileDiscovery handles file discovery with glob patterns and ignore rules.
type FileDiscovery struct {
	rootDir         string
	includePatterns []compiledPattern
	ignorePatterns  []compiledPattern
	gitignore       *ignore.GitIgnore
	includeDirs     []string
	excludeDirs     map[string]struct{}
	skipPaths       map[string]struct{}
}

// NewFileDiscovery creates a new file discovery instance.
func NewFileDiscovery(rootDir string, opts DiscoveryOptions) (*FileDiscovery, error) {
	fd := &FileDiscovery{
		rootDir:     rootDir,
		excludeDirs: make(map[string]struct{}),
		skipPaths:   make(map[string]struct{}),
	}

	var err error
	if fd.includePatterns, err = compilePatterns(opts.IncludePatterns); err != nil {
		return nil, err
	}
	if fd.ignorePatterns, err = compilePatterns(opts.ExcludePatterns); err != nil {
		return nil, err
	}

	var lines []string
	if opts.UseGitignore {
		data, err := os.ReadFile(filepath.Join(rootDir, ".gitignore"))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		lines = append(lines, strings.Split(string(data), "\n")...)
	}
	lines = append(lines, opts.GitignorePatterns...)
	if len(lines) > 0 {
		fd.gitignore = ignore.CompileIgnoreLines(lines...)
	}

	for _, dir := range opts.IncludeDirs {
		if dir = cleanRel(dir); dir != "" {
			fd.includeDirs = append(fd.includeDirs, dir)
		}
	}
	for _, dir := range opts.ExcludeDirs {
		if dir = cleanRel(dir); dir != "" {
			fd.excludeDirs[dir] = struct{}{}
		}
	}
	for _, p := range opts.SkipPaths {
		if p = cleanRel(p); p != "" {
			fd.skipPaths[p] = struct{}{}
		}
	}

	return fd, nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledPattern{pattern: pattern, glob: g})
	}
	return compiled, nil
}

// cleanRel turns a user-supplied directory into a clean slash path relative
// to the root, or "" for the root itself.
func cleanRel(p string) string {
	p = path.Clean(filepath.ToSlash(strings.TrimSpace(p)))
	p = strings.TrimPrefix(p, "./")
	if p == "." || p == "/" {
		return ""
	}
	return strings.TrimSuffix(p, "/")
}

// DiscoverFiles walks the directory tree and returns the slash-separated,
// root-relative paths of every selected source file, sorted.
func (fd *FileDiscovery) DiscoverFiles() ([]string, error) {
	files := []string{}

	err := filepath.WalkDir(fd.rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == fd.rootDir {
			return nil
		}

		relPath, err := filepath.Rel(fd.rootDir, p)
		if err != nil {
			return err
		}
		// Normalize path separators for glob matching
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if fd.skipDir(relPath, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if fd.selected(relPath) {
			files = append(files, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func (fd *FileDiscovery) skipDir(relPath, name string) bool {
	if _, skip := skipDirs[name]; skip {
		return true
	}
	if _, skip := fd.skipPaths[relPath]; skip {
		return true
	}
	if _, skip := fd.excludeDirs[name]; skip {
		return true
	}
	if _, skip := fd.excludeDirs[relPath]; skip {
		return true
	}
	if fd.gitignore != nil && fd.gitignore.MatchesPath(relPath+"/") {
		return true
	}
	// "node_modules" should skip the directory as well as "node_modules/**"
	if fd.matchesAnyPattern(relPath, fd.ignorePatterns) || fd.matchesAnyPattern(relPath+"/**", fd.ignorePatterns) {
		return true
	}
	// Descend only towards or inside an include dir
	if len(fd.includeDirs) > 0 {
		for _, dir := range fd.includeDirs {
			if within(relPath, dir) || within(dir, relPath) {
				return false
			}
		}
		return true
	}
	return false
}

// selected reports whether a file passes every rule.
func (fd *FileDiscovery) selected(relPath string) bool {
	if _, skip := fd.skipPaths[relPath]; skip {
		return false
	}
	if len(fd.includeDirs) > 0 {
		inside := false
		for _, dir := range fd.includeDirs {
			if within(relPath, dir) {
				inside = true
				break
			}
		}
		if !inside {
			return false
		}
	}
	if fd.shouldIgnore(relPath) {
		return false
	}
	if len(fd.includePatterns) > 0 {
		return fd.matchesAnyPattern(relPath, fd.includePatterns) && DetectLanguage(relPath) != model.LanguageUnknown
	}
	return DetectLanguage(relPath) != model.LanguageUnknown
}

// shouldIgnore checks if a path matches any ignore pattern.
func (fd *FileDiscovery) shouldIgnore(relPath string) bool {
	if fd.gitignore != nil && fd.gitignore.MatchesPath(relPath) {
		return true
	}
	return fd.matchesAnyPattern(relPath, fd.ignorePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func (fd *FileDiscovery) matchesAnyPattern(p string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(p) {
			return true
		}
	}

	// Special handling: if path is in root (no slash), also try matching against
	// patterns with **/ prefix removed. This makes "**/*.py" match both "setup.py"
	// and "pkg/mod.py" as users would expect.
	if !strings.Contains(strings.TrimSuffix(p, "/**"), "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				simplified := strings.TrimPrefix(cp.pattern, "**/")
				if simplifiedGlob, err := glob.Compile(simplified, '/'); err == nil {
					if simplifiedGlob.Match(p) {
						return true
					}
				}
			}
		}
	}

	return false
}

// within reports whether p is dir or lies below it.
func within(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+"/")
}
