package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/kpblcaoo/llmstruct/internal/analyzer"
	"github.com/kpblcaoo/llmstruct/internal/assembler"
	"github.com/kpblcaoo/llmstruct/internal/hashing"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// ErrNoSourceFiles is returned when discovery finds nothing to analyze.
var ErrNoSourceFiles = errors.New("no supported source files found")

// Dispatcher routes discovered files to language analyzers and hands the
// results to the assembler.
type Dispatcher struct {
	registry *analyzer.Registry
	cache    *AnalysisCache
	progress ProgressReporter
	logger   *slog.Logger

	// now overrides the clock, for tests.
	now func() time.Time
}

// NewDispatcher creates a dispatcher. cache may be nil to disable caching.
func NewDispatcher(registry *analyzer.Registry, cache *AnalysisCache, progress ProgressReporter, logger *slog.Logger) *Dispatcher {
	if progress == nil {
		progress = &NoOpProgressReporter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		cache:    cache,
		progress: progress,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ConvertProject analyzes one language of the tree at root and assembles
// the result. When opts.Language is empty the language with the most files
// is used.
func (d *Dispatcher) ConvertProject(ctx context.Context, root string, opts Options) (*Result, error) {
	root, files, err := d.discover(root, opts)
	if err != nil {
		return nil, err
	}
	counts := d.supportedCounts(files)

	lang := opts.Language
	if lang == model.LanguageUnknown {
		lang = DominantLanguage(counts)
	}
	if lang == model.LanguageUnknown {
		return nil, fmt.Errorf("%w in %s", ErrNoSourceFiles, root)
	}
	if !d.registry.Supports(lang) {
		return nil, fmt.Errorf("%w: %s", analyzer.ErrUnsupportedLanguage, lang)
	}

	selected := filesFor(files, lang)
	enriched, err := d.analyzeLanguage(ctx, root, lang, selected, opts, "")
	if err != nil {
		return nil, err
	}

	result := &Result{
		Root:      root,
		Languages: []model.Language{lang},
		Files:     map[model.Language]int{lang: len(selected)},
		Enriched:  enriched,
		Stats:     assembler.ComputeStats(enriched.Modules),
	}
	return d.finish(ctx, opts, result)
}

// ConvertMultiLanguageProject analyzes every detected language
// independently, prefixes each language's UIDs with "<lang>:" and merges
// the module lists. Stats are summed across languages.
func (d *Dispatcher) ConvertMultiLanguageProject(ctx context.Context, root string, opts Options) (*Result, error) {
	root, files, err := d.discover(root, opts)
	if err != nil {
		return nil, err
	}
	counts := d.supportedCounts(files)
	languages := orderedLanguages(counts)
	if len(languages) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSourceFiles, root)
	}

	result := &Result{
		Root:      root,
		Languages: languages,
		Files:     make(map[model.Language]int, len(languages)),
	}
	for _, lang := range languages {
		selected := filesFor(files, lang)
		enriched, err := d.analyzeLanguage(ctx, root, lang, selected, opts, string(lang)+":")
		if err != nil {
			return nil, err
		}
		result.Files[lang] = len(selected)
		result.Stats.Add(assembler.ComputeStats(enriched.Modules))
		if result.Enriched == nil {
			result.Enriched = enriched
		} else {
			result.Enriched.Merge(enriched)
		}
	}
	return d.finish(ctx, opts, result)
}

// discover resolves root and lists the selected files, skipping the
// run's own outputs.
func (d *Dispatcher) discover(root string, opts Options) (string, []string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("root %s is not a directory", abs)
	}

	var skip []string
	for _, p := range []string{opts.OutputDir, opts.FlatFile, opts.HashDBPath} {
		if rel, ok := relativeTo(abs, p); ok {
			skip = append(skip, rel)
		}
	}

	d.progress.OnDiscoveryStart()
	fd, err := NewFileDiscovery(abs, opts.discovery(skip))
	if err != nil {
		return "", nil, fmt.Errorf("invalid discovery rules: %w", err)
	}
	files, err := fd.DiscoverFiles()
	if err != nil {
		return "", nil, fmt.Errorf("failed to discover files: %w", err)
	}
	d.progress.OnDiscoveryComplete(countLanguages(files))
	return abs, files, nil
}

// supportedCounts counts files per language, dropping languages no
// analyzer is registered for.
func (d *Dispatcher) supportedCounts(files []string) map[model.Language]int {
	counts := countLanguages(files)
	for lang, n := range counts {
		if !d.registry.Supports(lang) {
			d.logger.Debug("skipping unsupported language", "language", lang, "files", n)
			delete(counts, lang)
		}
	}
	return counts
}

func filesFor(files []string, lang model.Language) []string {
	var out []string
	for _, f := range files {
		if DetectLanguage(f) == lang {
			out = append(out, f)
		}
	}
	return out
}

// analyzeLanguage analyzes files in parallel and runs enrichment once every
// file is done.
func (d *Dispatcher) analyzeLanguage(ctx context.Context, root string, lang model.Language, files []string, opts Options, prefix string) (*assembler.EnrichResult, error) {
	an, err := d.registry.Get(lang)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	d.progress.OnAnalysisStart(lang, len(files))
	start := time.Now()

	records := make([]*model.ModuleRecord, len(files))
	var (
		mu       sync.Mutex
		failures []assembler.AnalysisError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record, err := d.analyzeFile(gctx, an, root, rel)

			mu.Lock()
			defer mu.Unlock()
			d.progress.OnFileAnalyzed(rel)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				d.logger.Warn("skipping file", "path", rel, "error", err)
				failures = append(failures, assembler.AnalysisError{
					Path:    rel,
					Stage:   assembler.StageAnalyze,
					Message: err.Error(),
				})
				return nil
			}
			records[i] = &record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	analyzed := make([]model.ModuleRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			analyzed = append(analyzed, *r)
		}
	}
	d.logger.Info("analyzed files",
		"language", lang,
		"files", len(files),
		"modules", len(analyzed),
		"failed", len(failures),
		"took", time.Since(start))

	enriched := assembler.Enrich(analyzed, assembler.EnrichOptions{
		UIDPrefix:     prefix,
		IncludeRanges: opts.IncludeRanges,
		IncludeHashes: opts.IncludeHashes,
		Logger:        d.logger,
	})
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	enriched.Errors = append(failures, enriched.Errors...)
	return enriched, nil
}

// analyzeFile runs an on relPath, served from the cache when the file is
// unchanged since a previous run.
func (d *Dispatcher) analyzeFile(ctx context.Context, an analyzer.Analyzer, root, relPath string) (model.ModuleRecord, error) {
	if d.cache == nil {
		return an.Analyze(ctx, root, relPath)
	}

	source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return model.ModuleRecord{}, &analyzer.UnreadableFileError{Path: relPath, Err: err}
	}
	key := cacheKey(an.Language(), relPath, source)
	if record, ok := d.cache.Get(key); ok {
		return record, nil
	}

	record, err := an.Analyze(ctx, root, relPath)
	if err != nil {
		return record, err
	}
	// Fallback results may come from a transient helper failure.
	if !record.Fallback {
		d.cache.Set(key, record)
	}
	return record, nil
}

// finish applies the strict UID policy, builds the flat document and writes
// the configured artifacts.
func (d *Dispatcher) finish(ctx context.Context, opts Options, result *Result) (*Result, error) {
	if opts.StrictUIDs {
		if err := result.Enriched.CheckStrict(); err != nil {
			return nil, err
		}
	}

	name := opts.ProjectName
	if name == "" {
		name = filepath.Base(result.Root)
	}
	languages := make([]string, 0, len(result.Languages))
	for _, lang := range result.Languages {
		languages = append(languages, string(lang))
	}
	project := assembler.ProjectInfo{
		Name:      name,
		Root:      result.Root,
		Languages: languages,
		Goals:     opts.Goals,
	}

	d.progress.OnAssemblyStart(len(result.Enriched.Modules))
	now := d.now()
	result.Flat = assembler.BuildFlat(project, result.Enriched.Modules, assembler.FlatOptions{
		Version:     opts.Version,
		GeneratedAt: now,
		Errors:      result.Enriched.Errors,
		Validation:  result.Enriched.Validation,
	})

	mode := opts.Mode
	if mode == "" {
		mode = ModeModular
	}

	if (mode == ModeFlat || mode == ModeBoth) && opts.FlatFile != "" {
		file := resolvePath(result.Root, opts.FlatFile)
		if err := assembler.WriteFlat(ctx, file, result.Flat); err != nil {
			return nil, err
		}
		result.FlatFile = file
	}

	if (mode == ModeModular || mode == ModeBoth) && opts.OutputDir != "" {
		gen := assembler.NewStructDirectoryGenerator(assembler.GeneratorOptions{
			OutputDir: resolvePath(result.Root, opts.OutputDir),
			Project:   project,
			Version:   opts.Version,
			Logger:    d.logger,
			Now:       func() time.Time { return now },
		})
		generated, err := gen.Generate(ctx, result.Enriched)
		if err != nil {
			return nil, err
		}
		result.Generated = generated
	}

	if opts.HashDBPath != "" {
		changes, err := updateHashDatabase(ctx, resolvePath(result.Root, opts.HashDBPath), result.Enriched.Modules)
		if err != nil {
			return nil, err
		}
		result.Changes = changes
	}

	d.progress.OnComplete(result)
	return result, nil
}

// updateHashDatabase replaces the stored hash database with the hashes of
// modules and returns what changed since the previous run.
func updateHashDatabase(ctx context.Context, dbPath string, modules []model.ModuleRecord) (*hashing.Diff, error) {
	store, err := hashing.OpenStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	previous, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	current := make(hashing.Database, len(modules))
	for _, m := range modules {
		current[m.Path] = m.ContentHash
	}
	if err := store.Save(ctx, current); err != nil {
		return nil, err
	}
	return hashing.CompareHashDatabases(previous, current), nil
}

func resolvePath(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// relativeTo returns p as a slash path relative to root when it lies
// inside it.
func relativeTo(root, p string) (string, bool) {
	if p == "" {
		return "", false
	}
	rel, err := filepath.Rel(root, resolvePath(root, p))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Snapshot hashes the files a conversion with the same options would
// analyze, without analyzing them. The result is comparable to the hash
// database a previous run stored.
func (d *Dispatcher) Snapshot(ctx context.Context, root string, opts Options, multi bool) (hashing.Database, error) {
	root, files, err := d.discover(root, opts)
	if err != nil {
		return nil, err
	}
	counts := d.supportedCounts(files)

	var languages []model.Language
	switch {
	case multi:
		languages = orderedLanguages(counts)
	case opts.Language != model.LanguageUnknown:
		languages = []model.Language{opts.Language}
	default:
		if lang := DominantLanguage(counts); lang != model.LanguageUnknown {
			languages = []model.Language{lang}
		}
	}

	var patterns []string
	for _, lang := range languages {
		for _, rel := range filesFor(files, lang) {
			patterns = append(patterns, glob.QuoteMeta(rel))
		}
	}
	if len(patterns) == 0 {
		return hashing.Database{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return hashing.CreateIncrementalHashDatabase(root, patterns)
}
