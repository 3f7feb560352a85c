package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kpblcaoo/llmstruct/internal/model"
)

// Analyzer turns one source file into a ModuleRecord.
type Analyzer interface {
	// Language returns the language this analyzer handles.
	Language() model.Language

	// Analyze parses root/relPath. relPath is slash-separated and relative to root.
	Analyze(ctx context.Context, root, relPath string) (model.ModuleRecord, error)
}

var (
	// ErrUnsupportedLanguage indicates no analyzer is registered for a language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrTimeout indicates a subprocess analyzer exceeded its time budget.
	ErrTimeout = errors.New("analyzer timed out")
)

// UnreadableFileError reports an I/O failure reading a source file.
type UnreadableFileError struct {
	Path string
	Err  error
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("unreadable file %s: %v", e.Path, e.Err)
}

func (e *UnreadableFileError) Unwrap() error { return e.Err }

// ParseError reports a syntax error or a failed helper process.
type ParseError struct {
	Path     string
	Analyzer string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse %s: %v", e.Analyzer, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Registry maps languages to analyzers.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[model.Language]Analyzer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[model.Language]Analyzer)}
}

// Register adds or replaces the analyzer for a.Language().
func (r *Registry) Register(a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzers[a.Language()] = a
}

// Get returns the analyzer for lang, or an error wrapping ErrUnsupportedLanguage.
func (r *Registry) Get(lang model.Language) (Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return a, nil
}

// Supports reports whether an analyzer is registered for lang.
func (r *Registry) Supports(lang model.Language) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.analyzers[lang]
	return ok
}

// Languages returns the registered languages in sorted order.
func (r *Registry) Languages() []model.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]model.Language, 0, len(r.analyzers))
	for lang := range r.analyzers {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// fallbackAnalyzer runs primary and degrades to fallback on parse failures.
type fallbackAnalyzer struct {
	primary  Analyzer
	fallback Analyzer
	logger   *slog.Logger
}

// WithFallback returns an analyzer that tries primary first. When primary
// fails with anything other than an unreadable file or a cancelled context,
// the fallback result is returned, marked as reduced fidelity.
func WithFallback(primary, fallback Analyzer, logger *slog.Logger) Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &fallbackAnalyzer{primary: primary, fallback: fallback, logger: logger}
}

func (f *fallbackAnalyzer) Language() model.Language {
	return f.primary.Language()
}

func (f *fallbackAnalyzer) Analyze(ctx context.Context, root, relPath string) (model.ModuleRecord, error) {
	record, err := f.primary.Analyze(ctx, root, relPath)
	if err == nil {
		return record, nil
	}

	var unreadable *UnreadableFileError
	if errors.As(err, &unreadable) || ctx.Err() != nil {
		return model.ModuleRecord{}, err
	}

	f.logger.Warn("primary analyzer failed, using fallback",
		"file", relPath,
		"language", f.primary.Language(),
		"error", err)

	record, fbErr := f.fallback.Analyze(ctx, root, relPath)
	if fbErr != nil {
		return model.ModuleRecord{}, &ParseError{
			Path:     relPath,
			Analyzer: "fallback",
			Err:      errors.Join(err, fbErr),
		}
	}

	MarkFallback(&record)
	return record, nil
}

// MarkFallback flags a record and its entities as reduced fidelity.
func MarkFallback(record *model.ModuleRecord) {
	record.Fallback = true
	record.Tags = appendTag(record.Tags, model.TagFallback)
	for i := range record.Functions {
		record.Functions[i].Tags = appendTag(record.Functions[i].Tags, model.TagFallback)
	}
	for i := range record.Classes {
		record.Classes[i].Tags = appendTag(record.Classes[i].Tags, model.TagFallback)
	}
}

func appendTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	tags = append(tags, tag)
	sort.Strings(tags)
	return tags
}

// readSource reads root/relPath, wrapping failures as UnreadableFileError.
func readSource(root, relPath string) ([]byte, error) {
	source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, &UnreadableFileError{Path: relPath, Err: err}
	}
	return source, nil
}

// newRecord builds an empty record with source statistics filled in.
func newRecord(relPath string, lang model.Language, source []byte) model.ModuleRecord {
	record := model.NewModuleRecord(relPath, lang)
	record.Source = source
	record.LinesOfCode = countLines(source)
	return record
}

// countLines counts non-blank lines.
func countLines(source []byte) int {
	count := 0
	for _, line := range strings.Split(string(source), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

// addCall records a call site and keeps Calls unique in first-seen order.
func addCall(fn *model.FunctionRecord, target string, line int, kind model.CallKind) {
	if target == "" {
		return
	}
	fn.CallSites = append(fn.CallSites, model.CallSite{Target: target, Line: line, Kind: kind})
	for _, existing := range fn.Calls {
		if existing == target {
			return
		}
	}
	fn.Calls = append(fn.Calls, target)
}

// attachMethods fills each class's Methods from functions whose Parent names it.
func attachMethods(record *model.ModuleRecord) {
	index := make(map[string]int, len(record.Classes))
	for i, c := range record.Classes {
		index[c.Name] = i
	}
	for _, fn := range record.Functions {
		if fn.Kind != model.EntityMethod {
			continue
		}
		if i, ok := index[fn.Parent]; ok {
			record.Classes[i].Methods = appendUnique(record.Classes[i].Methods, fn.Name)
		}
	}
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
