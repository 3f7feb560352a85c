package assembler

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/kpblcaoo/llmstruct/internal/identity"
	"github.com/kpblcaoo/llmstruct/internal/lock"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// FlatOptions configures BuildFlat.
type FlatOptions struct {
	Version     string
	GeneratedAt time.Time

	// Errors and Validation come from the enrichment pass and are written
	// to the metadata block.
	Errors     []AnalysisError
	Validation *identity.ValidationReport
}

// BuildFlat produces the single aggregate document. Modules are ordered by
// path so the output diffs cleanly between runs.
func BuildFlat(project ProjectInfo, modules []model.ModuleRecord, opts FlatOptions) *FlatDocument {
	sorted := make([]model.ModuleRecord, len(modules))
	copy(sorted, modules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now().UTC()
	}
	analysisErrors := opts.Errors
	if analysisErrors == nil {
		analysisErrors = []AnalysisError{}
	}

	doc := &FlatDocument{
		Metadata: FlatMetadata{
			ProjectName:     project.Name,
			Version:         opts.Version,
			GeneratedAt:     opts.GeneratedAt,
			Languages:       project.Languages,
			Goals:           project.Goals,
			Stats:           ComputeStats(sorted),
			LanguageStats:   languageStats(sorted),
			FolderStructure: folderStructure(sorted),
			AnalysisErrors:  analysisErrors,
			UIDValidation:   opts.Validation,
		},
		TOC:     make([]TOCEntry, 0, len(sorted)),
		Modules: sorted,
	}

	for _, m := range sorted {
		doc.TOC = append(doc.TOC, TOCEntry{
			ModuleID:  m.UID,
			Path:      m.Path,
			Category:  m.Category,
			Functions: len(m.Functions),
			Classes:   len(m.Classes),
			Summary:   moduleSummary(m.UID, len(m.Functions), len(m.Classes)),
			ArtifactID: identity.CreateLegacyArtifactID(identity.LegacyEntity{
				Type: string(model.EntityModule),
				Name: m.UID,
				File: m.Path,
			}),
		})
	}
	return doc
}

// WriteFlat writes doc to file under an exclusive lock on its directory.
func WriteFlat(ctx context.Context, file string, doc *FlatDocument) error {
	dir := filepath.Dir(file)
	l, err := lock.Acquire(ctx, dir)
	if err != nil {
		return err
	}
	defer l.Release()

	w, err := NewAtomicWriter(dir)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.WriteJSON(filepath.Base(file), doc); err != nil {
		return fmt.Errorf("failed to write flat document: %w", err)
	}
	return nil
}

func moduleSummary(uid string, functions, classes int) string {
	return fmt.Sprintf("Module %s with %d functions and %d classes", uid, functions, classes)
}

// folderStructure lists every analyzed file and each of its ancestor
// directories once, with a content-addressed id.
func folderStructure(modules []model.ModuleRecord) []FolderEntry {
	kinds := make(map[string]string)
	for _, m := range modules {
		kinds[m.Path] = "file"
		for dir := path.Dir(m.Path); dir != "." && dir != "/"; dir = path.Dir(dir) {
			kinds[dir] = "directory"
		}
	}

	paths := make([]string, 0, len(kinds))
	for p := range kinds {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	entries := make([]FolderEntry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, FolderEntry{Path: p, Type: kinds[p], ArtifactID: identity.PathID(p, kinds[p])})
	}
	return entries
}

// languageStats splits stats per language when more than one is present.
func languageStats(modules []model.ModuleRecord) map[string]Stats {
	byLang := make(map[string][]model.ModuleRecord)
	for _, m := range modules {
		byLang[string(m.Language)] = append(byLang[string(m.Language)], m)
	}
	if len(byLang) < 2 {
		return nil
	}
	out := make(map[string]Stats, len(byLang))
	for lang, ms := range byLang {
		out[lang] = ComputeStats(ms)
	}
	return out
}
