package assembler

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kpblcaoo/llmstruct/internal/hashing"
	"github.com/kpblcaoo/llmstruct/internal/identity"
	"github.com/kpblcaoo/llmstruct/internal/model"
	"github.com/kpblcaoo/llmstruct/internal/tags"
)

// EnrichOptions controls the shared enrichment pass.
type EnrichOptions struct {
	// UIDPrefix is prepended to every UID, e.g. "python:" in multi-language runs.
	UIDPrefix string

	// IncludeRanges keeps entity line ranges in the output.
	IncludeRanges bool

	// IncludeHashes keeps per-entity hashes in the output. Module content
	// hashes are always attached.
	IncludeHashes bool

	Logger *slog.Logger
}

// EnrichResult is the outcome of Enrich.
type EnrichResult struct {
	Modules    []model.ModuleRecord
	Errors     []AnalysisError
	Validation *identity.ValidationReport
}

// Merge appends other's modules and errors and recomputes UID validation
// over the combined set.
func (r *EnrichResult) Merge(other *EnrichResult) {
	r.Modules = append(r.Modules, other.Modules...)
	r.Errors = append(r.Errors, other.Errors...)
	r.Validation = identity.ValidateUIDUniqueness(collectRefs(r.Modules))
}

// Enrich attaches a UID, hash and tags to every module, function and class,
// then validates UID uniqueness across the whole set. A module whose
// enrichment fails or panics is dropped and recorded in Errors; the others
// are unaffected.
func Enrich(records []model.ModuleRecord, opts EnrichOptions) *EnrichResult {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := &EnrichResult{Modules: make([]model.ModuleRecord, 0, len(records))}
	for i := range records {
		record := records[i]
		record.Functions = append([]model.FunctionRecord{}, record.Functions...)
		record.Classes = append([]model.ClassRecord{}, record.Classes...)
		if err := enrichModule(&record, opts); err != nil {
			logger.Warn("skipping module", "path", record.Path, "error", err)
			result.Errors = append(result.Errors, AnalysisError{Path: record.Path, Stage: StageEnrich, Message: err.Error()})
			continue
		}
		result.Modules = append(result.Modules, record)
	}

	result.Validation = identity.ValidateUIDUniqueness(collectRefs(result.Modules))
	for _, uid := range result.Validation.DuplicateUIDs() {
		owners := result.Validation.Duplicates[uid]
		files := make([]string, 0, len(owners))
		for _, o := range owners {
			files = append(files, o.File)
		}
		logger.Warn("duplicate uid", "uid", uid, "owners", len(owners))
		result.Errors = append(result.Errors, AnalysisError{
			Path:    owners[0].File,
			Stage:   StageIdentity,
			Message: fmt.Sprintf("uid %s is owned by %d entities in %s", uid, len(owners), strings.Join(files, ", ")),
		})
	}
	return result
}

// CheckStrict returns a StrictUIDError when the result carries duplicate UIDs.
func (r *EnrichResult) CheckStrict() error {
	if r.Validation == nil || r.Validation.OK() {
		return nil
	}
	return &StrictUIDError{Duplicates: r.Validation.DuplicateUIDs()}
}

func enrichModule(m *model.ModuleRecord, opts EnrichOptions) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during enrichment: %v", r)
		}
	}()

	moduleUID := identity.ModuleUID(m.Path)
	if moduleUID == "" {
		return errors.New("path does not normalize to a module name")
	}
	m.UID = opts.UIDPrefix + moduleUID
	m.UIDComponents = prefixed(opts.UIDPrefix, identity.GenerateUIDComponents(model.EntityModule, m.Path, "", ""))

	if m.ContentHash == "" {
		m.ContentHash = hashing.HashSource(string(m.Source), m.Language)
	}
	m.Tags = tags.Merge(m.Tags, []string{string(model.EntityModule), string(m.Category), string(m.Language)})

	for i := range m.Functions {
		fn := &m.Functions[i]
		kind := fn.Kind
		if kind == "" {
			kind = model.EntityFunction
			fn.Kind = kind
		}
		fn.UID = opts.UIDPrefix + identity.GenerateUID(kind, m.Path, fn.Name, fn.Parent)
		fn.UIDComponents = prefixed(opts.UIDPrefix, identity.GenerateUIDComponents(kind, m.Path, fn.Name, fn.Parent))

		code := fn.Code
		for _, d := range fn.Decorators {
			code = "@" + d + "\n" + code
		}
		extra := []string{}
		if fn.IsAsync {
			extra = append(extra, tags.Async)
		}
		if fn.IsGenerator {
			extra = append(extra, tags.Generator)
		}
		fn.Tags = tags.Merge(fn.Tags, extra, tags.InferTags(code, string(kind), fn.Name))

		if opts.IncludeHashes {
			fn.Hash = hashing.HashEntity(hashing.EntityFingerprint{
				Type:       string(kind),
				Name:       fn.QualifiedName(),
				Content:    fn.Code,
				Language:   m.Language,
				Parameters: fn.Parameters,
				Returns:    fn.Returns,
			})
		} else {
			fn.Hash = ""
		}
		if !opts.IncludeRanges {
			fn.LineRange = nil
		}
		if fn.Parameters == nil {
			fn.Parameters = []string{}
		}
		if fn.Calls == nil {
			fn.Calls = []string{}
		}
	}

	for i := range m.Classes {
		c := &m.Classes[i]
		kind := c.Kind
		if kind == "" {
			kind = model.EntityClass
			c.Kind = kind
		}
		c.UID = opts.UIDPrefix + identity.GenerateUID(kind, m.Path, c.Name, "")
		c.UIDComponents = prefixed(opts.UIDPrefix, identity.GenerateUIDComponents(kind, m.Path, c.Name, ""))
		c.Tags = tags.Merge(c.Tags, tags.InferTags(c.Code, string(kind), lastSegment(c.Name)))

		if opts.IncludeHashes {
			c.Hash = hashing.HashEntity(hashing.EntityFingerprint{
				Type:       string(kind),
				Name:       c.Name,
				Content:    c.Code,
				Language:   m.Language,
				Parameters: c.Fields,
			})
		} else {
			c.Hash = ""
		}
		if !opts.IncludeRanges {
			c.LineRange = nil
		}
	}

	if m.CallGraph == nil {
		m.BuildCallGraph()
	}
	return nil
}

// collectRefs lists every module and entity UID owner.
func collectRefs(modules []model.ModuleRecord) []identity.EntityRef {
	var refs []identity.EntityRef
	for _, m := range modules {
		refs = append(refs, identity.EntityRef{UID: m.UID, Type: string(model.EntityModule), Name: m.UID, File: m.Path})
		for _, fn := range m.Functions {
			ref := identity.EntityRef{UID: fn.UID, Type: string(fn.Kind), Name: fn.QualifiedName(), File: m.Path}
			if fn.LineRange != nil {
				ref.Line = fn.LineRange.Start
			}
			refs = append(refs, ref)
		}
		for _, c := range m.Classes {
			ref := identity.EntityRef{UID: c.UID, Type: string(c.Kind), Name: c.Name, File: m.Path}
			if c.LineRange != nil {
				ref.Line = c.LineRange.Start
			}
			refs = append(refs, ref)
		}
	}
	return refs
}

// prefixed applies the language prefix to every UID component.
func prefixed(prefix string, components []string) []string {
	out := make([]string, len(components))
	for i, c := range components {
		out[i] = prefix + c
	}
	return out
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
