package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kpblcaoo/llmstruct/internal/hashing"
	"github.com/kpblcaoo/llmstruct/internal/lock"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// GeneratorOptions configures a StructDirectoryGenerator.
type GeneratorOptions struct {
	// OutputDir is the modular directory, e.g. "struct".
	OutputDir string

	Project ProjectInfo

	// Version is the generator version recorded in metadata.
	Version string

	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// GenerateResult describes a completed modular generation.
type GenerateResult struct {
	OutputDir string
	Index     *Index
	CallGraph *CallGraph
	Metadata  *Metadata
}

// StructDirectoryGenerator writes the modular output directory.
type StructDirectoryGenerator struct {
	opts   GeneratorOptions
	logger *slog.Logger
}

// NewStructDirectoryGenerator creates a generator.
func NewStructDirectoryGenerator(opts GeneratorOptions) *StructDirectoryGenerator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &StructDirectoryGenerator{opts: opts, logger: logger}
}

// assembledModule is one module with everything computed for its files.
type assembledModule struct {
	record *model.ModuleRecord
	info   ModuleInfo
	calls  []CallEdge
	file   string
}

// Generate regenerates the whole directory from enriched modules:
//
//  1. collapse modules by ModuleKey, failing on a UIDCollisionError
//  2. compute module hash, summary, dependencies and exports
//  3. write modules/<uid>.json
//  4. invert dependencies into dependents and write index.json
//  5. write callgraph.json
//  6. write schema.json
//  7. write metadata.json
//  8. write the legacy struct.json
//
// and finally verifies the directory with VerifyConsistency.
func (g *StructDirectoryGenerator) Generate(ctx context.Context, enriched *EnrichResult) (*GenerateResult, error) {
	out := g.opts.OutputDir
	if out == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	dirLock, err := lock.Acquire(ctx, out)
	if err != nil {
		return nil, err
	}
	defer dirLock.Release()

	writer, err := NewAtomicWriter(out)
	if err != nil {
		return nil, err
	}
	defer writer.Close()

	now := g.opts.Now()

	// 1. collapse
	modules, err := collapseModules(enriched.Modules, g.logger)
	if err != nil {
		return nil, err
	}

	// 2. per-module info
	ix := newModuleIndex(modules)
	assembled := make([]*assembledModule, 0, len(modules))
	uids := make([]string, 0, len(modules))
	deps := make(map[string][]string, len(modules))
	for i := range modules {
		a := g.assemble(ix, &modules[i])
		assembled = append(assembled, a)
		uids = append(uids, a.info.UID)
		deps[a.info.UID] = a.info.Dependencies
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. module files, replacing whatever a previous run left behind
	if err := os.RemoveAll(filepath.Join(out, ModulesDir)); err != nil {
		return nil, fmt.Errorf("failed to clear modules directory: %w", err)
	}
	for _, a := range assembled {
		file := ModuleFile{
			ModuleInfo: a.info,
			Functions:  a.record.Functions,
			Classes:    a.record.Classes,
			Imports:    a.record.Imports,
			Calls:      a.calls,
			Metadata: ModuleFileMetadata{
				GeneratedAt:      now,
				GeneratorVersion: g.opts.Version,
				SchemaVersion:    SchemaVersion,
			},
		}
		if file.Imports == nil {
			file.Imports = []model.ImportRecord{}
		}
		if err := writer.WriteJSON(a.file, file); err != nil {
			return nil, err
		}
	}

	// 4. dependents and index
	dependents, cycles, err := invertDependencies(uids, deps)
	if err != nil {
		return nil, err
	}
	index := &Index{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   now,
		ProjectInfo:   g.opts.Project,
		Modules:       make([]IndexEntry, 0, len(assembled)),
	}
	for _, a := range assembled {
		index.Modules = append(index.Modules, IndexEntry{
			UID:            a.info.UID,
			ModulePath:     a.file,
			FilePath:       a.info.FilePath,
			Tags:           a.info.Tags,
			Summary:        a.info.Summary,
			Hash:           a.info.Hash,
			ContentHash:    a.info.ContentHash,
			FunctionsCount: a.info.FunctionsCount,
			ClassesCount:   a.info.ClassesCount,
			LinesOfCode:    a.info.LinesOfCode,
			Dependencies:   a.info.Dependencies,
			Dependents:     dependents[a.info.UID],
			Complexity:     a.info.Complexity,
			LastModified:   g.lastModified(a.record.Path, now),
		})
	}
	if err := writer.WriteJSON(IndexFile, index); err != nil {
		return nil, err
	}

	// 5. call graph
	callGraph := buildCallGraph(assembled)
	if err := writer.WriteJSON(CallGraphFile, callGraph); err != nil {
		return nil, err
	}

	// 6. schema
	schema, err := ModuleInfoSchema()
	if err != nil {
		return nil, err
	}
	if err := writer.WriteFile(SchemaFile, schema); err != nil {
		return nil, err
	}

	// 7. metadata
	analysisErrors := enriched.Errors
	if analysisErrors == nil {
		analysisErrors = []AnalysisError{}
	}
	metadata := &Metadata{
		GeneratedAt:      now,
		GeneratorVersion: g.opts.Version,
		SchemaVersion:    SchemaVersion,
		Project:          g.opts.Project,
		Stats:            ComputeStats(modules),
		LanguageStats:    languageStats(modules),
		AnalysisErrors:   analysisErrors,
		UIDValidation:    enriched.Validation,
		DependencyCycles: cycles,
		Goals:            g.opts.Project.Goals,
	}
	if err := writer.WriteJSON(MetadataFile, metadata); err != nil {
		return nil, err
	}

	// 8. legacy flat mirror
	flat := BuildFlat(g.opts.Project, modules, FlatOptions{
		Version:     g.opts.Version,
		GeneratedAt: now,
		Errors:      analysisErrors,
		Validation:  enriched.Validation,
	})
	if err := writer.WriteJSON(LegacyFile, flat); err != nil {
		return nil, err
	}

	if err := VerifyConsistency(out); err != nil {
		return nil, err
	}

	g.logger.Info("generated modular output",
		"dir", out,
		"modules", len(index.Modules),
		"calls", callGraph.Statistics.TotalCalls,
		"cycles", len(cycles),
		"errors", len(analysisErrors))

	return &GenerateResult{
		OutputDir: out,
		Index:     index,
		CallGraph: callGraph,
		Metadata:  metadata,
	}, nil
}

func (g *StructDirectoryGenerator) assemble(ix *moduleIndex, m *model.ModuleRecord) *assembledModule {
	members := make([]string, 0, len(m.Functions)+len(m.Classes))
	exports := map[string]bool{}
	for _, fn := range m.Functions {
		members = append(members, fn.UID)
		if fn.Parent == "" && !strings.HasPrefix(fn.Name, "_") {
			exports[fn.Name] = true
		}
	}
	for _, c := range m.Classes {
		members = append(members, c.UID)
		if !strings.Contains(c.Name, ".") && !strings.HasPrefix(c.Name, "_") {
			exports[c.Name] = true
		}
	}
	sort.Strings(members)

	exportList := make([]string, 0, len(exports))
	for name := range exports {
		exportList = append(exportList, name)
	}
	sort.Strings(exportList)

	info := ModuleInfo{
		UID:            m.UID,
		UIDComponents:  m.UIDComponents,
		FilePath:       m.Path,
		Language:       m.Language,
		Category:       m.Category,
		Package:        m.Package,
		Doc:            m.Doc,
		Summary:        moduleSummary(m.UID, len(m.Functions), len(m.Classes)),
		Hash:           hashing.HashContent(strings.Join(members, "\n")),
		ContentHash:    m.ContentHash,
		Tags:           m.Tags,
		Dependencies:   ix.moduleDependencies(m),
		Exports:        exportList,
		FunctionsCount: len(m.Functions),
		ClassesCount:   len(m.Classes),
		LinesOfCode:    m.LinesOfCode,
		Complexity:     ComplexityFor(len(m.Functions) + len(m.Classes)),
		Fallback:       m.Fallback,
	}

	return &assembledModule{
		record: m,
		info:   info,
		calls:  moduleCallEdges(ix, m),
		file:   path.Join(ModulesDir, ModuleFileName(m.UID)),
	}
}

func (g *StructDirectoryGenerator) lastModified(relPath string, fallback time.Time) time.Time {
	if g.opts.Project.Root == "" {
		return fallback
	}
	info, err := os.Stat(filepath.Join(g.opts.Project.Root, filepath.FromSlash(relPath)))
	if err != nil {
		return fallback
	}
	return info.ModTime().UTC()
}

// ModuleFileName is the file name of a module inside modules/.
func ModuleFileName(uid string) string {
	return moduleFileReplacer.Replace(uid) + ".json"
}

var moduleFileReplacer = strings.NewReplacer(":", "~", "/", "_", `\`, "_")

// moduleCallEdges flattens every call site of m into call edges.
func moduleCallEdges(ix *moduleIndex, m *model.ModuleRecord) []CallEdge {
	aliases := m.ImportAliases()
	edges := []CallEdge{}
	for _, fn := range m.Functions {
		sites := fn.CallSites
		if len(sites) == 0 {
			for _, target := range fn.Calls {
				sites = append(sites, model.CallSite{Target: target, Kind: model.CallLocal})
			}
		}
		for _, site := range sites {
			edges = append(edges, CallEdge{
				CallerUID:    fn.UID,
				CallerModule: m.UID,
				CalleeName:   site.Target,
				CalleeModule: ix.calleeModule(m, aliases, site),
				CallType:     site.Kind,
				LineNumber:   site.Line,
			})
		}
	}
	return edges
}

func buildCallGraph(modules []*assembledModule) *CallGraph {
	cg := &CallGraph{
		Calls:      []CallEdge{},
		Statistics: CallStatistics{ByType: map[model.CallKind]int{}},
	}
	indexed := make(map[string]bool, len(modules))
	for _, a := range modules {
		indexed[a.info.UID] = true
	}
	callers := map[string]bool{}
	callees := map[string]bool{}
	for _, a := range modules {
		for _, edge := range a.calls {
			cg.Calls = append(cg.Calls, edge)
			callers[edge.CallerUID] = true
			callees[edge.CalleeName] = true
			cg.Statistics.ByType[edge.CallType]++
			if edge.CalleeModule != "" && edge.CalleeModule != edge.CallerModule && indexed[edge.CalleeModule] {
				cg.Statistics.CrossModuleCalls++
			}
		}
	}
	cg.Statistics.TotalCalls = len(cg.Calls)
	cg.Statistics.UniqueCallers = len(callers)
	cg.Statistics.UniqueCallees = len(callees)
	return cg
}

// collapseModules groups modules by collapsed key. Modules sharing a key
// with identical content are merged into the first; differing content is a
// UIDCollisionError. Surviving modules are returned sorted by UID.
func collapseModules(modules []model.ModuleRecord, logger *slog.Logger) ([]model.ModuleRecord, error) {
	groups := make(map[string][]int)
	for i, m := range modules {
		key := collapseKey(m.UID)
		groups[key] = append(groups[key], i)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]model.ModuleRecord, 0, len(keys))
	for _, key := range keys {
		members := groups[key]
		first := modules[members[0]]

		var paths []string
		for _, idx := range members {
			paths = append(paths, modules[idx].Path)
		}
		for _, idx := range members[1:] {
			if modules[idx].ContentHash != first.ContentHash {
				sort.Strings(paths)
				return nil, &UIDCollisionError{Key: key, Paths: paths}
			}
		}
		if len(members) > 1 {
			logger.Info("collapsed identical modules", "uid", key, "paths", paths)
		}

		if first.UID != key {
			rekey(&first, key)
		}
		out = append(out, first)
	}
	return out, nil
}

// rekey moves a module and its entities from their current module UID to key.
func rekey(m *model.ModuleRecord, key string) {
	old := m.UID
	replace := func(uid string) string {
		if strings.HasPrefix(uid, old+".") || strings.HasPrefix(uid, old+"#") {
			return key + uid[len(old):]
		}
		return uid
	}
	m.UID = key
	m.Functions = append([]model.FunctionRecord(nil), m.Functions...)
	m.Classes = append([]model.ClassRecord(nil), m.Classes...)
	for i := range m.Functions {
		m.Functions[i].UID = replace(m.Functions[i].UID)
	}
	for i := range m.Classes {
		m.Classes[i].UID = replace(m.Classes[i].UID)
	}
}
