package assembler

import (
	"time"

	"github.com/kpblcaoo/llmstruct/internal/identity"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// SchemaVersion is the version of the modular directory layout.
const SchemaVersion = "2.0"

// Output file names inside the modular directory.
const (
	IndexFile     = "index.json"
	CallGraphFile = "callgraph.json"
	SchemaFile    = "schema.json"
	MetadataFile  = "metadata.json"
	LegacyFile    = "struct.json"
	ModulesDir    = "modules"
)

// Stats are the per-run counters shared by the flat and modular outputs.
type Stats struct {
	ModulesCount   int `json:"modules_count"`
	FunctionsCount int `json:"functions_count"`
	ClassesCount   int `json:"classes_count"`
	CallEdgesCount int `json:"call_edges_count"`
	LinesOfCode    int `json:"lines_of_code"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.ModulesCount += other.ModulesCount
	s.FunctionsCount += other.FunctionsCount
	s.ClassesCount += other.ClassesCount
	s.CallEdgesCount += other.CallEdgesCount
	s.LinesOfCode += other.LinesOfCode
}

// ComputeStats counts modules, entities and call edges.
func ComputeStats(modules []model.ModuleRecord) Stats {
	var s Stats
	for _, m := range modules {
		s.ModulesCount++
		s.FunctionsCount += len(m.Functions)
		s.ClassesCount += len(m.Classes)
		s.LinesOfCode += m.LinesOfCode
		for _, fn := range m.Functions {
			s.CallEdgesCount += len(fn.Calls)
		}
	}
	return s
}

// ProjectInfo describes the analyzed project.
type ProjectInfo struct {
	Name      string   `json:"name"`
	Root      string   `json:"root,omitempty"`
	Languages []string `json:"languages"`
	Goals     []string `json:"goals,omitempty"`
}

// FolderEntry is one file or directory in the flat folder listing.
type FolderEntry struct {
	Path       string `json:"path"`
	Type       string `json:"type"`
	ArtifactID string `json:"artifact_id"`
}

// TOCEntry is one summary row of the flat document.
type TOCEntry struct {
	ModuleID   string         `json:"module_id"`
	Path       string         `json:"path"`
	Category   model.Category `json:"category"`
	Functions  int            `json:"functions"`
	Classes    int            `json:"classes"`
	Summary    string         `json:"summary"`
	ArtifactID string         `json:"artifact_id"`
}

// FlatMetadata is the metadata block of the flat document.
type FlatMetadata struct {
	ProjectName     string                     `json:"project_name"`
	Version         string                     `json:"version"`
	GeneratedAt     time.Time                  `json:"generated_at"`
	Languages       []string                   `json:"languages,omitempty"`
	Goals           []string                   `json:"goals,omitempty"`
	Stats           Stats                      `json:"stats"`
	LanguageStats   map[string]Stats           `json:"language_stats,omitempty"`
	FolderStructure []FolderEntry              `json:"folder_structure"`
	AnalysisErrors  []AnalysisError            `json:"analysis_errors"`
	UIDValidation   *identity.ValidationReport `json:"uid_validation,omitempty"`
}

// FlatDocument is the single aggregate artifact (struct.json).
type FlatDocument struct {
	Metadata FlatMetadata         `json:"metadata"`
	TOC      []TOCEntry           `json:"toc"`
	Modules  []model.ModuleRecord `json:"modules"`
}

// Complexity buckets modules by entity count.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ComplexityFor returns the bucket for a module with the given entity count.
func ComplexityFor(entities int) Complexity {
	switch {
	case entities < 10:
		return ComplexityLow
	case entities < 25:
		return ComplexityMedium
	}
	return ComplexityHigh
}

// ModuleInfo is the per-module summary written to modules/<uid>.json and
// described by schema.json.
type ModuleInfo struct {
	UID            string         `json:"uid" jsonschema:"required,description=Module UID (normalized dotted path)"`
	UIDComponents  []string       `json:"uid_components" jsonschema:"description=Progressively qualified UID prefixes"`
	FilePath       string         `json:"file_path" jsonschema:"required"`
	Language       model.Language `json:"language" jsonschema:"required"`
	Category       model.Category `json:"category" jsonschema:"enum=core,enum=test,enum=cli,enum=internal"`
	Package        string         `json:"package,omitempty"`
	Doc            string         `json:"doc,omitempty"`
	Summary        string         `json:"summary"`
	Hash           string         `json:"hash" jsonschema:"description=SHA-256 over the sorted member UIDs"`
	ContentHash    string         `json:"content_hash" jsonschema:"description=SHA-256 over normalized source"`
	Tags           []string       `json:"tags"`
	Dependencies   []string       `json:"dependencies"`
	Exports        []string       `json:"exports"`
	FunctionsCount int            `json:"functions_count"`
	ClassesCount   int            `json:"classes_count"`
	LinesOfCode    int            `json:"lines_of_code"`
	Complexity     Complexity     `json:"complexity" jsonschema:"enum=low,enum=medium,enum=high"`
	Fallback       bool           `json:"fallback,omitempty"`
}

// ModuleFileMetadata is the metadata block of a module file.
type ModuleFileMetadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	GeneratorVersion string    `json:"generator_version"`
	SchemaVersion    string    `json:"schema_version"`
}

// ModuleFile is the content of modules/<uid>.json.
type ModuleFile struct {
	ModuleInfo ModuleInfo             `json:"module_info"`
	Functions  []model.FunctionRecord `json:"functions"`
	Classes    []model.ClassRecord    `json:"classes"`
	Imports    []model.ImportRecord   `json:"imports"`
	Calls      []CallEdge             `json:"calls"`
	Metadata   ModuleFileMetadata     `json:"metadata"`
}

// IndexEntry is the per-module row of index.json.
type IndexEntry struct {
	UID            string     `json:"uid"`
	ModulePath     string     `json:"module_path"`
	FilePath       string     `json:"file_path"`
	Tags           []string   `json:"tags"`
	Summary        string     `json:"summary"`
	Hash           string     `json:"hash"`
	ContentHash    string     `json:"content_hash"`
	FunctionsCount int        `json:"functions_count"`
	ClassesCount   int        `json:"classes_count"`
	LinesOfCode    int        `json:"lines_of_code"`
	Dependencies   []string   `json:"dependencies"`
	Dependents     []string   `json:"dependents"`
	Complexity     Complexity `json:"complexity"`
	LastModified   time.Time  `json:"last_modified"`
}

// Index is the content of index.json.
type Index struct {
	SchemaVersion string       `json:"schema_version"`
	GeneratedAt   time.Time    `json:"generated_at"`
	ProjectInfo   ProjectInfo  `json:"project_info"`
	Modules       []IndexEntry `json:"modules"`
}

// CallEdge is one call from a function to a named callee.
type CallEdge struct {
	CallerUID    string         `json:"caller_uid"`
	CallerModule string         `json:"caller_module"`
	CalleeName   string         `json:"callee_name"`
	CalleeModule string         `json:"callee_module"`
	CallType     model.CallKind `json:"call_type"`
	LineNumber   int            `json:"line_number"`
}

// CallStatistics aggregates callgraph.json.
type CallStatistics struct {
	TotalCalls       int                    `json:"total_calls"`
	UniqueCallers    int                    `json:"unique_callers"`
	UniqueCallees    int                    `json:"unique_callees"`
	CrossModuleCalls int                    `json:"cross_module_calls"`
	ByType           map[model.CallKind]int `json:"by_type"`
}

// CallGraph is the content of callgraph.json.
type CallGraph struct {
	Calls      []CallEdge     `json:"calls"`
	Statistics CallStatistics `json:"statistics"`
}

// Metadata is the content of metadata.json.
type Metadata struct {
	GeneratedAt      time.Time                  `json:"generated_at"`
	GeneratorVersion string                     `json:"generator_version"`
	SchemaVersion    string                     `json:"schema_version"`
	Project          ProjectInfo                `json:"project"`
	Stats            Stats                      `json:"stats"`
	LanguageStats    map[string]Stats           `json:"language_stats,omitempty"`
	AnalysisErrors   []AnalysisError            `json:"analysis_errors"`
	UIDValidation    *identity.ValidationReport `json:"uid_validation"`
	DependencyCycles [][]string                 `json:"dependency_cycles"`
	Goals            []string                   `json:"goals,omitempty"`
}
