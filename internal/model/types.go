package model

import (
	"path"
	"strings"
)

// Language identifies the source language of a file.
type Language string

const (
	LanguageUnknown    Language = ""
	LanguageGo         Language = "go"
	LanguagePython     Language = "python"
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguageRust       Language = "rust"
	LanguageJava       Language = "java"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
	LanguagePHP        Language = "php"
	LanguageRuby       Language = "ruby"
)

// Category classifies a module by its location in the tree.
type Category string

const (
	CategoryCore     Category = "core"
	CategoryTest     Category = "test"
	CategoryCLI      Category = "cli"
	CategoryInternal Category = "internal"
)

// EntityType is the kind suffix used in UIDs ("#function", "#class", ...).
type EntityType string

const (
	EntityModule    EntityType = "module"
	EntityFunction  EntityType = "function"
	EntityMethod    EntityType = "method"
	EntityClass     EntityType = "class"
	EntityInterface EntityType = "interface"
	EntityStruct    EntityType = "struct"
)

// CallKind distinguishes how a call target was written at the call site.
type CallKind string

const (
	// CallQualified is a call through a module or package alias (pkg.fn).
	CallQualified CallKind = "qualified"
	// CallLocal is a bare call (fn).
	CallLocal CallKind = "local"
	// CallMethod is a call on a receiver, self or a local value (obj.fn).
	CallMethod CallKind = "method"
)

// TagFallback marks records produced by a reduced-fidelity analyzer.
const TagFallback = "fallback"

// LineRange is an inclusive 1-indexed span of source lines.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CallSite is a single call expression found inside a function body.
type CallSite struct {
	Target string   `json:"target"`
	Line   int      `json:"line"`
	Kind   CallKind `json:"kind"`
}

// ImportRecord is one import statement.
type ImportRecord struct {
	Module string   `json:"module"`           // import target as written
	Alias  string   `json:"alias,omitempty"`  // name the module is bound to locally
	Names  []string `json:"names,omitempty"`  // imported names for from-imports
	Target string   `json:"target,omitempty"` // project-relative path when the import resolves inside the project
	Line   int      `json:"line"`
}

// FunctionRecord describes a function or method.
type FunctionRecord struct {
	Name          string     `json:"name"`
	Kind          EntityType `json:"kind"`
	Signature     string     `json:"signature"`
	Doc           string     `json:"doc,omitempty"`
	Parameters    []string   `json:"parameters"`
	Returns       []string   `json:"returns,omitempty"`
	Receiver      string     `json:"receiver,omitempty"`
	Parent        string     `json:"parent,omitempty"`
	Decorators    []string   `json:"decorators,omitempty"`
	IsAsync       bool       `json:"is_async,omitempty"`
	IsGenerator   bool       `json:"is_generator,omitempty"`
	LineRange     *LineRange `json:"line_range,omitempty"`
	Calls         []string   `json:"calls"`
	CallSites     []CallSite `json:"call_sites,omitempty"`
	UID           string     `json:"uid,omitempty"`
	UIDComponents []string   `json:"uid_components,omitempty"`
	Hash          string     `json:"hash,omitempty"`
	Tags          []string   `json:"tags"`

	// Code is the function source, used for tagging and hashing only.
	Code string `json:"-"`
}

// QualifiedName returns Parent.Name, or Name for top-level functions.
func (f FunctionRecord) QualifiedName() string {
	if f.Parent == "" {
		return f.Name
	}
	return f.Parent + "." + f.Name
}

// ClassRecord describes a class, struct or interface.
type ClassRecord struct {
	Name          string     `json:"name"`
	Kind          EntityType `json:"kind"`
	Doc           string     `json:"doc,omitempty"`
	Fields        []string   `json:"fields"`
	Methods       []string   `json:"methods"`
	Bases         []string   `json:"bases,omitempty"`
	LineRange     *LineRange `json:"line_range,omitempty"`
	IsInterface   bool       `json:"is_interface"`
	UID           string     `json:"uid,omitempty"`
	UIDComponents []string   `json:"uid_components,omitempty"`
	Hash          string     `json:"hash,omitempty"`
	Tags          []string   `json:"tags"`

	Code string `json:"-"`
}

// ModuleRecord is the analysis result for one source file.
type ModuleRecord struct {
	Path          string              `json:"path"`
	Language      Language            `json:"language"`
	Category      Category            `json:"category"`
	Package       string              `json:"package,omitempty"`
	Doc           string              `json:"doc,omitempty"`
	Functions     []FunctionRecord    `json:"functions"`
	Classes       []ClassRecord       `json:"classes"`
	Imports       []ImportRecord      `json:"imports,omitempty"`
	Dependencies  []string            `json:"dependencies"`
	CallGraph     map[string][]string `json:"call_graph"`
	ContentHash   string              `json:"content_hash,omitempty"`
	UID           string              `json:"uid,omitempty"`
	UIDComponents []string            `json:"uid_components,omitempty"`
	Tags          []string            `json:"tags"`
	LinesOfCode   int                 `json:"lines_of_code"`
	Fallback      bool                `json:"fallback,omitempty"`

	// Source is the raw file content, kept for enrichment.
	Source []byte `json:"-"`
}

// NewModuleRecord returns a record with empty, non-nil collections.
func NewModuleRecord(relPath string, lang Language) ModuleRecord {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	return ModuleRecord{
		Path:         relPath,
		Language:     lang,
		Category:     InferCategory(relPath),
		Functions:    []FunctionRecord{},
		Classes:      []ClassRecord{},
		Dependencies: []string{},
		CallGraph:    map[string][]string{},
		Tags:         []string{},
	}
}

// BuildCallGraph fills CallGraph from each function's Calls.
func (m *ModuleRecord) BuildCallGraph() {
	m.CallGraph = make(map[string][]string, len(m.Functions))
	for _, fn := range m.Functions {
		m.CallGraph[fn.QualifiedName()] = append([]string{}, fn.Calls...)
	}
}

// ImportAliases maps each local alias to its import record.
func (m *ModuleRecord) ImportAliases() map[string]ImportRecord {
	aliases := make(map[string]ImportRecord, len(m.Imports))
	for _, imp := range m.Imports {
		if imp.Alias != "" {
			aliases[imp.Alias] = imp
		}
		for _, name := range imp.Names {
			if _, exists := aliases[name]; !exists {
				aliases[name] = imp
			}
		}
	}
	return aliases
}

// InferCategory classifies a slash-separated relative path.
func InferCategory(relPath string) Category {
	p := "/" + strings.ToLower(relPath)
	base := path.Base(p)

	switch {
	case strings.HasSuffix(base, "_test.go"),
		strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"),
		strings.HasSuffix(base, "_test.py"),
		strings.Contains(base, ".test.") || strings.Contains(base, ".spec."),
		strings.Contains(p, "/tests/") || strings.Contains(p, "/test/"):
		return CategoryTest
	case strings.Contains(p, "/cmd/") || strings.Contains(p, "/cli/"):
		return CategoryCLI
	case strings.Contains(p, "/internal/"):
		return CategoryInternal
	}
	return CategoryCore
}
