package assembler

import (
	"errors"
	"strings"
	"testing"

	"github.com/kpblcaoo/llmstruct/internal/hashing"
	"github.com/kpblcaoo/llmstruct/internal/model"
	"github.com/kpblcaoo/llmstruct/internal/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Enrich:
// - module and entity UIDs follow module[.parent].name#type, with an optional prefix
// - content hash is attached to every module; entity hashes only when requested
// - every module and entity carries duplicate-free UID components ending at its UID
// - line ranges are dropped unless requested
// - tags combine inferred tags, flags and decorators, sorted
// - a module that cannot be enriched is skipped and recorded, others survive
// - duplicate UIDs are reported in Validation and Errors, and fail CheckStrict

func function(name, parent string, calls ...model.CallSite) model.FunctionRecord {
	fn := model.FunctionRecord{
		Name:       name,
		Kind:       model.EntityFunction,
		Parent:     parent,
		Parameters: []string{},
		Calls:      []string{},
		Tags:       []string{},
		LineRange:  &model.LineRange{Start: 1, End: 2},
		Code:       "def " + name + "():\n    pass",
	}
	if parent != "" {
		fn.Kind = model.EntityMethod
	}
	for _, c := range calls {
		fn.CallSites = append(fn.CallSites, c)
		fn.Calls = append(fn.Calls, c.Target)
	}
	return fn
}

func module(path string, lang model.Language, source string, fns ...model.FunctionRecord) model.ModuleRecord {
	m := model.NewModuleRecord(path, lang)
	m.Source = []byte(source)
	m.LinesOfCode = 2
	m.Functions = append(m.Functions, fns...)
	m.BuildCallGraph()
	return m
}

func TestEnrich_IdentityAndHashes(t *testing.T) {
	t.Parallel()

	m := module("src/pkg/service.py", model.LanguagePython, "class Service:\n    pass\n",
		function("run", "Service"),
		function("build", ""))
	m.Classes = append(m.Classes, model.ClassRecord{
		Name: "Service", Kind: model.EntityClass, Fields: []string{}, Methods: []string{"run"},
		Tags: []string{}, LineRange: &model.LineRange{Start: 1, End: 2}, Code: "class Service:\n    pass",
	})

	res := Enrich([]model.ModuleRecord{m}, EnrichOptions{IncludeHashes: true})
	require.Empty(t, res.Errors)
	require.Len(t, res.Modules, 1)
	got := res.Modules[0]

	assert.Equal(t, "pkg.service", got.UID)
	assert.Equal(t, hashing.HashSource("class Service:\n    pass\n", model.LanguagePython), got.ContentHash)
	assert.Equal(t, "pkg.service.Service.run#method", got.Functions[0].UID)
	assert.Equal(t, "pkg.service.build#function", got.Functions[1].UID)
	assert.Equal(t, "pkg.service.Service#class", got.Classes[0].UID)
	assert.NotEmpty(t, got.Functions[0].Hash)
	assert.NotEmpty(t, got.Classes[0].Hash)
	assert.Nil(t, got.Functions[0].LineRange, "ranges are dropped unless requested")
	assert.Equal(t, []string{"core", "module", "python"}, got.Tags)

	assert.True(t, res.Validation.OK())
	assert.Equal(t, 4, res.Validation.Total)
	assert.NoError(t, res.CheckStrict())

	// the input is not modified
	assert.Empty(t, m.UID)
}

func TestEnrich_PrefixAndRanges(t *testing.T) {
	t.Parallel()

	m := module("a.py", model.LanguagePython, "def f():\n    pass\n", function("f", ""))
	res := Enrich([]model.ModuleRecord{m}, EnrichOptions{UIDPrefix: "python:", IncludeRanges: true})

	got := res.Modules[0]
	assert.Equal(t, "python:a", got.UID)
	assert.Equal(t, "python:a.f#function", got.Functions[0].UID)
	assert.Equal(t, &model.LineRange{Start: 1, End: 2}, got.Functions[0].LineRange)
	assert.Empty(t, got.Functions[0].Hash)
}

func TestEnrich_UIDComponents(t *testing.T) {
	t.Parallel()

	m := module("src/pkg/service.py", model.LanguagePython, "class Service:\n    pass\n", function("run", "Service"))
	m.Classes = append(m.Classes, model.ClassRecord{Name: "Service", Kind: model.EntityClass, Fields: []string{}, Methods: []string{"run"}, Tags: []string{}})

	res := Enrich([]model.ModuleRecord{m}, EnrichOptions{UIDPrefix: "python:"})
	require.Len(t, res.Modules, 1)
	got := res.Modules[0]

	assert.Equal(t, []string{"python:pkg", "python:pkg.service"}, got.UIDComponents)
	assert.Equal(t, []string{"python:pkg", "python:pkg.service", "python:pkg.service.Service", "python:pkg.service.Service.run"},
		got.Functions[0].UIDComponents)
	assert.Equal(t, []string{"python:pkg", "python:pkg.service", "python:pkg.service.Service"}, got.Classes[0].UIDComponents)

	lists := map[string][]string{
		got.UID:              got.UIDComponents,
		got.Functions[0].UID: got.Functions[0].UIDComponents,
		got.Classes[0].UID:   got.Classes[0].UIDComponents,
	}
	for uid, components := range lists {
		seen := make(map[string]bool)
		for _, c := range components {
			assert.False(t, seen[c], "duplicate component %s in %s", c, uid)
			seen[c] = true
		}
		last := components[len(components)-1]
		assert.Equal(t, strings.SplitN(uid, "#", 2)[0], last)
	}
}

func TestEnrich_Tags(t *testing.T) {
	t.Parallel()

	private := function("_load", "Repo")
	private.IsAsync = true
	private.Code = "async def _load(self):\n    yield 1"

	prop := function("name", "Repo")
	prop.Decorators = []string{"property"}
	prop.Tags = []string{model.TagFallback}

	m := module("repo.py", model.LanguagePython, "", private, prop)
	got := Enrich([]model.ModuleRecord{m}, EnrichOptions{}).Modules[0]

	assert.Equal(t, []string{tags.Async, tags.Generator, "method", tags.Private}, got.Functions[0].Tags)
	assert.Equal(t, []string{model.TagFallback, "method", tags.Property, tags.Public}, got.Functions[1].Tags)
}

func TestEnrich_SkipsBrokenModule(t *testing.T) {
	t.Parallel()

	broken := module("__init__.py", model.LanguagePython, "")
	ok := module("a.py", model.LanguagePython, "def f(): pass\n", function("f", ""))

	res := Enrich([]model.ModuleRecord{broken, ok}, EnrichOptions{})
	require.Len(t, res.Modules, 1)
	assert.Equal(t, "a", res.Modules[0].UID)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "__init__.py", res.Errors[0].Path)
	assert.Equal(t, StageEnrich, res.Errors[0].Stage)
}

func TestEnrich_DuplicateUIDs(t *testing.T) {
	t.Parallel()

	m := module("a.py", model.LanguagePython, "", function("f", ""), function("f", ""))
	res := Enrich([]model.ModuleRecord{m}, EnrichOptions{})

	assert.False(t, res.Validation.OK())
	assert.Equal(t, []string{"a.f#function"}, res.Validation.DuplicateUIDs())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, StageIdentity, res.Errors[0].Stage)

	var strict *StrictUIDError
	require.True(t, errors.As(res.CheckStrict(), &strict))
	assert.Equal(t, []string{"a.f#function"}, strict.Duplicates)
}

func TestEnrichResult_Merge(t *testing.T) {
	t.Parallel()

	py := Enrich([]model.ModuleRecord{module("a.py", model.LanguagePython, "", function("f", ""))}, EnrichOptions{UIDPrefix: "python:"})
	goRes := Enrich([]model.ModuleRecord{module("a.go", model.LanguageGo, "", function("f", ""))}, EnrichOptions{UIDPrefix: "go:"})

	py.Merge(goRes)
	assert.Len(t, py.Modules, 2)
	assert.True(t, py.Validation.OK(), "language prefixes keep same-named modules apart")
	assert.Equal(t, 4, py.Validation.Total)
}
