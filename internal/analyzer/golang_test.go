package analyzer

import (
	"context"
	"testing"

	"github.com/kpblcaoo/llmstruct/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the Go analyzer:
// - package name, doc comment and imports are recorded
// - in-module imports resolve to project-relative directories through go.mod
// - structs record fields and embedded bases; interfaces record methods
// - methods attach to their receiver type
// - calls through an import alias are qualified, through a receiver or local
//   value are method calls, bare calls are local, builtins are skipped
// - syntax errors surface as ParseError
// - the regex fallback still finds functions in broken files

const goServer = `// Package app wires the server.
package app

import (
	"fmt"

	"example.com/proj/pkg/util"
)

// Server serves requests.
type Server struct {
	Base
	Name string
}

// Runner runs.
type Runner interface {
	Run() error
}

type ID string

// Run starts the server.
func (s *Server) Run() error {
	util.Helper(s.Name)
	s.stop()
	fmt.Println("running")
	local := util.New()
	local.Close()
	start()
	_ = len(s.Name)
	return nil
}

func (s *Server) stop() {}

func start() {}
`

func TestGoAnalyzer(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "go.mod", "module example.com/proj\n\ngo 1.22\n")
	writeSource(t, root, "pkg/util/util.go", "package util\n\nfunc Helper(string) {}\n")
	writeSource(t, root, "app/server.go", goServer)

	record, err := NewGoAnalyzer().Analyze(context.Background(), root, "app/server.go")
	require.NoError(t, err)

	assert.Equal(t, "app/server.go", record.Path)
	assert.Equal(t, model.LanguageGo, record.Language)
	assert.Equal(t, "app", record.Package)
	assert.Equal(t, "Package app wires the server.", record.Doc)
	assert.Equal(t, []string{"fmt", "example.com/proj/pkg/util"}, record.Dependencies)

	require.Len(t, record.Imports, 2)
	assert.Empty(t, record.Imports[0].Target)
	assert.Equal(t, "util", record.Imports[1].Alias)
	assert.Equal(t, "pkg/util", record.Imports[1].Target)

	server := findClass(t, record, "Server")
	assert.Equal(t, model.EntityStruct, server.Kind)
	assert.Equal(t, []string{"Base", "Name string"}, server.Fields)
	assert.Equal(t, []string{"Base"}, server.Bases)
	assert.ElementsMatch(t, []string{"Run", "stop"}, server.Methods)
	assert.Equal(t, "Server serves requests.", server.Doc)

	runner := findClass(t, record, "Runner")
	assert.True(t, runner.IsInterface)
	assert.Equal(t, []string{"Run"}, runner.Methods)
	assert.Len(t, record.Classes, 2, "named non-struct types are not classes")

	run := findFunction(t, record, "Run")
	assert.Equal(t, model.EntityMethod, run.Kind)
	assert.Equal(t, "Server", run.Parent)
	assert.Equal(t, "*Server", run.Receiver)
	assert.Equal(t, []string{"error"}, run.Returns)
	assert.Equal(t, "func (s *Server) Run() error", run.Signature)
	assert.Equal(t, &model.LineRange{Start: 24, End: 33}, run.LineRange)

	kinds := callKinds(run)
	assert.Equal(t, model.CallQualified, kinds["util.Helper"])
	assert.Equal(t, model.CallQualified, kinds["fmt.Println"])
	assert.Equal(t, model.CallQualified, kinds["util.New"])
	assert.Equal(t, model.CallMethod, kinds["s.stop"])
	assert.Equal(t, model.CallMethod, kinds["local.Close"])
	assert.Equal(t, model.CallLocal, kinds["start"])
	assert.NotContains(t, run.Calls, "len")

	assert.Equal(t, run.Calls, record.CallGraph["Server.Run"])
	assert.Empty(t, record.CallGraph["start"])
}

func TestGoAnalyzer_SyntaxError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "bad.go", "package bad\n\nfunc Broken( {\n")

	_, err := NewGoAnalyzer().Analyze(context.Background(), root, "bad.go")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "go", parseErr.Analyzer)
}

func TestGoFallback_BrokenFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "bad.go", `package bad

import "strings"

type Thing struct {
	name string
}

func (t *Thing) Upper() string {
	return strings.ToUpper(t.name)
}

func Broken( {
`)

	a := WithFallback(NewGoAnalyzer(), NewGoFallbackAnalyzer(), nil)
	record, err := a.Analyze(context.Background(), root, "bad.go")
	require.NoError(t, err)

	assert.True(t, record.Fallback)
	assert.Contains(t, record.Tags, model.TagFallback)
	assert.Equal(t, "bad", record.Package)
	assert.Equal(t, []string{"strings"}, record.Dependencies)

	upper := findFunction(t, record, "Upper")
	assert.Equal(t, "Thing", upper.Parent)
	assert.Equal(t, []string{"strings.ToUpper"}, upper.Calls)
	assert.Contains(t, upper.Tags, model.TagFallback)
	assert.Equal(t, []string{"Upper"}, findClass(t, record, "Thing").Methods)
	findFunction(t, record, "Broken")
}
