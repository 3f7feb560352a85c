package analyzer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kluctl/go-embed-python/python"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// DefaultSubprocessTimeout bounds a single helper invocation.
const DefaultSubprocessTimeout = 120 * time.Second

//go:embed helpers/goast/main.go
var goastSource string

//go:embed helpers/pyast.py
var pyastScript string

// Helper materializes and launches an out-of-process analysis program.
type Helper interface {
	// Name identifies the helper in errors and logs.
	Name() string

	// Language is the language the helper analyzes.
	Language() model.Language

	// Command writes the helper program into workDir and returns a command
	// that prints the JSON ModuleRecord of target to stdout. release frees
	// anything acquired outside workDir and must always be called.
	Command(ctx context.Context, workDir, target string) (cmd *exec.Cmd, release func(), err error)
}

// ExternalProcessAnalyzer runs a Helper in a fresh scratch directory under a
// timeout and decodes its stdout.
type ExternalProcessAnalyzer struct {
	helper      Helper
	timeout     time.Duration
	logger      *slog.Logger
	postProcess func(root string, record *model.ModuleRecord)
}

// NewExternalProcessAnalyzer wraps helper. A zero timeout means DefaultSubprocessTimeout.
func NewExternalProcessAnalyzer(helper Helper, timeout time.Duration, logger *slog.Logger) *ExternalProcessAnalyzer {
	if timeout <= 0 {
		timeout = DefaultSubprocessTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &ExternalProcessAnalyzer{helper: helper, timeout: timeout, logger: logger}
	switch helper.Language() {
	case model.LanguageGo:
		a.postProcess = newGoModuleResolver().ResolveImports
	case model.LanguagePython:
		a.postProcess = resolvePythonImports
	}
	return a
}

func (a *ExternalProcessAnalyzer) Language() model.Language { return a.helper.Language() }

func (a *ExternalProcessAnalyzer) Analyze(ctx context.Context, root, relPath string) (model.ModuleRecord, error) {
	source, err := readSource(root, relPath)
	if err != nil {
		return model.ModuleRecord{}, err
	}
	fail := func(err error) (model.ModuleRecord, error) {
		return model.ModuleRecord{}, &ParseError{Path: relPath, Analyzer: a.helper.Name(), Err: err}
	}

	workDir, err := os.MkdirTemp("", "llmstruct-"+a.helper.Name()+"-*")
	if err != nil {
		return fail(fmt.Errorf("failed to create scratch dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	target, err := filepath.Abs(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return fail(err)
	}
	cmd, release, err := a.helper.Command(runCtx, workDir, target)
	if err != nil {
		return fail(fmt.Errorf("failed to prepare helper: %w", err))
	}
	defer release()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	runErr := runBounded(runCtx, cmd)
	a.logger.Debug("helper finished",
		"helper", a.helper.Name(),
		"file", relPath,
		"duration", time.Since(start),
		"error", runErr)

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return fail(fmt.Errorf("%w after %s", ErrTimeout, a.timeout))
	case runErr != nil:
		return fail(fmt.Errorf("helper failed: %w: %s", runErr, strings.TrimSpace(stderr.String())))
	}

	var decoded model.ModuleRecord
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err != nil {
		return fail(fmt.Errorf("malformed helper output: %w", err))
	}

	record := newRecord(relPath, a.helper.Language(), source)
	record.Package = decoded.Package
	record.Doc = decoded.Doc
	record.Imports = decoded.Imports
	if decoded.Functions != nil {
		record.Functions = decoded.Functions
	}
	if decoded.Classes != nil {
		record.Classes = decoded.Classes
	}
	normalizeDecoded(&record, source)

	if a.postProcess != nil {
		a.postProcess(root, &record)
	}
	for _, imp := range record.Imports {
		record.Dependencies = appendUnique(record.Dependencies, imp.Module)
	}
	attachMethods(&record)
	record.BuildCallGraph()
	return record, nil
}

// resolvePythonImports makes relative imports absolute and points imports
// of project modules at their files.
func resolvePythonImports(root string, record *model.ModuleRecord) {
	w := &pyWalker{rootDir: root, relPath: record.Path}
	for i := range record.Imports {
		imp := &record.Imports[i]
		imp.Module = w.absoluteModule(imp.Module)
		if imp.Target == "" {
			imp.Target = w.resolveModule(imp.Module)
		}
	}
}

// runBounded starts cmd and kills it when ctx ends. Helpers launched
// through wrappers such as the embedded interpreter are not bound to ctx.
func runBounded(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return ctx.Err()
	}
}

// normalizeDecoded fills collections a helper may omit and restores entity
// code from line ranges.
func normalizeDecoded(record *model.ModuleRecord, source []byte) {
	lines := strings.Split(string(source), "\n")
	code := func(r *model.LineRange) string {
		if r == nil || r.Start < 1 || r.End < r.Start || r.End > len(lines) {
			return ""
		}
		return strings.Join(lines[r.Start-1:r.End], "\n")
	}

	for i := range record.Functions {
		fn := &record.Functions[i]
		if fn.Kind == "" {
			fn.Kind = model.EntityFunction
		}
		if fn.Parameters == nil {
			fn.Parameters = []string{}
		}
		if fn.Calls == nil {
			fn.Calls = []string{}
		}
		fn.Tags = []string{}
		fn.Code = code(fn.LineRange)
	}
	for i := range record.Classes {
		class := &record.Classes[i]
		if class.Kind == "" {
			class.Kind = model.EntityClass
		}
		if class.Fields == nil {
			class.Fields = []string{}
		}
		if class.Methods == nil {
			class.Methods = []string{}
		}
		class.Tags = []string{}
		class.Code = code(class.LineRange)
	}
}

// GoHelper runs an embedded go/ast extractor with `go run`.
type GoHelper struct {
	// GoBinary defaults to "go" on PATH.
	GoBinary string
}

func (h *GoHelper) Name() string { return "goast" }

func (h *GoHelper) Language() model.Language { return model.LanguageGo }

func (h *GoHelper) Command(ctx context.Context, workDir, target string) (*exec.Cmd, func(), error) {
	goBin := h.GoBinary
	if goBin == "" {
		goBin = "go"
	}
	goPath, err := exec.LookPath(goBin)
	if err != nil {
		return nil, nil, fmt.Errorf("go toolchain not found: %w", err)
	}

	if err := os.WriteFile(filepath.Join(workDir, "main.go"), []byte(goastSource), 0644); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(filepath.Join(workDir, "go.mod"), []byte("module goast\n\ngo 1.21\n"), 0644); err != nil {
		return nil, nil, err
	}

	cmd := exec.CommandContext(ctx, goPath, "run", ".", target)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"GOTOOLCHAIN=local",
		"GOFLAGS=-mod=mod",
		"GOWORK=off",
	)
	return cmd, func() {}, nil
}

// PythonHelper runs an embedded ast-based extractor on an embedded CPython.
type PythonHelper struct {
	// RuntimeDir keeps the extracted interpreter between runs. When empty
	// the interpreter is extracted into the scratch directory and removed
	// with it.
	RuntimeDir string
}

func (h *PythonHelper) Name() string { return "pyast" }

func (h *PythonHelper) Language() model.Language { return model.LanguagePython }

func (h *PythonHelper) Command(ctx context.Context, workDir, target string) (*exec.Cmd, func(), error) {
	scriptPath := filepath.Join(workDir, "pyast.py")
	if err := os.WriteFile(scriptPath, []byte(pyastScript), 0644); err != nil {
		return nil, nil, err
	}

	runtimeDir, persistent := h.RuntimeDir, true
	if runtimeDir == "" {
		runtimeDir, persistent = filepath.Join(workDir, "python"), false
	}
	ep, err := python.NewEmbeddedPythonWithTmpDir(runtimeDir, persistent)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedded python: %w", err)
	}
	release := func() {
		if !persistent {
			_ = ep.Cleanup()
		}
	}

	cmd, err := ep.PythonCmd(scriptPath, target)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to create python command: %w", err)
	}
	return cmd, release, nil
}
