package analyzer

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kpblcaoo/llmstruct/internal/model"
	"golang.org/x/mod/modfile"
)

// goAnalyzer extracts module records from Go files using go/ast.
type goAnalyzer struct {
	modules *goModuleResolver
}

// NewGoAnalyzer creates the in-process Go analyzer.
func NewGoAnalyzer() Analyzer {
	return &goAnalyzer{modules: newGoModuleResolver()}
}

func (a *goAnalyzer) Language() model.Language { return model.LanguageGo }

func (a *goAnalyzer) Analyze(ctx context.Context, root, relPath string) (model.ModuleRecord, error) {
	source, err := readSource(root, relPath)
	if err != nil {
		return model.ModuleRecord{}, err
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, relPath, source, parser.ParseComments)
	if err != nil {
		return model.ModuleRecord{}, &ParseError{Path: relPath, Analyzer: "go", Err: err}
	}

	record := newRecord(relPath, model.LanguageGo, source)
	record.Package = file.Name.Name
	record.Doc = docText(file.Doc)

	imports := buildImportMap(file)
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		record.Imports = append(record.Imports, model.ImportRecord{
			Module: importPath,
			Alias:  importAlias(imp),
			Line:   fset.Position(imp.Pos()).Line,
		})
		record.Dependencies = append(record.Dependencies, importPath)
	}
	a.modules.ResolveImports(root, &record)

	ex := &goExtraction{fset: fset, source: source, imports: imports, record: &record}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok == token.TYPE {
				for _, spec := range d.Specs {
					if typeSpec, ok := spec.(*ast.TypeSpec); ok {
						ex.extractType(d, typeSpec)
					}
				}
			}
		case *ast.FuncDecl:
			ex.extractFunction(d)
		}
	}

	attachMethods(&record)
	record.BuildCallGraph()
	return record, nil
}

// goExtraction holds per-file state while walking declarations.
type goExtraction struct {
	fset    *token.FileSet
	source  []byte
	imports map[string]string
	record  *model.ModuleRecord
}

func (e *goExtraction) extractType(decl *ast.GenDecl, spec *ast.TypeSpec) {
	doc := spec.Doc
	if doc == nil {
		doc = decl.Doc
	}

	class := model.ClassRecord{
		Name:      spec.Name.Name,
		Doc:       docText(doc),
		Fields:    []string{},
		Methods:   []string{},
		LineRange: e.lineRange(spec.Pos(), spec.End()),
		Tags:      []string{},
		Code:      e.text(spec.Pos(), spec.End()),
	}

	switch t := spec.Type.(type) {
	case *ast.StructType:
		class.Kind = model.EntityStruct
		for _, field := range t.Fields.List {
			typ := types.ExprString(field.Type)
			if len(field.Names) == 0 {
				// embedded field
				class.Fields = append(class.Fields, typ)
				class.Bases = append(class.Bases, strings.TrimPrefix(typ, "*"))
				continue
			}
			for _, name := range field.Names {
				class.Fields = append(class.Fields, name.Name+" "+typ)
			}
		}
	case *ast.InterfaceType:
		class.Kind = model.EntityInterface
		class.IsInterface = true
		for _, method := range t.Methods.List {
			if len(method.Names) == 0 {
				class.Bases = append(class.Bases, types.ExprString(method.Type))
				continue
			}
			for _, name := range method.Names {
				class.Methods = append(class.Methods, name.Name)
			}
		}
	default:
		// Named non-struct types (type ID string) are not classes.
		return
	}

	e.record.Classes = append(e.record.Classes, class)
}

func (e *goExtraction) extractFunction(decl *ast.FuncDecl) {
	fn := model.FunctionRecord{
		Name:       decl.Name.Name,
		Kind:       model.EntityFunction,
		Doc:        docText(decl.Doc),
		Parameters: fieldListStrings(decl.Type.Params),
		Returns:    typeListStrings(decl.Type.Results),
		LineRange:  e.lineRange(decl.Pos(), decl.End()),
		Calls:      []string{},
		Tags:       []string{},
		Code:       e.text(decl.Pos(), decl.End()),
	}

	sigEnd := decl.End()
	if decl.Body != nil {
		sigEnd = decl.Body.Lbrace
	}
	fn.Signature = strings.TrimSpace(e.text(decl.Pos(), sigEnd))

	locals := make(map[string]bool)
	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		recv := decl.Recv.List[0]
		fn.Kind = model.EntityMethod
		fn.Receiver = types.ExprString(recv.Type)
		fn.Parent = extractReceiverType(recv.Type)
		for _, name := range recv.Names {
			locals[name.Name] = true
		}
	}
	collectNames(decl.Type.Params, locals)
	collectNames(decl.Type.Results, locals)

	if decl.Body != nil {
		e.extractCalls(decl.Body, &fn, locals)
	}

	e.record.Functions = append(e.record.Functions, fn)
}

// extractCalls records every call expression in body. Calls through an
// import alias are qualified, calls through other values are method calls,
// and bare identifiers are local.
func (e *goExtraction) extractCalls(body *ast.BlockStmt, fn *model.FunctionRecord, locals map[string]bool) {
	ast.Inspect(body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.AssignStmt:
			if node.Tok == token.DEFINE {
				for _, lhs := range node.Lhs {
					if ident, ok := lhs.(*ast.Ident); ok {
						locals[ident.Name] = true
					}
				}
			}
		case *ast.ValueSpec:
			for _, name := range node.Names {
				locals[name.Name] = true
			}
		case *ast.CallExpr:
			line := e.fset.Position(node.Pos()).Line
			switch fun := node.Fun.(type) {
			case *ast.Ident:
				if !isBuiltinFunc(fun.Name) {
					addCall(fn, fun.Name, line, model.CallLocal)
				}
			case *ast.SelectorExpr:
				chain := extractSelectorChain(fun)
				if chain == "" {
					addCall(fn, fun.Sel.Name, line, model.CallMethod)
					return true
				}
				base := strings.SplitN(chain, ".", 2)[0]
				if _, isImport := e.imports[base]; isImport && !locals[base] {
					addCall(fn, chain, line, model.CallQualified)
				} else {
					addCall(fn, chain, line, model.CallMethod)
				}
			}
		}
		return true
	})
}

func (e *goExtraction) lineRange(start, end token.Pos) *model.LineRange {
	return &model.LineRange{
		Start: e.fset.Position(start).Line,
		End:   e.fset.Position(end).Line,
	}
}

func (e *goExtraction) text(start, end token.Pos) string {
	from := e.fset.Position(start).Offset
	to := e.fset.Position(end).Offset
	if from < 0 || to > len(e.source) || from > to {
		return ""
	}
	return string(e.source[from:to])
}

// extractSelectorChain flattens a.b.c into "a.b.c". Returns "" when the chain
// does not start with an identifier (e.g. f().g).
func extractSelectorChain(expr *ast.SelectorExpr) string {
	switch x := expr.X.(type) {
	case *ast.Ident:
		return x.Name + "." + expr.Sel.Name
	case *ast.SelectorExpr:
		if inner := extractSelectorChain(x); inner != "" {
			return inner + "." + expr.Sel.Name
		}
	}
	return ""
}

// extractReceiverType returns T for receivers T, *T, T[K] and *T[K].
func extractReceiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return extractReceiverType(t.X)
	case *ast.IndexExpr:
		return extractReceiverType(t.X)
	case *ast.IndexListExpr:
		return extractReceiverType(t.X)
	}
	return "unknown"
}

// buildImportMap maps each import alias to its import path.
func buildImportMap(file *ast.File) map[string]string {
	imports := make(map[string]string)
	for _, imp := range file.Imports {
		alias := importAlias(imp)
		if alias == "_" || alias == "." {
			continue
		}
		imports[alias] = strings.Trim(imp.Path.Value, `"`)
	}
	return imports
}

// importAlias returns the explicit alias or the last path component.
func importAlias(imp *ast.ImportSpec) string {
	if imp.Name != nil {
		return imp.Name.Name
	}
	return goPathAlias(strings.Trim(imp.Path.Value, `"`))
}

// goPathAlias returns the default package name for an import path.
func goPathAlias(importPath string) string {
	parts := strings.Split(importPath, "/")
	last := parts[len(parts)-1]
	// gopkg.in/yaml.v3 and example.com/mod/v2 style paths
	if len(parts) > 1 && isMajorVersion(last) {
		last = parts[len(parts)-2]
	}
	if i := strings.Index(last, ".v"); i > 0 {
		last = last[:i]
	}
	return strings.ReplaceAll(last, "-", "_")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fieldListStrings(fields *ast.FieldList) []string {
	params := []string{}
	if fields == nil {
		return params
	}
	for _, field := range fields.List {
		typ := types.ExprString(field.Type)
		if len(field.Names) == 0 {
			params = append(params, typ)
			continue
		}
		for _, name := range field.Names {
			params = append(params, name.Name+" "+typ)
		}
	}
	return params
}

func typeListStrings(fields *ast.FieldList) []string {
	if fields == nil {
		return nil
	}
	var out []string
	for _, field := range fields.List {
		typ := types.ExprString(field.Type)
		n := len(field.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, typ)
		}
	}
	return out
}

func collectNames(fields *ast.FieldList, into map[string]bool) {
	if fields == nil {
		return
	}
	for _, field := range fields.List {
		for _, name := range field.Names {
			into[name.Name] = true
		}
	}
}

func docText(group *ast.CommentGroup) string {
	if group == nil {
		return ""
	}
	return strings.TrimSpace(group.Text())
}

func isBuiltinFunc(name string) bool {
	switch name {
	case "append", "cap", "clear", "close", "complex", "copy", "delete", "imag",
		"len", "make", "max", "min", "new", "panic", "print", "println", "real", "recover":
		return true
	}
	return false
}

// goModuleResolver maps in-module import paths to project-relative directories
// using the root go.mod.
type goModuleResolver struct {
	mu    sync.Mutex
	paths map[string]string // root -> module path
}

func newGoModuleResolver() *goModuleResolver {
	return &goModuleResolver{paths: make(map[string]string)}
}

// ModulePath returns the module path declared in root/go.mod, or "".
func (r *goModuleResolver) ModulePath(root string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if path, ok := r.paths[root]; ok {
		return path
	}
	path := ""
	if data, err := os.ReadFile(filepath.Join(root, "go.mod")); err == nil {
		path = modfile.ModulePath(data)
	}
	r.paths[root] = path
	return path
}

// ResolveImports sets Target on imports that point inside the module.
// Targets are package directories relative to root ("." for the root package).
func (r *goModuleResolver) ResolveImports(root string, record *model.ModuleRecord) {
	modulePath := r.ModulePath(root)
	if modulePath == "" {
		return
	}
	for i, imp := range record.Imports {
		switch {
		case imp.Module == modulePath:
			record.Imports[i].Target = "."
		case strings.HasPrefix(imp.Module, modulePath+"/"):
			record.Imports[i].Target = strings.TrimPrefix(imp.Module, modulePath+"/")
		}
	}
}
