package analyzer

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kpblcaoo/llmstruct/internal/model"
	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// pythonAnalyzer extracts module records from Python files with tree-sitter.
type pythonAnalyzer struct {
	language *sitter.Language
}

// NewPythonAnalyzer creates the in-process Python analyzer.
func NewPythonAnalyzer() Analyzer {
	return &pythonAnalyzer{language: sitter.NewLanguage(python.Language())}
}

func (a *pythonAnalyzer) Language() model.Language { return model.LanguagePython }

func (a *pythonAnalyzer) Analyze(ctx context.Context, root, relPath string) (model.ModuleRecord, error) {
	source, err := readSource(root, relPath)
	if err != nil {
		return model.ModuleRecord{}, err
	}

	tree, err := parseTree(a.language, source, model.LanguagePython)
	if err != nil {
		return model.ModuleRecord{}, &ParseError{Path: relPath, Analyzer: "python", Err: err}
	}
	defer tree.Close()

	rootNode := tree.RootNode()
	if rootNode.HasError() {
		return model.ModuleRecord{}, &ParseError{Path: relPath, Analyzer: "python", Err: errors.New("syntax error")}
	}

	record := newRecord(relPath, model.LanguagePython, source)
	record.Doc = pyDocstring(rootNode, source)
	record.Package = pyPackage(relPath)

	w := &pyWalker{source: source, record: &record, rootDir: root, relPath: relPath}
	w.collectImports(rootNode)
	w.aliases = record.ImportAliases()
	w.visitBlock(rootNode, "", false)

	attachMethods(&record)
	record.BuildCallGraph()
	return record, nil
}

// pyWalker holds per-file state while walking a Python syntax tree.
type pyWalker struct {
	source  []byte
	record  *model.ModuleRecord
	rootDir string
	relPath string
	aliases map[string]model.ImportRecord
}

// compoundStatements may contain definitions in their bodies.
var compoundStatements = map[string]bool{
	"if_statement":    true,
	"elif_clause":     true,
	"else_clause":     true,
	"try_statement":   true,
	"except_clause":   true,
	"finally_clause":  true,
	"with_statement":  true,
	"for_statement":   true,
	"while_statement": true,
	"block":           true,
	"match_statement": true,
	"case_clause":     true,
}

func (w *pyWalker) visitBlock(block *sitter.Node, parent string, inClass bool) {
	for _, stmt := range namedChildren(block) {
		w.visitStatement(stmt, parent, inClass)
	}
}

func (w *pyWalker) visitStatement(node *sitter.Node, parent string, inClass bool) {
	switch node.Kind() {
	case "decorated_definition":
		var decorators []string
		for _, child := range namedChildren(node) {
			if child.Kind() == "decorator" {
				decorators = append(decorators, strings.TrimPrefix(compactText(child, w.source), "@"))
			}
		}
		if def := node.ChildByFieldName("definition"); def != nil {
			w.visitDefinition(def, node, parent, inClass, decorators)
		}
	case "function_definition", "class_definition":
		w.visitDefinition(node, node, parent, inClass, nil)
	case "expression_statement":
		if inClass {
			w.collectClassField(node, parent)
		}
	default:
		if compoundStatements[node.Kind()] {
			for _, child := range namedChildren(node) {
				w.visitStatement(child, parent, inClass)
			}
		}
	}
}

// visitDefinition handles a function or class. outer is the decorated_definition
// wrapper when present, so line ranges and code include decorators.
func (w *pyWalker) visitDefinition(def, outer *sitter.Node, parent string, inClass bool, decorators []string) {
	switch def.Kind() {
	case "function_definition":
		fn := w.buildFunction(def, outer, parent, inClass, decorators)
		w.record.Functions = append(w.record.Functions, fn)
		if body := def.ChildByFieldName("body"); body != nil {
			if inClass {
				w.collectSelfFields(body, parent)
			}
			w.visitBlock(body, fn.QualifiedName(), false)
		}

	case "class_definition":
		name := extractNodeText(def.ChildByFieldName("name"), w.source)
		if name == "" {
			return
		}
		qualified := name
		if parent != "" {
			qualified = parent + "." + name
		}

		class := model.ClassRecord{
			Name:      qualified,
			Kind:      model.EntityClass,
			Fields:    []string{},
			Methods:   []string{},
			LineRange: nodeLineRange(outer),
			Tags:      []string{},
			Code:      extractNodeText(outer, w.source),
		}
		if supers := def.ChildByFieldName("superclasses"); supers != nil {
			for _, base := range namedChildren(supers) {
				if base.Kind() == "keyword_argument" {
					continue
				}
				class.Bases = append(class.Bases, compactText(base, w.source))
			}
		}
		for _, base := range class.Bases {
			if base == "Protocol" || base == "ABC" || strings.HasSuffix(base, ".Protocol") || strings.HasSuffix(base, ".ABC") {
				class.IsInterface = true
			}
		}

		body := def.ChildByFieldName("body")
		class.Doc = pyDocstring(body, w.source)
		w.record.Classes = append(w.record.Classes, class)

		if body != nil {
			w.visitBlock(body, qualified, true)
		}
	}
}

func (w *pyWalker) buildFunction(def, outer *sitter.Node, parent string, inClass bool, decorators []string) model.FunctionRecord {
	fn := model.FunctionRecord{
		Name:       extractNodeText(def.ChildByFieldName("name"), w.source),
		Kind:       model.EntityFunction,
		Parent:     parent,
		Decorators: decorators,
		Parameters: pyParameters(def.ChildByFieldName("parameters"), w.source),
		LineRange:  nodeLineRange(outer),
		Calls:      []string{},
		Tags:       []string{},
		Code:       extractNodeText(outer, w.source),
	}
	if inClass {
		fn.Kind = model.EntityMethod
	}
	if first := def.Child(0); first != nil && first.Kind() == "async" {
		fn.IsAsync = true
	}
	if ret := def.ChildByFieldName("return_type"); ret != nil {
		fn.Returns = []string{compactText(ret, w.source)}
	}

	body := def.ChildByFieldName("body")
	if body != nil {
		sig := string(w.source[def.StartByte():body.StartByte()])
		sig = strings.TrimSpace(sig)
		sig = strings.TrimSuffix(sig, ":")
		fn.Signature = strings.Join(strings.Fields(sig), " ")
		fn.Doc = pyDocstring(body, w.source)
		w.collectCalls(body, &fn)
	}

	return fn
}

// collectCalls records calls in body without descending into nested
// definitions, which own their calls.
func (w *pyWalker) collectCalls(body *sitter.Node, fn *model.FunctionRecord) {
	walkTree(body, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "function_definition", "class_definition", "decorated_definition":
			return false
		case "yield":
			fn.IsGenerator = true
		case "call":
			w.recordCall(n, fn)
		}
		return true
	})
}

func (w *pyWalker) recordCall(call *sitter.Node, fn *model.FunctionRecord) {
	target := call.ChildByFieldName("function")
	if target == nil {
		return
	}
	line := nodeLine(call)

	switch target.Kind() {
	case "identifier":
		name := extractNodeText(target, w.source)
		if !pythonBuiltins[name] {
			addCall(fn, name, line, model.CallLocal)
		}
	case "attribute":
		chain := pyAttributeChain(target, w.source)
		if chain == "" {
			attr := extractNodeText(target.ChildByFieldName("attribute"), w.source)
			addCall(fn, attr, line, model.CallMethod)
			return
		}
		base := strings.SplitN(chain, ".", 2)[0]
		switch {
		case base == "self" || base == "cls":
			addCall(fn, chain, line, model.CallMethod)
		case w.aliases[base].Module != "":
			addCall(fn, chain, line, model.CallQualified)
		default:
			addCall(fn, chain, line, model.CallMethod)
		}
	}
}

// pyAttributeChain flattens a.b.c, returning "" when the chain does not
// start with an identifier.
func pyAttributeChain(node *sitter.Node, source []byte) string {
	switch node.Kind() {
	case "identifier":
		return extractNodeText(node, source)
	case "attribute":
		object := pyAttributeChain(node.ChildByFieldName("object"), source)
		if object == "" {
			return ""
		}
		return object + "." + extractNodeText(node.ChildByFieldName("attribute"), source)
	}
	return ""
}

// collectClassField records class-level assignments (x = 1, x: int).
func (w *pyWalker) collectClassField(stmt *sitter.Node, className string) {
	assign := findChildByType(stmt, "assignment")
	if assign == nil {
		return
	}
	left := assign.ChildByFieldName("left")
	if left != nil && left.Kind() == "identifier" {
		w.addField(className, extractNodeText(left, w.source))
	}
}

// collectSelfFields records self.x assignments inside a method body.
func (w *pyWalker) collectSelfFields(body *sitter.Node, className string) {
	walkTree(body, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "function_definition", "class_definition":
			return false
		case "assignment", "augmented_assignment":
			left := n.ChildByFieldName("left")
			if left != nil && left.Kind() == "attribute" {
				object := left.ChildByFieldName("object")
				if object != nil && extractNodeText(object, w.source) == "self" {
					w.addField(className, extractNodeText(left.ChildByFieldName("attribute"), w.source))
				}
			}
		}
		return true
	})
}

func (w *pyWalker) addField(className, field string) {
	if field == "" {
		return
	}
	for i := range w.record.Classes {
		if w.record.Classes[i].Name == className {
			w.record.Classes[i].Fields = appendUnique(w.record.Classes[i].Fields, field)
			return
		}
	}
}

// collectImports records every import statement in the file.
func (w *pyWalker) collectImports(rootNode *sitter.Node) {
	walkTree(rootNode, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			for _, child := range namedChildren(n) {
				module, alias := pyImportName(child, w.source)
				if module == "" {
					continue
				}
				if alias == "" {
					alias = strings.SplitN(module, ".", 2)[0]
				}
				w.addImport(model.ImportRecord{
					Module: module,
					Alias:  alias,
					Target: w.resolveModule(module),
					Line:   nodeLine(n),
				})
			}
			return false

		case "import_from_statement":
			moduleNode := n.ChildByFieldName("module_name")
			if moduleNode == nil {
				return false
			}
			module := w.absoluteModule(extractNodeText(moduleNode, w.source))
			main := model.ImportRecord{
				Module: module,
				Target: w.resolveModule(module),
				Line:   nodeLine(n),
			}

			for _, child := range namedChildren(n) {
				if child.StartByte() == moduleNode.StartByte() {
					continue
				}
				if child.Kind() == "wildcard_import" {
					main.Names = append(main.Names, "*")
					continue
				}
				name, alias := pyImportName(child, w.source)
				if name == "" {
					continue
				}
				if alias == "" {
					alias = name
				}
				sub := strings.TrimPrefix(module+"."+name, ".")
				if target := w.resolveModule(sub); target != "" {
					// from pkg import mod, where mod is itself a module
					w.addImport(model.ImportRecord{Module: sub, Alias: alias, Target: target, Line: nodeLine(n)})
					continue
				}
				main.Names = append(main.Names, alias)
			}
			w.addImport(main)
			return false
		}
		return true
	})
}

func (w *pyWalker) addImport(imp model.ImportRecord) {
	w.record.Imports = append(w.record.Imports, imp)
	if imp.Module != "" {
		w.record.Dependencies = appendUnique(w.record.Dependencies, imp.Module)
	}
}

// absoluteModule resolves a relative module (".mod", "..pkg") against the
// package of the current file.
func (w *pyWalker) absoluteModule(module string) string {
	if !strings.HasPrefix(module, ".") {
		return module
	}
	dots := len(module) - len(strings.TrimLeft(module, "."))
	rest := module[dots:]

	pkg := pyPackage(w.relPath)
	parts := []string{}
	if pkg != "" {
		parts = strings.Split(pkg, ".")
	}
	up := dots - 1
	if up > len(parts) {
		up = len(parts)
	}
	parts = parts[:len(parts)-up]
	if rest != "" {
		parts = append(parts, rest)
	}
	return strings.Join(parts, ".")
}

// resolveModule maps a dotted module to a project-relative file or package
// directory, or "" when it is not part of the project.
func (w *pyWalker) resolveModule(module string) string {
	if module == "" {
		return ""
	}
	rel := strings.ReplaceAll(module, ".", "/")
	for _, prefix := range []string{"", "src/"} {
		for _, candidate := range []string{prefix + rel + ".py", prefix + rel + "/__init__.py"} {
			if fileExists(filepath.Join(w.rootDir, filepath.FromSlash(candidate))) {
				return candidate
			}
		}
		if dirExists(filepath.Join(w.rootDir, filepath.FromSlash(prefix+rel))) {
			return prefix + rel
		}
	}

	// Sibling module of the current file (implicit relative import).
	if dir := path.Dir(w.relPath); dir != "." {
		candidate := dir + "/" + rel + ".py"
		if fileExists(filepath.Join(w.rootDir, filepath.FromSlash(candidate))) {
			return candidate
		}
	}
	return ""
}

// pyImportName returns the module and alias of a dotted_name or aliased_import.
func pyImportName(node *sitter.Node, source []byte) (string, string) {
	switch node.Kind() {
	case "dotted_name":
		return extractNodeText(node, source), ""
	case "aliased_import":
		return extractNodeText(node.ChildByFieldName("name"), source),
			extractNodeText(node.ChildByFieldName("alias"), source)
	}
	return "", ""
}

func pyParameters(params *sitter.Node, source []byte) []string {
	names := []string{}
	for _, p := range namedChildren(params) {
		switch p.Kind() {
		case "identifier", "list_splat_pattern", "dictionary_splat_pattern":
			names = append(names, extractNodeText(p, source))
		case "typed_parameter":
			if first := p.NamedChild(0); first != nil {
				names = append(names, extractNodeText(first, source))
			}
		case "default_parameter", "typed_default_parameter":
			names = append(names, extractNodeText(p.ChildByFieldName("name"), source))
		}
	}
	return names
}

// pyDocstring returns the docstring of a module or block, if any.
func pyDocstring(block *sitter.Node, source []byte) string {
	if block == nil || block.NamedChildCount() == 0 {
		return ""
	}
	first := block.NamedChild(0)
	if first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Kind() != "string" {
		return ""
	}

	lines := strings.Split(trimQuotes(extractNodeText(str, source)), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// pyPackage returns the dotted package containing relPath.
func pyPackage(relPath string) string {
	dir := path.Dir(strings.TrimPrefix(relPath, "src/"))
	if dir == "." {
		return ""
	}
	return strings.ReplaceAll(dir, "/", ".")
}

var pythonBuiltins = map[string]bool{
	"abs": true, "all": true, "any": true, "bool": true, "bytes": true, "callable": true,
	"dict": true, "dir": true, "enumerate": true, "filter": true, "float": true,
	"format": true, "frozenset": true, "getattr": true, "hasattr": true, "hash": true,
	"id": true, "int": true, "isinstance": true, "issubclass": true, "iter": true,
	"len": true, "list": true, "map": true, "max": true, "min": true, "next": true,
	"object": true, "open": true, "print": true, "range": true, "repr": true,
	"reversed": true, "round": true, "set": true, "setattr": true, "sorted": true,
	"str": true, "sum": true, "super": true, "tuple": true, "type": true, "vars": true,
	"zip": true,
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
