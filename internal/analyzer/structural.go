package analyzer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kpblcaoo/llmstruct/internal/model"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// structuralAnalyzer is the table-driven tree-sitter analyzer used for
// languages without a dedicated implementation.
type structuralAnalyzer struct {
	spec *languageSpec
}

// NewStructuralAnalyzer returns the best-effort analyzer for lang.
func NewStructuralAnalyzer(lang model.Language) (Analyzer, error) {
	spec, ok := languageSpecs()[lang]
	if !ok {
		return nil, fmt.Errorf("%w: no structural grammar for %q", ErrUnsupportedLanguage, lang)
	}
	return &structuralAnalyzer{spec: spec}, nil
}

// StructuralLanguages lists the languages NewStructuralAnalyzer accepts.
func StructuralLanguages() []model.Language {
	return []model.Language{
		model.LanguageTypeScript,
		model.LanguageJavaScript,
		model.LanguageRust,
		model.LanguageJava,
		model.LanguageC,
		model.LanguageCPP,
		model.LanguagePHP,
		model.LanguageRuby,
	}
}

func (a *structuralAnalyzer) Language() model.Language { return a.spec.lang }

func (a *structuralAnalyzer) Analyze(ctx context.Context, root, relPath string) (model.ModuleRecord, error) {
	source, err := readSource(root, relPath)
	if err != nil {
		return model.ModuleRecord{}, err
	}

	name := string(a.spec.lang)
	tree, err := parseTree(a.spec.grammar(relPath), source, a.spec.lang)
	if err != nil {
		return model.ModuleRecord{}, &ParseError{Path: relPath, Analyzer: name, Err: err}
	}
	defer tree.Close()

	rootNode := tree.RootNode()
	if rootNode.HasError() {
		return model.ModuleRecord{}, &ParseError{Path: relPath, Analyzer: name, Err: errors.New("syntax error")}
	}

	record := newRecord(relPath, a.spec.lang, source)
	w := &structWalker{spec: a.spec, source: source, record: &record, root: root, relPath: relPath}

	if first := rootNode.NamedChild(0); first != nil && a.spec.commentKinds[first.Kind()] {
		record.Doc = cleanComment(extractNodeText(first, source))
	}
	w.collectModuleInfo(rootNode)
	w.aliases = record.ImportAliases()
	w.visit(rootNode, "")

	attachMethods(&record)
	record.BuildCallGraph()
	return record, nil
}

// structWalker holds per-file state while walking a syntax tree.
type structWalker struct {
	spec    *languageSpec
	source  []byte
	record  *model.ModuleRecord
	root    string
	relPath string
	aliases map[string]model.ImportRecord
}

// collectModuleInfo records the package declaration and imports anywhere in the file.
func (w *structWalker) collectModuleInfo(rootNode *sitter.Node) {
	walkTree(rootNode, func(n *sitter.Node) bool {
		kind := n.Kind()
		if w.spec.packageKinds[kind] && w.record.Package == "" {
			target := n.ChildByFieldName("name")
			if target == nil {
				target = n.NamedChild(0)
			}
			w.record.Package = normalizeSeparators(extractNodeText(target, w.source))
		}
		if w.spec.importKinds[kind] && w.spec.imports != nil {
			for _, imp := range w.spec.imports(w, n) {
				w.addImport(imp)
			}
		}
		return true
	})
}

func (w *structWalker) addImport(imp model.ImportRecord) {
	if imp.Module == "" {
		return
	}
	w.record.Imports = append(w.record.Imports, imp)
	w.record.Dependencies = appendUnique(w.record.Dependencies, imp.Module)
}

func (w *structWalker) visit(node *sitter.Node, parent string) {
	kind := node.Kind()

	switch {
	case w.spec.functionKinds[kind]:
		w.addFunction(node, w.nameOf(node), parent)
		return

	case w.spec.classKinds[kind] != "":
		name := w.nameOf(node)
		if name == "" || (w.spec.requireClassBody && node.ChildByFieldName("body") == nil) {
			break
		}
		if parent != "" {
			name = parent + "." + name
		}
		w.addClass(node, name, w.spec.classKinds[kind])
		for _, child := range namedChildren(node) {
			w.visit(child, name)
		}
		return

	case w.spec.containerKinds[kind] != "":
		if name := typeBaseName(extractNodeText(node.ChildByFieldName(w.spec.containerKinds[kind]), w.source)); name != "" {
			for _, child := range namedChildren(node) {
				w.visit(child, name)
			}
			return
		}

	case w.spec.signatureKinds[kind] && parent != "":
		w.addSignature(parent, w.nameOf(node))
		return

	case w.spec.arrowFunctions && kind == "variable_declarator":
		if value := node.ChildByFieldName("value"); value != nil && isFunctionValue(value.Kind()) {
			w.addFunction(value, w.nameOf(node), parent)
			return
		}
	}

	for _, child := range namedChildren(node) {
		w.visit(child, parent)
	}
}

func (w *structWalker) addFunction(node *sitter.Node, name, parent string) {
	if name == "" {
		return
	}

	outer := node
	if node.Kind() == "arrow_function" || node.Kind() == "function_expression" || node.Kind() == "function" {
		// const f = () => {}: the declaration carries the name and the doc comment
		if p := node.Parent(); p != nil {
			if gp := p.Parent(); gp != nil {
				outer = gp
			}
		}
	}

	fn := model.FunctionRecord{
		Name:       name,
		Kind:       model.EntityFunction,
		Parent:     parent,
		Doc:        w.leadingComment(outer),
		Parameters: w.parameters(node),
		Decorators: w.decorators(node),
		LineRange:  nodeLineRange(outer),
		Calls:      []string{},
		Tags:       []string{},
		Code:       extractNodeText(outer, w.source),
	}
	if parent != "" {
		fn.Kind = model.EntityMethod
	}
	if w.spec.returnField != "" {
		if ret := compactText(node.ChildByFieldName(w.spec.returnField), w.source); ret != "" {
			fn.Returns = []string{strings.TrimSpace(strings.TrimPrefix(ret, ":"))}
		}
	}

	body := node.ChildByFieldName("body")
	fn.Signature = w.signature(node, body)
	fn.IsAsync = asyncPattern.MatchString(fn.Signature)
	fn.IsGenerator = strings.Contains(node.Kind(), "generator")

	if body == nil {
		body = node
	}
	w.collectCalls(body, &fn)
	w.record.Functions = append(w.record.Functions, fn)
}

var asyncPattern = regexp.MustCompile(`(^|\s)async\s`)

func (w *structWalker) addClass(node *sitter.Node, name string, kind model.EntityType) {
	class := model.ClassRecord{
		Name:        name,
		Kind:        kind,
		Doc:         w.leadingComment(node),
		Fields:      []string{},
		Methods:     []string{},
		Bases:       w.bases(node),
		LineRange:   nodeLineRange(node),
		IsInterface: kind == model.EntityInterface,
		Tags:        []string{},
		Code:        extractNodeText(node, w.source),
	}

	walkTree(node, func(n *sitter.Node) bool {
		if n == node {
			return true
		}
		kind := n.Kind()
		if w.spec.functionKinds[kind] || w.spec.classKinds[kind] != "" {
			return false
		}
		if w.spec.fieldKinds[kind] {
			if field := w.fieldName(n); field != "" {
				class.Fields = appendUnique(class.Fields, field)
			}
			return false
		}
		return true
	})

	w.record.Classes = append(w.record.Classes, class)
}

// addSignature records a bodiless interface or trait method on its owner.
func (w *structWalker) addSignature(owner, name string) {
	if name == "" {
		return
	}
	for i := range w.record.Classes {
		if w.record.Classes[i].Name == owner {
			w.record.Classes[i].Methods = appendUnique(w.record.Classes[i].Methods, name)
			return
		}
	}
}

// collectCalls records every node of a call kind inside body.
func (w *structWalker) collectCalls(body *sitter.Node, fn *model.FunctionRecord) {
	walkTree(body, func(n *sitter.Node) bool {
		kind := n.Kind()
		if w.spec.yieldKinds[kind] {
			fn.IsGenerator = true
		}
		shape, ok := w.spec.callKinds[kind]
		if !ok {
			return true
		}
		if w.spec.callFilter != nil && !w.spec.callFilter(w, n) {
			return true
		}

		target := w.callTarget(n, shape)
		if target == "" {
			return true
		}
		if strings.ContainsAny(target, "()[]{} \t\n\"'") {
			// chained or computed callee: keep the final member name
			if i := strings.LastIndex(target, "."); i >= 0 && i < len(target)-1 {
				tail := target[i+1:]
				if !strings.ContainsAny(tail, "()[]{} \t\n\"'") {
					addCall(fn, tail, nodeLine(n), model.CallMethod)
				}
			}
			return true
		}
		addCall(fn, target, nodeLine(n), w.classifyCall(target))
		return true
	})
}

func (w *structWalker) callTarget(n *sitter.Node, shape callShape) string {
	if shape.function != "" {
		return normalizeSeparators(compactText(n.ChildByFieldName(shape.function), w.source))
	}
	name := compactText(n.ChildByFieldName(shape.name), w.source)
	if name == "" {
		return ""
	}
	receiver := normalizeSeparators(compactText(n.ChildByFieldName(shape.receiver), w.source))
	if receiver == "" {
		return name
	}
	return receiver + "." + name
}

func (w *structWalker) classifyCall(target string) model.CallKind {
	base, _, qualified := strings.Cut(target, ".")
	if !qualified {
		return model.CallLocal
	}
	switch base {
	case "this", "self", "super", "parent", "static":
		return model.CallMethod
	}
	if _, ok := w.aliases[base]; ok {
		return model.CallQualified
	}
	return model.CallMethod
}

// nameOf returns a declaration's name, following C declarator chains.
func (w *structWalker) nameOf(node *sitter.Node) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return normalizeSeparators(extractNodeText(name, w.source))
	}
	if decl := node.ChildByFieldName("declarator"); decl != nil {
		return w.declaratorName(decl)
	}
	return ""
}

func (w *structWalker) declaratorName(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "identifier", "field_identifier", "type_identifier", "property_identifier", "variable_name":
		return extractNodeText(node, w.source)
	}
	for _, field := range []string{"declarator", "name"} {
		if child := node.ChildByFieldName(field); child != nil {
			return w.declaratorName(child)
		}
	}
	for _, child := range namedChildren(node) {
		if name := w.declaratorName(child); name != "" {
			return name
		}
	}
	return ""
}

func (w *structWalker) fieldName(node *sitter.Node) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return extractNodeText(name, w.source)
	}
	if decl := node.ChildByFieldName("declarator"); decl != nil {
		return w.declaratorName(decl)
	}
	return w.declaratorName(node)
}

func (w *structWalker) parameters(node *sitter.Node) []string {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		// C: the parameter list hangs off the function_declarator
		for decl := node.ChildByFieldName("declarator"); decl != nil; decl = decl.ChildByFieldName("declarator") {
			if decl.Kind() == "function_declarator" {
				params = decl.ChildByFieldName("parameters")
				break
			}
		}
	}

	out := []string{}
	for _, p := range namedChildren(params) {
		if w.spec.commentKinds[p.Kind()] {
			continue
		}
		out = append(out, compactText(p, w.source))
	}
	return out
}

func (w *structWalker) signature(node, body *sitter.Node) string {
	if body == nil {
		first, _, _ := strings.Cut(extractNodeText(node, w.source), "\n")
		return strings.Join(strings.Fields(first), " ")
	}
	text := string(w.source[node.StartByte():body.StartByte()])
	return strings.TrimRight(strings.Join(strings.Fields(text), " "), " {:=>")
}

func (w *structWalker) decorators(node *sitter.Node) []string {
	if len(w.spec.decoratorKinds) == 0 {
		return nil
	}
	var out []string
	walkTree(node, func(n *sitter.Node) bool {
		if n == node {
			return true
		}
		if w.spec.decoratorKinds[n.Kind()] {
			out = append(out, strings.TrimLeft(compactText(n, w.source), "@#"))
			return false
		}
		return n.Kind() == "modifiers"
	})
	for prev := node.PrevNamedSibling(); prev != nil && w.spec.decoratorKinds[prev.Kind()]; prev = prev.PrevNamedSibling() {
		out = append([]string{strings.TrimLeft(compactText(prev, w.source), "@#")}, out...)
	}
	return out
}

func (w *structWalker) bases(node *sitter.Node) []string {
	var out []string
	for _, child := range namedChildren(node) {
		if !w.spec.baseKinds[child.Kind()] {
			continue
		}
		walkTree(child, func(n *sitter.Node) bool {
			switch n.Kind() {
			case "type_arguments", "arguments":
				return false
			case "type_identifier", "identifier", "constant", "name", "scoped_type_identifier", "qualified_name", "scope_resolution":
				out = appendUnique(out, normalizeSeparators(extractNodeText(n, w.source)))
				return false
			}
			return true
		})
	}
	return out
}

// leadingComment joins the comment block directly above node.
func (w *structWalker) leadingComment(node *sitter.Node) string {
	if p := node.Parent(); p != nil && p.Kind() == "export_statement" {
		node = p
	}
	var lines []string
	line := int(node.StartPosition().Row)
	for prev := node.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		if w.spec.decoratorKinds[prev.Kind()] {
			line = int(prev.StartPosition().Row)
			continue
		}
		if !w.spec.commentKinds[prev.Kind()] || int(prev.EndPosition().Row) < line-1 {
			break
		}
		lines = append([]string{cleanComment(extractNodeText(prev, w.source))}, lines...)
		line = int(prev.StartPosition().Row)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// resolveRelative returns the first candidate that exists under root, as a
// project-relative slash path.
func (w *structWalker) resolveRelative(candidates ...string) string {
	for _, c := range candidates {
		c = path.Clean(c)
		if c == "." || strings.HasPrefix(c, "../") {
			continue
		}
		if fileExists(filepath.Join(w.root, filepath.FromSlash(c))) {
			return c
		}
	}
	return ""
}

func isFunctionValue(kind string) bool {
	switch kind {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	}
	return false
}

// normalizeSeparators rewrites ::, ->, and \ scope separators as dots.
func normalizeSeparators(s string) string {
	s = strings.NewReplacer("::", ".", "->", ".", `\`, ".", "?.", ".", "$", "").Replace(s)
	return strings.Trim(s, ".")
}

// typeBaseName strips references and generic arguments from a type expression.
func typeBaseName(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), "&*")
	s = strings.TrimPrefix(s, "mut ")
	if i := strings.IndexAny(s, "<["); i >= 0 {
		s = s[:i]
	}
	return normalizeSeparators(strings.TrimSpace(s))
}

// cleanComment strips comment markers from a comment node's text.
func cleanComment(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "/**")
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimSuffix(text, "*/")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "/#!*")
		out = append(out, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
