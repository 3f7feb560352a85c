package analyzer

import (
	"path"
	"strings"
	"sync"

	"github.com/kpblcaoo/llmstruct/internal/model"
	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// callShape says where a call node keeps its callee. Either function names a
// field holding the whole callee expression, or receiver and name hold the
// two halves of a member call.
type callShape struct {
	function string
	receiver string
	name     string
}

// languageSpec is the node-kind table driving structuralAnalyzer.
type languageSpec struct {
	lang    model.Language
	grammar func(relPath string) *sitter.Language

	functionKinds  map[string]bool
	classKinds     map[string]model.EntityType
	containerKinds map[string]string // kind -> field naming the owner type (rust impl blocks)
	signatureKinds map[string]bool   // bodiless interface/trait members
	fieldKinds     map[string]bool
	baseKinds      map[string]bool
	callKinds      map[string]callShape
	importKinds    map[string]bool
	packageKinds   map[string]bool
	commentKinds   map[string]bool
	decoratorKinds map[string]bool
	yieldKinds     map[string]bool

	returnField      string
	arrowFunctions   bool
	requireClassBody bool

	callFilter func(w *structWalker, n *sitter.Node) bool
	imports    func(w *structWalker, n *sitter.Node) []model.ImportRecord
}

var (
	specsOnce sync.Once
	specs     map[model.Language]*languageSpec
)

func kindSet(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

func fixed(lang *sitter.Language) func(string) *sitter.Language {
	return func(string) *sitter.Language { return lang }
}

func languageSpecs() map[model.Language]*languageSpec {
	specsOnce.Do(func() {
		tsLang := sitter.NewLanguage(typescript.LanguageTypescript())
		tsxLang := sitter.NewLanguage(typescript.LanguageTSX())
		scriptGrammar := func(relPath string) *sitter.Language {
			switch path.Ext(relPath) {
			case ".tsx", ".jsx":
				return tsxLang
			}
			return tsLang
		}

		script := func(lang model.Language) *languageSpec {
			return &languageSpec{
				lang:          lang,
				grammar:       scriptGrammar,
				functionKinds: kindSet("function_declaration", "generator_function_declaration", "method_definition"),
				classKinds: map[string]model.EntityType{
					"class_declaration":          model.EntityClass,
					"abstract_class_declaration": model.EntityClass,
					"class":                      model.EntityClass,
					"interface_declaration":      model.EntityInterface,
				},
				signatureKinds: kindSet("method_signature", "abstract_method_signature"),
				fieldKinds:     kindSet("public_field_definition", "field_definition", "property_signature"),
				baseKinds:      kindSet("class_heritage", "extends_type_clause"),
				callKinds:      map[string]callShape{"call_expression": {function: "function"}},
				importKinds:    kindSet("import_statement"),
				commentKinds:   kindSet("comment"),
				decoratorKinds: kindSet("decorator"),
				yieldKinds:     kindSet("yield_expression"),
				returnField:    "return_type",
				arrowFunctions: true,
				imports:        scriptImports,
			}
		}

		cSpec := func(lang model.Language) *languageSpec {
			return &languageSpec{
				lang:             lang,
				grammar:          fixed(sitter.NewLanguage(c.Language())),
				functionKinds:    kindSet("function_definition"),
				classKinds:       map[string]model.EntityType{"struct_specifier": model.EntityStruct},
				fieldKinds:       kindSet("field_declaration"),
				callKinds:        map[string]callShape{"call_expression": {function: "function"}},
				importKinds:      kindSet("preproc_include"),
				commentKinds:     kindSet("comment"),
				returnField:      "type",
				requireClassBody: true,
				imports:          cIncludes,
			}
		}

		specs = map[model.Language]*languageSpec{
			model.LanguageTypeScript: script(model.LanguageTypeScript),
			model.LanguageJavaScript: script(model.LanguageJavaScript),
			model.LanguageC:          cSpec(model.LanguageC),
			model.LanguageCPP:        cSpec(model.LanguageCPP),

			model.LanguageRust: {
				lang:          model.LanguageRust,
				grammar:       fixed(sitter.NewLanguage(rust.Language())),
				functionKinds: kindSet("function_item"),
				classKinds: map[string]model.EntityType{
					"struct_item": model.EntityStruct,
					"enum_item":   model.EntityClass,
					"trait_item":  model.EntityInterface,
				},
				containerKinds: map[string]string{"impl_item": "type"},
				signatureKinds: kindSet("function_signature_item"),
				fieldKinds:     kindSet("field_declaration"),
				callKinds: map[string]callShape{
					"call_expression":  {function: "function"},
					"macro_invocation": {function: "macro"},
				},
				importKinds:    kindSet("use_declaration"),
				commentKinds:   kindSet("line_comment", "block_comment"),
				decoratorKinds: kindSet("attribute_item"),
				returnField:    "return_type",
				imports:        rustUses,
			},

			model.LanguageJava: {
				lang:          model.LanguageJava,
				grammar:       fixed(sitter.NewLanguage(java.Language())),
				functionKinds: kindSet("method_declaration", "constructor_declaration"),
				classKinds: map[string]model.EntityType{
					"class_declaration":     model.EntityClass,
					"enum_declaration":      model.EntityClass,
					"record_declaration":    model.EntityClass,
					"interface_declaration": model.EntityInterface,
				},
				fieldKinds: kindSet("field_declaration"),
				baseKinds:  kindSet("superclass", "super_interfaces", "extends_interfaces"),
				callKinds: map[string]callShape{
					"method_invocation": {receiver: "object", name: "name"},
				},
				importKinds:    kindSet("import_declaration"),
				packageKinds:   kindSet("package_declaration"),
				commentKinds:   kindSet("line_comment", "block_comment"),
				decoratorKinds: kindSet("marker_annotation", "annotation"),
				returnField:    "type",
				imports:        javaImports,
			},

			model.LanguagePHP: {
				lang:          model.LanguagePHP,
				grammar:       fixed(sitter.NewLanguage(php.LanguagePHP())),
				functionKinds: kindSet("function_definition", "method_declaration"),
				classKinds: map[string]model.EntityType{
					"class_declaration":     model.EntityClass,
					"trait_declaration":     model.EntityClass,
					"interface_declaration": model.EntityInterface,
				},
				fieldKinds: kindSet("property_element"),
				baseKinds:  kindSet("base_clause", "class_interface_clause"),
				callKinds: map[string]callShape{
					"function_call_expression": {function: "function"},
					"member_call_expression":   {receiver: "object", name: "name"},
					"scoped_call_expression":   {receiver: "scope", name: "name"},
				},
				importKinds:    kindSet("namespace_use_declaration"),
				packageKinds:   kindSet("namespace_definition"),
				commentKinds:   kindSet("comment"),
				decoratorKinds: kindSet("attribute_list"),
				yieldKinds:     kindSet("yield_expression"),
				returnField:    "return_type",
				imports:        phpUses,
			},

			model.LanguageRuby: {
				lang:          model.LanguageRuby,
				grammar:       fixed(sitter.NewLanguage(ruby.Language())),
				functionKinds: kindSet("method", "singleton_method"),
				classKinds: map[string]model.EntityType{
					"class":  model.EntityClass,
					"module": model.EntityClass,
				},
				baseKinds:    kindSet("superclass"),
				callKinds:    map[string]callShape{"call": {receiver: "receiver", name: "method"}},
				importKinds:  kindSet("call"),
				commentKinds: kindSet("comment"),
				yieldKinds:   kindSet("yield"),
				callFilter: func(w *structWalker, n *sitter.Node) bool {
					return !isRubyRequire(w, n)
				},
				imports: rubyRequires,
			},
		}
	})
	return specs
}

// scriptImports handles ES module imports:
// import x from "m", import * as x from "m", import { a, b as c } from "m".
func scriptImports(w *structWalker, n *sitter.Node) []model.ImportRecord {
	module := trimQuotes(extractNodeText(n.ChildByFieldName("source"), w.source))
	if module == "" {
		return nil
	}
	imp := model.ImportRecord{Module: module, Line: nodeLine(n)}
	if strings.HasPrefix(module, ".") {
		base := path.Join(path.Dir(w.relPath), module)
		candidates := []string{base}
		for _, ext := range []string{".ts", ".tsx", ".js", ".jsx", ".mjs"} {
			candidates = append(candidates, base+ext, base+"/index"+ext)
		}
		imp.Target = w.resolveRelative(candidates...)
	}

	walkTree(n, func(child *sitter.Node) bool {
		switch child.Kind() {
		case "import_clause":
			for _, part := range namedChildren(child) {
				if part.Kind() == "identifier" {
					imp.Alias = extractNodeText(part, w.source)
				}
			}
			return true
		case "namespace_import":
			for _, part := range namedChildren(child) {
				if part.Kind() == "identifier" {
					imp.Alias = extractNodeText(part, w.source)
				}
			}
			return false
		case "import_specifier":
			name := child.ChildByFieldName("alias")
			if name == nil {
				name = child.ChildByFieldName("name")
			}
			imp.Names = append(imp.Names, extractNodeText(name, w.source))
			return false
		}
		return true
	})
	return []model.ImportRecord{imp}
}

// cIncludes handles #include "local.h" and #include <system.h>.
func cIncludes(w *structWalker, n *sitter.Node) []model.ImportRecord {
	pathNode := n.ChildByFieldName("path")
	if pathNode == nil {
		return nil
	}
	raw := extractNodeText(pathNode, w.source)
	module := strings.Trim(raw, `"<>`)
	imp := model.ImportRecord{Module: module, Line: nodeLine(n)}
	if pathNode.Kind() == "string_literal" {
		imp.Target = w.resolveRelative(path.Join(path.Dir(w.relPath), module), module, "include/"+module)
	}
	return []model.ImportRecord{imp}
}

// rustUses handles use declarations. crate:: paths are resolved against src/.
func rustUses(w *structWalker, n *sitter.Node) []model.ImportRecord {
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return nil
	}
	text := compactText(arg, w.source)
	alias := ""
	if before, after, ok := strings.Cut(text, " as "); ok {
		text, alias = before, strings.TrimSpace(after)
	}
	text = strings.TrimSuffix(text, "::*")
	if i := strings.Index(text, "::{"); i >= 0 {
		text = text[:i]
	}

	segments := strings.Split(text, "::")
	if alias == "" {
		alias = segments[len(segments)-1]
	}
	imp := model.ImportRecord{Module: text, Alias: alias, Line: nodeLine(n)}

	if segments[0] == "crate" && len(segments) > 1 {
		rest := segments[1:]
		for i := len(rest); i > 0; i-- {
			rel := strings.Join(rest[:i], "/")
			if target := w.resolveRelative("src/"+rel+".rs", "src/"+rel+"/mod.rs"); target != "" {
				imp.Target = target
				break
			}
		}
	}
	return []model.ImportRecord{imp}
}

// javaImports handles import a.b.C; and static imports.
func javaImports(w *structWalker, n *sitter.Node) []model.ImportRecord {
	text := compactText(n, w.source)
	text = strings.TrimSuffix(strings.TrimPrefix(text, "import "), ";")
	text = strings.TrimSpace(strings.TrimPrefix(text, "static "))
	module := strings.TrimSuffix(text, ".*")

	parts := strings.Split(module, ".")
	imp := model.ImportRecord{Module: module, Alias: parts[len(parts)-1], Line: nodeLine(n)}
	rel := strings.ReplaceAll(module, ".", "/")
	imp.Target = w.resolveRelative("src/main/java/"+rel+".java", "src/"+rel+".java", rel+".java")
	return []model.ImportRecord{imp}
}

// phpUses handles use A\B\C; and use A\B\C as D;.
func phpUses(w *structWalker, n *sitter.Node) []model.ImportRecord {
	var out []model.ImportRecord
	for _, clause := range namedChildren(n) {
		if clause.Kind() != "namespace_use_clause" {
			continue
		}
		text := compactText(clause, w.source)
		alias := ""
		if before, after, ok := strings.Cut(text, " as "); ok {
			text, alias = before, strings.TrimSpace(after)
		}
		module := normalizeSeparators(text)
		parts := strings.Split(module, ".")
		if alias == "" {
			alias = parts[len(parts)-1]
		}

		imp := model.ImportRecord{Module: module, Alias: alias, Line: nodeLine(clause)}
		rel := strings.Join(parts, "/")
		candidates := []string{rel + ".php", "src/" + rel + ".php"}
		if len(parts) > 1 {
			// PSR-4: the vendor namespace maps onto src/
			candidates = append(candidates, "src/"+strings.Join(parts[1:], "/")+".php")
		}
		imp.Target = w.resolveRelative(candidates...)
		out = append(out, imp)
	}
	return out
}

func isRubyRequire(w *structWalker, n *sitter.Node) bool {
	if n.ChildByFieldName("receiver") != nil {
		return false
	}
	switch extractNodeText(n.ChildByFieldName("method"), w.source) {
	case "require", "require_relative", "load":
		return true
	}
	return false
}

// rubyRequires handles require "x" and require_relative "x".
func rubyRequires(w *structWalker, n *sitter.Node) []model.ImportRecord {
	if !isRubyRequire(w, n) {
		return nil
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	arg := args.NamedChild(0)
	if arg.Kind() != "string" {
		return nil
	}
	module := trimQuotes(extractNodeText(arg, w.source))

	imp := model.ImportRecord{Module: module, Line: nodeLine(n)}
	if extractNodeText(n.ChildByFieldName("method"), w.source) == "require_relative" {
		imp.Target = w.resolveRelative(path.Join(path.Dir(w.relPath), strings.TrimSuffix(module, ".rb")+".rb"))
	} else {
		imp.Target = w.resolveRelative("lib/"+module+".rb", module+".rb")
	}
	return []model.ImportRecord{imp}
}
