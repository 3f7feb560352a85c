// Command goast prints the module record of one Go file as JSON. It is
// written into a scratch directory and run with `go run`, so it must only
// import the standard library.
package main

import (
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"strings"
)

type lineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type callSite struct {
	Target string `json:"target"`
	Line   int    `json:"line"`
	Kind   string `json:"kind"`
}

type importRecord struct {
	Module string `json:"module"`
	Alias  string `json:"alias,omitempty"`
	Line   int    `json:"line"`
}

type function struct {
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	Signature  string     `json:"signature"`
	Doc        string     `json:"doc,omitempty"`
	Parameters []string   `json:"parameters"`
	Returns    []string   `json:"returns,omitempty"`
	Receiver   string     `json:"receiver,omitempty"`
	Parent     string     `json:"parent,omitempty"`
	LineRange  *lineRange `json:"line_range,omitempty"`
	Calls      []string   `json:"calls"`
	CallSites  []callSite `json:"call_sites,omitempty"`
}

type class struct {
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Doc         string     `json:"doc,omitempty"`
	Fields      []string   `json:"fields"`
	Methods     []string   `json:"methods"`
	Bases       []string   `json:"bases,omitempty"`
	LineRange   *lineRange `json:"line_range,omitempty"`
	IsInterface bool       `json:"is_interface"`
}

type module struct {
	Package   string         `json:"package,omitempty"`
	Doc       string         `json:"doc,omitempty"`
	Imports   []importRecord `json:"imports,omitempty"`
	Functions []function     `json:"functions"`
	Classes   []class        `json:"classes"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: goast <file.go>")
		os.Exit(2)
	}

	src, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, os.Args[1], src, parser.ParseComments)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out := module{
		Package:   file.Name.Name,
		Functions: []function{},
		Classes:   []class{},
	}
	if file.Doc != nil {
		out.Doc = strings.TrimSpace(file.Doc.Text())
	}

	aliases := map[string]bool{}
	for _, imp := range file.Imports {
		p := strings.Trim(imp.Path.Value, `"`)
		alias := defaultAlias(p)
		if imp.Name != nil {
			alias = imp.Name.Name
		}
		aliases[alias] = true
		out.Imports = append(out.Imports, importRecord{Module: p, Alias: alias, Line: fset.Position(imp.Pos()).Line})
	}

	span := func(n ast.Node) *lineRange {
		return &lineRange{Start: fset.Position(n.Pos()).Line, End: fset.Position(n.End()).Line}
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts := spec.(*ast.TypeSpec)
				c := class{Name: ts.Name.Name, Fields: []string{}, Methods: []string{}, LineRange: span(ts)}
				if doc := ts.Doc; doc != nil {
					c.Doc = strings.TrimSpace(doc.Text())
				} else if d.Doc != nil {
					c.Doc = strings.TrimSpace(d.Doc.Text())
				}
				switch t := ts.Type.(type) {
				case *ast.StructType:
					c.Kind = "struct"
					for _, f := range t.Fields.List {
						typ := types.ExprString(f.Type)
						if len(f.Names) == 0 {
							c.Fields = append(c.Fields, typ)
							c.Bases = append(c.Bases, strings.TrimPrefix(typ, "*"))
						}
						for _, n := range f.Names {
							c.Fields = append(c.Fields, n.Name+" "+typ)
						}
					}
				case *ast.InterfaceType:
					c.Kind = "interface"
					c.IsInterface = true
					for _, m := range t.Methods.List {
						if len(m.Names) == 0 {
							c.Bases = append(c.Bases, types.ExprString(m.Type))
						}
						for _, n := range m.Names {
							c.Methods = append(c.Methods, n.Name)
						}
					}
				default:
					continue
				}
				out.Classes = append(out.Classes, c)
			}

		case *ast.FuncDecl:
			fn := function{
				Name:       d.Name.Name,
				Kind:       "function",
				Parameters: fields(d.Type.Params),
				LineRange:  span(d),
				Calls:      []string{},
			}
			if d.Doc != nil {
				fn.Doc = strings.TrimSpace(d.Doc.Text())
			}
			if d.Type.Results != nil {
				for _, r := range d.Type.Results.List {
					n := len(r.Names)
					if n == 0 {
						n = 1
					}
					for i := 0; i < n; i++ {
						fn.Returns = append(fn.Returns, types.ExprString(r.Type))
					}
				}
			}

			locals := map[string]bool{}
			if d.Recv != nil && len(d.Recv.List) > 0 {
				recv := d.Recv.List[0]
				fn.Kind = "method"
				fn.Receiver = types.ExprString(recv.Type)
				fn.Parent = receiverType(recv.Type)
				for _, n := range recv.Names {
					locals[n.Name] = true
				}
			}
			for _, list := range []*ast.FieldList{d.Type.Params, d.Type.Results} {
				if list == nil {
					continue
				}
				for _, f := range list.List {
					for _, n := range f.Names {
						locals[n.Name] = true
					}
				}
			}

			sigEnd := d.End()
			if d.Body != nil {
				sigEnd = d.Body.Lbrace
			}
			if from, to := fset.Position(d.Pos()).Offset, fset.Position(sigEnd).Offset; to <= len(src) && from <= to {
				fn.Signature = strings.TrimSpace(string(src[from:to]))
			}

			if d.Body != nil {
				collectCalls(fset, d.Body, &fn, aliases, locals)
			}
			out.Functions = append(out.Functions, fn)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func collectCalls(fset *token.FileSet, body *ast.BlockStmt, fn *function, aliases, locals map[string]bool) {
	seen := map[string]bool{}
	add := func(target string, pos token.Pos, kind string) {
		fn.CallSites = append(fn.CallSites, callSite{Target: target, Line: fset.Position(pos).Line, Kind: kind})
		if !seen[target] {
			seen[target] = true
			fn.Calls = append(fn.Calls, target)
		}
	}

	ast.Inspect(body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.AssignStmt:
			if node.Tok == token.DEFINE {
				for _, lhs := range node.Lhs {
					if id, ok := lhs.(*ast.Ident); ok {
						locals[id.Name] = true
					}
				}
			}
		case *ast.ValueSpec:
			for _, id := range node.Names {
				locals[id.Name] = true
			}
		case *ast.CallExpr:
			switch f := node.Fun.(type) {
			case *ast.Ident:
				if !builtin(f.Name) {
					add(f.Name, node.Pos(), "local")
				}
			case *ast.SelectorExpr:
				chain := selector(f)
				if chain == "" {
					add(f.Sel.Name, node.Pos(), "method")
					return true
				}
				base := strings.SplitN(chain, ".", 2)[0]
				if aliases[base] && !locals[base] {
					add(chain, node.Pos(), "qualified")
				} else {
					add(chain, node.Pos(), "method")
				}
			}
		}
		return true
	})
}

func selector(expr *ast.SelectorExpr) string {
	switch x := expr.X.(type) {
	case *ast.Ident:
		return x.Name + "." + expr.Sel.Name
	case *ast.SelectorExpr:
		if inner := selector(x); inner != "" {
			return inner + "." + expr.Sel.Name
		}
	}
	return ""
}

func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	}
	return "unknown"
}

func fields(list *ast.FieldList) []string {
	out := []string{}
	if list == nil {
		return out
	}
	for _, f := range list.List {
		typ := types.ExprString(f.Type)
		if len(f.Names) == 0 {
			out = append(out, typ)
		}
		for _, n := range f.Names {
			out = append(out, n.Name+" "+typ)
		}
	}
	return out
}

func defaultAlias(importPath string) string {
	parts := strings.Split(importPath, "/")
	last := parts[len(parts)-1]
	if len(parts) > 1 && len(last) > 1 && last[0] == 'v' && strings.Trim(last[1:], "0123456789") == "" {
		last = parts[len(parts)-2]
	}
	if i := strings.Index(last, ".v"); i > 0 {
		last = last[:i]
	}
	return strings.ReplaceAll(last, "-", "_")
}

func builtin(name string) bool {
	switch name {
	case "append", "cap", "clear", "close", "complex", "copy", "delete", "imag",
		"len", "make", "max", "min", "new", "panic", "print", "println", "real", "recover":
		return true
	}
	return false
}
