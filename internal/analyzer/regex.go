package analyzer

import (
	"context"
	"regexp"
	"strings"

	"github.com/kpblcaoo/llmstruct/internal/model"
)

// regexAnalyzer is the reduced-fidelity, line-oriented extractor used when
// the primary analyzer for a language fails. Every record it returns is
// marked as fallback.
type regexAnalyzer struct {
	lang    model.Language
	scan    func(s *lineScan, line string, n int)
	resolve func(root string, record *model.ModuleRecord)
}

// NewGoFallbackAnalyzer returns the regex analyzer for Go.
func NewGoFallbackAnalyzer() Analyzer {
	resolver := newGoModuleResolver()
	return &regexAnalyzer{lang: model.LanguageGo, scan: scanGoLine, resolve: resolver.ResolveImports}
}

// NewPythonFallbackAnalyzer returns the regex analyzer for Python.
func NewPythonFallbackAnalyzer() Analyzer {
	return &regexAnalyzer{lang: model.LanguagePython, scan: scanPythonLine}
}

// NewGenericFallbackAnalyzer returns a regex analyzer that recognizes common
// function, class and import forms across C-like and scripting languages.
func NewGenericFallbackAnalyzer(lang model.Language) Analyzer {
	return &regexAnalyzer{lang: lang, scan: scanGenericLine}
}

func (a *regexAnalyzer) Language() model.Language { return a.lang }

func (a *regexAnalyzer) Analyze(ctx context.Context, root, relPath string) (model.ModuleRecord, error) {
	source, err := readSource(root, relPath)
	if err != nil {
		return model.ModuleRecord{}, err
	}

	record := newRecord(relPath, a.lang, source)
	s := &lineScan{record: &record, lines: strings.Split(string(source), "\n")}
	inBlockImport := false
	for i, line := range s.lines {
		if a.lang == model.LanguageGo {
			// import ( ... ) blocks span lines
			trimmed := strings.TrimSpace(line)
			switch {
			case inBlockImport && trimmed == ")":
				inBlockImport = false
				continue
			case inBlockImport:
				if m := goImportSpec.FindStringSubmatch(trimmed); m != nil {
					s.addGoImport(m[1], m[2], i+1)
				}
				continue
			case goImportBlock.MatchString(trimmed):
				inBlockImport = true
				continue
			}
		}
		a.scan(s, line, i+1)
	}

	if a.resolve != nil {
		a.resolve(root, &record)
	}
	s.finish()
	attachMethods(&record)
	record.BuildCallGraph()
	MarkFallback(&record)
	return record, nil
}

// lineScan accumulates entities while scanning lines.
type lineScan struct {
	record     *model.ModuleRecord
	lines      []string
	scopes     []scope
	entities   []scannedEntity
	decorators []string
}

// scope is an open class or function, closed by a later declaration at the
// same or lower indentation.
type scope struct {
	indent  int
	name    string
	isClass bool
}

type scannedEntity struct {
	start, indent int
	class         int // index into record.Classes, or -1
	function      int // index into record.Functions, or -1
}

var (
	goPackage     = regexp.MustCompile(`^package\s+(\w+)`)
	goImportLine  = regexp.MustCompile(`^import\s+(\w+|_|\.)?\s*"([^"]+)"`)
	goImportBlock = regexp.MustCompile(`^import\s*\($`)
	goImportSpec  = regexp.MustCompile(`^(\w+|_|\.)?\s*"([^"]+)"`)
	goFunc        = regexp.MustCompile(`^func\s*(?:\(\s*(?:\w+\s+)?\*?\s*(\w+)(?:\[[^\]]*\])?\s*\))?\s*(\w+)\s*(?:\[[^\]]*\])?\(`)
	goType        = regexp.MustCompile(`^type\s+(\w+)(?:\[[^\]]*\])?\s+(struct|interface)\b`)

	pyDef        = regexp.MustCompile(`^(\s*)(async\s+)?def\s+(\w+)\s*\(`)
	pyClass      = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*(?:\(([^)]*)\))?\s*:`)
	pyImport     = regexp.MustCompile(`^\s*import\s+(.+)$`)
	pyFromImport = regexp.MustCompile(`^\s*from\s+(\S+)\s+import\s+(.+)$`)
	pyDecorator  = regexp.MustCompile(`^\s*@(\S+)`)

	genericFunctions = []*regexp.Regexp{
		regexp.MustCompile(`^(\s*)(?:export\s+)?(?:default\s+)?(?:async\s+)?function\*?\s+(\w+)`),
		regexp.MustCompile(`^(\s*)(?:pub(?:\([^)]*\))?\s+)?(?:const\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+(\w+)`),
		regexp.MustCompile(`^(\s*)def\s+(?:self\.)?(\w+[?!]?)`),
		regexp.MustCompile(`^(\s*)(?:(?:public|private|protected|static|final|abstract)\s+)*function\s+(\w+)`),
		regexp.MustCompile(`^(\s*)(?:[\w<>\[\],*&:]+\s+)+\**(\w+)\s*\([^;]*$`),
	}
	genericClass   = regexp.MustCompile(`^(\s*)(?:export\s+)?(?:default\s+)?(?:(?:public|private|protected|abstract|final|static|pub(?:\([^)]*\))?)\s+)*(class|interface|struct|trait|enum|module)\s+(\w+)`)
	genericImports = []*regexp.Regexp{
		regexp.MustCompile(`^\s*import\s+.*?from\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+?)(?:\.\*)?\s*;`),
		regexp.MustCompile(`^\s*#\s*include\s*[<"]([^>"]+)[>"]`),
		regexp.MustCompile(`^\s*use\s+([\w:\\]+)`),
		regexp.MustCompile(`^\s*require(?:_relative)?\s*\(?\s*['"]([^'"]+)['"]`),
	}

	qualifiedCall = regexp.MustCompile(`\b([A-Za-z_]\w*)\.([A-Za-z_]\w*)\s*\(`)
)

// controlWords are never function names in the generic C-like pattern.
var controlWords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"catch": true, "new": true, "else": true, "sizeof": true, "do": true,
}

func scanGoLine(s *lineScan, line string, n int) {
	if s.record.Package == "" {
		if m := goPackage.FindStringSubmatch(line); m != nil {
			s.record.Package = m[1]
			return
		}
	}
	if m := goImportLine.FindStringSubmatch(line); m != nil {
		s.addGoImport(m[1], m[2], n)
		return
	}
	if m := goFunc.FindStringSubmatch(line); m != nil {
		fn := s.newFunction(m[2], line, n)
		if m[1] != "" {
			fn.Kind = model.EntityMethod
			fn.Parent = m[1]
		}
		s.addFunction(fn, 0)
		return
	}
	if m := goType.FindStringSubmatch(line); m != nil {
		kind := model.EntityStruct
		if m[2] == "interface" {
			kind = model.EntityInterface
		}
		s.addClass(m[1], kind, nil, n, 0)
	}
}

func (s *lineScan) addGoImport(alias, importPath string, line int) {
	if alias == "" {
		alias = goPathAlias(importPath)
	}
	s.record.Imports = append(s.record.Imports, model.ImportRecord{Module: importPath, Alias: alias, Line: line})
	s.record.Dependencies = appendUnique(s.record.Dependencies, importPath)
}

func scanPythonLine(s *lineScan, line string, n int) {
	if m := pyDecorator.FindStringSubmatch(line); m != nil {
		s.decorators = append(s.decorators, m[1])
		return
	}
	if m := pyDef.FindStringSubmatch(line); m != nil {
		indent := len(m[1])
		fn := s.newFunction(m[3], line, n)
		fn.IsAsync = m[2] != ""
		fn.Decorators = s.decorators
		s.decorators = nil
		if parent, isClass := s.enclosing(indent); parent != "" {
			fn.Parent = parent
			if isClass {
				fn.Kind = model.EntityMethod
			}
		}
		s.addFunction(fn, indent)
		return
	}
	if m := pyClass.FindStringSubmatch(line); m != nil {
		s.decorators = nil
		indent := len(m[1])
		name := m[2]
		if parent, _ := s.enclosing(indent); parent != "" {
			name = parent + "." + name
		}
		var bases []string
		for _, b := range strings.Split(m[3], ",") {
			if b = strings.TrimSpace(b); b != "" && !strings.Contains(b, "=") {
				bases = append(bases, b)
			}
		}
		s.addClass(name, model.EntityClass, bases, n, indent)
		return
	}
	if m := pyFromImport.FindStringSubmatch(line); m != nil {
		imp := model.ImportRecord{Module: m[1], Line: n}
		for _, name := range strings.Split(strings.Trim(m[2], "() "), ",") {
			name = strings.TrimSpace(name)
			if _, alias, ok := strings.Cut(name, " as "); ok {
				name = strings.TrimSpace(alias)
			}
			if name != "" {
				imp.Names = append(imp.Names, name)
			}
		}
		s.addImport(imp)
		return
	}
	if m := pyImport.FindStringSubmatch(line); m != nil {
		for _, part := range strings.Split(m[1], ",") {
			module, alias, ok := strings.Cut(strings.TrimSpace(part), " as ")
			module = strings.TrimSpace(module)
			if !ok {
				alias, _, _ = strings.Cut(module, ".")
			}
			s.addImport(model.ImportRecord{Module: module, Alias: strings.TrimSpace(alias), Line: n})
		}
	}
}

func scanGenericLine(s *lineScan, line string, n int) {
	for _, re := range genericImports {
		if m := re.FindStringSubmatch(line); m != nil {
			module := normalizeSeparators(m[1])
			if strings.ContainsAny(m[1], `/"'<`) || strings.HasSuffix(m[1], ".h") {
				module = m[1]
			}
			parts := strings.FieldsFunc(module, func(r rune) bool { return r == '.' || r == '/' })
			alias := ""
			if len(parts) > 0 {
				alias = parts[len(parts)-1]
			}
			s.addImport(model.ImportRecord{Module: module, Alias: alias, Line: n})
			return
		}
	}
	if m := genericClass.FindStringSubmatch(line); m != nil {
		indent := len(m[1])
		kind := model.EntityClass
		switch m[2] {
		case "interface", "trait":
			kind = model.EntityInterface
		case "struct":
			kind = model.EntityStruct
		}
		s.addClass(m[3], kind, nil, n, indent)
		return
	}
	for _, re := range genericFunctions {
		m := re.FindStringSubmatch(line)
		if m == nil || controlWords[m[2]] {
			continue
		}
		indent := len(m[1])
		fn := s.newFunction(m[2], line, n)
		fn.IsAsync = asyncPattern.MatchString(line)
		if parent, isClass := s.enclosing(indent); isClass {
			fn.Parent = parent
			fn.Kind = model.EntityMethod
		}
		s.addFunction(fn, indent)
		return
	}
}

func (s *lineScan) addImport(imp model.ImportRecord) {
	if imp.Module == "" {
		return
	}
	s.record.Imports = append(s.record.Imports, imp)
	s.record.Dependencies = appendUnique(s.record.Dependencies, imp.Module)
}

// enclosing pops scopes at indent or deeper and returns the innermost
// remaining one.
func (s *lineScan) enclosing(indent int) (string, bool) {
	for len(s.scopes) > 0 && s.scopes[len(s.scopes)-1].indent >= indent {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
	if len(s.scopes) == 0 {
		return "", false
	}
	top := s.scopes[len(s.scopes)-1]
	return top.name, top.isClass
}

func (s *lineScan) newFunction(name, line string, n int) model.FunctionRecord {
	sig := strings.TrimSpace(line)
	sig = strings.TrimRight(sig, " {:")
	return model.FunctionRecord{
		Name:       name,
		Kind:       model.EntityFunction,
		Signature:  sig,
		Parameters: []string{},
		LineRange:  &model.LineRange{Start: n, End: n},
		Calls:      []string{},
		Tags:       []string{},
	}
}

func (s *lineScan) addFunction(fn model.FunctionRecord, indent int) {
	s.enclosing(indent)
	s.scopes = append(s.scopes, scope{indent: indent, name: fn.QualifiedName()})
	s.entities = append(s.entities, scannedEntity{start: fn.LineRange.Start, indent: indent, class: -1, function: len(s.record.Functions)})
	s.record.Functions = append(s.record.Functions, fn)
}

func (s *lineScan) addClass(name string, kind model.EntityType, bases []string, n, indent int) {
	s.enclosing(indent)
	s.scopes = append(s.scopes, scope{indent: indent, name: name, isClass: true})
	s.entities = append(s.entities, scannedEntity{start: n, indent: indent, class: len(s.record.Classes), function: -1})
	s.record.Classes = append(s.record.Classes, model.ClassRecord{
		Name:        name,
		Kind:        kind,
		Fields:      []string{},
		Methods:     []string{},
		Bases:       bases,
		LineRange:   &model.LineRange{Start: n, End: n},
		IsInterface: kind == model.EntityInterface,
		Tags:        []string{},
	})
}

// finish closes every entity at the line before the next entity at the same
// or lower indentation, then fills code and qualified calls.
func (s *lineScan) finish() {
	last := len(s.lines)
	for last > 0 && strings.TrimSpace(s.lines[last-1]) == "" {
		last--
	}

	aliases := s.record.ImportAliases()
	for i, e := range s.entities {
		end := last
		for _, next := range s.entities[i+1:] {
			if next.indent <= e.indent {
				end = next.start - 1
				break
			}
		}
		for end > e.start && strings.TrimSpace(s.lines[end-1]) == "" {
			end--
		}
		code := strings.Join(s.lines[e.start-1:end], "\n")

		if e.class >= 0 {
			class := &s.record.Classes[e.class]
			class.LineRange.End = end
			class.Code = code
			continue
		}

		fn := &s.record.Functions[e.function]
		fn.LineRange.End = end
		fn.Code = code
		for n := e.start; n <= end; n++ {
			for _, m := range qualifiedCall.FindAllStringSubmatch(s.lines[n-1], -1) {
				if _, ok := aliases[m[1]]; ok {
					addCall(fn, m[1]+"."+m[2], n, model.CallQualified)
				}
			}
		}
	}
}
