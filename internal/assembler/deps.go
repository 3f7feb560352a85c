package assembler

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/kpblcaoo/llmstruct/internal/identity"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// moduleIndex resolves imports to project module UIDs.
type moduleIndex struct {
	byUID  map[string]*model.ModuleRecord
	byPath map[string]string   // file path -> uid
	byDir  map[string][]string // directory -> uids, sorted
}

func newModuleIndex(modules []model.ModuleRecord) *moduleIndex {
	ix := &moduleIndex{
		byUID:  make(map[string]*model.ModuleRecord, len(modules)),
		byPath: make(map[string]string, len(modules)),
		byDir:  make(map[string][]string),
	}
	for i := range modules {
		m := &modules[i]
		ix.byUID[m.UID] = m
		ix.byPath[m.Path] = m.UID
		dir := path.Dir(m.Path)
		ix.byDir[dir] = append(ix.byDir[dir], m.UID)
	}
	for dir := range ix.byDir {
		sort.Strings(ix.byDir[dir])
	}
	return ix
}

// uidPrefix returns the "<lang>:" prefix of a UID, if any.
func uidPrefix(uid string) string {
	if i := strings.Index(uid, ":"); i >= 0 {
		return uid[:i+1]
	}
	return ""
}

// resolve maps an import to the project modules it refers to. names narrows
// directory imports (Go packages) to the files defining those names.
func (ix *moduleIndex) resolve(from *model.ModuleRecord, imp model.ImportRecord, names []string) []string {
	if imp.Target != "" {
		if uid, ok := ix.byPath[imp.Target]; ok {
			return []string{uid}
		}
		if uids := ix.byDir[imp.Target]; len(uids) > 0 {
			if narrowed := ix.defining(uids, names); len(narrowed) > 0 {
				return narrowed
			}
			return uids
		}
	}
	if _, ok := ix.byUID[uidPrefix(from.UID)+imp.Module]; ok {
		return []string{uidPrefix(from.UID) + imp.Module}
	}
	return nil
}

// defining returns the modules among uids with a top-level function or
// class named in names.
func (ix *moduleIndex) defining(uids, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var out []string
	for _, uid := range uids {
		m := ix.byUID[uid]
		found := false
		for _, fn := range m.Functions {
			if fn.Parent == "" && want[fn.Name] {
				found = true
				break
			}
		}
		for _, c := range m.Classes {
			if found {
				break
			}
			found = want[c.Name]
		}
		if found {
			out = append(out, uid)
		}
	}
	return out
}

// qualifiedMembers maps each import alias used in a qualified call to the
// member names called through it.
func qualifiedMembers(m *model.ModuleRecord) map[string][]string {
	members := make(map[string][]string)
	for _, fn := range m.Functions {
		for _, site := range fn.CallSites {
			if site.Kind != model.CallQualified {
				continue
			}
			base, rest, ok := strings.Cut(site.Target, ".")
			if !ok {
				continue
			}
			member, _, _ := strings.Cut(rest, ".")
			members[base] = appendUnique(members[base], member)
		}
	}
	return members
}

// moduleDependencies returns the sorted project modules m depends on:
// everything its imports and qualified-call prefixes resolve to inside the
// project. Standard library and third-party imports never resolve, so
// builtins are excluded.
func (ix *moduleIndex) moduleDependencies(m *model.ModuleRecord) []string {
	members := qualifiedMembers(m)
	seen := make(map[string]bool)
	deps := []string{}
	for _, imp := range m.Imports {
		names := append(append([]string{}, imp.Names...), members[imp.Alias]...)
		for _, uid := range ix.resolve(m, imp, names) {
			if uid == m.UID || seen[uid] {
				continue
			}
			seen[uid] = true
			deps = append(deps, uid)
		}
	}
	sort.Strings(deps)
	return deps
}

// calleeModule resolves the module a call target lives in. Qualified calls
// resolve through the import alias to a project module, or to the imported
// module as written when it is external. Local and method calls stay empty.
func (ix *moduleIndex) calleeModule(m *model.ModuleRecord, aliases map[string]model.ImportRecord, site model.CallSite) string {
	if site.Kind != model.CallQualified {
		return ""
	}
	base, rest, _ := strings.Cut(site.Target, ".")
	imp, ok := aliases[base]
	if !ok {
		return ""
	}
	member, _, _ := strings.Cut(rest, ".")
	if uids := ix.resolve(m, imp, []string{member}); len(uids) > 0 {
		return uids[0]
	}
	return imp.Module
}

// invertDependencies builds the module dependency graph and returns, for
// every module, the sorted modules depending on it, plus every import cycle
// (strongly connected component with more than one module).
func invertDependencies(uids []string, deps map[string][]string) (map[string][]string, [][]string, error) {
	g := graph.New(graph.StringHash, graph.Directed())
	for _, uid := range uids {
		if err := g.AddVertex(uid); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, nil, fmt.Errorf("failed to add module %s: %w", uid, err)
		}
	}
	for _, from := range uids {
		for _, to := range deps[from] {
			err := g.AddEdge(from, to)
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrVertexNotFound):
				// dependency on a module outside this run
			default:
				return nil, nil, fmt.Errorf("failed to add dependency %s -> %s: %w", from, to, err)
			}
		}
	}

	predecessors, err := g.PredecessorMap()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to invert dependencies: %w", err)
	}
	dependents := make(map[string][]string, len(uids))
	for _, uid := range uids {
		list := make([]string, 0, len(predecessors[uid]))
		for from := range predecessors[uid] {
			list = append(list, from)
		}
		sort.Strings(list)
		dependents[uid] = list
	}

	components, err := graph.StronglyConnectedComponents(g)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find dependency cycles: %w", err)
	}
	cycles := [][]string{}
	for _, c := range components {
		if len(c) < 2 {
			continue
		}
		sort.Strings(c)
		cycles = append(cycles, c)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })

	return dependents, cycles, nil
}

// collapseKey applies identity.ModuleKey below any language prefix.
func collapseKey(uid string) string {
	prefix := uidPrefix(uid)
	return prefix + identity.ModuleKey(strings.TrimPrefix(uid, prefix))
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
