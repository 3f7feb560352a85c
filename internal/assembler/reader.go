package assembler

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Reader gives read-only, O(1) access to a generated modular directory.
type Reader struct {
	dir       string
	index     Index
	callGraph CallGraph

	byUID    map[string]int
	byCaller map[string][]int // caller uid -> call edges
	byCallee map[string][]int // callee name -> call edges
	byModule map[string][]int // caller module -> call edges
}

// OpenReader loads index.json and callgraph.json from dir.
func OpenReader(dir string) (*Reader, error) {
	r := &Reader{
		dir:      dir,
		byUID:    make(map[string]int),
		byCaller: make(map[string][]int),
		byCallee: make(map[string][]int),
		byModule: make(map[string][]int),
	}
	if err := readJSON(filepath.Join(dir, IndexFile), &r.index); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, CallGraphFile), &r.callGraph); err != nil {
		return nil, err
	}

	for i, entry := range r.index.Modules {
		r.byUID[entry.UID] = i
	}
	for i, edge := range r.callGraph.Calls {
		r.byCaller[edge.CallerUID] = append(r.byCaller[edge.CallerUID], i)
		r.byCallee[edge.CalleeName] = append(r.byCallee[edge.CalleeName], i)
		r.byModule[edge.CallerModule] = append(r.byModule[edge.CallerModule], i)
	}
	return r, nil
}

// Dir returns the directory the reader was opened on.
func (r *Reader) Dir() string { return r.dir }

// Index returns the loaded index.
func (r *Reader) Index() *Index { return &r.index }

// Statistics returns the call graph statistics.
func (r *Reader) Statistics() CallStatistics { return r.callGraph.Statistics }

// Module returns the index entry for uid.
func (r *Reader) Module(uid string) (IndexEntry, bool) {
	i, ok := r.byUID[uid]
	if !ok {
		return IndexEntry{}, false
	}
	return r.index.Modules[i], true
}

// LoadModule reads the full module file for uid.
func (r *Reader) LoadModule(uid string) (*ModuleFile, error) {
	entry, ok := r.Module(uid)
	if !ok {
		return nil, fmt.Errorf("module %q not found in index", uid)
	}
	var mf ModuleFile
	if err := readJSON(filepath.Join(r.dir, filepath.FromSlash(entry.ModulePath)), &mf); err != nil {
		return nil, err
	}
	return &mf, nil
}

// Callees returns the calls made by the function with callerUID.
func (r *Reader) Callees(callerUID string) []CallEdge {
	return r.edges(r.byCaller[callerUID])
}

// Callers returns the calls whose callee is named calleeName.
func (r *Reader) Callers(calleeName string) []CallEdge {
	return r.edges(r.byCallee[calleeName])
}

// ModuleCalls returns every call made from inside module uid.
func (r *Reader) ModuleCalls(uid string) []CallEdge {
	return r.edges(r.byModule[uid])
}

// CallersOfModule returns calls from other modules resolved into uid.
func (r *Reader) CallersOfModule(uid string) []CallEdge {
	var out []CallEdge
	for _, edge := range r.callGraph.Calls {
		if edge.CalleeModule == uid && edge.CallerModule != uid {
			out = append(out, edge)
		}
	}
	return out
}

// UIDs returns every indexed module UID, sorted.
func (r *Reader) UIDs() []string {
	uids := make([]string, 0, len(r.byUID))
	for uid := range r.byUID {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

func (r *Reader) edges(idx []int) []CallEdge {
	out := make([]CallEdge, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.callGraph.Calls[i])
	}
	return out
}
