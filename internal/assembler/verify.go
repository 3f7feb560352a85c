package assembler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// VerifyConsistency checks that index.json, modules/ and callgraph.json in
// dir agree with each other: every index entry has its module file, every
// module file has an index entry, and every caller module in the call graph
// is indexed. Any disagreement is a *SchemaInconsistencyError.
func VerifyConsistency(dir string) error {
	var index Index
	if err := readJSON(filepath.Join(dir, IndexFile), &index); err != nil {
		return err
	}

	indexed := make(map[string]bool, len(index.Modules))
	uids := make(map[string]bool, len(index.Modules))
	inconsistency := &SchemaInconsistencyError{Dir: dir}

	for _, entry := range index.Modules {
		uids[entry.UID] = true
		indexed[entry.ModulePath] = true
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(entry.ModulePath))); err != nil {
			inconsistency.Missing = append(inconsistency.Missing, entry.UID)
		}
	}

	modulesDir := filepath.Join(dir, ModulesDir)
	entries, err := os.ReadDir(modulesDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to list %s: %w", modulesDir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if rel := path.Join(ModulesDir, e.Name()); !indexed[rel] {
			inconsistency.Orphaned = append(inconsistency.Orphaned, rel)
		}
	}

	var calls CallGraph
	if err := readJSON(filepath.Join(dir, CallGraphFile), &calls); err != nil {
		return err
	}
	dangling := make(map[string]bool)
	for _, edge := range calls.Calls {
		if !uids[edge.CallerModule] {
			dangling[edge.CallerModule] = true
		}
	}
	for uid := range dangling {
		inconsistency.Dangling = append(inconsistency.Dangling, uid)
	}

	if len(inconsistency.Missing)+len(inconsistency.Orphaned)+len(inconsistency.Dangling) == 0 {
		return nil
	}
	sort.Strings(inconsistency.Missing)
	sort.Strings(inconsistency.Orphaned)
	sort.Strings(inconsistency.Dangling)
	return inconsistency
}
