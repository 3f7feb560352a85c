package assembler

import (
	"fmt"
	"strings"
)

// AnalysisError records a module that was dropped or degraded during a run.
// These are surfaced in metadata.json instead of failing the run.
type AnalysisError struct {
	Path    string `json:"path"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Stages reported in AnalysisError.
const (
	StageAnalyze  = "analyze"
	StageEnrich   = "enrich"
	StageIdentity = "uid_validation"
)

// UIDCollisionError is returned when distinct files collapse onto the same
// module key with different content.
type UIDCollisionError struct {
	Key   string
	Paths []string
}

func (e *UIDCollisionError) Error() string {
	return fmt.Sprintf("uid collision: module %q is produced by %s with different content",
		e.Key, strings.Join(e.Paths, ", "))
}

// SchemaInconsistencyError is returned when index.json, modules/ and
// callgraph.json disagree after generation.
type SchemaInconsistencyError struct {
	Dir string
	// Missing lists index entries whose module file does not exist.
	Missing []string
	// Orphaned lists module files with no index entry.
	Orphaned []string
	// Dangling lists callgraph caller modules absent from the index.
	Dangling []string
}

func (e *SchemaInconsistencyError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("%d index entries without module file (%s)", len(e.Missing), strings.Join(e.Missing, ", ")))
	}
	if len(e.Orphaned) > 0 {
		parts = append(parts, fmt.Sprintf("%d module files without index entry (%s)", len(e.Orphaned), strings.Join(e.Orphaned, ", ")))
	}
	if len(e.Dangling) > 0 {
		parts = append(parts, fmt.Sprintf("%d callgraph modules not indexed (%s)", len(e.Dangling), strings.Join(e.Dangling, ", ")))
	}
	return fmt.Sprintf("schema inconsistency in %s: %s", e.Dir, strings.Join(parts, "; "))
}

// StrictUIDError is returned when strict UID checking is enabled and the
// uniqueness pass found duplicates.
type StrictUIDError struct {
	Duplicates []string
}

func (e *StrictUIDError) Error() string {
	return fmt.Sprintf("%d duplicate uids: %s", len(e.Duplicates), strings.Join(e.Duplicates, ", "))
}
