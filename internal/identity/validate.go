package identity

import (
	"sort"
)

// EntityRef identifies an entity that owns a UID.
type EntityRef struct {
	UID  string `json:"uid"`
	Type string `json:"type"`
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line,omitempty"`
}

// Conflict is a duplicated UID whose owners come from different files or
// have different entity types.
type Conflict struct {
	UID   string   `json:"uid"`
	Files []string `json:"files"`
	Types []string `json:"types"`
}

// ValidationReport is the result of a uniqueness pass over one generation.
type ValidationReport struct {
	Total      int                    `json:"total"`
	Unique     int                    `json:"unique"`
	Duplicates map[string][]EntityRef `json:"duplicates"`
	Conflicts  []Conflict             `json:"conflicts"`
}

// OK reports whether no UID is owned by more than one entity.
func (r *ValidationReport) OK() bool {
	return len(r.Duplicates) == 0
}

// DuplicateUIDs returns the duplicated UIDs in sorted order.
func (r *ValidationReport) DuplicateUIDs() []string {
	uids := make([]string, 0, len(r.Duplicates))
	for uid := range r.Duplicates {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// ValidateUIDUniqueness groups entities by UID and reports every UID owned by
// more than one entity. Nothing is renamed or merged.
func ValidateUIDUniqueness(entities []EntityRef) *ValidationReport {
	owners := make(map[string][]EntityRef)
	for _, e := range entities {
		owners[e.UID] = append(owners[e.UID], e)
	}

	report := &ValidationReport{
		Total:      len(entities),
		Unique:     len(owners),
		Duplicates: make(map[string][]EntityRef),
		Conflicts:  []Conflict{},
	}

	for uid, refs := range owners {
		if len(refs) < 2 {
			continue
		}
		report.Duplicates[uid] = refs

		files := distinct(refs, func(r EntityRef) string { return r.File })
		types := distinct(refs, func(r EntityRef) string { return r.Type })
		if len(files) > 1 || len(types) > 1 {
			report.Conflicts = append(report.Conflicts, Conflict{UID: uid, Files: files, Types: types})
		}
	}

	sort.Slice(report.Conflicts, func(i, j int) bool {
		return report.Conflicts[i].UID < report.Conflicts[j].UID
	})

	return report
}

func distinct(refs []EntityRef, key func(EntityRef) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range refs {
		k := key(r)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
