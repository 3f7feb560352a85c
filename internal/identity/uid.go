package identity

import (
	"path"
	"strings"

	"github.com/kpblcaoo/llmstruct/internal/model"
)

// sourceRoots are leading directories stripped before a path becomes a module name.
var sourceRoots = []string{"src/", "lib/"}

// NormalizeModulePath turns a relative file path into a dotted module name.
//
//	src/pkg/mod.py       -> pkg.mod
//	pkg/__init__.py      -> pkg
//	internal/store/db.go -> internal.store.db
func NormalizeModulePath(modulePath string) string {
	p := strings.ReplaceAll(modulePath, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")

	for _, root := range sourceRoots {
		if strings.HasPrefix(p, root) {
			p = strings.TrimPrefix(p, root)
			break
		}
	}

	if ext := path.Ext(p); model.IsSourceExtension(ext) {
		p = strings.TrimSuffix(p, ext)
	}

	if p == "__init__" {
		p = ""
	}
	p = strings.TrimSuffix(p, "/__init__")
	p = strings.Trim(p, "/")

	return strings.ReplaceAll(p, "/", ".")
}

// ModuleUID is the identifier of a module as a whole: its normalized path.
func ModuleUID(modulePath string) string {
	return NormalizeModulePath(modulePath)
}

// GenerateUID builds "<module>[.<parent>].<name>#<type>".
// Identical inputs always produce the identical string.
func GenerateUID(entityType model.EntityType, modulePath, entityName, parentName string) string {
	parts := make([]string, 0, 3)
	if module := NormalizeModulePath(modulePath); module != "" {
		parts = append(parts, module)
	}
	if parentName != "" {
		parts = append(parts, parentName)
	}
	if entityName != "" {
		parts = append(parts, entityName)
	}
	return strings.Join(parts, ".") + "#" + string(entityType)
}

// GenerateUIDComponents returns the progressively qualified prefixes of an
// entity's UID, without the type suffix. The result never contains the same
// string twice.
func GenerateUIDComponents(entityType model.EntityType, modulePath, entityName, parentName string) []string {
	var components []string
	seen := make(map[string]bool)

	add := func(c string) {
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		components = append(components, c)
	}

	current := ""
	extend := func(segment string) {
		if segment == "" {
			return
		}
		if current == "" {
			current = segment
		} else {
			current = current + "." + segment
		}
		add(current)
	}

	for _, segment := range strings.Split(NormalizeModulePath(modulePath), ".") {
		extend(segment)
	}
	extend(parentName)
	if entityType != model.EntityModule {
		extend(entityName)
	}

	return components
}

// ModuleKey collapses a UID whose dot-separated halves repeat ("pkg.mod.pkg.mod")
// to a single copy ("pkg.mod"). Other UIDs are returned unchanged.
func ModuleKey(uid string) string {
	parts := strings.Split(uid, ".")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return uid
	}
	half := len(parts) / 2
	if strings.Join(parts[:half], ".") == strings.Join(parts[half:], ".") {
		return strings.Join(parts[:half], ".")
	}
	return uid
}
