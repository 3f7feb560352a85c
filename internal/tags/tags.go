// Package tags infers semantic tags for code entities from their name and source.
package tags

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	Public       = "public"
	Private      = "private"
	Exported     = "exported"
	Async        = "async"
	Generator    = "generator"
	Property     = "property"
	StaticMethod = "staticmethod"
	ClassMethod  = "classmethod"
	Test         = "test"
)

var (
	asyncPattern     = regexp.MustCompile(`(?m)(^|\s)async\s+(def|fn|function)\b|^\s*async\b`)
	generatorPattern = regexp.MustCompile(`\byield\b|function\s*\*`)
	decoratorTags    = map[string]string{
		"@property":     Property,
		"@staticmethod": StaticMethod,
		"@classmethod":  ClassMethod,
	}
)

// InferTags returns the sorted, duplicate-free tags for an entity.
// The entity type is always included.
func InferTags(code, entityType, entityName string) []string {
	set := make(map[string]bool)
	if entityType != "" {
		set[entityType] = true
	}

	if strings.HasPrefix(entityName, "_") {
		set[Private] = true
	} else {
		set[Public] = true
	}
	if r := firstRune(entityName); unicode.IsUpper(r) {
		set[Exported] = true
	}
	if strings.HasPrefix(entityName, "test_") || strings.HasPrefix(entityName, "Test") {
		set[Test] = true
	}

	if asyncPattern.MatchString(code) {
		set[Async] = true
	}
	if generatorPattern.MatchString(code) {
		set[Generator] = true
	}
	for marker, tag := range decoratorTags {
		if strings.Contains(code, marker) {
			set[tag] = true
		}
	}

	return Sorted(set)
}

// Merge combines tag lists into one sorted, duplicate-free list.
func Merge(lists ...[]string) []string {
	set := make(map[string]bool)
	for _, list := range lists {
		for _, tag := range list {
			if tag != "" {
				set[tag] = true
			}
		}
	}
	return Sorted(set)
}

// Sorted returns the keys of set in ascending order.
func Sorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
