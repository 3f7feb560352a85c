package model

import (
	"path/filepath"
	"strings"
)

// extensionLanguages maps lowercase file extensions to languages.
var extensionLanguages = map[string]Language{
	".go":   LanguageGo,
	".py":   LanguagePython,
	".pyi":  LanguagePython,
	".ts":   LanguageTypeScript,
	".tsx":  LanguageTypeScript,
	".js":   LanguageJavaScript,
	".jsx":  LanguageJavaScript,
	".mjs":  LanguageJavaScript,
	".cjs":  LanguageJavaScript,
	".rs":   LanguageRust,
	".java": LanguageJava,
	".c":    LanguageC,
	".h":    LanguageC,
	".cpp":  LanguageCPP,
	".cc":   LanguageCPP,
	".cxx":  LanguageCPP,
	".hpp":  LanguageCPP,
	".hh":   LanguageCPP,
	".php":  LanguagePHP,
	".rb":   LanguageRuby,
}

// LanguageFromPath detects a language by file extension.
// Returns LanguageUnknown for unrecognized extensions.
func LanguageFromPath(filePath string) Language {
	return extensionLanguages[strings.ToLower(filepath.Ext(filePath))]
}

// Extensions returns the extensions registered for a language.
func Extensions(lang Language) []string {
	var exts []string
	for ext, l := range extensionLanguages {
		if l == lang {
			exts = append(exts, ext)
		}
	}
	return exts
}

// IsSourceExtension reports whether ext (with leading dot) is a known source extension.
func IsSourceExtension(ext string) bool {
	_, ok := extensionLanguages[strings.ToLower(ext)]
	return ok
}

// AllLanguages returns every supported language in a fixed order.
func AllLanguages() []Language {
	return []Language{
		LanguageGo,
		LanguagePython,
		LanguageTypeScript,
		LanguageJavaScript,
		LanguageRust,
		LanguageJava,
		LanguageC,
		LanguageCPP,
		LanguagePHP,
		LanguageRuby,
	}
}

// ParseLanguage converts a user-supplied name into a Language.
func ParseLanguage(name string) Language {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "go", "golang":
		return LanguageGo
	case "python", "py":
		return LanguagePython
	case "typescript", "ts", "tsx":
		return LanguageTypeScript
	case "javascript", "js", "jsx":
		return LanguageJavaScript
	case "rust", "rs":
		return LanguageRust
	case "java":
		return LanguageJava
	case "c":
		return LanguageC
	case "cpp", "c++", "cxx":
		return LanguageCPP
	case "php":
		return LanguagePHP
	case "ruby", "rb":
		return LanguageRuby
	}
	return LanguageUnknown
}
