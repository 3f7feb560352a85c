package indexer

import (
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// DetectLanguage maps a file path to its language by extension.
func DetectLanguage(filePath string) model.Language {
	return model.LanguageFromPath(filePath)
}

// DetectProjectLanguages counts the source files of each language under
// root in a single walk. excludes are glob patterns as in
// DiscoveryOptions.ExcludePatterns.
func DetectProjectLanguages(root string, excludes []string) (map[model.Language]int, error) {
	fd, err := NewFileDiscovery(root, DiscoveryOptions{ExcludePatterns: excludes})
	if err != nil {
		return nil, err
	}
	files, err := fd.DiscoverFiles()
	if err != nil {
		return nil, err
	}
	return countLanguages(files), nil
}

func countLanguages(files []string) map[model.Language]int {
	counts := make(map[model.Language]int)
	for _, f := range files {
		if lang := DetectLanguage(f); lang != model.LanguageUnknown {
			counts[lang]++
		}
	}
	return counts
}

// DominantLanguage picks the language with the most files. Ties go to the
// language listed first in model.AllLanguages.
func DominantLanguage(counts map[model.Language]int) model.Language {
	best, bestCount := model.LanguageUnknown, 0
	for _, lang := range model.AllLanguages() {
		if counts[lang] > bestCount {
			best, bestCount = lang, counts[lang]
		}
	}
	return best
}

// orderedLanguages returns the languages present in counts in
// model.AllLanguages order.
func orderedLanguages(counts map[model.Language]int) []model.Language {
	var out []model.Language
	for _, lang := range model.AllLanguages() {
		if counts[lang] > 0 {
			out = append(out, lang)
		}
	}
	return out
}
