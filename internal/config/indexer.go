package config

import (
	"strings"
	"time"

	"github.com/kpblcaoo/llmstruct/internal/analyzer"
	"github.com/kpblcaoo/llmstruct/internal/indexer"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// ToIndexerOptions converts a Config to the dispatcher's input contract.
func (c *Config) ToIndexerOptions(version string) indexer.Options {
	return indexer.Options{
		Language:          model.ParseLanguage(c.Output.Language),
		IncludePatterns:   c.Paths.Include,
		ExcludePatterns:   c.Paths.Exclude,
		UseGitignore:      c.Paths.UseGitignore,
		GitignorePatterns: c.Paths.Gitignore,
		IncludeDirs:       c.Paths.IncludeDirs,
		ExcludeDirs:       c.Paths.ExcludeDirs,
		IncludeRanges:     c.Output.IncludeRanges,
		IncludeHashes:     c.Output.IncludeHashes,
		StrictUIDs:        c.Output.StrictUIDs,
		ProjectName:       c.Project.Name,
		Goals:             c.Project.Goals,
		Mode:              indexer.OutputMode(strings.ToLower(c.Output.Mode)),
		OutputDir:         c.Output.Dir,
		FlatFile:          c.Output.FlatFile,
		HashDBPath:        c.HashDB.Path,
		Workers:           c.Analyzers.Workers,
		Version:           version,
	}
}

// ToAnalyzerOptions converts a Config to the analyzer registry options.
func (c *Config) ToAnalyzerOptions() analyzer.Options {
	return analyzer.Options{
		GoMode:           analyzer.Mode(strings.ToLower(c.Analyzers.Go)),
		PythonMode:       analyzer.Mode(strings.ToLower(c.Analyzers.Python)),
		Timeout:          time.Duration(c.Analyzers.SubprocessTimeout) * time.Second,
		PythonRuntimeDir: c.Analyzers.PythonRuntimeDir,
	}
}
