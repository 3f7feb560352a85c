package indexer

import (
	"github.com/kpblcaoo/llmstruct/internal/assembler"
	"github.com/kpblcaoo/llmstruct/internal/hashing"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// OutputMode selects which artifacts a conversion writes.
type OutputMode string

const (
	// ModeFlat writes the single aggregate document.
	ModeFlat OutputMode = "flat"
	// ModeModular writes the modular directory, which includes a legacy
	// flat mirror.
	ModeModular OutputMode = "modular"
	// ModeBoth writes the modular directory and a separate flat document.
	ModeBoth OutputMode = "both"
)

// Options is the input contract of a conversion.
type Options struct {
	// Language forces a single language. Empty selects the language with
	// the most files.
	Language model.Language

	IncludePatterns   []string
	ExcludePatterns   []string
	UseGitignore      bool
	GitignorePatterns []string
	IncludeDirs       []string
	ExcludeDirs       []string

	IncludeRanges bool
	IncludeHashes bool

	// StrictUIDs fails the run when entity UIDs are duplicated.
	StrictUIDs bool

	// ProjectName defaults to the base name of the root.
	ProjectName string
	Goals       []string

	// Mode selects the written artifacts. Nothing is written when the
	// matching destination below is empty.
	Mode OutputMode

	// OutputDir is the modular directory, relative to the root unless absolute.
	OutputDir string

	// FlatFile is the flat document path, relative to the root unless absolute.
	FlatFile string

	// HashDBPath, when set, is the sqlite hash database updated by the run.
	HashDBPath string

	// Workers bounds parallel file analysis. Zero means GOMAXPROCS.
	Workers int

	// Version is recorded as the generator version.
	Version string
}

func (o Options) discovery(skip []string) DiscoveryOptions {
	return DiscoveryOptions{
		IncludePatterns:   o.IncludePatterns,
		ExcludePatterns:   o.ExcludePatterns,
		UseGitignore:      o.UseGitignore,
		GitignorePatterns: o.GitignorePatterns,
		IncludeDirs:       o.IncludeDirs,
		ExcludeDirs:       o.ExcludeDirs,
		SkipPaths:         skip,
	}
}

// Result is the outcome of a conversion.
type Result struct {
	Root      string
	Languages []model.Language

	// Files counts the analyzed files per language.
	Files map[model.Language]int

	Enriched *assembler.EnrichResult
	Stats    assembler.Stats

	// Flat is always built.
	Flat *assembler.FlatDocument

	// Generated is set when the modular directory was written.
	Generated *assembler.GenerateResult

	// FlatFile is the absolute path of the written flat document, if any.
	FlatFile string

	// Changes is the difference to the previous hash database, when one
	// is configured.
	Changes *hashing.Diff
}
