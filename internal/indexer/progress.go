package indexer

import "github.com/kpblcaoo/llmstruct/internal/model"

// ProgressReporter provides callbacks for reporting conversion progress.
// Implementations can display progress bars, log messages, or remain silent.
// OnFileAnalyzed may be called from several goroutines, but never concurrently.
type ProgressReporter interface {
	// OnDiscoveryStart is called when file discovery begins.
	OnDiscoveryStart()

	// OnDiscoveryComplete is called when file discovery finishes.
	OnDiscoveryComplete(counts map[model.Language]int)

	// OnAnalysisStart is called before the files of one language are analyzed.
	OnAnalysisStart(lang model.Language, totalFiles int)

	// OnFileAnalyzed is called after each file is analyzed.
	OnFileAnalyzed(relPath string)

	// OnAssemblyStart is called before output documents are built.
	OnAssemblyStart(modules int)

	// OnComplete is called when the conversion completes successfully.
	OnComplete(result *Result)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnDiscoveryStart()                                   {}
func (n *NoOpProgressReporter) OnDiscoveryComplete(counts map[model.Language]int)   {}
func (n *NoOpProgressReporter) OnAnalysisStart(lang model.Language, totalFiles int) {}
func (n *NoOpProgressReporter) OnFileAnalyzed(relPath string)                       {}
func (n *NoOpProgressReporter) OnAssemblyStart(modules int)                         {}
func (n *NoOpProgressReporter) OnComplete(result *Result)                           {}
