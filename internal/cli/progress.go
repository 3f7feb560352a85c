package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/kpblcaoo/llmstruct/internal/indexer"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// CLIProgressReporter implements progress reporting with progress bars.
type CLIProgressReporter struct {
	quiet          bool
	out            io.Writer
	fileBar        *progressbar.ProgressBar
	startTime      time.Time
	totalFiles     int
	processedFiles int
}

// NewCLIProgressReporter creates a new CLI progress reporter writing to
// stdout.
func NewCLIProgressReporter(quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:     quiet,
		out:       os.Stdout,
		startTime: time.Now(),
	}
}

var _ indexer.ProgressReporter = (*CLIProgressReporter)(nil)

func (c *CLIProgressReporter) OnDiscoveryStart() {
	if c.quiet {
		return
	}
	c.startTime = time.Now()
	log.Println("Discovering files...")
}

func (c *CLIProgressReporter) OnDiscoveryComplete(counts map[model.Language]int) {
	if c.quiet {
		return
	}
	log.Printf("Found %s\n", formatLanguageCounts(counts))
}

func (c *CLIProgressReporter) OnAnalysisStart(lang model.Language, totalFiles int) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		_ = c.fileBar.Finish()
	}
	c.totalFiles = totalFiles
	c.processedFiles = 0

	c.fileBar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(fmt.Sprintf("Analyzing %s", lang)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnFileAnalyzed(relPath string) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.processedFiles++
		_ = c.fileBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnAssemblyStart(modules int) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		_ = c.fileBar.Finish()
		c.fileBar = nil
	}
	log.Printf("Assembling %s modules...\n", formatNumber(modules))
}

func (c *CLIProgressReporter) OnComplete(result *indexer.Result) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out)
	printSummary(c.out, result, time.Since(c.startTime))
}

// printSummary prints the outcome of a conversion.
func printSummary(w io.Writer, result *indexer.Result, took time.Duration) {
	stats := result.Stats
	fmt.Fprintf(w, "✓ Parse complete: %s modules in %.1fs\n", formatNumber(stats.ModulesCount), took.Seconds())
	fmt.Fprintf(w, "  Functions:  %s\n", formatNumber(stats.FunctionsCount))
	fmt.Fprintf(w, "  Classes:    %s\n", formatNumber(stats.ClassesCount))
	fmt.Fprintf(w, "  Call edges: %s\n", formatNumber(stats.CallEdgesCount))
	fmt.Fprintf(w, "  Lines:      %s\n", formatNumber(stats.LinesOfCode))
	if result.Enriched != nil && len(result.Enriched.Errors) > 0 {
		fmt.Fprintf(w, "  Errors:     %d (see metadata)\n", len(result.Enriched.Errors))
	}
	if result.Generated != nil {
		fmt.Fprintf(w, "  Output:     %s\n", result.Generated.OutputDir)
	}
	if result.FlatFile != "" {
		fmt.Fprintf(w, "  Flat file:  %s\n", result.FlatFile)
	}
	if result.Changes != nil && !result.Changes.Empty() {
		fmt.Fprintf(w, "  Changes:    +%d ~%d -%d\n",
			len(result.Changes.Added), len(result.Changes.Modified), len(result.Changes.Deleted))
	}
}

// formatLanguageCounts renders counts as "12 go files, 3 python files",
// largest first.
func formatLanguageCounts(counts map[model.Language]int) string {
	if len(counts) == 0 {
		return "no source files"
	}
	langs := make([]model.Language, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	parts := make([]string, 0, len(langs))
	for _, lang := range langs {
		parts = append(parts, fmt.Sprintf("%s %s files", formatNumber(counts[lang]), lang))
	}
	return strings.Join(parts, ", ")
}

// formatNumber formats a number with thousand separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
