package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kpblcaoo/llmstruct/internal/analyzer"
	"github.com/kpblcaoo/llmstruct/internal/config"
	"github.com/kpblcaoo/llmstruct/internal/indexer"
	"github.com/kpblcaoo/llmstruct/internal/watcher"
)

// parseFlags holds the parse command's overrides of the loaded config.
type parseFlags struct {
	quiet    bool
	watch    bool
	multi    bool
	noCache  bool
	mode     string
	output   string
	flatFile string
	language string
}

var parseOpts parseFlags

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse [root]",
	Short: "Analyze a source tree and write its structure",
	Long: `Parse discovers the source files under root (default: the working directory),
analyzes them and writes the structured output.

Output modes:
  modular  index.json, per-module files and callgraph.json under the output dir
  flat     a single JSON document
  both     the modular directory plus a separate flat document

Without --language the language with the most files is analyzed. --multi
analyzes every detected language and prefixes UIDs with the language.

Examples:
  # Parse the current directory
  llmstruct parse

  # Parse a Python project into a single document
  llmstruct parse ./service --mode flat --flat-file service.json

  # Keep the output current while editing
  llmstruct parse --watch
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().BoolVarP(&parseOpts.quiet, "quiet", "q", false, "Disable progress bars and non-error output")
	parseCmd.Flags().BoolVarP(&parseOpts.watch, "watch", "w", false, "Watch for file changes and regenerate")
	parseCmd.Flags().BoolVar(&parseOpts.multi, "multi", false, "Analyze every detected language")
	parseCmd.Flags().BoolVar(&parseOpts.noCache, "no-cache", false, "Disable the in-memory analysis cache")
	parseCmd.Flags().StringVarP(&parseOpts.mode, "mode", "m", "", "Output mode: flat, modular or both")
	parseCmd.Flags().StringVarP(&parseOpts.output, "output", "o", "", "Modular output directory")
	parseCmd.Flags().StringVar(&parseOpts.flatFile, "flat-file", "", "Flat document path")
	parseCmd.Flags().StringVarP(&parseOpts.language, "language", "l", "", "Force one language (e.g. go, python)")
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext("Interrupted! Cancelling parse...")
	defer cancel()

	root, err := rootArg(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if err := parseOpts.apply(cfg); err != nil {
		return err
	}

	return executeParse(ctx, root, cfg, parseOpts, cmd.OutOrStdout(), newLogger(cfg))
}

// apply overrides cfg with the flags that were set and revalidates it.
func (f parseFlags) apply(cfg *config.Config) error {
	if f.mode != "" {
		cfg.Output.Mode = strings.ToLower(f.mode)
	}
	if f.output != "" {
		cfg.Output.Dir = f.output
	}
	if f.flatFile != "" {
		cfg.Output.FlatFile = f.flatFile
	}
	if f.language != "" {
		cfg.Output.Language = f.language
	}
	if f.multi {
		cfg.Output.MultiLanguage = true
	}
	if f.noCache {
		cfg.Cache.Enabled = false
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// executeParse runs one conversion of root and, with flags.watch, keeps
// regenerating until ctx is cancelled.
func executeParse(ctx context.Context, root string, cfg *config.Config, flags parseFlags, w io.Writer, logger *slog.Logger) error {
	analyzerOpts := cfg.ToAnalyzerOptions()
	analyzerOpts.Logger = logger
	registry := analyzer.DefaultRegistry(analyzerOpts)

	var cache *indexer.AnalysisCache
	if cfg.Cache.Enabled {
		var err error
		cache, err = indexer.NewAnalysisCache(cfg.Cache.Capacity)
		if err != nil {
			return err
		}
		defer cache.Close()
	}

	var progress indexer.ProgressReporter = &indexer.NoOpProgressReporter{}
	if !flags.quiet {
		reporter := NewCLIProgressReporter(false)
		reporter.out = w
		progress = reporter
	}

	dispatcher := indexer.NewDispatcher(registry, cache, progress, logger)
	opts := cfg.ToIndexerOptions(Version)
	convert := func(ctx context.Context) (*indexer.Result, error) {
		if cfg.Output.MultiLanguage {
			return dispatcher.ConvertMultiLanguageProject(ctx, root, opts)
		}
		return dispatcher.ConvertProject(ctx, root, opts)
	}

	start := time.Now()
	result, err := convert(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("parse cancelled")
		}
		return fmt.Errorf("parse failed: %w", err)
	}
	if flags.quiet {
		fmt.Fprintf(w, "Parse complete: %d modules in %.2fs\n", result.Stats.ModulesCount, time.Since(start).Seconds())
	}

	if !flags.watch {
		return nil
	}

	if !flags.quiet {
		log.Println("Starting watch mode...")
	}
	err = watchProject(ctx, root, cfg, func(ctx context.Context, changed []string) error {
		logger.Info("files changed, regenerating", "files", len(changed))
		result, err := convert(ctx)
		if err != nil {
			return err
		}
		logger.Info("regenerated",
			"modules", result.Stats.ModulesCount,
			"cache_hits", cache.Hits(),
			"cached", cache.Len())
		return nil
	}, logger)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch mode failed: %w", err)
	}
	if !flags.quiet {
		log.Println("Watch mode stopped")
	}
	return nil
}

// watchProject regenerates through rebuild on debounced source changes
// under root. It blocks until ctx is cancelled.
func watchProject(ctx context.Context, root string, cfg *config.Config, rebuild watcher.RebuildFunc, logger *slog.Logger) error {
	files, err := watcher.NewFileWatcher([]string{root}, watcher.Options{
		Skip:   watchSkipper(root, cfg),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	return watcher.NewWatchCoordinator(files, rebuild, logger).Start(ctx)
}

// ignoredDirs are never watched.
var ignoredDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	config.DirName: true,
}

// watchSkipper rejects version control and tool directories plus the
// run's own outputs, so regeneration does not trigger itself.
func watchSkipper(root string, cfg *config.Config) func(path string, isDir bool) bool {
	var outputs []string
	for _, p := range []string{cfg.Output.Dir, cfg.Output.FlatFile, cfg.HashDB.Path} {
		if p != "" {
			outputs = append(outputs, filepath.Clean(resolveDir(root, p)))
		}
	}
	excluded := make(map[string]bool, len(cfg.Paths.ExcludeDirs))
	for _, d := range cfg.Paths.ExcludeDirs {
		excluded[filepath.Clean(d)] = true
	}

	return func(path string, isDir bool) bool {
		path = filepath.Clean(path)
		for _, out := range outputs {
			if path == out || strings.HasPrefix(path, out+string(filepath.Separator)) {
				return true
			}
		}
		if !isDir {
			return false
		}
		if ignoredDirs[filepath.Base(path)] || excluded[filepath.Base(path)] {
			return true
		}
		rel, err := filepath.Rel(root, path)
		return err == nil && excluded[rel]
	}
}
