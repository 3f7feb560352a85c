package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kpblcaoo/llmstruct/internal/analyzer"
	"github.com/kpblcaoo/llmstruct/internal/config"
	"github.com/kpblcaoo/llmstruct/internal/hashing"
	"github.com/kpblcaoo/llmstruct/internal/indexer"
)

// errNoHashDatabase is returned when diff has nothing to compare against.
var errNoHashDatabase = errors.New("no hash database found, run 'llmstruct parse' first")

var diffExitCode bool

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff [root]",
	Short: "Show source files changed since the last parse",
	Long: `Diff hashes the files a parse would analyze and compares them with the hash
database the last parse stored (hashdb.path). Hashes ignore comments and
whitespace, so reformatting a file does not count as a change.

Examples:
  # What changed since the last parse?
  llmstruct diff

  # Fail in CI when the committed output is stale
  llmstruct diff --exit-code
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().BoolVar(&diffExitCode, "exit-code", false, "Exit with an error when files changed")
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext("")
	defer cancel()

	root, err := rootArg(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	diff, err := executeDiff(ctx, root, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	printDiff(cmd.OutOrStdout(), diff)
	if diffExitCode && !diff.Empty() {
		return fmt.Errorf("%d files changed", len(diff.Added)+len(diff.Modified)+len(diff.Deleted))
	}
	return nil
}

// executeDiff compares the current tree with the stored hash database.
func executeDiff(ctx context.Context, root string, cfg *config.Config, logger *slog.Logger) (*hashing.Diff, error) {
	if cfg.HashDB.Path == "" {
		return nil, fmt.Errorf("hash database disabled: hashdb.path is empty")
	}
	dbPath := resolveDir(root, cfg.HashDB.Path)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, errNoHashDatabase
	}

	store, err := hashing.OpenStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	stored, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	analyzerOpts := cfg.ToAnalyzerOptions()
	analyzerOpts.Logger = logger
	dispatcher := indexer.NewDispatcher(analyzer.DefaultRegistry(analyzerOpts), nil, nil, logger)
	current, err := dispatcher.Snapshot(ctx, root, cfg.ToIndexerOptions(Version), cfg.Output.MultiLanguage)
	if err != nil {
		return nil, fmt.Errorf("failed to hash source files: %w", err)
	}

	return hashing.CompareHashDatabases(stored, current), nil
}

// printDiff prints one line per changed file, grouped by change kind.
func printDiff(w io.Writer, diff *hashing.Diff) {
	if diff.Empty() {
		fmt.Fprintln(w, "No changes since last parse")
		return
	}
	section := func(title, marker string, paths []string) {
		if len(paths) == 0 {
			return
		}
		fmt.Fprintf(w, "%s (%d):\n", title, len(paths))
		for _, p := range paths {
			fmt.Fprintf(w, "  %s %s\n", marker, p)
		}
	}
	section("Added", "+", diff.Added)
	section("Modified", "~", diff.Modified)
	section("Deleted", "-", diff.Deleted)
}
