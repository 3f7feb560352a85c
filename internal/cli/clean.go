package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kpblcaoo/llmstruct/internal/config"
	"github.com/kpblcaoo/llmstruct/internal/lock"
)

var cleanQuietFlag bool

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean [root]",
	Short: "Remove generated output and the hash database",
	Long: `Clean removes what 'llmstruct parse' wrote: the modular directory, the flat
document and the hash database. The next 'llmstruct diff' then has nothing
to compare against until the next parse.

The configuration file (.llmstruct/config.yml) is preserved.

Examples:
  llmstruct clean
  llmstruct clean --quiet
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanQuietFlag, "quiet", "q", false, "Suppress output messages")
}

func runClean(cmd *cobra.Command, args []string) error {
	root, err := rootArg(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	var out io.Writer = cmd.OutOrStdout()
	if cleanQuietFlag {
		out = io.Discard
	}
	return executeClean(root, cfg, out)
}

// executeClean removes the configured outputs under root. A directory
// locked by a running parse is left alone.
func executeClean(root string, cfg *config.Config, w io.Writer) error {
	removed := 0

	if cfg.Output.Dir != "" {
		dir := resolveDir(root, cfg.Output.Dir)
		size, err := removeOutputDir(dir)
		if err != nil {
			return err
		}
		if size >= 0 {
			removed++
			fmt.Fprintf(w, "✓ Removed %s (~%.1f MB)\n", dir, float64(size)/(1024*1024))
		}
	}

	for _, p := range []string{cfg.Output.FlatFile, cfg.HashDB.Path} {
		if p == "" {
			continue
		}
		file := resolveDir(root, p)
		info, err := os.Stat(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", file, err)
		}
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("failed to remove %s: %w", file, err)
		}
		removed++
		fmt.Fprintf(w, "✓ Removed %s (~%.1f MB)\n", file, float64(info.Size())/(1024*1024))
	}

	if removed == 0 {
		fmt.Fprintln(w, "Nothing to clean")
		return nil
	}
	fmt.Fprintln(w, "Next 'llmstruct parse' will regenerate everything")
	return nil
}

// removeOutputDir deletes dir and returns its size, or -1 when it did not
// exist.
func removeOutputDir(dir string) (int64, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return -1, nil
	}

	dirLock, err := lock.TryAcquire(dir)
	if err != nil {
		return 0, fmt.Errorf("cannot clean %s: %w", dir, err)
	}
	defer dirLock.Release()

	var size int64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})

	if err := os.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return size, nil
}
