package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kpblcaoo/llmstruct/internal/search"
)

var (
	searchDir   string
	searchOpts  search.Options
	searchLimit int
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over a generated directory",
	Long: `Search indexes the modules, functions and classes of a modular directory in
memory and runs a bleve query string against their names, docs, signatures
and tags.

Examples:
  llmstruct search parse
  llmstruct search 'doc:"retry policy"' --kind function
  llmstruct search handler --tag http --language go
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchDir, "dir", "d", "", "Modular directory (default: output.dir of the current project)")
	searchCmd.Flags().StringVarP(&searchOpts.Kind, "kind", "k", "", "Restrict to module, function or class")
	searchCmd.Flags().StringVarP(&searchOpts.Language, "language", "l", "", "Restrict to one language")
	searchCmd.Flags().StringVarP(&searchOpts.Tag, "tag", "t", "", "Restrict to entities with this tag")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 15, "Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	dir, err := structDir(searchDir)
	if err != nil {
		return err
	}
	opts := searchOpts
	opts.Limit = searchLimit
	return executeSearch(cmd.Context(), dir, strings.Join(args, " "), &opts, cmd.OutOrStdout())
}

// executeSearch indexes dir and prints the hits for queryStr.
func executeSearch(ctx context.Context, dir, queryStr string, opts *search.Options, w io.Writer) error {
	index, err := search.BuildFromDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", dir, err)
	}
	defer index.Close()

	results, err := index.Search(ctx, queryStr, opts)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No results")
		return nil
	}

	for _, r := range results {
		fmt.Fprintf(w, "%6.3f  %-8s  %s  (%s)\n", r.Score, r.Document.Kind, r.Document.UID, r.Document.FilePath)
		for _, h := range r.Highlights {
			fmt.Fprintf(w, "          %s\n", strings.Join(strings.Fields(h), " "))
		}
	}
	return nil
}
