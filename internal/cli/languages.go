package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kpblcaoo/llmstruct/internal/config"
	"github.com/kpblcaoo/llmstruct/internal/indexer"
	"github.com/kpblcaoo/llmstruct/internal/model"
)

// languagesCmd represents the languages command
var languagesCmd = &cobra.Command{
	Use:   "languages [root]",
	Short: "Count source files per language",
	Long: `Languages walks the project once, counts source files per language and
shows which language a single-language parse would analyze. paths.exclude
applies as it does for parse.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}

func runLanguages(cmd *cobra.Command, args []string) error {
	root, err := rootArg(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return executeLanguages(root, cfg, cmd.OutOrStdout())
}

// executeLanguages prints the per-language file counts of root and the
// language parse would select.
func executeLanguages(root string, cfg *config.Config, w io.Writer) error {
	counts, err := indexer.DetectProjectLanguages(root, cfg.Paths.Exclude)
	if err != nil {
		return fmt.Errorf("failed to detect languages: %w", err)
	}

	fmt.Fprintf(w, "Languages: %s\n", formatLanguageCounts(counts))
	if forced := model.ParseLanguage(cfg.Output.Language); forced != model.LanguageUnknown {
		fmt.Fprintf(w, "Parse:     %s (configured)\n", forced)
		return nil
	}
	if lang := indexer.DominantLanguage(counts); lang != model.LanguageUnknown {
		fmt.Fprintf(w, "Parse:     %s (most files; use --multi for all)\n", lang)
	}
	return nil
}
