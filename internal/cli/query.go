package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kpblcaoo/llmstruct/internal/assembler"
)

var (
	queryDir  string
	queryJSON bool
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <uid>",
	Short: "Show one module of a generated directory",
	Long: `Query reads a modular directory written by 'llmstruct parse' and prints one
module: its summary, dependencies, dependents, entities and calls.

A function or class UID (containing '#') prints that entity's outgoing calls.

Examples:
  llmstruct query pkg.server
  llmstruct query 'pkg.server.Server.Start#method'
  llmstruct query pkg.server --json
`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryDir, "dir", "d", "", "Modular directory (default: output.dir of the current project)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the module file as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	dir, err := structDir(queryDir)
	if err != nil {
		return err
	}
	reader, err := assembler.OpenReader(dir)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dir, err)
	}
	return executeQuery(reader, args[0], queryJSON, cmd.OutOrStdout())
}

// structDir returns dir, or the configured output directory of the
// project in the working directory.
func structDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	root, err := rootArg(nil)
	if err != nil {
		return "", err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return "", err
	}
	return resolveDir(root, cfg.Output.Dir), nil
}

// executeQuery prints the module or entity identified by uid.
func executeQuery(reader *assembler.Reader, uid string, asJSON bool, w io.Writer) error {
	entry, ok := reader.Module(uid)
	if !ok {
		if strings.Contains(uid, "#") {
			return printEntityCalls(w, uid, reader.Callees(uid))
		}
		return fmt.Errorf("module not found: %s", uid)
	}

	mf, err := reader.LoadModule(uid)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(mf)
	}

	fmt.Fprintf(w, "Module: %s (%s)\n", entry.UID, entry.FilePath)
	fmt.Fprintf(w, "Summary: %s\n", entry.Summary)
	if mf.ModuleInfo.Doc != "" {
		fmt.Fprintf(w, "Doc: %s\n", firstLine(mf.ModuleInfo.Doc))
	}
	printList(w, "Tags", entry.Tags)
	printList(w, "Dependencies", entry.Dependencies)
	printList(w, "Dependents", entry.Dependents)

	if len(mf.Functions) > 0 {
		fmt.Fprintf(w, "Functions (%d):\n", len(mf.Functions))
		for _, fn := range mf.Functions {
			fmt.Fprintf(w, "  %s\n", fn.UID)
		}
	}
	if len(mf.Classes) > 0 {
		fmt.Fprintf(w, "Classes (%d):\n", len(mf.Classes))
		for _, cls := range mf.Classes {
			fmt.Fprintf(w, "  %s\n", cls.UID)
		}
	}

	printCalls(w, "Calls", reader.ModuleCalls(uid))
	printCalls(w, "Called from", reader.CallersOfModule(uid))
	return nil
}

func printEntityCalls(w io.Writer, uid string, calls []assembler.CallEdge) error {
	if len(calls) == 0 {
		return fmt.Errorf("no module or calls found for %s", uid)
	}
	fmt.Fprintf(w, "Entity: %s\n", uid)
	printCalls(w, "Calls", calls)
	return nil
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(w, "%s: none\n", title)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", title, strings.Join(items, ", "))
}

func printCalls(w io.Writer, title string, calls []assembler.CallEdge) {
	if len(calls) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", title, len(calls))
	for _, c := range calls {
		target := c.CalleeName
		if c.CalleeModule != "" {
			target += " [" + c.CalleeModule + "]"
		}
		fmt.Fprintf(w, "  %s -> %s (line %d)\n", c.CallerUID, target, c.LineNumber)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
