package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kpblcaoo/llmstruct/internal/mcp"
)

var mcpDir string

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server over a generated directory",
	Long: `Start the Model Context Protocol (MCP) server that lets LLM coding assistants
read the structure of your codebase.

The MCP server:
- Loads a modular directory written by 'llmstruct parse'
- Provides llmstruct_module, llmstruct_calls and llmstruct_search tools
- Communicates via stdio (standard MCP transport)

Logs go to stderr. Re-run 'llmstruct parse' (or keep 'parse --watch'
running) and restart the server to pick up changes.

Example:
  llmstruct mcp`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVarP(&mcpDir, "dir", "d", "", "Modular directory (default: output.dir of the current project)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	root, err := rootArg(nil)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	dir := mcpDir
	if dir == "" {
		dir = resolveDir(root, cfg.Output.Dir)
	}

	fmt.Fprintf(os.Stderr, "llmstruct MCP Server\n")
	fmt.Fprintf(os.Stderr, "Directory: %s\n\n", dir)

	server, err := mcp.NewMCPServer(cmd.Context(), dir, Version, newLogger(cfg))
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	// Serve (blocks until shutdown)
	if err := server.Serve(cmd.Context()); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}
