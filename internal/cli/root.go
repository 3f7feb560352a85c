package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kpblcaoo/llmstruct/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "llmstruct",
	Short: "llmstruct - structured JSON views of a codebase for LLMs",
	Long: `llmstruct analyzes a source tree and writes a structured description of it:
modules, functions, classes, imports, call edges and dependency relations.

The result is either one flat JSON document or a modular directory with an
index, per-module files and a call graph, sized for LLM context windows.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <root>/.llmstruct/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the configuration for the project at rootDir. --config
// replaces the project config file, --verbose forces debug logging.
func loadConfig(rootDir string) (*config.Config, error) {
	loader := config.NewLoader(rootDir)
	if cfgFile != "" {
		loader = config.NewFileLoader(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the run's logger. Logs go to stderr so stdout stays
// usable for command output.
func newLogger(cfg *config.Config) *slog.Logger {
	return cfg.Log.NewLogger(os.Stderr)
}

// rootArg returns the absolute project root: the first argument, or the
// working directory.
func rootArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", args[0], err)
		}
		return abs, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. message
// is printed when the signal arrives, unless empty.
func signalContext(message string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			if message != "" {
				fmt.Fprintln(os.Stderr, "\n"+message)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// resolveDir returns p relative to root unless it is absolute.
func resolveDir(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
