package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DirName is the per-project configuration directory.
const DirName = ".llmstruct"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LLMSTRUCT"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// NewFileLoader creates a loader reading an explicit config file instead of
// searching the root directory.
func NewFileLoader(configFile string) Loader {
	return &loader{
		configFile: configFile,
	}
}

// envKeys are the keys overridable through LLMSTRUCT_* variables.
var envKeys = []string{
	"project.name",
	"project.goals",

	"paths.include",
	"paths.exclude",
	"paths.include_dirs",
	"paths.exclude_dirs",
	"paths.use_gitignore",

	"output.dir",
	"output.flat_file",
	"output.mode",
	"output.language",
	"output.multi_language",
	"output.include_ranges",
	"output.include_hashes",
	"output.strict_uids",

	"analyzers.go",
	"analyzers.python",
	"analyzers.subprocess_timeout",
	"analyzers.python_runtime_dir",
	"analyzers.workers",

	"cache.enabled",
	"cache.capacity",

	"hashdb.path",

	"log.level",
	"log.format",
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (LLMSTRUCT_*)
// 2. Config file (.llmstruct/config.yml or .llmstruct/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	// Configure viper
	v := viper.New()

	// Set up config file search
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, DirName))
	}

	// Enable environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., LLMSTRUCT_OUTPUT_MODE)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// Set defaults in viper
	setDefaults(v)

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate the configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("project.name", defaults.Project.Name)
	v.SetDefault("project.goals", defaults.Project.Goals)

	v.SetDefault("paths.include", defaults.Paths.Include)
	v.SetDefault("paths.exclude", defaults.Paths.Exclude)
	v.SetDefault("paths.include_dirs", defaults.Paths.IncludeDirs)
	v.SetDefault("paths.exclude_dirs", defaults.Paths.ExcludeDirs)
	v.SetDefault("paths.use_gitignore", defaults.Paths.UseGitignore)
	v.SetDefault("paths.gitignore", defaults.Paths.Gitignore)

	v.SetDefault("output.dir", defaults.Output.Dir)
	v.SetDefault("output.flat_file", defaults.Output.FlatFile)
	v.SetDefault("output.mode", defaults.Output.Mode)
	v.SetDefault("output.language", defaults.Output.Language)
	v.SetDefault("output.multi_language", defaults.Output.MultiLanguage)
	v.SetDefault("output.include_ranges", defaults.Output.IncludeRanges)
	v.SetDefault("output.include_hashes", defaults.Output.IncludeHashes)
	v.SetDefault("output.strict_uids", defaults.Output.StrictUIDs)

	v.SetDefault("analyzers.go", defaults.Analyzers.Go)
	v.SetDefault("analyzers.python", defaults.Analyzers.Python)
	v.SetDefault("analyzers.subprocess_timeout", defaults.Analyzers.SubprocessTimeout)
	v.SetDefault("analyzers.python_runtime_dir", defaults.Analyzers.PythonRuntimeDir)
	v.SetDefault("analyzers.workers", defaults.Analyzers.Workers)

	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.capacity", defaults.Cache.Capacity)

	v.SetDefault("hashdb.path", defaults.HashDB.Path)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
