// Package config provides configuration loading for llmstruct.
//
// Configuration Hierarchy (highest to lowest priority):
//  1. Environment variables (LLMSTRUCT_*)
//  2. Project config (.llmstruct/config.yml)
//  3. Built-in defaults
//
// Environment Variable Convention:
//   - Prefix: LLMSTRUCT_
//   - Nested fields: Use underscores (LLMSTRUCT_OUTPUT_MODE)
//   - Automatic mapping via Viper's SetEnvKeyReplacer
package config

import (
	"io"
	"log/slog"
	"strings"
)

// Config represents the complete llmstruct configuration.
// It can be loaded from .llmstruct/config.yml with environment variable overrides.
type Config struct {
	Project   ProjectConfig   `yaml:"project" mapstructure:"project"`
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Analyzers AnalyzersConfig `yaml:"analyzers" mapstructure:"analyzers"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	HashDB    HashDBConfig    `yaml:"hashdb" mapstructure:"hashdb"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ProjectConfig describes the analyzed project.
type ProjectConfig struct {
	Name  string   `yaml:"name" mapstructure:"name"`   // defaults to the root directory name
	Goals []string `yaml:"goals" mapstructure:"goals"` // echoed into metadata
}

// PathsConfig defines which files to analyze and which to ignore.
type PathsConfig struct {
	Include      []string `yaml:"include" mapstructure:"include"`             // glob patterns; empty means every source file
	Exclude      []string `yaml:"exclude" mapstructure:"exclude"`             // glob patterns to ignore
	IncludeDirs  []string `yaml:"include_dirs" mapstructure:"include_dirs"`   // restrict analysis to these directories
	ExcludeDirs  []string `yaml:"exclude_dirs" mapstructure:"exclude_dirs"`   // directory names or paths to skip
	UseGitignore bool     `yaml:"use_gitignore" mapstructure:"use_gitignore"` // honor the root .gitignore
	Gitignore    []string `yaml:"gitignore" mapstructure:"gitignore"`         // extra gitignore-syntax lines
}

// OutputConfig defines what is generated and where.
type OutputConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`                       // modular directory
	FlatFile      string `yaml:"flat_file" mapstructure:"flat_file"`           // flat document
	Mode          string `yaml:"mode" mapstructure:"mode"`                     // "flat", "modular" or "both"
	Language      string `yaml:"language" mapstructure:"language"`             // force one language
	MultiLanguage bool   `yaml:"multi_language" mapstructure:"multi_language"` // analyze every detected language
	IncludeRanges bool   `yaml:"include_ranges" mapstructure:"include_ranges"`
	IncludeHashes bool   `yaml:"include_hashes" mapstructure:"include_hashes"`
	StrictUIDs    bool   `yaml:"strict_uids" mapstructure:"strict_uids"` // fail on duplicate entity UIDs
}

// AnalyzersConfig selects analyzer implementations.
type AnalyzersConfig struct {
	Go                string `yaml:"go" mapstructure:"go"`                                 // "native" or "subprocess"
	Python            string `yaml:"python" mapstructure:"python"`                         // "native" or "subprocess"
	SubprocessTimeout int    `yaml:"subprocess_timeout" mapstructure:"subprocess_timeout"` // seconds
	PythonRuntimeDir  string `yaml:"python_runtime_dir" mapstructure:"python_runtime_dir"` // keeps the embedded interpreter
	Workers           int    `yaml:"workers" mapstructure:"workers"`                       // 0 means GOMAXPROCS
}

// CacheConfig configures the in-memory analysis cache.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled" mapstructure:"enabled"`
	Capacity int  `yaml:"capacity" mapstructure:"capacity"` // cached files
}

// HashDBConfig configures the persisted hash database.
type HashDBConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // empty disables it
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Goals: []string{},
		},
		Paths: PathsConfig{
			Include:     []string{},
			Exclude:     []string{"**/*.min.js", "**/*_pb2.py", "**/*.pb.go"},
			IncludeDirs: []string{},
			ExcludeDirs: []string{"dist", "build", "target"},
			Gitignore:   []string{},

			UseGitignore: true,
		},
		Output: OutputConfig{
			Dir:           "struct",
			FlatFile:      "struct.json",
			Mode:          "modular",
			IncludeRanges: true,
			IncludeHashes: true,
		},
		Analyzers: AnalyzersConfig{
			Go:                "native",
			Python:            "native",
			SubprocessTimeout: 120,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 10_000,
		},
		HashDB: HashDBConfig{
			Path: ".llmstruct/hashes.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SlogLevel maps the configured level to a slog.Level. Unknown values
// fall back to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the structured logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
