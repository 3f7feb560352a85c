package config

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gobwas/glob"

	"github.com/kpblcaoo/llmstruct/internal/model"
)

var (
	// ErrInvalidMode indicates an unsupported output mode
	ErrInvalidMode = errors.New("invalid output mode")

	// ErrInvalidLanguage indicates an unknown forced language
	ErrInvalidLanguage = errors.New("invalid language")

	// ErrInvalidAnalyzer indicates an unsupported analyzer implementation
	ErrInvalidAnalyzer = errors.New("invalid analyzer mode")

	// ErrInvalidTimeout indicates a non-positive subprocess timeout
	ErrInvalidTimeout = errors.New("invalid subprocess timeout")

	// ErrInvalidWorkers indicates a negative worker count
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidPattern indicates a glob pattern that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrEmptyOutput indicates a missing output destination
	ErrEmptyOutput = errors.New("empty output destination")

	// ErrInvalidCacheSettings indicates invalid cache configuration
	ErrInvalidCacheSettings = errors.New("invalid cache settings")

	// ErrInvalidLogLevel indicates an unknown log level or format
	ErrInvalidLogLevel = errors.New("invalid log settings")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}
	if err := validateOutput(&cfg.Output); err != nil {
		errs = append(errs, err)
	}
	if err := validateAnalyzers(&cfg.Analyzers); err != nil {
		errs = append(errs, err)
	}
	if err := validateCache(&cfg.Cache); err != nil {
		errs = append(errs, err)
	}
	if err := validateLog(&cfg.Log); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validatePaths(cfg *PathsConfig) error {
	var errs []error
	for _, patterns := range [][]string{cfg.Include, cfg.Exclude} {
		for _, p := range patterns {
			if _, err := glob.Compile(p, '/'); err != nil {
				errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, p, err))
			}
		}
	}
	return errors.Join(errs...)
}

func validateOutput(cfg *OutputConfig) error {
	var errs []error

	mode := strings.ToLower(cfg.Mode)
	if err := validation.Validate(mode, validation.Required, validation.In("flat", "modular", "both")); err != nil {
		errs = append(errs, fmt.Errorf("%w: must be 'flat', 'modular' or 'both', got '%s'", ErrInvalidMode, cfg.Mode))
	}

	if cfg.Language != "" && model.ParseLanguage(cfg.Language) == model.LanguageUnknown {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLanguage, cfg.Language))
	}

	err := validation.ValidateStruct(cfg,
		validation.Field(&cfg.Dir, validation.When(mode == "modular" || mode == "both", validation.Required)),
		validation.Field(&cfg.FlatFile, validation.When(mode == "flat" || mode == "both", validation.Required)),
	)
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrEmptyOutput, err))
	}

	return errors.Join(errs...)
}

func validateAnalyzers(cfg *AnalyzersConfig) error {
	var errs []error

	modes := []any{"native", "subprocess"}
	if err := validation.Validate(strings.ToLower(cfg.Go), validation.Required, validation.In(modes...)); err != nil {
		errs = append(errs, fmt.Errorf("%w: go must be 'native' or 'subprocess', got '%s'", ErrInvalidAnalyzer, cfg.Go))
	}
	if err := validation.Validate(strings.ToLower(cfg.Python), validation.Required, validation.In(modes...)); err != nil {
		errs = append(errs, fmt.Errorf("%w: python must be 'native' or 'subprocess', got '%s'", ErrInvalidAnalyzer, cfg.Python))
	}

	if cfg.SubprocessTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: subprocess_timeout must be positive, got %d", ErrInvalidTimeout, cfg.SubprocessTimeout))
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidWorkers, cfg.Workers))
	}

	return errors.Join(errs...)
}

func validateCache(cfg *CacheConfig) error {
	if cfg.Enabled && cfg.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive when the cache is enabled, got %d", ErrInvalidCacheSettings, cfg.Capacity)
	}
	return nil
}

func validateLog(cfg *LogConfig) error {
	err := validation.ValidateStruct(cfg,
		validation.Field(&cfg.Level, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&cfg.Format, validation.In("text", "json")),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLogLevel, err)
	}
	return nil
}
