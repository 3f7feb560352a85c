package analyzer

import (
	"log/slog"
	"time"
)

// Mode selects how a language with both implementations is analyzed.
type Mode string

const (
	// ModeNative analyzes in-process.
	ModeNative Mode = "native"
	// ModeSubprocess runs an embedded helper program per file.
	ModeSubprocess Mode = "subprocess"
)

// Options configures DefaultRegistry.
type Options struct {
	GoMode     Mode
	PythonMode Mode

	// Timeout bounds each subprocess helper run.
	Timeout time.Duration

	// PythonRuntimeDir keeps the embedded interpreter between runs.
	PythonRuntimeDir string

	Logger *slog.Logger
}

// DefaultRegistry registers an analyzer for every supported language, each
// wrapped with its regex fallback.
func DefaultRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := NewRegistry()

	goPrimary := NewGoAnalyzer()
	if opts.GoMode == ModeSubprocess {
		goPrimary = NewExternalProcessAnalyzer(&GoHelper{}, opts.Timeout, logger)
	}
	r.Register(WithFallback(goPrimary, NewGoFallbackAnalyzer(), logger))

	pyPrimary := NewPythonAnalyzer()
	if opts.PythonMode == ModeSubprocess {
		pyPrimary = NewExternalProcessAnalyzer(&PythonHelper{RuntimeDir: opts.PythonRuntimeDir}, opts.Timeout, logger)
	}
	r.Register(WithFallback(pyPrimary, NewPythonFallbackAnalyzer(), logger))

	for _, lang := range StructuralLanguages() {
		primary, err := NewStructuralAnalyzer(lang)
		if err != nil {
			logger.Warn("no structural analyzer", "language", lang, "error", err)
			continue
		}
		r.Register(WithFallback(primary, NewGenericFallbackAnalyzer(lang), logger))
	}
	return r
}
