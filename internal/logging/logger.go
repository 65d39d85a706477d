// Package logging builds the process-wide slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"fieldmap/internal/config"
)

// New returns the logger for the configured environment: colourised tint
// output on a developer machine, JSON everywhere else.
func New(cfg *config.Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	level, err := cfg.SlogLevel()

	var logger *slog.Logger
	if cfg.IsLocal() {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		logger = slog.New(h).With("app", cfg.Service)
	} else {
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
		logger = slog.New(h).With(
			"app", cfg.Service,
			"version", cfg.Build.Version,
			"env", cfg.Environment,
		)
	}

	if err != nil {
		logger.Warn("falling back to info log level", "error", err)
	}
	return logger
}
