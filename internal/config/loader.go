// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// loaderDeps holds the injectable dependencies for the loader.
type loaderDeps struct {
	// loadDotenv loads the named files into the environment without
	// overriding variables that are already set.
	loadDotenv func(filenames ...string) error
	dotenvFile string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		loadDotenv: godotenv.Load,
		dotenvFile: ".env",
	}
}

// LoadConfig loads and validates the service configuration.
func LoadConfig() (*Config, error) {
	return loadConfigWithDeps(defaultDeps())
}

func loadConfigWithDeps(deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	if deps.loadDotenv != nil {
		if err := deps.loadDotenv(deps.dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{
				Type:    ErrDotenv,
				Message: fmt.Sprintf("failed to load %s", deps.dotenvFile),
				Err:     err,
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}
