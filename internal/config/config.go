// Package config defines the configuration of the FieldMap service.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved with the OS environment taking priority over a .env
// file in the working directory. Any missing required value or invalid
// format fails startup.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fieldmap/internal/types"
)

// SecretString is an alias for types.SecretString so that configuration
// secrets stay redacted in logs and JSON dumps.
type SecretString = types.SecretString

// Reading source kinds accepted by READINGS_SOURCE.
const (
	SourceFile     = "file"
	SourceS3       = "s3"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"fieldmap"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`

	// Domain Configurations
	Server        ServerConfig
	Geometry      GeometryConfig
	Readings      ReadingsConfig
	Interpolation InterpolationConfig
	AWS           AWSConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
}

// GeometryConfig locates the polygon template loaded at startup.
type GeometryConfig struct {
	Path string `envconfig:"GEOMETRY_PATH" validate:"required"`
}

// ReadingsConfig selects and configures the sensor reading source.
type ReadingsConfig struct {
	Source string `envconfig:"READINGS_SOURCE" default:"file" validate:"oneof=file s3 postgres sqlite"`

	Path        string       `envconfig:"READINGS_PATH" default:"./data/readings.csv" validate:"required_if=Source file"`
	Bucket      string       `envconfig:"READINGS_BUCKET" validate:"required_if=Source s3"`
	Key         string       `envconfig:"READINGS_KEY" validate:"required_if=Source s3"`
	DatabaseURL SecretString `envconfig:"DATABASE_URL" validate:"required_if=Source postgres"`
	SQLitePath  string       `envconfig:"SQLITE_PATH" validate:"required_if=Source sqlite"`

	Cache           bool          `envconfig:"READINGS_CACHE" default:"true"`
	RefreshInterval time.Duration `envconfig:"READINGS_REFRESH_INTERVAL" default:"15m"`
	LoadTimeout     time.Duration `envconfig:"READINGS_LOAD_TIMEOUT" default:"30s" validate:"gt=0"`

	BreakerFailures uint32        `envconfig:"READINGS_BREAKER_FAILURES" default:"3"`
	BreakerTimeout  time.Duration `envconfig:"READINGS_BREAKER_TIMEOUT" default:"30s"`
}

// Remote reports whether the source is reached over the network.
func (r ReadingsConfig) Remote() bool {
	return r.Source == SourceS3 || r.Source == SourcePostgres
}

// InterpolationConfig tunes the IDW interpolator.
type InterpolationConfig struct {
	Power   float64 `envconfig:"IDW_POWER" default:"2" validate:"gt=0"`
	Workers int     `envconfig:"INTERPOLATION_WORKERS" default:"0" validate:"min=0"`
	// Timeout bounds one interpolation request.
	Timeout time.Duration `envconfig:"INTERPOLATION_TIMEOUT" default:"30s"`
}

// AWSConfig holds AWS regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimitRPS       float64  `envconfig:"RATE_LIMIT_RPS" default:"10" validate:"gte=0"`
	RateLimitBurst     int      `envconfig:"RATE_LIMIT_BURST" default:"20" validate:"gte=0"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool          `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string        `envconfig:"METRIC_NAMESPACE" default:"FieldMap"`
	FlushInterval   time.Duration `envconfig:"METRICS_FLUSH_INTERVAL" default:"1m" validate:"gt=0"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// IsLocal reports whether the process runs on a developer machine.
func (c *Config) IsLocal() bool { return c.Environment == "local" }

// SlogLevel converts LogLevel to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", c.LogLevel)
	}
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrDotenv indicates a .env file exists but could not be parsed.
	ErrDotenv ConfigErrorType = "DOTENV_FAILED"
)
