// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
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

// LoadConfig loads, parses, and validates the full application configuration.
// It must be called exactly once during process initialization; the returned
// Config is immutable thereafter.
func LoadConfig() (*Config, error) {
	// Enforce UTC process-wide. All timestamps in the store and in gateway
	// payloads are UTC; a drifting local zone breaks window math in the sweep.
	time.Local = time.UTC

	// Load .env if present. Absence is not an error: production environments
	// inject real environment variables.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate applies the struct-level validation rules declared via tags.
func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return &ConfigError{
				Type:    ErrValidation,
				Message: fmt.Sprintf("%d configuration field(s) failed validation", len(verrs)),
				Err:     err,
			}
		}
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if cfg.Sweep.BatchLimit <= 0 {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "SWEEP_BATCH_LIMIT must be positive",
		}
	}
	if cfg.Sweep.Parallelism <= 0 {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "SWEEP_PARALLELISM must be positive",
		}
	}
	if cfg.Catalog.PageLimit <= 0 {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "CATALOG_PAGE_LIMIT must be positive",
		}
	}

	return nil
}
