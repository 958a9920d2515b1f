// Package config defines the global configuration structure for the beneplan
// platform. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"beneplan/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the beneplan platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require
// (Least Privilege principle).
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"beneplan-checkout"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Loyalty  LoyaltyConfig
	Sweep    SweepConfig
	Catalog  CatalogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`     // Fail fast when pool exhausted
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"` // Detect dead connections during failover
	MigrationsPath    string        `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`
}

// GatewayConfig holds billing gateway credentials and connection settings.
// The API key is sent as the username of an HTTP basic authorization header
// with a blank password.
type GatewayConfig struct {
	APIKey  SecretString `envconfig:"GATEWAY_API_KEY" validate:"required"`
	BaseURL string       `envconfig:"GATEWAY_BASE_URL" default:"https://api.gateway.example.com/v1"`

	// WebhookToken is the shared secret the gateway echoes back in payment
	// event payloads. Mismatched tokens are rejected with 401.
	WebhookToken SecretString `envconfig:"GATEWAY_WEBHOOK_TOKEN" validate:"required"`

	Timeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
}

// LoyaltyConfig holds loyalty platform credentials and connection settings.
type LoyaltyConfig struct {
	APIKey  SecretString  `envconfig:"LOYALTY_API_KEY" validate:"required"`
	BaseURL string        `envconfig:"LOYALTY_BASE_URL" default:"https://api.loyalty.example.com"`
	Timeout time.Duration `envconfig:"LOYALTY_TIMEOUT" default:"30s"`
}

// SweepConfig holds settings for the payment reconciliation sweep.
type SweepConfig struct {
	// Secret guards the HTTP sweep trigger when invoked over a non-trusted
	// channel. Trusted schedulers invoking cmd/sweeper do not need it.
	Secret SecretString `envconfig:"SWEEP_SECRET" validate:"required"`

	// Window is how far back pending subscriptions are considered. 72 hours
	// covers slow bank-slip confirmation latency.
	Window time.Duration `envconfig:"SWEEP_WINDOW" default:"72h"`

	// BatchLimit caps the number of pending rows examined per run.
	BatchLimit int `envconfig:"SWEEP_BATCH_LIMIT" default:"100"`

	// Parallelism bounds the number of rows reconciled concurrently. Rows
	// are independent and the activator is idempotent, so values above 1
	// are safe.
	Parallelism int `envconfig:"SWEEP_PARALLELISM" default:"4"`
}

// CatalogConfig holds settings for the plan catalog synchronizer.
type CatalogConfig struct {
	// PageLimit caps how many plans are fetched from the gateway and from
	// the local store per sync run.
	PageLimit int `envconfig:"CATALOG_PAGE_LIMIT" default:"100"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
