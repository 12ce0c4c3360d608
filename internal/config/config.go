// Package config defines the process configuration for the wakebell
// engine. Configuration is loaded once at startup and is immutable
// thereafter, following 12-Factor principles: values come from the OS
// environment, with an optional .env file for local development.
//
// A missing required value or an invalid format fails the load; callers
// are expected to treat that as fatal.
package config

import (
	"time"

	"wakebell/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret
// type used for sensitive configuration values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once
// during initialization and never modified. Components receive only the
// subsets they need.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"wakebell-engine"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain configurations
	Engine    EngineConfig
	Database  DatabaseConfig
	Telemetry TelemetryConfig
	AWS       AWSConfig

	// Build metadata (injected via ldflags, not env)
	Build BuildInfo
}

// EngineConfig holds scheduling and reliability tuning parameters.
type EngineConfig struct {
	SnoozeDuration time.Duration `envconfig:"SNOOZE_DURATION" default:"9m"`
	SnoozeMaxCount int           `envconfig:"SNOOZE_MAX_COUNT" default:"3" validate:"min=1,max=10"`

	// Per-call deadline for notification gateway operations.
	GatewayCallTimeout time.Duration `envconfig:"GATEWAY_CALL_TIMEOUT" default:"5s"`

	// Transient failure retry tuning.
	RetryBaseDelay     time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
	RetryMaxDelay      time.Duration `envconfig:"RETRY_MAX_DELAY" default:"30s"`
	RetryBackoffFactor float64       `envconfig:"RETRY_BACKOFF_FACTOR" default:"2.0" validate:"gte=1"`

	// Concurrent alarms processed during a bulk reschedule pass.
	RescheduleParallelism int `envconfig:"RESCHEDULE_PARALLELISM" default:"4" validate:"min=1"`
}

// DatabaseConfig holds connection and pool tuning parameters for the
// durable state store. URL is optional: when empty the engine runs on
// the in-memory store.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"5"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// TelemetryConfig holds metric emission settings.
type TelemetryConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Wakebell/Engine"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// AWSConfig holds regional configuration for the CloudWatch metrics
// client.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack support (empty in prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
