package config

import (
	"strings"

	"github.com/marmos91/regsweep/pkg/ledger"
	"github.com/marmos91/regsweep/pkg/reconcile"
	"github.com/marmos91/regsweep/pkg/registry"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false) are replaced with defaults
//   - Explicit values are preserved
//
// Rate limits and telemetry.insecure are not handled here: their zero values
// are meaningful settings, so their defaults live in setupViper instead.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyAPIDefaults(&cfg.API)
	applyRegistryDefaults(&cfg.Registry)
	applySweepDefaults(&cfg.Sweep)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyAPIDefaults sets GitHub Packages API client defaults.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.URL == "" {
		cfg.URL = ledger.DefaultBaseURL
	}
	if cfg.OwnerKind == "" {
		cfg.OwnerKind = string(ledger.OwnerUser)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = ledger.DefaultPageSize
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = ledger.DefaultRetryMax
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = ledger.DefaultTimeout
	}
}

// applyRegistryDefaults sets OCI registry client defaults.
func applyRegistryDefaults(cfg *RegistryConfig) {
	if cfg.URL == "" {
		cfg.URL = registry.DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = registry.DefaultTimeout
	}
	// Token has no default: empty falls back to the API token at client
	// construction time.
}

// applySweepDefaults sets reconciliation run defaults.
func applySweepDefaults(cfg *SweepConfig) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = reconcile.DefaultWorkers
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = reconcile.DefaultQueueSize
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)
	// No need to set, zero value is false

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files (config init)
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		API: APIConfig{
			RateLimit: 10,
		},
		Registry: RegistryConfig{
			RateLimit: 20,
		},
		Telemetry: TelemetryConfig{
			Insecure: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
