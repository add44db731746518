package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the regsweep configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (REGSWEEP_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Tokens have one extra source below env: credentials stored by
// `regsweep login`, resolved by the command layer.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// API configures the GitHub Packages API client (the version ledger)
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Registry configures the OCI registry client (ghcr.io)
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`

	// Sweep controls the reconciliation run itself
	Sweep SweepConfig `mapstructure:"sweep" yaml:"sweep"`

	// Metrics controls the optional prometheus textfile export
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stderr, stdout, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// APIConfig configures the GitHub Packages API client.
type APIConfig struct {
	// URL is the API base URL
	// Default: https://api.github.com
	URL string `mapstructure:"url" validate:"required,url" yaml:"url"`

	// Token is the GitHub token (PAT) used for API calls.
	// Resolved from, in order: --token flag, REGSWEEP_API_TOKEN, this field,
	// stored login credentials, GITHUB_TOKEN.
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// OwnerKind selects the package namespace: "user" or "org"
	// Default: user
	OwnerKind string `mapstructure:"owner_kind" validate:"required,oneof=user org" yaml:"owner_kind"`

	// PageSize is how many versions one enumeration page requests (max 100)
	// Default: 100
	PageSize int `mapstructure:"page_size" validate:"min=1,max=100" yaml:"page_size"`

	// RateLimit caps API requests per second; 0 disables the cap
	// Default: 10
	RateLimit int `mapstructure:"rate_limit" validate:"gte=0" yaml:"rate_limit"`

	// RetryMax is how many times failed requests are retried
	// Default: 3
	RetryMax int `mapstructure:"retry_max" validate:"gte=0" yaml:"retry_max"`

	// Timeout is the per-request timeout
	// Default: 30s
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0" yaml:"timeout"`
}

// RegistryConfig configures the OCI registry client.
type RegistryConfig struct {
	// URL is the registry base URL
	// Default: https://ghcr.io
	URL string `mapstructure:"url" validate:"required,url" yaml:"url"`

	// Token authenticates registry token exchanges. Empty falls back to the
	// API token, which is what ghcr.io expects anyway.
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// RateLimit caps registry requests per second; 0 disables the cap
	// Default: 20
	RateLimit int `mapstructure:"rate_limit" validate:"gte=0" yaml:"rate_limit"`

	// Timeout is the per-request timeout
	// Default: 30s
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0" yaml:"timeout"`
}

// SweepConfig controls the reconciliation run.
type SweepConfig struct {
	// Concurrency is how many index fetches (and deletions) run in parallel
	// Default: 5
	Concurrency int `mapstructure:"concurrency" validate:"required,min=1,max=64" yaml:"concurrency"`

	// QueueSize is the fetch scheduler's queue capacity
	// Default: 256
	QueueSize int `mapstructure:"queue_size" validate:"required,min=1" yaml:"queue_size"`
}

// MetricsConfig controls the prometheus textfile export.
// When Textfile is empty, no metrics file is written.
type MetricsConfig struct {
	// Textfile is the path of a node-exporter textfile written at the end
	// of a run. Empty disables the export.
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing config file is fine: environment variables and defaults alone
// make a valid configuration, which is how CI runs use this tool.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry tokens
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use REGSWEEP_ prefix and underscores
	// Example: REGSWEEP_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("REGSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind every key explicitly so env vars apply even without a config
	// file; AutomaticEnv alone only covers keys viper has seen.
	for _, key := range configKeys() {
		_ = v.BindEnv(key)
	}

	// Defaults whose zero value is a meaningful setting live here, where an
	// explicit zero survives them. ApplyDefaults fills the rest.
	v.SetDefault("api.rate_limit", 10)
	v.SetDefault("registry.rate_limit", 20)
	v.SetDefault("telemetry.insecure", true)

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/regsweep/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
}

// configKeys lists every configuration key for env binding.
func configKeys() []string {
	return []string{
		"logging.level", "logging.format", "logging.output",
		"api.url", "api.token", "api.owner_kind", "api.page_size",
		"api.rate_limit", "api.retry_max", "api.timeout",
		"registry.url", "registry.token", "registry.rate_limit", "registry.timeout",
		"sweep.concurrency", "sweep.queue_size",
		"metrics.textfile",
		"telemetry.enabled", "telemetry.endpoint", "telemetry.insecure", "telemetry.sample_rate",
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use env and defaults
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		// Other errors are problems
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to time.Duration
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse duration string like "30s", "5m", "1h"
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "regsweep")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "regsweep")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// config init command).
func GetConfigDir() string {
	return getConfigDir()
}
