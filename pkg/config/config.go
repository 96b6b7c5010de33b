package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of all environment overrides.
const EnvPrefix = "PRICECHECK"

// DefaultPath returns the per user config location, creating the parent
// directory when needed.
func DefaultPath() (string, error) {
	return xdg.ConfigFile("poe-price-checker/config.yaml")
}

// Load loads configuration from a YAML file and environment variables.
// Environment overrides win over file values.
func Load(path string) (*Config, error) {
	// Validate and sanitize path
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand ${VAR} references in the YAML before parsing
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.League == "" {
		cfg.League = "Standard"
	}

	// Server defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.WebSocket.Enabled && cfg.Server.WebSocket.Addr == "" {
		cfg.Server.WebSocket.Addr = ":8081"
	}
	if cfg.Server.ResolveTimeout.ToDuration() == 0 {
		cfg.Server.ResolveTimeout = Duration(5 * time.Second)
	}

	// Engine defaults
	if cfg.Reconcile.Threshold == 0 {
		cfg.Reconcile.Threshold = 0.20
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff.ToDuration() == 0 {
		cfg.Retry.InitialBackoff = Duration(2 * time.Second)
	}
	if cfg.Retry.MaxSleep.ToDuration() == 0 {
		cfg.Retry.MaxSleep = Duration(8 * time.Second)
	}
	if cfg.RateLimit.DefaultInterval.ToDuration() == 0 {
		cfg.RateLimit.DefaultInterval = Duration(900 * time.Millisecond)
	}
	if cfg.Display.DivineRefresh.ToDuration() == 0 {
		cfg.Display.DivineRefresh = Duration(10 * time.Minute)
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// applyEnvOverrides lets tests and deployments pin single knobs without
// editing the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "_LEAGUE"); v != "" {
		cfg.League = v
	}
	if v := os.Getenv(EnvPrefix + "_HTTP_ADDR"); v != "" {
		cfg.Server.HTTP.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "_RECONCILE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Reconcile.Threshold = f
		}
	}
	if v := os.Getenv(EnvPrefix + "_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv(EnvPrefix + "_RETRY_INITIAL_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.InitialBackoff = Duration(d)
		}
	}
	if v := os.Getenv(EnvPrefix + "_RETRY_MAX_SLEEP"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.MaxSleep = Duration(d)
		}
	}
	if v := os.Getenv(EnvPrefix + "_RATE_LIMIT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.DefaultInterval = Duration(d)
		}
	}
}

// PrimarySource returns the enabled source configured as primary, nil when
// absent. Validate guarantees presence for loaded configs.
func (c *Config) PrimarySource() *SourceConfig {
	return c.sourceByRole(RolePrimary)
}

// SecondarySource returns the enabled source configured as secondary, nil
// when absent.
func (c *Config) SecondarySource() *SourceConfig {
	return c.sourceByRole(RoleSecondary)
}

func (c *Config) sourceByRole(role string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].Enabled && c.Sources[i].Role == role {
			return &c.Sources[i]
		}
	}
	return nil
}
