package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if cfg.League == "" {
		return ErrLeagueRequired
	}

	if err := validateServerConfig(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateEngineConfig(cfg); err != nil {
		return err
	}

	if err := validateSources(cfg.Sources); err != nil {
		return err
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.Cert == "" || cfg.HTTP.TLS.Key == "" {
			return ErrTLSConfigIncomplete
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Cert); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSCertNotFound, cfg.HTTP.TLS.Cert)
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Key); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSKeyNotFound, cfg.HTTP.TLS.Key)
		}
	}
	return nil
}

func validateEngineConfig(cfg *Config) error {
	if cfg.Reconcile.Threshold <= 0 || cfg.Reconcile.Threshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, cfg.Reconcile.Threshold)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxAttempts, cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.InitialBackoff.ToDuration() <= 0 || cfg.Retry.MaxSleep.ToDuration() <= 0 {
		return ErrInvalidBackoff
	}
	return nil
}

func validateSources(sources []SourceConfig) error {
	if len(sources) == 0 {
		return ErrNoSourcesConfigured
	}

	enabled := 0
	roles := make(map[string]string)
	for i, source := range sources {
		if err := validateSourceConfig(&source); err != nil {
			return fmt.Errorf("source %d (%s.%s): %w", i, source.Type, source.Name, err)
		}
		if !source.Enabled {
			continue
		}
		enabled++
		if source.Role != "" {
			if other, taken := roles[source.Role]; taken {
				return fmt.Errorf("%w: %s claimed by %s and %s",
					ErrDuplicateSourceRole, source.Role, other, source.Name)
			}
			roles[source.Role] = source.Name
		}
	}

	if enabled == 0 {
		return ErrNoSourcesEnabled
	}
	if _, ok := roles[RolePrimary]; !ok {
		return ErrPrimarySourceRequired
	}
	return nil
}

func validateSourceConfig(cfg *SourceConfig) error {
	switch strings.ToLower(cfg.Type) {
	case "bulk", "search":
	default:
		return fmt.Errorf("%w: %s (must be 'bulk' or 'search')", ErrInvalidSourceType, cfg.Type)
	}

	if cfg.Name == "" {
		return ErrSourceNameRequired
	}

	switch cfg.Role {
	case "", RolePrimary, RoleSecondary:
	default:
		return fmt.Errorf("%w: %s (must be 'primary' or 'secondary')", ErrInvalidSourceRole, cfg.Role)
	}

	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %s (must be one of: debug, info, warn, error)", ErrInvalidLogLevel, cfg.Level)
	}

	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
