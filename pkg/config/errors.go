// Package config provides configuration loading and validation for the
// price checker daemon.
package config

import "errors"

var (
	// ErrLeagueRequired indicates that no league is configured.
	ErrLeagueRequired = errors.New("league must be specified")
	// ErrNoSourcesConfigured indicates that no price sources are configured.
	ErrNoSourcesConfigured = errors.New("at least one price source must be configured")
	// ErrNoSourcesEnabled indicates that every configured source is disabled.
	ErrNoSourcesEnabled = errors.New("at least one price source must be enabled")
	// ErrSourceNameRequired indicates that a source has no name.
	ErrSourceNameRequired = errors.New("source name must be specified")
	// ErrInvalidSourceType indicates that the source type is invalid.
	ErrInvalidSourceType = errors.New("invalid source type")
	// ErrInvalidSourceRole indicates that the source role is invalid.
	ErrInvalidSourceRole = errors.New("invalid source role")
	// ErrPrimarySourceRequired indicates that no enabled source has the primary role.
	ErrPrimarySourceRequired = errors.New("exactly one enabled source must have the primary role")
	// ErrDuplicateSourceRole indicates that a role is claimed by two enabled sources.
	ErrDuplicateSourceRole = errors.New("each source role may be used by at most one enabled source")
	// ErrTLSConfigIncomplete indicates that TLS config is incomplete.
	ErrTLSConfigIncomplete = errors.New("TLS cert and key must be specified when TLS is enabled")
	// ErrTLSCertNotFound indicates that the TLS cert file was not found.
	ErrTLSCertNotFound = errors.New("TLS cert file not found")
	// ErrTLSKeyNotFound indicates that the TLS key file was not found.
	ErrTLSKeyNotFound = errors.New("TLS key file not found")
	// ErrInvalidThreshold indicates that the reconcile threshold is out of range.
	ErrInvalidThreshold = errors.New("reconcile threshold must be in (0, 1]")
	// ErrInvalidMaxAttempts indicates that retry max_attempts is out of range.
	ErrInvalidMaxAttempts = errors.New("retry max_attempts must be >= 1")
	// ErrInvalidBackoff indicates that a retry backoff duration is out of range.
	ErrInvalidBackoff = errors.New("retry backoff durations must be positive")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
