package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func validConfig() *Config {
	cfg := &Config{
		League: "Standard",
		Sources: []SourceConfig{
			{Type: "bulk", Name: "ninja", Role: RolePrimary, Enabled: true},
			{Type: "search", Name: "trade", Role: RoleSecondary, Enabled: true},
		},
	}
	applyDefaults(cfg)
	return cfg
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
league: Ancestor
sources:
  - type: bulk
    name: ninja
    role: primary
    enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.League != "Ancestor" {
		t.Errorf("Expected league Ancestor, got %q", cfg.League)
	}
	if cfg.Server.HTTP.Addr != ":8080" {
		t.Errorf("Expected default http addr :8080, got %q", cfg.Server.HTTP.Addr)
	}
	if cfg.Server.ResolveTimeout.ToDuration() != 5*time.Second {
		t.Errorf("Expected default resolve timeout 5s, got %v", cfg.Server.ResolveTimeout.ToDuration())
	}
	if cfg.Reconcile.Threshold != 0.20 {
		t.Errorf("Expected default threshold 0.20, got %v", cfg.Reconcile.Threshold)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Expected default max attempts 3, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.InitialBackoff.ToDuration() != 2*time.Second {
		t.Errorf("Expected default initial backoff 2s, got %v", cfg.Retry.InitialBackoff.ToDuration())
	}
	if cfg.Retry.MaxSleep.ToDuration() != 8*time.Second {
		t.Errorf("Expected default max sleep 8s, got %v", cfg.Retry.MaxSleep.ToDuration())
	}
	if cfg.RateLimit.DefaultInterval.ToDuration() != 900*time.Millisecond {
		t.Errorf("Expected default interval 900ms, got %v", cfg.RateLimit.DefaultInterval.ToDuration())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stdout" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadParsesSourceConfigMaps(t *testing.T) {
	path := writeConfig(t, `
league: Standard
sources:
  - type: bulk
    name: ninja
    role: primary
    enabled: true
    config:
      cache_ttl: "10m"
      cache_max_entries: 512
  - type: search
    name: trade
    role: secondary
    enabled: true
    config:
      base_url: "https://example.test/api"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	primary := cfg.PrimarySource()
	if primary == nil || primary.Name != "ninja" {
		t.Fatalf("Expected ninja as primary, got %+v", primary)
	}
	if got := primary.Config["cache_ttl"]; got != "10m" {
		t.Errorf("Expected cache_ttl 10m, got %v", got)
	}
	if got := primary.Config["cache_max_entries"]; got != 512 {
		t.Errorf("Expected cache_max_entries 512, got %v", got)
	}

	secondary := cfg.SecondarySource()
	if secondary == nil || secondary.Name != "trade" {
		t.Fatalf("Expected trade as secondary, got %+v", secondary)
	}
	if got := secondary.Config["base_url"]; got != "https://example.test/api" {
		t.Errorf("Expected base_url to survive, got %v", got)
	}
}

func TestLoadExpandsEnvReferences(t *testing.T) {
	t.Setenv("POE_TEST_LEAGUE", "Hardcore")
	path := writeConfig(t, `
league: ${POE_TEST_LEAGUE}
sources:
  - type: bulk
    name: ninja
    role: primary
    enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.League != "Hardcore" {
		t.Errorf("Expected league from environment, got %q", cfg.League)
	}
}

func TestLoadEnvOverridesWin(t *testing.T) {
	t.Setenv("PRICECHECK_LEAGUE", "Ruthless")
	t.Setenv("PRICECHECK_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("PRICECHECK_RETRY_INITIAL_BACKOFF", "10ms")
	t.Setenv("PRICECHECK_RECONCILE_THRESHOLD", "0.35")

	path := writeConfig(t, `
league: Standard
retry:
  max_attempts: 2
sources:
  - type: bulk
    name: ninja
    role: primary
    enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.League != "Ruthless" {
		t.Errorf("Expected env league override, got %q", cfg.League)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Expected env attempts override, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.InitialBackoff.ToDuration() != 10*time.Millisecond {
		t.Errorf("Expected env backoff override, got %v", cfg.Retry.InitialBackoff.ToDuration())
	}
	if cfg.Reconcile.Threshold != 0.35 {
		t.Errorf("Expected env threshold override, got %v", cfg.Reconcile.Threshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected an error for a missing config file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "league: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("Expected an error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing league", func(c *Config) { c.League = "" }, ErrLeagueRequired},
		{"no sources", func(c *Config) { c.Sources = nil }, ErrNoSourcesConfigured},
		{"all disabled", func(c *Config) {
			for i := range c.Sources {
				c.Sources[i].Enabled = false
			}
		}, ErrNoSourcesEnabled},
		{"bad source type", func(c *Config) { c.Sources[0].Type = "scraper" }, ErrInvalidSourceType},
		{"missing source name", func(c *Config) { c.Sources[0].Name = "" }, ErrSourceNameRequired},
		{"bad role", func(c *Config) { c.Sources[0].Role = "tertiary" }, ErrInvalidSourceRole},
		{"duplicate role", func(c *Config) { c.Sources[1].Role = RolePrimary }, ErrDuplicateSourceRole},
		{"no primary", func(c *Config) { c.Sources[0].Role = "" }, ErrPrimarySourceRequired},
		{"threshold too high", func(c *Config) { c.Reconcile.Threshold = 1.5 }, ErrInvalidThreshold},
		{"threshold negative", func(c *Config) { c.Reconcile.Threshold = -0.2 }, ErrInvalidThreshold},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, ErrInvalidMaxAttempts},
		{"negative backoff", func(c *Config) { c.Retry.InitialBackoff = Duration(-time.Second) }, ErrInvalidBackoff},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
		{"tls incomplete", func(c *Config) { c.Server.HTTP.TLS.Enabled = true }, ErrTLSConfigIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Expected valid config, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSourceRoleAccessors(t *testing.T) {
	cfg := validConfig()

	if got := cfg.PrimarySource(); got == nil || got.Name != "ninja" {
		t.Errorf("Expected ninja as primary, got %+v", got)
	}
	if got := cfg.SecondarySource(); got == nil || got.Name != "trade" {
		t.Errorf("Expected trade as secondary, got %+v", got)
	}

	cfg.Sources[1].Enabled = false
	if got := cfg.SecondarySource(); got != nil {
		t.Errorf("Expected no secondary when disabled, got %+v", got)
	}
}
