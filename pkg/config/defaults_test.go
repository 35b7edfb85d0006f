package config

import (
	"path/filepath"
	"testing"
	"time"

	sessionstore "github.com/marmos91/hostkit/pkg/session/store"
)

func TestApplyDefaults_Empty(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/var/lib/test")

	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.DataDirectory != filepath.Join("/var/lib/test", "hostkit") {
		t.Errorf("Expected XDG data directory, got %q", cfg.DataDirectory)
	}
	if cfg.ListenAddress != DefaultListenAddress {
		t.Errorf("Expected listen address %q, got %q", DefaultListenAddress, cfg.ListenAddress)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("Expected shutdown timeout %v, got %v", DefaultShutdownTimeout, cfg.ShutdownTimeout)
	}

	// Ports stay zero so tests and embedders get ephemeral ports
	if cfg.WebApp.Port != 0 || cfg.WebService.Port != 0 {
		t.Errorf("Expected connector ports untouched, got %d/%d", cfg.WebApp.Port, cfg.WebService.Port)
	}
	if cfg.WebApp.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("Expected idle timeout %v, got %v", DefaultIdleTimeout, cfg.WebApp.IdleTimeout)
	}
	if cfg.WebService.MaxHeaderBytes != DefaultMaxHeaderBytes {
		t.Errorf("Expected max header bytes %v, got %v", DefaultMaxHeaderBytes, cfg.WebService.MaxHeaderBytes)
	}
	if cfg.Multicast.BufferSize != DefaultUDPBufferSize {
		t.Errorf("Expected UDP buffer %v, got %v", DefaultUDPBufferSize, cfg.Multicast.BufferSize)
	}
	if cfg.Session.CookieName != DefaultSessionCookie {
		t.Errorf("Expected cookie %q, got %q", DefaultSessionCookie, cfg.Session.CookieName)
	}
	if cfg.Session.IdleTimeout != DefaultSessionIdle {
		t.Errorf("Expected session idle %v, got %v", DefaultSessionIdle, cfg.Session.IdleTimeout)
	}
	if cfg.Session.Store.Type != sessionstore.TypeMemory {
		t.Errorf("Expected memory store, got %q", cfg.Session.Store.Type)
	}
	if cfg.Metrics.Enabled || cfg.Metrics.Port != 0 {
		t.Errorf("Expected metrics untouched when disabled, got %+v", cfg.Metrics)
	}
	if cfg.Telemetry.Enabled || cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Unexpected telemetry defaults: %+v", cfg.Telemetry)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		DataDirectory:   "/srv/data",
		ListenAddress:   "127.0.0.1",
		ShutdownTimeout: time.Second,
		WebApp:          ConnectorConfig{Port: 1234, IdleTimeout: time.Minute},
		Logging:         LoggingConfig{Level: "debug", Format: "json", Output: "stderr"},
		Metrics:         MetricsConfig{Enabled: true},
	}
	ApplyDefaults(cfg)

	if cfg.DataDirectory != "/srv/data" || cfg.ListenAddress != "127.0.0.1" {
		t.Errorf("Explicit paths overwritten: %q %q", cfg.DataDirectory, cfg.ListenAddress)
	}
	if cfg.ShutdownTimeout != time.Second {
		t.Errorf("Explicit shutdown timeout overwritten: %v", cfg.ShutdownTimeout)
	}
	if cfg.WebApp.Port != 1234 || cfg.WebApp.IdleTimeout != time.Minute {
		t.Errorf("Explicit connector values overwritten: %+v", cfg.WebApp)
	}
	if cfg.Logging.Level != "DEBUG" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Metrics.Port != DefaultMetricsPort || cfg.Metrics.Address != "127.0.0.1" {
		t.Errorf("Expected metrics defaults when enabled, got %+v", cfg.Metrics)
	}
}

func TestApplyDefaults_SessionStorePaths(t *testing.T) {
	tests := []struct {
		name  string
		store sessionstore.Type
		path  func(*Config) string
		want  string
	}{
		{
			name:  "sqlite",
			store: sessionstore.TypeSQLite,
			path:  func(c *Config) string { return c.Session.Store.SQLite.Path },
			want:  filepath.Join("/srv/data", "sessions.db"),
		},
		{
			name:  "badger",
			store: sessionstore.TypeBadger,
			path:  func(c *Config) string { return c.Session.Store.Badger.Path },
			want:  filepath.Join("/srv/data", "sessions"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DataDirectory: "/srv/data"}
			cfg.Session.Store.Type = tt.store
			ApplyDefaults(cfg)
			if got := tt.path(cfg); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestApplyDefaults_JWTRealm(t *testing.T) {
	cfg := &Config{
		Identity: IdentityConfig{Realms: map[string]RealmConfig{
			"api":    {Type: "jwt"},
			"static": {Type: "static"},
		}},
	}
	ApplyDefaults(cfg)

	api := cfg.Identity.Realms["api"]
	if api.JWT.Issuer != "hostkit" || api.JWT.TokenDuration != time.Hour {
		t.Errorf("Unexpected JWT defaults: %+v", api.JWT)
	}
	if cfg.Identity.Realms["static"].JWT.Issuer != "" {
		t.Error("Static realm should not get JWT defaults")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.WebApp.Port != DefaultWebAppPort || cfg.WebService.Port != DefaultWebServicePort {
		t.Errorf("Expected well-known ports, got %d/%d", cfg.WebApp.Port, cfg.WebService.Port)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Expected metrics enabled on %d, got %+v", DefaultMetricsPort, cfg.Metrics)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}
