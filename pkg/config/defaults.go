package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/hostkit/internal/bytesize"
	sessionstore "github.com/marmos91/hostkit/pkg/session/store"
)

// Default connector settings.
const (
	DefaultWebAppPort      = 9090
	DefaultWebServicePort  = 9091
	DefaultMetricsPort     = 9100
	DefaultListenAddress   = "0.0.0.0"
	DefaultIdleTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultSessionCookie   = "HOSTKIT_SESSION"
	DefaultSessionIdle     = 30 * time.Minute
	DefaultUDPBufferSize   = 64 * bytesize.KiB
	DefaultMaxHeaderBytes  = 1 * bytesize.MiB
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
// Connector ports are not touched here because zero selects an ephemeral
// port; Load seeds the well-known ports through viper defaults instead.
func ApplyDefaults(cfg *Config) {
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = getDataDir()
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	applyConnectorDefaults(&cfg.WebApp)
	applyConnectorDefaults(&cfg.WebService)
	applyMulticastDefaults(&cfg.Multicast)
	applySessionDefaults(&cfg.Session, cfg.DataDirectory)
	applyIdentityDefaults(&cfg.Identity)
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyConnectorDefaults(cfg *ConnectorConfig) {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
}

func applyMulticastDefaults(cfg *MulticastConfig) {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultUDPBufferSize
	}
}

func applySessionDefaults(cfg *SessionConfig, dataDir string) {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookie
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultSessionIdle
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = sessionstore.TypeMemory
	}
	if cfg.Store.Type == sessionstore.TypeSQLite && cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = filepath.Join(dataDir, "sessions.db")
	}
	if cfg.Store.Type == sessionstore.TypeBadger && cfg.Store.Badger.Path == "" {
		cfg.Store.Badger.Path = filepath.Join(dataDir, "sessions")
	}
	cfg.Store.ApplyDefaults()
}

func applyIdentityDefaults(cfg *IdentityConfig) {
	for name, realm := range cfg.Realms {
		if realm.Type == "jwt" {
			if realm.JWT.Issuer == "" {
				realm.JWT.Issuer = "hostkit"
			}
			if realm.JWT.TokenDuration == 0 {
				realm.JWT.TokenDuration = time.Hour
			}
		}
		cfg.Realms[name] = realm
	}
}

// applyLoggingDefaults sets logging defaults and normalizes the level to
// upper case.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry and Pyroscope defaults. Both
// stay disabled unless explicitly enabled.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1"
	}
}

// GetDefaultConfig returns a Config with all default values applied,
// including the well-known connector ports.
func GetDefaultConfig() *Config {
	cfg := &Config{
		WebApp:     ConnectorConfig{Port: DefaultWebAppPort},
		WebService: ConnectorConfig{Port: DefaultWebServicePort},
		Metrics:    MetricsConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
