package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/hostkit/internal/bytesize"
	sessionstore "github.com/marmos91/hostkit/pkg/session/store"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_MinimalConfig(t *testing.T) {
	dataDir := t.TempDir()
	configPath := writeConfig(t, `
data_directory: "`+yamlSafePath(dataDir)+`"
logging:
  level: "info"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.DataDirectory != dataDir && cfg.DataDirectory != yamlSafePath(dataDir) {
		t.Errorf("Expected data directory %q, got %q", dataDir, cfg.DataDirectory)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected level normalized to INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("Expected default shutdown_timeout %v, got %v", DefaultShutdownTimeout, cfg.ShutdownTimeout)
	}
	if cfg.WebApp.Port != DefaultWebAppPort {
		t.Errorf("Expected webapp port %d, got %d", DefaultWebAppPort, cfg.WebApp.Port)
	}
	if cfg.WebService.Port != DefaultWebServicePort {
		t.Errorf("Expected webservice port %d, got %d", DefaultWebServicePort, cfg.WebService.Port)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected metrics enabled by default")
	}
	if cfg.Session.Store.Type != sessionstore.TypeMemory {
		t.Errorf("Expected memory session store, got %q", cfg.Session.Store.Type)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	dataDir := t.TempDir()
	configPath := writeConfig(t, `
data_directory: "`+yamlSafePath(dataDir)+`"
listen_address: "127.0.0.1"
shutdown_timeout: 5s
webapp:
  port: 8080
  realm: ops
  idle_timeout: 30s
  max_header_bytes: 64KiB
webservice:
  port: 8081
  address: "::1"
multicast:
  address: "239.1.2.3"
  port: 9999
  buffer_size: 8192
etc:
  directories: ["`+yamlSafePath(dataDir)+`"]
  filter: "*.json"
  watch: true
session:
  cookie_name: SID
  idle_timeout: 5m
  store:
    type: sqlite
identity:
  realms:
    ops:
      type: static
      users:
        - username: alice
          password_hash: "$2a$10$abcdefghijklmnopqrstuv"
          roles: [admin]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown_timeout 5s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.WebApp.Port != 8080 || cfg.WebApp.Realm != "ops" {
		t.Errorf("Unexpected webapp config: %+v", cfg.WebApp)
	}
	if cfg.WebApp.MaxHeaderBytes != 64*bytesize.KiB {
		t.Errorf("Expected max_header_bytes 64KiB, got %v", cfg.WebApp.MaxHeaderBytes)
	}
	if cfg.WebApp.IdleTimeout != 30*time.Second {
		t.Errorf("Expected webapp idle_timeout 30s, got %v", cfg.WebApp.IdleTimeout)
	}
	if cfg.ConnectorAddress(cfg.WebService) != "::1" {
		t.Errorf("Expected webservice address ::1, got %q", cfg.ConnectorAddress(cfg.WebService))
	}
	if cfg.ConnectorAddress(cfg.WebApp) != "127.0.0.1" {
		t.Errorf("Expected webapp to fall back to listen_address, got %q", cfg.ConnectorAddress(cfg.WebApp))
	}
	if cfg.Multicast.BufferSize != 8192 {
		t.Errorf("Expected buffer_size 8192, got %v", cfg.Multicast.BufferSize)
	}
	if !cfg.Etc.Watch || cfg.Etc.Filter != "*.json" || len(cfg.Etc.Directories) != 1 {
		t.Errorf("Unexpected etc config: %+v", cfg.Etc)
	}
	if cfg.Session.CookieName != "SID" || cfg.Session.IdleTimeout != 5*time.Minute {
		t.Errorf("Unexpected session config: %+v", cfg.Session)
	}
	wantDB := filepath.Join(cfg.DataDirectory, "sessions.db")
	if cfg.Session.Store.SQLite.Path != wantDB {
		t.Errorf("Expected sqlite path %q, got %q", wantDB, cfg.Session.Store.SQLite.Path)
	}
	ops, ok := cfg.Identity.Realms["ops"]
	if !ok || len(ops.Users) != 1 || ops.Users[0].Roles[0] != "admin" {
		t.Errorf("Unexpected realm config: %+v", cfg.Identity.Realms)
	}
}

func TestLoad_ShortBinarySizes(t *testing.T) {
	dataDir := t.TempDir()
	configPath := writeConfig(t, `
data_directory: "`+yamlSafePath(dataDir)+`"
webapp:
  max_header_bytes: 64Ki
multicast:
  buffer_size: 1Mi
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.WebApp.MaxHeaderBytes != 64*bytesize.KiB {
		t.Errorf("Expected max_header_bytes 64KiB, got %v", cfg.WebApp.MaxHeaderBytes)
	}
	if cfg.Multicast.BufferSize != bytesize.MiB {
		t.Errorf("Expected buffer_size 1MiB, got %v", cfg.Multicast.BufferSize)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	configPath := writeConfig(t, `
data_directory: "`+yamlSafePath(t.TempDir())+`"
logging:
  level: INFO
`)
	t.Setenv("HOSTKIT_LOGGING_LEVEL", "DEBUG")
	t.Setenv("HOSTKIT_WEBAPP_PORT", "7070")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected env override level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.WebApp.Port != 7070 {
		t.Errorf("Expected env override port 7070, got %d", cfg.WebApp.Port)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad log level",
			content: "logging:\n  level: LOUD\n",
			wantErr: "validation failed",
		},
		{
			name:    "undeclared realm",
			content: "webapp:\n  realm: nowhere\n",
			wantErr: "not declared",
		},
		{
			name:    "bad byte size",
			content: "webapp:\n  max_header_bytes: lots\n",
			wantErr: "unmarshal",
		},
		{
			name:    "malformed yaml",
			content: "webapp: [\n",
			wantErr: "read config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.WebApp.Port != DefaultWebAppPort {
		t.Errorf("Expected default webapp port, got %d", cfg.WebApp.Port)
	}
}

func TestMustLoad_RequiresFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := MustLoad(""); err == nil || !strings.Contains(err.Error(), "hostkit init") {
		t.Errorf("Expected init hint, got %v", err)
	}
	if _, err := MustLoad(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing explicit path")
	}
}

func TestInitConfig_RoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if path != GetDefaultConfigPath() {
		t.Errorf("Expected default path %q, got %q", GetDefaultConfigPath(), path)
	}
	if !DefaultConfigExists() {
		t.Fatal("Expected default config to exist")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	if _, err := InitConfig(false); err == nil {
		t.Error("Expected error when config exists without force")
	}
	if _, err := InitConfig(true); err != nil {
		t.Errorf("Expected force to overwrite, got %v", err)
	}

	cfg, err := MustLoad("")
	if err != nil {
		t.Fatalf("Failed to load generated config: %v", err)
	}
	def := GetDefaultConfig()
	if cfg.WebApp.Port != def.WebApp.Port || cfg.ShutdownTimeout != def.ShutdownTimeout {
		t.Errorf("Generated config does not match defaults: %+v", cfg)
	}
	if cfg.Multicast.BufferSize != DefaultUDPBufferSize {
		t.Errorf("Expected buffer size %v, got %v", DefaultUDPBufferSize, cfg.Multicast.BufferSize)
	}
}
