package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/hostkit/internal/bytesize"
	sessionstore "github.com/marmos91/hostkit/pkg/session/store"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the hostkit server configuration.
//
// The configuration describes where the process keeps its data, which
// connectors it exposes (the session-based web application, the stateless
// web service API and the optional UDP packet listener), how identities are
// resolved per realm, and the ambient logging/telemetry/metrics settings.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (HOSTKIT_*, dots replaced by underscores)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// DataDirectory holds runtime state. It must exist and be a directory
	// before the server starts.
	DataDirectory string `mapstructure:"data_directory" validate:"required" yaml:"data_directory"`

	// ListenAddress is the default bind address for every connector that
	// does not set its own.
	ListenAddress string `mapstructure:"listen_address" validate:"required" yaml:"listen_address"`

	// WebApp configures the session-based HTTP application connector.
	WebApp ConnectorConfig `mapstructure:"webapp" yaml:"webapp"`

	// WebService configures the stateless HTTP API connector.
	WebService ConnectorConfig `mapstructure:"webservice" yaml:"webservice"`

	// Multicast configures the UDP packet listener socket.
	Multicast MulticastConfig `mapstructure:"multicast" yaml:"multicast"`

	// Etc lists directories scanned for ancillary configuration files.
	Etc EtcConfig `mapstructure:"etc" yaml:"etc"`

	Session SessionConfig `mapstructure:"session" yaml:"session"`

	Identity IdentityConfig `mapstructure:"identity" yaml:"identity"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout bounds the graceful drain of each HTTP connector.
	// Connections still open afterwards are closed forcibly.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// ConnectorConfig describes one HTTP connector.
type ConnectorConfig struct {
	// Port to listen on. Zero picks an ephemeral port.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// Address overrides Config.ListenAddress for this connector.
	Address string `mapstructure:"address" yaml:"address,omitempty"`

	// Realm names the identity realm guarding this connector. Empty means
	// no authentication.
	Realm string `mapstructure:"realm" yaml:"realm,omitempty"`

	// IdleTimeout closes keep-alive connections with no request in flight.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0" yaml:"idle_timeout"`

	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"gte=0" yaml:"read_timeout"`

	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0" yaml:"write_timeout"`

	// MaxHeaderBytes limits request header size (e.g. "1MiB").
	MaxHeaderBytes bytesize.ByteSize `mapstructure:"max_header_bytes" validate:"gte=0" yaml:"max_header_bytes"`
}

// MulticastConfig describes the UDP packet listener socket. When Address is
// empty the listener binds ListenAddress on the web service port.
type MulticastConfig struct {
	Address string `mapstructure:"address" validate:"omitempty,ip" yaml:"address,omitempty"`

	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// Interface is the network interface joined for multicast groups.
	Interface string `mapstructure:"interface" yaml:"interface,omitempty"`

	// BufferSize is the largest datagram accepted.
	BufferSize bytesize.ByteSize `mapstructure:"buffer_size" validate:"gte=0" yaml:"buffer_size"`
}

// EtcConfig lists ancillary configuration directories.
type EtcConfig struct {
	Directories []string `mapstructure:"directories" yaml:"directories,omitempty"`

	// Filter is a glob matched against file base names (e.g. "*.json").
	Filter string `mapstructure:"filter" yaml:"filter,omitempty"`

	// Watch logs changes to the directories while the server runs.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// SessionConfig configures web application sessions.
type SessionConfig struct {
	CookieName string `mapstructure:"cookie_name" validate:"required" yaml:"cookie_name"`

	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gt=0" yaml:"idle_timeout"`

	// Store selects where sessions are persisted across restarts.
	Store sessionstore.Config `mapstructure:"store" yaml:"store"`
}

// IdentityConfig maps realm names to their identity backends.
type IdentityConfig struct {
	Realms map[string]RealmConfig `mapstructure:"realms" validate:"dive" yaml:"realms,omitempty"`
}

// RealmConfig describes one identity realm.
type RealmConfig struct {
	// Type is "static" (bcrypt accounts, HTTP Basic), "jwt" (Bearer tokens)
	// or "kerberos" (SPNEGO Negotiate).
	Type string `mapstructure:"type" validate:"required,oneof=static jwt kerberos" yaml:"type"`

	Users []UserConfig `mapstructure:"users" validate:"dive" yaml:"users,omitempty"`

	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt,omitempty"`

	Kerberos KerberosConfig `mapstructure:"kerberos" yaml:"kerberos,omitempty"`
}

// UserConfig is one static account.
type UserConfig struct {
	Username string `mapstructure:"username" validate:"required" yaml:"username"`

	// PasswordHash is a bcrypt hash.
	PasswordHash string `mapstructure:"password_hash" validate:"required" yaml:"password_hash"`

	Roles []string `mapstructure:"roles" yaml:"roles,omitempty"`
}

// JWTConfig configures a Bearer token realm.
type JWTConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret,omitempty"`

	Issuer string `mapstructure:"issuer" yaml:"issuer,omitempty"`

	TokenDuration time.Duration `mapstructure:"token_duration" yaml:"token_duration,omitempty"`
}

// KerberosConfig configures a SPNEGO realm.
type KerberosConfig struct {
	// Keytab is the path of the service keytab.
	Keytab string `mapstructure:"keytab" yaml:"keytab,omitempty"`

	// ServicePrincipal is the expected SPN, e.g. "HTTP/app.example.com".
	ServicePrincipal string `mapstructure:"service_principal" yaml:"service_principal,omitempty"`

	MaxClockSkew time.Duration `mapstructure:"max_clock_skew" yaml:"max_clock_skew,omitempty"`

	// Roles maps client user names to roles.
	Roles map[string][]string `mapstructure:"roles" yaml:"roles,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint (e.g., "localhost:4317")
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig controls the management server exposing Prometheus
// metrics and connector statistics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	Address string `mapstructure:"address" yaml:"address"`

	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`
}

// Load loads configuration from file and environment variables.
//
// When configPath is empty the default location is tried; a missing file
// yields the default configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration and requires the file to exist, pointing the
// operator at "hostkit init" otherwise.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  hostkit init\n\n"+
				"Or specify a custom config file:\n"+
				"  hostkit <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  hostkit init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration as YAML with owner-only permissions,
// since realms may carry password hashes and signing secrets.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# hostkit configuration file\n# Environment variables prefixed with HOSTKIT_ override these values.\n\n")
	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// InitConfig writes the default configuration to the default location.
// An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}
	return SaveConfig(GetDefaultConfig(), path)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("HOSTKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("webapp.port", DefaultWebAppPort)
	v.SetDefault("webservice.port", DefaultWebServicePort)
	v.SetDefault("metrics.enabled", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook accepts "64KiB"-style strings as well as plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook accepts "30s"-style strings and integer nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hostkit")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "hostkit")
}

func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "hostkit")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", "hostkit")
}

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/hostkit/config.yaml.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default path.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory.
func GetConfigDir() string {
	return getConfigDir()
}

// ConnectorAddress returns the bind address of c, falling back to the
// process-wide ListenAddress.
func (c *Config) ConnectorAddress(cc ConnectorConfig) string {
	if cc.Address != "" {
		return cc.Address
	}
	return c.ListenAddress
}
