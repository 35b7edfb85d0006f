// Package store provides session persistence strategies: in-process memory,
// SQL databases through GORM (SQLite, PostgreSQL) and BadgerDB.
package store

import (
	"fmt"
)

// Type selects a persistence backend.
type Type string

const (
	// TypeMemory keeps sessions in process memory; they survive a stop/start
	// of the web application but not a process restart.
	TypeMemory Type = "memory"

	// TypeSQLite persists sessions in a local SQLite file.
	TypeSQLite Type = "sqlite"

	// TypePostgres persists sessions in PostgreSQL.
	TypePostgres Type = "postgres"

	// TypeBadger persists sessions in an embedded BadgerDB directory.
	TypeBadger Type = "badger"

	// TypeS3 persists sessions as one object in an S3 bucket.
	TypeS3 Type = "s3"
)

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// PostgresConfig contains PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host,omitempty"`
	Port         int    `mapstructure:"port" yaml:"port,omitempty"`
	Database     string `mapstructure:"database" yaml:"database,omitempty"`
	User         string `mapstructure:"user" yaml:"user,omitempty"`
	Password     string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode      string `mapstructure:"sslmode" yaml:"sslmode,omitempty"` // disable, require, verify-ca, verify-full
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns,omitempty"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns,omitempty"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)
	if c.SSLMode != "" {
		dsn += " sslmode=" + c.SSLMode
	}
	return dsn
}

// BadgerConfig contains BadgerDB-specific configuration.
type BadgerConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// S3Config contains S3-specific configuration.
type S3Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket,omitempty"`

	// KeyPrefix is prepended to the object key (e.g. "hostkit/").
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint is the S3 endpoint URL for S3-compatible services.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// Config selects and configures a persistence backend.
type Config struct {
	Type     Type           `mapstructure:"type" yaml:"type"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite,omitempty"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty"`
	Badger   BadgerConfig   `mapstructure:"badger" yaml:"badger,omitempty"`
	S3       S3Config       `mapstructure:"s3" yaml:"s3,omitempty"`
}

// ApplyDefaults fills in backend defaults. Paths are left to the caller,
// which knows the data directory.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeMemory
	}
	if c.Type == TypePostgres {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.Postgres.MaxOpenConns == 0 {
			c.Postgres.MaxOpenConns = 10
		}
		if c.Postgres.MaxIdleConns == 0 {
			c.Postgres.MaxIdleConns = 2
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Type {
	case TypeMemory:
	case TypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case TypePostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	case TypeBadger:
		if c.Badger.Path == "" {
			return fmt.Errorf("badger path is required")
		}
	case TypeS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
	default:
		return fmt.Errorf("unsupported session store type: %s", c.Type)
	}
	return nil
}
