package store

import (
	"context"
	"fmt"

	"github.com/marmos91/hostkit/pkg/session"
)

// New creates the persistence strategy selected by cfg.
func New(cfg *Config) (session.PersistenceStrategy, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session store configuration: %w", err)
	}

	switch cfg.Type {
	case TypeMemory:
		return NewMemoryStore(), nil
	case TypeSQLite, TypePostgres:
		return NewGORMStore(cfg)
	case TypeBadger:
		return NewBadgerStore(cfg.Badger.Path)
	case TypeS3:
		return NewS3Store(context.Background(), cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}
}
