package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/hostkit/pkg/session"
)

// ============================================================================
// Conformance
// ============================================================================

// runConformance exercises a persistence strategy through a save/load cycle.
func runConformance(t *testing.T, s session.PersistenceStrategy) {
	t.Helper()
	ctx := context.Background()

	t.Run("EmptyLoad", func(t *testing.T) {
		records, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	now := time.Now().UTC().Truncate(time.Millisecond)
	records := []session.Record{
		{ID: "a", CreatedAt: now.Add(-time.Hour), LastAccess: now, Attributes: map[string]string{"user": "alice"}},
		{ID: "b", CreatedAt: now, LastAccess: now},
	}

	t.Run("SaveThenLoad", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, records))

		loaded, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 2)

		byID := map[string]session.Record{}
		for _, r := range loaded {
			byID[r.ID] = r
		}
		assert.Equal(t, "alice", byID["a"].Attributes["user"])
		assert.WithinDuration(t, now, byID["a"].LastAccess, time.Second)
		assert.Empty(t, byID["b"].Attributes)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, records[1:]))

		loaded, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, "b", loaded[0].ID)
	})

	t.Run("SaveEmptyClears", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, nil))

		loaded, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, loaded)
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	defer s.Close()
	runConformance(t, s)
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	attrs := map[string]string{"k": "v"}
	require.NoError(t, s.Save(context.Background(), []session.Record{{ID: "x", Attributes: attrs}}))
	attrs["k"] = "changed"

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v", loaded[0].Attributes["k"])
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	s, err := New(&Config{Type: TypeSQLite, SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "sessions.db")}})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "sqlite", s.Name())
	runConformance(t, s)
}

func TestBadgerStore(t *testing.T) {
	t.Parallel()

	s, err := New(&Config{Type: TypeBadger, Badger: BadgerConfig{Path: t.TempDir()}})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "badger", s.Name())
	runConformance(t, s)
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================================
// Config
// ============================================================================

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, TypeMemory, cfg.Type)

	pg := Config{Type: TypePostgres}
	pg.ApplyDefaults()
	assert.Equal(t, 5432, pg.Postgres.Port)
	assert.Equal(t, "disable", pg.Postgres.SSLMode)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: TypeMemory}, ""},
		{"sqlite without path", Config{Type: TypeSQLite}, "sqlite path"},
		{"badger without path", Config{Type: TypeBadger}, "badger path"},
		{"s3 without bucket", Config{Type: TypeS3}, "s3 bucket"},
		{"postgres without host", Config{Type: TypePostgres, Postgres: PostgresConfig{Database: "d", User: "u"}}, "postgres host"},
		{"unknown", Config{Type: "redis"}, "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()

	c := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "s", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=s sslmode=require", c.DSN())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{Type: TypeSQLite})
	assert.Error(t, err)
}
