package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/hostkit/pkg/session"
)

// sessionRow is the SQL representation of a persisted session.
type sessionRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	CreatedAt  time.Time `gorm:"not null"`
	LastAccess time.Time `gorm:"not null;index"`
	Attributes string    `gorm:"type:text"`
}

func (sessionRow) TableName() string { return "sessions" }

// GORMStore persists sessions in SQLite or PostgreSQL.
type GORMStore struct {
	db   *gorm.DB
	kind Type
}

// NewGORMStore opens the database described by cfg and migrates the
// sessions table: versioned migrations on PostgreSQL, AutoMigrate on SQLite.
func NewGORMStore(cfg *Config) (*GORMStore, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case TypeSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL lets readers proceed while the single writer persists.
		dsn := cfg.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)
	case TypePostgres:
		if err := runMigrations(context.Background(), cfg.Postgres.DSN()); err != nil {
			return nil, err
		}
		dialector = postgres.Open(cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Type == TypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}

	if cfg.Type == TypeSQLite {
		if err := db.AutoMigrate(&sessionRow{}); err != nil {
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}
	}

	return &GORMStore{db: db, kind: cfg.Type}, nil
}

func (s *GORMStore) Name() string { return string(s.kind) }

func (s *GORMStore) Load(ctx context.Context) ([]session.Record, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]session.Record, 0, len(rows))
	for _, row := range rows {
		r := session.Record{ID: row.ID, CreatedAt: row.CreatedAt, LastAccess: row.LastAccess}
		if row.Attributes != "" {
			if err := json.Unmarshal([]byte(row.Attributes), &r.Attributes); err != nil {
				return nil, fmt.Errorf("session %s: decode attributes: %w", row.ID, err)
			}
		}
		records = append(records, r)
	}
	return records, nil
}

// Save replaces the table content in one transaction.
func (s *GORMStore) Save(ctx context.Context, records []session.Record) error {
	rows := make([]sessionRow, 0, len(records))
	for _, r := range records {
		attrs, err := json.Marshal(r.Attributes)
		if err != nil {
			return fmt.Errorf("session %s: encode attributes: %w", r.ID, err)
		}
		rows = append(rows, sessionRow{
			ID:         r.ID,
			CreatedAt:  r.CreatedAt,
			LastAccess: r.LastAccess,
			Attributes: string(attrs),
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&sessionRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
