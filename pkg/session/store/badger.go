package store

import (
	"context"
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/hostkit/pkg/session"
)

const prefixSession = "session:"

// BadgerStore persists sessions in an embedded BadgerDB, one JSON value per
// session under the "session:" prefix.
type BadgerStore struct {
	db *badgerdb.DB
}

// NewBadgerStore opens (or creates) the database directory at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Name() string { return string(TypeBadger) }

func (s *BadgerStore) Load(ctx context.Context) ([]session.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []session.Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSession)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var r session.Record
				if err := json.Unmarshal(val, &r); err != nil {
					return err
				}
				records = append(records, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Save replaces every persisted session with records.
func (s *BadgerStore) Save(ctx context.Context, records []session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropPrefix([]byte(prefixSession)); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal session %s: %w", r.ID, err)
		}
		if err := wb.Set([]byte(prefixSession+r.ID), data); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
