package store

import (
	"context"
	"maps"
	"sync"

	"github.com/marmos91/hostkit/pkg/session"
)

// MemoryStore keeps persisted sessions in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []session.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Name() string { return string(TypeMemory) }

func (s *MemoryStore) Load(ctx context.Context) ([]session.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.records), nil
}

func (s *MemoryStore) Save(ctx context.Context, records []session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = cloneRecords(records)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneRecords(in []session.Record) []session.Record {
	out := make([]session.Record, len(in))
	for i, r := range in {
		r.Attributes = maps.Clone(r.Attributes)
		out[i] = r
	}
	return out
}
