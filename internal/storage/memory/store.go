package memory

import (
	"context"
	"sync"

	"github.com/tjfontaine/youtube-reviewer/internal/storage"
)

// Store is an in-memory implementation of storage.RecordStore
type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var _ storage.RecordStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		records: make(map[string][]byte),
	}
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := make([]byte, len(rec))
	copy(out, rec)
	return out, nil
}

func (s *Store) Save(ctx context.Context, key string, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := make([]byte, len(record))
	copy(rec, record)
	s.records[key] = rec
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Close() error {
	return nil
}
