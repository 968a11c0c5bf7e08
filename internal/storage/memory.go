package storage

import (
	"context"
	"sync"
)

// MemoryStore holds session records in memory. Used by tests and the simulator.
type MemoryStore struct {
	records map[string]Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory backend
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	rec.Data = append([]byte(nil), rec.Data...)
	return &rec, nil
}

func (m *MemoryStore) Put(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *rec
	stored.Data = append([]byte(nil), rec.Data...)
	m.records[rec.ID] = stored
	return nil
}

// Len returns the number of stored sessions
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
