package coldstore

import (
	"context"
	"sync"
)

// Memory is a map-backed Backend. It trades durability for zero setup:
// useful in tests and for runs where history fits in memory anyway.
type Memory struct {
	mu      sync.RWMutex
	records map[uint32][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{records: make(map[uint32][]byte)}
}

func (m *Memory) Put(_ context.Context, id uint32, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.records[id] = cp
	return nil
}

func (m *Memory) Get(_ context.Context, id uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (m *Memory) Delete(_ context.Context, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *Memory) Close() error { return nil }

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
