package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps histories for the lifetime of the process.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]string)}
}

func (m *MemoryStore) LoadHistory(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), v...), nil
}

func (m *MemoryStore) SaveHistory(_ context.Context, key string, versions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]string(nil), versions...)
	return nil
}

func (m *MemoryStore) DeleteHistory(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
