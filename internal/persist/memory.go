package persist

import (
	"context"
	"sync"
)

// MemoryStorage keeps blobs in process memory. It survives store reloads
// within one process, which is what tests need to simulate a restart.
type MemoryStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

// Load implements Storage.
func (m *MemoryStorage) Load(_ context.Context, namespace string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.blobs[namespace]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save implements Storage.
func (m *MemoryStorage) Save(_ context.Context, namespace string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[namespace] = append([]byte(nil), data...)
	return nil
}

// Remove implements Storage.
func (m *MemoryStorage) Remove(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, namespace)
	return nil
}
