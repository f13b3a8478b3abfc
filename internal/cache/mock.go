package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var errWriteFailed = errors.New("cache: write failed")

// MockStore is a plain map-backed Store for tests. It honors no TTL at the
// storage level; expiration is exercised through the entry envelope.
type MockStore struct {
	mu   sync.Mutex
	data map[string][]byte

	// FailWrites makes every Set return an error, for degraded-storage tests.
	FailWrites bool
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string][]byte)}
}

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, found := m.data[key]
	return val, found
}

func (m *MockStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.FailWrites {
		return errWriteFailed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockStore) Delete(ctx context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *MockStore) Clear(ctx context.Context, prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
}

func (m *MockStore) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Items: int64(len(m.data))}
}

var _ Store = (*MockStore)(nil)
