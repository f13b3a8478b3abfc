package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryStore is the session-scoped backend: a size-bounded in-process store
// built on ristretto. Its contents live and die with the process.
type MemoryStore struct {
	cache *ristretto.Cache

	// ristretto cannot enumerate keys, so a side index tracks live keys for
	// prefix clears. The index may briefly overcount after internal
	// evictions; Stats are approximate either way.
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryStore creates a memory store bounded by maxSizeMB and maxEntries.
func NewMemoryStore(maxSizeMB, maxEntries int64) (*MemoryStore, error) {
	// NumCounters should be ~10x the number of entries for optimal admission
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxSizeMB * 1024 * 1024,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &MemoryStore{
		cache: cache,
		keys:  make(map[string]struct{}),
	}, nil
}

// Get retrieves the raw bytes for key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool) {
	val, found := s.cache.Get(key)
	if !found {
		return nil, false
	}
	data, ok := val.([]byte)
	if !ok {
		s.cache.Del(key)
		return nil, false
	}
	return data, true
}

// Set stores value under key. The ttl bounds how long ristretto keeps the
// item; expired items that were never read again are reclaimed here.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(value))
	var accepted bool
	if ttl > 0 {
		accepted = s.cache.SetWithTTL(key, value, cost, ttl)
	} else {
		accepted = s.cache.Set(key, value, cost)
	}
	if !accepted {
		return fmt.Errorf("memory store dropped write for %q (%d bytes)", key, cost)
	}
	// Wait for the value to pass through ristretto's buffers so a Set is
	// immediately visible to the caller that made it.
	s.cache.Wait()
	// Admission can still refuse a buffered item, for example when its cost
	// exceeds MaxCost. Only an item readable after the wait counts as stored.
	if _, ok := s.cache.Get(key); !ok {
		return fmt.Errorf("memory store rejected write for %q (%d bytes)", key, cost)
	}

	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(ctx context.Context, key string) {
	s.cache.Del(key)
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
}

// Clear removes every key with the given prefix.
func (s *MemoryStore) Clear(ctx context.Context, prefix string) {
	if prefix == "" {
		s.cache.Clear()
		s.mu.Lock()
		s.keys = make(map[string]struct{})
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	var matched []string
	for k := range s.keys {
		if strings.HasPrefix(k, prefix) {
			matched = append(matched, k)
			delete(s.keys, k)
		}
	}
	s.mu.Unlock()
	for _, k := range matched {
		s.cache.Del(k)
	}
}

// Stats returns store statistics from ristretto's metrics.
func (s *MemoryStore) Stats() Stats {
	m := s.cache.Metrics
	s.mu.Lock()
	items := int64(len(s.keys))
	s.mu.Unlock()
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Items:     items,
	}
}

// Close releases ristretto's resources.
func (s *MemoryStore) Close() {
	s.cache.Close()
}

var _ Store = (*MemoryStore)(nil)
