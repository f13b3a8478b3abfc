package cache

import (
	"context"
	"time"
)

// Store is a raw key/value backend. The two wired variants, the in-process
// session store and the persistent store, are disjoint key spaces; an entry
// written to one is never visible through the other.
//
// Operations take a context so an out-of-process backend (Redis) can honor
// deadlines without changing call sites.
type Store interface {
	// Get retrieves the raw bytes for key, if present.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key. The ttl is a storage-level reclamation
	// hint; authoritative expiration lives in the entry envelope.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string)

	// Clear removes every key with the given prefix. An empty prefix
	// clears the whole store.
	Clear(ctx context.Context, prefix string)

	// Stats returns approximate store statistics.
	Stats() Stats
}

// Stats represents store statistics. Counts are approximate for backends
// that evict internally.
type Stats struct {
	Hits      uint64 // Total lookups that found a key
	Misses    uint64 // Total lookups that found nothing
	KeysAdded uint64 // Total keys written
	Items     int64  // Current number of items
}
