// Package cache is a TTL cache over two disjoint backends: a session store
// that lives with the process and a persistent store that survives restarts.
// It is an optimization, never a correctness dependency: every failure
// degrades to a miss or a false return, and nothing here panics or
// propagates storage errors into feature code.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cuadrantes/iph-console/backend/internal/logger"
	"github.com/cuadrantes/iph-console/backend/internal/metrics"
)

// DefaultNamespace partitions keys written without an explicit namespace.
const DefaultNamespace = "iph"

// Priority is an advisory hint stored with the entry. It does not affect
// expiration; it exists for a future eviction policy under storage pressure.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Entry is the persisted envelope around a cached value.
type Entry struct {
	Key       string          `json:"key"`
	Namespace string          `json:"namespace"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Priority  Priority        `json:"priority,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// SetOptions configure one Set call. ExpiresIn is required and must be > 0.
type SetOptions struct {
	ExpiresIn         time.Duration
	Priority          Priority
	Namespace         string
	UseSessionStorage bool
	Metadata          map[string]any
}

// Cache fronts the two stores. Entries expire lazily: an expired entry is
// purged on the read that encounters it, and there is no background sweep.
type Cache struct {
	session    Store
	persistent Store
	now        func() time.Time
}

// New builds a cache over the given session and persistent stores.
func New(session, persistent Store) *Cache {
	return &Cache{
		session:    session,
		persistent: persistent,
		now:        time.Now,
	}
}

// Set stores value under key, best effort. It returns false, never an error
// and never a panic, when the value cannot be serialized or the backend
// rejects the write; callers proceed as if uncached.
func (c *Cache) Set(ctx context.Context, key string, value any, opts SetOptions) bool {
	if key == "" || opts.ExpiresIn <= 0 {
		logger.WarnContext(ctx, "cache set rejected", "key", key, "expires_in", opts.ExpiresIn.String())
		return false
	}
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	prio := opts.Priority
	if prio == "" {
		prio = PriorityNormal
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.writeFailed(ctx, opts.UseSessionStorage, key, "serialize value", err)
		return false
	}
	now := c.now()
	blob, err := json.Marshal(Entry{
		Key:       key,
		Namespace: ns,
		Value:     raw,
		CreatedAt: now,
		ExpiresAt: now.Add(opts.ExpiresIn),
		Priority:  prio,
		Metadata:  opts.Metadata,
	})
	if err != nil {
		c.writeFailed(ctx, opts.UseSessionStorage, key, "serialize entry", err)
		return false
	}

	store := c.store(opts.UseSessionStorage)
	if err := store.Set(ctx, storageKey(ns, key), blob, opts.ExpiresIn); err != nil {
		c.writeFailed(ctx, opts.UseSessionStorage, key, "store write", err)
		return false
	}
	return true
}

// Get retrieves the value under key in the default namespace. A miss, an
// expired entry, and a corrupt entry are indistinguishable to the caller:
// all return the zero value and false.
func Get[T any](ctx context.Context, c *Cache, key string, useSession bool) (T, bool) {
	return GetFrom[T](ctx, c, DefaultNamespace, key, useSession)
}

// GetFrom is Get within an explicit namespace.
func GetFrom[T any](ctx context.Context, c *Cache, namespace, key string, useSession bool) (T, bool) {
	var zero T
	e, ok := c.GetEntry(ctx, namespace, key, useSession)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(e.Value, &v); err != nil {
		logger.WarnContext(ctx, "cache value decode failed", "namespace", namespace, "key", key, "error", err)
		return zero, false
	}
	return v, true
}

// GetEntry retrieves the raw entry envelope, including priority and
// metadata. Expired entries are purged here; calling it again on the same
// expired key is a plain miss.
func (c *Cache) GetEntry(ctx context.Context, namespace, key string, useSession bool) (*Entry, bool) {
	store := c.store(useSession)
	label := backendLabel(useSession)
	skey := storageKey(namespace, key)

	b, ok := store.Get(ctx, skey)
	if !ok {
		metrics.CacheMisses.WithLabelValues(label).Inc()
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		logger.WarnContext(ctx, "cache entry corrupt, purging", "namespace", namespace, "key", key, "error", err)
		store.Delete(ctx, skey)
		metrics.CacheMisses.WithLabelValues(label).Inc()
		return nil, false
	}
	if e.Expired(c.now()) {
		store.Delete(ctx, skey)
		metrics.CacheExpirations.WithLabelValues(label).Inc()
		metrics.CacheMisses.WithLabelValues(label).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(label).Inc()
	return &e, true
}

// Delete removes key from the default namespace.
func (c *Cache) Delete(ctx context.Context, key string, useSession bool) {
	c.DeleteFrom(ctx, DefaultNamespace, key, useSession)
}

// DeleteFrom removes key from an explicit namespace.
func (c *Cache) DeleteFrom(ctx context.Context, namespace, key string, useSession bool) {
	c.store(useSession).Delete(ctx, storageKey(namespace, key))
}

// Clear removes every entry in the namespace from the selected backend.
func (c *Cache) Clear(ctx context.Context, namespace string, useSession bool) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	c.store(useSession).Clear(ctx, namespace+":")
}

// ClearAll wipes the selected backend entirely.
func (c *Cache) ClearAll(ctx context.Context, useSession bool) {
	c.store(useSession).Clear(ctx, "")
}

// Stats returns statistics for the selected backend.
func (c *Cache) Stats(useSession bool) Stats {
	return c.store(useSession).Stats()
}

func (c *Cache) store(useSession bool) Store {
	if useSession {
		return c.session
	}
	return c.persistent
}

func (c *Cache) writeFailed(ctx context.Context, useSession bool, key, stage string, err error) {
	metrics.CacheWriteFailures.WithLabelValues(backendLabel(useSession)).Inc()
	logger.WarnContext(ctx, "cache write failed", "key", key, "stage", stage, "error", err)
}

func storageKey(namespace, key string) string {
	return namespace + ":" + key
}

func backendLabel(useSession bool) string {
	if useSession {
		return "session"
	}
	return "persistent"
}
