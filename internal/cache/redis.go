package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuadrantes/iph-console/backend/internal/logger"
)

// keyPrefix isolates this service's entries from anything else in the
// Redis database.
const redisKeyPrefix = "iphconsole:"

// RedisStore is the persistent backend for multi-instance deployments:
// entries survive restarts and are shared across replicas. Redis expires
// entries natively via the ttl, on top of the envelope's lazy expiration.
type RedisStore struct {
	client *redis.Client

	hits      atomic.Uint64
	misses    atomic.Uint64
	keysAdded atomic.Uint64
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// Get retrieves the raw bytes for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.WarnContext(ctx, "redis cache read failed", "key", key, "error", err)
		}
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return data, true
}

// Set stores value under key with a native Redis expiration.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		return err
	}
	s.keysAdded.Add(1)
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		logger.WarnContext(ctx, "redis cache delete failed", "key", key, "error", err)
	}
}

// Clear removes every key with the given prefix via SCAN, so it never
// blocks Redis the way KEYS would.
func (s *RedisStore) Clear(ctx context.Context, prefix string) {
	match := redisKeyPrefix + prefix + "*"
	iter := s.client.Scan(ctx, 0, match, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			s.client.Del(ctx, batch...)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		s.client.Del(ctx, batch...)
	}
	if err := iter.Err(); err != nil {
		logger.WarnContext(ctx, "redis cache clear failed", "prefix", prefix, "error", err)
	}
}

// Stats returns redis store statistics. Items reflects the whole keyspace
// this service owns.
func (s *RedisStore) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var items int64
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		items++
	}
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		KeysAdded: s.keysAdded.Load(),
		Items:     items,
	}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
