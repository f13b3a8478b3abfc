package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// FileStore is the persistent backend: entries survive process restarts as
// JSON files on disk. Keys are namespaced "ns:key" strings; each namespace
// maps to its own subdirectory so a namespace clear is one RemoveAll.
type FileStore struct {
	dir string

	hits      atomic.Uint64
	misses    atomic.Uint64
	keysAdded atomic.Uint64
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Get retrieves the raw bytes for key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return data, true
}

// Set stores value under key. The ttl is ignored here; expiration is
// enforced by the entry envelope on read.
func (s *FileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, value, 0o644); err != nil {
		return err
	}
	s.keysAdded.Add(1)
	return nil
}

// Delete removes key.
func (s *FileStore) Delete(ctx context.Context, key string) {
	_ = os.Remove(s.path(key))
}

// Clear supports two granularities: an empty prefix wipes the store, and a
// whole-namespace "ns:" prefix drops that namespace's directory. Finer
// prefixes cannot be resolved from hashed file names and clear nothing.
func (s *FileStore) Clear(ctx context.Context, prefix string) {
	if prefix == "" {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			_ = os.RemoveAll(filepath.Join(s.dir, e.Name()))
		}
		return
	}
	if ns, rest, ok := strings.Cut(prefix, ":"); ok && rest == "" {
		_ = os.RemoveAll(filepath.Join(s.dir, dirName(ns)))
	}
}

// Stats returns file store statistics. Items walks the directory.
func (s *FileStore) Stats() Stats {
	var items int64
	_ = filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			items++
		}
		return nil
	})
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		KeysAdded: s.keysAdded.Load(),
		Items:     items,
	}
}

// path converts a namespaced key to dir/<ns>/<hash>.json. Hashing the key
// keeps arbitrary cache keys filesystem-safe.
func (s *FileStore) path(key string) string {
	ns := "_"
	if n, _, ok := strings.Cut(key, ":"); ok && n != "" {
		ns = n
	}
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, dirName(ns), hex.EncodeToString(sum[:16])+".json")
}

func dirName(ns string) string {
	sum := sha256.Sum256([]byte(ns))
	return hex.EncodeToString(sum[:4])
}

var _ Store = (*FileStore)(nil)
