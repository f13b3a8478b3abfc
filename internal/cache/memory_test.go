package cache

import (
	"context"
	"testing"
	"time"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s, err := NewMemoryStore(16, 1000)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "reports:detail:r1", []byte(`{"id":"r1"}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := s.Get(ctx, "reports:detail:r1")
	if !ok || string(got) != `{"id":"r1"}` {
		t.Errorf("round trip: %s, %v", got, ok)
	}

	if _, ok := s.Get(ctx, "reports:absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	s.Set(ctx, "reports:k", []byte("v"), time.Minute)
	s.Delete(ctx, "reports:k")
	if _, ok := s.Get(ctx, "reports:k"); ok {
		t.Error("deleted key should miss")
	}
}

func TestMemoryStorePrefixClear(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	s.Set(ctx, "reports:a", []byte("1"), time.Minute)
	s.Set(ctx, "reports:b", []byte("2"), time.Minute)
	s.Set(ctx, "geo:c", []byte("3"), time.Minute)

	s.Clear(ctx, "reports:")

	if _, ok := s.Get(ctx, "reports:a"); ok {
		t.Error("reports:a should be cleared")
	}
	if _, ok := s.Get(ctx, "reports:b"); ok {
		t.Error("reports:b should be cleared")
	}
	if _, ok := s.Get(ctx, "geo:c"); !ok {
		t.Error("geo namespace must be untouched")
	}
}

func TestMemoryStoreClearAll(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	s.Set(ctx, "reports:a", []byte("1"), time.Minute)
	s.Set(ctx, "geo:b", []byte("2"), time.Minute)

	s.Clear(ctx, "")

	if _, ok := s.Get(ctx, "reports:a"); ok {
		t.Error("store should be empty after full clear")
	}
	if got := s.Stats().Items; got != 0 {
		t.Errorf("items after full clear = %d, want 0", got)
	}
}

func TestMemoryStoreRejectsOversizedValue(t *testing.T) {
	s, err := NewMemoryStore(1, 10) // 1 MiB budget
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(s.Close)
	ctx := context.Background()

	big := make([]byte, 2<<20)
	if err := s.Set(ctx, "reports:big", big, time.Minute); err == nil {
		t.Fatal("Set beyond the memory budget should return an error")
	}
	if _, ok := s.Get(ctx, "reports:big"); ok {
		t.Error("rejected write must not be readable")
	}
	if got := s.Stats().Items; got != 0 {
		t.Errorf("rejected write should not be indexed, items = %d", got)
	}
}

func TestMemoryStoreTTLEnforced(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	s.Set(ctx, "reports:short", []byte("v"), 50*time.Millisecond)
	if _, ok := s.Get(ctx, "reports:short"); !ok {
		t.Fatal("entry should be readable before TTL")
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := s.Get(ctx, "reports:short"); ok {
		t.Error("entry should be gone after TTL")
	}
}
