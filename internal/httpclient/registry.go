package httpclient

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// registry shares one client per canonical configuration so unrelated call
// sites with the same config reuse connection state instead of building
// redundant instances.
var registry = struct {
	mu      sync.Mutex
	clients map[string]*Client
}{clients: make(map[string]*Client)}

// GetInstance returns the shared client for cfg, creating it on first use.
// Two configs with the same base URL, timeout, retry tuning, and default
// headers yield the same instance regardless of header map ordering.
func GetInstance(cfg Config) *Client {
	key := fingerprint(cfg)
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if c, ok := registry.clients[key]; ok {
		return c
	}
	c := New(cfg)
	registry.clients[key] = c
	return c
}

// ResetInstances drops all shared clients. For use in tests.
func ResetInstances() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.clients = make(map[string]*Client)
}

// fingerprint canonicalizes a config into a registry key. Headers are
// serialized in sorted order so map iteration order cannot split instances.
func fingerprint(cfg Config) string {
	keys := make([]string, 0, len(cfg.DefaultHeaders))
	for k := range cfg.DefaultHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%d|%d|%d|%t",
		cfg.BaseURL, cfg.Timeout, cfg.Retries, cfg.RetryBase, cfg.RetryCap, cfg.LogRetries)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, cfg.DefaultHeaders[k])
	}
	return b.String()
}
