package handlers

import "net/http"

// HealthHandler reports liveness plus the wiring a deployment check cares
// about: which upstream registry the console proxies and which backends hold
// its cache.
type HealthHandler struct {
	upstream          string
	persistentBackend string
}

// NewHealthHandler creates a health handler. persistentBackend names the
// durable cache backend in use ("file" or "redis").
func NewHealthHandler(upstream, persistentBackend string) *HealthHandler {
	return &HealthHandler{upstream: upstream, persistentBackend: persistentBackend}
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"upstream": h.upstream,
		"cache": map[string]string{
			"session":    "memory",
			"persistent": h.persistentBackend,
		},
	})
}
