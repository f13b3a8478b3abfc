package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cuadrantes/iph-console/backend/internal/apierr"
	"github.com/cuadrantes/iph-console/backend/internal/cache"
)

// CacheAdminHandler exposes cache statistics and invalidation for operators.
type CacheAdminHandler struct {
	cache *cache.Cache
}

// NewCacheAdminHandler creates a new cache admin handler.
func NewCacheAdminHandler(c *cache.Cache) *CacheAdminHandler {
	return &CacheAdminHandler{cache: c}
}

// Stats returns per-backend cache statistics.
// GET /api/admin/cache/stats
func (h *CacheAdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	session := h.cache.Stats(true)
	persistent := h.cache.Stats(false)
	writeJSON(w, http.StatusOK, map[string]any{
		"session": map[string]any{
			"hits":      session.Hits,
			"misses":    session.Misses,
			"keysAdded": session.KeysAdded,
			"items":     session.Items,
		},
		"persistent": map[string]any{
			"hits":      persistent.Hits,
			"misses":    persistent.Misses,
			"keysAdded": persistent.KeysAdded,
			"items":     persistent.Items,
		},
	})
}

// Invalidate clears all entries from both backends.
// POST /api/admin/cache/invalidate
func (h *CacheAdminHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	h.cache.ClearAll(r.Context(), true)
	h.cache.ClearAll(r.Context(), false)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Cache invalidated successfully",
	})
}

// InvalidateNamespace clears a single namespace from both backends.
// POST /api/admin/cache/invalidate/{namespace}
func (h *CacheAdminHandler) InvalidateNamespace(w http.ResponseWriter, r *http.Request) {
	ns := mux.Vars(r)["namespace"]
	if ns == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ReportInvalidParams("missing namespace"))
		return
	}
	h.cache.Clear(r.Context(), ns, true)
	h.cache.Clear(r.Context(), ns, false)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"namespace": ns,
	})
}
