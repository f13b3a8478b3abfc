package handlers

import (
	"net/http"
	"strconv"

	"github.com/cuadrantes/iph-console/backend/internal/apierr"
	"github.com/cuadrantes/iph-console/backend/internal/reports"
)

// StatsHandler serves aggregate counts and the map projection.
type StatsHandler struct {
	svc *reports.Service
}

// NewStatsHandler creates a stats handler over the given service.
func NewStatsHandler(svc *reports.Service) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// Stats handles GET /api/reports/stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GeoPoints handles GET /api/reports/geo. All four bound parameters are
// required, in decimal degrees.
func (h *StatsHandler) GeoPoints(w http.ResponseWriter, r *http.Request) {
	bounds, aerr := parseBounds(r)
	if aerr != nil {
		apierr.WriteErrorWithContext(w, r, aerr)
		return
	}
	points, err := h.svc.GeoPoints(r.Context(), bounds)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"points": points,
		"count":  len(points),
	})
}

func parseBounds(r *http.Request) (reports.Bounds, *apierr.Error) {
	q := r.URL.Query()
	var b reports.Bounds
	fields := []struct {
		name string
		dst  *float64
	}{
		{"minLat", &b.MinLat},
		{"minLng", &b.MinLng},
		{"maxLat", &b.MaxLat},
		{"maxLng", &b.MaxLng},
	}
	for _, f := range fields {
		raw := q.Get(f.name)
		if raw == "" {
			return b, apierr.ReportInvalidParams("missing bound parameter: " + f.name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return b, apierr.ReportInvalidParams("invalid bound parameter: " + f.name)
		}
		*f.dst = v
	}
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return b, apierr.ReportInvalidParams("bounds are inverted")
	}
	return b, nil
}
