package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cuadrantes/iph-console/backend/internal/apierr"
	"github.com/cuadrantes/iph-console/backend/internal/circuitbreaker"
	"github.com/cuadrantes/iph-console/backend/internal/logger"
	"github.com/cuadrantes/iph-console/backend/internal/reports"
)

// ReportsHandler serves the report CRUD surface consumed by the console.
type ReportsHandler struct {
	svc *reports.Service
}

// NewReportsHandler creates a reports handler over the given service.
func NewReportsHandler(svc *reports.Service) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

// List handles GET /api/reports.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	params, aerr := parseListParams(r)
	if aerr != nil {
		apierr.WriteErrorWithContext(w, r, aerr)
		return
	}
	page, err := h.svc.List(r.Context(), params)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get handles GET /api/reports/{id}.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	report, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Create handles POST /api/reports.
func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reports.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON())
		return
	}
	if req.Folio == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("folio"))
		return
	}
	if req.Title == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("title"))
		return
	}
	report, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// Update handles PUT /api/reports/{id}.
func (h *ReportsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req reports.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON())
		return
	}
	report, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Delete handles DELETE /api/reports/{id}.
func (h *ReportsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseListParams(r *http.Request) (reports.ListParams, *apierr.Error) {
	q := r.URL.Query()
	params := reports.ListParams{
		Status:       q.Get("status"),
		IncidentType: q.Get("incidentType"),
		Municipality: q.Get("municipality"),
		Query:        q.Get("q"),
	}
	var err error
	if params.Page, err = intParam(q.Get("page"), 1); err != nil {
		return params, apierr.ReportInvalidParams("page must be a positive integer")
	}
	if params.PageSize, err = intParam(q.Get("pageSize"), 25); err != nil {
		return params, apierr.ReportInvalidParams("pageSize must be a positive integer")
	}
	if params.PageSize > 200 {
		params.PageSize = 200
	}
	return params, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, errors.New("invalid")
	}
	return v, nil
}

func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		apierr.WriteErrorWithContext(w, r, apierr.New(apierr.ErrUpstreamUnavailable,
			"Upstream registry is temporarily unavailable", http.StatusServiceUnavailable))
		return
	}
	logger.WarnContext(r.Context(), "upstream call failed", "path", r.URL.Path, "error", err)
	apierr.WriteErrorWithContext(w, r, apierr.FromUpstream(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
