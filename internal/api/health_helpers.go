package api

import (
	"net/http"

	"motorsport-api/internal/observability/logging"
)

// Health reports whether the datastore answers. A failing datastore marks the
// service degraded and returns 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r, "Health Check") {
		return
	}
	databaseOK := true
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			logging.LoggerFromContext(r.Context()).Warn("datastore health check failed", "error", err)
			databaseOK = false
		}
	}
	if h.Tokens != nil {
		if err := h.Tokens.Ping(r.Context()); err != nil {
			logging.LoggerFromContext(r.Context()).Warn("token blacklist health check failed", "error", err)
		}
	}

	resp := healthResponse{Status: "ok", Service: serviceName, Database: databaseOK}
	status := http.StatusOK
	if !databaseOK {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Stats returns dataset totals and the highest driver points total.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r, "Api Stats") {
		return
	}
	stats, err := h.Store.Stats(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatsResponse(stats))
}
