package api

import (
	"net/http"

	"motorsport-api/internal/standings"
)

// Standings serves the driver and constructor championship tables.
func (h *Handler) Standings(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, standingsPath)
	if len(segments) != 1 || (segments[0] != "drivers" && segments[0] != "constructors") {
		writeResourceNotFound(w)
		return
	}
	if !allowRead(w, r, "Standings") {
		return
	}

	q, err := seasonQuery(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var table interface{}
	if segments[0] == "drivers" {
		table, err = standings.DriverTable(r.Context(), h.Store, q)
	} else {
		table, err = standings.ConstructorTable(r.Context(), h.Store, q)
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}
