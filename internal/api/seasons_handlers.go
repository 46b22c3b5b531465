package api

import (
	"net/http"

	"motorsport-api/internal/models"
	"motorsport-api/internal/storage"
)

// Seasons serves /api/v1/seasons/ and /api/v1/seasons/{id}/.
func (h *Handler) Seasons(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, seasonsPath)
	switch len(segments) {
	case 0:
		h.seasonCollection(w, r)
	case 1:
		id, err := parseID(segments[0])
		if err != nil {
			WriteError(w, r, err)
			return
		}
		h.seasonDetail(w, r, id)
	default:
		writeResourceNotFound(w)
	}
}

func (h *Handler) seasonCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		var filter storage.SeasonFilter
		year, ok, err := queryInt(r, "year", false)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		if ok {
			filter.Year = int(year)
		}
		resp, err := listPage(h, r, func(page storage.Page) ([]models.SeasonSummary, int, error) {
			return h.Store.ListSeasons(r.Context(), filter, page)
		}, newSeasonResponse)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		if !h.requireStaff(w, r) {
			return
		}
		body, err := decodeJSON(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		input, err := seasonInputFromPayload(body, storage.SeasonInput{}, false)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		season, err := h.Store.CreateSeason(r.Context(), input)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newSeasonResponse(season))
	case http.MethodOptions:
		writeOptions(w, "Season List", allowCollection)
	default:
		writeMethodNotAllowed(w, r, allowCollection)
	}
}

func (h *Handler) seasonDetail(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		season, err := h.Store.GetSeason(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSeasonResponse(season))
	case http.MethodPut, http.MethodPatch:
		if !h.requireStaff(w, r) {
			return
		}
		existing, err := h.Store.GetSeason(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		body, err := decodeJSON(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		base := storage.SeasonInput{Year: existing.Year, Name: existing.Name}
		input, err := seasonInputFromPayload(body, base, r.Method == http.MethodPatch)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		season, err := h.Store.UpdateSeason(r.Context(), id, input)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSeasonResponse(season))
	case http.MethodDelete:
		if !h.requireStaff(w, r) {
			return
		}
		if err := h.Store.DeleteSeason(r.Context(), id); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodOptions:
		writeOptions(w, "Season Instance", allowDetail)
	default:
		writeMethodNotAllowed(w, r, allowDetail)
	}
}

// seasonInputFromPayload reads {year, name}. The name is optional even on a
// full update.
func seasonInputFromPayload(body payload, input storage.SeasonInput, partial bool) (storage.SeasonInput, error) {
	verr := &storage.ValidationError{}
	required := !partial
	if year, ok := body.integer(verr, "year", required); ok {
		input.Year = year
	}
	if name, ok := body.str(verr, "name", false); ok {
		input.Name = name
	}
	return input, verr.OrNil()
}
