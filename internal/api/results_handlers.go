package api

import (
	"net/http"

	"motorsport-api/internal/models"
	"motorsport-api/internal/storage"
)

// Results serves /api/v1/results/ and /api/v1/results/{id}/. Every write
// recalculates the points of the drivers it touches.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, resultsPath)
	switch len(segments) {
	case 0:
		h.resultCollection(w, r)
	case 1:
		id, err := parseID(segments[0])
		if err != nil {
			WriteError(w, r, err)
			return
		}
		h.resultDetail(w, r, id)
	default:
		writeResourceNotFound(w)
	}
}

func resultFilter(r *http.Request) (storage.ResultFilter, error) {
	var filter storage.ResultFilter
	raceID, ok, err := queryInt(r, "race", false)
	if err != nil {
		return filter, err
	}
	if ok {
		filter.RaceID = raceID
	}
	season, err := seasonQuery(r)
	if err != nil {
		return filter, err
	}
	filter.Season = seasonRef(season)
	driverID, ok, err := queryInt(r, "driver", false)
	if err != nil {
		return filter, err
	}
	if ok {
		filter.DriverID = driverID
	}
	return filter, nil
}

func (h *Handler) resultCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		filter, err := resultFilter(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		resp, err := listPage(h, r, func(page storage.Page) ([]models.ResultDetail, int, error) {
			return h.Store.ListResults(r.Context(), filter, page)
		}, newResultResponse)
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
		input, err := resultInputFromPayload(body, storage.ResultInput{}, false)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		result, err := h.Store.CreateResult(r.Context(), input)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newResultResponse(result))
	case http.MethodOptions:
		writeOptions(w, "Race Result List", allowCollection)
	default:
		writeMethodNotAllowed(w, r, allowCollection)
	}
}

func (h *Handler) resultDetail(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		result, err := h.Store.GetResult(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newResultResponse(result))
	case http.MethodPut, http.MethodPatch:
		if !h.requireStaff(w, r) {
			return
		}
		existing, err := h.Store.GetResult(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		body, err := decodeJSON(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		base := storage.ResultInput{
			RaceID:       existing.RaceID,
			DriverID:     existing.DriverID,
			Position:     existing.Position,
			PointsEarned: existing.PointsEarned,
			FastestLap:   existing.FastestLap,
		}
		input, err := resultInputFromPayload(body, base, r.Method == http.MethodPatch)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		result, err := h.Store.UpdateResult(r.Context(), id, input)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newResultResponse(result))
	case http.MethodDelete:
		if !h.requireStaff(w, r) {
			return
		}
		if err := h.Store.DeleteResult(r.Context(), id); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodOptions:
		writeOptions(w, "Race Result Instance", allowDetail)
	default:
		writeMethodNotAllowed(w, r, allowDetail)
	}
}

// resultInputFromPayload reads a result write. points_earned and fastest_lap
// are optional and keep the values already in input when omitted.
func resultInputFromPayload(body payload, input storage.ResultInput, partial bool) (storage.ResultInput, error) {
	verr := &storage.ValidationError{}
	required := !partial
	if raceID, ok := body.primaryKey(verr, "race_id", required); ok {
		input.RaceID = raceID
	}
	if driverID, ok := body.primaryKey(verr, "driver_id", required); ok {
		input.DriverID = driverID
	}
	if position, ok := body.integer(verr, "position", required); ok {
		input.Position = position
	}
	if points, ok := body.integer(verr, "points_earned", false); ok {
		input.PointsEarned = points
	}
	if fastest, ok := body.boolean(verr, "fastest_lap", false); ok {
		input.FastestLap = fastest
	}
	return input, verr.OrNil()
}
