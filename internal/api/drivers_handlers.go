package api

import (
	"net/http"

	"motorsport-api/internal/models"
	"motorsport-api/internal/storage"
)

// Drivers serves the driver collection, detail, standings and by-team routes.
func (h *Handler) Drivers(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, driversPath)
	switch {
	case len(segments) == 0:
		h.driverCollection(w, r)
	case len(segments) == 1 && segments[0] == "standings":
		h.driverStandings(w, r)
	case segments[0] == "by-team" && len(segments) <= 2:
		teamID := ""
		if len(segments) == 2 {
			teamID = segments[1]
		}
		h.driversByTeam(w, r, teamID)
	case len(segments) == 1:
		id, err := parseID(segments[0])
		if err != nil {
			WriteError(w, r, err)
			return
		}
		h.driverDetail(w, r, id)
	default:
		writeResourceNotFound(w)
	}
}

// driverFilter applies the team, country and min_points query parameters.
func driverFilter(r *http.Request) (storage.DriverFilter, error) {
	filter := storage.DriverFilter{Country: r.URL.Query().Get("country")}
	teamID, ok, err := queryInt(r, "team", false)
	if err != nil {
		return storage.DriverFilter{}, err
	}
	if ok {
		filter.TeamID = teamID
	}
	minPoints, ok, err := queryInt(r, "min_points", true)
	if err != nil {
		return storage.DriverFilter{}, err
	}
	if ok {
		value := int(minPoints)
		filter.MinPoints = &value
	}
	return filter, nil
}

func (h *Handler) driverCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		filter, err := driverFilter(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		resp, err := listPage(h, r, func(page storage.Page) ([]models.DriverDetail, int, error) {
			return h.Store.ListDrivers(r.Context(), filter, page)
		}, newDriverResponse)
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
		input, err := driverInputFromPayload(body, storage.DriverInput{}, false)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		driver, err := h.Store.CreateDriver(r.Context(), input)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newDriverResponse(driver))
	case http.MethodOptions:
		writeOptions(w, "Driver List", allowCollection)
	default:
		writeMethodNotAllowed(w, r, allowCollection)
	}
}

// driverStandings lists every matching driver by points without pagination.
func (h *Handler) driverStandings(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r, "Driver Standings") {
		return
	}
	filter, err := driverFilter(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	drivers, _, err := h.Store.ListDrivers(r.Context(), filter, storage.Page{})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	resp := make([]driverResponse, 0, len(drivers))
	for _, driver := range drivers {
		resp = append(resp, newDriverResponse(driver))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) driversByTeam(w http.ResponseWriter, r *http.Request, rawTeamID string) {
	if !allowRead(w, r, "Drivers By Team") {
		return
	}
	teamID, ok, err := parseOptionalInt(rawTeamID, "team_id", false)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if !ok {
		WriteError(w, r, fieldErrors("team_id", msgRequired))
		return
	}
	filter, err := driverFilter(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	conflicting := filter.TeamID != 0 && filter.TeamID != teamID
	filter.TeamID = teamID
	resp, err := listPage(h, r, func(page storage.Page) ([]models.DriverDetail, int, error) {
		if conflicting {
			return nil, 0, nil
		}
		return h.Store.ListDrivers(r.Context(), filter, page)
	}, newDriverResponse)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) driverDetail(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		driver, err := h.Store.GetDriver(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newDriverResponse(driver))
	case http.MethodPut, http.MethodPatch:
		if !h.requireStaff(w, r) {
			return
		}
		existing, err := h.Store.GetDriver(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		body, err := decodeJSON(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		base := storage.DriverInput{Name: existing.Name, TeamID: existing.TeamID}
		input, err := driverInputFromPayload(body, base, r.Method == http.MethodPatch)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		driver, err := h.Store.UpdateDriver(r.Context(), id, input)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newDriverResponse(driver))
	case http.MethodDelete:
		if !h.requireStaff(w, r) {
			return
		}
		if err := h.Store.DeleteDriver(r.Context(), id); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodOptions:
		writeOptions(w, "Driver Instance", allowDetail)
	default:
		writeMethodNotAllowed(w, r, allowDetail)
	}
}

// driverInputFromPayload reads {name, team_id}. Points are derived from race
// results and cannot be written.
func driverInputFromPayload(body payload, input storage.DriverInput, partial bool) (storage.DriverInput, error) {
	verr := &storage.ValidationError{}
	required := !partial
	if name, ok := body.str(verr, "name", required); ok {
		input.Name = name
	}
	if teamID, ok := body.primaryKey(verr, "team_id", required); ok {
		input.TeamID = teamID
	}
	return input, verr.OrNil()
}
