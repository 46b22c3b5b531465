package api

import (
	"net/http"

	"motorsport-api/internal/models"
	"motorsport-api/internal/storage"
)

// Teams serves /api/v1/teams/ and /api/v1/teams/{id}/.
func (h *Handler) Teams(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, teamsPath)
	switch len(segments) {
	case 0:
		h.teamCollection(w, r)
	case 1:
		id, err := parseID(segments[0])
		if err != nil {
			WriteError(w, r, err)
			return
		}
		h.teamDetail(w, r, id)
	default:
		writeResourceNotFound(w)
	}
}

func (h *Handler) teamCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		query := r.URL.Query()
		filter := storage.TeamFilter{Country: query.Get("country"), Name: query.Get("name")}
		resp, err := listPage(h, r, func(page storage.Page) ([]models.TeamSummary, int, error) {
			return h.Store.ListTeams(r.Context(), filter, page)
		}, newTeamResponse)
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
		input, err := teamInputFromPayload(body, storage.TeamInput{}, false)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		team, err := h.Store.CreateTeam(r.Context(), input)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newTeamResponse(models.TeamSummary{Team: team}))
	case http.MethodOptions:
		writeOptions(w, "Team List", allowCollection)
	default:
		writeMethodNotAllowed(w, r, allowCollection)
	}
}

func (h *Handler) teamDetail(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		team, err := h.Store.GetTeam(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		drivers, _, err := h.Store.ListDrivers(r.Context(), storage.DriverFilter{TeamID: id}, storage.Page{})
		if err != nil {
			WriteError(w, r, err)
			return
		}
		resp := teamDetailResponse{
			teamResponse: newTeamResponse(team),
			Drivers:      make([]driverCompactResponse, 0, len(drivers)),
		}
		for _, driver := range drivers {
			resp.Drivers = append(resp.Drivers, newDriverCompactResponse(driver))
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPut, http.MethodPatch:
		if !h.requireStaff(w, r) {
			return
		}
		existing, err := h.Store.GetTeam(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		body, err := decodeJSON(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		base := storage.TeamInput{Name: existing.Name, Country: existing.Country}
		input, err := teamInputFromPayload(body, base, r.Method == http.MethodPatch)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		if _, err := h.Store.UpdateTeam(r.Context(), id, input); err != nil {
			WriteError(w, r, err)
			return
		}
		updated, err := h.Store.GetTeam(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTeamResponse(updated))
	case http.MethodDelete:
		if !h.requireStaff(w, r) {
			return
		}
		if err := h.Store.DeleteTeam(r.Context(), id); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodOptions:
		writeOptions(w, "Team Instance", allowDetail)
	default:
		writeMethodNotAllowed(w, r, allowDetail)
	}
}

// teamInputFromPayload overlays the payload on input. Unless partial, every
// field is required.
func teamInputFromPayload(body payload, input storage.TeamInput, partial bool) (storage.TeamInput, error) {
	verr := &storage.ValidationError{}
	required := !partial
	if name, ok := body.str(verr, "name", required); ok {
		input.Name = name
	}
	if country, ok := body.str(verr, "country", required); ok {
		input.Country = country
	}
	return input, verr.OrNil()
}
