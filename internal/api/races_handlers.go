package api

import (
	"net/http"

	"motorsport-api/internal/models"
	"motorsport-api/internal/storage"
)

// Races serves /api/v1/races/ and /api/v1/races/{id}/.
func (h *Handler) Races(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, racesPath)
	switch len(segments) {
	case 0:
		h.raceCollection(w, r)
	case 1:
		id, err := parseID(segments[0])
		if err != nil {
			WriteError(w, r, err)
			return
		}
		h.raceDetail(w, r, id)
	default:
		writeResourceNotFound(w)
	}
}

func (h *Handler) raceCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		season, err := seasonQuery(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		filter := storage.RaceFilter{Season: seasonRef(season), Country: r.URL.Query().Get("country")}
		resp, err := listPage(h, r, func(page storage.Page) ([]models.RaceDetail, int, error) {
			return h.Store.ListRaces(r.Context(), filter, page)
		}, newRaceResponse)
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
		input, err := raceInputFromPayload(body, storage.RaceInput{}, false)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		race, err := h.Store.CreateRace(r.Context(), input)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newRaceResponse(race))
	case http.MethodOptions:
		writeOptions(w, "Race List", allowCollection)
	default:
		writeMethodNotAllowed(w, r, allowCollection)
	}
}

func (h *Handler) raceDetail(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		race, err := h.Store.GetRace(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newRaceResponse(race))
	case http.MethodPut, http.MethodPatch:
		if !h.requireStaff(w, r) {
			return
		}
		existing, err := h.Store.GetRace(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		body, err := decodeJSON(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		base := storage.RaceInput{
			SeasonID:    existing.SeasonID,
			RoundNumber: existing.RoundNumber,
			Name:        existing.Name,
			Country:     existing.Country,
			RaceDate:    existing.RaceDate,
		}
		input, err := raceInputFromPayload(body, base, r.Method == http.MethodPatch)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		race, err := h.Store.UpdateRace(r.Context(), id, input)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newRaceResponse(race))
	case http.MethodDelete:
		if !h.requireStaff(w, r) {
			return
		}
		if err := h.Store.DeleteRace(r.Context(), id); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodOptions:
		writeOptions(w, "Race Instance", allowDetail)
	default:
		writeMethodNotAllowed(w, r, allowDetail)
	}
}

func raceInputFromPayload(body payload, input storage.RaceInput, partial bool) (storage.RaceInput, error) {
	verr := &storage.ValidationError{}
	required := !partial
	if seasonID, ok := body.primaryKey(verr, "season_id", required); ok {
		input.SeasonID = seasonID
	}
	if round, ok := body.integer(verr, "round_number", required); ok {
		input.RoundNumber = round
	}
	if name, ok := body.str(verr, "name", required); ok {
		input.Name = name
	}
	if country, ok := body.str(verr, "country", required); ok {
		input.Country = country
	}
	if date, ok := body.date(verr, "race_date", required); ok {
		input.RaceDate = date
	}
	return input, verr.OrNil()
}
