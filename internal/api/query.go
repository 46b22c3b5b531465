package api

import (
	"net/http"
	"strconv"
	"strings"

	"motorsport-api/internal/standings"
	"motorsport-api/internal/storage"
)

const (
	msgQueryNotInteger  = "Must be an integer."
	msgQueryNotPositive = "Must be a positive integer."
)

// parseOptionalInt parses a non-negative integer query value. Blank values are
// reported as absent. Zero is rejected unless allowZero is set.
func parseOptionalInt(raw, name string, allowZero bool) (int64, bool, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		return 0, false, nil
	}
	if !isDigits(normalized) {
		return 0, false, fieldErrors(name, msgQueryNotInteger)
	}
	value, err := strconv.ParseInt(normalized, 10, 64)
	if err != nil {
		return 0, false, fieldErrors(name, msgQueryNotInteger)
	}
	if value == 0 && !allowZero {
		return 0, false, fieldErrors(name, msgQueryNotPositive)
	}
	return value, true, nil
}

func queryInt(r *http.Request, name string, allowZero bool) (int64, bool, error) {
	return parseOptionalInt(r.URL.Query().Get(name), name, allowZero)
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// seasonQuery parses the season selector shared by standings, races and
// results.
func seasonQuery(r *http.Request) (standings.SeasonQuery, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("season"))
	value, ok, err := parseOptionalInt(raw, "season", false)
	if err != nil || !ok {
		return standings.SeasonQuery{}, err
	}
	return standings.SeasonQuery{Raw: raw, Value: value}, nil
}

// seasonRef converts a parsed season selector into a storage filter.
func seasonRef(q standings.SeasonQuery) storage.SeasonRef {
	switch {
	case q.Value == 0:
		return storage.SeasonRef{}
	case q.ByYear():
		return storage.SeasonRef{Year: int(q.Value)}
	default:
		return storage.SeasonRef{ID: q.Value}
	}
}
