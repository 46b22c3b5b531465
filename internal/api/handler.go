package api

import (
	"net/http"
	"strconv"
	"strings"

	"motorsport-api/internal/auth"
	"motorsport-api/internal/storage"
)

// Route prefixes served by Handler.
const (
	APIPrefix       = "/api/"
	V1Prefix        = "/api/v1/"
	HealthPath      = "/api/health/"
	teamsPath       = V1Prefix + "teams/"
	driversPath     = V1Prefix + "drivers/"
	seasonsPath     = V1Prefix + "seasons/"
	racesPath       = V1Prefix + "races/"
	resultsPath     = V1Prefix + "results/"
	statsPath       = V1Prefix + "stats/"
	standingsPath   = V1Prefix + "standings/"
	authPath        = V1Prefix + "auth/"
	serviceName     = "motorsport-api"
	allowCollection = "GET, POST, HEAD, OPTIONS"
	allowDetail     = "GET, PUT, PATCH, DELETE, HEAD, OPTIONS"
	allowReadOnly   = "GET, HEAD, OPTIONS"
	allowPost       = "POST"
)

type Handler struct {
	Store         storage.Repository
	Tokens        *auth.TokenManager
	Authenticator *auth.Authenticator
	Cookies       auth.CookieConfig
	PageSize      int
}

// NewHandler wires the repository and token manager together. The cookie
// configuration is shared by the authenticator and the auth endpoints.
func NewHandler(store storage.Repository, tokens *auth.TokenManager, cookies auth.CookieConfig) *Handler {
	return &Handler{
		Store:         store,
		Tokens:        tokens,
		Authenticator: auth.NewAuthenticator(tokens, cookies),
		Cookies:       cookies,
		PageSize:      DefaultPageSize,
	}
}

// pathSegments returns the non-empty path segments following prefix.
func pathSegments(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseID(segment string) (int64, error) {
	id, err := strconv.ParseInt(segment, 10, 64)
	if err != nil || id <= 0 {
		return 0, notFound()
	}
	return id, nil
}

func writeResourceNotFound(w http.ResponseWriter) {
	WriteDetail(w, http.StatusNotFound, DetailResourceNotFound)
}

// writeOptions answers a plain OPTIONS request with the allowed methods.
func writeOptions(w http.ResponseWriter, name, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    name,
		"renders": []string{"application/json"},
		"parses":  []string{"application/json"},
	})
}

// allowRead answers OPTIONS and rejects methods other than GET and HEAD.
func allowRead(w http.ResponseWriter, r *http.Request, name string) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return true
	case http.MethodOptions:
		writeOptions(w, name, allowReadOnly)
	default:
		writeMethodNotAllowed(w, r, allowReadOnly)
	}
	return false
}
