package api

import (
	"net/http"
	"strings"

	"motorsport-api/internal/auth"
	"motorsport-api/internal/storage"
)

func (h *Handler) setAuthCookies(w http.ResponseWriter, r *http.Request, access, refresh string) {
	if access == "" || refresh == "" {
		return
	}
	h.Cookies.SetAuthCookies(w, r, access, refresh, h.Tokens.AccessTTL(), h.Tokens.RefreshTTL())
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter, r *http.Request) {
	h.Cookies.ClearAuthCookies(w, r)
}

// refreshTokenFromRequest prefers a non-blank refresh member in the body and
// falls back to the refresh cookie.
func (h *Handler) refreshTokenFromRequest(r *http.Request, body payload) string {
	token, _ := body.str(&storage.ValidationError{}, "refresh", false)
	if strings.TrimSpace(token) == "" {
		token = h.Cookies.RefreshToken(r)
	}
	return strings.TrimSpace(token)
}

// csrfTokenForResponse reuses a well-formed CSRF cookie and mints a new token
// otherwise.
func csrfTokenForResponse(r *http.Request) (string, error) {
	if existing := auth.CSRFToken(r); len(existing) == 64 {
		return existing, nil
	}
	return auth.NewCSRFToken()
}
