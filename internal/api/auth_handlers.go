package api

import (
	"errors"
	"net/http"
	"strings"

	"motorsport-api/internal/auth"
	"motorsport-api/internal/observability/logging"
	"motorsport-api/internal/storage"
)

const (
	msgBlank            = "This field may not be blank."
	msgPasswordMismatch = "Passwords do not match."
	msgUsernameTaken    = "Username already exists."
	msgRefreshInvalid   = "Invalid or expired refresh token."
	maxUsernameLength   = 150
)

type tokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type registerResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    userResponse `json:"user"`
}

// Auth serves the /api/v1/auth/ endpoints.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	switch strings.Join(pathSegments(r.URL.Path, authPath), "/") {
	case "csrf":
		h.csrf(w, r)
	case "register":
		h.register(w, r)
	case "token":
		h.login(w, r)
	case "token/refresh":
		h.refresh(w, r)
	case "logout":
		h.logout(w, r)
	case "me":
		h.me(w, r)
	default:
		writeResourceNotFound(w)
	}
}

func (h *Handler) csrf(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r, "Csrf Token") {
		return
	}
	token, err := csrfTokenForResponse(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.Cookies.SetCSRFCookie(w, r, token)
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

// requiredText reads a mandatory string member. Blank values are rejected
// after trimming when trim is set.
func requiredText(body payload, verr *storage.ValidationError, key string, trim bool) string {
	value, ok := body.str(verr, key, true)
	if !ok {
		return ""
	}
	if trim {
		value = strings.TrimSpace(value)
	}
	if strings.TrimSpace(value) == "" {
		verr.Add(key, msgBlank)
		return ""
	}
	return value
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, allowPost)
		return
	}
	body, err := decodeJSON(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	verr := &storage.ValidationError{}
	username := requiredText(body, verr, "username", true)
	password := requiredText(body, verr, "password", false)
	confirm := requiredText(body, verr, "password_confirm", false)
	if username != "" {
		if len([]rune(username)) > maxUsernameLength {
			verr.Add("username", "Ensure this field has no more than 150 characters.")
		} else if _, err := h.Store.FindUserByUsername(r.Context(), username); err == nil {
			verr.Add("username", msgUsernameTaken)
		} else if !errors.Is(err, storage.ErrNotFound) {
			WriteError(w, r, err)
			return
		}
	}
	if err := verr.OrNil(); err != nil {
		WriteError(w, r, err)
		return
	}
	if password != confirm {
		WriteError(w, r, fieldErrors("password_confirm", msgPasswordMismatch))
		return
	}
	if problems := storage.ValidatePassword(password); len(problems) > 0 {
		WriteError(w, r, &storage.ValidationError{Fields: map[string][]string{"password": problems}})
		return
	}

	user, err := h.Store.CreateUser(r.Context(), storage.CreateUserParams{Username: username, Password: password})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	pair, err := h.Tokens.Issue(user.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	logging.LoggerFromContext(r.Context()).Info("user registered", "user_id", user.ID)
	h.setAuthCookies(w, r, pair.Access, pair.Refresh)
	writeJSON(w, http.StatusCreated, registerResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    newUserResponse(user),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, allowPost)
		return
	}
	body, err := decodeJSON(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	verr := &storage.ValidationError{}
	username := requiredText(body, verr, "username", true)
	password := requiredText(body, verr, "password", false)
	if err := verr.OrNil(); err != nil {
		WriteError(w, r, err)
		return
	}

	user, err := h.Store.AuthenticateUser(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = storage.ErrInvalidCredentials
		}
		WriteError(w, r, err)
		return
	}
	pair, err := h.Tokens.Issue(user.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.setAuthCookies(w, r, pair.Access, pair.Refresh)
	writeJSON(w, http.StatusOK, tokenPairResponse{Access: pair.Access, Refresh: pair.Refresh})
}

// refresh exchanges a refresh token from the body or cookie for a new access
// token. Without rotation the presented refresh token stays in the cookie.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, allowPost)
		return
	}
	body, err := decodeJSON(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	raw := h.refreshTokenFromRequest(r, body)
	if raw == "" {
		WriteError(w, r, fieldErrors("refresh", msgBlank))
		return
	}
	pair, err := h.Tokens.Refresh(r.Context(), raw)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if _, err := h.Store.GetUser(r.Context(), pair.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = newStatusError(http.StatusUnauthorized, detailUserNotFound)
		}
		WriteError(w, r, err)
		return
	}
	cookieRefresh := pair.Refresh
	if cookieRefresh == "" {
		cookieRefresh = raw
	}
	h.setAuthCookies(w, r, pair.Access, cookieRefresh)
	writeJSON(w, http.StatusOK, tokenPairResponse{Access: pair.Access, Refresh: pair.Refresh})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, allowPost)
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	body, err := decodeJSON(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	raw := h.refreshTokenFromRequest(r, body)
	if raw == "" {
		WriteError(w, r, fieldErrors("refresh", msgRequired))
		return
	}
	if _, err := h.Tokens.Revoke(r.Context(), raw); err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			err = fieldErrors("refresh", msgRefreshInvalid)
		}
		WriteError(w, r, err)
		return
	}
	logging.LoggerFromContext(r.Context()).Info("refresh token revoked", "user_id", user.ID)
	h.clearAuthCookies(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r, "Auth Me") {
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}
