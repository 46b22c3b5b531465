package api

import (
	"context"
	"errors"
	"net/http"

	"motorsport-api/internal/models"
	"motorsport-api/internal/storage"
)

type contextKey string

const userContextKey contextKey = "authenticatedUser"

// ContextWithUser stores the authenticated user in the provided context.
func ContextWithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from context if present.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

// AuthenticateRequest resolves the user behind the request credentials. It
// returns nil without error for anonymous requests. Invalid tokens, failed
// CSRF checks and deleted accounts are errors WriteError understands.
func (h *Handler) AuthenticateRequest(r *http.Request) (*models.User, error) {
	if h.Authenticator == nil {
		return nil, nil
	}
	identity, err := h.Authenticator.Authenticate(r)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, nil
	}
	user, err := h.Store.GetUser(r.Context(), identity.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newStatusError(http.StatusUnauthorized, detailUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *Handler) requireAuthenticatedUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		WriteDetail(w, http.StatusUnauthorized, detailNotProvided)
		return models.User{}, false
	}
	return user, true
}

// requireStaff guards write operations. Anonymous callers get 401 and
// authenticated non-staff users get 403.
func (h *Handler) requireStaff(w http.ResponseWriter, r *http.Request) bool {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return false
	}
	if !user.IsStaff {
		WriteDetail(w, http.StatusForbidden, detailForbidden)
		return false
	}
	return true
}
