package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"motorsport-api/internal/api"
	"motorsport-api/internal/observability/logging"
	"motorsport-api/internal/observability/metrics"
)

// unauthenticatedEndpoints lists the auth endpoints, relative to authPrefix,
// that ignore presented credentials so a stale token never blocks a login.
var unauthenticatedEndpoints = map[string]struct{}{
	"csrf":          {},
	"register":      {},
	"token":         {},
	"token/refresh": {},
}

func skipsAuthentication(path string) bool {
	if !strings.HasPrefix(path, authPrefix) {
		return false
	}
	_, ok := unauthenticatedEndpoints[strings.Trim(strings.TrimPrefix(path, authPrefix), "/")]
	return ok
}

// authMiddleware resolves the caller of every /api/ request. Anonymous
// requests pass through; bad credentials are rejected before routing.
func authMiddleware(handler *api.Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, api.APIPrefix) || skipsAuthentication(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		user, err := handler.AuthenticateRequest(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		if user == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := api.ContextWithUser(r.Context(), *user)
		ctx = logging.ContextWithUserID(ctx, user.ID)
		if logger, ok := logging.ContextLogger(ctx); ok {
			ctx = logging.ContextWithLogger(ctx, logger.With("user_id", user.ID))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoverMiddleware turns a handler panic into the generic 500 envelope. The
// stack is logged with the request id.
func recoverMiddleware(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := metrics.NewResponseRecorder(w)
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			requestLogger(r, base).Error("panic serving request",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(recovered),
				"stack", string(debug.Stack()))
			if !rr.WroteHeader() {
				writeMiddlewareError(rr, http.StatusInternalServerError, "")
			}
		}()
		next.ServeHTTP(rr, r)
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeMiddlewareError(w, http.StatusNotFound, api.DetailResourceNotFound)
}

// exactPath serves h only for path itself so subtree patterns do not swallow
// unknown children.
func exactPath(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			notFoundHandler(w, r)
			return
		}
		h(w, r)
	}
}
