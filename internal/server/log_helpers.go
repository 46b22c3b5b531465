package server

import (
	"log/slog"
	"net/http"

	"motorsport-api/internal/observability/logging"
)

// requestLogger returns the logger stored on the request context, or base
// annotated with the context ids. A nil base means the process default.
func requestLogger(r *http.Request, base *slog.Logger) *slog.Logger {
	if logger, ok := logging.ContextLogger(r.Context()); ok {
		return logger
	}
	return logging.WithContext(r.Context(), base)
}
