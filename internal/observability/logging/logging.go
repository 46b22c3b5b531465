package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"motorsport-api/internal/observability/metrics"
)

// Config selects the level, encoding and destination of a logger.
type Config struct {
	Level  string
	Format string
	Writer io.Writer
}

type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// NoRequestID is reported for log lines emitted outside of a request.
const NoRequestID = "-"

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New builds a logger writing to cfg.Writer, or stdout when unset. Unknown
// levels log at info and unknown formats encode as JSON.
func New(cfg Config) *slog.Logger {
	out := cfg.Writer
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if LogFormat(normalize(cfg.Format)) == FormatText {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

func parseLevel(raw string) slog.Level {
	if level, ok := levels[normalize(raw)]; ok {
		return level
	}
	return slog.LevelInfo
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// WithComponent tags logger with a component name.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return orDefault(logger).With("component", component)
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

type (
	requestIDKey struct{}
	userIDKey    struct{}
	loggerKey    struct{}
)

// ContextWithRequestID stores a correlation id. Blank ids are ignored.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if id = strings.TrimSpace(id); id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id, id != ""
}

// RequestIDOrDefault returns the correlation id on ctx or NoRequestID.
func RequestIDOrDefault(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return NoRequestID
}

// ContextWithUserID stores the authenticated user id. Non-positive ids are ignored.
func ContextWithUserID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, userIDKey{}, id)
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, _ := ctx.Value(userIDKey{}).(int64)
	return id, id > 0
}

// ContextWithLogger stores logger on ctx. A nil logger leaves ctx unchanged.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// ContextLogger reports the logger stored on ctx, if any.
func ContextLogger(ctx context.Context) (*slog.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return logger, ok
}

// LoggerFromContext returns the logger stored on ctx. Without one it returns
// the process default annotated with the ids on ctx, so it is never nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ContextLogger(ctx); ok {
		return logger
	}
	return WithContext(ctx, nil)
}

// WithContext annotates logger with request_id, which is NoRequestID outside a
// request, and with user_id when a user is authenticated. A nil logger means
// the process default.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	attrs := []any{"request_id", RequestIDOrDefault(ctx)}
	if userID, ok := UserIDFromContext(ctx); ok {
		attrs = append(attrs, "user_id", userID)
	}
	return orDefault(logger).With(attrs...)
}

// RequestLoggerConfig configures the access log middleware.
type RequestLoggerConfig struct {
	Logger            *slog.Logger
	DisableRemoteAddr bool
	AdditionalFields  func(*http.Request, int, time.Duration) []any
}

// RequestLogger writes one access log line per request once the handler
// returns. Server errors log at error level.
func RequestLogger(cfg RequestLoggerConfig) func(http.Handler) http.Handler {
	base := orDefault(cfg.Logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := metrics.NewResponseRecorder(w)
			started := time.Now()
			next.ServeHTTP(rec, r)
			elapsed := time.Since(started)

			status := rec.Status()
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
			}
			if !cfg.DisableRemoteAddr {
				fields = append(fields, "remote_addr", r.RemoteAddr)
			}
			if cfg.AdditionalFields != nil {
				fields = append(fields, cfg.AdditionalFields(r, status, elapsed)...)
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			WithContext(r.Context(), base).Log(r.Context(), level, "request completed", fields...)
		})
	}
}
