package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func swapDefault(t *testing.T, logger *slog.Logger) {
	t.Helper()
	previous := slog.Default()
	slog.SetDefault(logger)
	t.Cleanup(func() { slog.SetDefault(previous) })
}

func TestNewFormats(t *testing.T) {
	var jsonBuf, textBuf bytes.Buffer
	New(Config{Writer: &jsonBuf}).Info("json line")
	New(Config{Writer: &textBuf, Format: " TEXT "}).Info("text line")

	if entry := decodeLine(t, &jsonBuf); entry["msg"] != "json line" {
		t.Fatalf("expected json msg, got %v", entry["msg"])
	}
	if !strings.Contains(textBuf.String(), `msg="text line"`) {
		t.Fatalf("expected text output, got %q", textBuf.String())
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf, Level: "warn"})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("expected warn output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DeBuG ": slog.LevelDebug,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	WithComponent(slog.New(slog.NewJSONHandler(&buf, nil)), "api").Info("tagged")
	if entry := decodeLine(t, &buf); entry["component"] != "api" {
		t.Fatalf("expected component api, got %v", entry["component"])
	}

	if WithComponent(nil, "purger") == nil {
		t.Fatal("expected the default logger for a nil input")
	}
}

func TestContextIDs(t *testing.T) {
	ctx := ContextWithUserID(ContextWithRequestID(context.Background(), " req-123 "), 42)

	if id, ok := RequestIDFromContext(ctx); !ok || id != "req-123" {
		t.Fatalf("expected request id req-123, got %q", id)
	}
	if id, ok := UserIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("expected user id 42, got %d", id)
	}
	if _, ok := UserIDFromContext(ContextWithUserID(context.Background(), 0)); ok {
		t.Fatal("expected non-positive user ids to be ignored")
	}
}

func TestRequestIDOrDefault(t *testing.T) {
	if got := RequestIDOrDefault(context.Background()); got != NoRequestID {
		t.Fatalf("expected %q outside a request, got %q", NoRequestID, got)
	}
	if got := RequestIDOrDefault(ContextWithRequestID(context.Background(), "   ")); got != NoRequestID {
		t.Fatalf("expected blank ids to be ignored, got %q", got)
	}
	if got := RequestIDOrDefault(ContextWithRequestID(context.Background(), "abc")); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestWithContextAnnotatesLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithUserID(ContextWithRequestID(context.Background(), "req-1"), 7)

	WithContext(ctx, slog.New(slog.NewJSONHandler(&buf, nil))).Info("hello")

	entry := decodeLine(t, &buf)
	if entry["request_id"] != "req-1" {
		t.Fatalf("expected request_id req-1, got %v", entry["request_id"])
	}
	if entry["user_id"] != float64(7) {
		t.Fatalf("expected user_id 7, got %v", entry["user_id"])
	}
}

func TestWithContextOutsideRequestUsesPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	WithContext(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil))).Info("startup")

	entry := decodeLine(t, &buf)
	if entry["request_id"] != NoRequestID {
		t.Fatalf("expected request_id %q, got %v", NoRequestID, entry["request_id"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Fatalf("expected no user_id, got %v", entry["user_id"])
	}
}

func TestLoggerFromContextFallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	swapDefault(t, slog.New(slog.NewJSONHandler(&buf, nil)))

	logger := LoggerFromContext(context.Background())
	if logger == nil {
		t.Fatal("expected a logger without one on the context")
	}
	logger.Warn("fallback")

	entry := decodeLine(t, &buf)
	if entry["msg"] != "fallback" || entry["request_id"] != NoRequestID {
		t.Fatalf("unexpected fallback entry %v", entry)
	}
	if _, ok := ContextLogger(context.Background()); ok {
		t.Fatal("expected no stored logger")
	}
}

func TestLoggerFromContextPrefersStoredLogger(t *testing.T) {
	var buf bytes.Buffer
	stored := slog.New(slog.NewJSONHandler(&buf, nil)).With("origin", "stored")
	ctx := ContextWithLogger(context.Background(), stored)

	LoggerFromContext(ctx).Info("hello")

	if entry := decodeLine(t, &buf); entry["origin"] != "stored" {
		t.Fatalf("expected stored logger, got %v", entry)
	}
	if ContextWithLogger(ctx, nil) != ctx {
		t.Fatal("expected nil logger to leave the context unchanged")
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	middleware := RequestLogger(RequestLoggerConfig{Logger: slog.New(slog.NewJSONHandler(&buf, nil))})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/teams/", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-9"))

	middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})).ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLine(t, &buf)
	if entry["status"] != float64(http.StatusCreated) {
		t.Fatalf("expected status 201, got %v", entry["status"])
	}
	if entry["remote_addr"] != "127.0.0.1:1234" || entry["path"] != "/api/v1/teams/" {
		t.Fatalf("expected remote_addr and path, got %v", entry)
	}
	if entry["request_id"] != "req-9" || entry["level"] != "INFO" {
		t.Fatalf("expected info line with request id, got %v", entry)
	}
}

func TestRequestLoggerServerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	middleware := RequestLogger(RequestLoggerConfig{
		Logger:            slog.New(slog.NewJSONHandler(&buf, nil)),
		DisableRemoteAddr: true,
		AdditionalFields: func(*http.Request, int, time.Duration) []any {
			return []any{"remote_ip", "10.0.0.1"}
		},
	})

	middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health/", nil))

	entry := decodeLine(t, &buf)
	if entry["level"] != "ERROR" {
		t.Fatalf("expected error level, got %v", entry["level"])
	}
	if _, ok := entry["remote_addr"]; ok {
		t.Fatal("expected remote_addr to be omitted")
	}
	if entry["remote_ip"] != "10.0.0.1" {
		t.Fatalf("expected additional field, got %v", entry["remote_ip"])
	}
}
