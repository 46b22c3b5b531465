package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"motorsport-api/internal/api"
	"motorsport-api/internal/auth"
	"motorsport-api/internal/models"
	"motorsport-api/internal/observability/metrics"
	"motorsport-api/internal/storage"
)

func newTestHandler(t *testing.T) (*api.Handler, storage.Repository) {
	t.Helper()
	store, err := storage.NewJSONRepository(filepath.Join(t.TempDir(), "store.json"), storage.WithPasswordHashIterations(1000))
	if err != nil {
		t.Fatalf("NewJSONRepository error: %v", err)
	}
	cfg := auth.DefaultTokenConfig()
	cfg.SigningKey = []byte("server-test-signing-key")
	tokens, err := auth.NewTokenManager(cfg)
	if err != nil {
		t.Fatalf("NewTokenManager error: %v", err)
	}
	return api.NewHandler(store, tokens, auth.DefaultCookieConfig()), store
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	handler, _ := newTestHandler(t)
	return newTestServerWithHandler(t, handler, cfg)
}

func newTestServerWithHandler(t *testing.T, handler *api.Handler, cfg Config) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv, err := New(handler, cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return srv
}

func createUser(t *testing.T, store storage.Repository, username string, staff bool) models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), storage.CreateUserParams{
		Username: username,
		Password: "supersecret1",
		IsStaff:  staff,
	})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	return user
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func serveRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewReturnsErrorWhenHandlerNil(t *testing.T) {
	t.Parallel()

	srv, err := New(nil, Config{})
	if err == nil {
		t.Fatalf("expected error when handler is nil, got server: %#v", srv)
	}
}

func TestNewRejectsInvalidCORSOrigin(t *testing.T) {
	handler, _ := newTestHandler(t)
	if _, err := New(handler, Config{CORS: CORSConfig{AllowedOrigins: []string{"not a url"}}}); err == nil {
		t.Fatal("expected error for invalid CORS origin")
	}
}

func TestRoutesDispatchToHandlers(t *testing.T) {
	srv := newTestServer(t, Config{})

	for _, tc := range []struct {
		path   string
		status int
	}{
		{"/api/health/", http.StatusOK},
		{"/api/v1/teams/", http.StatusOK},
		{"/api/v1/drivers/standings/", http.StatusOK},
		{"/api/v1/seasons/", http.StatusOK},
		{"/api/v1/races/", http.StatusOK},
		{"/api/v1/results/", http.StatusOK},
		{"/api/v1/stats/", http.StatusOK},
		{"/api/v1/auth/csrf/", http.StatusOK},
		{"/api/v1/standings/drivers/", http.StatusNotFound},
		{"/api/v1/stats/extra/", http.StatusNotFound},
		{"/api/health/deep/", http.StatusNotFound},
		{"/api/v2/teams/", http.StatusNotFound},
		{"/", http.StatusNotFound},
	} {
		rec := serveRequest(srv, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.path, tc.status, rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s: expected JSON content type, got %q", tc.path, ct)
		}
	}
}

func TestUnknownAPIPathUsesEnvelope(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := serveRequest(srv, httptest.NewRequest(http.MethodGet, "/api/nowhere/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error != "not_found" || resp.Detail != api.DetailResourceNotFound || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestRequestIDEchoedOnResponses(t *testing.T) {
	srv := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/health/", nil)
	req.Header.Set("X-Request-ID", "  trace-123  ")
	rec := serveRequest(srv, req)
	if got := rec.Header().Get("X-Request-ID"); got != "trace-123" {
		t.Fatalf("expected trimmed request id, got %q", got)
	}

	rec = serveRequest(srv, httptest.NewRequest(http.MethodGet, "/api/health/", nil))
	if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Fatalf("expected a generated uuid, got %q", got)
	}
}

func TestAuthMiddlewareBearerToken(t *testing.T) {
	handler, store := newTestHandler(t)
	user := createUser(t, store, "pitwall", false)
	pair, err := handler.Tokens.Issue(user.ID)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	srv := newTestServerWithHandler(t, handler, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	rec := serveRequest(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var me struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.ID != user.ID || me.Username != "pitwall" {
		t.Fatalf("unexpected user: %+v", me)
	}
}

func TestAuthMiddlewareRejectsInvalidToken(t *testing.T) {
	srv := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/teams/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := serveRequest(srv, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}
	if resp := decodeError(t, rec); resp.Error != "unauthorized" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestAuthMiddlewareSkipsLoginEndpoints(t *testing.T) {
	handler, store := newTestHandler(t)
	createUser(t, store, "pitwall", false)
	srv := newTestServerWithHandler(t, handler, Config{})

	body := bytes.NewBufferString(`{"username":"pitwall","password":"supersecret1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token/", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer stale")
	rec := serveRequest(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login to ignore stale credentials, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareRequiresCSRFForCookieWrites(t *testing.T) {
	handler, store := newTestHandler(t)
	admin := createUser(t, store, "marshal", true)
	pair, err := handler.Tokens.Issue(admin.ID)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	srv := newTestServerWithHandler(t, handler, Config{})

	newPost := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/teams/", strings.NewReader(`{"name":"Orange Comet","country":"Netherlands"}`))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(&http.Cookie{Name: "access_token", Value: pair.Access})
		return req
	}

	rec := serveRequest(srv, newPost())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); !strings.HasPrefix(resp.Detail, "CSRF Failed") {
		t.Fatalf("unexpected detail: %q", resp.Detail)
	}

	req := newPost()
	req.AddCookie(&http.Cookie{Name: auth.CSRFCookieName, Value: "csrf-value"})
	req.Header.Set(auth.CSRFHeaderName, "csrf-value")
	rec = serveRequest(srv, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 with CSRF token, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareRejectsDeletedUser(t *testing.T) {
	handler, _ := newTestHandler(t)
	pair, err := handler.Tokens.Issue(4242)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	srv := newTestServerWithHandler(t, handler, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/teams/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	rec := serveRequest(srv, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Detail != "User not found" {
		t.Fatalf("unexpected detail: %q", resp.Detail)
	}
}

func TestRateLimitLoginScope(t *testing.T) {
	srv := newTestServer(t, Config{RateLimit: RateLimitConfig{Rates: map[Scope]Rate{
		ScopeAuthLogin: {Limit: 2, Window: time.Minute},
	}}})

	login := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token/", strings.NewReader(`{"username":"nobody","password":"supersecret1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remote
		return serveRequest(srv, req)
	}

	for i := 0; i < 2; i++ {
		if rec := login("198.51.100.7:5000"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec := login("198.51.100.7:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected Retry-After 30, got %q", got)
	}
	resp := decodeError(t, rec)
	if resp.Error != "too_many_requests" || resp.Detail != "Request was throttled. Expected available in 30 seconds." {
		t.Fatalf("unexpected envelope: %+v", resp)
	}

	if rec := login("198.51.100.8:5000"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected another client to have its own budget, got %d", rec.Code)
	}

	health := httptest.NewRequest(http.MethodGet, "/api/health/", nil)
	health.RemoteAddr = "198.51.100.7:5002"
	if rec := serveRequest(srv, health); rec.Code != http.StatusOK {
		t.Fatalf("expected unscoped routes to stay available, got %d", rec.Code)
	}
}

func TestRateLimitKeysUsersByID(t *testing.T) {
	handler, store := newTestHandler(t)
	user := createUser(t, store, "pitwall", false)
	pair, err := handler.Tokens.Issue(user.ID)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	srv := newTestServerWithHandler(t, handler, Config{RateLimit: RateLimitConfig{Rates: map[Scope]Rate{
		ScopeAnon: {Limit: 1, Window: time.Hour},
		ScopeUser: {Limit: 2, Window: time.Hour},
	}}})

	get := func(remote string, authenticated bool) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/teams/", nil)
		req.RemoteAddr = remote
		if authenticated {
			req.Header.Set("Authorization", "Bearer "+pair.Access)
		}
		return serveRequest(srv, req).Code
	}

	if code := get("192.0.2.1:1", false); code != http.StatusOK {
		t.Fatalf("first anonymous request: %d", code)
	}
	if code := get("192.0.2.1:1", false); code != http.StatusTooManyRequests {
		t.Fatalf("second anonymous request: %d", code)
	}
	if code := get("192.0.2.1:1", true); code != http.StatusOK {
		t.Fatalf("first user request: %d", code)
	}
	if code := get("192.0.2.2:1", true); code != http.StatusOK {
		t.Fatalf("second user request from another address: %d", code)
	}
	if code := get("192.0.2.3:1", true); code != http.StatusTooManyRequests {
		t.Fatalf("third user request: %d", code)
	}
}

func TestRecoverMiddlewareReturnsEnvelope(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	chain := requestIDMiddlewareWithGenerator(logger, func() string { return "req-panic" }, recoverMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/teams/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error != "internal_server_error" || resp.Detail != "Unexpected server error." {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "req-panic" {
		t.Fatalf("expected request id header, got %q", got)
	}
	out := logs.String()
	if !strings.Contains(out, `"request_id":"req-panic"`) || !strings.Contains(out, `"panic":"boom"`) || !strings.Contains(out, `"stack"`) {
		t.Fatalf("expected panic log with request id and stack, got %s", out)
	}
}

func TestMetricsEndpointsExposeRequestCounters(t *testing.T) {
	registry := metrics.NewRegistry()
	srv := newTestServer(t, Config{Metrics: registry})

	serveRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/teams/12/", nil))

	rec := serveRequest(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `motorsport_http_requests_total{method="GET",path="/api/v1/teams/:id/",status="404"} 1`) {
		t.Fatalf("expected normalized request counter, got:\n%s", body)
	}

	rec = serveRequest(srv, httptest.NewRequest(http.MethodGet, "/metrics/runtime", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics/runtime, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "go_goroutines") || !strings.Contains(body, "motorsport_http_requests_total") {
		t.Fatalf("expected runtime and http metrics, got:\n%s", body)
	}
}

func TestParseRate(t *testing.T) {
	cases := []struct {
		in      string
		want    Rate
		wantErr bool
	}{
		{"120/min", Rate{Limit: 120, Window: time.Minute}, false},
		{"10/hour", Rate{Limit: 10, Window: time.Hour}, false},
		{" 5 / second ", Rate{Limit: 5, Window: time.Second}, false},
		{"1000/day", Rate{Limit: 1000, Window: 24 * time.Hour}, false},
		{"", Rate{}, false},
		{"none", Rate{}, false},
		{"12", Rate{}, true},
		{"x/min", Rate{}, true},
		{"5/fortnight", Rate{}, true},
		{"0/min", Rate{}, true},
		{"-3/min", Rate{}, true},
	}
	for _, tc := range cases {
		got, err := ParseRate(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseRate(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRate(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRate(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestScopeForRequest(t *testing.T) {
	cases := map[string]Scope{
		"/api/v1/auth/token/":         ScopeAuthLogin,
		"/api/v1/auth/token/refresh/": ScopeAuthRefresh,
		"/api/v1/auth/register/":      ScopeAuthRegister,
		"/api/v1/auth/logout/":        ScopeAuthLogout,
		"/api/v1/auth/me/":            ScopeAnon,
		"/api/v1/teams/":              ScopeAnon,
	}
	for path, want := range cases {
		if got := scopeForRequest(path, false); got != want {
			t.Fatalf("scopeForRequest(%q) = %q, want %q", path, got, want)
		}
	}
	if got := scopeForRequest("/api/v1/teams/", true); got != ScopeUser {
		t.Fatalf("expected user scope for authenticated request, got %q", got)
	}
}

func TestThrottledDetailPluralisation(t *testing.T) {
	if got := throttledDetail(1); got != "Request was throttled. Expected available in 1 second." {
		t.Fatalf("unexpected singular detail: %q", got)
	}
	if got := throttledDetail(7); got != "Request was throttled. Expected available in 7 seconds." {
		t.Fatalf("unexpected plural detail: %q", got)
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	srv := newTestServer(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}
}
