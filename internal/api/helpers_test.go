package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"motorsport-api/internal/auth"
	"motorsport-api/internal/models"
	"motorsport-api/internal/storage"

	"github.com/stretchr/testify/require"
)

const testHashIterations = 1000

func newTestHandler(t *testing.T) (*Handler, storage.Repository) {
	t.Helper()
	store, err := storage.NewJSONRepository(filepath.Join(t.TempDir(), "store.json"), storage.WithPasswordHashIterations(testHashIterations))
	require.NoError(t, err)
	cfg := auth.DefaultTokenConfig()
	cfg.SigningKey = []byte("api-test-signing-key")
	tokens, err := auth.NewTokenManager(cfg)
	require.NoError(t, err)
	return NewHandler(store, tokens, auth.DefaultCookieConfig()), store
}

// newSeededHandler loads the bundled demo championship.
func newSeededHandler(t *testing.T) (*Handler, storage.Repository) {
	t.Helper()
	handler, store := newTestHandler(t)
	fx, err := storage.DefaultFixture()
	require.NoError(t, err)
	_, err = storage.ImportFixture(context.Background(), store, fx)
	require.NoError(t, err)
	return handler, store
}

func createTestUser(t *testing.T, store storage.Repository, username string, staff bool) models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), storage.CreateUserParams{
		Username: username,
		Password: "supersecret1",
		IsStaff:  staff,
	})
	require.NoError(t, err)
	return user
}

type requestOption func(*http.Request)

func asUser(user models.User) requestOption {
	return func(r *http.Request) {
		*r = *r.WithContext(ContextWithUser(r.Context(), user))
	}
}

func withCookie(name, value string) requestOption {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

func serve(t *testing.T, handler http.HandlerFunc, method, target string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		encoded, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), "body: %s", rec.Body.String())
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	decodeInto(t, rec, &resp)
	return resp
}

func findCookie(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %q not found", name)
	return nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}
