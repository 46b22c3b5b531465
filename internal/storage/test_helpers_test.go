package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testHashIterations = 1000

func newTestStore(t *testing.T, extra ...Option) *Storage {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	opts := append([]Option{WithPasswordHashIterations(testHashIterations)}, extra...)
	store, err := NewStorage(path, opts...)
	if err != nil {
		t.Fatalf("NewStorage error: %v", err)
	}
	return store
}

func jsonRepositoryFactory(t *testing.T, opts ...Option) (Repository, func(), error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	defaults := []Option{WithPasswordHashIterations(testHashIterations)}
	opts = append(defaults, opts...)
	store, err := NewStorage(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

// requireFieldError asserts err is a ValidationError carrying message for field.
func requireFieldError(t *testing.T, err error, field, message string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for %s, got %v", field, err)
	}
	for _, got := range verr.Fields[field] {
		if got == message {
			return
		}
	}
	t.Fatalf("expected %s message %q, got %v", field, message, verr.Fields)
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
