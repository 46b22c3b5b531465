package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"motorsport-api/internal/models"
)

type sequences struct {
	Team   int64 `json:"team"`
	Driver int64 `json:"driver"`
	Season int64 `json:"season"`
	Race   int64 `json:"race"`
	Result int64 `json:"result"`
	User   int64 `json:"user"`
}

type dataset struct {
	Teams     map[int64]models.Team       `json:"teams"`
	Drivers   map[int64]models.Driver     `json:"drivers"`
	Seasons   map[int64]models.Season     `json:"seasons"`
	Races     map[int64]models.Race       `json:"races"`
	Results   map[int64]models.RaceResult `json:"results"`
	Users     map[int64]models.User       `json:"users"`
	Sequences sequences                   `json:"sequences"`
}

// Storage is the JSON file backed Repository. Every write clones the dataset,
// applies the change to the clone, persists it and only then swaps it in, so a
// failed write leaves both memory and disk untouched.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
	hashIterations  int
	now             func() time.Time
}

var _ Repository = (*Storage)(nil)

func newDataset() dataset {
	return dataset{
		Teams:   make(map[int64]models.Team),
		Drivers: make(map[int64]models.Driver),
		Seasons: make(map[int64]models.Season),
		Races:   make(map[int64]models.Race),
		Results: make(map[int64]models.RaceResult),
		Users:   make(map[int64]models.User),
	}
}

func (d *dataset) ensureInitialized() {
	if d.Teams == nil {
		d.Teams = make(map[int64]models.Team)
	}
	if d.Drivers == nil {
		d.Drivers = make(map[int64]models.Driver)
	}
	if d.Seasons == nil {
		d.Seasons = make(map[int64]models.Season)
	}
	if d.Races == nil {
		d.Races = make(map[int64]models.Race)
	}
	if d.Results == nil {
		d.Results = make(map[int64]models.RaceResult)
	}
	if d.Users == nil {
		d.Users = make(map[int64]models.User)
	}
}

// NewStorage opens (or creates) the JSON datastore at path.
func NewStorage(path string, opts ...Option) (*Storage, error) {
	store := &Storage{
		filePath:       path,
		hashIterations: passwordHashIterations,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyJSON(store)
		}
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewJSONRepository opens the JSON-backed datastore and returns it as a
// Repository.
func NewJSONRepository(path string, opts ...Option) (Repository, error) {
	return NewStorage(path, opts...)
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}

	s.data.ensureInitialized()
	return nil
}

func (s *Storage) persistDataset(data dataset) error {
	if s.persistOverride != nil {
		if err := s.persistOverride(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

func cloneDataset(src dataset) dataset {
	clone := newDataset()
	for id, v := range src.Teams {
		clone.Teams[id] = v
	}
	for id, v := range src.Drivers {
		clone.Drivers[id] = v
	}
	for id, v := range src.Seasons {
		clone.Seasons[id] = v
	}
	for id, v := range src.Races {
		clone.Races[id] = v
	}
	for id, v := range src.Results {
		clone.Results[id] = v
	}
	for id, v := range src.Users {
		clone.Users[id] = v
	}
	clone.Sequences = src.Sequences
	return clone
}

// mutate runs fn against a clone of the dataset and commits the clone when fn
// succeeds and the file was written.
func (s *Storage) mutate(ctx context.Context, fn func(*dataset) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneDataset(s.data)
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.persistDataset(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *Storage) view(ctx context.Context, fn func(*dataset) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.data)
}

// Ping reports whether the data directory is still reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Dir(s.filePath)); err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	return nil
}
