package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	passwordHashSaltLength = 16
	passwordHashKeyLength  = 32
	passwordHashIterations = 120000

	// MinPasswordLength is the shortest password accepted for new accounts.
	MinPasswordLength = 8

	// NonFieldErrors is the field key used for errors spanning several fields.
	NonFieldErrors = "non_field_errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrProtected          = errors.New("protected")
)

// ProtectedError reports a delete refused because dependent rows still exist.
type ProtectedError struct {
	Message string
}

func (e *ProtectedError) Error() string {
	return e.Message
}

func (e *ProtectedError) Unwrap() error {
	return ErrProtected
}

// ValidationError carries per-field messages for rejected writes.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", key, strings.Join(e.Fields[key], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// OrNil returns nil when no messages were recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func fieldError(field, message string) *ValidationError {
	verr := &ValidationError{}
	verr.Add(field, message)
	return verr
}

func invalidPK(field string, id int64) *ValidationError {
	return fieldError(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
}

func uniqueTogether(fields ...string) *ValidationError {
	return fieldError(NonFieldErrors, fmt.Sprintf("The fields %s must make a unique set.", strings.Join(fields, ", ")))
}

// Page selects a window of a list. A zero Limit returns every row.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(total int) (start, end int) {
	start = p.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end = total
	if p.Limit > 0 && start+p.Limit < total {
		end = start + p.Limit
	}
	return start, end
}

// CreateUserParams captures the attributes that can be set when creating a user.
type CreateUserParams struct {
	Username    string
	Password    string
	IsStaff     bool
	IsSuperuser bool
}

type TeamInput struct {
	Name    string
	Country string
}

type DriverInput struct {
	Name   string
	TeamID int64
}

type SeasonInput struct {
	Year int
	Name string
}

type RaceInput struct {
	SeasonID    int64
	RoundNumber int
	Name        string
	Country     string
	RaceDate    time.Time
}

type ResultInput struct {
	RaceID       int64
	DriverID     int64
	Position     int
	PointsEarned int
	FastestLap   bool
}

// TeamFilter matches teams whose country and name contain the given text,
// ignoring case.
type TeamFilter struct {
	Country string
	Name    string
}

// DriverFilter narrows the driver list. MinPoints is a pointer because zero is
// a meaningful threshold.
type DriverFilter struct {
	TeamID    int64
	Country   string
	MinPoints *int
}

type SeasonFilter struct {
	Year int
}

// SeasonRef identifies a season either by id or by year. Both zero means any
// season.
type SeasonRef struct {
	ID   int64
	Year int
}

func (r SeasonRef) IsZero() bool {
	return r.ID == 0 && r.Year == 0
}

type RaceFilter struct {
	Season  SeasonRef
	Country string
}

type ResultFilter struct {
	RaceID   int64
	DriverID int64
	Season   SeasonRef
}
