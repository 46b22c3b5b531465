// Package standings aggregates season results into driver and constructor
// championship tables.
package standings

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"motorsport-api/internal/models"
	"motorsport-api/internal/storage"
)

const podiumCutoff = 3

// DriverStanding is one row of the drivers' championship.
type DriverStanding struct {
	DriverID    int64  `json:"driver_id"`
	DriverName  string `json:"driver_name"`
	TeamName    string `json:"team_name"`
	TotalPoints int    `json:"total_points"`
	Wins        int    `json:"wins"`
	Podiums     int    `json:"podiums"`
}

// ConstructorStanding is one row of the constructors' championship.
type ConstructorStanding struct {
	TeamID      int64  `json:"team_id"`
	TeamName    string `json:"team_name"`
	TotalPoints int    `json:"total_points"`
	Wins        int    `json:"wins"`
}

// Drivers groups rows by driver. Rows are ordered by total points, then wins,
// then driver name; the driver id settles exact duplicates.
func Drivers(rows []models.SeasonResult) []DriverStanding {
	byDriver := make(map[int64]*DriverStanding)
	for _, row := range rows {
		entry, ok := byDriver[row.DriverID]
		if !ok {
			entry = &DriverStanding{DriverID: row.DriverID, DriverName: row.DriverName, TeamName: row.TeamName}
			byDriver[row.DriverID] = entry
		}
		entry.TotalPoints += row.PointsEarned
		if row.Position == 1 {
			entry.Wins++
		}
		if row.Position <= podiumCutoff {
			entry.Podiums++
		}
	}

	out := make([]DriverStanding, 0, len(byDriver))
	for _, entry := range byDriver {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.DriverName != b.DriverName {
			return a.DriverName < b.DriverName
		}
		return a.DriverID < b.DriverID
	})
	return out
}

// Constructors groups rows by the drivers' teams using the same ordering as
// Drivers.
func Constructors(rows []models.SeasonResult) []ConstructorStanding {
	byTeam := make(map[int64]*ConstructorStanding)
	for _, row := range rows {
		entry, ok := byTeam[row.TeamID]
		if !ok {
			entry = &ConstructorStanding{TeamID: row.TeamID, TeamName: row.TeamName}
			byTeam[row.TeamID] = entry
		}
		entry.TotalPoints += row.PointsEarned
		if row.Position == 1 {
			entry.Wins++
		}
	}

	out := make([]ConstructorStanding, 0, len(byTeam))
	for _, entry := range byTeam {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.TeamName != b.TeamName {
			return a.TeamName < b.TeamName
		}
		return a.TeamID < b.TeamID
	})
	return out
}

// SeasonLookup is the subset of storage.Repository needed to resolve a season.
type SeasonLookup interface {
	GetSeason(ctx context.Context, id int64) (models.SeasonSummary, error)
	FindSeasonByYear(ctx context.Context, year int) (models.SeasonSummary, error)
	LatestSeason(ctx context.Context) (models.SeasonSummary, error)
}

// SeasonQuery is a parsed season selector. Raw is the trimmed query text and
// Value its numeric form; a zero Value selects the latest season.
type SeasonQuery struct {
	Raw   string
	Value int64
}

// ByYear reports whether the selector names a year rather than an id. Four
// digit values are years.
func (q SeasonQuery) ByYear() bool {
	return len(q.Raw) == 4
}

// NotFoundError reports that no season matched the selector.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// ResolveSeason selects the season by year, by id, or the most recent one when
// the query is empty.
func ResolveSeason(ctx context.Context, lookup SeasonLookup, q SeasonQuery) (models.SeasonSummary, error) {
	var (
		season models.SeasonSummary
		err    error
	)
	switch {
	case q.Value == 0:
		season, err = lookup.LatestSeason(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			return models.SeasonSummary{}, &NotFoundError{Message: "No seasons available."}
		}
	case q.ByYear():
		season, err = lookup.FindSeasonByYear(ctx, int(q.Value))
	default:
		season, err = lookup.GetSeason(ctx, q.Value)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return models.SeasonSummary{}, &NotFoundError{Message: fmt.Sprintf("No season found for '%s'.", q.Raw)}
	}
	if err != nil {
		return models.SeasonSummary{}, fmt.Errorf("resolve season: %w", err)
	}
	return season, nil
}

// Table is a resolved season together with its standings.
type Table[T any] struct {
	Season  int `json:"season"`
	Results []T `json:"results"`
}

// Source provides everything needed to build standings tables.
type Source interface {
	SeasonLookup
	SeasonResults(ctx context.Context, seasonID int64) ([]models.SeasonResult, error)
}

// DriverTable resolves the season and aggregates its driver standings.
func DriverTable(ctx context.Context, src Source, q SeasonQuery) (Table[DriverStanding], error) {
	season, rows, err := load(ctx, src, q)
	if err != nil {
		return Table[DriverStanding]{}, err
	}
	return Table[DriverStanding]{Season: season.Year, Results: Drivers(rows)}, nil
}

// ConstructorTable resolves the season and aggregates its constructor standings.
func ConstructorTable(ctx context.Context, src Source, q SeasonQuery) (Table[ConstructorStanding], error) {
	season, rows, err := load(ctx, src, q)
	if err != nil {
		return Table[ConstructorStanding]{}, err
	}
	return Table[ConstructorStanding]{Season: season.Year, Results: Constructors(rows)}, nil
}

func load(ctx context.Context, src Source, q SeasonQuery) (models.SeasonSummary, []models.SeasonResult, error) {
	season, err := ResolveSeason(ctx, src, q)
	if err != nil {
		return models.SeasonSummary{}, nil, err
	}
	rows, err := src.SeasonResults(ctx, season.ID)
	if err != nil {
		return models.SeasonSummary{}, nil, fmt.Errorf("load season results: %w", err)
	}
	return season, rows, nil
}
