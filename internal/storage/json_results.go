package storage

import (
	"context"
	"sort"

	"motorsport-api/internal/models"
)

func (d *dataset) resultDetail(result models.RaceResult) models.ResultDetail {
	return models.ResultDetail{
		RaceResult: result,
		Race:       d.raceDetail(d.Races[result.RaceID]),
		Driver:     d.driverDetail(d.Drivers[result.DriverID]),
	}
}

// checkResult reports the first violated per-race invariant, checked in the
// order position, driver, fastest lap.
func (d *dataset) checkResult(input ResultInput, excludeID int64) error {
	if _, ok := d.Races[input.RaceID]; !ok {
		return invalidPK("race_id", input.RaceID)
	}
	if _, ok := d.Drivers[input.DriverID]; !ok {
		return invalidPK("driver_id", input.DriverID)
	}
	conflicts := []struct {
		clash func(models.RaceResult) bool
		err   func() error
	}{
		{func(r models.RaceResult) bool { return r.Position == input.Position }, func() error { return uniqueTogether("race", "position") }},
		{func(r models.RaceResult) bool { return r.DriverID == input.DriverID }, func() error { return uniqueTogether("race", "driver") }},
		{func(r models.RaceResult) bool { return input.FastestLap && r.FastestLap }, func() error { return fieldError("fastest_lap", msgFastestLap) }},
	}
	for _, check := range conflicts {
		for id, result := range d.Results {
			if id != excludeID && result.RaceID == input.RaceID && check.clash(result) {
				return check.err()
			}
		}
	}
	return nil
}

// recalculateDriverPoints sets each listed driver's points to the sum of their
// results. Unknown ids are skipped.
func (d *dataset) recalculateDriverPoints(driverIDs []int64) {
	ids := normalizeIDs(driverIDs)
	if len(ids) == 0 {
		return
	}
	totals := make(map[int64]int, len(ids))
	for _, id := range ids {
		totals[id] = 0
	}
	for _, result := range d.Results {
		if _, tracked := totals[result.DriverID]; tracked {
			totals[result.DriverID] += result.PointsEarned
		}
	}
	for _, id := range ids {
		driver, ok := d.Drivers[id]
		if !ok {
			continue
		}
		driver.Points = totals[id]
		d.Drivers[id] = driver
	}
}

func (s *Storage) RecalculatePoints(ctx context.Context, driverIDs ...int64) error {
	if len(normalizeIDs(driverIDs)) == 0 {
		return nil
	}
	return s.mutate(ctx, func(d *dataset) error {
		d.recalculateDriverPoints(driverIDs)
		return nil
	})
}

func (s *Storage) CreateResult(ctx context.Context, input ResultInput) (models.ResultDetail, error) {
	input, err := normalizeResultInput(input)
	if err != nil {
		return models.ResultDetail{}, err
	}
	var out models.ResultDetail
	err = s.mutate(ctx, func(d *dataset) error {
		if err := d.checkResult(input, 0); err != nil {
			return err
		}
		result := models.RaceResult{
			ID:           nextID(&d.Sequences.Result, d.Results),
			RaceID:       input.RaceID,
			DriverID:     input.DriverID,
			Position:     input.Position,
			PointsEarned: input.PointsEarned,
			FastestLap:   input.FastestLap,
		}
		d.Results[result.ID] = result
		d.recalculateDriverPoints([]int64{result.DriverID})
		out = d.resultDetail(result)
		return nil
	})
	return out, err
}

// UpdateResult rewrites a result. When the driver changes, both the previous
// and the new driver are recalculated.
func (s *Storage) UpdateResult(ctx context.Context, id int64, input ResultInput) (models.ResultDetail, error) {
	input, err := normalizeResultInput(input)
	if err != nil {
		return models.ResultDetail{}, err
	}
	var out models.ResultDetail
	err = s.mutate(ctx, func(d *dataset) error {
		result, ok := d.Results[id]
		if !ok {
			return ErrNotFound
		}
		if err := d.checkResult(input, id); err != nil {
			return err
		}
		previousDriver := result.DriverID
		result.RaceID = input.RaceID
		result.DriverID = input.DriverID
		result.Position = input.Position
		result.PointsEarned = input.PointsEarned
		result.FastestLap = input.FastestLap
		d.Results[id] = result
		d.recalculateDriverPoints([]int64{previousDriver, result.DriverID})
		out = d.resultDetail(result)
		return nil
	})
	return out, err
}

func (s *Storage) DeleteResult(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(d *dataset) error {
		result, ok := d.Results[id]
		if !ok {
			return ErrNotFound
		}
		delete(d.Results, id)
		d.recalculateDriverPoints([]int64{result.DriverID})
		return nil
	})
}

func (s *Storage) GetResult(ctx context.Context, id int64) (models.ResultDetail, error) {
	var out models.ResultDetail
	err := s.view(ctx, func(d *dataset) error {
		result, ok := d.Results[id]
		if !ok {
			return ErrNotFound
		}
		out = d.resultDetail(result)
		return nil
	})
	return out, err
}

func (s *Storage) ListResults(ctx context.Context, filter ResultFilter, page Page) ([]models.ResultDetail, int, error) {
	var (
		items []models.ResultDetail
		total int
	)
	err := s.view(ctx, func(d *dataset) error {
		all := make([]models.ResultDetail, 0, len(d.Results))
		for _, result := range d.Results {
			if filter.RaceID != 0 && result.RaceID != filter.RaceID {
				continue
			}
			if filter.DriverID != 0 && result.DriverID != filter.DriverID {
				continue
			}
			if !d.matchesSeason(d.Races[result.RaceID].SeasonID, filter.Season) {
				continue
			}
			all = append(all, d.resultDetail(result))
		}
		sort.Slice(all, func(i, j int) bool {
			a, b := all[i], all[j]
			if !a.Race.RaceDate.Equal(b.Race.RaceDate) {
				return a.Race.RaceDate.Before(b.Race.RaceDate)
			}
			if a.Position != b.Position {
				return a.Position < b.Position
			}
			return a.ID < b.ID
		})
		items, total = paginate(all, page)
		return nil
	})
	return items, total, err
}

// SeasonResults flattens every result of the season for standings aggregation.
func (s *Storage) SeasonResults(ctx context.Context, seasonID int64) ([]models.SeasonResult, error) {
	var rows []models.SeasonResult
	err := s.view(ctx, func(d *dataset) error {
		if _, ok := d.Seasons[seasonID]; !ok {
			return ErrNotFound
		}
		for _, result := range d.Results {
			race, ok := d.Races[result.RaceID]
			if !ok || race.SeasonID != seasonID {
				continue
			}
			driver := d.Drivers[result.DriverID]
			team := d.Teams[driver.TeamID]
			rows = append(rows, models.SeasonResult{
				DriverID:     driver.ID,
				DriverName:   driver.Name,
				TeamID:       team.ID,
				TeamName:     team.Name,
				Position:     result.Position,
				PointsEarned: result.PointsEarned,
			})
		}
		return nil
	})
	return rows, err
}

func (s *Storage) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := s.view(ctx, func(d *dataset) error {
		stats = models.Stats{
			TotalTeams:   len(d.Teams),
			TotalDrivers: len(d.Drivers),
			TotalSeasons: len(d.Seasons),
			TotalRaces:   len(d.Races),
			TotalResults: len(d.Results),
		}
		for _, driver := range d.Drivers {
			if driver.Points > stats.TopPoints {
				stats.TopPoints = driver.Points
			}
		}
		return nil
	})
	return stats, err
}
