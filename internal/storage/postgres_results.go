package storage

import (
	"context"
	"fmt"

	"motorsport-api/internal/models"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

const resultSelect = `SELECT rr.id, rr.race_id, rr.driver_id, rr.position, rr.points_earned, rr.fastest_lap,
    r.id, r.season_id, r.round_number, r.name, r.country, r.race_date, s.year,
    d.id, d.name, d.team_id, d.points, t.id, t.name, t.country
FROM race_results rr
JOIN races r ON r.id = rr.race_id
JOIN seasons s ON s.id = r.season_id
JOIN drivers d ON d.id = rr.driver_id
JOIN teams t ON t.id = d.team_id`

func scanResult(row scanner) (models.ResultDetail, error) {
	var out models.ResultDetail
	err := row.Scan(
		&out.ID, &out.RaceID, &out.DriverID, &out.Position, &out.PointsEarned, &out.FastestLap,
		&out.Race.ID, &out.Race.SeasonID, &out.Race.RoundNumber, &out.Race.Name, &out.Race.Country, &out.Race.RaceDate, &out.Race.SeasonYear,
		&out.Driver.ID, &out.Driver.Name, &out.Driver.TeamID, &out.Driver.Points,
		&out.Driver.Team.ID, &out.Driver.Team.Name, &out.Driver.Team.Country,
	)
	out.Race.RaceDate = out.Race.RaceDate.UTC()
	return out, err
}

// recalculateDriverPoints rewrites the cached points of the listed drivers from
// their race results.
func recalculateDriverPoints(ctx context.Context, q queryer, driverIDs []int64) error {
	ids := normalizeIDs(driverIDs)
	if len(ids) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
UPDATE drivers d
SET points = COALESCE((SELECT SUM(rr.points_earned) FROM race_results rr WHERE rr.driver_id = d.id), 0)
WHERE d.id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("recalculate driver points: %w", err)
	}
	return nil
}

func collectDriverIDs(ctx context.Context, q queryer, query string, args ...any) ([]int64, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("collect drivers: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect drivers: %w", err)
	}
	return ids, nil
}

// checkResultRefs validates references and the per-race invariants before the
// write so the client sees field messages in a stable order. The unique
// constraints still back every check.
func checkResultRefs(ctx context.Context, tx pgx.Tx, input ResultInput, excludeID int64) error {
	found, err := exists(ctx, tx, `SELECT 1 FROM races WHERE id = $1`, input.RaceID)
	if err != nil {
		return fmt.Errorf("check race: %w", err)
	}
	if !found {
		return invalidPK("race_id", input.RaceID)
	}
	if found, err = exists(ctx, tx, `SELECT 1 FROM drivers WHERE id = $1`, input.DriverID); err != nil {
		return fmt.Errorf("check driver: %w", err)
	} else if !found {
		return invalidPK("driver_id", input.DriverID)
	}

	taken, err := exists(ctx, tx, `SELECT 1 FROM race_results WHERE race_id = $1 AND position = $2 AND id <> $3`,
		input.RaceID, input.Position, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return uniqueTogether("race", "position")
	}
	if taken, err = exists(ctx, tx, `SELECT 1 FROM race_results WHERE race_id = $1 AND driver_id = $2 AND id <> $3`,
		input.RaceID, input.DriverID, excludeID); err != nil {
		return err
	} else if taken {
		return uniqueTogether("race", "driver")
	}
	if input.FastestLap {
		if taken, err = exists(ctx, tx, `SELECT 1 FROM race_results WHERE race_id = $1 AND fastest_lap AND id <> $2`,
			input.RaceID, excludeID); err != nil {
			return err
		} else if taken {
			return fieldError("fastest_lap", msgFastestLap)
		}
	}
	return nil
}

func (r *postgresRepository) RecalculatePoints(ctx context.Context, driverIDs ...int64) error {
	if len(normalizeIDs(driverIDs)) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		return recalculateDriverPoints(ctx, tx, driverIDs)
	})
}

func (r *postgresRepository) CreateResult(ctx context.Context, input ResultInput) (models.ResultDetail, error) {
	input, err := normalizeResultInput(input)
	if err != nil {
		return models.ResultDetail{}, err
	}
	var out models.ResultDetail
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		if err := checkResultRefs(ctx, tx, input, 0); err != nil {
			return err
		}
		var id int64
		if err := tx.QueryRow(ctx, `
INSERT INTO race_results (race_id, driver_id, position, points_earned, fastest_lap)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			input.RaceID, input.DriverID, input.Position, input.PointsEarned, input.FastestLap).Scan(&id); err != nil {
			return err
		}
		if err := recalculateDriverPoints(ctx, tx, []int64{input.DriverID}); err != nil {
			return err
		}
		out, err = getOne(ctx, tx, resultSelect+` WHERE rr.id = $1`, scanResult, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) UpdateResult(ctx context.Context, id int64, input ResultInput) (models.ResultDetail, error) {
	input, err := normalizeResultInput(input)
	if err != nil {
		return models.ResultDetail{}, err
	}
	var out models.ResultDetail
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		var previousDriver int64
		err := tx.QueryRow(ctx, `SELECT driver_id FROM race_results WHERE id = $1 FOR UPDATE`, id).Scan(&previousDriver)
		if isNoRows(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := checkResultRefs(ctx, tx, input, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
UPDATE race_results
SET race_id = $2, driver_id = $3, position = $4, points_earned = $5, fastest_lap = $6
WHERE id = $1`,
			id, input.RaceID, input.DriverID, input.Position, input.PointsEarned, input.FastestLap); err != nil {
			return err
		}
		if err := recalculateDriverPoints(ctx, tx, []int64{previousDriver, input.DriverID}); err != nil {
			return err
		}
		out, err = getOne(ctx, tx, resultSelect+` WHERE rr.id = $1`, scanResult, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) DeleteResult(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		var driverID int64
		err := tx.QueryRow(ctx, `DELETE FROM race_results WHERE id = $1 RETURNING driver_id`, id).Scan(&driverID)
		if isNoRows(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return recalculateDriverPoints(ctx, tx, []int64{driverID})
	})
}

func (r *postgresRepository) GetResult(ctx context.Context, id int64) (models.ResultDetail, error) {
	var out models.ResultDetail
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		out, err = getOne(ctx, q, resultSelect+` WHERE rr.id = $1`, scanResult, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) ListResults(ctx context.Context, filter ResultFilter, page Page) ([]models.ResultDetail, int, error) {
	where := &whereBuilder{}
	if filter.RaceID != 0 {
		where.add("rr.race_id = ?", filter.RaceID)
	}
	if filter.DriverID != 0 {
		where.add("rr.driver_id = ?", filter.DriverID)
	}
	where.addSeason("r.season_id", filter.Season)
	var (
		items []models.ResultDetail
		total int
	)
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		items, total, err = listPage(ctx, q, resultSelect, `
SELECT COUNT(*) FROM race_results rr
JOIN races r ON r.id = rr.race_id
JOIN seasons s ON s.id = r.season_id`,
			where, "r.race_date, rr.position, rr.id", page, scanResult)
		return err
	})
	return items, total, err
}

func (r *postgresRepository) SeasonResults(ctx context.Context, seasonID int64) ([]models.SeasonResult, error) {
	var rows []models.SeasonResult
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		found, err := exists(ctx, q, `SELECT 1 FROM seasons WHERE id = $1`, seasonID)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		result, err := q.Query(ctx, `
SELECT d.id, d.name, t.id, t.name, rr.position, rr.points_earned
FROM race_results rr
JOIN races r ON r.id = rr.race_id
JOIN drivers d ON d.id = rr.driver_id
JOIN teams t ON t.id = d.team_id
WHERE r.season_id = $1
ORDER BY r.round_number, rr.position`, seasonID)
		if err != nil {
			return fmt.Errorf("query season results: %w", err)
		}
		rows, err = pgx.CollectRows(result, func(row pgx.CollectableRow) (models.SeasonResult, error) {
			var item models.SeasonResult
			err := row.Scan(&item.DriverID, &item.DriverName, &item.TeamID, &item.TeamName, &item.Position, &item.PointsEarned)
			return item, err
		})
		return err
	})
	return rows, err
}

// Stats runs the counts concurrently on separate pooled connections.
func (r *postgresRepository) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	queries := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM teams`, &stats.TotalTeams},
		{`SELECT COUNT(*) FROM drivers`, &stats.TotalDrivers},
		{`SELECT COUNT(*) FROM seasons`, &stats.TotalSeasons},
		{`SELECT COUNT(*) FROM races`, &stats.TotalRaces},
		{`SELECT COUNT(*) FROM race_results`, &stats.TotalResults},
		{`SELECT COALESCE(MAX(points), 0) FROM drivers`, &stats.TopPoints},
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, query := range queries {
		group.Go(func() error {
			return r.withQueryer(groupCtx, func(ctx context.Context, q queryer) error {
				if err := q.QueryRow(ctx, query.sql).Scan(query.dest); err != nil {
					return fmt.Errorf("stats %q: %w", query.sql, err)
				}
				return nil
			})
		})
	}
	if err := group.Wait(); err != nil {
		return models.Stats{}, err
	}
	return stats, nil
}
