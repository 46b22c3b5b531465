package storage

import (
	"context"
	"fmt"

	"motorsport-api/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type scanner interface {
	Scan(dest ...any) error
}

const (
	teamSelect = `SELECT t.id, t.name, t.country,
    (SELECT COUNT(*) FROM drivers dc WHERE dc.team_id = t.id)
FROM teams t`
	driverSelect = `SELECT d.id, d.name, d.team_id, d.points, t.id, t.name, t.country
FROM drivers d JOIN teams t ON t.id = d.team_id`
	seasonSelect = `SELECT s.id, s.year, s.name,
    (SELECT COUNT(*) FROM races rc WHERE rc.season_id = s.id)
FROM seasons s`
	raceSelect = `SELECT r.id, r.season_id, r.round_number, r.name, r.country, r.race_date, s.year
FROM races r JOIN seasons s ON s.id = r.season_id`
)

func scanTeam(row scanner) (models.TeamSummary, error) {
	var out models.TeamSummary
	err := row.Scan(&out.ID, &out.Name, &out.Country, &out.DriverCount)
	return out, err
}

func scanDriver(row scanner) (models.DriverDetail, error) {
	var out models.DriverDetail
	err := row.Scan(&out.ID, &out.Name, &out.TeamID, &out.Points, &out.Team.ID, &out.Team.Name, &out.Team.Country)
	return out, err
}

func scanSeason(row scanner) (models.SeasonSummary, error) {
	var out models.SeasonSummary
	err := row.Scan(&out.ID, &out.Year, &out.Name, &out.RaceCount)
	return out, err
}

func scanRace(row scanner) (models.RaceDetail, error) {
	var out models.RaceDetail
	err := row.Scan(&out.ID, &out.SeasonID, &out.RoundNumber, &out.Name, &out.Country, &out.RaceDate, &out.SeasonYear)
	out.RaceDate = out.RaceDate.UTC()
	return out, err
}

// getOne runs a single-row lookup and maps a missing row to ErrNotFound.
func getOne[T any](ctx context.Context, q queryer, query string, scan func(scanner) (T, error), args ...any) (T, error) {
	out, err := scan(q.QueryRow(ctx, query, args...))
	if isNoRows(err) {
		var zero T
		return zero, ErrNotFound
	}
	return out, err
}

// listPage counts the filtered rows and then fetches the requested window.
func listPage[T any](ctx context.Context, q queryer, selectSQL, countSQL string, where *whereBuilder, order string, page Page, scan func(scanner) (T, error)) ([]T, int, error) {
	filter := where.String()
	var total int
	if err := q.QueryRow(ctx, countSQL+filter, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rows: %w", err)
	}
	limit := where.limit(page)
	rows, err := q.Query(ctx, selectSQL+filter+" ORDER BY "+order+limit, where.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rows: %w", err)
	}
	return items, total, nil
}

func (r *postgresRepository) withQueryer(ctx context.Context, fn func(context.Context, queryer) error) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		return fn(ctx, conn)
	})
}

// Teams

func (r *postgresRepository) CreateTeam(ctx context.Context, input TeamInput) (models.Team, error) {
	input, err := normalizeTeamInput(input)
	if err != nil {
		return models.Team{}, err
	}
	var team models.Team
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `INSERT INTO teams (name, country) VALUES ($1, $2) RETURNING id, name, country`,
			input.Name, input.Country).Scan(&team.ID, &team.Name, &team.Country)
	})
	return team, err
}

func (r *postgresRepository) UpdateTeam(ctx context.Context, id int64, input TeamInput) (models.Team, error) {
	input, err := normalizeTeamInput(input)
	if err != nil {
		return models.Team{}, err
	}
	var team models.Team
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `UPDATE teams SET name = $2, country = $3 WHERE id = $1 RETURNING id, name, country`,
			id, input.Name, input.Country).Scan(&team.ID, &team.Name, &team.Country)
		if isNoRows(err) {
			return ErrNotFound
		}
		return err
	})
	return team, err
}

func (r *postgresRepository) DeleteTeam(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		hasDrivers, err := exists(ctx, tx, `SELECT 1 FROM drivers WHERE team_id = $1`, id)
		if err != nil {
			return fmt.Errorf("check team drivers: %w", err)
		}
		if hasDrivers {
			return &ProtectedError{Message: teamProtectedMessage}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *postgresRepository) GetTeam(ctx context.Context, id int64) (models.TeamSummary, error) {
	var out models.TeamSummary
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		out, err = getOne(ctx, q, teamSelect+` WHERE t.id = $1`, scanTeam, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) ListTeams(ctx context.Context, filter TeamFilter, page Page) ([]models.TeamSummary, int, error) {
	where := &whereBuilder{}
	if filter.Country != "" {
		where.add("t.country ILIKE ?", likePattern(filter.Country))
	}
	if filter.Name != "" {
		where.add("t.name ILIKE ?", likePattern(filter.Name))
	}
	var (
		items []models.TeamSummary
		total int
	)
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		items, total, err = listPage(ctx, q, teamSelect, `SELECT COUNT(*) FROM teams t`, where, "t.name, t.id", page, scanTeam)
		return err
	})
	return items, total, err
}

// Drivers

func checkDriverRefs(ctx context.Context, tx pgx.Tx, input DriverInput) error {
	found, err := exists(ctx, tx, `SELECT 1 FROM teams WHERE id = $1`, input.TeamID)
	if err != nil {
		return fmt.Errorf("check team: %w", err)
	}
	if !found {
		return invalidPK("team_id", input.TeamID)
	}
	return nil
}

func (r *postgresRepository) CreateDriver(ctx context.Context, input DriverInput) (models.DriverDetail, error) {
	input, err := normalizeDriverInput(input)
	if err != nil {
		return models.DriverDetail{}, err
	}
	var out models.DriverDetail
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		if err := checkDriverRefs(ctx, tx, input); err != nil {
			return err
		}
		var id int64
		if err := tx.QueryRow(ctx, `INSERT INTO drivers (name, team_id) VALUES ($1, $2) RETURNING id`, input.Name, input.TeamID).Scan(&id); err != nil {
			return err
		}
		out, err = getOne(ctx, tx, driverSelect+` WHERE d.id = $1`, scanDriver, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) UpdateDriver(ctx context.Context, id int64, input DriverInput) (models.DriverDetail, error) {
	input, err := normalizeDriverInput(input)
	if err != nil {
		return models.DriverDetail{}, err
	}
	var out models.DriverDetail
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		found, err := exists(ctx, tx, `SELECT 1 FROM drivers WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if err := checkDriverRefs(ctx, tx, input); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE drivers SET name = $2, team_id = $3 WHERE id = $1`, id, input.Name, input.TeamID); err != nil {
			return err
		}
		out, err = getOne(ctx, tx, driverSelect+` WHERE d.id = $1`, scanDriver, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) DeleteDriver(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM drivers WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *postgresRepository) GetDriver(ctx context.Context, id int64) (models.DriverDetail, error) {
	var out models.DriverDetail
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		out, err = getOne(ctx, q, driverSelect+` WHERE d.id = $1`, scanDriver, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) ListDrivers(ctx context.Context, filter DriverFilter, page Page) ([]models.DriverDetail, int, error) {
	where := &whereBuilder{}
	if filter.TeamID != 0 {
		where.add("d.team_id = ?", filter.TeamID)
	}
	if filter.Country != "" {
		where.add("t.country ILIKE ?", likePattern(filter.Country))
	}
	if filter.MinPoints != nil {
		where.add("d.points >= ?", *filter.MinPoints)
	}
	var (
		items []models.DriverDetail
		total int
	)
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		items, total, err = listPage(ctx, q, driverSelect,
			`SELECT COUNT(*) FROM drivers d JOIN teams t ON t.id = d.team_id`,
			where, "d.points DESC, d.name, d.id", page, scanDriver)
		return err
	})
	return items, total, err
}

// Seasons

func (r *postgresRepository) CreateSeason(ctx context.Context, input SeasonInput) (models.SeasonSummary, error) {
	input, err := normalizeSeasonInput(input)
	if err != nil {
		return models.SeasonSummary{}, err
	}
	var out models.SeasonSummary
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO seasons (year, name) VALUES ($1, $2) RETURNING id, year, name`,
			input.Year, input.Name).Scan(&out.ID, &out.Year, &out.Name); err != nil {
			return err
		}
		return nil
	})
	return out, err
}

func (r *postgresRepository) UpdateSeason(ctx context.Context, id int64, input SeasonInput) (models.SeasonSummary, error) {
	input, err := normalizeSeasonInput(input)
	if err != nil {
		return models.SeasonSummary{}, err
	}
	var out models.SeasonSummary
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE seasons SET year = $2, name = $3 WHERE id = $1`, id, input.Year, input.Name)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		out, err = getOne(ctx, tx, seasonSelect+` WHERE s.id = $1`, scanSeason, id)
		return err
	})
	return out, err
}

// DeleteSeason cascades to races and results and recalculates the drivers that
// lost results, all in one transaction.
func (r *postgresRepository) DeleteSeason(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		affected, err := collectDriverIDs(ctx, tx, `
SELECT DISTINCT rr.driver_id FROM race_results rr JOIN races r ON r.id = rr.race_id WHERE r.season_id = $1`, id)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM seasons WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return recalculateDriverPoints(ctx, tx, affected)
	})
}

func (r *postgresRepository) GetSeason(ctx context.Context, id int64) (models.SeasonSummary, error) {
	var out models.SeasonSummary
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		out, err = getOne(ctx, q, seasonSelect+` WHERE s.id = $1`, scanSeason, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) FindSeasonByYear(ctx context.Context, year int) (models.SeasonSummary, error) {
	var out models.SeasonSummary
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		out, err = getOne(ctx, q, seasonSelect+` WHERE s.year = $1`, scanSeason, year)
		return err
	})
	return out, err
}

func (r *postgresRepository) LatestSeason(ctx context.Context) (models.SeasonSummary, error) {
	var out models.SeasonSummary
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		out, err = getOne(ctx, q, seasonSelect+` ORDER BY s.year DESC LIMIT 1`, scanSeason)
		return err
	})
	return out, err
}

func (r *postgresRepository) ListSeasons(ctx context.Context, filter SeasonFilter, page Page) ([]models.SeasonSummary, int, error) {
	where := &whereBuilder{}
	if filter.Year != 0 {
		where.add("s.year = ?", filter.Year)
	}
	var (
		items []models.SeasonSummary
		total int
	)
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		items, total, err = listPage(ctx, q, seasonSelect, `SELECT COUNT(*) FROM seasons s`, where, "s.year DESC", page, scanSeason)
		return err
	})
	return items, total, err
}

// Races

func checkRaceRefs(ctx context.Context, tx pgx.Tx, input RaceInput) error {
	found, err := exists(ctx, tx, `SELECT 1 FROM seasons WHERE id = $1`, input.SeasonID)
	if err != nil {
		return fmt.Errorf("check season: %w", err)
	}
	if !found {
		return invalidPK("season_id", input.SeasonID)
	}
	return nil
}

func (r *postgresRepository) CreateRace(ctx context.Context, input RaceInput) (models.RaceDetail, error) {
	input, err := normalizeRaceInput(input)
	if err != nil {
		return models.RaceDetail{}, err
	}
	var out models.RaceDetail
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		if err := checkRaceRefs(ctx, tx, input); err != nil {
			return err
		}
		var id int64
		if err := tx.QueryRow(ctx, `
INSERT INTO races (season_id, round_number, name, country, race_date)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			input.SeasonID, input.RoundNumber, input.Name, input.Country, input.RaceDate).Scan(&id); err != nil {
			return err
		}
		out, err = getOne(ctx, tx, raceSelect+` WHERE r.id = $1`, scanRace, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) UpdateRace(ctx context.Context, id int64, input RaceInput) (models.RaceDetail, error) {
	input, err := normalizeRaceInput(input)
	if err != nil {
		return models.RaceDetail{}, err
	}
	var out models.RaceDetail
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		found, err := exists(ctx, tx, `SELECT 1 FROM races WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if err := checkRaceRefs(ctx, tx, input); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
UPDATE races SET season_id = $2, round_number = $3, name = $4, country = $5, race_date = $6 WHERE id = $1`,
			id, input.SeasonID, input.RoundNumber, input.Name, input.Country, input.RaceDate); err != nil {
			return err
		}
		out, err = getOne(ctx, tx, raceSelect+` WHERE r.id = $1`, scanRace, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) DeleteRace(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		affected, err := collectDriverIDs(ctx, tx, `SELECT DISTINCT driver_id FROM race_results WHERE race_id = $1`, id)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM races WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return recalculateDriverPoints(ctx, tx, affected)
	})
}

func (r *postgresRepository) GetRace(ctx context.Context, id int64) (models.RaceDetail, error) {
	var out models.RaceDetail
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		out, err = getOne(ctx, q, raceSelect+` WHERE r.id = $1`, scanRace, id)
		return err
	})
	return out, err
}

func (r *postgresRepository) ListRaces(ctx context.Context, filter RaceFilter, page Page) ([]models.RaceDetail, int, error) {
	where := &whereBuilder{}
	where.addSeason("r.season_id", filter.Season)
	if filter.Country != "" {
		where.add("r.country ILIKE ?", likePattern(filter.Country))
	}
	var (
		items []models.RaceDetail
		total int
	)
	err := r.withQueryer(ctx, func(ctx context.Context, q queryer) error {
		var err error
		items, total, err = listPage(ctx, q, raceSelect,
			`SELECT COUNT(*) FROM races r JOIN seasons s ON s.id = r.season_id`,
			where, "s.year, r.round_number, r.id", page, scanRace)
		return err
	})
	return items, total, err
}
