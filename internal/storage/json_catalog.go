package storage

import (
	"context"
	"sort"
	"strings"

	"motorsport-api/internal/models"
)

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func paginate[T any](items []T, page Page) ([]T, int) {
	total := len(items)
	start, end := page.apply(total)
	return items[start:end], total
}

func (d *dataset) teamSummary(team models.Team) models.TeamSummary {
	count := 0
	for _, driver := range d.Drivers {
		if driver.TeamID == team.ID {
			count++
		}
	}
	return models.TeamSummary{Team: team, DriverCount: count}
}

func (d *dataset) driverDetail(driver models.Driver) models.DriverDetail {
	return models.DriverDetail{Driver: driver, Team: d.Teams[driver.TeamID]}
}

func (d *dataset) seasonSummary(season models.Season) models.SeasonSummary {
	count := 0
	for _, race := range d.Races {
		if race.SeasonID == season.ID {
			count++
		}
	}
	return models.SeasonSummary{Season: season, RaceCount: count}
}

func (d *dataset) raceDetail(race models.Race) models.RaceDetail {
	return models.RaceDetail{Race: race, SeasonYear: d.Seasons[race.SeasonID].Year}
}

// matchesSeason reports whether seasonID satisfies ref.
func (d *dataset) matchesSeason(seasonID int64, ref SeasonRef) bool {
	if ref.ID != 0 && seasonID != ref.ID {
		return false
	}
	if ref.Year != 0 && d.Seasons[seasonID].Year != ref.Year {
		return false
	}
	return true
}

// Teams

func (d *dataset) checkTeam(input TeamInput, excludeID int64) error {
	for id, team := range d.Teams {
		if id != excludeID && team.Name == input.Name {
			return fieldError("name", msgTeamNameTaken)
		}
	}
	return nil
}

func (s *Storage) CreateTeam(ctx context.Context, input TeamInput) (models.Team, error) {
	input, err := normalizeTeamInput(input)
	if err != nil {
		return models.Team{}, err
	}
	var team models.Team
	err = s.mutate(ctx, func(d *dataset) error {
		if err := d.checkTeam(input, 0); err != nil {
			return err
		}
		team = models.Team{ID: nextID(&d.Sequences.Team, d.Teams), Name: input.Name, Country: input.Country}
		d.Teams[team.ID] = team
		return nil
	})
	return team, err
}

func (s *Storage) UpdateTeam(ctx context.Context, id int64, input TeamInput) (models.Team, error) {
	input, err := normalizeTeamInput(input)
	if err != nil {
		return models.Team{}, err
	}
	var team models.Team
	err = s.mutate(ctx, func(d *dataset) error {
		existing, ok := d.Teams[id]
		if !ok {
			return ErrNotFound
		}
		if err := d.checkTeam(input, id); err != nil {
			return err
		}
		existing.Name = input.Name
		existing.Country = input.Country
		d.Teams[id] = existing
		team = existing
		return nil
	})
	return team, err
}

func (s *Storage) DeleteTeam(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(d *dataset) error {
		if _, ok := d.Teams[id]; !ok {
			return ErrNotFound
		}
		for _, driver := range d.Drivers {
			if driver.TeamID == id {
				return &ProtectedError{Message: teamProtectedMessage}
			}
		}
		delete(d.Teams, id)
		return nil
	})
}

func (s *Storage) GetTeam(ctx context.Context, id int64) (models.TeamSummary, error) {
	var out models.TeamSummary
	err := s.view(ctx, func(d *dataset) error {
		team, ok := d.Teams[id]
		if !ok {
			return ErrNotFound
		}
		out = d.teamSummary(team)
		return nil
	})
	return out, err
}

func (s *Storage) ListTeams(ctx context.Context, filter TeamFilter, page Page) ([]models.TeamSummary, int, error) {
	var (
		items []models.TeamSummary
		total int
	)
	err := s.view(ctx, func(d *dataset) error {
		all := make([]models.TeamSummary, 0, len(d.Teams))
		for _, team := range d.Teams {
			if !containsFold(team.Country, filter.Country) || !containsFold(team.Name, filter.Name) {
				continue
			}
			all = append(all, d.teamSummary(team))
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].Name != all[j].Name {
				return all[i].Name < all[j].Name
			}
			return all[i].ID < all[j].ID
		})
		items, total = paginate(all, page)
		return nil
	})
	return items, total, err
}

// Drivers

func (d *dataset) checkDriver(input DriverInput, excludeID int64) error {
	if _, ok := d.Teams[input.TeamID]; !ok {
		return invalidPK("team_id", input.TeamID)
	}
	for id, driver := range d.Drivers {
		if id != excludeID && driver.TeamID == input.TeamID && driver.Name == input.Name {
			return uniqueTogether("name", "team")
		}
	}
	return nil
}

func (s *Storage) CreateDriver(ctx context.Context, input DriverInput) (models.DriverDetail, error) {
	input, err := normalizeDriverInput(input)
	if err != nil {
		return models.DriverDetail{}, err
	}
	var out models.DriverDetail
	err = s.mutate(ctx, func(d *dataset) error {
		if err := d.checkDriver(input, 0); err != nil {
			return err
		}
		driver := models.Driver{ID: nextID(&d.Sequences.Driver, d.Drivers), Name: input.Name, TeamID: input.TeamID}
		d.Drivers[driver.ID] = driver
		out = d.driverDetail(driver)
		return nil
	})
	return out, err
}

func (s *Storage) UpdateDriver(ctx context.Context, id int64, input DriverInput) (models.DriverDetail, error) {
	input, err := normalizeDriverInput(input)
	if err != nil {
		return models.DriverDetail{}, err
	}
	var out models.DriverDetail
	err = s.mutate(ctx, func(d *dataset) error {
		driver, ok := d.Drivers[id]
		if !ok {
			return ErrNotFound
		}
		if err := d.checkDriver(input, id); err != nil {
			return err
		}
		driver.Name = input.Name
		driver.TeamID = input.TeamID
		d.Drivers[id] = driver
		out = d.driverDetail(driver)
		return nil
	})
	return out, err
}

// DeleteDriver removes the driver together with its race results.
func (s *Storage) DeleteDriver(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(d *dataset) error {
		if _, ok := d.Drivers[id]; !ok {
			return ErrNotFound
		}
		for resultID, result := range d.Results {
			if result.DriverID == id {
				delete(d.Results, resultID)
			}
		}
		delete(d.Drivers, id)
		return nil
	})
}

func (s *Storage) GetDriver(ctx context.Context, id int64) (models.DriverDetail, error) {
	var out models.DriverDetail
	err := s.view(ctx, func(d *dataset) error {
		driver, ok := d.Drivers[id]
		if !ok {
			return ErrNotFound
		}
		out = d.driverDetail(driver)
		return nil
	})
	return out, err
}

func (s *Storage) ListDrivers(ctx context.Context, filter DriverFilter, page Page) ([]models.DriverDetail, int, error) {
	var (
		items []models.DriverDetail
		total int
	)
	err := s.view(ctx, func(d *dataset) error {
		all := make([]models.DriverDetail, 0, len(d.Drivers))
		for _, driver := range d.Drivers {
			if filter.TeamID != 0 && driver.TeamID != filter.TeamID {
				continue
			}
			if filter.MinPoints != nil && driver.Points < *filter.MinPoints {
				continue
			}
			detail := d.driverDetail(driver)
			if !containsFold(detail.Team.Country, filter.Country) {
				continue
			}
			all = append(all, detail)
		}
		sortDrivers(all)
		items, total = paginate(all, page)
		return nil
	})
	return items, total, err
}

func sortDrivers(drivers []models.DriverDetail) {
	sort.Slice(drivers, func(i, j int) bool {
		if drivers[i].Points != drivers[j].Points {
			return drivers[i].Points > drivers[j].Points
		}
		if drivers[i].Name != drivers[j].Name {
			return drivers[i].Name < drivers[j].Name
		}
		return drivers[i].ID < drivers[j].ID
	})
}

// Seasons

func (d *dataset) checkSeason(input SeasonInput, excludeID int64) error {
	for id, season := range d.Seasons {
		if id != excludeID && season.Year == input.Year {
			return fieldError("year", msgSeasonYearUsed)
		}
	}
	return nil
}

func (s *Storage) CreateSeason(ctx context.Context, input SeasonInput) (models.SeasonSummary, error) {
	input, err := normalizeSeasonInput(input)
	if err != nil {
		return models.SeasonSummary{}, err
	}
	var out models.SeasonSummary
	err = s.mutate(ctx, func(d *dataset) error {
		if err := d.checkSeason(input, 0); err != nil {
			return err
		}
		season := models.Season{ID: nextID(&d.Sequences.Season, d.Seasons), Year: input.Year, Name: input.Name}
		d.Seasons[season.ID] = season
		out = d.seasonSummary(season)
		return nil
	})
	return out, err
}

func (s *Storage) UpdateSeason(ctx context.Context, id int64, input SeasonInput) (models.SeasonSummary, error) {
	input, err := normalizeSeasonInput(input)
	if err != nil {
		return models.SeasonSummary{}, err
	}
	var out models.SeasonSummary
	err = s.mutate(ctx, func(d *dataset) error {
		season, ok := d.Seasons[id]
		if !ok {
			return ErrNotFound
		}
		if err := d.checkSeason(input, id); err != nil {
			return err
		}
		season.Year = input.Year
		season.Name = input.Name
		d.Seasons[id] = season
		out = d.seasonSummary(season)
		return nil
	})
	return out, err
}

// DeleteSeason removes the season, its races and their results, then
// recalculates the points of every driver that lost a result.
func (s *Storage) DeleteSeason(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(d *dataset) error {
		if _, ok := d.Seasons[id]; !ok {
			return ErrNotFound
		}
		var affected []int64
		for raceID, race := range d.Races {
			if race.SeasonID != id {
				continue
			}
			affected = append(affected, d.deleteRaceResults(raceID)...)
			delete(d.Races, raceID)
		}
		delete(d.Seasons, id)
		d.recalculateDriverPoints(affected)
		return nil
	})
}

func (s *Storage) GetSeason(ctx context.Context, id int64) (models.SeasonSummary, error) {
	var out models.SeasonSummary
	err := s.view(ctx, func(d *dataset) error {
		season, ok := d.Seasons[id]
		if !ok {
			return ErrNotFound
		}
		out = d.seasonSummary(season)
		return nil
	})
	return out, err
}

func (s *Storage) FindSeasonByYear(ctx context.Context, year int) (models.SeasonSummary, error) {
	var out models.SeasonSummary
	err := s.view(ctx, func(d *dataset) error {
		for _, season := range d.Seasons {
			if season.Year == year {
				out = d.seasonSummary(season)
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

// LatestSeason returns the season with the highest year.
func (s *Storage) LatestSeason(ctx context.Context) (models.SeasonSummary, error) {
	var out models.SeasonSummary
	err := s.view(ctx, func(d *dataset) error {
		found := false
		var latest models.Season
		for _, season := range d.Seasons {
			if !found || season.Year > latest.Year {
				latest = season
				found = true
			}
		}
		if !found {
			return ErrNotFound
		}
		out = d.seasonSummary(latest)
		return nil
	})
	return out, err
}

func (s *Storage) ListSeasons(ctx context.Context, filter SeasonFilter, page Page) ([]models.SeasonSummary, int, error) {
	var (
		items []models.SeasonSummary
		total int
	)
	err := s.view(ctx, func(d *dataset) error {
		all := make([]models.SeasonSummary, 0, len(d.Seasons))
		for _, season := range d.Seasons {
			if filter.Year != 0 && season.Year != filter.Year {
				continue
			}
			all = append(all, d.seasonSummary(season))
		}
		sort.Slice(all, func(i, j int) bool {
			return all[i].Year > all[j].Year
		})
		items, total = paginate(all, page)
		return nil
	})
	return items, total, err
}

// Races

func (d *dataset) checkRace(input RaceInput, excludeID int64) error {
	if _, ok := d.Seasons[input.SeasonID]; !ok {
		return invalidPK("season_id", input.SeasonID)
	}
	for id, race := range d.Races {
		if id != excludeID && race.SeasonID == input.SeasonID && race.RoundNumber == input.RoundNumber {
			return uniqueTogether("season", "round_number")
		}
	}
	return nil
}

func (s *Storage) CreateRace(ctx context.Context, input RaceInput) (models.RaceDetail, error) {
	input, err := normalizeRaceInput(input)
	if err != nil {
		return models.RaceDetail{}, err
	}
	var out models.RaceDetail
	err = s.mutate(ctx, func(d *dataset) error {
		if err := d.checkRace(input, 0); err != nil {
			return err
		}
		race := models.Race{
			ID:          nextID(&d.Sequences.Race, d.Races),
			SeasonID:    input.SeasonID,
			RoundNumber: input.RoundNumber,
			Name:        input.Name,
			Country:     input.Country,
			RaceDate:    input.RaceDate,
		}
		d.Races[race.ID] = race
		out = d.raceDetail(race)
		return nil
	})
	return out, err
}

func (s *Storage) UpdateRace(ctx context.Context, id int64, input RaceInput) (models.RaceDetail, error) {
	input, err := normalizeRaceInput(input)
	if err != nil {
		return models.RaceDetail{}, err
	}
	var out models.RaceDetail
	err = s.mutate(ctx, func(d *dataset) error {
		race, ok := d.Races[id]
		if !ok {
			return ErrNotFound
		}
		if err := d.checkRace(input, id); err != nil {
			return err
		}
		race.SeasonID = input.SeasonID
		race.RoundNumber = input.RoundNumber
		race.Name = input.Name
		race.Country = input.Country
		race.RaceDate = input.RaceDate
		d.Races[id] = race
		out = d.raceDetail(race)
		return nil
	})
	return out, err
}

// DeleteRace removes the race and its results and recalculates the points of
// the drivers that lost a result.
func (s *Storage) DeleteRace(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(d *dataset) error {
		if _, ok := d.Races[id]; !ok {
			return ErrNotFound
		}
		affected := d.deleteRaceResults(id)
		delete(d.Races, id)
		d.recalculateDriverPoints(affected)
		return nil
	})
}

func (d *dataset) deleteRaceResults(raceID int64) []int64 {
	var drivers []int64
	for resultID, result := range d.Results {
		if result.RaceID == raceID {
			drivers = append(drivers, result.DriverID)
			delete(d.Results, resultID)
		}
	}
	return drivers
}

func (s *Storage) GetRace(ctx context.Context, id int64) (models.RaceDetail, error) {
	var out models.RaceDetail
	err := s.view(ctx, func(d *dataset) error {
		race, ok := d.Races[id]
		if !ok {
			return ErrNotFound
		}
		out = d.raceDetail(race)
		return nil
	})
	return out, err
}

func (s *Storage) ListRaces(ctx context.Context, filter RaceFilter, page Page) ([]models.RaceDetail, int, error) {
	var (
		items []models.RaceDetail
		total int
	)
	err := s.view(ctx, func(d *dataset) error {
		all := make([]models.RaceDetail, 0, len(d.Races))
		for _, race := range d.Races {
			if !d.matchesSeason(race.SeasonID, filter.Season) || !containsFold(race.Country, filter.Country) {
				continue
			}
			all = append(all, d.raceDetail(race))
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].SeasonYear != all[j].SeasonYear {
				return all[i].SeasonYear < all[j].SeasonYear
			}
			if all[i].RoundNumber != all[j].RoundNumber {
				return all[i].RoundNumber < all[j].RoundNumber
			}
			return all[i].ID < all[j].ID
		})
		items, total = paginate(all, page)
		return nil
	})
	return items, total, err
}
