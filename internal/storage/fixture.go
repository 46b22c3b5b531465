package storage

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"motorsport-api/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/default.yaml
var defaultFixture []byte

// Fixture is a datastore snapshot keyed by natural keys rather than ids, so it
// can be replayed into any backend.
type Fixture struct {
	Users   []FixtureUser   `yaml:"users,omitempty"`
	Teams   []FixtureTeam   `yaml:"teams"`
	Drivers []FixtureDriver `yaml:"drivers"`
	Seasons []FixtureSeason `yaml:"seasons"`
	Races   []FixtureRace   `yaml:"races"`
	Results []FixtureResult `yaml:"results"`
}

type FixtureUser struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"passwordHash"`
	IsStaff      bool   `yaml:"isStaff,omitempty"`
	IsSuperuser  bool   `yaml:"isSuperuser,omitempty"`
}

type FixtureTeam struct {
	Name    string `yaml:"name"`
	Country string `yaml:"country"`
}

type FixtureDriver struct {
	Name string `yaml:"name"`
	Team string `yaml:"team"`
}

type FixtureSeason struct {
	Year int    `yaml:"year"`
	Name string `yaml:"name"`
}

type FixtureRace struct {
	Season  int    `yaml:"season"`
	Round   int    `yaml:"round"`
	Name    string `yaml:"name"`
	Country string `yaml:"country"`
	Date    string `yaml:"date"`
}

type FixtureResult struct {
	Season     int    `yaml:"season"`
	Round      int    `yaml:"round"`
	Driver     string `yaml:"driver"`
	Team       string `yaml:"team"`
	Position   int    `yaml:"position"`
	Points     int    `yaml:"points"`
	FastestLap bool   `yaml:"fastestLap,omitempty"`
}

// FixtureCounts reports how many records of each kind a fixture holds or an
// import wrote.
type FixtureCounts struct {
	Users   int
	Teams   int
	Drivers int
	Seasons int
	Races   int
	Results int
}

func (f Fixture) Counts() FixtureCounts {
	return FixtureCounts{
		Users:   len(f.Users),
		Teams:   len(f.Teams),
		Drivers: len(f.Drivers),
		Seasons: len(f.Seasons),
		Races:   len(f.Races),
		Results: len(f.Results),
	}
}

// DefaultFixture returns the bundled demo championship.
func DefaultFixture() (Fixture, error) {
	return DecodeFixture(bytes.NewReader(defaultFixture))
}

// LoadFixture reads a YAML fixture from path.
func LoadFixture(path string) (Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()
	return DecodeFixture(file)
}

func DecodeFixture(r io.Reader) (Fixture, error) {
	var fx Fixture
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&fx); err != nil && err != io.EOF {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return fx, nil
}

func EncodeFixture(w io.Writer, fx Fixture) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(fx); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return encoder.Close()
}

type driverKey struct {
	teamID int64
	name   string
}

type raceKey struct {
	seasonID int64
	round    int
}

type resultKey struct {
	raceID   int64
	driverID int64
}

type fixtureIndex struct {
	teams   map[string]int64
	drivers map[driverKey]models.DriverDetail
	seasons map[int]int64
	races   map[raceKey]int64
	results map[resultKey]int64
}

func buildFixtureIndex(ctx context.Context, repo Repository) (*fixtureIndex, error) {
	idx := &fixtureIndex{
		teams:   make(map[string]int64),
		drivers: make(map[driverKey]models.DriverDetail),
		seasons: make(map[int]int64),
		races:   make(map[raceKey]int64),
		results: make(map[resultKey]int64),
	}
	teams, _, err := repo.ListTeams(ctx, TeamFilter{}, Page{})
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	for _, team := range teams {
		idx.teams[team.Name] = team.ID
	}
	drivers, _, err := repo.ListDrivers(ctx, DriverFilter{}, Page{})
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	for _, driver := range drivers {
		idx.drivers[driverKey{driver.TeamID, driver.Name}] = driver
	}
	seasons, _, err := repo.ListSeasons(ctx, SeasonFilter{}, Page{})
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	for _, season := range seasons {
		idx.seasons[season.Year] = season.ID
	}
	races, _, err := repo.ListRaces(ctx, RaceFilter{}, Page{})
	if err != nil {
		return nil, fmt.Errorf("list races: %w", err)
	}
	for _, race := range races {
		idx.races[raceKey{race.SeasonID, race.RoundNumber}] = race.ID
	}
	results, _, err := repo.ListResults(ctx, ResultFilter{}, Page{})
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	for _, result := range results {
		idx.results[resultKey{result.RaceID, result.DriverID}] = result.ID
	}
	return idx, nil
}

// ImportFixture upserts every record of fx into repo by natural key and then
// recalculates the points of every driver it touched. Running it twice leaves
// the datastore unchanged.
func ImportFixture(ctx context.Context, repo Repository, fx Fixture) (FixtureCounts, error) {
	var counts FixtureCounts
	for _, user := range fx.Users {
		if _, err := repo.ImportUser(ctx, models.User{
			Username:     user.Username,
			PasswordHash: user.PasswordHash,
			IsStaff:      user.IsStaff,
			IsSuperuser:  user.IsSuperuser,
		}); err != nil {
			return counts, fmt.Errorf("import user %q: %w", user.Username, err)
		}
		counts.Users++
	}

	idx, err := buildFixtureIndex(ctx, repo)
	if err != nil {
		return counts, err
	}

	for _, team := range fx.Teams {
		input := TeamInput{Name: team.Name, Country: team.Country}
		if id, ok := idx.teams[team.Name]; ok {
			if _, err := repo.UpdateTeam(ctx, id, input); err != nil {
				return counts, fmt.Errorf("update team %q: %w", team.Name, err)
			}
		} else {
			created, err := repo.CreateTeam(ctx, input)
			if err != nil {
				return counts, fmt.Errorf("create team %q: %w", team.Name, err)
			}
			idx.teams[created.Name] = created.ID
		}
		counts.Teams++
	}

	for _, driver := range fx.Drivers {
		teamID, ok := idx.teams[driver.Team]
		if !ok {
			return counts, fmt.Errorf("driver %q references unknown team %q", driver.Name, driver.Team)
		}
		key := driverKey{teamID, driver.Name}
		if _, ok := idx.drivers[key]; !ok {
			created, err := repo.CreateDriver(ctx, DriverInput{Name: driver.Name, TeamID: teamID})
			if err != nil {
				return counts, fmt.Errorf("create driver %q: %w", driver.Name, err)
			}
			idx.drivers[key] = created
		}
		counts.Drivers++
	}

	for _, season := range fx.Seasons {
		input := SeasonInput{Year: season.Year, Name: season.Name}
		if id, ok := idx.seasons[season.Year]; ok {
			if _, err := repo.UpdateSeason(ctx, id, input); err != nil {
				return counts, fmt.Errorf("update season %d: %w", season.Year, err)
			}
		} else {
			created, err := repo.CreateSeason(ctx, input)
			if err != nil {
				return counts, fmt.Errorf("create season %d: %w", season.Year, err)
			}
			idx.seasons[created.Year] = created.ID
		}
		counts.Seasons++
	}

	for _, race := range fx.Races {
		seasonID, ok := idx.seasons[race.Season]
		if !ok {
			return counts, fmt.Errorf("race %q references unknown season %d", race.Name, race.Season)
		}
		date, err := time.Parse(models.DateLayout, race.Date)
		if err != nil {
			return counts, fmt.Errorf("race %q: invalid date %q", race.Name, race.Date)
		}
		input := RaceInput{SeasonID: seasonID, RoundNumber: race.Round, Name: race.Name, Country: race.Country, RaceDate: date}
		key := raceKey{seasonID, race.Round}
		if id, ok := idx.races[key]; ok {
			if _, err := repo.UpdateRace(ctx, id, input); err != nil {
				return counts, fmt.Errorf("update race %q: %w", race.Name, err)
			}
		} else {
			created, err := repo.CreateRace(ctx, input)
			if err != nil {
				return counts, fmt.Errorf("create race %q: %w", race.Name, err)
			}
			idx.races[key] = created.ID
		}
		counts.Races++
	}

	touched := make([]int64, 0, len(fx.Results))
	for _, result := range fx.Results {
		seasonID, ok := idx.seasons[result.Season]
		if !ok {
			return counts, fmt.Errorf("result references unknown season %d", result.Season)
		}
		raceID, ok := idx.races[raceKey{seasonID, result.Round}]
		if !ok {
			return counts, fmt.Errorf("result references unknown race %d/%d", result.Season, result.Round)
		}
		teamID, ok := idx.teams[result.Team]
		if !ok {
			return counts, fmt.Errorf("result references unknown team %q", result.Team)
		}
		driver, ok := idx.drivers[driverKey{teamID, result.Driver}]
		if !ok {
			return counts, fmt.Errorf("result references unknown driver %q", result.Driver)
		}
		input := ResultInput{
			RaceID:       raceID,
			DriverID:     driver.ID,
			Position:     result.Position,
			PointsEarned: result.Points,
			FastestLap:   result.FastestLap,
		}
		key := resultKey{raceID, driver.ID}
		if id, ok := idx.results[key]; ok {
			if _, err := repo.UpdateResult(ctx, id, input); err != nil {
				return counts, fmt.Errorf("update result %d/%d %q: %w", result.Season, result.Round, result.Driver, err)
			}
		} else {
			created, err := repo.CreateResult(ctx, input)
			if err != nil {
				return counts, fmt.Errorf("create result %d/%d %q: %w", result.Season, result.Round, result.Driver, err)
			}
			idx.results[key] = created.ID
		}
		touched = append(touched, driver.ID)
		counts.Results++
	}

	if err := repo.RecalculatePoints(ctx, touched...); err != nil {
		return counts, fmt.Errorf("recalculate points: %w", err)
	}
	return counts, nil
}

// ExportFixture snapshots repo as a fixture. Users are included with their
// password hashes.
func ExportFixture(ctx context.Context, repo Repository) (Fixture, error) {
	var fx Fixture
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return fx, fmt.Errorf("list users: %w", err)
	}
	for _, user := range users {
		fx.Users = append(fx.Users, FixtureUser{
			Username:     user.Username,
			PasswordHash: user.PasswordHash,
			IsStaff:      user.IsStaff,
			IsSuperuser:  user.IsSuperuser,
		})
	}

	teams, _, err := repo.ListTeams(ctx, TeamFilter{}, Page{})
	if err != nil {
		return fx, fmt.Errorf("list teams: %w", err)
	}
	for _, team := range teams {
		fx.Teams = append(fx.Teams, FixtureTeam{Name: team.Name, Country: team.Country})
	}

	drivers, _, err := repo.ListDrivers(ctx, DriverFilter{}, Page{})
	if err != nil {
		return fx, fmt.Errorf("list drivers: %w", err)
	}
	for _, driver := range drivers {
		fx.Drivers = append(fx.Drivers, FixtureDriver{Name: driver.Name, Team: driver.Team.Name})
	}

	seasons, _, err := repo.ListSeasons(ctx, SeasonFilter{}, Page{})
	if err != nil {
		return fx, fmt.Errorf("list seasons: %w", err)
	}
	for _, season := range seasons {
		fx.Seasons = append(fx.Seasons, FixtureSeason{Year: season.Year, Name: season.Name})
	}

	races, _, err := repo.ListRaces(ctx, RaceFilter{}, Page{})
	if err != nil {
		return fx, fmt.Errorf("list races: %w", err)
	}
	for _, race := range races {
		fx.Races = append(fx.Races, FixtureRace{
			Season:  race.SeasonYear,
			Round:   race.RoundNumber,
			Name:    race.Name,
			Country: race.Country,
			Date:    race.RaceDate.Format(models.DateLayout),
		})
	}

	results, _, err := repo.ListResults(ctx, ResultFilter{}, Page{})
	if err != nil {
		return fx, fmt.Errorf("list results: %w", err)
	}
	for _, result := range results {
		fx.Results = append(fx.Results, FixtureResult{
			Season:     result.Race.SeasonYear,
			Round:      result.Race.RoundNumber,
			Driver:     result.Driver.Name,
			Team:       result.Driver.Team.Name,
			Position:   result.Position,
			Points:     result.PointsEarned,
			FastestLap: result.FastestLap,
		})
	}
	return fx, nil
}
