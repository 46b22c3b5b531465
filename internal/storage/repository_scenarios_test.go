package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"motorsport-api/internal/models"
)

// RepositoryFactory constructs a repository backed by either the JSON store or
// Postgres implementation for cross-datastore scenario assertions.
type RepositoryFactory func(t *testing.T, opts ...Option) (Repository, func(), error)

func runRepository(t *testing.T, factory RepositoryFactory, opts ...Option) Repository {
	t.Helper()
	if factory == nil {
		t.Fatal("repository factory is required")
	}
	repo, cleanup, err := factory(t, opts...)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if repo == nil {
		t.Fatal("repository factory returned nil repository")
	}
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	return repo
}

// grid is a minimal championship: two teams, three drivers and one season with
// two races.
type grid struct {
	redTeam, blueTeam  models.Team
	alpha, beta, gamma models.DriverDetail
	season             models.SeasonSummary
	opener, finale     models.RaceDetail
}

func seedGrid(t *testing.T, repo Repository) grid {
	t.Helper()
	ctx := context.Background()
	var g grid
	var err error
	if g.redTeam, err = repo.CreateTeam(ctx, TeamInput{Name: "Red Apex", Country: "Italy"}); err != nil {
		t.Fatalf("create red team: %v", err)
	}
	if g.blueTeam, err = repo.CreateTeam(ctx, TeamInput{Name: "Blue Arrow", Country: "United Kingdom"}); err != nil {
		t.Fatalf("create blue team: %v", err)
	}
	if g.alpha, err = repo.CreateDriver(ctx, DriverInput{Name: "Alpha", TeamID: g.redTeam.ID}); err != nil {
		t.Fatalf("create alpha: %v", err)
	}
	if g.beta, err = repo.CreateDriver(ctx, DriverInput{Name: "Beta", TeamID: g.blueTeam.ID}); err != nil {
		t.Fatalf("create beta: %v", err)
	}
	if g.gamma, err = repo.CreateDriver(ctx, DriverInput{Name: "Gamma", TeamID: g.blueTeam.ID}); err != nil {
		t.Fatalf("create gamma: %v", err)
	}
	if g.season, err = repo.CreateSeason(ctx, SeasonInput{Year: 2026, Name: "Championship 2026"}); err != nil {
		t.Fatalf("create season: %v", err)
	}
	g.opener, err = repo.CreateRace(ctx, RaceInput{
		SeasonID: g.season.ID, RoundNumber: 1, Name: "Opener", Country: "Bahrain",
		RaceDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create opener: %v", err)
	}
	g.finale, err = repo.CreateRace(ctx, RaceInput{
		SeasonID: g.season.ID, RoundNumber: 2, Name: "Finale", Country: "Italy",
		RaceDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create finale: %v", err)
	}
	return g
}

func driverPoints(t *testing.T, repo Repository, id int64) int {
	t.Helper()
	driver, err := repo.GetDriver(context.Background(), id)
	if err != nil {
		t.Fatalf("get driver %d: %v", id, err)
	}
	return driver.Points
}

func mustCreateResult(t *testing.T, repo Repository, input ResultInput) models.ResultDetail {
	t.Helper()
	result, err := repo.CreateResult(context.Background(), input)
	if err != nil {
		t.Fatalf("create result %+v: %v", input, err)
	}
	return result
}

// RunRepositoryUserLifecycle covers account creation, lookup and credential
// checks.
func RunRepositoryUserLifecycle(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, CreateUserParams{Username: "  Alice ", Password: "s3cure-pass"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.ID == 0 || user.Username != "Alice" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.IsStaff || user.IsSuperuser {
		t.Fatalf("expected regular user, got %+v", user)
	}

	if _, err := repo.CreateUser(ctx, CreateUserParams{Username: "alice", Password: "another-pass"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	_, err = repo.CreateUser(ctx, CreateUserParams{Username: "bob", Password: "12345678"})
	requireFieldError(t, err, "password", "This password is entirely numeric.")

	found, err := repo.FindUserByUsername(ctx, "ALICE")
	if err != nil || found.ID != user.ID {
		t.Fatalf("find by username: %+v, %v", found, err)
	}
	if _, err := repo.AuthenticateUser(ctx, "alice", "s3cure-pass"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := repo.AuthenticateUser(ctx, "alice", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := repo.AuthenticateUser(ctx, "nobody", "s3cure-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	if _, err := repo.SetUserPassword(ctx, user.ID, "rotated-pass"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if _, err := repo.AuthenticateUser(ctx, "alice", "rotated-pass"); err != nil {
		t.Fatalf("authenticate with rotated password: %v", err)
	}

	promoted, err := repo.SetUserFlags(ctx, user.ID, true, true)
	if err != nil {
		t.Fatalf("set flags: %v", err)
	}
	if !promoted.IsStaff || !promoted.IsSuperuser {
		t.Fatalf("expected promoted user, got %+v", promoted)
	}
	if _, err := repo.GetUser(ctx, user.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	imported, err := repo.ImportUser(ctx, models.User{Username: "carol", PasswordHash: promoted.PasswordHash})
	if err != nil {
		t.Fatalf("import user: %v", err)
	}
	if _, err := repo.AuthenticateUser(ctx, "carol", "rotated-pass"); err != nil {
		t.Fatalf("authenticate imported user: %v", err)
	}
	again, err := repo.ImportUser(ctx, models.User{Username: "Carol", PasswordHash: promoted.PasswordHash, IsStaff: true})
	if err != nil {
		t.Fatalf("re-import user: %v", err)
	}
	if again.ID != imported.ID || !again.IsStaff {
		t.Fatalf("expected upsert of existing user, got %+v", again)
	}
	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

// RunRepositoryPointsInvariant checks that every result write keeps each
// driver's points equal to the sum of their results.
func RunRepositoryPointsInvariant(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory)
	ctx := context.Background()
	g := seedGrid(t, repo)

	first := mustCreateResult(t, repo, ResultInput{RaceID: g.opener.ID, DriverID: g.alpha.ID, Position: 1, PointsEarned: 25, FastestLap: true})
	mustCreateResult(t, repo, ResultInput{RaceID: g.opener.ID, DriverID: g.beta.ID, Position: 2, PointsEarned: 18})
	mustCreateResult(t, repo, ResultInput{RaceID: g.finale.ID, DriverID: g.alpha.ID, Position: 2, PointsEarned: 18})
	second := mustCreateResult(t, repo, ResultInput{RaceID: g.finale.ID, DriverID: g.beta.ID, Position: 1, PointsEarned: 25})

	if got := driverPoints(t, repo, g.alpha.ID); got != 43 {
		t.Fatalf("expected alpha 43 points, got %d", got)
	}
	if got := driverPoints(t, repo, g.beta.ID); got != 43 {
		t.Fatalf("expected beta 43 points, got %d", got)
	}
	if first.Driver.Points != 25 {
		t.Fatalf("expected returned detail to carry recalculated points, got %d", first.Driver.Points)
	}

	// Reassigning a result recalculates both drivers.
	updated, err := repo.UpdateResult(ctx, second.ID, ResultInput{RaceID: g.finale.ID, DriverID: g.gamma.ID, Position: 1, PointsEarned: 25})
	if err != nil {
		t.Fatalf("update result: %v", err)
	}
	if updated.DriverID != g.gamma.ID {
		t.Fatalf("expected result moved to gamma, got driver %d", updated.DriverID)
	}
	if got := driverPoints(t, repo, g.beta.ID); got != 18 {
		t.Fatalf("expected beta 18 points after reassignment, got %d", got)
	}
	if got := driverPoints(t, repo, g.gamma.ID); got != 25 {
		t.Fatalf("expected gamma 25 points after reassignment, got %d", got)
	}

	if err := repo.DeleteResult(ctx, first.ID); err != nil {
		t.Fatalf("delete result: %v", err)
	}
	if got := driverPoints(t, repo, g.alpha.ID); got != 18 {
		t.Fatalf("expected alpha 18 points after delete, got %d", got)
	}
	if err := repo.DeleteResult(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	if err := repo.RecalculatePoints(ctx, g.alpha.ID, g.beta.ID, g.gamma.ID, 0, -1, 9999); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := driverPoints(t, repo, g.alpha.ID); got != 18 {
		t.Fatalf("expected recalculation to be stable, got %d", got)
	}
}

// RunRepositoryResultConstraints checks the per-race uniqueness rules.
func RunRepositoryResultConstraints(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory)
	ctx := context.Background()
	g := seedGrid(t, repo)

	winner := mustCreateResult(t, repo, ResultInput{RaceID: g.opener.ID, DriverID: g.alpha.ID, Position: 1, PointsEarned: 25, FastestLap: true})

	_, err := repo.CreateResult(ctx, ResultInput{RaceID: g.opener.ID, DriverID: g.beta.ID, Position: 1, PointsEarned: 18})
	requireFieldError(t, err, NonFieldErrors, "The fields race, position must make a unique set.")

	_, err = repo.CreateResult(ctx, ResultInput{RaceID: g.opener.ID, DriverID: g.alpha.ID, Position: 2, PointsEarned: 18})
	requireFieldError(t, err, NonFieldErrors, "The fields race, driver must make a unique set.")

	_, err = repo.CreateResult(ctx, ResultInput{RaceID: g.opener.ID, DriverID: g.beta.ID, Position: 2, PointsEarned: 18, FastestLap: true})
	requireFieldError(t, err, "fastest_lap", "Only one fastest lap per race is allowed.")

	_, err = repo.CreateResult(ctx, ResultInput{RaceID: 9999, DriverID: g.beta.ID, Position: 2})
	requireFieldError(t, err, "race_id", `Invalid pk "9999" - object does not exist.`)

	_, err = repo.CreateResult(ctx, ResultInput{RaceID: g.opener.ID, DriverID: g.beta.ID, Position: 0, PointsEarned: -1})
	requireFieldError(t, err, "position", "Ensure this value is greater than or equal to 1.")
	requireFieldError(t, err, "points_earned", "Ensure this value is greater than or equal to 0.")

	if got := driverPoints(t, repo, g.beta.ID); got != 0 {
		t.Fatalf("rejected writes must not change points, got %d", got)
	}

	// A result may keep its own fastest lap flag on update.
	if _, err := repo.UpdateResult(ctx, winner.ID, ResultInput{RaceID: g.opener.ID, DriverID: g.alpha.ID, Position: 1, PointsEarned: 26, FastestLap: true}); err != nil {
		t.Fatalf("update own fastest lap: %v", err)
	}
	// The same driver may hold fastest lap in another race.
	mustCreateResult(t, repo, ResultInput{RaceID: g.finale.ID, DriverID: g.alpha.ID, Position: 1, PointsEarned: 25, FastestLap: true})
	if got := driverPoints(t, repo, g.alpha.ID); got != 51 {
		t.Fatalf("expected alpha 51 points, got %d", got)
	}
}

// RunRepositoryResultConflictOrder checks that a write violating several
// per-race rules reports position first, then driver, then fastest lap.
func RunRepositoryResultConflictOrder(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory)
	ctx := context.Background()
	g := seedGrid(t, repo)

	mustCreateResult(t, repo, ResultInput{RaceID: g.finale.ID, DriverID: g.alpha.ID, Position: 1, PointsEarned: 25, FastestLap: true})
	mustCreateResult(t, repo, ResultInput{RaceID: g.finale.ID, DriverID: g.beta.ID, Position: 2, PointsEarned: 18})

	// Repeated attempts guard against map iteration order leaking into the message.
	for attempt := 0; attempt < 25; attempt++ {
		_, err := repo.CreateResult(ctx, ResultInput{RaceID: g.finale.ID, DriverID: g.alpha.ID, Position: 2, PointsEarned: 18})
		requireFieldError(t, err, NonFieldErrors, "The fields race, position must make a unique set.")

		_, err = repo.CreateResult(ctx, ResultInput{RaceID: g.finale.ID, DriverID: g.beta.ID, Position: 3, PointsEarned: 15, FastestLap: true})
		requireFieldError(t, err, NonFieldErrors, "The fields race, driver must make a unique set.")
	}
}

// RunRepositoryCatalogRules covers uniqueness, protection and cascades of the
// catalog entities.
func RunRepositoryCatalogRules(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory)
	ctx := context.Background()
	g := seedGrid(t, repo)

	_, err := repo.CreateTeam(ctx, TeamInput{Name: "Red Apex", Country: "France"})
	requireFieldError(t, err, "name", "team with this name already exists.")
	_, err = repo.CreateTeam(ctx, TeamInput{Name: " ", Country: "France"})
	requireFieldError(t, err, "name", "This field may not be blank.")

	_, err = repo.CreateDriver(ctx, DriverInput{Name: "Alpha", TeamID: g.redTeam.ID})
	requireFieldError(t, err, NonFieldErrors, "The fields name, team must make a unique set.")
	if _, err := repo.CreateDriver(ctx, DriverInput{Name: "Alpha", TeamID: g.blueTeam.ID}); err != nil {
		t.Fatalf("same driver name in another team should be allowed: %v", err)
	}
	_, err = repo.CreateDriver(ctx, DriverInput{Name: "Delta", TeamID: 9999})
	requireFieldError(t, err, "team_id", `Invalid pk "9999" - object does not exist.`)

	_, err = repo.CreateSeason(ctx, SeasonInput{Year: 2026})
	requireFieldError(t, err, "year", "season with this year already exists.")

	_, err = repo.CreateRace(ctx, RaceInput{SeasonID: g.season.ID, RoundNumber: 1, Name: "Dup", Country: "Spain", RaceDate: time.Now()})
	requireFieldError(t, err, NonFieldErrors, "The fields season, round_number must make a unique set.")

	team, err := repo.GetTeam(ctx, g.blueTeam.ID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if team.DriverCount != 3 {
		t.Fatalf("expected 3 drivers on blue team, got %d", team.DriverCount)
	}

	var protected *ProtectedError
	if err := repo.DeleteTeam(ctx, g.redTeam.ID); !errors.As(err, &protected) {
		t.Fatalf("expected ProtectedError, got %v", err)
	}
	empty, err := repo.CreateTeam(ctx, TeamInput{Name: "Empty", Country: "Spain"})
	if err != nil {
		t.Fatalf("create empty team: %v", err)
	}
	if err := repo.DeleteTeam(ctx, empty.ID); err != nil {
		t.Fatalf("delete empty team: %v", err)
	}
	if _, err := repo.GetTeam(ctx, empty.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted team to be gone, got %v", err)
	}

	opener := mustCreateResult(t, repo, ResultInput{RaceID: g.opener.ID, DriverID: g.alpha.ID, Position: 1, PointsEarned: 25})
	mustCreateResult(t, repo, ResultInput{RaceID: g.finale.ID, DriverID: g.alpha.ID, Position: 1, PointsEarned: 25})
	mustCreateResult(t, repo, ResultInput{RaceID: g.finale.ID, DriverID: g.beta.ID, Position: 2, PointsEarned: 18})

	if err := repo.DeleteRace(ctx, g.opener.ID); err != nil {
		t.Fatalf("delete race: %v", err)
	}
	if _, err := repo.GetResult(ctx, opener.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected race delete to cascade to results, got %v", err)
	}
	if got := driverPoints(t, repo, g.alpha.ID); got != 25 {
		t.Fatalf("expected alpha 25 points after race delete, got %d", got)
	}

	if err := repo.DeleteDriver(ctx, g.beta.ID); err != nil {
		t.Fatalf("delete driver: %v", err)
	}
	_, total, err := repo.ListResults(ctx, ResultFilter{RaceID: g.finale.ID}, Page{})
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected driver delete to cascade to results, got %d", total)
	}

	if err := repo.DeleteSeason(ctx, g.season.ID); err != nil {
		t.Fatalf("delete season: %v", err)
	}
	if _, err := repo.GetRace(ctx, g.finale.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected season delete to cascade to races, got %v", err)
	}
	if got := driverPoints(t, repo, g.alpha.ID); got != 0 {
		t.Fatalf("expected alpha 0 points after season delete, got %d", got)
	}
	if err := repo.DeleteSeason(ctx, g.season.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// RunRepositoryListFilters checks filtering, ordering and pagination.
func RunRepositoryListFilters(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory)
	ctx := context.Background()
	g := seedGrid(t, repo)

	mustCreateResult(t, repo, ResultInput{RaceID: g.opener.ID, DriverID: g.gamma.ID, Position: 1, PointsEarned: 25})
	mustCreateResult(t, repo, ResultInput{RaceID: g.opener.ID, DriverID: g.alpha.ID, Position: 2, PointsEarned: 18})
	mustCreateResult(t, repo, ResultInput{RaceID: g.finale.ID, DriverID: g.beta.ID, Position: 1, PointsEarned: 10})

	teams, total, err := repo.ListTeams(ctx, TeamFilter{Country: "king"}, Page{})
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if total != 1 || len(teams) != 1 || teams[0].ID != g.blueTeam.ID {
		t.Fatalf("expected blue team only, got %+v (total %d)", teams, total)
	}

	drivers, total, err := repo.ListDrivers(ctx, DriverFilter{}, Page{Limit: 2})
	if err != nil {
		t.Fatalf("list drivers: %v", err)
	}
	if total != 3 || len(drivers) != 2 {
		t.Fatalf("expected page of 2 out of 3 drivers, got %d of %d", len(drivers), total)
	}
	if drivers[0].ID != g.gamma.ID || drivers[1].ID != g.alpha.ID {
		t.Fatalf("expected drivers ordered by points, got %s, %s", drivers[0].Name, drivers[1].Name)
	}
	if drivers[0].Team.Name != "Blue Arrow" {
		t.Fatalf("expected nested team, got %+v", drivers[0].Team)
	}

	min := 18
	drivers, total, err = repo.ListDrivers(ctx, DriverFilter{MinPoints: &min}, Page{Limit: 10, Offset: 1})
	if err != nil {
		t.Fatalf("list drivers by min points: %v", err)
	}
	if total != 2 || len(drivers) != 1 || drivers[0].ID != g.alpha.ID {
		t.Fatalf("expected alpha on the second page, got %+v (total %d)", drivers, total)
	}

	drivers, _, err = repo.ListDrivers(ctx, DriverFilter{TeamID: g.blueTeam.ID, Country: "united"}, Page{})
	if err != nil {
		t.Fatalf("list drivers by team: %v", err)
	}
	if len(drivers) != 2 {
		t.Fatalf("expected 2 blue drivers, got %d", len(drivers))
	}

	other, err := repo.CreateSeason(ctx, SeasonInput{Year: 2025})
	if err != nil {
		t.Fatalf("create season: %v", err)
	}
	if _, err := repo.CreateRace(ctx, RaceInput{SeasonID: other.ID, RoundNumber: 1, Name: "Old", Country: "Italy", RaceDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("create race: %v", err)
	}
	races, total, err := repo.ListRaces(ctx, RaceFilter{Season: SeasonRef{Year: 2026}}, Page{})
	if err != nil {
		t.Fatalf("list races: %v", err)
	}
	if total != 2 || races[0].ID != g.opener.ID || races[0].SeasonYear != 2026 {
		t.Fatalf("expected 2026 races in round order, got %+v", races)
	}
	races, _, err = repo.ListRaces(ctx, RaceFilter{Country: "ital"}, Page{})
	if err != nil {
		t.Fatalf("list races by country: %v", err)
	}
	if len(races) != 2 || races[0].Name != "Old" || races[1].Name != "Finale" {
		t.Fatalf("expected races ordered by season year then round, got %+v", races)
	}

	seasons, _, err := repo.ListSeasons(ctx, SeasonFilter{}, Page{})
	if err != nil {
		t.Fatalf("list seasons: %v", err)
	}
	if len(seasons) != 2 || seasons[0].Year != 2026 || seasons[0].RaceCount != 2 {
		t.Fatalf("expected newest season first with race count, got %+v", seasons)
	}

	results, total, err := repo.ListResults(ctx, ResultFilter{Season: SeasonRef{ID: g.season.ID}}, Page{})
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if total != 3 || results[0].Race.ID != g.opener.ID || results[0].Position != 1 {
		t.Fatalf("expected results ordered by race date and position, got %+v", results)
	}
	results, _, err = repo.ListResults(ctx, ResultFilter{DriverID: g.beta.ID}, Page{})
	if err != nil {
		t.Fatalf("list results by driver: %v", err)
	}
	if len(results) != 1 || results[0].Driver.Team.ID != g.blueTeam.ID {
		t.Fatalf("expected beta's single result, got %+v", results)
	}
}

// RunRepositoryFixtureImport replays the bundled championship twice and checks
// the derived totals.
func RunRepositoryFixtureImport(t *testing.T, factory RepositoryFactory) {
	repo := runRepository(t, factory)
	ctx := context.Background()

	fx, err := DefaultFixture()
	if err != nil {
		t.Fatalf("default fixture: %v", err)
	}
	counts, err := ImportFixture(ctx, repo, fx)
	if err != nil {
		t.Fatalf("import fixture: %v", err)
	}
	if counts != fx.Counts() {
		t.Fatalf("expected counts %+v, got %+v", fx.Counts(), counts)
	}
	if _, err := ImportFixture(ctx, repo, fx); err != nil {
		t.Fatalf("re-import fixture: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := models.Stats{TotalTeams: 4, TotalDrivers: 6, TotalSeasons: 2, TotalRaces: 4, TotalResults: 16, TopPoints: 86}
	if stats != want {
		t.Fatalf("expected stats %+v, got %+v", want, stats)
	}

	latest, err := repo.LatestSeason(ctx)
	if err != nil {
		t.Fatalf("latest season: %v", err)
	}
	if latest.Year != 2026 {
		t.Fatalf("expected latest season 2026, got %d", latest.Year)
	}
	rows, err := repo.SeasonResults(ctx, latest.ID)
	if err != nil {
		t.Fatalf("season results: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("expected 8 season results, got %d", len(rows))
	}
	if _, err := repo.SeasonResults(ctx, latest.ID+1000); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown season, got %v", err)
	}

	exported, err := ExportFixture(ctx, repo)
	if err != nil {
		t.Fatalf("export fixture: %v", err)
	}
	if exported.Counts() != fx.Counts() {
		t.Fatalf("expected exported counts %+v, got %+v", fx.Counts(), exported.Counts())
	}
}

func TestRepositoryUserLifecycle(t *testing.T) {
	RunRepositoryUserLifecycle(t, jsonRepositoryFactory)
}

func TestRepositoryPointsInvariant(t *testing.T) {
	RunRepositoryPointsInvariant(t, jsonRepositoryFactory)
}

func TestRepositoryResultConstraints(t *testing.T) {
	RunRepositoryResultConstraints(t, jsonRepositoryFactory)
}

func TestRepositoryResultConflictOrder(t *testing.T) {
	RunRepositoryResultConflictOrder(t, jsonRepositoryFactory)
}

func TestRepositoryCatalogRules(t *testing.T) {
	RunRepositoryCatalogRules(t, jsonRepositoryFactory)
}

func TestRepositoryListFilters(t *testing.T) {
	RunRepositoryListFilters(t, jsonRepositoryFactory)
}

func TestRepositoryFixtureImport(t *testing.T) {
	RunRepositoryFixtureImport(t, jsonRepositoryFactory)
}
