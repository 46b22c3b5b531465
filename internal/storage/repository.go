package storage

import (
	"context"

	"motorsport-api/internal/models"
)

// Repository exposes the datastore operations required by API handlers and the
// maintenance tools. Every method that mutates race results recalculates the
// points of the affected drivers inside the same unit of work.
type Repository interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
	SetUserPassword(ctx context.Context, id int64, password string) (models.User, error)
	SetUserFlags(ctx context.Context, id int64, isStaff, isSuperuser bool) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// ImportUser upserts a user by username keeping the supplied password hash.
	ImportUser(ctx context.Context, user models.User) (models.User, error)

	CreateTeam(ctx context.Context, input TeamInput) (models.Team, error)
	UpdateTeam(ctx context.Context, id int64, input TeamInput) (models.Team, error)
	DeleteTeam(ctx context.Context, id int64) error
	GetTeam(ctx context.Context, id int64) (models.TeamSummary, error)
	ListTeams(ctx context.Context, filter TeamFilter, page Page) ([]models.TeamSummary, int, error)

	CreateDriver(ctx context.Context, input DriverInput) (models.DriverDetail, error)
	UpdateDriver(ctx context.Context, id int64, input DriverInput) (models.DriverDetail, error)
	DeleteDriver(ctx context.Context, id int64) error
	GetDriver(ctx context.Context, id int64) (models.DriverDetail, error)
	ListDrivers(ctx context.Context, filter DriverFilter, page Page) ([]models.DriverDetail, int, error)

	CreateSeason(ctx context.Context, input SeasonInput) (models.SeasonSummary, error)
	UpdateSeason(ctx context.Context, id int64, input SeasonInput) (models.SeasonSummary, error)
	DeleteSeason(ctx context.Context, id int64) error
	GetSeason(ctx context.Context, id int64) (models.SeasonSummary, error)
	FindSeasonByYear(ctx context.Context, year int) (models.SeasonSummary, error)
	LatestSeason(ctx context.Context) (models.SeasonSummary, error)
	ListSeasons(ctx context.Context, filter SeasonFilter, page Page) ([]models.SeasonSummary, int, error)

	CreateRace(ctx context.Context, input RaceInput) (models.RaceDetail, error)
	UpdateRace(ctx context.Context, id int64, input RaceInput) (models.RaceDetail, error)
	DeleteRace(ctx context.Context, id int64) error
	GetRace(ctx context.Context, id int64) (models.RaceDetail, error)
	ListRaces(ctx context.Context, filter RaceFilter, page Page) ([]models.RaceDetail, int, error)

	CreateResult(ctx context.Context, input ResultInput) (models.ResultDetail, error)
	UpdateResult(ctx context.Context, id int64, input ResultInput) (models.ResultDetail, error)
	DeleteResult(ctx context.Context, id int64) error
	GetResult(ctx context.Context, id int64) (models.ResultDetail, error)
	ListResults(ctx context.Context, filter ResultFilter, page Page) ([]models.ResultDetail, int, error)

	// RecalculatePoints sets each driver's points to the sum of their results.
	RecalculatePoints(ctx context.Context, driverIDs ...int64) error
	SeasonResults(ctx context.Context, seasonID int64) ([]models.SeasonResult, error)
	Stats(ctx context.Context) (models.Stats, error)
}
