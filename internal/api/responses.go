package api

import (
	"motorsport-api/internal/models"
)

type teamResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	DriverCount int    `json:"driver_count"`
}

type teamDetailResponse struct {
	teamResponse
	Drivers []driverCompactResponse `json:"drivers"`
}

type teamSlimResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

type driverCompactResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

type driverResponse struct {
	ID     int64            `json:"id"`
	Name   string           `json:"name"`
	Points int              `json:"points"`
	Team   teamSlimResponse `json:"team"`
}

type seasonResponse struct {
	ID        int64  `json:"id"`
	Year      int    `json:"year"`
	Name      string `json:"name"`
	RaceCount int    `json:"race_count"`
}

type raceResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	RoundNumber int    `json:"round_number"`
	RaceDate    string `json:"race_date"`
	SeasonYear  int    `json:"season_year"`
}

type resultResponse struct {
	ID           int64          `json:"id"`
	Position     int            `json:"position"`
	PointsEarned int            `json:"points_earned"`
	FastestLap   bool           `json:"fastest_lap"`
	Race         raceResponse   `json:"race"`
	Driver       driverResponse `json:"driver"`
}

type userResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

type statsResponse struct {
	TotalTeams   int `json:"total_teams"`
	TotalDrivers int `json:"total_drivers"`
	TotalSeasons int `json:"total_seasons"`
	TotalRaces   int `json:"total_races"`
	TotalResults int `json:"total_results"`
	TopPoints    int `json:"top_points"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Database bool   `json:"database"`
}

func newTeamResponse(team models.TeamSummary) teamResponse {
	return teamResponse{
		ID:          team.ID,
		Name:        team.Name,
		Country:     team.Country,
		DriverCount: team.DriverCount,
	}
}

func newDriverCompactResponse(driver models.DriverDetail) driverCompactResponse {
	return driverCompactResponse{ID: driver.ID, Name: driver.Name, Points: driver.Points}
}

func newDriverResponse(driver models.DriverDetail) driverResponse {
	return driverResponse{
		ID:     driver.ID,
		Name:   driver.Name,
		Points: driver.Points,
		Team: teamSlimResponse{
			ID:      driver.Team.ID,
			Name:    driver.Team.Name,
			Country: driver.Team.Country,
		},
	}
}

func newSeasonResponse(season models.SeasonSummary) seasonResponse {
	return seasonResponse{
		ID:        season.ID,
		Year:      season.Year,
		Name:      season.Name,
		RaceCount: season.RaceCount,
	}
}

func newRaceResponse(race models.RaceDetail) raceResponse {
	return raceResponse{
		ID:          race.ID,
		Name:        race.Name,
		Country:     race.Country,
		RoundNumber: race.RoundNumber,
		RaceDate:    race.RaceDate.Format(models.DateLayout),
		SeasonYear:  race.SeasonYear,
	}
}

func newResultResponse(result models.ResultDetail) resultResponse {
	return resultResponse{
		ID:           result.ID,
		Position:     result.Position,
		PointsEarned: result.PointsEarned,
		FastestLap:   result.FastestLap,
		Race:         newRaceResponse(result.Race),
		Driver:       newDriverResponse(result.Driver),
	}
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}
}

func newStatsResponse(stats models.Stats) statsResponse {
	return statsResponse{
		TotalTeams:   stats.TotalTeams,
		TotalDrivers: stats.TotalDrivers,
		TotalSeasons: stats.TotalSeasons,
		TotalRaces:   stats.TotalRaces,
		TotalResults: stats.TotalResults,
		TopPoints:    stats.TopPoints,
	}
}
