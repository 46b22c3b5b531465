package models

import "time"

// DateLayout is the wire and storage layout used for race dates.
const DateLayout = "2006-01-02"

type Team struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Driver carries the cached points total. Points is derived from the driver's
// race results and is only written by the recalculation path.
type Driver struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	TeamID int64  `json:"teamId"`
	Points int    `json:"points"`
}

type Season struct {
	ID   int64  `json:"id"`
	Year int    `json:"year"`
	Name string `json:"name"`
}

type Race struct {
	ID          int64     `json:"id"`
	SeasonID    int64     `json:"seasonId"`
	RoundNumber int       `json:"roundNumber"`
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	RaceDate    time.Time `json:"raceDate"`
}

type RaceResult struct {
	ID           int64 `json:"id"`
	RaceID       int64 `json:"raceId"`
	DriverID     int64 `json:"driverId"`
	Position     int   `json:"position"`
	PointsEarned int   `json:"pointsEarned"`
	FastestLap   bool  `json:"fastestLap"`
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	IsStaff      bool      `json:"isStaff"`
	IsSuperuser  bool      `json:"isSuperuser"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TeamSummary is a team together with the number of drivers assigned to it.
type TeamSummary struct {
	Team
	DriverCount int
}

// DriverDetail is a driver joined with its team.
type DriverDetail struct {
	Driver
	Team Team
}

// SeasonSummary is a season together with the number of scheduled races.
type SeasonSummary struct {
	Season
	RaceCount int
}

// RaceDetail is a race joined with the year of its season.
type RaceDetail struct {
	Race
	SeasonYear int
}

// ResultDetail is a race result joined with its race and driver.
type ResultDetail struct {
	RaceResult
	Race   RaceDetail
	Driver DriverDetail
}

// SeasonResult is a flattened result row used for standings aggregation.
type SeasonResult struct {
	DriverID     int64
	DriverName   string
	TeamID       int64
	TeamName     string
	Position     int
	PointsEarned int
}

// Stats summarises the size of the dataset.
type Stats struct {
	TotalTeams   int
	TotalDrivers int
	TotalSeasons int
	TotalRaces   int
	TotalResults int
	TopPoints    int
}
