package storage

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxNameLength       = 100
	maxCountryLength    = 100
	maxSeasonNameLength = 120
	maxRaceNameLength   = 120

	msgBlank          = "This field may not be blank."
	msgRequired       = "This field is required."
	msgFastestLap     = "Only one fastest lap per race is allowed."
	msgTeamNameTaken  = "team with this name already exists."
	msgSeasonYearUsed = "season with this year already exists."

	teamProtectedMessage = "Cannot delete team while drivers are assigned to it."
)

func minValueMessage(min int) string {
	return fmt.Sprintf("Ensure this value is greater than or equal to %d.", min)
}

func maxLengthMessage(max int) string {
	return fmt.Sprintf("Ensure this field has no more than %d characters.", max)
}

func checkText(verr *ValidationError, field, value string, max int, allowBlank bool) {
	if value == "" {
		if !allowBlank {
			verr.Add(field, msgBlank)
		}
		return
	}
	if utf8.RuneCountInString(value) > max {
		verr.Add(field, maxLengthMessage(max))
	}
}

func normalizeTeamInput(input TeamInput) (TeamInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Country = strings.TrimSpace(input.Country)
	verr := &ValidationError{}
	checkText(verr, "name", input.Name, maxNameLength, false)
	checkText(verr, "country", input.Country, maxCountryLength, false)
	return input, verr.OrNil()
}

func normalizeDriverInput(input DriverInput) (DriverInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	verr := &ValidationError{}
	checkText(verr, "name", input.Name, maxNameLength, false)
	if input.TeamID <= 0 {
		verr.Add("team_id", msgRequired)
	}
	return input, verr.OrNil()
}

func normalizeSeasonInput(input SeasonInput) (SeasonInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	verr := &ValidationError{}
	if input.Year < 1 {
		verr.Add("year", minValueMessage(1))
	}
	checkText(verr, "name", input.Name, maxSeasonNameLength, true)
	return input, verr.OrNil()
}

func normalizeRaceInput(input RaceInput) (RaceInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Country = strings.TrimSpace(input.Country)
	verr := &ValidationError{}
	if input.SeasonID <= 0 {
		verr.Add("season_id", msgRequired)
	}
	if input.RoundNumber < 1 {
		verr.Add("round_number", minValueMessage(1))
	}
	checkText(verr, "name", input.Name, maxRaceNameLength, false)
	checkText(verr, "country", input.Country, maxCountryLength, false)
	if input.RaceDate.IsZero() {
		verr.Add("race_date", msgRequired)
	} else {
		y, m, d := input.RaceDate.Date()
		input.RaceDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return input, verr.OrNil()
}

func normalizeResultInput(input ResultInput) (ResultInput, error) {
	verr := &ValidationError{}
	if input.RaceID <= 0 {
		verr.Add("race_id", msgRequired)
	}
	if input.DriverID <= 0 {
		verr.Add("driver_id", msgRequired)
	}
	if input.Position < 1 {
		verr.Add("position", minValueMessage(1))
	}
	if input.PointsEarned < 0 {
		verr.Add("points_earned", minValueMessage(0))
	}
	return input, verr.OrNil()
}

// ValidatePassword applies the account password rules.
func ValidatePassword(password string) []string {
	var problems []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength))
	}
	if password != "" && isAllDigits(password) {
		problems = append(problems, "This password is entirely numeric.")
	}
	return problems
}

func isAllDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
