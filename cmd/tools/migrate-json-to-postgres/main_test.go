package main

import (
	"strings"
	"testing"

	"motorsport-api/internal/storage"
)

func TestCountChecksCoverEveryTable(t *testing.T) {
	checks := countChecks(storage.FixtureCounts{Users: 1, Teams: 4, Drivers: 6, Seasons: 2, Races: 4, Results: 16})
	want := map[string]int{"users": 1, "teams": 4, "drivers": 6, "seasons": 2, "races": 4, "race_results": 16}
	if len(checks) != len(want) {
		t.Fatalf("expected %d checks, got %d", len(want), len(checks))
	}
	for _, check := range checks {
		expected, ok := want[check.name]
		if !ok {
			t.Fatalf("unexpected check %q", check.name)
		}
		if check.expected != expected {
			t.Fatalf("%s: expected %d, got %d", check.name, expected, check.expected)
		}
		if !strings.HasSuffix(check.query, "FROM "+check.name) {
			t.Fatalf("%s: query targets the wrong table: %q", check.name, check.query)
		}
	}
}
