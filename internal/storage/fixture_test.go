package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestDefaultFixtureContents(t *testing.T) {
	fx, err := DefaultFixture()
	if err != nil {
		t.Fatalf("DefaultFixture: %v", err)
	}
	want := FixtureCounts{Teams: 4, Drivers: 6, Seasons: 2, Races: 4, Results: 16}
	if got := fx.Counts(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	fastest := map[int]int{}
	for _, result := range fx.Results {
		if result.FastestLap {
			fastest[result.Season*10+result.Round]++
		}
	}
	for race, count := range fastest {
		if count != 1 {
			t.Fatalf("race %d has %d fastest laps", race, count)
		}
	}
}

func TestDecodeFixtureRejectsUnknownFields(t *testing.T) {
	_, err := DecodeFixture(strings.NewReader("teams:\n  - name: A\n    colour: red\n"))
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestDecodeFixtureEmpty(t *testing.T) {
	fx, err := DecodeFixture(strings.NewReader(""))
	if err != nil {
		t.Fatalf("DecodeFixture: %v", err)
	}
	if fx.Counts() != (FixtureCounts{}) {
		t.Fatalf("expected empty fixture, got %+v", fx.Counts())
	}
}

func TestImportFixtureRejectsDanglingReferences(t *testing.T) {
	store := newTestStore(t)
	fx := Fixture{Drivers: []FixtureDriver{{Name: "Ghost", Team: "Nobody"}}}
	if _, err := ImportFixture(context.Background(), store, fx); err == nil || !strings.Contains(err.Error(), "unknown team") {
		t.Fatalf("expected unknown team error, got %v", err)
	}
}

func TestExportFixtureCarriesUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.CreateUser(ctx, CreateUserParams{Username: "admin", Password: "adminpass1", IsStaff: true}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	fx, err := DefaultFixture()
	if err != nil {
		t.Fatalf("DefaultFixture: %v", err)
	}
	if _, err := ImportFixture(ctx, store, fx); err != nil {
		t.Fatalf("import: %v", err)
	}
	exported, err := ExportFixture(ctx, store)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(exported.Users) != 1 || !exported.Users[0].IsStaff {
		t.Fatalf("expected exported staff user, got %+v", exported.Users)
	}

	var buf bytes.Buffer
	if err := EncodeFixture(&buf, exported); err != nil {
		t.Fatalf("encode: %v", err)
	}
	target := newTestStore(t)
	decoded, err := DecodeFixture(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := ImportFixture(ctx, target, decoded); err != nil {
		t.Fatalf("import into target: %v", err)
	}
	if _, err := target.AuthenticateUser(ctx, "admin", "adminpass1"); err != nil {
		t.Fatalf("expected migrated credentials to work: %v", err)
	}
	drivers, _, err := target.ListDrivers(ctx, DriverFilter{}, Page{Limit: 1})
	if err != nil {
		t.Fatalf("list drivers: %v", err)
	}
	if drivers[0].Name != "Max Fast" || drivers[0].Points != 86 {
		t.Fatalf("expected Max Fast leading with 86, got %+v", drivers[0])
	}
}
