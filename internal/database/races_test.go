package database

import (
	"testing"
)

func TestGetOrCreateRace(t *testing.T) {
	db := testDB(t)

	name := "Monaco Grand Prix"
	circuit := "Monaco"
	date := int64(20230528)
	round := int64(7)

	first, err := db.GetOrCreateRace(2023, &round, RaceAttrs{RaceName: &name, Date: &date, CircuitName: &circuit})
	if err != nil {
		t.Fatalf("Failed to create race: %v", err)
	}

	second, err := db.GetOrCreateRace(2023, &round, RaceAttrs{})
	if err != nil {
		t.Fatalf("Failed to get race: %v", err)
	}
	if first != second {
		t.Errorf("expected same id for same (season, round), got %d and %d", first, second)
	}

	// Same round in another season is a different race
	other, err := db.GetOrCreateRace(2024, &round, RaceAttrs{RaceName: &name})
	if err != nil {
		t.Fatalf("Failed to create race: %v", err)
	}
	if other == first {
		t.Error("expected a distinct row for another season")
	}
}

func TestProvisionalRace(t *testing.T) {
	db := testDB(t)

	name := "Japanese Grand Prix"

	if _, err := db.GetOrCreateRace(2023, nil, RaceAttrs{}); err == nil {
		t.Error("expected error for provisional race without a name")
	}

	first, err := db.GetOrCreateRace(2023, nil, RaceAttrs{RaceName: &name})
	if err != nil {
		t.Fatalf("Failed to create provisional race: %v", err)
	}

	// A second provisional observation of the same name reuses the row
	second, err := db.GetOrCreateRace(2023, nil, RaceAttrs{RaceName: &name})
	if err != nil {
		t.Fatalf("Failed to get provisional race: %v", err)
	}
	if first != second {
		t.Errorf("expected same provisional row, got %d and %d", first, second)
	}

	races, err := db.ListRaces(2023)
	if err != nil {
		t.Fatalf("Failed to list races: %v", err)
	}
	if len(races) != 1 {
		t.Fatalf("expected 1 race, got %d", len(races))
	}
	if races[0].Round != nil {
		t.Errorf("expected nil round on provisional race, got %d", *races[0].Round)
	}
}

func TestProvisionalRaceAdoptsAuthoritativeRow(t *testing.T) {
	db := testDB(t)

	name := "Monaco Grand Prix"
	round := int64(7)

	authoritative, err := db.GetOrCreateRace(2023, &round, RaceAttrs{RaceName: &name})
	if err != nil {
		t.Fatalf("Failed to create race: %v", err)
	}

	// A telemetry source matching by name must land on the existing row
	// rather than minting a provisional duplicate
	matched, err := db.FindRaceByName(2023, name)
	if err != nil {
		t.Fatalf("Failed to find race by name: %v", err)
	}
	if matched == nil || *matched != authoritative {
		t.Fatalf("expected name match to return %d, got %v", authoritative, matched)
	}

	provisional, err := db.GetOrCreateRace(2023, nil, RaceAttrs{RaceName: &name})
	if err != nil {
		t.Fatalf("Failed to resolve race: %v", err)
	}
	if provisional != authoritative {
		t.Errorf("expected provisional path to reuse row %d, got %d", authoritative, provisional)
	}
}

func TestFindRaceByName(t *testing.T) {
	db := testDB(t)

	missing, err := db.FindRaceByName(2023, "Nonexistent Grand Prix")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown race, got %d", *missing)
	}

	empty, err := db.FindRaceByName(2023, "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty != nil {
		t.Errorf("expected nil for blank name, got %d", *empty)
	}
}

func TestListRacesOrdering(t *testing.T) {
	db := testDB(t)

	nameA := "Bahrain Grand Prix"
	nameB := "Saudi Arabian Grand Prix"
	nameC := "Postponed Grand Prix"
	roundOne := int64(1)
	roundTwo := int64(2)

	// Insert out of order, with one provisional race
	if _, err := db.GetOrCreateRace(2023, &roundTwo, RaceAttrs{RaceName: &nameB}); err != nil {
		t.Fatalf("Failed to create race: %v", err)
	}
	if _, err := db.GetOrCreateRace(2023, nil, RaceAttrs{RaceName: &nameC}); err != nil {
		t.Fatalf("Failed to create race: %v", err)
	}
	if _, err := db.GetOrCreateRace(2023, &roundOne, RaceAttrs{RaceName: &nameA}); err != nil {
		t.Fatalf("Failed to create race: %v", err)
	}

	races, err := db.ListRaces(2023)
	if err != nil {
		t.Fatalf("Failed to list races: %v", err)
	}
	if len(races) != 3 {
		t.Fatalf("expected 3 races, got %d", len(races))
	}
	if races[0].Round == nil || *races[0].Round != 1 {
		t.Errorf("expected round 1 first, got %v", races[0].Round)
	}
	if races[1].Round == nil || *races[1].Round != 2 {
		t.Errorf("expected round 2 second, got %v", races[1].Round)
	}
	if races[2].Round != nil {
		t.Errorf("expected provisional race last, got round %d", *races[2].Round)
	}
}

func TestGetOrCreateSession(t *testing.T) {
	db := testDB(t)

	name := "Dutch Grand Prix"
	round := int64(14)
	raceID, err := db.GetOrCreateRace(2023, &round, RaceAttrs{RaceName: &name})
	if err != nil {
		t.Fatalf("Failed to create race: %v", err)
	}

	temp := 41.5
	first, err := db.GetOrCreateSession(raceID, "R", SessionWeather{TrackTemp: &temp})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	// Weather is fixed at creation: a second observation with different
	// values must return the original row unchanged
	other := 12.0
	second, err := db.GetOrCreateSession(raceID, "R", SessionWeather{TrackTemp: &other})
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if first != second {
		t.Errorf("expected same session for same (race, type), got %d and %d", first, second)
	}

	quali, err := db.GetOrCreateSession(raceID, "Q", SessionWeather{})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if quali == first {
		t.Error("expected a distinct row for another session type")
	}
}
