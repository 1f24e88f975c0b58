package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"f1-data-sync/internal/config"
	"f1-data-sync/internal/database"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(archiveURL, ergastURL string, ceiling int) *config.Config {
	return &config.Config{
		OpenMeteoBaseURL:         archiveURL,
		ErgastBaseURL:            ergastURL,
		TargetSeasons:            []int{2023},
		MaxNewObservationsPerRun: ceiling,
		HTTPTimeout:              5 * time.Second,
	}
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// archiveServer serves hourly parallel arrays and records the requested
// date range
func archiveServer(t *testing.T, hours int, gotRange *[2]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotRange != nil {
			gotRange[0] = r.URL.Query().Get("start_date")
			gotRange[1] = r.URL.Query().Get("end_date")
		}

		times := make([]string, 0, hours)
		temps := make([]any, 0, hours)
		winds := make([]any, 0, hours)
		rain := make([]any, 0, hours)
		for i := 0; i < hours; i++ {
			times = append(times, fmt.Sprintf("2023-07-%02dT%02d:00", 6+i/24, i%24))
			temps = append(temps, 20.0+float64(i%10))
			winds = append(winds, 3.5)
			rain = append(rain, 0.0)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"hourly": map[string]any{
				"time":           times,
				"temperature_2m": temps,
				"windspeed_10m":  winds,
				"precipitation":  rain,
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

// locationServer serves circuit coordinates in race metadata
func locationServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"MRData": map[string]any{
				"RaceTable": map[string]any{
					"Races": []map[string]any{{
						"season": "2023", "round": "1",
						"Circuit": map[string]any{
							"circuitName": "Silverstone",
							"Location":    map[string]any{"lat": "52.0786", "long": "-1.0169"},
						},
					}},
				},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

// seedRace stores one fully known race for the weather adapter to window on
func seedRace(t *testing.T, db *database.DB, round int64, date int64) int64 {
	t.Helper()

	name := fmt.Sprintf("Race %d", round)
	circuit := "Silverstone"
	raceID, err := db.GetOrCreateRace(2023, &round, database.RaceAttrs{
		RaceName:    &name,
		Date:        &date,
		CircuitName: &circuit,
	})
	if err != nil {
		t.Fatalf("Failed to seed race: %v", err)
	}
	return raceID
}

func countWeather(t *testing.T, db *database.DB) int {
	t.Helper()
	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	for _, s := range stats {
		if s.Table == "Weather" {
			return s.Rows
		}
	}
	t.Fatal("Weather table missing from stats")
	return 0
}

func TestRunIngestsObservations(t *testing.T) {
	var gotRange [2]string
	archive := archiveServer(t, 12, &gotRange)
	locations := locationServer(t)
	db := openTestDB(t)
	seedRace(t, db, 1, 20230709)

	syncer := NewSyncer(testConfig(archive.URL, locations.URL, 100), db, testLogger())
	added, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if added != 12 {
		t.Errorf("expected 12 observations added, got %d", added)
	}

	// The fetch window spans three days before the race through the day
	// after
	if gotRange[0] != "2023-07-06" || gotRange[1] != "2023-07-10" {
		t.Errorf("unexpected date range %v", gotRange)
	}

	progress, err := db.GetProgress(Source)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress == nil || progress.Season != 2023 || progress.Round != 1 {
		t.Fatalf("expected cursor at (2023, 1), got %+v", progress)
	}

	// The circuit's coordinates were backfilled during the run
	var circuitID int64
	if err := db.Conn().QueryRow("SELECT circuit_id FROM Circuits WHERE circuit_name = ?", "Silverstone").Scan(&circuitID); err != nil {
		t.Fatalf("Failed to read circuit: %v", err)
	}
	coords, err := db.GetCircuitCoordinates(circuitID)
	if err != nil {
		t.Fatalf("GetCircuitCoordinates failed: %v", err)
	}
	if coords == nil || coords.Latitude != 52.0786 {
		t.Errorf("expected backfilled coordinates, got %+v", coords)
	}

	// Re-run resumes past the race and adds nothing
	added, err = syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if added != 0 {
		t.Errorf("expected 0 observations on re-run, got %d", added)
	}
	if got := countWeather(t, db); got != 12 {
		t.Errorf("expected count unchanged at 12, got %d", got)
	}
}

func TestRunRespectsBudget(t *testing.T) {
	archive := archiveServer(t, 48, nil)
	locations := locationServer(t)
	db := openTestDB(t)
	seedRace(t, db, 1, 20230709)

	syncer := NewSyncer(testConfig(archive.URL, locations.URL, 25), db, testLogger())
	added, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if added != 25 {
		t.Errorf("expected 25 observations added, got %d", added)
	}
}

// A race the adapter cannot window on (no stored date) is skipped without
// failing, and the cursor still advances so it never blocks later races.
func TestRunSkipsRaceWithoutDate(t *testing.T) {
	archive := archiveServer(t, 6, nil)
	locations := locationServer(t)
	db := openTestDB(t)

	name := "Dateless Grand Prix"
	round := int64(1)
	if _, err := db.GetOrCreateRace(2023, &round, database.RaceAttrs{RaceName: &name}); err != nil {
		t.Fatalf("Failed to seed race: %v", err)
	}
	seedRace(t, db, 2, 20230723)

	syncer := NewSyncer(testConfig(archive.URL, locations.URL, 100), db, testLogger())
	added, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if added != 6 {
		t.Errorf("expected 6 observations from the dated race, got %d", added)
	}

	progress, _ := db.GetProgress(Source)
	if progress == nil || progress.Round != 2 {
		t.Fatalf("expected cursor at round 2, got %+v", progress)
	}
}

// Provisional races have no round to cursor on and are left alone
func TestRunIgnoresProvisionalRaces(t *testing.T) {
	archive := archiveServer(t, 6, nil)
	locations := locationServer(t)
	db := openTestDB(t)

	name := "Provisional Grand Prix"
	if _, err := db.GetOrCreateRace(2023, nil, database.RaceAttrs{RaceName: &name}); err != nil {
		t.Fatalf("Failed to seed race: %v", err)
	}

	syncer := NewSyncer(testConfig(archive.URL, locations.URL, 100), db, testLogger())
	added, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if added != 0 {
		t.Errorf("expected 0 observations, got %d", added)
	}

	progress, err := db.GetProgress(Source)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress != nil {
		t.Errorf("expected no cursor, got %+v", progress)
	}
}

func TestWeatherWindow(t *testing.T) {
	start, end, ok := weatherWindow(20230528)
	if !ok {
		t.Fatal("expected window for valid date")
	}
	if start != "2023-05-25" || end != "2023-05-29" {
		t.Errorf("unexpected window %s..%s", start, end)
	}

	if _, _, ok := weatherWindow(528); ok {
		t.Error("expected malformed date to be rejected")
	}
}
