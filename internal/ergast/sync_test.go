package ergast

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

func testConfig(baseURL string, ceiling int) *config.Config {
	return &config.Config{
		ErgastBaseURL:       baseURL,
		TargetSeasons:       []int{2023},
		MaxNewResultsPerRun: ceiling,
		HTTPTimeout:         5 * time.Second,
	}
}

// wire-format fixtures

func raceEntry(season, round int, name, date, circuit string, results []map[string]any) map[string]any {
	entry := map[string]any{
		"season":   fmt.Sprint(season),
		"round":    fmt.Sprint(round),
		"raceName": name,
		"date":     date,
		"Circuit": map[string]any{
			"circuitName": circuit,
			"Location":    map[string]any{"lat": "43.7347", "long": "7.4206"},
		},
	}
	if results != nil {
		entry["Results"] = results
	}
	return entry
}

func resultEntry(driverID, code string, position int) map[string]any {
	return map[string]any{
		"grid":     fmt.Sprint(position),
		"position": fmt.Sprint(position),
		"points":   "10.0",
		"status":   "Finished",
		"Driver": map[string]any{
			"driverId":    driverID,
			"code":        code,
			"givenName":   "Test",
			"familyName":  driverID,
			"nationality": "British",
		},
		"Constructor": map[string]any{
			"constructorId": "mclaren",
			"name":          "McLaren",
			"nationality":   "British",
		},
	}
}

func writeEnvelope(w http.ResponseWriter, races []map[string]any) {
	payload := map[string]any{
		"MRData": map[string]any{
			"RaceTable": map[string]any{"Races": races},
		},
	}
	json.NewEncoder(w).Encode(payload)
}

// resultsServer serves a season index plus per-race result lists keyed by
// round
func resultsServer(t *testing.T, resultsByRound map[int][]map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/2023.json", func(w http.ResponseWriter, r *http.Request) {
		var races []map[string]any
		for round := 1; round <= len(resultsByRound); round++ {
			races = append(races, raceEntry(2023, round, fmt.Sprintf("Race %d", round), "2023-05-28", "Circuit A", nil))
		}
		writeEnvelope(w, races)
	})
	for round, results := range resultsByRound {
		round, results := round, results
		mux.HandleFunc(fmt.Sprintf("/2023/%d/results.json", round), func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, []map[string]any{
				raceEntry(2023, round, fmt.Sprintf("Race %d", round), "2023-05-28", "Circuit A", results),
			})
		})
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
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

func countResults(t *testing.T, db *database.DB) int {
	t.Helper()
	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	for _, s := range stats {
		if s.Table == "Results" {
			return s.Rows
		}
	}
	t.Fatal("Results table missing from stats")
	return 0
}

func nResults(n, offset int) []map[string]any {
	results := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, resultEntry(fmt.Sprintf("driver_%d", offset+i), fmt.Sprintf("D%02d", offset+i), i+1))
	}
	return results
}

// Ledger absent, ceiling 25, 40 eligible rows across 3 races: the run adds
// exactly 25 rows, the cursor lands on the partially processed race, and a
// second run with no upstream change is a no-op.
func TestRunBudgetAndRerun(t *testing.T) {
	server := resultsServer(t, map[int][]map[string]any{
		1: nResults(10, 0),
		2: nResults(10, 10),
		3: nResults(20, 20),
	})
	db := openTestDB(t)
	syncer := NewSyncer(testConfig(server.URL, 25), db, testLogger())

	added, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if added != 25 {
		t.Errorf("expected 25 rows added, got %d", added)
	}
	if got := countResults(t, db); got != 25 {
		t.Errorf("expected 25 stored results, got %d", got)
	}

	races, err := db.ListRaces(2023)
	if err != nil {
		t.Fatalf("ListRaces failed: %v", err)
	}
	if len(races) != 3 {
		t.Errorf("expected 3 races, got %d", len(races))
	}

	progress, err := db.GetProgress(Source)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress == nil || progress.Season != 2023 || progress.Round != 3 {
		t.Fatalf("expected cursor at (2023, 3), got %+v", progress)
	}

	// Second run with identical upstream data adds nothing
	added, err = syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if added != 0 {
		t.Errorf("expected 0 rows on re-run, got %d", added)
	}
	if got := countResults(t, db); got != 25 {
		t.Errorf("expected row count unchanged at 25, got %d", got)
	}

	after, err := db.GetProgress(Source)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if after.Season != progress.Season || after.Round != progress.Round {
		t.Errorf("expected cursor unchanged, got %+v", after)
	}
}

func TestRunCompleteIngestion(t *testing.T) {
	server := resultsServer(t, map[int][]map[string]any{
		1: nResults(3, 0),
		2: nResults(3, 3),
	})
	db := openTestDB(t)
	syncer := NewSyncer(testConfig(server.URL, 25), db, testLogger())

	added, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if added != 6 {
		t.Errorf("expected 6 rows added, got %d", added)
	}

	progress, err := db.GetProgress(Source)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress == nil || progress.Round != 2 {
		t.Fatalf("expected cursor at round 2, got %+v", progress)
	}
}

// A race whose detail fetch fails is treated as having no data; the ledger
// advances past it so later races are not blocked.
func TestRunAdvancesPastFailedRace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2023.json", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []map[string]any{
			raceEntry(2023, 1, "Race 1", "2023-03-05", "Circuit A", nil),
			raceEntry(2023, 2, "Race 2", "2023-03-19", "Circuit B", nil),
		})
	})
	mux.HandleFunc("/2023/1/results.json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream error", http.StatusInternalServerError)
	})
	mux.HandleFunc("/2023/2/results.json", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []map[string]any{
			raceEntry(2023, 2, "Race 2", "2023-03-19", "Circuit B", nResults(2, 0)),
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	db := openTestDB(t)
	syncer := NewSyncer(testConfig(server.URL, 25), db, testLogger())

	added, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 rows added, got %d", added)
	}

	progress, err := db.GetProgress(Source)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress == nil || progress.Round != 2 {
		t.Fatalf("expected cursor at round 2, got %+v", progress)
	}
}

// A result without a driver identifier cannot be normalized and is skipped
// without failing the run.
func TestRunSkipsMalformedResult(t *testing.T) {
	malformed := resultEntry("", "", 1)
	malformed["Driver"] = map[string]any{"driverId": ""}

	server := resultsServer(t, map[int][]map[string]any{
		1: {malformed, resultEntry("norris", "NOR", 2)},
	})
	db := openTestDB(t)
	syncer := NewSyncer(testConfig(server.URL, 25), db, testLogger())

	added, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if added != 1 {
		t.Errorf("expected 1 row added, got %d", added)
	}
}

func TestCircuitLocation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2023/7.json", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []map[string]any{
			raceEntry(2023, 7, "Monaco Grand Prix", "2023-05-28", "Monaco", nil),
		})
	})
	mux.HandleFunc("/2023/8.json", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, nil)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewClient(testConfig(server.URL, 25), testLogger())

	location, err := client.CircuitLocation(context.Background(), 2023, 7)
	if err != nil {
		t.Fatalf("CircuitLocation failed: %v", err)
	}
	if location == nil {
		t.Fatal("expected a location")
	}
	if location.Latitude != 43.7347 || location.Longitude != 7.4206 {
		t.Errorf("unexpected location %+v", location)
	}

	// No race entry means no location, not an error
	missing, err := client.CircuitLocation(context.Background(), 2023, 8)
	if err != nil {
		t.Fatalf("CircuitLocation failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil location, got %+v", missing)
	}
}
