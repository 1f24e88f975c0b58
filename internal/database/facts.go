package database

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"f1-data-sync/internal/metrics"
)

// ResultRow is one race result fact, unique on (race, driver)
type ResultRow struct {
	RaceID        int64
	DriverID      int64
	ConstructorID int64
	Grid          *int64
	Position      *int64 // nil means did-not-finish or unclassified
	Points        *float64
	StatusID      *int64
}

// InsertResult inserts a result row if absent. Returns whether a new row was
// actually added; a duplicate is a no-op, not an error.
func (db *DB) InsertResult(r ResultRow) (bool, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpInsertResult))
	defer timer.ObserveDuration()

	result, err := db.conn.Exec(`
		INSERT OR IGNORE INTO Results (race_id, driver_id, constructor_id, grid, position, points, status_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.RaceID, r.DriverID, r.ConstructorID, r.Grid, r.Position, r.Points, r.StatusID)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpInsertResult).Inc()
		return false, fmt.Errorf("failed to insert result: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// LapRow is one lap time fact, unique on (session, driver, lap number)
type LapRow struct {
	SessionID  int64
	DriverID   int64
	LapNumber  int64
	LapTimeMS  *int64
	Sector1MS  *int64
	Sector2MS  *int64
	Sector3MS  *int64
	CompoundID *int64
	FreshTyre  bool
}

// InsertLap inserts a lap row if absent. Returns whether a new row was
// actually added.
func (db *DB) InsertLap(l LapRow) (bool, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpInsertLap))
	defer timer.ObserveDuration()

	result, err := db.conn.Exec(`
		INSERT OR IGNORE INTO LapTimes (session_id, driver_id, lap_number, lap_time_ms, sector1_ms, sector2_ms, sector3_ms, compound_id, fresh_tyre)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.SessionID, l.DriverID, l.LapNumber, l.LapTimeMS, l.Sector1MS, l.Sector2MS, l.Sector3MS, l.CompoundID, l.FreshTyre)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpInsertLap).Inc()
		return false, fmt.Errorf("failed to insert lap: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ObservationRow is one raw weather observation fact, unique on (race,
// timestamp, source)
type ObservationRow struct {
	RaceID          int64
	Timestamp       string
	TemperatureC    *float64
	WindSpeed       *float64
	PrecipitationMM *float64
	Source          string
}

// InsertWeatherObservation inserts a weather observation if absent. Returns
// whether a new row was actually added.
func (db *DB) InsertWeatherObservation(o ObservationRow) (bool, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpInsertObservation))
	defer timer.ObserveDuration()

	if o.Timestamp == "" || o.Source == "" {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpInsertObservation).Inc()
		return false, fmt.Errorf("weather observation requires a timestamp and source")
	}

	result, err := db.conn.Exec(`
		INSERT OR IGNORE INTO Weather (race_id, timestamp, temperature_c, wind_speed, precipitation_mm, source)
		VALUES (?, ?, ?, ?, ?, ?)
	`, o.RaceID, o.Timestamp, o.TemperatureC, o.WindSpeed, o.PrecipitationMM, o.Source)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpInsertObservation).Inc()
		return false, fmt.Errorf("failed to insert weather observation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// TableCount is a row count for one table
type TableCount struct {
	Table string
	Rows  int
}

var statTables = []string{
	"Drivers", "Constructors", "Races", "Sessions",
	"Results", "LapTimes", "Weather",
}

// Stats returns row counts for the main tables
func (db *DB) Stats() ([]TableCount, error) {
	counts := make([]TableCount, 0, len(statTables))
	for _, table := range statTables {
		var n int
		if err := db.conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts = append(counts, TableCount{Table: table, Rows: n})
	}
	return counts, nil
}
