package database

import (
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"f1-data-sync/internal/metrics"
)

// SessionWeather holds the aggregate weather summary stored on a session,
// each field the mean across the session's raw samples
type SessionWeather struct {
	TrackTemp *float64
	Humidity  *float64
	WindSpeed *float64
}

// GetOrCreateSession returns the id of the session identified by (race,
// session type), creating it with its weather summary on first sight. The
// summary is fixed at creation; a later caller with different aggregates
// gets the existing row unchanged.
func (db *DB) GetOrCreateSession(raceID int64, sessionType string, weather SessionWeather) (int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetOrCreateSession))
	defer timer.ObserveDuration()

	if sessionType == "" {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateSession).Inc()
		return 0, fmt.Errorf("session type is required")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessionTypeID, err := getOrCreateString(tx, "SessionTypes", "session_type_id", "session_type", &sessionType)
	if err != nil {
		return 0, err
	}
	if sessionTypeID == nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateSession).Inc()
		return 0, fmt.Errorf("session type is required")
	}

	var id int64
	err = tx.QueryRow(
		"SELECT session_id FROM Sessions WHERE race_id = ? AND session_type_id = ?", raceID, *sessionTypeID,
	).Scan(&id)
	if err == nil {
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("failed to commit session lookup: %w", err)
		}
		return id, nil
	}
	if err != sql.ErrNoRows {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateSession).Inc()
		return 0, fmt.Errorf("failed to look up session: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO Sessions (race_id, session_type_id, track_temp, humidity, wind_speed)
		VALUES (?, ?, ?, ?, ?)
	`, raceID, *sessionTypeID, weather.TrackTemp, weather.Humidity, weather.WindSpeed); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateSession).Inc()
		return 0, fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.QueryRow(
		"SELECT session_id FROM Sessions WHERE race_id = ? AND session_type_id = ?", raceID, *sessionTypeID,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to re-look up session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session: %w", err)
	}
	metrics.DimensionRowsCreatedTotal.WithLabelValues("Sessions").Inc()
	return id, nil
}
