package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"f1-data-sync/internal/metrics"
)

// getOrCreateString implements the lookup-then-insert contract shared by all
// string dimensions. Values are trimmed here so whitespace variants of the
// same value share a row; nil or empty input yields a nil id with no error.
// When two callers race on the same new value the unique constraint makes
// the second insert a no-op and the re-lookup returns the winner's row.
func getOrCreateString(q querier, table, idColumn, valueColumn string, value *string) (*int64, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	value = &trimmed

	selectQuery := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", idColumn, table, valueColumn)

	var id int64
	err := q.QueryRow(selectQuery, *value).Scan(&id)
	if err == nil {
		return &id, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up %s: %w", table, err)
	}

	insertQuery := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (?)", table, valueColumn)
	result, err := q.Exec(insertQuery, *value)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		metrics.DimensionRowsCreatedTotal.WithLabelValues(table).Inc()
	}

	// Re-select rather than trusting LastInsertId: a concurrent creator may
	// have won, in which case our insert was ignored
	err = q.QueryRow(selectQuery, *value).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to re-look up %s after insert: %w", table, err)
	}
	return &id, nil
}

// GetOrCreateNationality returns the id for a nationality string, creating
// the row on first sight. Nil input yields a nil id.
func (db *DB) GetOrCreateNationality(value *string) (*int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetOrCreateDimension))
	defer timer.ObserveDuration()
	return getOrCreateString(db.conn, "Nationalities", "nationality_id", "nationality", value)
}

// GetOrCreateCircuit returns the id for a circuit name, creating the row on
// first sight
func (db *DB) GetOrCreateCircuit(value *string) (*int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetOrCreateDimension))
	defer timer.ObserveDuration()
	return getOrCreateString(db.conn, "Circuits", "circuit_id", "circuit_name", value)
}

// GetOrCreateStatus returns the id for a result status string
func (db *DB) GetOrCreateStatus(value *string) (*int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetOrCreateDimension))
	defer timer.ObserveDuration()
	return getOrCreateString(db.conn, "Statuses", "status_id", "status", value)
}

// GetOrCreateSessionType returns the id for a session type code
func (db *DB) GetOrCreateSessionType(value *string) (*int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetOrCreateDimension))
	defer timer.ObserveDuration()
	return getOrCreateString(db.conn, "SessionTypes", "session_type_id", "session_type", value)
}

// GetOrCreateCompound returns the id for a tyre compound name
func (db *DB) GetOrCreateCompound(value *string) (*int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetOrCreateDimension))
	defer timer.ObserveDuration()
	return getOrCreateString(db.conn, "Compounds", "compound_id", "compound", value)
}

// GetOrCreateRaceName returns the id for a race name
func (db *DB) GetOrCreateRaceName(value *string) (*int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetOrCreateDimension))
	defer timer.ObserveDuration()
	return getOrCreateString(db.conn, "RaceNames", "race_name_id", "race_name", value)
}

// Coordinates is a circuit's geographic location
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// GetCircuitCoordinates returns a circuit's coordinates, or nil if they have
// not been backfilled yet
func (db *DB) GetCircuitCoordinates(circuitID int64) (*Coordinates, error) {
	var lat, lon sql.NullFloat64
	err := db.conn.QueryRow(
		"SELECT latitude, longitude FROM Circuits WHERE circuit_id = ?", circuitID,
	).Scan(&lat, &lon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get circuit coordinates: %w", err)
	}
	if !lat.Valid || !lon.Valid {
		return nil, nil
	}
	return &Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}, nil
}

// UpdateCircuitCoordinates backfills a circuit's coordinates. This is the
// only place a dimension row is mutated after creation.
func (db *DB) UpdateCircuitCoordinates(circuitID int64, latitude, longitude float64) error {
	result, err := db.conn.Exec(
		"UPDATE Circuits SET latitude = ?, longitude = ? WHERE circuit_id = ?",
		latitude, longitude, circuitID,
	)
	if err != nil {
		return fmt.Errorf("failed to update circuit coordinates: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("circuit %d not found", circuitID)
	}
	return nil
}
