package database

import (
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"f1-data-sync/internal/metrics"
)

// DriverAttrs holds the descriptive attributes supplied alongside a driver's
// source identifier. All fields are optional; telemetry sources often know
// only the code.
type DriverAttrs struct {
	Code        *string
	Forename    *string
	Surname     *string
	Nationality *string
}

// GetOrCreateDriver returns the id of the driver with the given source
// identifier, creating the row (and its nationality dimension) on first
// sight. The whole call commits as one transaction.
func (db *DB) GetOrCreateDriver(apiDriverID string, attrs DriverAttrs) (int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetOrCreateDriver))
	defer timer.ObserveDuration()

	if apiDriverID == "" {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateDriver).Inc()
		return 0, fmt.Errorf("driver source identifier is required")
	}

	var id int64
	err := db.conn.QueryRow("SELECT driver_id FROM Drivers WHERE api_driver_id = ?", apiDriverID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateDriver).Inc()
		return 0, fmt.Errorf("failed to look up driver: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	nationalityID, err := getOrCreateString(tx, "Nationalities", "nationality_id", "nationality", attrs.Nationality)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO Drivers (api_driver_id, code, forename, surname, nationality_id)
		VALUES (?, ?, ?, ?, ?)
	`, apiDriverID, attrs.Code, attrs.Forename, attrs.Surname, nationalityID); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateDriver).Inc()
		return 0, fmt.Errorf("failed to create driver: %w", err)
	}

	if err := tx.QueryRow("SELECT driver_id FROM Drivers WHERE api_driver_id = ?", apiDriverID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to re-look up driver: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit driver: %w", err)
	}
	metrics.DimensionRowsCreatedTotal.WithLabelValues("Drivers").Inc()
	return id, nil
}

// GetDriverByCode returns the id of the driver with the given short code, or
// nil if none exists. Used by telemetry adapters to reconcile a driver seen
// under another source's identifier before minting a new one.
func (db *DB) GetDriverByCode(code string) (*int64, error) {
	if code == "" {
		return nil, nil
	}
	var id int64
	err := db.conn.QueryRow("SELECT driver_id FROM Drivers WHERE code = ? LIMIT 1", code).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up driver by code: %w", err)
	}
	return &id, nil
}

// GetOrCreateConstructor returns the id of the constructor with the given
// source identifier, creating the row on first sight
func (db *DB) GetOrCreateConstructor(apiConstructorID string, name, nationality *string) (int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetOrCreateConstructor))
	defer timer.ObserveDuration()

	if apiConstructorID == "" {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateConstructor).Inc()
		return 0, fmt.Errorf("constructor source identifier is required")
	}

	var id int64
	err := db.conn.QueryRow("SELECT constructor_id FROM Constructors WHERE api_constructor_id = ?", apiConstructorID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateConstructor).Inc()
		return 0, fmt.Errorf("failed to look up constructor: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	nationalityID, err := getOrCreateString(tx, "Nationalities", "nationality_id", "nationality", nationality)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO Constructors (api_constructor_id, name, nationality_id)
		VALUES (?, ?, ?)
	`, apiConstructorID, name, nationalityID); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateConstructor).Inc()
		return 0, fmt.Errorf("failed to create constructor: %w", err)
	}

	if err := tx.QueryRow("SELECT constructor_id FROM Constructors WHERE api_constructor_id = ?", apiConstructorID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to re-look up constructor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit constructor: %w", err)
	}
	metrics.DimensionRowsCreatedTotal.WithLabelValues("Constructors").Inc()
	return id, nil
}
