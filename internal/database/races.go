package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"f1-data-sync/internal/metrics"
)

// RaceAttrs holds the descriptive attributes supplied when a race is first
// created. Name and circuit arrive as raw strings and are interned through
// their dimension tables inside the same transaction.
type RaceAttrs struct {
	RaceName    *string
	Date        *int64 // YYYYMMDD
	CircuitName *string
}

// Race is a stored race row
type Race struct {
	ID         int64
	Season     int
	Round      *int64 // nil while only a telemetry source has seen the race
	RaceNameID *int64
	Date       *int64
	CircuitID  *int64
}

// GetOrCreateRace returns the id of the race identified by (season, round),
// creating it on first sight. A nil round creates a provisional race looked
// up by name instead; callers should try FindRaceByName first so an
// authoritative row from the results source is reused when one exists.
func (db *DB) GetOrCreateRace(season int, round *int64, attrs RaceAttrs) (int64, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetOrCreateRace))
	defer timer.ObserveDuration()

	if round != nil {
		var id int64
		err := db.conn.QueryRow(
			"SELECT race_id FROM Races WHERE season = ? AND round = ?", season, *round,
		).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateRace).Inc()
			return 0, fmt.Errorf("failed to look up race: %w", err)
		}
	} else {
		// Provisional creation path: the round is unknown, so the race can
		// only be identified by its name
		if attrs.RaceName == nil {
			metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateRace).Inc()
			return 0, fmt.Errorf("race with unknown round requires a name")
		}
		existing, err := db.FindRaceByName(season, *attrs.RaceName)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return *existing, nil
		}
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	raceNameID, err := getOrCreateString(tx, "RaceNames", "race_name_id", "race_name", attrs.RaceName)
	if err != nil {
		return 0, err
	}
	circuitID, err := getOrCreateString(tx, "Circuits", "circuit_id", "circuit_name", attrs.CircuitName)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO Races (season, round, race_name_id, date, circuit_id)
		VALUES (?, ?, ?, ?, ?)
	`, season, round, raceNameID, attrs.Date, circuitID); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetOrCreateRace).Inc()
		return 0, fmt.Errorf("failed to create race: %w", err)
	}

	var id int64
	if round != nil {
		err = tx.QueryRow("SELECT race_id FROM Races WHERE season = ? AND round = ?", season, *round).Scan(&id)
	} else {
		err = tx.QueryRow("SELECT race_id FROM Races WHERE season = ? AND race_name_id = ? AND round IS NULL", season, raceNameID).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to re-look up race: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit race: %w", err)
	}
	metrics.DimensionRowsCreatedTotal.WithLabelValues("Races").Inc()
	return id, nil
}

// FindRaceByName returns the id of the race with the given name in a season,
// or nil if none exists. Telemetry sources expose events by name rather than
// round number, so this is their match against results-provider races.
func (db *DB) FindRaceByName(season int, raceName string) (*int64, error) {
	raceName = strings.TrimSpace(raceName)
	if raceName == "" {
		return nil, nil
	}
	var id int64
	err := db.conn.QueryRow(`
		SELECT r.race_id FROM Races r
		JOIN RaceNames n ON n.race_name_id = r.race_name_id
		WHERE r.season = ? AND n.race_name = ?
		LIMIT 1
	`, season, raceName).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up race by name: %w", err)
	}
	return &id, nil
}

// ListRaces returns the races of a season ordered by round (provisional
// races last)
func (db *DB) ListRaces(season int) ([]*Race, error) {
	rows, err := db.conn.Query(`
		SELECT race_id, season, round, race_name_id, date, circuit_id
		FROM Races
		WHERE season = ?
		ORDER BY round IS NULL, round
	`, season)
	if err != nil {
		return nil, fmt.Errorf("failed to list races: %w", err)
	}
	defer rows.Close()

	var races []*Race
	for rows.Next() {
		var r Race
		if err := rows.Scan(&r.ID, &r.Season, &r.Round, &r.RaceNameID, &r.Date, &r.CircuitID); err != nil {
			return nil, fmt.Errorf("failed to scan race: %w", err)
		}
		races = append(races, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating races: %w", err)
	}

	return races, nil
}
