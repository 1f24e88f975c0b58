package database

import (
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"f1-data-sync/internal/metrics"
)

// Progress is a source's ledger cursor: the last fully processed unit of
// work in that source's canonical ordering
type Progress struct {
	Source string
	Season int
	Round  int
	Label  *string // provider-specific resume key, e.g. last event name
}

// GetProgress returns the ledger cursor for a source, or nil if the source
// has never completed a unit (start from the beginning)
func (db *DB) GetProgress(source string) (*Progress, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetProgress))
	defer timer.ObserveDuration()

	p := Progress{Source: source}
	err := db.conn.QueryRow(
		"SELECT last_season, last_round, last_event FROM LoadProgress WHERE source = ?", source,
	).Scan(&p.Season, &p.Round, &p.Label)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetProgress).Inc()
		return nil, fmt.Errorf("failed to get progress for %s: %w", source, err)
	}
	return &p, nil
}

// UpdateProgress overwrites a source's ledger cursor. The upsert refuses to
// move the (season, round) cursor backwards, keeping it monotonically
// non-decreasing regardless of caller ordering.
func (db *DB) UpdateProgress(source string, season, round int, label *string) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpdateProgress))
	defer timer.ObserveDuration()

	_, err := db.conn.Exec(`
		INSERT INTO LoadProgress (source, last_season, last_round, last_event)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			last_season = excluded.last_season,
			last_round = excluded.last_round,
			last_event = excluded.last_event
		WHERE excluded.last_season > LoadProgress.last_season
		   OR (excluded.last_season = LoadProgress.last_season AND excluded.last_round >= LoadProgress.last_round)
	`, source, season, round, label)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpdateProgress).Inc()
		return fmt.Errorf("failed to update progress for %s: %w", source, err)
	}

	metrics.LedgerSeason.WithLabelValues(source).Set(float64(season))
	metrics.LedgerRound.WithLabelValues(source).Set(float64(round))
	return nil
}

// ListProgress returns the ledger cursors of every source that has one
func (db *DB) ListProgress() ([]*Progress, error) {
	rows, err := db.conn.Query(
		"SELECT source, last_season, last_round, last_event FROM LoadProgress ORDER BY source",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var all []*Progress
	for rows.Next() {
		var p Progress
		if err := rows.Scan(&p.Source, &p.Season, &p.Round, &p.Label); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		all = append(all, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress: %w", err)
	}

	return all, nil
}
