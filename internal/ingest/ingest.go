// Package ingest runs the source adapters in sequence. Sources that feed
// each other run in dependency order: race results establish authoritative
// race rows before telemetry attaches to them, and weather runs last since
// it windows on stored race dates.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"f1-data-sync/internal/config"
	"f1-data-sync/internal/database"
	"f1-data-sync/internal/ergast"
	"f1-data-sync/internal/fastf1"
	"f1-data-sync/internal/metrics"
	"f1-data-sync/internal/openf1"
	"f1-data-sync/internal/openmeteo"
)

// Adapter is one incremental ingestion source
type Adapter interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// SourceResult is one adapter's outcome within a run
type SourceResult struct {
	Source    string
	RowsAdded int
	Err       error
}

// Summary is the outcome of one full ingestion pass
type Summary struct {
	Results []SourceResult
	Elapsed time.Duration
}

// RowsAdded returns the total new fact rows across all sources
func (s *Summary) RowsAdded() int {
	total := 0
	for _, r := range s.Results {
		total += r.RowsAdded
	}
	return total
}

// Errors returns the failures recorded during the run
func (s *Summary) Errors() []error {
	var errs []error
	for _, r := range s.Results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Source, r.Err))
		}
	}
	return errs
}

// Runner executes all adapters sequentially
type Runner struct {
	db       *database.DB
	adapters []Adapter
	logger   *slog.Logger
}

// NewRunner creates a runner with the standard adapter order
func NewRunner(cfg *config.Config, db *database.DB, logger *slog.Logger) *Runner {
	return &Runner{
		db: db,
		adapters: []Adapter{
			ergast.NewSyncer(cfg, db, logger),
			openf1.NewSyncer(cfg, db, logger),
			fastf1.NewSyncer(cfg, db, logger),
			openmeteo.NewSyncer(cfg, db, logger),
		},
		logger: logger,
	}
}

// RunOnce executes one bounded pass of every adapter. A failing adapter is
// recorded in the summary and the remaining adapters still run; each source
// resumes from its own ledger cursor next time.
func (r *Runner) RunOnce(ctx context.Context) *Summary {
	start := time.Now()
	summary := &Summary{}

	for _, adapter := range r.adapters {
		source := adapter.Name()
		r.logger.Info("starting source", "source", source)

		metrics.RunsTotal.WithLabelValues(source).Inc()
		sourceStart := time.Now()
		added, err := adapter.Run(ctx)
		metrics.RunDuration.WithLabelValues(source).Observe(time.Since(sourceStart).Seconds())

		if err != nil {
			r.logger.Error("source failed", "source", source, "rows_added", added, "error", err)
		} else {
			r.logger.Info("source finished", "source", source, "rows_added", added)
		}
		summary.Results = append(summary.Results, SourceResult{Source: source, RowsAdded: added, Err: err})

		if ctx.Err() != nil {
			break
		}
	}

	summary.Elapsed = time.Since(start)
	r.logStats()
	return summary
}

// logStats logs the stored row counts after a run
func (r *Runner) logStats() {
	stats, err := r.db.Stats()
	if err != nil {
		r.logger.Warn("failed to collect table stats", "error", err)
		return
	}
	attrs := make([]any, 0, len(stats)*2)
	for _, s := range stats {
		attrs = append(attrs, s.Table, s.Rows)
	}
	r.logger.Info("table stats", attrs...)
}
