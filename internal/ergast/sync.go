package ergast

import (
	"context"
	"log/slog"

	"f1-data-sync/internal/config"
	"f1-data-sync/internal/database"
	"f1-data-sync/internal/metrics"
)

// Source is this adapter's name in the progress ledger
const Source = metrics.SourceErgast

// Syncer ingests race results incrementally, at most maxNewRows new Result
// rows per run
type Syncer struct {
	db         *database.DB
	client     *Client
	seasons    []int
	maxNewRows int
	logger     *slog.Logger
}

// NewSyncer creates the results-provider syncer
func NewSyncer(cfg *config.Config, db *database.DB, logger *slog.Logger) *Syncer {
	return &Syncer{
		db:         db,
		client:     NewClient(cfg, logger),
		seasons:    cfg.TargetSeasons,
		maxNewRows: cfg.MaxNewResultsPerRun,
		logger:     logger,
	}
}

// Name returns the adapter's ledger source name
func (s *Syncer) Name() string { return Source }

// Run executes one bounded ingestion pass: resume from the ledger cursor,
// walk races in (season, round) order, insert new Result rows until the
// per-run ceiling is reached, advancing the cursor past each race as its
// processing ends.
func (s *Syncer) Run(ctx context.Context) (int, error) {
	progress, err := s.db.GetProgress(Source)
	if err != nil {
		return 0, err
	}

	races := s.client.RaceIndex(ctx, s.seasons)

	added := 0
	for _, race := range races {
		if progress != nil {
			if race.Season < progress.Season ||
				(race.Season == progress.Season && race.Round <= int64(progress.Round)) {
				continue
			}
		}
		if added >= s.maxNewRows {
			break
		}
		if err := ctx.Err(); err != nil {
			return added, err
		}

		round := race.Round
		raceID, err := s.db.GetOrCreateRace(race.Season, &round, database.RaceAttrs{
			RaceName:    race.RaceName,
			Date:        race.Date,
			CircuitName: race.CircuitName,
		})
		if err != nil {
			return added, err
		}

		results, err := s.client.RaceResults(ctx, race.Season, race.Round)
		if err != nil {
			// Transport failure on one race's detail is treated as "no data
			// for this race"; the ledger still advances so the race does not
			// stall future progress
			s.logger.Error("failed to fetch race results", "season", race.Season, "round", race.Round, "error", err)
			results = nil
		}

		for _, result := range results {
			if added >= s.maxNewRows {
				break
			}

			wasAdded, err := s.storeResult(raceID, result)
			if err != nil {
				return added, err
			}
			if wasAdded {
				added++
				metrics.RowsAddedTotal.WithLabelValues(Source, metrics.FactResult).Inc()
			}
		}

		if err := s.db.UpdateProgress(Source, race.Season, int(race.Round), nil); err != nil {
			return added, err
		}
		metrics.UnitsProcessedTotal.WithLabelValues(Source).Inc()

		s.logger.Info("processed race", "source", Source, "season", race.Season, "round", race.Round, "rows_added", added)
	}

	return added, nil
}

// storeResult maps one parsed result through the normalization store and
// inserts the fact row. Records without driver or constructor identifiers
// cannot be normalized and are skipped.
func (s *Syncer) storeResult(raceID int64, result RaceResult) (bool, error) {
	if result.DriverID == nil || result.ConstructorID == nil {
		s.logger.Warn("skipping result without driver or constructor id", "race_id", raceID)
		metrics.RecordsSkippedTotal.WithLabelValues(Source).Inc()
		return false, nil
	}

	driverID, err := s.db.GetOrCreateDriver(*result.DriverID, database.DriverAttrs{
		Code:        result.DriverCode,
		Forename:    result.Forename,
		Surname:     result.Surname,
		Nationality: result.DriverNationality,
	})
	if err != nil {
		return false, err
	}

	constructorID, err := s.db.GetOrCreateConstructor(*result.ConstructorID, result.ConstructorName, result.ConstructorNationality)
	if err != nil {
		return false, err
	}

	statusID, err := s.db.GetOrCreateStatus(result.Status)
	if err != nil {
		return false, err
	}

	return s.db.InsertResult(database.ResultRow{
		RaceID:        raceID,
		DriverID:      driverID,
		ConstructorID: constructorID,
		Grid:          result.Grid,
		Position:      result.Position,
		Points:        result.Points,
		StatusID:      statusID,
	})
}
