package openmeteo

import (
	"context"
	"log/slog"
	"time"

	"f1-data-sync/internal/clean"
	"f1-data-sync/internal/config"
	"f1-data-sync/internal/database"
	"f1-data-sync/internal/ergast"
	"f1-data-sync/internal/metrics"
)

// Source is this adapter's name in the progress ledger
const Source = metrics.SourceOpenMeteo

// ObservationSource tags stored weather rows with their provider
const ObservationSource = "open-meteo"

// Window of days fetched around the race date, covering practice and
// qualifying days through the morning after the race
const (
	windowDaysBefore = 3
	windowDaysAfter  = 1
)

// Syncer ingests hourly weather observations incrementally, at most
// maxNewRows new Weather rows per run. Its units are races already stored
// by the other sources; races still missing a round or date are left for a
// later run.
type Syncer struct {
	db         *database.DB
	client     *Client
	locations  *ergast.Client
	seasons    []int
	maxNewRows int
	logger     *slog.Logger
}

// NewSyncer creates the Open-Meteo syncer
func NewSyncer(cfg *config.Config, db *database.DB, logger *slog.Logger) *Syncer {
	return &Syncer{
		db:         db,
		client:     NewClient(cfg, logger),
		locations:  ergast.NewClient(cfg, logger),
		seasons:    cfg.TargetSeasons,
		maxNewRows: cfg.MaxNewObservationsPerRun,
		logger:     logger,
	}
}

// Name returns the adapter's ledger source name
func (s *Syncer) Name() string { return Source }

// Run executes one bounded ingestion pass over the stored races of the
// target seasons, resuming from the ledger cursor.
func (s *Syncer) Run(ctx context.Context) (int, error) {
	progress, err := s.db.GetProgress(Source)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, season := range s.seasons {
		if progress != nil && season < progress.Season {
			continue
		}
		if added >= s.maxNewRows {
			break
		}

		races, err := s.db.ListRaces(season)
		if err != nil {
			return added, err
		}

		for _, race := range races {
			// Provisional races have no round to record in the cursor and
			// no authoritative date to window on
			if race.Round == nil {
				continue
			}
			round := int(*race.Round)
			if progress != nil && season == progress.Season && round <= progress.Round {
				continue
			}
			if added >= s.maxNewRows {
				break
			}
			if err := ctx.Err(); err != nil {
				return added, err
			}

			n, err := s.processRace(ctx, race, s.maxNewRows-added)
			if err != nil {
				return added + n, err
			}
			added += n

			if err := s.db.UpdateProgress(Source, season, round, nil); err != nil {
				return added, err
			}
			metrics.UnitsProcessedTotal.WithLabelValues(Source).Inc()

			s.logger.Info("processed race weather", "source", Source, "season", season, "round", round, "rows_added", added)
		}
	}

	return added, nil
}

// processRace fetches and stores the weather window around one race, adding
// at most budget new rows. Races that cannot be located or dated yet are
// skipped without error so the ledger still advances past them.
func (s *Syncer) processRace(ctx context.Context, race *database.Race, budget int) (int, error) {
	if race.Date == nil {
		s.logger.Warn("race has no date, skipping weather", "season", race.Season, "round", race.Round)
		return 0, nil
	}

	coords, err := s.resolveCoordinates(ctx, race)
	if err != nil {
		return 0, err
	}
	if coords == nil {
		s.logger.Warn("no coordinates for race circuit, skipping weather", "season", race.Season, "round", race.Round)
		return 0, nil
	}

	startDate, endDate, ok := weatherWindow(*race.Date)
	if !ok {
		s.logger.Warn("race has malformed date, skipping weather", "season", race.Season, "round", race.Round, "date", *race.Date)
		return 0, nil
	}

	observations, err := s.client.Observations(ctx, coords.Latitude, coords.Longitude, startDate, endDate)
	if err != nil {
		s.logger.Error("failed to fetch observations", "season", race.Season, "round", race.Round, "error", err)
		return 0, nil
	}

	added := 0
	for _, obs := range observations {
		if added >= budget {
			break
		}
		wasAdded, err := s.db.InsertWeatherObservation(database.ObservationRow{
			RaceID:          race.ID,
			Timestamp:       obs.Timestamp,
			TemperatureC:    obs.TemperatureC,
			WindSpeed:       obs.WindSpeed,
			PrecipitationMM: obs.PrecipitationMM,
			Source:          ObservationSource,
		})
		if err != nil {
			return added, err
		}
		if wasAdded {
			added++
			metrics.RowsAddedTotal.WithLabelValues(Source, metrics.FactObservation).Inc()
		}
	}
	return added, nil
}

// resolveCoordinates returns the race circuit's coordinates, backfilling
// them from race metadata the first time a circuit is seen. Returns nil
// when the circuit is unknown or its position cannot be determined.
func (s *Syncer) resolveCoordinates(ctx context.Context, race *database.Race) (*database.Coordinates, error) {
	if race.CircuitID == nil {
		return nil, nil
	}

	coords, err := s.db.GetCircuitCoordinates(*race.CircuitID)
	if err != nil {
		return nil, err
	}
	if coords != nil {
		return coords, nil
	}

	location, err := s.locations.CircuitLocation(ctx, race.Season, *race.Round)
	if err != nil {
		s.logger.Warn("failed to fetch circuit location", "season", race.Season, "round", *race.Round, "error", err)
		return nil, nil
	}
	if location == nil {
		return nil, nil
	}

	if err := s.db.UpdateCircuitCoordinates(*race.CircuitID, location.Latitude, location.Longitude); err != nil {
		return nil, err
	}
	return &database.Coordinates{Latitude: location.Latitude, Longitude: location.Longitude}, nil
}

// weatherWindow derives the inclusive YYYY-MM-DD fetch range around a
// YYYYMMDD race date
func weatherWindow(date int64) (string, string, bool) {
	raceDay, err := time.Parse("2006-01-02", clean.DateString(date))
	if err != nil {
		return "", "", false
	}
	start := raceDay.AddDate(0, 0, -windowDaysBefore).Format("2006-01-02")
	end := raceDay.AddDate(0, 0, windowDaysAfter).Format("2006-01-02")
	return start, end, true
}
