package fastf1

import (
	"context"
	"fmt"
	"log/slog"

	"f1-data-sync/internal/clean"
	"f1-data-sync/internal/config"
	"f1-data-sync/internal/database"
	"f1-data-sync/internal/metrics"
)

// Source is this adapter's name in the progress ledger
const Source = metrics.SourceFastF1

// Session types ingested per event
var sessionTypes = []string{"R", "Q"}

// Syncer ingests lap telemetry incrementally, at most maxNewRows new
// LapTimes rows per run. Events have no round number upstream, so the
// ledger cursor stores the last processed event name.
type Syncer struct {
	db         *database.DB
	client     *Client
	seasons    []int
	maxNewRows int
	logger     *slog.Logger
}

// NewSyncer creates the FastF1 syncer
func NewSyncer(cfg *config.Config, db *database.DB, logger *slog.Logger) *Syncer {
	return &Syncer{
		db:         db,
		client:     NewClient(cfg, logger),
		seasons:    cfg.TargetSeasons,
		maxNewRows: cfg.MaxNewLapsPerRun,
		logger:     logger,
	}
}

// Name returns the adapter's ledger source name
func (s *Syncer) Name() string { return Source }

// Run executes one bounded ingestion pass over the target seasons' events
// in schedule order, resuming after the event named by the ledger cursor.
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

		events, err := s.client.Schedule(ctx, season)
		if err != nil {
			s.logger.Error("failed to fetch schedule", "season", season, "error", err)
			continue
		}

		start := 0
		if progress != nil && season == progress.Season && progress.Label != nil {
			for i, event := range events {
				if event.Name == *progress.Label {
					start = i + 1
					break
				}
			}
		}

		for _, event := range events[start:] {
			if added >= s.maxNewRows {
				break
			}
			if err := ctx.Err(); err != nil {
				return added, err
			}

			n, err := s.processEvent(ctx, season, event, s.maxNewRows-added)
			if err != nil {
				return added + n, err
			}
			added += n

			eventName := event.Name
			if err := s.db.UpdateProgress(Source, season, 0, &eventName); err != nil {
				return added, err
			}
			metrics.UnitsProcessedTotal.WithLabelValues(Source).Inc()

			s.logger.Info("processed event", "source", Source, "season", season, "event", event.Name, "rows_added", added)
		}
	}

	return added, nil
}

// processEvent ingests one event's race and qualifying sessions, adding at
// most budget new lap rows
func (s *Syncer) processEvent(ctx context.Context, season int, event Event, budget int) (int, error) {
	raceID, err := s.resolveRace(season, event)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, sessionType := range sessionTypes {
		if added >= budget {
			break
		}

		detail, err := s.client.Session(ctx, season, event.Name, sessionType)
		if err != nil {
			s.logger.Warn("failed to fetch session", "season", season, "event", event.Name, "type", sessionType, "error", err)
			continue
		}

		n, err := s.storeSession(raceID, sessionType, detail, budget-added)
		if err != nil {
			return added + n, err
		}
		added += n
	}
	return added, nil
}

// resolveRace matches an event to an existing race by name, creating a
// provisional race with no round number when nothing matches yet
func (s *Syncer) resolveRace(season int, event Event) (int64, error) {
	for _, name := range []string{event.OfficialName, event.Name} {
		if clean.String(name) == nil {
			continue
		}
		raceID, err := s.db.FindRaceByName(season, name)
		if err != nil {
			return 0, err
		}
		if raceID != nil {
			return *raceID, nil
		}
	}

	raceName := event.OfficialName
	if clean.String(raceName) == nil {
		raceName = event.Name
	}
	return s.db.GetOrCreateRace(season, nil, database.RaceAttrs{
		RaceName: clean.String(raceName),
		Date:     clean.Date(event.Date),
	})
}

// storeSession stores one session's laps, adding at most budget new rows
func (s *Syncer) storeSession(raceID int64, sessionType string, detail *SessionDetail, budget int) (int, error) {
	sessionID, err := s.db.GetOrCreateSession(raceID, sessionType, averageWeather(detail.Weather))
	if err != nil {
		return 0, err
	}

	driverIDs := make(map[string]int64)
	added := 0
	for _, lap := range detail.Laps {
		if added >= budget {
			break
		}

		driverID, ok := driverIDs[lap.DriverCode]
		if !ok {
			driverID, err = s.ensureDriver(lap.DriverCode)
			if err != nil {
				return added, err
			}
			driverIDs[lap.DriverCode] = driverID
		}

		compoundID, err := s.db.GetOrCreateCompound(lap.Compound)
		if err != nil {
			return added, err
		}

		wasAdded, err := s.db.InsertLap(database.LapRow{
			SessionID:  sessionID,
			DriverID:   driverID,
			LapNumber:  lap.LapNumber,
			LapTimeMS:  &lap.LapTimeMS,
			Sector1MS:  lap.Sector1MS,
			Sector2MS:  lap.Sector2MS,
			Sector3MS:  lap.Sector3MS,
			CompoundID: compoundID,
			FreshTyre:  lap.FreshTyre,
		})
		if err != nil {
			return added, err
		}
		if wasAdded {
			added++
			metrics.RowsAddedTotal.WithLabelValues(Source, metrics.FactLap).Inc()
		}
	}
	return added, nil
}

// ensureDriver resolves a timing-sheet short code to a stored driver id. An
// existing driver with the same code is reused even if another source
// created it; only when no code match exists is a new source-prefixed
// identifier minted. Two providers using the same code for different people
// would wrongly merge here; that collision is an accepted limitation.
func (s *Syncer) ensureDriver(code string) (int64, error) {
	existing, err := s.db.GetDriverByCode(code)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return *existing, nil
	}

	codePtr := code
	return s.db.GetOrCreateDriver(fmt.Sprintf("fastf1_%s", code), database.DriverAttrs{
		Code: &codePtr,
	})
}

// averageWeather reduces a session's raw weather series to the mean values
// stored on the session row
func averageWeather(samples []WeatherSample) database.SessionWeather {
	var weather database.SessionWeather

	var trackTemps, humidities, windSpeeds []float64
	for _, sample := range samples {
		if sample.TrackTemp != nil {
			trackTemps = append(trackTemps, *sample.TrackTemp)
		}
		if sample.Humidity != nil {
			humidities = append(humidities, *sample.Humidity)
		}
		if sample.WindSpeed != nil {
			windSpeeds = append(windSpeeds, *sample.WindSpeed)
		}
	}

	weather.TrackTemp = mean(trackTemps)
	weather.Humidity = mean(humidities)
	weather.WindSpeed = mean(windSpeeds)
	return weather
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}
