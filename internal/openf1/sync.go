package openf1

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
const Source = metrics.SourceOpenF1

// Syncer ingests lap telemetry incrementally, at most maxNewRows new
// LapTimes rows per run
type Syncer struct {
	db         *database.DB
	client     *Client
	seasons    []int
	maxNewRows int
	logger     *slog.Logger
}

// NewSyncer creates the OpenF1 syncer
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

// Run executes one bounded ingestion pass over the target seasons' meetings
// in chronological order, resuming from the ledger cursor.
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

		meetings, err := s.client.Meetings(ctx, season)
		if err != nil {
			s.logger.Error("failed to fetch meetings", "season", season, "error", err)
			continue
		}

		for i, meeting := range meetings {
			round := i + 1
			if progress != nil && season == progress.Season && round <= progress.Round {
				continue
			}
			if added >= s.maxNewRows {
				break
			}
			if err := ctx.Err(); err != nil {
				return added, err
			}

			n, err := s.processMeeting(ctx, season, round, meeting, s.maxNewRows-added)
			if err != nil {
				return added + n, err
			}
			added += n

			meetingName := clean.String(meeting.MeetingName)
			if err := s.db.UpdateProgress(Source, season, round, meetingName); err != nil {
				return added, err
			}
			metrics.UnitsProcessedTotal.WithLabelValues(Source).Inc()

			s.logger.Info("processed meeting", "source", Source, "season", season, "round", round, "meeting", meeting.MeetingName, "rows_added", added)
		}
	}

	return added, nil
}

// processMeeting ingests one meeting's race and qualifying sessions, adding
// at most budget new lap rows
func (s *Syncer) processMeeting(ctx context.Context, season, round int, meeting Meeting, budget int) (int, error) {
	raceRound := int64(round)
	raceID, err := s.db.GetOrCreateRace(season, &raceRound, database.RaceAttrs{
		RaceName:    clean.String(meeting.MeetingName),
		CircuitName: clean.String(meeting.CircuitShortName),
	})
	if err != nil {
		return 0, err
	}

	sessions, err := s.client.Sessions(ctx, meeting.MeetingKey)
	if err != nil {
		s.logger.Error("failed to fetch sessions", "meeting_key", meeting.MeetingKey, "error", err)
		return 0, nil
	}

	added := 0
	for _, session := range sessions {
		if added >= budget {
			break
		}
		n, err := s.processSession(ctx, raceID, session, budget-added)
		if err != nil {
			return added + n, err
		}
		added += n
	}
	return added, nil
}

// processSession ingests one session's laps
func (s *Syncer) processSession(ctx context.Context, raceID int64, session SessionInfo, budget int) (int, error) {
	samples, err := s.client.Weather(ctx, session.SessionKey)
	if err != nil {
		s.logger.Warn("failed to fetch session weather", "session_key", session.SessionKey, "error", err)
		samples = nil
	}

	sessionID, err := s.db.GetOrCreateSession(raceID, mapSessionType(session.SessionName), averageWeather(samples))
	if err != nil {
		return 0, err
	}

	drivers, err := s.client.Drivers(ctx, session.SessionKey)
	if err != nil {
		s.logger.Error("failed to fetch drivers", "session_key", session.SessionKey, "error", err)
		return 0, nil
	}
	laps, err := s.client.Laps(ctx, session.SessionKey)
	if err != nil {
		s.logger.Error("failed to fetch laps", "session_key", session.SessionKey, "error", err)
		return 0, nil
	}
	stints, err := s.client.Stints(ctx, session.SessionKey)
	if err != nil {
		s.logger.Warn("failed to fetch stints", "session_key", session.SessionKey, "error", err)
		stints = nil
	}

	driverIDs := make(map[int64]int64, len(drivers))
	for _, driver := range drivers {
		id, err := s.ensureDriver(driver)
		if err != nil {
			return 0, err
		}
		driverIDs[driver.DriverNumber] = id
	}

	stintsByDriver := make(map[int64][]Stint)
	for _, stint := range stints {
		stintsByDriver[stint.DriverNumber] = append(stintsByDriver[stint.DriverNumber], stint)
	}

	added := 0
	for _, lap := range laps {
		if added >= budget {
			break
		}

		driverID, ok := driverIDs[lap.DriverNumber]
		if !ok {
			metrics.RecordsSkippedTotal.WithLabelValues(Source).Inc()
			continue
		}

		driverStints := stintsByDriver[lap.DriverNumber]
		compoundID, err := s.db.GetOrCreateCompound(compoundForLap(driverStints, lap.LapNumber))
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
			FreshTyre:  isFreshTyre(driverStints, lap.LapNumber),
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

// ensureDriver resolves a session driver to a stored driver id. An existing
// driver with the same short code is reused even if another source created
// it; only when no code match exists is a new source-prefixed identifier
// minted. Two providers using the same code for different people would
// wrongly merge here; that collision is an accepted limitation.
func (s *Syncer) ensureDriver(driver DriverInfo) (int64, error) {
	code := clean.String(driver.NameAcronym)
	if code != nil {
		existing, err := s.db.GetDriverByCode(*code)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return *existing, nil
		}
	}

	return s.db.GetOrCreateDriver(fmt.Sprintf("openf1_%d", driver.DriverNumber), database.DriverAttrs{
		Code:        code,
		Forename:    clean.String(driver.FirstName),
		Surname:     clean.String(driver.LastName),
		Nationality: clean.String(driver.CountryCode),
	})
}

// mapSessionType maps provider session names to stored session type codes
func mapSessionType(sessionName string) string {
	switch sessionName {
	case "Race":
		return "R"
	case "Qualifying":
		return "Q"
	default:
		return sessionName
	}
}

// compoundForLap returns the tyre compound of the stint containing the lap
func compoundForLap(stints []Stint, lapNumber int64) *string {
	for _, stint := range stints {
		if stint.LapStart != nil && stint.LapEnd != nil &&
			*stint.LapStart <= lapNumber && lapNumber <= *stint.LapEnd {
			return clean.String(stint.Compound)
		}
	}
	return nil
}

// isFreshTyre reports whether the stint containing the lap started on a
// fresh tyre
func isFreshTyre(stints []Stint, lapNumber int64) bool {
	for _, stint := range stints {
		if stint.LapStart != nil && stint.LapEnd != nil &&
			*stint.LapStart <= lapNumber && lapNumber <= *stint.LapEnd {
			return stint.TyreAgeAtStart != nil && *stint.TyreAgeAtStart == 0
		}
	}
	return false
}

// averageWeather reduces a session's raw weather series to the mean values
// stored on the session row
func averageWeather(samples []WeatherSample) database.SessionWeather {
	var weather database.SessionWeather

	var trackTemps, humidities, windSpeeds []float64
	for _, sample := range samples {
		if sample.TrackTemperature != nil {
			trackTemps = append(trackTemps, *sample.TrackTemperature)
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
