// Package openf1 ingests lap telemetry from the OpenF1 REST API. Meetings
// are exposed by date rather than round number; rounds are derived from the
// chronological meeting order within a season.
package openf1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"f1-data-sync/internal/clean"
	"f1-data-sync/internal/config"
	"f1-data-sync/internal/metrics"
)

// Client is an HTTP client for the OpenF1 API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an OpenF1 client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.OpenF1BaseURL,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger,
	}
}

// Meeting is one Grand Prix weekend
type Meeting struct {
	MeetingKey       int64  `json:"meeting_key"`
	MeetingName      string `json:"meeting_name"`
	CircuitShortName string `json:"circuit_short_name"`
	DateStart        string `json:"date_start"`
}

// SessionInfo describes one session within a meeting
type SessionInfo struct {
	SessionKey  int64  `json:"session_key"`
	SessionName string `json:"session_name"`
}

// DriverInfo is a driver's entry for one session
type DriverInfo struct {
	DriverNumber int64  `json:"driver_number"`
	NameAcronym  string `json:"name_acronym"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	CountryCode  string `json:"country_code"`
}

// rawLap is the untyped wire form: the API mixes numbers and numeric
// strings for durations, so coercion happens in parseLap
type rawLap struct {
	DriverNumber    int64 `json:"driver_number"`
	LapNumber       any   `json:"lap_number"`
	LapDuration     any   `json:"lap_duration"`
	DurationSector1 any   `json:"duration_sector_1"`
	DurationSector2 any   `json:"duration_sector_2"`
	DurationSector3 any   `json:"duration_sector_3"`
	IsPitOutLap     bool  `json:"is_pit_out_lap"`
}

// Lap is one parsed lap record with durations in milliseconds
type Lap struct {
	DriverNumber int64
	LapNumber    int64
	LapTimeMS    int64
	Sector1MS    *int64
	Sector2MS    *int64
	Sector3MS    *int64
}

// Stint is one tyre stint, spanning laps [LapStart, LapEnd]
type Stint struct {
	DriverNumber   int64  `json:"driver_number"`
	LapStart       *int64 `json:"lap_start"`
	LapEnd         *int64 `json:"lap_end"`
	Compound       string `json:"compound"`
	TyreAgeAtStart *int64 `json:"tyre_age_at_start"`
}

// WeatherSample is one raw weather reading during a session
type WeatherSample struct {
	TrackTemperature *float64 `json:"track_temperature"`
	Humidity         *float64 `json:"humidity"`
	WindSpeed        *float64 `json:"wind_speed"`
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	metrics.FetchDuration.WithLabelValues(metrics.SourceOpenF1, operation).Observe(duration.Seconds())

	if err != nil {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceOpenF1, operation, metrics.ResultError).Inc()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("openf1_api_request", "path", path, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

	if resp.StatusCode != http.StatusOK {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceOpenF1, operation, metrics.ResultError).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceOpenF1, operation, metrics.ResultError).Inc()
		return fmt.Errorf("failed to decode response: %w", err)
	}

	metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceOpenF1, operation, metrics.ResultSuccess).Inc()
	return nil
}

// Meetings fetches a year's meetings sorted chronologically. The 1-based
// position in this list is the meeting's round number.
func (c *Client) Meetings(ctx context.Context, year int) ([]Meeting, error) {
	var meetings []Meeting
	params := url.Values{"year": {fmt.Sprint(year)}}
	if err := c.get(ctx, metrics.OpFetchMeetings, "/meetings", params, &meetings); err != nil {
		return nil, err
	}
	sort.Slice(meetings, func(i, j int) bool {
		return meetings[i].DateStart < meetings[j].DateStart
	})
	return meetings, nil
}

// Sessions fetches a meeting's sessions filtered to race and qualifying,
// sorted by session key for deterministic ordering
func (c *Client) Sessions(ctx context.Context, meetingKey int64) ([]SessionInfo, error) {
	var sessions []SessionInfo
	params := url.Values{"meeting_key": {fmt.Sprint(meetingKey)}}
	if err := c.get(ctx, metrics.OpFetchSessions, "/sessions", params, &sessions); err != nil {
		return nil, err
	}

	filtered := sessions[:0]
	for _, s := range sessions {
		if s.SessionName == "Race" || s.SessionName == "Qualifying" {
			filtered = append(filtered, s)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].SessionKey < filtered[j].SessionKey
	})
	return filtered, nil
}

// Drivers fetches the driver entries for one session
func (c *Client) Drivers(ctx context.Context, sessionKey int64) ([]DriverInfo, error) {
	var drivers []DriverInfo
	params := url.Values{"session_key": {fmt.Sprint(sessionKey)}}
	if err := c.get(ctx, metrics.OpFetchDrivers, "/drivers", params, &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

// Laps fetches and parses all laps for one session. Pit-out laps and laps
// without a number or duration are dropped.
func (c *Client) Laps(ctx context.Context, sessionKey int64) ([]Lap, error) {
	var raws []rawLap
	params := url.Values{"session_key": {fmt.Sprint(sessionKey)}}
	if err := c.get(ctx, metrics.OpFetchLaps, "/laps", params, &raws); err != nil {
		return nil, err
	}

	laps := make([]Lap, 0, len(raws))
	for _, raw := range raws {
		lap, ok := parseLap(raw)
		if !ok {
			metrics.RecordsSkippedTotal.WithLabelValues(metrics.SourceOpenF1).Inc()
			continue
		}
		laps = append(laps, lap)
	}
	return laps, nil
}

// parseLap maps one untyped wire record into a Lap, failing soft on shape
// mismatch
func parseLap(raw rawLap) (Lap, bool) {
	if raw.IsPitOutLap {
		return Lap{}, false
	}

	lapNumber := clean.Int(raw.LapNumber)
	duration := clean.Float(raw.LapDuration)
	if lapNumber == nil || duration == nil {
		return Lap{}, false
	}

	lapTimeMS := clean.SecondsToMillis(duration)
	return Lap{
		DriverNumber: raw.DriverNumber,
		LapNumber:    *lapNumber,
		LapTimeMS:    *lapTimeMS,
		Sector1MS:    clean.SecondsToMillis(clean.Float(raw.DurationSector1)),
		Sector2MS:    clean.SecondsToMillis(clean.Float(raw.DurationSector2)),
		Sector3MS:    clean.SecondsToMillis(clean.Float(raw.DurationSector3)),
	}, true
}

// Stints fetches all tyre stints for one session
func (c *Client) Stints(ctx context.Context, sessionKey int64) ([]Stint, error) {
	var stints []Stint
	params := url.Values{"session_key": {fmt.Sprint(sessionKey)}}
	if err := c.get(ctx, metrics.OpFetchStints, "/stints", params, &stints); err != nil {
		return nil, err
	}
	return stints, nil
}

// Weather fetches the raw weather series for one session
func (c *Client) Weather(ctx context.Context, sessionKey int64) ([]WeatherSample, error) {
	var samples []WeatherSample
	params := url.Values{"session_key": {fmt.Sprint(sessionKey)}}
	if err := c.get(ctx, metrics.OpFetchSessionWeather, "/weather", params, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}
