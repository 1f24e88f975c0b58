// Package fastf1 ingests lap timing from the FastF1 timing backend. Events
// are exposed by name in chronological order, so the ledger cursor for this
// source carries the last event name rather than a round number.
package fastf1

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

// Client is an HTTP client for the timing backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a timing-backend client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.FastF1BaseURL,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger,
	}
}

// Event is one entry in a season's schedule
type Event struct {
	Name         string `json:"event"`
	OfficialName string `json:"official_name"`
	Date         string `json:"date"`
}

// rawLap is the untyped wire form of one lap record
type rawLap struct {
	Driver    string `json:"driver"`
	LapNumber any    `json:"lap_number"`
	LapTimeMS any    `json:"lap_time_ms"`
	Sector1MS any    `json:"sector1_ms"`
	Sector2MS any    `json:"sector2_ms"`
	Sector3MS any    `json:"sector3_ms"`
	Compound  string `json:"compound"`
	FreshTyre bool   `json:"fresh_tyre"`
}

// Lap is one parsed lap record
type Lap struct {
	DriverCode string
	LapNumber  int64
	LapTimeMS  int64
	Sector1MS  *int64
	Sector2MS  *int64
	Sector3MS  *int64
	Compound   *string
	FreshTyre  bool
}

// WeatherSample is one raw weather reading during a session
type WeatherSample struct {
	TrackTemp *float64 `json:"track_temp"`
	Humidity  *float64 `json:"humidity"`
	WindSpeed *float64 `json:"wind_speed"`
}

// SessionDetail is one session's laps and weather series
type SessionDetail struct {
	Laps    []Lap
	Weather []WeatherSample
}

type rawSessionDetail struct {
	Laps    []rawLap        `json:"laps"`
	Weather []WeatherSample `json:"weather"`
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	metrics.FetchDuration.WithLabelValues(metrics.SourceFastF1, operation).Observe(duration.Seconds())

	if err != nil {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceFastF1, operation, metrics.ResultError).Inc()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("fastf1_api_request", "path", path, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

	if resp.StatusCode != http.StatusOK {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceFastF1, operation, metrics.ResultError).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceFastF1, operation, metrics.ResultError).Inc()
		return fmt.Errorf("failed to decode response: %w", err)
	}

	metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceFastF1, operation, metrics.ResultSuccess).Inc()
	return nil
}

// Schedule fetches a season's events sorted chronologically
func (c *Client) Schedule(ctx context.Context, season int) ([]Event, error) {
	var events []Event
	params := url.Values{"season": {fmt.Sprint(season)}}
	if err := c.get(ctx, metrics.OpFetchSchedule, "/schedule", params, &events); err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Date < events[j].Date
	})
	return events, nil
}

// Session fetches one session's laps and weather series. Lap records whose
// shape cannot be coerced are dropped.
func (c *Client) Session(ctx context.Context, season int, eventName, sessionType string) (*SessionDetail, error) {
	var raw rawSessionDetail
	params := url.Values{
		"season": {fmt.Sprint(season)},
		"event":  {eventName},
		"type":   {sessionType},
	}
	if err := c.get(ctx, metrics.OpFetchSessionDetail, "/session", params, &raw); err != nil {
		return nil, err
	}

	detail := &SessionDetail{Weather: raw.Weather}
	for _, r := range raw.Laps {
		lap, ok := parseLap(r)
		if !ok {
			metrics.RecordsSkippedTotal.WithLabelValues(metrics.SourceFastF1).Inc()
			continue
		}
		detail.Laps = append(detail.Laps, lap)
	}
	return detail, nil
}

// parseLap maps one untyped wire record into a Lap, failing soft on shape
// mismatch
func parseLap(raw rawLap) (Lap, bool) {
	code := clean.String(raw.Driver)
	lapNumber := clean.Int(raw.LapNumber)
	lapTimeMS := clean.Int(raw.LapTimeMS)
	if code == nil || lapNumber == nil || lapTimeMS == nil {
		return Lap{}, false
	}

	return Lap{
		DriverCode: *code,
		LapNumber:  *lapNumber,
		LapTimeMS:  *lapTimeMS,
		Sector1MS:  clean.Int(raw.Sector1MS),
		Sector2MS:  clean.Int(raw.Sector2MS),
		Sector3MS:  clean.Int(raw.Sector3MS),
		Compound:   clean.String(raw.Compound),
		FreshTyre:  raw.FreshTyre,
	}, true
}
