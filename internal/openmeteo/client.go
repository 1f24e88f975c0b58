// Package openmeteo ingests historical hourly weather around race weekends
// from the Open-Meteo archive API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"f1-data-sync/internal/config"
	"f1-data-sync/internal/metrics"
)

// Client is an HTTP client for the weather archive
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a weather archive client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.OpenMeteoBaseURL,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger,
	}
}

// Observation is one hourly weather reading
type Observation struct {
	Timestamp       string
	TemperatureC    *float64
	WindSpeed       *float64
	PrecipitationMM *float64
}

// The archive returns hourly series as parallel arrays keyed by variable
type archiveResponse struct {
	Hourly struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		WindSpeed     []*float64 `json:"windspeed_10m"`
		Precipitation []*float64 `json:"precipitation"`
	} `json:"hourly"`
}

// Observations fetches hourly readings for a location over a date range.
// Dates are YYYY-MM-DD, inclusive on both ends.
func (c *Client) Observations(ctx context.Context, latitude, longitude float64, startDate, endDate string) ([]Observation, error) {
	params := url.Values{
		"latitude":   {fmt.Sprintf("%.4f", latitude)},
		"longitude":  {fmt.Sprintf("%.4f", longitude)},
		"start_date": {startDate},
		"end_date":   {endDate},
		"hourly":     {"temperature_2m,windspeed_10m,precipitation"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	metrics.FetchDuration.WithLabelValues(metrics.SourceOpenMeteo, metrics.OpFetchObservations).Observe(duration.Seconds())

	if err != nil {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceOpenMeteo, metrics.OpFetchObservations, metrics.ResultError).Inc()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("openmeteo_api_request", "start_date", startDate, "end_date", endDate, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

	if resp.StatusCode != http.StatusOK {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceOpenMeteo, metrics.OpFetchObservations, metrics.ResultError).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var archive archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&archive); err != nil {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceOpenMeteo, metrics.OpFetchObservations, metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceOpenMeteo, metrics.OpFetchObservations, metrics.ResultSuccess).Inc()

	observations := make([]Observation, 0, len(archive.Hourly.Time))
	for i, timestamp := range archive.Hourly.Time {
		if timestamp == "" {
			metrics.RecordsSkippedTotal.WithLabelValues(metrics.SourceOpenMeteo).Inc()
			continue
		}
		obs := Observation{Timestamp: timestamp}
		if i < len(archive.Hourly.Temperature) {
			obs.TemperatureC = archive.Hourly.Temperature[i]
		}
		if i < len(archive.Hourly.WindSpeed) {
			obs.WindSpeed = archive.Hourly.WindSpeed[i]
		}
		if i < len(archive.Hourly.Precipitation) {
			obs.PrecipitationMM = archive.Hourly.Precipitation[i]
		}
		observations = append(observations, obs)
	}
	return observations, nil
}
