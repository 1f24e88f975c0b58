// Package ergast ingests race results from the Ergast-compatible results
// provider. It is the authoritative source for season/round numbering, race
// dates, and circuit metadata; the other adapters reconcile against the
// entities it creates.
package ergast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"f1-data-sync/internal/clean"
	"f1-data-sync/internal/config"
	"f1-data-sync/internal/metrics"
)

// Client is an HTTP client for the results provider
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a results-provider client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.ErgastBaseURL,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger,
	}
}

// Upstream payload envelope. Every numeric field arrives as a string.
type envelope struct {
	MRData struct {
		RaceTable struct {
			Races []rawRace `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}

type rawRace struct {
	Season   string `json:"season"`
	Round    string `json:"round"`
	RaceName string `json:"raceName"`
	Date     string `json:"date"`
	Circuit  struct {
		CircuitName string `json:"circuitName"`
		Location    struct {
			Lat  string `json:"lat"`
			Long string `json:"long"`
		} `json:"Location"`
	} `json:"Circuit"`
	Results []rawResult `json:"Results"`
}

type rawResult struct {
	Grid     string `json:"grid"`
	Position string `json:"position"`
	Points   string `json:"points"`
	Status   string `json:"status"`
	Driver   struct {
		DriverID    string `json:"driverId"`
		Code        string `json:"code"`
		GivenName   string `json:"givenName"`
		FamilyName  string `json:"familyName"`
		Nationality string `json:"nationality"`
	} `json:"Driver"`
	Constructor struct {
		ConstructorID string `json:"constructorId"`
		Name          string `json:"name"`
		Nationality   string `json:"nationality"`
	} `json:"Constructor"`
}

// RaceInfo is one entry in the race index
type RaceInfo struct {
	Season      int
	Round       int64
	RaceName    *string
	Date        *int64 // YYYYMMDD
	CircuitName *string
}

// RaceResult is one parsed result record
type RaceResult struct {
	DriverID               *string
	DriverCode             *string
	Forename               *string
	Surname                *string
	DriverNationality      *string
	ConstructorID          *string
	ConstructorName        *string
	ConstructorNationality *string
	Grid                   *int64
	Position               *int64
	Points                 *float64
	Status                 *string
}

// Location is a circuit's geographic position from race metadata
type Location struct {
	Latitude  float64
	Longitude float64
}

func (c *Client) get(ctx context.Context, operation, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	metrics.FetchDuration.WithLabelValues(metrics.SourceErgast, operation).Observe(duration.Seconds())

	if err != nil {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceErgast, operation, metrics.ResultError).Inc()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("ergast_api_request", "path", path, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

	if resp.StatusCode != http.StatusOK {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceErgast, operation, metrics.ResultError).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceErgast, operation, metrics.ResultError).Inc()
		return fmt.Errorf("failed to decode response: %w", err)
	}

	metrics.FetchRequestsTotal.WithLabelValues(metrics.SourceErgast, operation, metrics.ResultSuccess).Inc()
	return nil
}

// RaceIndex fetches the race lists for the given seasons and returns them
// sorted by (season, round). A season whose fetch fails is logged and
// skipped; its races surface on a later run.
func (c *Client) RaceIndex(ctx context.Context, seasons []int) []RaceInfo {
	var races []RaceInfo

	for _, season := range seasons {
		var env envelope
		if err := c.get(ctx, metrics.OpFetchRaceIndex, fmt.Sprintf("/%d.json", season), &env); err != nil {
			c.logger.Error("failed to fetch race index", "season", season, "error", err)
			continue
		}

		for _, raw := range env.MRData.RaceTable.Races {
			round := clean.Int(raw.Round)
			if round == nil {
				continue
			}
			races = append(races, RaceInfo{
				Season:      season,
				Round:       *round,
				RaceName:    clean.String(raw.RaceName),
				Date:        clean.Date(raw.Date),
				CircuitName: clean.String(raw.Circuit.CircuitName),
			})
		}
	}

	// Upstream response order is not guaranteed
	sort.Slice(races, func(i, j int) bool {
		if races[i].Season != races[j].Season {
			return races[i].Season < races[j].Season
		}
		return races[i].Round < races[j].Round
	})
	return races
}

// RaceResults fetches and parses the result list for one race
func (c *Client) RaceResults(ctx context.Context, season int, round int64) ([]RaceResult, error) {
	var env envelope
	if err := c.get(ctx, metrics.OpFetchRaceResults, fmt.Sprintf("/%d/%d/results.json", season, round), &env); err != nil {
		return nil, err
	}

	if len(env.MRData.RaceTable.Races) == 0 {
		return nil, nil
	}

	raws := env.MRData.RaceTable.Races[0].Results
	results := make([]RaceResult, 0, len(raws))
	for _, raw := range raws {
		results = append(results, RaceResult{
			DriverID:               clean.String(raw.Driver.DriverID),
			DriverCode:             clean.String(raw.Driver.Code),
			Forename:               clean.String(raw.Driver.GivenName),
			Surname:                clean.String(raw.Driver.FamilyName),
			DriverNationality:      clean.String(raw.Driver.Nationality),
			ConstructorID:          clean.String(raw.Constructor.ConstructorID),
			ConstructorName:        clean.String(raw.Constructor.Name),
			ConstructorNationality: clean.String(raw.Constructor.Nationality),
			Grid:                   clean.Int(raw.Grid),
			Position:               clean.Int(raw.Position),
			Points:                 clean.Float(raw.Points),
			Status:                 clean.String(raw.Status),
		})
	}
	return results, nil
}

// CircuitLocation fetches a circuit's coordinates from one race's metadata.
// Returns nil if the race or its location is not available.
func (c *Client) CircuitLocation(ctx context.Context, season int, round int64) (*Location, error) {
	var env envelope
	if err := c.get(ctx, metrics.OpFetchCircuitLocation, fmt.Sprintf("/%d/%d.json", season, round), &env); err != nil {
		return nil, err
	}

	if len(env.MRData.RaceTable.Races) == 0 {
		return nil, nil
	}

	loc := env.MRData.RaceTable.Races[0].Circuit.Location
	lat := clean.Float(loc.Lat)
	lon := clean.Float(loc.Long)
	if lat == nil || lon == nil {
		return nil, nil
	}
	return &Location{Latitude: *lat, Longitude: *lon}, nil
}
