package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabasePath string

	// Seasons to ingest, ascending
	TargetSeasons []int

	// Per-run ceilings on newly added fact rows, one per source
	MaxNewResultsPerRun      int
	MaxNewLapsPerRun         int
	MaxNewObservationsPerRun int

	// Upstream provider base URLs (overridable so tests can point at mocks)
	ErgastBaseURL    string
	OpenF1BaseURL    string
	FastF1BaseURL    string
	OpenMeteoBaseURL string

	// HTTP fetch timeout
	HTTPTimeout time.Duration

	// Metrics listener address, e.g. ":9090" (empty disables the listener)
	MetricsAddr string

	// Cron expression for daemon mode (empty means run once and exit)
	SyncSchedule string

	// Logging configuration
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:             getEnv("DATABASE_PATH", "./f1.db"),
		MaxNewResultsPerRun:      getEnvInt("MAX_NEW_RESULTS_PER_RUN", 25),
		MaxNewLapsPerRun:         getEnvInt("MAX_NEW_LAPS_PER_RUN", 25),
		MaxNewObservationsPerRun: getEnvInt("MAX_NEW_OBSERVATIONS_PER_RUN", 25),
		ErgastBaseURL:            getEnv("ERGAST_BASE_URL", "https://api.jolpi.ca/ergast/f1"),
		OpenF1BaseURL:            getEnv("OPENF1_BASE_URL", "https://api.openf1.org/v1"),
		FastF1BaseURL:            getEnv("FASTF1_BASE_URL", "https://api.fastf1.dev/v1"),
		OpenMeteoBaseURL:         getEnv("OPENMETEO_BASE_URL", "https://archive-api.open-meteo.com/v1/archive"),
		HTTPTimeout:              time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		MetricsAddr:              getEnv("METRICS_ADDR", ""),
		SyncSchedule:             getEnv("SYNC_SCHEDULE", ""),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
	}

	seasons, err := parseSeasons(getEnv("TARGET_SEASONS", "2023"))
	if err != nil {
		return nil, err
	}
	cfg.TargetSeasons = seasons

	if cfg.MaxNewResultsPerRun <= 0 || cfg.MaxNewLapsPerRun <= 0 || cfg.MaxNewObservationsPerRun <= 0 {
		return nil, fmt.Errorf("per-run row ceilings must be positive")
	}

	return cfg, nil
}

// parseSeasons parses a comma-separated list of season years and returns
// them in ascending order
func parseSeasons(value string) ([]int, error) {
	var seasons []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		year, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid season %q in TARGET_SEASONS", part)
		}
		seasons = append(seasons, year)
	}
	if len(seasons) == 0 {
		return nil, fmt.Errorf("TARGET_SEASONS must list at least one season")
	}
	sort.Ints(seasons)
	return seasons, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
