package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// Ingestion sources
	SourceErgast    = "ergast"
	SourceOpenF1    = "openf1"
	SourceFastF1    = "fastf1"
	SourceOpenMeteo = "openmeteo"

	// Fact types
	FactResult      = "result"
	FactLap         = "lap"
	FactObservation = "weather_observation"

	// Fetch operations
	OpFetchRaceIndex       = "fetch_race_index"
	OpFetchRaceResults     = "fetch_race_results"
	OpFetchCircuitLocation = "fetch_circuit_location"
	OpFetchMeetings        = "fetch_meetings"
	OpFetchSessions        = "fetch_sessions"
	OpFetchDrivers         = "fetch_drivers"
	OpFetchLaps            = "fetch_laps"
	OpFetchStints          = "fetch_stints"
	OpFetchSessionWeather  = "fetch_session_weather"
	OpFetchSchedule        = "fetch_schedule"
	OpFetchSessionDetail   = "fetch_session_detail"
	OpFetchObservations    = "fetch_observations"

	// Fetch results
	ResultSuccess = "success"
	ResultError   = "error"

	// Database operations
	DBOpGetOrCreateDimension   = "get_or_create_dimension"
	DBOpGetOrCreateDriver      = "get_or_create_driver"
	DBOpGetOrCreateConstructor = "get_or_create_constructor"
	DBOpGetOrCreateRace        = "get_or_create_race"
	DBOpGetOrCreateSession     = "get_or_create_session"
	DBOpInsertResult           = "insert_result"
	DBOpInsertLap              = "insert_lap"
	DBOpInsertObservation      = "insert_weather_observation"
	DBOpGetProgress            = "get_progress"
	DBOpUpdateProgress         = "update_progress"
)

// Ingestion run metrics
var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Total number of ingestion runs per source",
		},
		[]string{"source"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Duration of a single source's ingestion run",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	RowsAddedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_added_total",
			Help: "Total number of new fact rows added, by source and fact type",
		},
		[]string{"source", "fact"},
	)

	UnitsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_units_processed_total",
			Help: "Total number of units of work the ledger advanced past",
		},
		[]string{"source"},
	)

	RecordsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_skipped_total",
			Help: "Total number of malformed upstream records skipped",
		},
		[]string{"source"},
	)

	LedgerSeason = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_ledger_season",
			Help: "Season component of the ledger cursor per source",
		},
		[]string{"source"},
	)

	LedgerRound = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_ledger_round",
			Help: "Round component of the ledger cursor per source",
		},
		[]string{"source"},
	)
)

// Upstream fetch metrics
var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetch_requests_total",
			Help: "Total number of upstream HTTP fetches by source, operation and result",
		},
		[]string{"source", "operation", "result"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_fetch_duration_seconds",
			Help:    "Upstream HTTP fetch latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source", "operation"},
	)
)

// Database metrics
var (
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	DBOperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation"},
	)

	DimensionRowsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dimension_rows_created_total",
			Help: "Total number of dimension rows created, by table",
		},
		[]string{"table"},
	)
)
