package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"f1-data-sync/internal/config"
	"f1-data-sync/internal/database"
	"f1-data-sync/internal/ingest"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting f1-data-sync",
		"database", cfg.DatabasePath,
		"seasons", cfg.TargetSeasons,
		"schedule", cfg.SyncSchedule,
		"log_level", cfg.LogLevel)

	// Open database
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("Database opened successfully")

	runner := ingest.NewRunner(cfg, db, logger)

	// Start metrics server if configured
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := db.Health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metricsMux,
		}

		go func() {
			logger.Info("Metrics server listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without a schedule, run a single bounded pass and exit
	if cfg.SyncSchedule == "" {
		summary := runner.RunOnce(ctx)
		report(logger, summary)
		shutdownMetrics(logger, metricsServer)
		if len(summary.Errors()) > 0 {
			os.Exit(1)
		}
		return
	}

	// Scheduled mode: run passes on the cron schedule until interrupted
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.SyncSchedule, func() {
		report(logger, runner.RunOnce(ctx))
	})
	if err != nil {
		logger.Error("Invalid sync schedule", "schedule", cfg.SyncSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")
	cancel()
	<-scheduler.Stop().Done()
	shutdownMetrics(logger, metricsServer)
	logger.Info("Stopped")
}

func report(logger *slog.Logger, summary *ingest.Summary) {
	for _, result := range summary.Results {
		if result.Err != nil {
			logger.Error("sync source failed", "source", result.Source, "rows_added", result.RowsAdded, "error", result.Err)
		}
	}
	logger.Info("sync pass complete",
		"rows_added", summary.RowsAdded(),
		"failures", len(summary.Errors()),
		"elapsed", summary.Elapsed.Round(time.Millisecond).String())
}

func shutdownMetrics(logger *slog.Logger, metricsServer *http.Server) {
	if metricsServer == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown failed", "error", err)
	}
}
