package main

import (
	"fmt"
	"log/slog"
	"os"

	"f1-data-sync/internal/config"
	"f1-data-sync/internal/database"
)

func main() {
	// Disable structured logging for CLI
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors
	})))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	if command == "help" {
		printUsage()
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Open database
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch command {
	case "stats":
		handleStats(db)
	case "progress":
		handleProgress(db)
	case "races":
		handleRaces(db, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`f1-data-sync CLI - Database Inspection

Usage:
  cli <command>

Commands:
  stats        Show stored row counts per table
  progress     Show each source's ledger cursor
  races        List stored races for the configured seasons
  help         Show this help message

Examples:
  cli stats
  cli progress
  cli races`)
}

func handleStats(db *database.DB) {
	stats, err := db.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, s := range stats {
		fmt.Printf("%-14s %d\n", s.Table, s.Rows)
	}
}

func handleProgress(db *database.DB) {
	entries, err := db.ListProgress()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("No sources have made progress yet.")
		return
	}

	for _, p := range entries {
		fmt.Printf("%s: season %d, round %d", p.Source, p.Season, p.Round)
		if p.Label != nil {
			fmt.Printf(" (%s)", *p.Label)
		}
		fmt.Println()
	}
}

func handleRaces(db *database.DB, cfg *config.Config) {
	for _, season := range cfg.TargetSeasons {
		races, err := db.ListRaces(season)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Season %d: %d race(s)\n", season, len(races))
		for _, race := range races {
			round := "?"
			if race.Round != nil {
				round = fmt.Sprint(*race.Round)
			}
			fmt.Printf("  Round %-3s race_id=%d\n", round, race.ID)
		}
	}
}
