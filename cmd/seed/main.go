package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/moncell/internal/config"
	"github.com/okian/moncell/internal/seed"
	"github.com/okian/moncell/pkg/logger"
)

const defaultSeedTimeout = 5 * time.Minute

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSeedTimeout)
	defer cancel()

	if err := config.LoadDotEnv(); err != nil {
		os.Stderr.WriteString("failed to read .env: " + err.Error() + "\n")
		os.Exit(1)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	var (
		dataFile      = flag.String("data", cfg.DataFile, "CSV data file to append to")
		referenceFile = flag.String("reference", cfg.ReferenceFile, "District/school reference CSV")
		days          = flag.Int("days", seed.DefaultDays, "Number of days ending today to cover")
		perDay        = flag.Int("per-day", seed.DefaultPerDay, "Records generated per day")
		anomalyRate   = flag.Float64("anomaly-rate", seed.DefaultAnomalyRate, "Share of records flagged as anomalies (0..1)")
		seedValue     = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
		reset         = flag.Bool("reset", false, "Delete the data file before seeding")
		verbose       = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if *verbose {
		_ = logger.SetLevelString("debug")
	} else if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	_, err = seed.Run(ctx, seed.Config{
		Days:        *days,
		PerDay:      *perDay,
		AnomalyRate: *anomalyRate,
		Seed:        *seedValue,
		TeamMembers: cfg.TeamMembers,
		MetricNames: cfg.MetricNames,
	}, *referenceFile, *dataFile, *reset)
	if err != nil {
		os.Stderr.WriteString("seed failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
