package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/moncell/internal/adapters/repository"
	"github.com/okian/moncell/internal/domain/model"
	"github.com/okian/moncell/internal/domain/reference"
	"github.com/okian/moncell/pkg/logger"
)

// Appender is the part of the store the seeder writes through.
type Appender interface {
	Append(ctx context.Context, rec model.MetricRecord) error
}

// Run generates records for the schools of the reference file and appends
// them to the data file, after deleting it when reset is set.
func Run(ctx context.Context, cfg Config, referenceFile, dataFile string, reset bool) (Stats, error) {
	log := logger.Get()
	start := time.Now()

	dir, err := reference.LoadFile(ctx, referenceFile)
	if err != nil {
		return Stats{}, err
	}
	records, stats, err := Generate(ctx, cfg, dir)
	if err != nil {
		return stats, err
	}

	store := repository.NewCSVStore(dataFile, repository.WithLogger(log.Named("store")))
	if reset {
		if err := store.Reset(ctx); err != nil {
			return stats, fmt.Errorf("reset data file: %w", err)
		}
	}
	if err := appendAll(ctx, store, records); err != nil {
		return stats, err
	}

	log.Info(ctx, "seed complete",
		logger.String("dataFile", dataFile),
		logger.Int("records", stats.Records),
		logger.Int("anomalies", stats.Anomalies),
		logger.Int("textRows", stats.TextRows),
		logger.String("from", stats.From.Format(model.DateLayout)),
		logger.String("to", stats.To.Format(model.DateLayout)),
		logger.Float64("durationMs", float64(time.Since(start).Milliseconds())),
	)
	return stats, nil
}

func appendAll(ctx context.Context, store Appender, records []model.MetricRecord) error {
	for i, rec := range records {
		if err := store.Append(ctx, rec); err != nil {
			return fmt.Errorf("append record %d: %w", i+1, err)
		}
	}
	return nil
}
