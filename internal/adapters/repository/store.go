// Package repository persists metric records in a CSV file.
package repository

import (
	"context"

	"github.com/okian/moncell/internal/domain/model"
)

// Store is the persisted collection of metric records.
type Store interface {
	// Load reads every stored record. An absent store is empty.
	Load(ctx context.Context) ([]model.MetricRecord, error)

	// Append durably adds exactly one record.
	Append(ctx context.Context, rec model.MetricRecord) error

	// Reset deletes the whole store. Resetting an absent store is a no-op.
	Reset(ctx context.Context) error

	// Exists reports whether the backing file is present.
	Exists() bool
}
