// Package migrations holds one-shot repair passes over stored records. Each pass is
// idempotent: running it again on repaired data changes nothing. Records are repaired one
// at a time and nothing is rolled back if a later record fails.
package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/vilonda/portal/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// batchSize bounds how many records a pass loads at once.
const batchSize = 200

// Result counts the records a pass visited.
type Result struct {
	Scanned int
	Changed int
	Skipped int
}

// Unchanged is the number of records that already had the expected value.
func (r Result) Unchanged() int {
	return r.Scanned - r.Changed - r.Skipped
}

// Func is a repair pass.
type Func func(ctx context.Context, db *gorm.DB, logger *zap.Logger) (Result, error)

// Run executes fn, logs its summary and records the counts in m.
func Run(ctx context.Context, name string, fn Func, db *gorm.DB, logger *zap.Logger, m *metrics.Metrics) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("migration", name))

	start := time.Now()
	result, err := fn(ctx, db, logger)
	m.AddMigrationRecords(name, metrics.OutcomeChanged, result.Changed)
	m.AddMigrationRecords(name, metrics.OutcomeSkipped, result.Skipped)
	m.AddMigrationRecords(name, metrics.OutcomeUnchanged, result.Unchanged())

	fields := []zap.Field{
		zap.Int("scanned", result.Scanned),
		zap.Int("changed", result.Changed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		logger.Error("Migration failed", append(fields, zap.Error(err))...)
		return result, fmt.Errorf("%s: %w", name, err)
	}
	logger.Info("Migration finished", fields...)
	return result, nil
}
