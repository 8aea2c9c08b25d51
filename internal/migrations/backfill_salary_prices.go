package migrations

import (
	"context"
	"fmt"

	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BackfillSalaryPriceMatrix derives a price matrix for salary vehicles that have none,
// using the stored salaryPriceMatrix factors or the built-in defaults. Vehicles without a
// monthly rate are skipped.
func BackfillSalaryPriceMatrix(ctx context.Context, db *gorm.DB, logger *zap.Logger) (Result, error) {
	var result Result

	factors, err := service.NewSettingsService(repository.NewSettingsRepository(db)).SalaryPriceFactors(ctx)
	if err != nil {
		return result, err
	}

	var batch []*models.Vehicle
	vehicles := repository.NewVehicleRepository(db)

	err = db.WithContext(ctx).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		for _, vehicle := range batch {
			result.Scanned++

			if !vehicle.HasCategory(models.CategorySalary) || len(vehicle.PriceMatrix) > 0 {
				continue
			}
			if vehicle.MonthlyRate <= 0 {
				result.Skipped++
				logger.Warn("Salary vehicle has no monthly rate", zap.String("vehicle_id", vehicle.ID))
				continue
			}

			matrix := factors.Apply(vehicle.MonthlyRate)
			if err := vehicles.UpdatePriceMatrix(ctx, vehicle.ID, matrix); err != nil {
				return fmt.Errorf("update price matrix of vehicle %s: %w", vehicle.ID, err)
			}
			result.Changed++
			logger.Info("Salary price matrix backfilled",
				zap.String("vehicle_id", vehicle.ID),
				zap.Int64("monthly_rate", vehicle.MonthlyRate),
				zap.Ints("durations", matrix.Durations()),
			)
		}
		return nil
	}).Error
	return result, err
}
