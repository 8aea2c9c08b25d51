package migrations

import (
	"context"
	"fmt"

	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FixVehicleRequestTypes aligns each request's type with the categories of its vehicle.
// Requests whose vehicle is gone or has no categories are skipped.
func FixVehicleRequestTypes(ctx context.Context, db *gorm.DB, logger *zap.Logger) (Result, error) {
	var result Result
	var batch []*models.VehicleRequest
	vehicles := repository.NewVehicleRepository(db)
	cache := map[string]*models.Vehicle{}

	err := db.WithContext(ctx).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		for _, req := range batch {
			result.Scanned++

			vehicle, seen := cache[req.VehicleID]
			if !seen {
				found, err := vehicles.GetByID(ctx, req.VehicleID)
				if err != nil {
					return fmt.Errorf("load vehicle %s: %w", req.VehicleID, err)
				}
				cache[req.VehicleID] = found
				vehicle = found
			}

			want, ok := vehicle.RequestType()
			if !ok {
				result.Skipped++
				logger.Warn("Vehicle request has no categorised vehicle",
					zap.String("request_id", req.ID),
					zap.String("vehicle_id", req.VehicleID),
				)
				continue
			}
			if req.Type == want {
				continue
			}

			if err := db.WithContext(ctx).Model(&models.VehicleRequest{}).
				Where("id = ?", req.ID).
				Update("type", want).Error; err != nil {
				return fmt.Errorf("update type of request %s: %w", req.ID, err)
			}
			result.Changed++
			logger.Info("Vehicle request type repaired",
				zap.String("request_id", req.ID),
				zap.String("from", string(req.Type)),
				zap.String("to", string(want)),
			)
		}
		return nil
	}).Error
	return result, err
}
