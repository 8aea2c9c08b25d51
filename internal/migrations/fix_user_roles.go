package migrations

import (
	"context"
	"fmt"

	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/roles"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FixUserRoles sets each user's role to the one implied by its portal. Users with an
// unknown portal are skipped.
func FixUserRoles(ctx context.Context, db *gorm.DB, logger *zap.Logger) (Result, error) {
	var result Result
	var batch []*models.User

	err := db.WithContext(ctx).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		for _, user := range batch {
			result.Scanned++

			want, ok := roles.FromPortal(user.Portal)
			if !ok {
				result.Skipped++
				logger.Warn("User has unknown portal",
					zap.String("user_id", user.ID),
					zap.String("portal", string(user.Portal)),
				)
				continue
			}
			if user.Role == want {
				continue
			}

			if err := db.WithContext(ctx).Model(&models.User{}).
				Where("id = ?", user.ID).
				Update("role", want).Error; err != nil {
				return fmt.Errorf("update role of user %s: %w", user.ID, err)
			}
			result.Changed++
			logger.Info("User role repaired",
				zap.String("user_id", user.ID),
				zap.String("from", user.Role.String()),
				zap.String("to", want.String()),
			)
		}
		return nil
	}).Error
	return result, err
}
