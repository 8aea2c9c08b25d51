package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vilonda/portal/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerificationRepository stores one-time verification codes.
type VerificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository constructs a new repository instance.
func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create persists a verification code.
func (r *VerificationRepository) Create(ctx context.Context, v *models.Verification) error {
	return r.db.WithContext(ctx).Create(v).Error
}

// GetLatest returns the newest unconsumed code for a user and purpose.
func (r *VerificationRepository) GetLatest(ctx context.Context, userID string, purpose models.VerificationPurpose) (*models.Verification, error) {
	var v models.Verification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND consumed_at IS NULL", userID, purpose).
		Order("created_at DESC").
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// Consume marks a code as used. It reports false when the code had already been consumed.
func (r *VerificationRepository) Consume(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Verification{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SettingsRepository stores keyed JSON settings documents.
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository constructs a new repository instance.
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get fetches a setting by key.
func (r *SettingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	var s models.Setting
	err := r.db.WithContext(ctx).First(&s, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Put creates or replaces a setting.
func (r *SettingsRepository) Put(ctx context.Context, key string, value json.RawMessage) (*models.Setting, error) {
	s := &models.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(s).Error
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns every setting ordered by key.
func (r *SettingsRepository) List(ctx context.Context) ([]*models.Setting, error) {
	var settings []*models.Setting
	err := r.db.WithContext(ctx).Order("key ASC").Find(&settings).Error
	return settings, err
}
