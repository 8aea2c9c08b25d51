package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/session"
)

var ErrSettingNotFound = errors.New("setting not found")

var settingKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]{0,127}$`)

// SettingsService stores platform-wide JSON settings.
type SettingsService struct {
	repo *repository.SettingsRepository
}

// NewSettingsService constructs the service.
func NewSettingsService(repo *repository.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// Get returns one setting.
func (s *SettingsService) Get(ctx context.Context, actor *session.Session, key string) (*models.Setting, error) {
	if !actor.Can(roles.ManageSettings) {
		return nil, ErrForbidden
	}
	setting, err := s.repo.Get(ctx, strings.TrimSpace(key))
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, ErrSettingNotFound
	}
	return setting, nil
}

// List returns every stored setting.
func (s *SettingsService) List(ctx context.Context, actor *session.Session) ([]*models.Setting, error) {
	if !actor.Can(roles.ManageSettings) {
		return nil, ErrForbidden
	}
	return s.repo.List(ctx)
}

// Put creates or replaces a setting. Known keys are validated against their schema.
func (s *SettingsService) Put(ctx context.Context, actor *session.Session, key string, value json.RawMessage) (*models.Setting, error) {
	if !actor.Can(roles.ManageSettings) {
		return nil, ErrForbidden
	}
	key = strings.TrimSpace(key)
	if !settingKeyPattern.MatchString(key) {
		return nil, invalid("key", "must start with a letter and contain only letters, digits, '.', '_' or '-'")
	}
	if len(value) == 0 || !json.Valid(value) {
		return nil, invalid("value", "must be valid JSON")
	}

	if key == models.SettingSalaryPriceMatrix {
		var factors models.PriceFactors
		if err := json.Unmarshal(value, &factors); err != nil || !factors.Valid() {
			return nil, invalid("value", "must map durations to mileages to positive per-mille factors")
		}
	}
	return s.repo.Put(ctx, key, value)
}

// SalaryPriceFactors returns the stored salary price factors, or the built-in defaults.
func (s *SettingsService) SalaryPriceFactors(ctx context.Context) (models.PriceFactors, error) {
	setting, err := s.repo.Get(ctx, models.SettingSalaryPriceMatrix)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", models.SettingSalaryPriceMatrix, err)
	}
	if setting == nil {
		return models.DefaultPriceFactors(), nil
	}
	var factors models.PriceFactors
	if err := json.Unmarshal(setting.Value, &factors); err != nil {
		return nil, fmt.Errorf("decode %s: %w", models.SettingSalaryPriceMatrix, err)
	}
	if !factors.Valid() {
		return nil, fmt.Errorf("setting %s holds invalid factors", models.SettingSalaryPriceMatrix)
	}
	return factors, nil
}
