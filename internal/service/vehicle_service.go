package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/session"
)

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrNoPrice         = errors.New("no price for this duration and mileage")
)

// Quote is the monthly rate of a vehicle for one lease configuration.
type Quote struct {
	VehicleID      string `json:"vehicle_id"`
	DurationMonths int    `json:"duration_months"`
	AnnualMileage  int    `json:"annual_mileage"`
	MonthlyRate    int64  `json:"monthly_rate"`
}

// VehicleService manages the vehicle catalog.
type VehicleService struct {
	repo     *repository.VehicleRepository
	settings *SettingsService
}

// NewVehicleService constructs the service.
func NewVehicleService(repo *repository.VehicleRepository, settings *SettingsService) *VehicleService {
	return &VehicleService{repo: repo, settings: settings}
}

// CreateVehicle adds a vehicle to the catalog. Salary vehicles without a price matrix
// get one derived from the salary price factors.
func (s *VehicleService) CreateVehicle(ctx context.Context, actor *session.Session, input *models.VehicleInput) (*models.Vehicle, error) {
	if !actor.Can(roles.ManageVehicles) {
		return nil, ErrForbidden
	}
	vehicle := &models.Vehicle{}
	if err := s.apply(ctx, vehicle, input); err != nil {
		return nil, err
	}
	active := input.IsActive == nil || *input.IsActive
	vehicle.IsActive = true

	if err := s.repo.Create(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("create vehicle: %w", err)
	}
	if !active {
		if err := s.repo.SetActive(ctx, vehicle.ID, false); err != nil {
			return nil, err
		}
		vehicle.IsActive = false
	}
	return vehicle, nil
}

// UpdateVehicle replaces the catalog data of a vehicle.
func (s *VehicleService) UpdateVehicle(ctx context.Context, actor *session.Session, id string, input *models.VehicleInput) (*models.Vehicle, error) {
	if !actor.Can(roles.ManageVehicles) {
		return nil, ErrForbidden
	}
	vehicle, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, ErrVehicleNotFound
	}
	if err := s.apply(ctx, vehicle, input); err != nil {
		return nil, err
	}
	if input.IsActive != nil {
		vehicle.IsActive = *input.IsActive
	}
	if err := s.repo.Update(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("update vehicle: %w", err)
	}
	return vehicle, nil
}

// SetVehicleActive shows or hides a vehicle in the catalog.
func (s *VehicleService) SetVehicleActive(ctx context.Context, actor *session.Session, id string, active bool) error {
	if !actor.Can(roles.ManageVehicles) {
		return ErrForbidden
	}
	vehicle, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if vehicle == nil {
		return ErrVehicleNotFound
	}
	return s.repo.SetActive(ctx, id, active)
}

// GetVehicle returns a vehicle. Inactive vehicles are only visible to catalog managers.
func (s *VehicleService) GetVehicle(ctx context.Context, actor *session.Session, id string) (*models.Vehicle, error) {
	if !actor.Can(roles.ViewVehicles) {
		return nil, ErrForbidden
	}
	vehicle, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if vehicle == nil || (!vehicle.IsActive && !actor.Can(roles.ManageVehicles)) {
		return nil, ErrVehicleNotFound
	}
	return vehicle, nil
}

// ListVehicles lists the catalog. Callers without ManageVehicles only see active vehicles.
func (s *VehicleService) ListVehicles(ctx context.Context, actor *session.Session, filter models.VehicleFilter) ([]*models.Vehicle, error) {
	if !actor.Can(roles.ViewVehicles) {
		return nil, ErrForbidden
	}
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))
	if filter.Category != "" && !slices.Contains(models.KnownCategories, filter.Category) {
		return nil, invalid("category", "is not a known category")
	}
	if !actor.Can(roles.ManageVehicles) {
		filter.OnlyActive = true
	}
	return s.repo.List(ctx, filter)
}

// QuoteMonthlyRate looks up the monthly rate of a vehicle for a lease configuration.
func (s *VehicleService) QuoteMonthlyRate(ctx context.Context, actor *session.Session, id string, durationMonths, annualMileage int) (*Quote, error) {
	vehicle, err := s.GetVehicle(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	rate, err := priceFor(vehicle, durationMonths, annualMileage)
	if err != nil {
		return nil, err
	}
	return &Quote{
		VehicleID:      vehicle.ID,
		DurationMonths: durationMonths,
		AnnualMileage:  annualMileage,
		MonthlyRate:    rate,
	}, nil
}

// priceFor resolves the rate from the matrix. Vehicles without a matrix fall back to
// their base rate unless they are salary vehicles.
func priceFor(vehicle *models.Vehicle, durationMonths, annualMileage int) (int64, error) {
	if durationMonths <= 0 {
		return 0, invalid("duration_months", "must be positive")
	}
	if annualMileage <= 0 {
		return 0, invalid("annual_mileage", "must be positive")
	}
	if rate, ok := vehicle.PriceMatrix.Rate(durationMonths, annualMileage); ok {
		return rate, nil
	}
	if len(vehicle.PriceMatrix) == 0 && !vehicle.HasCategory(models.CategorySalary) && vehicle.MonthlyRate > 0 {
		return vehicle.MonthlyRate, nil
	}
	return 0, ErrNoPrice
}

func (s *VehicleService) apply(ctx context.Context, vehicle *models.Vehicle, input *models.VehicleInput) error {
	if input == nil {
		return fmt.Errorf("input required")
	}
	brand := strings.TrimSpace(input.Brand)
	if brand == "" {
		return invalid("brand", "is required")
	}
	model := strings.TrimSpace(input.Model)
	if model == "" {
		return invalid("model", "is required")
	}
	if input.ListPrice < 0 {
		return invalid("list_price", "must not be negative")
	}
	if input.MonthlyRate < 0 {
		return invalid("monthly_rate", "must not be negative")
	}
	categories, err := normalizeCategories(input.Categories)
	if err != nil {
		return err
	}
	if err := validateMatrix(input.PriceMatrix); err != nil {
		return err
	}

	vehicle.Brand = brand
	vehicle.Model = model
	vehicle.Variant = strings.TrimSpace(input.Variant)
	vehicle.FuelType = strings.ToLower(strings.TrimSpace(input.FuelType))
	vehicle.ListPrice = input.ListPrice
	vehicle.MonthlyRate = input.MonthlyRate
	vehicle.Categories = categories
	vehicle.PriceMatrix = input.PriceMatrix
	vehicle.ImageURL = strings.TrimSpace(input.ImageURL)

	if len(vehicle.PriceMatrix) == 0 && vehicle.HasCategory(models.CategorySalary) && vehicle.MonthlyRate > 0 && s.settings != nil {
		factors, err := s.settings.SalaryPriceFactors(ctx)
		if err != nil {
			return err
		}
		vehicle.PriceMatrix = factors.Apply(vehicle.MonthlyRate)
	}
	return nil
}

func normalizeCategories(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, invalid("categories", "must contain at least one category")
	}
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.ToLower(strings.TrimSpace(c))
		if !slices.Contains(models.KnownCategories, c) {
			return nil, invalid("categories", fmt.Sprintf("contains unknown category %q", c))
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func validateMatrix(matrix models.PriceMatrix) error {
	for duration, row := range matrix {
		if n, err := strconv.Atoi(duration); err != nil || n <= 0 {
			return invalid("price_matrix", fmt.Sprintf("has invalid duration %q", duration))
		}
		for mileage, rate := range row {
			if n, err := strconv.Atoi(mileage); err != nil || n <= 0 {
				return invalid("price_matrix", fmt.Sprintf("has invalid mileage %q", mileage))
			}
			if rate <= 0 {
				return invalid("price_matrix", "rates must be positive")
			}
		}
	}
	return nil
}
