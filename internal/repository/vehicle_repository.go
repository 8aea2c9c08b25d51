package repository

import (
	"context"
	"errors"

	"github.com/vilonda/portal/internal/models"
	"gorm.io/gorm"
)

// VehicleRepository handles the vehicle catalog and lease requests.
type VehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository constructs a new repository instance.
func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// Create persists a vehicle.
func (r *VehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}

// Update saves a vehicle.
func (r *VehicleRepository) Update(ctx context.Context, vehicle *models.Vehicle) error {
	return r.db.WithContext(ctx).Save(vehicle).Error
}

// UpdatePriceMatrix replaces only the price matrix of a vehicle.
func (r *VehicleRepository) UpdatePriceMatrix(ctx context.Context, id string, matrix models.PriceMatrix) error {
	return r.db.WithContext(ctx).Model(&models.Vehicle{Record: models.Record{ID: id}}).
		Select("price_matrix").
		Updates(&models.Vehicle{PriceMatrix: matrix}).Error
}

// SetActive toggles catalog visibility of a vehicle.
func (r *VehicleRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.db.WithContext(ctx).Model(&models.Vehicle{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

// GetByID fetches a vehicle.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).First(&vehicle, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vehicle, nil
}

// List returns vehicles matching filter ordered by brand and model. Category filtering
// happens in memory because categories are stored as a JSON array.
func (r *VehicleRepository) List(ctx context.Context, filter models.VehicleFilter) ([]*models.Vehicle, error) {
	var vehicles []*models.Vehicle
	query := r.db.WithContext(ctx).Model(&models.Vehicle{})
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("brand ASC, model ASC").Find(&vehicles).Error; err != nil {
		return nil, err
	}
	if filter.Category == "" {
		return vehicles, nil
	}
	out := vehicles[:0]
	for _, v := range vehicles {
		if v.HasCategory(filter.Category) {
			out = append(out, v)
		}
	}
	return out, nil
}

// CreateRequest persists a vehicle request.
func (r *VehicleRepository) CreateRequest(ctx context.Context, req *models.VehicleRequest) error {
	return r.db.WithContext(ctx).Omit("Vehicle").Create(req).Error
}

// GetRequestByID fetches a vehicle request with its vehicle.
func (r *VehicleRepository) GetRequestByID(ctx context.Context, id string) (*models.VehicleRequest, error) {
	var req models.VehicleRequest
	err := r.db.WithContext(ctx).Preload("Vehicle").First(&req, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// RequestQuery narrows request listings.
type RequestQuery struct {
	UserID    *string
	CompanyID *string
	Status    *models.VehicleRequestStatus
}

// ListRequests returns requests newest first.
func (r *VehicleRepository) ListRequests(ctx context.Context, q RequestQuery) ([]*models.VehicleRequest, error) {
	var requests []*models.VehicleRequest
	query := r.db.WithContext(ctx).Preload("Vehicle")
	if q.UserID != nil {
		query = query.Where("user_id = ?", *q.UserID)
	}
	if q.CompanyID != nil {
		query = query.Where("company_id = ?", *q.CompanyID)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	err := query.Order("created_at DESC").Find(&requests).Error
	return requests, err
}

// TransitionRequest moves a pending request to status. It reports false when the
// request was no longer pending.
func (r *VehicleRepository) TransitionRequest(ctx context.Context, id string, status models.VehicleRequestStatus, decidedBy *string, note string) (bool, error) {
	updates := map[string]any{"status": status}
	if decidedBy != nil {
		updates["decided_by"] = *decidedBy
	}
	if note != "" {
		updates["note"] = note
	}
	result := r.db.WithContext(ctx).Model(&models.VehicleRequest{}).
		Where("id = ? AND status = ?", id, models.VehicleRequestPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
