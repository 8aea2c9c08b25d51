package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/vilonda/portal/internal/models"
	"gorm.io/gorm"
)

// ErrVATTaken reports an insert that collided with an existing company's VAT id.
var ErrVATTaken = errors.New("company with this VAT id already exists")

// CompanyRepository handles company persistence.
type CompanyRepository struct {
	db *gorm.DB
}

// NewCompanyRepository constructs a new repository instance.
func NewCompanyRepository(db *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *CompanyRepository) WithTx(tx *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: tx}
}

// Transaction runs fn inside a database transaction.
func (r *CompanyRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Create persists a new company.
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	err := r.db.WithContext(ctx).Create(company).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrVATTaken
	}
	return err
}

// Update saves an existing company.
func (r *CompanyRepository) Update(ctx context.Context, company *models.Company) error {
	return r.db.WithContext(ctx).Save(company).Error
}

// GetByID fetches a company.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*models.Company, error) {
	var company models.Company
	err := r.db.WithContext(ctx).First(&company, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

// GetByVATID fetches a company by its VAT identifier.
func (r *CompanyRepository) GetByVATID(ctx context.Context, vatID string) (*models.Company, error) {
	var company models.Company
	err := r.db.WithContext(ctx).First(&company, "vat_id = ?", strings.ToUpper(strings.TrimSpace(vatID))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

// List returns all companies ordered by name, optionally restricted to one referring broker.
func (r *CompanyRepository) List(ctx context.Context, brokerID *string) ([]*models.Company, error) {
	var companies []*models.Company
	query := r.db.WithContext(ctx).Model(&models.Company{})
	if brokerID != nil {
		query = query.Where("broker_id = ?", *brokerID)
	}
	if err := query.Order("name ASC").Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

// SetActive toggles the active flag of a company.
func (r *CompanyRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.db.WithContext(ctx).Model(&models.Company{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}
