package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/roles"
	"gorm.io/gorm"
)

// ErrEmailTaken reports an insert that collided with an existing account's email.
var ErrEmailTaken = errors.New("user already exists")

// UserRepository handles database operations for users
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Company")
}

// WithTx returns a repository bound to the supplied transaction.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Create creates a new user in the database
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.baseQuery(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.baseQuery(ctx).First(&user, "email = ?", normalizeEmail(email)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Update updates a user in the database
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Omit("Company").Save(user).Error
}

// SetRole changes the role of a user.
func (r *UserRepository) SetRole(ctx context.Context, userID string, role roles.Role) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("role", role).Error
}

// SetActive toggles the active flag of a user.
func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_active", active).Error
}

// MarkVerified flags the user's email as confirmed.
func (r *UserRepository) MarkVerified(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_verified", true).Error
}

// UpdateLastLogin updates the last login timestamp for a user
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login":     now,
			"login_attempts": 0,
			"locked_until":   nil,
		}).Error
}

// IncrementLoginAttempts increments the login attempts counter
func (r *UserRepository) IncrementLoginAttempts(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("login_attempts", gorm.Expr("login_attempts + ?", 1)).
		Error
}

// LockAccount locks a user account until the specified time
func (r *UserRepository) LockAccount(ctx context.Context, userID string, until time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("locked_until", until).
		Error
}

// List retrieves users with pagination
func (r *UserRepository) List(ctx context.Context, role *roles.Role, offset, limit int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	count := r.db.WithContext(ctx).Model(&models.User{})
	query := r.baseQuery(ctx).Order("created_at ASC")
	if role != nil {
		count = count.Where("role = ?", *role)
		query = query.Where("role = ?", *role)
	}

	if err := count.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// ListByCompany returns all accounts attached to a company.
func (r *UserRepository) ListByCompany(ctx context.Context, companyID string, role *roles.Role) ([]*models.User, error) {
	var users []*models.User
	query := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if role != nil {
		query = query.Where("role = ?", *role)
	}
	err := query.Order("last_name ASC, first_name ASC").Find(&users).Error
	return users, err
}

// ExistsByEmail checks if a user with the given email exists
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", normalizeEmail(email)).Count(&count).Error
	return count > 0, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
