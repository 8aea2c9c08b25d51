package service

import (
	"fmt"
	"strings"

	"github.com/vilonda/portal/config"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/roles"
	"golang.org/x/crypto/bcrypt"
)

// accountInput is the common shape of every account creation path.
type accountInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      roles.Role
	CompanyID *string
	BrokerID  *string
}

// newAccount validates input and returns an unsaved user with a hashed password.
func newAccount(cfg *config.PortalConfig, in accountInput) (*models.User, error) {
	email, err := validateEmail("email", in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(cfg, in.Password); err != nil {
		return nil, err
	}
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	if firstName == "" && lastName == "" {
		return nil, invalid("name", "is required")
	}
	portal, ok := in.Role.Portal()
	if !ok {
		return nil, invalid("role", "is not a known role")
	}

	hashed, err := hashPassword(cfg, in.Password)
	if err != nil {
		return nil, err
	}

	return &models.User{
		Email:     email,
		Password:  hashed,
		FirstName: firstName,
		LastName:  lastName,
		Phone:     strings.TrimSpace(in.Phone),
		Role:      in.Role,
		Portal:    portal,
		IsActive:  true,
		CompanyID: in.CompanyID,
		BrokerID:  in.BrokerID,
	}, nil
}

func validatePassword(cfg *config.PortalConfig, password string) error {
	minLength := cfg.PasswordMinLength
	if minLength <= 0 {
		minLength = 8
	}
	if len(password) < minLength {
		return invalid("password", fmt.Sprintf("must be at least %d characters", minLength))
	}
	if len(password) > 72 {
		return invalid("password", "must be at most 72 bytes")
	}
	return nil
}

func hashPassword(cfg *config.PortalConfig, password string) (string, error) {
	cost := cfg.BCryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}
