package models

import (
	"time"

	"github.com/vilonda/portal/internal/roles"
)

// User represents a portal account
type User struct {
	Record
	Email      string       `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string       `gorm:"not null" json:"-"` // Never expose password in JSON
	FirstName  string       `gorm:"size:128" json:"first_name"`
	LastName   string       `gorm:"size:128" json:"last_name"`
	Phone      string       `gorm:"size:64" json:"phone,omitempty"`
	Role       roles.Role   `gorm:"size:32;index;not null" json:"role"`
	Portal     roles.Portal `gorm:"size:32" json:"portal"`
	IsActive   bool         `gorm:"default:true" json:"is_active"`
	IsVerified bool         `gorm:"default:false" json:"is_verified"`

	CompanyID *string  `gorm:"type:varchar(36);index" json:"company_id,omitempty"`
	Company   *Company `gorm:"constraint:OnDelete:SET NULL" json:"company,omitempty"`
	BrokerID  *string  `gorm:"type:varchar(36);index" json:"broker_id,omitempty"`

	// Security fields
	LastLogin     *time.Time `json:"last_login,omitempty"`
	LoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil   *time.Time `json:"-"`
}

// ToUserInfo converts User to UserInfo
func (u *User) ToUserInfo() *UserInfo {
	info := &UserInfo{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       u.Role,
		Portal:     u.Portal,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		CompanyID:  u.CompanyID,
		BrokerID:   u.BrokerID,
	}
	if u.Company != nil {
		info.CompanyName = u.Company.Name
	}
	return info
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
