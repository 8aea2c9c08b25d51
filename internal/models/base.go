package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Record holds the identifier and timestamps shared by every collection.
type Record struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random identifier when none was set.
func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// All returns every model managed by the portal, in migration order.
func All() []any {
	return []any{
		&Company{},
		&User{},
		&Broker{},
		&BrokerAllocation{},
		&BrokerInvite{},
		&Verification{},
		&Vehicle{},
		&VehicleRequest{},
		&Setting{},
	}
}
