package models

import (
	"encoding/json"
	"time"
)

// VerificationPurpose names what a verification code confirms.
type VerificationPurpose string

const (
	VerificationEmail VerificationPurpose = "email"
)

// Verification is a one-time code sent by email.
type Verification struct {
	Record
	UserID     string              `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Email      string              `gorm:"size:255;not null" json:"email"`
	Code       string              `gorm:"size:16;not null" json:"-"`
	Purpose    VerificationPurpose `gorm:"size:32;not null" json:"purpose"`
	ExpiresAt  time.Time           `json:"expires_at"`
	ConsumedAt *time.Time          `json:"consumed_at,omitempty"`
}

// Setting is a keyed JSON document.
type Setting struct {
	Key       string          `gorm:"size:128;primaryKey" json:"key"`
	Value     json.RawMessage `gorm:"type:text;not null;serializer:json" json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}
