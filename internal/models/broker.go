package models

import (
	"time"

	"github.com/vilonda/portal/internal/commission"
)

// BrokerStatus tracks the onboarding state of a broker.
type BrokerStatus string

const (
	BrokerStatusPending  BrokerStatus = "pending"
	BrokerStatusActive   BrokerStatus = "active"
	BrokerStatusInactive BrokerStatus = "inactive"
)

// Broker is an intermediary account holding a commission ledger.
type Broker struct {
	Record
	UserID      *string      `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	ParentID    *string      `gorm:"type:varchar(36);index" json:"parent_id,omitempty"`
	DisplayName string       `gorm:"size:255;not null" json:"display_name"`
	Email       string       `gorm:"size:255;index;not null" json:"email"`
	Status      BrokerStatus `gorm:"size:16;index;not null" json:"status"`

	OriginalCommission  int64 `gorm:"not null;default:0" json:"original_commission"`
	AvailableCommission int64 `gorm:"not null;default:0" json:"available_commission"`
	// LedgerVersion is bumped on every ledger write and guards concurrent updates.
	LedgerVersion int64 `gorm:"not null;default:0" json:"-"`

	Allocations []BrokerAllocation `gorm:"foreignKey:BrokerID;constraint:OnDelete:CASCADE" json:"allocations,omitempty"`
}

// IsActive reports whether the broker has completed onboarding and is not deactivated.
func (b *Broker) IsActive() bool {
	return b != nil && b.Status == BrokerStatusActive
}

// Ledger assembles the commission ledger from the broker row and its allocations.
func (b *Broker) Ledger() commission.Ledger {
	l := commission.Ledger{
		OriginalCommission:   b.OriginalCommission,
		AvailableCommission:  b.AvailableCommission,
		SubBrokerCommissions: make(map[string]int64, len(b.Allocations)),
	}
	for _, a := range b.Allocations {
		l.SubBrokerCommissions[a.SubBrokerID] = a.Commission
	}
	return l
}

// BrokerAllocation is one entry of a broker's sub-broker commission mapping.
type BrokerAllocation struct {
	BrokerID    string    `gorm:"type:varchar(36);primaryKey" json:"broker_id"`
	SubBrokerID string    `gorm:"type:varchar(36);primaryKey" json:"sub_broker_id"`
	Commission  int64     `gorm:"not null" json:"commission"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InviteStatus tracks a broker invitation.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRevoked  InviteStatus = "revoked"
)

// BrokerInvite is an invitation for a prospective sub-broker.
type BrokerInvite struct {
	Record
	ParentBrokerID  string       `gorm:"type:varchar(36);index;not null" json:"parent_broker_id"`
	InvitedBrokerID string       `gorm:"type:varchar(36);uniqueIndex;not null" json:"invited_broker_id"`
	Email           string       `gorm:"size:255;index;not null" json:"email"`
	Token           string       `gorm:"size:128;uniqueIndex;not null" json:"-"`
	Commission      int64        `gorm:"not null" json:"commission"`
	Status          InviteStatus `gorm:"size:16;index;not null" json:"status"`
	ExpiresAt       time.Time    `json:"expires_at"`
	AcceptedAt      *time.Time   `json:"accepted_at,omitempty"`
}
