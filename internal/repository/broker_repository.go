package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vilonda/portal/internal/commission"
	"github.com/vilonda/portal/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrLedgerConflict reports that a broker ledger changed between read and write.
var ErrLedgerConflict = errors.New("broker ledger was modified concurrently")

// BrokerRepository handles brokers, their commission ledgers, and invitations.
type BrokerRepository struct {
	db *gorm.DB
}

// NewBrokerRepository constructs a new repository instance.
func NewBrokerRepository(db *gorm.DB) *BrokerRepository {
	return &BrokerRepository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *BrokerRepository) WithTx(tx *gorm.DB) *BrokerRepository {
	return &BrokerRepository{db: tx}
}

// Transaction runs fn inside a database transaction.
func (r *BrokerRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Create persists a new broker.
func (r *BrokerRepository) Create(ctx context.Context, broker *models.Broker) error {
	return r.db.WithContext(ctx).Omit("Allocations").Create(broker).Error
}

// GetByID fetches a broker together with its ledger allocations.
func (r *BrokerRepository) GetByID(ctx context.Context, id string) (*models.Broker, error) {
	var broker models.Broker
	err := r.db.WithContext(ctx).
		Preload("Allocations").
		First(&broker, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &broker, nil
}

// GetByUserID fetches the broker owned by a user account.
func (r *BrokerRepository) GetByUserID(ctx context.Context, userID string) (*models.Broker, error) {
	var broker models.Broker
	err := r.db.WithContext(ctx).
		Preload("Allocations").
		First(&broker, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &broker, nil
}

// ListChildren returns the direct sub-brokers of a broker.
func (r *BrokerRepository) ListChildren(ctx context.Context, parentID string) ([]*models.Broker, error) {
	var brokers []*models.Broker
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("display_name ASC").
		Find(&brokers).Error
	return brokers, err
}

// ListRoots returns brokers without a parent.
func (r *BrokerRepository) ListRoots(ctx context.Context) ([]*models.Broker, error) {
	var brokers []*models.Broker
	err := r.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Order("display_name ASC").
		Find(&brokers).Error
	return brokers, err
}

// SaveLedger writes ledger if the broker's ledger version still equals expectedVersion.
// The scalar fields and the allocation rows are written together; the caller is
// expected to run this inside a transaction when it must be atomic with other writes.
func (r *BrokerRepository) SaveLedger(ctx context.Context, brokerID string, expectedVersion int64, ledger commission.Ledger) error {
	if err := ledger.Check(); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Model(&models.Broker{}).
		Where("id = ? AND ledger_version = ?", brokerID, expectedVersion).
		Updates(map[string]any{
			"original_commission":  ledger.OriginalCommission,
			"available_commission": ledger.AvailableCommission,
			"ledger_version":       gorm.Expr("ledger_version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLedgerConflict
	}

	if len(ledger.SubBrokerCommissions) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]models.BrokerAllocation, 0, len(ledger.SubBrokerCommissions))
	for subBrokerID, amount := range ledger.SubBrokerCommissions {
		rows = append(rows, models.BrokerAllocation{
			BrokerID:    brokerID,
			SubBrokerID: subBrokerID,
			Commission:  amount,
			UpdatedAt:   now,
		})
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "broker_id"}, {Name: "sub_broker_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"commission", "updated_at"}),
	}).Create(&rows).Error
}

// DeleteAllocation removes one entry of a broker's mapping. The entry must already be zero.
func (r *BrokerRepository) DeleteAllocation(ctx context.Context, brokerID, subBrokerID string) error {
	return r.db.WithContext(ctx).
		Where("broker_id = ? AND sub_broker_id = ? AND commission = 0", brokerID, subBrokerID).
		Delete(&models.BrokerAllocation{}).Error
}

// SetStatus changes the onboarding state of a broker.
func (r *BrokerRepository) SetStatus(ctx context.Context, id string, status models.BrokerStatus) error {
	return r.db.WithContext(ctx).Model(&models.Broker{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// Activate links the broker to its user account and marks it active.
func (r *BrokerRepository) Activate(ctx context.Context, id, userID string) error {
	return r.db.WithContext(ctx).Model(&models.Broker{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"user_id": userID,
			"status":  models.BrokerStatusActive,
		}).Error
}

// CreateInvite persists a broker invitation.
func (r *BrokerRepository) CreateInvite(ctx context.Context, invite *models.BrokerInvite) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

// GetInviteByToken fetches an invitation by its secret token.
func (r *BrokerRepository) GetInviteByToken(ctx context.Context, token string) (*models.BrokerInvite, error) {
	var invite models.BrokerInvite
	err := r.db.WithContext(ctx).First(&invite, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invite, nil
}

// GetInviteByID fetches an invitation.
func (r *BrokerRepository) GetInviteByID(ctx context.Context, id string) (*models.BrokerInvite, error) {
	var invite models.BrokerInvite
	err := r.db.WithContext(ctx).First(&invite, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invite, nil
}

// ListInvites returns invitations issued by a broker, newest first.
func (r *BrokerRepository) ListInvites(ctx context.Context, parentID string) ([]*models.BrokerInvite, error) {
	var invites []*models.BrokerInvite
	err := r.db.WithContext(ctx).
		Where("parent_broker_id = ?", parentID).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, err
}

// UpdateInviteStatus moves a pending invitation to status. It reports false when the
// invitation was no longer pending.
func (r *BrokerRepository) UpdateInviteStatus(ctx context.Context, id string, status models.InviteStatus, at *time.Time) (bool, error) {
	updates := map[string]any{"status": status}
	if at != nil {
		updates["accepted_at"] = *at
	}
	result := r.db.WithContext(ctx).Model(&models.BrokerInvite{}).
		Where("id = ? AND status = ?", id, models.InviteStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
