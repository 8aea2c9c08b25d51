package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vilonda/portal/config"
	"github.com/vilonda/portal/internal/commission"
	"github.com/vilonda/portal/internal/mail"
	"github.com/vilonda/portal/internal/metrics"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrBrokerNotFound   = errors.New("broker not found")
	ErrBrokerInactive   = errors.New("broker is not active")
	ErrNotDirectChild   = errors.New("broker is not a direct sub-broker")
	ErrInviteNotFound   = errors.New("invitation not found")
	ErrInviteExpired    = errors.New("invitation has expired")
	ErrInviteNotPending = errors.New("invitation is no longer pending")
	ErrBrokerLinked     = errors.New("user already owns a broker")
)

const inviteTokenBytes = 32

// BrokerService manages the broker hierarchy and its commission ledgers.
type BrokerService struct {
	brokers   *repository.BrokerRepository
	users     *repository.UserRepository
	notify    Notifier
	templates mail.Templates
	config    *config.PortalConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	// afterLedgerRead, when set, runs between reading ledgers and writing them back.
	afterLedgerRead func()
}

// NewBrokerService constructs the service.
func NewBrokerService(
	brokers *repository.BrokerRepository,
	users *repository.UserRepository,
	n Notifier,
	templates mail.Templates,
	cfg *config.PortalConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *BrokerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrokerService{
		brokers:   brokers,
		users:     users,
		notify:    n,
		templates: templates,
		config:    cfg,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateRootBroker provisions a top-level broker holding commission granted by the platform.
func (s *BrokerService) CreateRootBroker(ctx context.Context, actor *session.Session, input *models.CreateRootBrokerInput) (*models.Broker, error) {
	if !actor.Can(roles.ManageRootBrokers) {
		return nil, ErrForbidden
	}
	if input == nil {
		return nil, fmt.Errorf("input required")
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, invalid("display_name", "is required")
	}
	email, err := validateEmail("email", input.Email)
	if err != nil {
		return nil, err
	}
	amount, err := commission.ParseAmount(input.Commission)
	if err != nil {
		return nil, err
	}

	broker := &models.Broker{
		DisplayName:         displayName,
		Email:               email,
		Status:              models.BrokerStatusActive,
		OriginalCommission:  amount,
		AvailableCommission: amount,
	}

	err = s.brokers.Transaction(ctx, func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		var owner *models.User
		if input.UserID != nil && strings.TrimSpace(*input.UserID) != "" {
			found, err := users.GetByID(ctx, strings.TrimSpace(*input.UserID))
			if err != nil {
				return err
			}
			owner = found
			if owner == nil {
				return ErrUserNotFound
			}
			if owner.Role != roles.Broker {
				return invalid("user_id", "must belong to a broker account")
			}
			if owner.BrokerID != nil {
				return ErrBrokerLinked
			}
			broker.UserID = &owner.ID
		}

		if err := s.brokers.WithTx(tx).Create(ctx, broker); err != nil {
			return fmt.Errorf("create broker: %w", err)
		}
		if owner != nil {
			owner.BrokerID = &broker.ID
			if err := users.Update(ctx, owner); err != nil {
				return fmt.Errorf("link broker user: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return broker, nil
}

// InviteSubBroker allocates commission to a new sub-broker of parentID and invites it by
// email. The allocation, the pending sub-broker and the invitation are written in one
// transaction; the email is sent after commit and its failure only flags the result.
func (s *BrokerService) InviteSubBroker(ctx context.Context, actor *session.Session, parentID string, input *models.InviteSubBrokerInput) (*models.InviteResult, error) {
	if !actor.Can(roles.InviteSubBrokers) {
		return nil, ErrForbidden
	}
	parentID, err := s.actingBroker(actor, parentID)
	if err != nil {
		return nil, err
	}
	if input == nil {
		return nil, fmt.Errorf("input required")
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, invalid("display_name", "is required")
	}
	email, err := validateEmail("email", input.Email)
	if err != nil {
		return nil, err
	}
	amount, err := commission.ParseAmount(input.Commission)
	if err != nil {
		s.metrics.ObserveAllocation(metrics.AllocationInvalid)
		return nil, err
	}
	token, err := newInviteToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	child := &models.Broker{
		Record:              models.Record{ID: models.NewID()},
		ParentID:            &parentID,
		DisplayName:         displayName,
		Email:               email,
		Status:              models.BrokerStatusPending,
		OriginalCommission:  amount,
		AvailableCommission: amount,
	}
	invite := &models.BrokerInvite{
		ParentBrokerID:  parentID,
		InvitedBrokerID: child.ID,
		Email:           email,
		Token:           token,
		Commission:      amount,
		Status:          models.InviteStatusPending,
		ExpiresAt:       now.Add(s.inviteTTL()),
	}

	var parent *models.Broker
	err = s.brokers.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.brokers.WithTx(tx)
		current, err := repo.GetByID(ctx, parentID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrBrokerNotFound
		}
		if !current.IsActive() {
			return ErrBrokerInactive
		}
		parent = current

		next, err := commission.Allocate(parent.Ledger(), child.ID, amount)
		if err != nil {
			return err
		}
		if err := repo.SaveLedger(ctx, parent.ID, parent.LedgerVersion, next); err != nil {
			return err
		}
		if err := repo.Create(ctx, child); err != nil {
			return fmt.Errorf("create sub-broker: %w", err)
		}
		if err := repo.CreateInvite(ctx, invite); err != nil {
			return fmt.Errorf("create invitation: %w", err)
		}
		return nil
	})
	s.metrics.ObserveAllocation(allocationResult(err))
	if err != nil {
		return nil, err
	}

	sent := s.notify.send(ctx, mail.Message{
		Template:   mail.TemplateBrokerInvite,
		TemplateID: s.templates.BrokerInvite,
		To:         mail.Recipient{Email: email, Name: displayName},
		Params: map[string]any{
			"inviteUrl":   s.inviteURL(token),
			"inviterName": parent.DisplayName,
			"commission":  amount,
			"expiresAt":   invite.ExpiresAt.Format(time.RFC3339),
		},
	})

	return &models.InviteResult{Invite: invite, Broker: child, EmailSent: sent}, nil
}

// AcceptInvite creates the broker account of an invited sub-broker and activates it.
func (s *BrokerService) AcceptInvite(ctx context.Context, input *models.AcceptInviteInput) (*models.User, error) {
	if input == nil {
		return nil, fmt.Errorf("input required")
	}
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, invalid("token", "is required")
	}

	invite, err := s.brokers.GetInviteByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invite == nil {
		return nil, ErrInviteNotFound
	}
	if invite.Status != models.InviteStatusPending {
		return nil, ErrInviteNotPending
	}
	now := s.now()
	if now.After(invite.ExpiresAt) {
		return nil, ErrInviteExpired
	}

	childID := invite.InvitedBrokerID
	user, err := newAccount(s.config, accountInput{
		Email:     invite.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      roles.Broker,
		BrokerID:  &childID,
	})
	if err != nil {
		return nil, err
	}
	user.IsVerified = true

	exists, err := s.users.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	err = s.brokers.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.brokers.WithTx(tx)
		accepted, err := repo.UpdateInviteStatus(ctx, invite.ID, models.InviteStatusAccepted, &now)
		if err != nil {
			return err
		}
		if !accepted {
			return ErrInviteNotPending
		}
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return fmt.Errorf("create broker user: %w", err)
		}
		return repo.Activate(ctx, childID, user.ID)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RevokeInvite withdraws a pending invitation and releases its commission to the parent.
func (s *BrokerService) RevokeInvite(ctx context.Context, actor *session.Session, inviteID string) error {
	if !actor.Can(roles.InviteSubBrokers) {
		return ErrForbidden
	}
	invite, err := s.brokers.GetInviteByID(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite == nil {
		return ErrInviteNotFound
	}
	if !actor.IsAdmin() && actor.BrokerID != invite.ParentBrokerID {
		return ErrForbidden
	}
	if invite.Status != models.InviteStatusPending {
		return ErrInviteNotPending
	}

	err = s.brokers.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.brokers.WithTx(tx)
		revoked, err := repo.UpdateInviteStatus(ctx, invite.ID, models.InviteStatusRevoked, nil)
		if err != nil {
			return err
		}
		if !revoked {
			return ErrInviteNotPending
		}

		parent, err := repo.GetByID(ctx, invite.ParentBrokerID)
		if err != nil {
			return err
		}
		if parent == nil {
			return ErrBrokerNotFound
		}
		next, err := commission.Allocate(parent.Ledger(), invite.InvitedBrokerID, 0)
		if err != nil {
			return err
		}
		if err := repo.SaveLedger(ctx, parent.ID, parent.LedgerVersion, next); err != nil {
			return err
		}
		if err := repo.DeleteAllocation(ctx, parent.ID, invite.InvitedBrokerID); err != nil {
			return err
		}
		return repo.SetStatus(ctx, invite.InvitedBrokerID, models.BrokerStatusInactive)
	})
	s.metrics.ObserveAllocation(allocationResult(err))
	return err
}

// AllocateCommission sets the commission parentID grants to one of its direct sub-brokers.
// The amount is absolute and becomes the sub-broker's original commission, so it may not
// drop below what the sub-broker has already passed on. A concurrent change to either
// ledger makes the call fail with repository.ErrLedgerConflict; it is not retried.
func (s *BrokerService) AllocateCommission(ctx context.Context, actor *session.Session, parentID, subBrokerID string, raw json.Number) (*models.LedgerView, error) {
	if !actor.Can(roles.AllocateCommission) {
		return nil, ErrForbidden
	}
	parentID, err := s.actingBroker(actor, parentID)
	if err != nil {
		return nil, err
	}
	amount, err := commission.ParseAmount(raw)
	if err != nil {
		s.metrics.ObserveAllocation(metrics.AllocationInvalid)
		return nil, err
	}

	sub, err := s.brokers.GetByID(ctx, strings.TrimSpace(subBrokerID))
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrBrokerNotFound
	}
	if sub.ParentID == nil || *sub.ParentID != parentID {
		return nil, ErrNotDirectChild
	}
	if sub.Status == models.BrokerStatusInactive && amount > 0 {
		return nil, ErrBrokerInactive
	}

	parent, err := s.brokers.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, ErrBrokerNotFound
	}
	if !parent.IsActive() {
		return nil, ErrBrokerInactive
	}

	next, _, err := s.writeGrant(ctx, parent, sub, amount)
	s.metrics.ObserveAllocation(allocationResult(err))
	if err != nil {
		return nil, err
	}
	view := ledgerView(parent.ID, next)

	s.logger.Info("Commission allocated",
		zap.String("broker_id", parentID),
		zap.String("sub_broker_id", sub.ID),
		zap.Int64("commission", amount),
		zap.String("actor", actor.UserID),
	)
	return view, nil
}

// ReviseOriginalCommission is the administrative override of a broker's granted commission.
func (s *BrokerService) ReviseOriginalCommission(ctx context.Context, actor *session.Session, brokerID string, raw json.Number) (*models.LedgerView, error) {
	if !actor.Can(roles.ReviseCommission) {
		return nil, ErrForbidden
	}
	amount, err := commission.ParseAmount(raw)
	if err != nil {
		return nil, err
	}

	broker, err := s.brokers.GetByID(ctx, strings.TrimSpace(brokerID))
	if err != nil {
		return nil, err
	}
	if broker == nil {
		return nil, ErrBrokerNotFound
	}
	var parent *models.Broker
	if broker.ParentID != nil {
		if parent, err = s.brokers.GetByID(ctx, *broker.ParentID); err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, ErrBrokerNotFound
		}
	}

	_, next, err := s.writeGrant(ctx, parent, broker, amount)
	if err != nil {
		return nil, err
	}
	view := ledgerView(broker.ID, next)

	s.logger.Info("Original commission revised",
		zap.String("broker_id", brokerID),
		zap.Int64("commission", amount),
		zap.String("actor", actor.UserID),
	)
	return view, nil
}

// DeactivateBroker marks a broker inactive. Its ledger is kept.
func (s *BrokerService) DeactivateBroker(ctx context.Context, actor *session.Session, brokerID string) error {
	broker, err := s.loadVisible(ctx, actor, brokerID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && (broker.ParentID == nil || *broker.ParentID != actor.BrokerID) {
		return ErrForbidden
	}
	return s.brokers.SetStatus(ctx, broker.ID, models.BrokerStatusInactive)
}

// GetBroker returns a broker visible to the caller.
func (s *BrokerService) GetBroker(ctx context.Context, actor *session.Session, brokerID string) (*models.Broker, error) {
	return s.loadVisible(ctx, actor, brokerID)
}

// GetLedger returns the commission ledger of a broker.
func (s *BrokerService) GetLedger(ctx context.Context, actor *session.Session, brokerID string) (*models.LedgerView, error) {
	if !actor.Can(roles.ViewLedger) {
		return nil, ErrForbidden
	}
	broker, err := s.loadVisible(ctx, actor, brokerID)
	if err != nil {
		return nil, err
	}
	return ledgerView(broker.ID, broker.Ledger()), nil
}

// ListSubBrokers returns the direct sub-brokers of a broker.
func (s *BrokerService) ListSubBrokers(ctx context.Context, actor *session.Session, brokerID string) ([]*models.Broker, error) {
	broker, err := s.loadVisible(ctx, actor, brokerID)
	if err != nil {
		return nil, err
	}
	return s.brokers.ListChildren(ctx, broker.ID)
}

// ListRootBrokers returns the top of the hierarchy. Administrators only.
func (s *BrokerService) ListRootBrokers(ctx context.Context, actor *session.Session) ([]*models.Broker, error) {
	if !actor.Can(roles.ManageRootBrokers) {
		return nil, ErrForbidden
	}
	return s.brokers.ListRoots(ctx)
}

// ListInvites returns the invitations issued by a broker.
func (s *BrokerService) ListInvites(ctx context.Context, actor *session.Session, brokerID string) ([]*models.BrokerInvite, error) {
	broker, err := s.loadVisible(ctx, actor, brokerID)
	if err != nil {
		return nil, err
	}
	return s.brokers.ListInvites(ctx, broker.ID)
}

// loadVisible fetches a broker the caller may see: administrators see all, brokers see
// themselves and their direct sub-brokers.
func (s *BrokerService) loadVisible(ctx context.Context, actor *session.Session, brokerID string) (*models.Broker, error) {
	if actor == nil {
		return nil, session.ErrNoSession
	}
	brokerID = strings.TrimSpace(brokerID)
	if brokerID == "" {
		brokerID = actor.BrokerID
	}
	if brokerID == "" {
		return nil, ErrBrokerNotFound
	}
	broker, err := s.brokers.GetByID(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	if broker == nil {
		return nil, ErrBrokerNotFound
	}

	switch actor.Role {
	case roles.Admin:
		return broker, nil
	case roles.Broker:
		if broker.ID == actor.BrokerID {
			return broker, nil
		}
		if broker.ParentID != nil && *broker.ParentID == actor.BrokerID {
			return broker, nil
		}
		return nil, ErrForbidden
	case roles.Employer, roles.Employee, roles.Customer:
		return nil, ErrForbidden
	default:
		return nil, ErrForbidden
	}
}

// actingBroker resolves the broker a ledger operation runs for.
// writeGrant sets sub's original commission to amount and, when parent is not nil, the
// parent's allocation to sub as well. Both ledgers come from the caller's earlier read
// and are written back with compare-and-swap in one transaction, so a change to either
// since that read fails the call with repository.ErrLedgerConflict.
func (s *BrokerService) writeGrant(ctx context.Context, parent, sub *models.Broker, amount int64) (parentNext, subNext commission.Ledger, err error) {
	subNext, err = sub.Ledger().Revise(amount)
	if err != nil {
		return commission.Ledger{}, commission.Ledger{}, err
	}
	if parent != nil {
		parentNext, err = commission.Allocate(parent.Ledger(), sub.ID, amount)
		if err != nil {
			return commission.Ledger{}, commission.Ledger{}, err
		}
	}

	if s.afterLedgerRead != nil {
		s.afterLedgerRead()
	}

	err = s.brokers.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.brokers.WithTx(tx)
		if err := repo.SaveLedger(ctx, sub.ID, sub.LedgerVersion, subNext); err != nil {
			return err
		}
		if parent == nil {
			return nil
		}
		return repo.SaveLedger(ctx, parent.ID, parent.LedgerVersion, parentNext)
	})
	if err != nil {
		return commission.Ledger{}, commission.Ledger{}, err
	}
	return parentNext, subNext, nil
}

func (s *BrokerService) actingBroker(actor *session.Session, parentID string) (string, error) {
	parentID = strings.TrimSpace(parentID)
	if actor.IsAdmin() {
		if parentID == "" {
			return "", invalid("broker_id", "is required")
		}
		return parentID, nil
	}
	if actor.BrokerID == "" {
		return "", ErrForbidden
	}
	if parentID != "" && parentID != actor.BrokerID {
		return "", ErrForbidden
	}
	return actor.BrokerID, nil
}

func (s *BrokerService) inviteTTL() time.Duration {
	if s.config.InviteTTL > 0 {
		return s.config.InviteTTL
	}
	return 14 * 24 * time.Hour
}

func (s *BrokerService) inviteURL(token string) string {
	return strings.TrimRight(s.config.PublicBaseURL, "/") + "/partner/invite?token=" + url.QueryEscape(token)
}

func newInviteToken() (string, error) {
	buf := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func ledgerView(brokerID string, l commission.Ledger) *models.LedgerView {
	allocations := make(map[string]int64, len(l.SubBrokerCommissions))
	for k, v := range l.SubBrokerCommissions {
		allocations[k] = v
	}
	return &models.LedgerView{
		BrokerID:             brokerID,
		OriginalCommission:   l.OriginalCommission,
		AvailableCommission:  l.AvailableCommission,
		SubBrokerCommissions: allocations,
	}
}

func allocationResult(err error) string {
	switch {
	case err == nil:
		return metrics.AllocationOK
	case errors.Is(err, commission.ErrInsufficientCommission):
		return metrics.AllocationInsufficient
	case errors.Is(err, repository.ErrLedgerConflict):
		return metrics.AllocationConflict
	case errors.Is(err, commission.ErrInvalidAmount), errors.Is(err, ErrInvalidInput):
		return metrics.AllocationInvalid
	default:
		return metrics.AllocationError
	}
}
