package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/vilonda/portal/config"
	"github.com/vilonda/portal/internal/mail"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/session"
)

var (
	ErrVerificationInvalid = errors.New("verification code is invalid or expired")
	ErrAlreadyVerified     = errors.New("account is already verified")
)

const verificationCodeDigits = 6

// VerificationService issues and confirms email verification codes.
type VerificationService struct {
	repo      *repository.VerificationRepository
	users     *repository.UserRepository
	notify    Notifier
	templates mail.Templates
	ttl       time.Duration
	now       func() time.Time
}

// NewVerificationService constructs the service.
func NewVerificationService(repo *repository.VerificationRepository, users *repository.UserRepository, cfg *config.PortalConfig, templates mail.Templates, n Notifier) *VerificationService {
	ttl := cfg.VerificationTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &VerificationService{
		repo:      repo,
		users:     users,
		notify:    n,
		templates: templates,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue stores a fresh code for user and emails it. The boolean reports whether the
// email was accepted by the mail provider.
func (s *VerificationService) Issue(ctx context.Context, user *models.User) (bool, error) {
	if user == nil {
		return false, fmt.Errorf("user is required")
	}
	code, err := generateCode(verificationCodeDigits)
	if err != nil {
		return false, err
	}
	v := &models.Verification{
		UserID:    user.ID,
		Email:     user.Email,
		Code:      code,
		Purpose:   models.VerificationEmail,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return false, fmt.Errorf("store verification: %w", err)
	}

	sent := s.notify.send(ctx, mail.Message{
		Template:   mail.TemplateVerification,
		TemplateID: s.templates.Verification,
		To:         mail.Recipient{Email: user.Email, Name: user.FullName()},
		Params: map[string]any{
			"code":      code,
			"firstName": user.FirstName,
			"expiresIn": int(s.ttl.Minutes()),
		},
	})
	return sent, nil
}

// Resend issues a new code for the calling account.
func (s *VerificationService) Resend(ctx context.Context, sess *session.Session) (bool, error) {
	if sess == nil {
		return false, session.ErrNoSession
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, ErrUserNotFound
	}
	if user.IsVerified {
		return false, ErrAlreadyVerified
	}
	return s.Issue(ctx, user)
}

// Confirm checks code against the newest pending code of the account and marks the
// account verified.
func (s *VerificationService) Confirm(ctx context.Context, email, code string) error {
	code = strings.TrimSpace(code)
	if err := required("code", code); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrVerificationInvalid
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	v, err := s.repo.GetLatest(ctx, user.ID, models.VerificationEmail)
	if err != nil {
		return err
	}
	now := s.now()
	if v == nil || now.After(v.ExpiresAt) || subtle.ConstantTimeCompare([]byte(v.Code), []byte(code)) != 1 {
		return ErrVerificationInvalid
	}

	consumed, err := s.repo.Consume(ctx, v.ID, now)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrVerificationInvalid
	}
	return s.users.MarkVerified(ctx, user.ID)
}

func generateCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
