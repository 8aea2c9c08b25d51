package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vilonda/portal/config"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is locked due to too many failed attempts")
	ErrAccountInactive    = errors.New("account is not active")
	ErrUserExists         = repository.ErrEmailTaken
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AuthenticationService handles authentication and account administration.
type AuthenticationService struct {
	userRepo      *repository.UserRepository
	verifications *VerificationService
	config        *config.PortalConfig
	logger        *zap.Logger
	now           func() time.Time
}

// BootstrapAdminInput describes the desired bootstrap configuration for the root administrator.
type BootstrapAdminInput struct {
	AdminEmail         string
	AdminPassword      string
	AdminFirstName     string
	AdminLastName      string
	ForcePasswordReset bool
}

// TokenClaims is the portal-specific content of an access token.
type TokenClaims struct {
	UserID    string
	Email     string
	Role      roles.Role
	CompanyID string
	BrokerID  string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
	NotBefore time.Time
}

// Session converts the claims into a request session.
func (c *TokenClaims) Session() *session.Session {
	return &session.Session{
		UserID:    c.UserID,
		Email:     c.Email,
		Role:      c.Role,
		CompanyID: c.CompanyID,
		BrokerID:  c.BrokerID,
	}
}

// NewAuthenticationService creates a new auth service
func NewAuthenticationService(userRepo *repository.UserRepository, verifications *VerificationService, cfg *config.PortalConfig, logger *zap.Logger) *AuthenticationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthenticationService{
		userRepo:      userRepo,
		verifications: verifications,
		config:        cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// BootstrapDefaultAdmin ensures the configured administrator account exists.
func (s *AuthenticationService) BootstrapDefaultAdmin(ctx context.Context) (*models.User, error) {
	return s.BootstrapAdmin(ctx, &BootstrapAdminInput{
		AdminEmail:     s.config.BootstrapAdminEmail,
		AdminPassword:  s.config.BootstrapAdminPassword,
		AdminFirstName: s.config.BootstrapAdminFirstName,
		AdminLastName:  s.config.BootstrapAdminLastName,
	})
}

// BootstrapAdmin performs bootstrap/rotation based on the provided input.
func (s *AuthenticationService) BootstrapAdmin(ctx context.Context, input *BootstrapAdminInput) (*models.User, error) {
	if s == nil || s.userRepo == nil || s.config == nil {
		return nil, fmt.Errorf("authentication service not initialised for bootstrap")
	}
	if input == nil {
		return nil, fmt.Errorf("bootstrap input is required")
	}

	email, err := validateEmail("admin email", input.AdminEmail)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(s.config, input.AdminPassword); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup admin user: %w", err)
	}

	if user == nil {
		firstName := strings.TrimSpace(input.AdminFirstName)
		if firstName == "" {
			firstName = "System"
		}
		lastName := strings.TrimSpace(input.AdminLastName)
		if lastName == "" {
			lastName = "Administrator"
		}

		user, err = newAccount(s.config, accountInput{
			Email:     email,
			Password:  input.AdminPassword,
			FirstName: firstName,
			LastName:  lastName,
			Role:      roles.Admin,
		})
		if err != nil {
			return nil, err
		}
		user.IsVerified = true
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create admin user: %w", err)
		}
		return user, nil
	}

	if name := strings.TrimSpace(input.AdminFirstName); name != "" {
		user.FirstName = name
	}
	if name := strings.TrimSpace(input.AdminLastName); name != "" {
		user.LastName = name
	}
	user.Role = roles.Admin
	user.Portal = roles.PortalAdmin
	user.IsActive = true
	user.IsVerified = true
	user.LoginAttempts = 0
	user.LockedUntil = nil

	needPasswordUpdate := input.ForcePasswordReset
	if !needPasswordUpdate {
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.AdminPassword)); err != nil {
			needPasswordUpdate = true
		}
	}
	if needPasswordUpdate {
		hashed, err := hashPassword(s.config, input.AdminPassword)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update admin user: %w", err)
	}
	return user, nil
}

// Login authenticates a user and returns tokens
func (s *AuthenticationService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	// Check if account is locked
	if user.LockedUntil != nil && user.LockedUntil.After(s.now()) {
		return nil, ErrAccountLocked
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		if err := s.userRepo.IncrementLoginAttempts(ctx, user.ID); err != nil {
			s.logger.Warn("Failed to record login attempt", zap.String("user_id", user.ID), zap.Error(err))
		}

		if user.LoginAttempts+1 >= s.config.MaxLoginAttempts {
			lockUntil := s.now().Add(s.config.LockoutDuration)
			if err := s.userRepo.LockAccount(ctx, user.ID, lockUntil); err != nil {
				s.logger.Warn("Failed to lock account", zap.String("user_id", user.ID), zap.Error(err))
			}
		}

		return nil, ErrInvalidCredentials
	}

	response, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	// Update last login and reset login attempts
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("Failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return response, nil
}

// RegisterCustomer creates a private customer account and sends a verification code.
func (s *AuthenticationService) RegisterCustomer(ctx context.Context, req *models.RegisterRequest) (*models.User, bool, error) {
	if req == nil {
		return nil, false, fmt.Errorf("input required")
	}
	user, err := s.createAccount(ctx, accountInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      roles.Customer,
	})
	if err != nil {
		return nil, false, err
	}

	sent := false
	if s.verifications != nil {
		sent, err = s.verifications.Issue(ctx, user)
		if err != nil {
			return nil, false, err
		}
	}
	return user, sent, nil
}

// CreateUser provisions an account of any role. Only administrators may call it.
func (s *AuthenticationService) CreateUser(ctx context.Context, actor *session.Session, input *models.CreateUserInput) (*models.User, error) {
	if !actor.Can(roles.ManageUsers) {
		return nil, ErrForbidden
	}
	if input == nil {
		return nil, fmt.Errorf("input required")
	}
	if !input.Role.Valid() {
		return nil, invalid("role", "is not a known role")
	}
	if input.Role == roles.Employer || input.Role == roles.Employee {
		if input.CompanyID == nil || strings.TrimSpace(*input.CompanyID) == "" {
			return nil, invalid("company_id", "is required for company accounts")
		}
	}

	user, err := s.createAccount(ctx, accountInput{
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      input.Role,
		CompanyID: input.CompanyID,
	})
	if err != nil {
		return nil, err
	}
	if s.verifications != nil {
		if _, err := s.verifications.Issue(ctx, user); err != nil {
			s.logger.Warn("Failed to issue verification", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

func (s *AuthenticationService) createAccount(ctx context.Context, in accountInput) (*models.User, error) {
	user, err := newAccount(s.config, in)
	if err != nil {
		return nil, err
	}
	exists, err := s.userRepo.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SetUserRole changes the role of an account and keeps its portal in sync.
func (s *AuthenticationService) SetUserRole(ctx context.Context, actor *session.Session, userID string, role roles.Role) (*models.User, error) {
	if !actor.Can(roles.ManageUsers) {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, invalid("role", "is not a known role")
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.ID == actor.UserID && role != roles.Admin {
		return nil, invalid("role", "administrators cannot demote themselves")
	}

	portal, _ := role.Portal()
	user.Role = role
	user.Portal = portal
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user role: %w", err)
	}
	return user, nil
}

// DeactivateUser disables an account.
func (s *AuthenticationService) DeactivateUser(ctx context.Context, actor *session.Session, userID string) error {
	if !actor.Can(roles.ManageUsers) {
		return ErrForbidden
	}
	if userID == actor.UserID {
		return invalid("user_id", "administrators cannot deactivate themselves")
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.userRepo.SetActive(ctx, userID, false)
}

// RefreshToken validates a refresh token and returns new tokens
func (s *AuthenticationService) RefreshToken(ctx context.Context, refreshToken string) (*models.LoginResponse, error) {
	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidToken
	}

	return s.issueTokens(user)
}

// ValidateToken validates an access token and returns its claims.
func (s *AuthenticationService) ValidateToken(tokenString string) (*TokenClaims, error) {
	return s.parseToken(tokenString, tokenTypeAccess)
}

// IntrospectToken validates an access or refresh token.
func (s *AuthenticationService) IntrospectToken(tokenString string) (*TokenClaims, error) {
	return s.parseToken(tokenString, "")
}

func (s *AuthenticationService) issueTokens(user *models.User) (*models.LoginResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.config.TokenExpiration.Seconds()),
		TokenType:    "Bearer",
		User:         user.ToUserInfo(),
	}, nil
}

// generateAccessToken generates a JWT access token carrying the role context.
func (s *AuthenticationService) generateAccessToken(user *models.User) (string, error) {
	now := s.now()
	expiresAt := now.Add(s.config.TokenExpiration)

	claims := jwt.MapClaims{
		"iss":     s.config.ServiceName,
		"sub":     user.ID,
		"aud":     []string{s.config.ServiceName},
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
		"jti":     uuid.NewString(),
		"type":    tokenTypeAccess,
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role.String(),
	}
	if user.CompanyID != nil {
		claims["company_id"] = *user.CompanyID
	}
	if user.BrokerID != nil {
		claims["broker_id"] = *user.BrokerID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateRefreshToken generates a JWT refresh token
func (s *AuthenticationService) generateRefreshToken(user *models.User) (string, error) {
	now := s.now()
	expiresAt := now.Add(s.config.RefreshExpiration)

	claims := jwt.MapClaims{
		"iss":     s.config.ServiceName,
		"sub":     user.ID,
		"aud":     []string{s.config.ServiceName},
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
		"jti":     uuid.NewString(),
		"type":    tokenTypeRefresh,
		"user_id": user.ID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// parseToken verifies signature and expiry. An empty wantType accepts any token type.
func (s *AuthenticationService) parseToken(tokenString, wantType string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithAudience(s.config.ServiceName))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	tokenType, _ := claims["type"].(string)
	if tokenType == "" || (wantType != "" && tokenType != wantType) {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	out := &TokenClaims{UserID: userID, TokenType: tokenType}
	out.Email, _ = claims["email"].(string)
	out.CompanyID, _ = claims["company_id"].(string)
	out.BrokerID, _ = claims["broker_id"].(string)

	if tokenType == tokenTypeAccess {
		rawRole, _ := claims["role"].(string)
		role, err := roles.Parse(rawRole)
		if err != nil {
			return nil, ErrInvalidToken
		}
		out.Role = role
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if nbf, err := claims.GetNotBefore(); err == nil && nbf != nil {
		out.NotBefore = nbf.Time
	}
	return out, nil
}

// GetUserByID retrieves a user by id.
func (s *AuthenticationService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetUserInfoByID retrieves the public projection of a user.
func (s *AuthenticationService) GetUserInfoByID(ctx context.Context, id string) (*models.UserInfo, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return user.ToUserInfo(), nil
}

// ListUsers retrieves a paginated list of users, optionally narrowed to one role.
func (s *AuthenticationService) ListUsers(ctx context.Context, actor *session.Session, role *roles.Role, offset, limit int) ([]*models.UserInfo, int64, error) {
	if !actor.Can(roles.ManageUsers) {
		return nil, 0, ErrForbidden
	}
	users, total, err := s.userRepo.List(ctx, role, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	infos := make([]*models.UserInfo, 0, len(users))
	for _, user := range users {
		if user == nil {
			continue
		}
		infos = append(infos, user.ToUserInfo())
	}
	return infos, total, nil
}
