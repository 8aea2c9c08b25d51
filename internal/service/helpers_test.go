package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vilonda/portal/config"
	"github.com/vilonda/portal/internal/database/databasetest"
	"github.com/vilonda/portal/internal/mail"
	"github.com/vilonda/portal/internal/metrics"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/session"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testPassword = "Sup3rSecret!"

type testEnv struct {
	db      *gorm.DB
	cfg     *config.PortalConfig
	mailer  *mail.Recorder
	metrics *metrics.Metrics

	users         *repository.UserRepository
	companies     *repository.CompanyRepository
	brokers       *repository.BrokerRepository
	vehicles      *repository.VehicleRepository
	verifications *repository.VerificationRepository
	settings      *repository.SettingsRepository

	authSvc         *AuthenticationService
	verificationSvc *VerificationService
	companySvc      *CompanyService
	brokerSvc       *BrokerService
	vehicleSvc      *VehicleService
	requestSvc      *VehicleRequestService
	settingsSvc     *SettingsService
}

func testConfig() *config.PortalConfig {
	return &config.PortalConfig{
		ServiceName:       "portal-test",
		PublicBaseURL:     "https://portal.test",
		JWTSecret:         "test-secret",
		TokenExpiration:   15 * time.Minute,
		RefreshExpiration: time.Hour,
		PasswordMinLength: 8,
		MaxLoginAttempts:  3,
		LockoutDuration:   15 * time.Minute,
		BCryptCost:        bcrypt.MinCost,
		InviteTTL:         48 * time.Hour,
		VerificationTTL:   30 * time.Minute,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := databasetest.Open(t)
	env := &testEnv{
		db:            db,
		cfg:           testConfig(),
		mailer:        &mail.Recorder{},
		metrics:       metrics.New(),
		users:         repository.NewUserRepository(db),
		companies:     repository.NewCompanyRepository(db),
		brokers:       repository.NewBrokerRepository(db),
		vehicles:      repository.NewVehicleRepository(db),
		verifications: repository.NewVerificationRepository(db),
		settings:      repository.NewSettingsRepository(db),
	}
	templates := mail.Templates{BrokerInvite: 1, Verification: 2, CompanyWelcome: 3, VehicleRequest: 4}
	n := NewNotifier(env.mailer, env.metrics, nil)

	env.verificationSvc = NewVerificationService(env.verifications, env.users, env.cfg, templates, n)
	env.authSvc = NewAuthenticationService(env.users, env.verificationSvc, env.cfg, nil)
	env.companySvc = NewCompanyService(env.companies, env.users, env.brokers, env.verificationSvc, n, templates, env.cfg, nil)
	env.brokerSvc = NewBrokerService(env.brokers, env.users, n, templates, env.cfg, env.metrics, nil)
	env.settingsSvc = NewSettingsService(env.settings)
	env.vehicleSvc = NewVehicleService(env.vehicles, env.settingsSvc)
	env.requestSvc = NewVehicleRequestService(env.vehicles, env.users, env.companies, n, templates)
	return env
}

var userSeq atomic.Int64

func (e *testEnv) createUser(t *testing.T, role roles.Role, companyID *string) *models.User {
	t.Helper()
	n := userSeq.Add(1)
	user, err := newAccount(e.cfg, accountInput{
		Email:     role.String() + strconv.FormatInt(n, 10) + "@example.com",
		Password:  testPassword,
		FirstName: "Test",
		LastName:  role.String(),
		Role:      role,
		CompanyID: companyID,
	})
	require.NoError(t, err)
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func adminSession(t *testing.T, e *testEnv) *session.Session {
	t.Helper()
	admin := e.createUser(t, roles.Admin, nil)
	return sessionFor(admin)
}

func sessionFor(u *models.User) *session.Session {
	s := &session.Session{UserID: u.ID, Email: u.Email, Role: u.Role}
	if u.CompanyID != nil {
		s.CompanyID = *u.CompanyID
	}
	if u.BrokerID != nil {
		s.BrokerID = *u.BrokerID
	}
	return s
}

// rootBroker creates a broker account owning a root broker with the given commission.
func (e *testEnv) rootBroker(t *testing.T, admin *session.Session, amount int64) (*models.Broker, *session.Session) {
	t.Helper()
	user := e.createUser(t, roles.Broker, nil)
	broker, err := e.brokerSvc.CreateRootBroker(context.Background(), admin, &models.CreateRootBrokerInput{
		DisplayName: "Root " + user.Email,
		Email:       user.Email,
		Commission:  json.Number(strconv.FormatInt(amount, 10)),
		UserID:      &user.ID,
	})
	require.NoError(t, err)
	user.BrokerID = &broker.ID
	return broker, sessionFor(user)
}

func (e *testEnv) company(t *testing.T) (*models.Company, *models.User) {
	t.Helper()
	n := userSeq.Add(1)
	reg, err := e.companySvc.RegisterCompany(context.Background(), &models.RegisterCompanyInput{
		Name:  "Acme GmbH",
		VATID: "DE" + strconv.FormatInt(100000000+n, 10),
		Employer: models.RegisterRequest{
			Email:     "employer" + strconv.FormatInt(n, 10) + "@acme.example",
			Password:  testPassword,
			FirstName: "Erika",
			LastName:  "Mustermann",
		},
	})
	require.NoError(t, err)
	employer, err := e.users.GetByID(context.Background(), reg.Employer.ID)
	require.NoError(t, err)
	return reg.Company, employer
}

func amount(v int64) json.Number {
	return json.Number(strconv.FormatInt(v, 10))
}
