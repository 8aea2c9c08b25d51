package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vilonda/portal/config"
	"github.com/vilonda/portal/internal/mail"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrCompanyExists   = repository.ErrVATTaken
)

// CompanyRegistration is the outcome of RegisterCompany.
type CompanyRegistration struct {
	Company   *models.Company  `json:"company"`
	Employer  *models.UserInfo `json:"employer"`
	EmailSent bool             `json:"email_sent"`
}

// CompanyService manages employer companies and their staff accounts.
type CompanyService struct {
	companies     *repository.CompanyRepository
	users         *repository.UserRepository
	brokers       *repository.BrokerRepository
	verifications *VerificationService
	notify        Notifier
	templates     mail.Templates
	config        *config.PortalConfig
	logger        *zap.Logger
}

// NewCompanyService constructs the service.
func NewCompanyService(
	companies *repository.CompanyRepository,
	users *repository.UserRepository,
	brokers *repository.BrokerRepository,
	verifications *VerificationService,
	n Notifier,
	templates mail.Templates,
	cfg *config.PortalConfig,
	logger *zap.Logger,
) *CompanyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyService{
		companies:     companies,
		users:         users,
		brokers:       brokers,
		verifications: verifications,
		notify:        n,
		templates:     templates,
		config:        cfg,
		logger:        logger,
	}
}

// RegisterCompany creates a company together with its first employer account.
func (s *CompanyService) RegisterCompany(ctx context.Context, input *models.RegisterCompanyInput) (*CompanyRegistration, error) {
	if input == nil {
		return nil, fmt.Errorf("input required")
	}

	company, err := s.buildCompany(input)
	if err != nil {
		return nil, err
	}

	if input.BrokerID != nil && strings.TrimSpace(*input.BrokerID) != "" {
		broker, err := s.brokers.GetByID(ctx, strings.TrimSpace(*input.BrokerID))
		if err != nil {
			return nil, err
		}
		if !broker.IsActive() {
			return nil, ErrBrokerNotFound
		}
		company.BrokerID = &broker.ID
	}

	existing, err := s.companies.GetByVATID(ctx, company.VATID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrCompanyExists
	}

	company.ID = models.NewID()
	employer, err := newAccount(s.config, accountInput{
		Email:     input.Employer.Email,
		Password:  input.Employer.Password,
		FirstName: input.Employer.FirstName,
		LastName:  input.Employer.LastName,
		Phone:     input.Employer.Phone,
		Role:      roles.Employer,
		CompanyID: &company.ID,
	})
	if err != nil {
		return nil, err
	}
	exists, err := s.users.ExistsByEmail(ctx, employer.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	err = s.companies.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.companies.WithTx(tx).Create(ctx, company); err != nil {
			return fmt.Errorf("create company: %w", err)
		}
		if err := s.users.WithTx(tx).Create(ctx, employer); err != nil {
			return fmt.Errorf("create employer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sent := s.notify.send(ctx, mail.Message{
		Template:   mail.TemplateCompanyWelcome,
		TemplateID: s.templates.CompanyWelcome,
		To:         mail.Recipient{Email: employer.Email, Name: employer.FullName()},
		Params: map[string]any{
			"companyName": company.Name,
			"firstName":   employer.FirstName,
			"loginUrl":    strings.TrimRight(s.config.PublicBaseURL, "/") + "/login",
		},
	})
	if s.verifications != nil {
		verificationSent, err := s.verifications.Issue(ctx, employer)
		if err != nil {
			s.logger.Warn("Failed to issue verification", zap.String("user_id", employer.ID), zap.Error(err))
		}
		sent = sent && verificationSent
	}

	employer.Company = company
	return &CompanyRegistration{Company: company, Employer: employer.ToUserInfo(), EmailSent: sent}, nil
}

func (s *CompanyService) buildCompany(input *models.RegisterCompanyInput) (*models.Company, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	vatID := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(input.VATID), " ", ""))
	if vatID == "" {
		return nil, invalid("vat_id", "is required")
	}
	if err := validate.Var(vatID, "alphanum,min=4,max=64"); err != nil {
		return nil, invalid("vat_id", "is not a valid VAT id")
	}
	contactEmail := strings.TrimSpace(input.ContactEmail)
	if contactEmail == "" {
		contactEmail = input.Employer.Email
	}
	contactEmail, err := validateEmail("contact_email", contactEmail)
	if err != nil {
		return nil, err
	}
	if input.EmployeeCount < 0 {
		return nil, invalid("employee_count", "must not be negative")
	}
	country := strings.ToUpper(strings.TrimSpace(input.Country))
	if country == "" {
		country = "DE"
	}
	if len(country) != 2 {
		return nil, invalid("country", "must be a two-letter country code")
	}

	return &models.Company{
		Name:          name,
		LegalForm:     strings.TrimSpace(input.LegalForm),
		VATID:         vatID,
		Street:        strings.TrimSpace(input.Street),
		PostalCode:    strings.TrimSpace(input.PostalCode),
		City:          strings.TrimSpace(input.City),
		Country:       country,
		ContactEmail:  contactEmail,
		EmployeeCount: input.EmployeeCount,
		IsActive:      true,
	}, nil
}

// GetCompany returns a company visible to the caller.
func (s *CompanyService) GetCompany(ctx context.Context, actor *session.Session, id string) (*models.Company, error) {
	if actor == nil {
		return nil, session.ErrNoSession
	}
	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ErrCompanyNotFound
	}
	if !s.canView(actor, company) {
		return nil, ErrForbidden
	}
	return company, nil
}

func (s *CompanyService) canView(actor *session.Session, company *models.Company) bool {
	switch actor.Role {
	case roles.Admin:
		return true
	case roles.Employer, roles.Employee:
		return actor.CompanyID != "" && actor.CompanyID == company.ID
	case roles.Broker:
		return actor.BrokerID != "" && company.BrokerID != nil && *company.BrokerID == actor.BrokerID
	case roles.Customer:
		return false
	default:
		return false
	}
}

// ListCompanies returns every company for administrators and the referred companies for brokers.
func (s *CompanyService) ListCompanies(ctx context.Context, actor *session.Session) ([]*models.Company, error) {
	if actor == nil {
		return nil, session.ErrNoSession
	}
	switch actor.Role {
	case roles.Admin:
		return s.companies.List(ctx, nil)
	case roles.Broker:
		if actor.BrokerID == "" {
			return nil, ErrForbidden
		}
		brokerID := actor.BrokerID
		return s.companies.List(ctx, &brokerID)
	case roles.Employer, roles.Employee, roles.Customer:
		return nil, ErrForbidden
	default:
		return nil, ErrForbidden
	}
}

// DeactivateCompany disables a company. Its accounts stay untouched.
func (s *CompanyService) DeactivateCompany(ctx context.Context, actor *session.Session, id string) error {
	if !actor.Can(roles.ManageCompanies) {
		return ErrForbidden
	}
	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if company == nil {
		return ErrCompanyNotFound
	}
	return s.companies.SetActive(ctx, id, false)
}

// AddEmployee creates an employee account in the company.
func (s *CompanyService) AddEmployee(ctx context.Context, actor *session.Session, companyID string, input *models.AddEmployeeInput) (*models.User, error) {
	if input == nil {
		return nil, fmt.Errorf("input required")
	}
	company, err := s.employerCompany(ctx, actor, companyID)
	if err != nil {
		return nil, err
	}
	if !company.IsActive {
		return nil, invalid("company", "is not active")
	}

	employee, err := newAccount(s.config, accountInput{
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      roles.Employee,
		CompanyID: &company.ID,
	})
	if err != nil {
		return nil, err
	}
	exists, err := s.users.ExistsByEmail(ctx, employee.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}
	if err := s.users.Create(ctx, employee); err != nil {
		return nil, fmt.Errorf("create employee: %w", err)
	}

	if s.verifications != nil {
		if _, err := s.verifications.Issue(ctx, employee); err != nil {
			s.logger.Warn("Failed to issue verification", zap.String("user_id", employee.ID), zap.Error(err))
		}
	}
	return employee, nil
}

// ListEmployees returns the accounts of a company.
func (s *CompanyService) ListEmployees(ctx context.Context, actor *session.Session, companyID string) ([]*models.UserInfo, error) {
	company, err := s.employerCompany(ctx, actor, companyID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListByCompany(ctx, company.ID, nil)
	if err != nil {
		return nil, err
	}
	infos := make([]*models.UserInfo, 0, len(users))
	for _, u := range users {
		info := u.ToUserInfo()
		info.CompanyName = company.Name
		infos = append(infos, info)
	}
	return infos, nil
}

// employerCompany loads a company the caller may manage staff of.
func (s *CompanyService) employerCompany(ctx context.Context, actor *session.Session, companyID string) (*models.Company, error) {
	if !actor.Can(roles.ManageEmployees) {
		return nil, ErrForbidden
	}
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		companyID = actor.CompanyID
	}
	if !actor.IsAdmin() && companyID != actor.CompanyID {
		return nil, ErrForbidden
	}
	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ErrCompanyNotFound
	}
	return company, nil
}
