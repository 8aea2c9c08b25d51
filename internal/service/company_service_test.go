package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vilonda/portal/internal/mail"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/roles"
)

func TestRegisterCompanyCreatesEmployer(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	reg, err := e.companySvc.RegisterCompany(ctx, &models.RegisterCompanyInput{
		Name:  " Fleet AG ",
		VATID: "de 123 456 789",
		Employer: models.RegisterRequest{
			Email:     "boss@fleet.example",
			Password:  testPassword,
			FirstName: "Bea",
			LastName:  "Boss",
		},
	})
	require.NoError(t, err)
	assert.True(t, reg.EmailSent)
	assert.Equal(t, "Fleet AG", reg.Company.Name)
	assert.Equal(t, "DE123456789", reg.Company.VATID)
	assert.Equal(t, "DE", reg.Company.Country)
	assert.Equal(t, "boss@fleet.example", reg.Company.ContactEmail)
	assert.Equal(t, roles.Employer, reg.Employer.Role)
	require.NotNil(t, reg.Employer.CompanyID)
	assert.Equal(t, reg.Company.ID, *reg.Employer.CompanyID)
	assert.Equal(t, "Fleet AG", reg.Employer.CompanyName)

	templates := []string{}
	for _, msg := range e.mailer.Messages() {
		templates = append(templates, msg.Template)
	}
	assert.ElementsMatch(t, []string{mail.TemplateCompanyWelcome, mail.TemplateVerification}, templates)

	_, err = e.companySvc.RegisterCompany(ctx, &models.RegisterCompanyInput{
		Name:  "Copy",
		VATID: "DE123456789",
		Employer: models.RegisterRequest{
			Email: "other@fleet.example", Password: testPassword, FirstName: "O",
		},
	})
	assert.ErrorIs(t, err, ErrCompanyExists)
}

func TestRegisterCompanyDuplicateEmployerWritesNothing(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	existing := e.createUser(t, roles.Customer, nil)

	_, err := e.companySvc.RegisterCompany(ctx, &models.RegisterCompanyInput{
		Name:     "Fleet AG",
		VATID:    "DE999999999",
		Employer: models.RegisterRequest{Email: existing.Email, Password: testPassword, FirstName: "X"},
	})
	require.ErrorIs(t, err, ErrUserExists)

	company, err := e.companies.GetByVATID(ctx, "DE999999999")
	require.NoError(t, err)
	assert.Nil(t, company)
}

func TestRegisterCompanyMailFailureStillRegisters(t *testing.T) {
	e := newTestEnv(t)
	e.mailer.Err = errors.New("provider unavailable")

	reg, err := e.companySvc.RegisterCompany(context.Background(), &models.RegisterCompanyInput{
		Name:     "Fleet AG",
		VATID:    "DE111111111",
		Employer: models.RegisterRequest{Email: "boss@fleet.example", Password: testPassword, FirstName: "B"},
	})
	require.NoError(t, err)
	assert.False(t, reg.EmailSent)

	stored, err := e.companies.GetByID(context.Background(), reg.Company.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestRegisterCompanyWithBrokerReferral(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := adminSession(t, e)
	broker, brokerSession := e.rootBroker(t, admin, 100)

	reg, err := e.companySvc.RegisterCompany(ctx, &models.RegisterCompanyInput{
		Name:     "Referred GmbH",
		VATID:    "DE222222222",
		BrokerID: &broker.ID,
		Employer: models.RegisterRequest{Email: "ref@example.com", Password: testPassword, FirstName: "R"},
	})
	require.NoError(t, err)
	require.NotNil(t, reg.Company.BrokerID)

	listed, err := e.companySvc.ListCompanies(ctx, brokerSession)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, reg.Company.ID, listed[0].ID)

	got, err := e.companySvc.GetCompany(ctx, brokerSession, reg.Company.ID)
	require.NoError(t, err)
	assert.Equal(t, "Referred GmbH", got.Name)

	missing := "unknown"
	_, err = e.companySvc.RegisterCompany(ctx, &models.RegisterCompanyInput{
		Name:     "Nobody",
		VATID:    "DE333333333",
		BrokerID: &missing,
		Employer: models.RegisterRequest{Email: "nobody@example.com", Password: testPassword, FirstName: "N"},
	})
	assert.ErrorIs(t, err, ErrBrokerNotFound)
}

func TestRegisterCompanyValidation(t *testing.T) {
	e := newTestEnv(t)
	valid := models.RegisterRequest{Email: "boss@example.com", Password: testPassword, FirstName: "B"}
	cases := map[string]models.RegisterCompanyInput{
		"missing name":  {VATID: "DE123456789", Employer: valid},
		"missing vat":   {Name: "X", Employer: valid},
		"bad vat":       {Name: "X", VATID: "DE-12", Employer: valid},
		"bad country":   {Name: "X", VATID: "DE123456789", Country: "DEU", Employer: valid},
		"negative size": {Name: "X", VATID: "DE123456789", EmployeeCount: -1, Employer: valid},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.companySvc.RegisterCompany(context.Background(), &input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestEmployees(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	company, employer := e.company(t)
	other, _ := e.company(t)
	employerSession := sessionFor(employer)

	employee, err := e.companySvc.AddEmployee(ctx, employerSession, "", &models.AddEmployeeInput{
		Email: "worker@acme.example", Password: testPassword, FirstName: "Will", LastName: "Worker",
	})
	require.NoError(t, err)
	assert.Equal(t, roles.Employee, employee.Role)
	assert.Equal(t, company.ID, *employee.CompanyID)

	staff, err := e.companySvc.ListEmployees(ctx, employerSession, company.ID)
	require.NoError(t, err)
	assert.Len(t, staff, 2)

	_, err = e.companySvc.ListEmployees(ctx, employerSession, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.companySvc.AddEmployee(ctx, sessionFor(employee), company.ID, &models.AddEmployeeInput{
		Email: "x@acme.example", Password: testPassword, FirstName: "X",
	})
	assert.ErrorIs(t, err, ErrForbidden)

	admin := adminSession(t, e)
	require.NoError(t, e.companySvc.DeactivateCompany(ctx, admin, company.ID))
	_, err = e.companySvc.AddEmployee(ctx, employerSession, "", &models.AddEmployeeInput{
		Email: "late@acme.example", Password: testPassword, FirstName: "L",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompanyVisibility(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	company, employer := e.company(t)
	customer := e.createUser(t, roles.Customer, nil)

	_, err := e.companySvc.GetCompany(ctx, sessionFor(employer), company.ID)
	assert.NoError(t, err)
	_, err = e.companySvc.GetCompany(ctx, sessionFor(customer), company.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.companySvc.ListCompanies(ctx, sessionFor(employer))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.companySvc.GetCompany(ctx, adminSession(t, e), "missing")
	assert.ErrorIs(t, err, ErrCompanyNotFound)
}

func TestUniqueViolationsMapToConflicts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	company, employer := e.company(t)

	// Inserts that skip the existence checks, as a request losing a race would.
	dup, err := newAccount(e.cfg, accountInput{
		Email:     employer.Email,
		Password:  testPassword,
		FirstName: "Twin",
		Role:      roles.Employee,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, e.users.Create(ctx, dup), ErrUserExists)

	err = e.companies.Create(ctx, &models.Company{Name: "Copycat GmbH", VATID: company.VATID})
	assert.ErrorIs(t, err, ErrCompanyExists)
}
