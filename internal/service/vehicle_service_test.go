package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vilonda/portal/internal/mail"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/session"
)

func boolPtr(v bool) *bool { return &v }

func (e *testEnv) vehicle(t *testing.T, admin *session.Session, input models.VehicleInput) *models.Vehicle {
	t.Helper()
	if input.Brand == "" {
		input.Brand = "VW"
	}
	if input.Model == "" {
		input.Model = "ID.4"
	}
	v, err := e.vehicleSvc.CreateVehicle(context.Background(), admin, &input)
	require.NoError(t, err)
	return v
}

func TestCreateSalaryVehicleDerivesMatrix(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := adminSession(t, e)

	v := e.vehicle(t, admin, models.VehicleInput{MonthlyRate: 45000, Categories: []string{"Salary", "business", "salary"}})
	assert.Equal(t, []string{models.CategorySalary, models.CategoryBusiness}, v.Categories)
	rate, ok := v.PriceMatrix.Rate(24, 20000)
	require.True(t, ok)
	assert.Equal(t, int64(52650), rate)

	quote, err := e.vehicleSvc.QuoteMonthlyRate(ctx, admin, v.ID, 36, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(45000), quote.MonthlyRate)

	_, err = e.vehicleSvc.QuoteMonthlyRate(ctx, admin, v.ID, 60, 10000)
	assert.ErrorIs(t, err, ErrNoPrice)
	_, err = e.vehicleSvc.QuoteMonthlyRate(ctx, admin, v.ID, 0, 10000)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSalaryVehicleUsesStoredFactors(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := adminSession(t, e)

	_, err := e.settingsSvc.Put(ctx, admin, models.SettingSalaryPriceMatrix, json.RawMessage(`{"12":{"5000":1500}}`))
	require.NoError(t, err)

	v := e.vehicle(t, admin, models.VehicleInput{MonthlyRate: 1000, Categories: []string{"salary"}})
	assert.Equal(t, models.PriceMatrix{"12": {"5000": 1500}}, v.PriceMatrix)
}

func TestNonSalaryVehicleFallsBackToBaseRate(t *testing.T) {
	e := newTestEnv(t)
	admin := adminSession(t, e)
	v := e.vehicle(t, admin, models.VehicleInput{MonthlyRate: 39900, Categories: []string{"private"}})

	quote, err := e.vehicleSvc.QuoteMonthlyRate(context.Background(), admin, v.ID, 48, 15000)
	require.NoError(t, err)
	assert.Equal(t, int64(39900), quote.MonthlyRate)
}

func TestVehicleCatalogVisibility(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := adminSession(t, e)
	customer := sessionFor(e.createUser(t, roles.Customer, nil))

	active := e.vehicle(t, admin, models.VehicleInput{MonthlyRate: 100, Categories: []string{"private"}})
	hidden := e.vehicle(t, admin, models.VehicleInput{MonthlyRate: 100, Categories: []string{"business"}, IsActive: boolPtr(false)})
	assert.False(t, hidden.IsActive)

	listed, err := e.vehicleSvc.ListVehicles(ctx, customer, models.VehicleFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, active.ID, listed[0].ID)

	all, err := e.vehicleSvc.ListVehicles(ctx, admin, models.VehicleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byCategory, err := e.vehicleSvc.ListVehicles(ctx, admin, models.VehicleFilter{Category: "Business"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, hidden.ID, byCategory[0].ID)

	_, err = e.vehicleSvc.ListVehicles(ctx, admin, models.VehicleFilter{Category: "boat"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.vehicleSvc.GetVehicle(ctx, customer, hidden.ID)
	assert.ErrorIs(t, err, ErrVehicleNotFound)

	require.NoError(t, e.vehicleSvc.SetVehicleActive(ctx, admin, hidden.ID, true))
	_, err = e.vehicleSvc.GetVehicle(ctx, customer, hidden.ID)
	assert.NoError(t, err)

	_, err = e.vehicleSvc.CreateVehicle(ctx, customer, &models.VehicleInput{Brand: "X", Model: "Y", Categories: []string{"private"}})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateVehicleValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := adminSession(t, e)
	v := e.vehicle(t, admin, models.VehicleInput{MonthlyRate: 100, Categories: []string{"private"}})

	_, err := e.vehicleSvc.UpdateVehicle(ctx, admin, v.ID, &models.VehicleInput{Brand: "VW", Model: "Golf", Categories: []string{"truck"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.vehicleSvc.UpdateVehicle(ctx, admin, v.ID, &models.VehicleInput{
		Brand: "VW", Model: "Golf", Categories: []string{"private"},
		PriceMatrix: models.PriceMatrix{"x": {"10000": 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := e.vehicleSvc.UpdateVehicle(ctx, admin, v.ID, &models.VehicleInput{
		Brand: "VW", Model: "Golf", Categories: []string{"private"},
		PriceMatrix: models.PriceMatrix{"36": {"10000": 29900}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Golf", updated.Model)

	_, err = e.vehicleSvc.UpdateVehicle(ctx, admin, "missing", &models.VehicleInput{Brand: "A", Model: "B", Categories: []string{"private"}})
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestVehicleRequestLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := adminSession(t, e)
	company, employer := e.company(t)
	employee := sessionFor(e.createUser(t, roles.Employee, &company.ID))
	v := e.vehicle(t, admin, models.VehicleInput{MonthlyRate: 45000, Categories: []string{"salary"}})
	sentBefore := len(e.mailer.Messages())

	req, err := e.requestSvc.CreateRequest(ctx, employee, &models.CreateVehicleRequestInput{
		VehicleID: v.ID, DurationMonths: 24, AnnualMileage: 20000,
	})
	require.NoError(t, err)
	assert.Equal(t, models.VehicleRequestType(models.CategorySalary), req.Type)
	assert.Equal(t, int64(52650), req.MonthlyRate)
	assert.Equal(t, models.VehicleRequestPending, req.Status)
	require.NotNil(t, req.CompanyID)
	assert.Equal(t, company.ID, *req.CompanyID)

	msgs := e.mailer.Messages()
	require.Len(t, msgs, sentBefore+1)
	last := msgs[len(msgs)-1]
	assert.Equal(t, mail.TemplateVehicleRequest, last.Template)
	assert.Equal(t, employer.Email, last.To.Email)

	employerSession := sessionFor(employer)
	listed, err := e.requestSvc.ListRequests(ctx, employerSession, nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	decided, err := e.requestSvc.DecideRequest(ctx, employerSession, req.ID, &models.DecideVehicleRequestInput{Approve: true, Note: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.VehicleRequestApproved, decided.Status)

	_, err = e.requestSvc.DecideRequest(ctx, employerSession, req.ID, &models.DecideVehicleRequestInput{Approve: false})
	assert.ErrorIs(t, err, ErrRequestNotPending)
	assert.ErrorIs(t, e.requestSvc.CancelRequest(ctx, employee, req.ID), ErrRequestNotPending)

	got, err := e.requestSvc.GetRequest(ctx, employee, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleRequestApproved, got.Status)
}

func TestVehicleRequestRules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := adminSession(t, e)
	company, _ := e.company(t)
	_, otherEmployer := e.company(t)
	customer := sessionFor(e.createUser(t, roles.Customer, nil))
	employee := sessionFor(e.createUser(t, roles.Employee, &company.ID))
	salary := e.vehicle(t, admin, models.VehicleInput{MonthlyRate: 45000, Categories: []string{"salary"}})
	private := e.vehicle(t, admin, models.VehicleInput{MonthlyRate: 30000, Categories: []string{"private"}})

	_, err := e.requestSvc.CreateRequest(ctx, customer, &models.CreateVehicleRequestInput{
		VehicleID: salary.ID, DurationMonths: 24, AnnualMileage: 20000,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	req, err := e.requestSvc.CreateRequest(ctx, customer, &models.CreateVehicleRequestInput{
		VehicleID: private.ID, DurationMonths: 36, AnnualMileage: 10000,
	})
	require.NoError(t, err)
	assert.Equal(t, models.VehicleRequestType(models.CategoryPrivate), req.Type)
	assert.Nil(t, req.CompanyID)

	_, err = e.requestSvc.GetRequest(ctx, employee, req.ID)
	assert.ErrorIs(t, err, ErrVehicleRequestNotFound)
	_, err = e.requestSvc.DecideRequest(ctx, sessionFor(otherEmployer), req.ID, &models.DecideVehicleRequestInput{Approve: true})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, e.requestSvc.CancelRequest(ctx, employee, req.ID), ErrForbidden)
	require.NoError(t, e.requestSvc.CancelRequest(ctx, customer, req.ID))

	cancelled := models.VehicleRequestCancelled
	own, err := e.requestSvc.ListRequests(ctx, customer, &cancelled)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	require.NoError(t, e.companySvc.DeactivateCompany(ctx, admin, company.ID))
	_, err = e.requestSvc.CreateRequest(ctx, employee, &models.CreateVehicleRequestInput{
		VehicleID: salary.ID, DurationMonths: 24, AnnualMileage: 20000,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, e.vehicleSvc.SetVehicleActive(ctx, admin, private.ID, false))
	_, err = e.requestSvc.CreateRequest(ctx, customer, &models.CreateVehicleRequestInput{
		VehicleID: private.ID, DurationMonths: 36, AnnualMileage: 10000,
	})
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestSettings(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := adminSession(t, e)
	customer := sessionFor(e.createUser(t, roles.Customer, nil))

	factors, err := e.settingsSvc.SalaryPriceFactors(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPriceFactors(), factors)

	_, err = e.settingsSvc.Put(ctx, admin, "portal.banner", json.RawMessage(`{"text":"hello"}`))
	require.NoError(t, err)
	got, err := e.settingsSvc.Get(ctx, admin, "portal.banner")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hello"}`, string(got.Value))

	_, err = e.settingsSvc.Put(ctx, admin, "portal.banner", json.RawMessage(`{"text":"bye"}`))
	require.NoError(t, err)
	all, err := e.settingsSvc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = e.settingsSvc.Put(ctx, admin, "1bad", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.settingsSvc.Put(ctx, admin, "x", json.RawMessage(`{broken`))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.settingsSvc.Put(ctx, admin, models.SettingSalaryPriceMatrix, json.RawMessage(`{"24":{"10000":-5}}`))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.settingsSvc.Get(ctx, admin, "missing")
	assert.ErrorIs(t, err, ErrSettingNotFound)
	_, err = e.settingsSvc.List(ctx, customer)
	assert.ErrorIs(t, err, ErrForbidden)
}
