package migrations

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vilonda/portal/internal/database/databasetest"
	"github.com/vilonda/portal/internal/metrics"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/roles"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func seedUser(t *testing.T, db *gorm.DB, email string, role roles.Role, portal roles.Portal) *models.User {
	t.Helper()
	user := &models.User{Email: email, Password: "hash", Role: role, Portal: portal, IsActive: true}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedVehicle(t *testing.T, db *gorm.DB, rate int64, categories []string, matrix models.PriceMatrix) *models.Vehicle {
	t.Helper()
	vehicle := &models.Vehicle{Brand: "VW", Model: "ID.4", MonthlyRate: rate, Categories: categories, PriceMatrix: matrix, IsActive: true}
	require.NoError(t, db.Create(vehicle).Error)
	return vehicle
}

func seedRequest(t *testing.T, db *gorm.DB, user *models.User, vehicle *models.Vehicle, typ models.VehicleRequestType) *models.VehicleRequest {
	t.Helper()
	req := &models.VehicleRequest{
		UserID:         user.ID,
		VehicleID:      vehicle.ID,
		Type:           typ,
		DurationMonths: 36,
		AnnualMileage:  10000,
		Status:         models.VehicleRequestPending,
	}
	require.NoError(t, db.Create(req).Error)
	return req
}

func reloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	user, err := repository.NewUserRepository(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func TestFixUserRoles(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()

	wrong := seedUser(t, db, "wrong@example.com", roles.Customer, roles.PortalPartner)
	right := seedUser(t, db, "right@example.com", roles.Employee, roles.PortalEmployee)
	unknown := seedUser(t, db, "unknown@example.com", roles.Customer, roles.Portal("legacy"))

	result, err := FixUserRoles(ctx, db, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3, Changed: 1, Skipped: 1}, result)
	assert.Equal(t, 1, result.Unchanged())

	assert.Equal(t, roles.Broker, reloadUser(t, db, wrong.ID).Role)
	assert.Equal(t, roles.Employee, reloadUser(t, db, right.ID).Role)
	assert.Equal(t, roles.Customer, reloadUser(t, db, unknown.ID).Role)

	again, err := FixUserRoles(ctx, db, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3, Changed: 0, Skipped: 1}, again)
}

func TestFixVehicleRequestTypes(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()

	user := seedUser(t, db, "e@example.com", roles.Employee, roles.PortalEmployee)
	salary := seedVehicle(t, db, 500, []string{models.CategoryBusiness, models.CategorySalary}, nil)
	private := seedVehicle(t, db, 300, []string{models.CategoryPrivate}, nil)
	bare := seedVehicle(t, db, 300, nil, nil)

	mistyped := seedRequest(t, db, user, salary, models.VehicleRequestType(models.CategoryBusiness))
	seedRequest(t, db, user, private, models.VehicleRequestType(models.CategoryPrivate))
	orphan := seedRequest(t, db, user, bare, models.VehicleRequestType("legacy"))

	result, err := FixVehicleRequestTypes(ctx, db, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3, Changed: 1, Skipped: 1}, result)

	repo := repository.NewVehicleRepository(db)
	fixed, err := repo.GetRequestByID(ctx, mistyped.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleRequestType(models.CategorySalary), fixed.Type)

	untouched, err := repo.GetRequestByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleRequestType("legacy"), untouched.Type)

	again, err := FixVehicleRequestTypes(ctx, db, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Changed)
}

func TestBackfillSalaryPriceMatrix(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()

	empty := seedVehicle(t, db, 45000, []string{models.CategorySalary}, nil)
	priced := seedVehicle(t, db, 45000, []string{models.CategorySalary}, models.PriceMatrix{"12": {"5000": 1}})
	noRate := seedVehicle(t, db, 0, []string{models.CategorySalary}, nil)
	seedVehicle(t, db, 45000, []string{models.CategoryPrivate}, nil)

	result, err := BackfillSalaryPriceMatrix(ctx, db, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 4, Changed: 1, Skipped: 1}, result)

	repo := repository.NewVehicleRepository(db)
	filled, err := repo.GetByID(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPriceFactors().Apply(45000), filled.PriceMatrix)
	rate, ok := filled.PriceMatrix.Rate(36, 10000)
	require.True(t, ok)
	assert.Equal(t, int64(45000), rate)

	kept, err := repo.GetByID(ctx, priced.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriceMatrix{"12": {"5000": 1}}, kept.PriceMatrix)

	skipped, err := repo.GetByID(ctx, noRate.ID)
	require.NoError(t, err)
	assert.Empty(t, skipped.PriceMatrix)

	again, err := BackfillSalaryPriceMatrix(ctx, db, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Changed)
}

func TestBackfillUsesStoredFactors(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()

	_, err := repository.NewSettingsRepository(db).Put(ctx, models.SettingSalaryPriceMatrix, json.RawMessage(`{"12":{"5000":2000}}`))
	require.NoError(t, err)
	vehicle := seedVehicle(t, db, 300, []string{models.CategorySalary}, nil)

	_, err = BackfillSalaryPriceMatrix(ctx, db, zap.NewNop())
	require.NoError(t, err)

	filled, err := repository.NewVehicleRepository(db).GetByID(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriceMatrix{"12": {"5000": 600}}, filled.PriceMatrix)
}

func TestBackfillRejectsInvalidStoredFactors(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()

	_, err := repository.NewSettingsRepository(db).Put(ctx, models.SettingSalaryPriceMatrix, json.RawMessage(`{"12":{"5000":-5}}`))
	require.NoError(t, err)
	vehicle := seedVehicle(t, db, 300, []string{models.CategorySalary}, nil)

	_, err = BackfillSalaryPriceMatrix(ctx, db, zap.NewNop())
	require.Error(t, err)

	untouched, err := repository.NewVehicleRepository(db).GetByID(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Empty(t, untouched.PriceMatrix)
}

func TestRunLogsAndCounts(t *testing.T) {
	db := databasetest.Open(t)
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New()

	seedUser(t, db, "a@example.com", roles.Customer, roles.PortalBusiness)
	seedUser(t, db, "b@example.com", roles.Customer, roles.PortalPrivate)

	result, err := Run(context.Background(), "fix-user-roles", FixUserRoles, db, zap.New(core), m)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Changed)

	summary := logs.FilterMessage("Migration finished").All()
	require.Len(t, summary, 1)
	fields := summary[0].ContextMap()
	assert.Equal(t, "fix-user-roles", fields["migration"])
	assert.Equal(t, int64(2), fields["scanned"])
	assert.Equal(t, int64(1), fields["changed"])

	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP portal_migration_records_total Records visited by repair migrations by outcome
# TYPE portal_migration_records_total counter
portal_migration_records_total{migration="fix-user-roles",outcome="changed"} 1
portal_migration_records_total{migration="fix-user-roles",outcome="unchanged"} 1
`), "portal_migration_records_total"))
}

func TestRunWrapsFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	boom := errors.New("boom")

	result, err := Run(context.Background(), "broken", func(context.Context, *gorm.DB, *zap.Logger) (Result, error) {
		return Result{Scanned: 2, Changed: 1}, boom
	}, nil, zap.New(core), nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "broken: boom", err.Error())
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, 1, logs.FilterMessage("Migration failed").Len())
}
