package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVehicleRequestType(t *testing.T) {
	cases := []struct {
		name       string
		categories []string
		want       VehicleRequestType
		ok         bool
	}{
		{"salary wins", []string{CategoryBusiness, CategorySalary}, "salary", true},
		{"first category", []string{CategoryPrivate, CategoryBusiness}, "private", true},
		{"no categories", nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := (&Vehicle{Categories: tc.categories}).RequestType()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	var missing *Vehicle
	_, ok := missing.RequestType()
	assert.False(t, ok)
}

func TestPriceFactorsApply(t *testing.T) {
	matrix := DefaultPriceFactors().Apply(45000)

	rate, ok := matrix.Rate(36, 10000)
	assert.True(t, ok)
	assert.Equal(t, int64(45000), rate)

	rate, ok = matrix.Rate(24, 20000)
	assert.True(t, ok)
	assert.Equal(t, int64(52650), rate)

	_, ok = matrix.Rate(60, 10000)
	assert.False(t, ok)
	assert.Equal(t, []int{24, 36, 48}, matrix.Durations())
}

func TestPriceFactorsValid(t *testing.T) {
	assert.True(t, DefaultPriceFactors().Valid())
	assert.False(t, PriceFactors{}.Valid())
	assert.False(t, PriceFactors{"x": {"1000": 1000}}.Valid())
	assert.False(t, PriceFactors{"36": {"1000": 0}}.Valid())
}

func TestBrokerLedger(t *testing.T) {
	b := &Broker{
		OriginalCommission:  500,
		AvailableCommission: 300,
		Allocations:         []BrokerAllocation{{SubBrokerID: "a", Commission: 200}},
	}
	l := b.Ledger()
	assert.NoError(t, l.Check())
	assert.Equal(t, int64(200), l.SubBrokerCommissions["a"])
}

func TestUserFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
}
