package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	role, err := Parse(" Broker ")
	require.NoError(t, err)
	assert.Equal(t, Broker, role)

	_, err = Parse("superuser")
	assert.Error(t, err)
}

func TestPortalRoundTrip(t *testing.T) {
	for _, role := range All {
		portal, ok := role.Portal()
		require.True(t, ok, role)
		back, ok := FromPortal(portal)
		require.True(t, ok, portal)
		assert.Equal(t, role, back)
	}

	_, ok := FromPortal("intranet")
	assert.False(t, ok)
	_, ok = Role("ghost").Portal()
	assert.False(t, ok)
}

func TestCan(t *testing.T) {
	assert.True(t, Can(Admin, ManageSettings))
	assert.True(t, Can(Broker, AllocateCommission))
	assert.False(t, Can(Broker, ManageVehicles))
	assert.True(t, Can(Employer, DecideVehicleRequests))
	assert.False(t, Can(Employee, DecideVehicleRequests))
	assert.True(t, Can(Customer, RequestVehicles))
	assert.False(t, Can(Role("ghost"), ViewVehicles))
}
