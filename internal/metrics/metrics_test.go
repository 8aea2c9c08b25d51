package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveAllocation(AllocationOK)
	m.ObserveAllocation(AllocationOK)
	m.ObserveAllocation(AllocationConflict)
	m.ObserveEmail("broker_invite", false)
	m.AddMigrationRecords("fix-user-roles", OutcomeChanged, 3)
	m.AddMigrationRecords("fix-user-roles", OutcomeSkipped, 0)
	m.ObserveHTTPRequest("/v1/brokers/{id}", http.MethodGet, http.StatusOK)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.allocations.WithLabelValues(AllocationOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues(AllocationConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emails.WithLabelValues("broker_invite", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.migration.WithLabelValues("fix-user-roles", OutcomeChanged)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.migration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/v1/brokers/{id}", "GET", "200")))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveAllocation(AllocationInsufficient)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portal_commission_allocations_total{result="insufficient"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAllocation(AllocationOK)
		m.ObserveEmail("x", true)
		m.AddMigrationRecords("x", OutcomeSkipped, 1)
		m.ObserveHTTPRequest("/", "GET", 200)
	})
}
