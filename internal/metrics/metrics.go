// Package metrics owns the prometheus collectors exported by the portal.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Allocation outcomes.
const (
	AllocationOK           = "ok"
	AllocationInsufficient = "insufficient"
	AllocationConflict     = "conflict"
	AllocationInvalid      = "invalid"
	AllocationError        = "error"
)

// Migration record outcomes.
const (
	OutcomeChanged   = "changed"
	OutcomeSkipped   = "skipped"
	OutcomeUnchanged = "unchanged"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	allocations  *prometheus.CounterVec
	emails       *prometheus.CounterVec
	migration    *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		allocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_allocations_total",
			Help:      "Commission allocation attempts by result",
		}, []string{"result"}),
		emails: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Transactional emails handed to the mail provider by template and result",
		}, []string{"template", "result"}),
		migration: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_records_total",
			Help:      "Records visited by repair migrations by outcome",
		}, []string{"migration", "outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route template, method and status",
		}, []string{"route", "method", "status"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveAllocation(result string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveEmail(template string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.emails.WithLabelValues(template, result).Inc()
}

func (m *Metrics) AddMigrationRecords(migration, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.migration.WithLabelValues(migration, outcome).Add(float64(n))
}

func (m *Metrics) ObserveHTTPRequest(route, method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
