// Package handlers exposes the portal services over HTTP.
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vilonda/portal/api/middleware"
	"github.com/vilonda/portal/internal/apperrors"
	"github.com/vilonda/portal/internal/metrics"
	"github.com/vilonda/portal/internal/service"
	"go.uber.org/zap"
)

// BasePath prefixes every versioned API route.
const BasePath = "/v1"

// Services bundles what the router serves.
type Services struct {
	Auth          *service.AuthenticationService
	Verifications *service.VerificationService
	Companies     *service.CompanyService
	Brokers       *service.BrokerService
	Vehicles      *service.VehicleService
	Requests      *service.VehicleRequestService
	Settings      *service.SettingsService
}

// NewRouter assembles every handler behind the shared middleware.
func NewRouter(services Services, serviceName string, m *metrics.Metrics, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(middleware.Recover(logger))
	router.Use(middleware.RequestLogger(logger, m, BasePath))
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apperrors.NotFound("route").WriteHTTP(w)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apperrors.MethodNotAllowed().WriteHTTP(w)
	})

	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	tokens := services.Auth
	NewAuthenticationHandler(services.Auth, services.Verifications, serviceName, logger).RegisterRoutes(router)
	NewTokenIntrospectionHandler(services.Auth).RegisterRoutes(router)
	NewCompanyHandler(services.Companies, tokens, logger).RegisterRoutes(router)
	NewBrokerHandler(services.Brokers, tokens, logger).RegisterRoutes(router)
	NewVehicleHandler(services.Vehicles, tokens, logger).RegisterRoutes(router)
	NewVehicleRequestHandler(services.Requests, tokens, logger).RegisterRoutes(router)
	NewSettingsHandler(services.Settings, tokens, logger).RegisterRoutes(router)

	return router
}
