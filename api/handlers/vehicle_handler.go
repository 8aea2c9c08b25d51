package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/vilonda/portal/api/middleware"
	"github.com/vilonda/portal/internal/apperrors"
	"github.com/vilonda/portal/internal/httputil"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/service"
	"go.uber.org/zap"
)

// VehicleHandler exposes the vehicle catalog.
type VehicleHandler struct {
	responder
	vehicleService *service.VehicleService
	tokens         middleware.TokenValidator
}

// NewVehicleHandler constructs a new handler instance.
func NewVehicleHandler(vehicles *service.VehicleService, tokens middleware.TokenValidator, logger *zap.Logger) *VehicleHandler {
	return &VehicleHandler{
		responder:      newResponder(logger),
		vehicleService: vehicles,
		tokens:         tokens,
	}
}

// RegisterRoutes wires the catalog routes.
func (h *VehicleHandler) RegisterRoutes(router *mux.Router) {
	vehicles := router.PathPrefix("/v1/vehicles").Subrouter()
	vehicles.Use(middleware.Authenticate(h.tokens))
	vehicles.HandleFunc("", h.ListVehicles).Methods(http.MethodGet)
	vehicles.HandleFunc("", h.CreateVehicle).Methods(http.MethodPost)
	vehicles.HandleFunc("/{id}", h.GetVehicle).Methods(http.MethodGet)
	vehicles.HandleFunc("/{id}", h.UpdateVehicle).Methods(http.MethodPut)
	vehicles.HandleFunc("/{id}/active", h.SetVehicleActive).Methods(http.MethodPut)
	vehicles.HandleFunc("/{id}/quote", h.Quote).Methods(http.MethodGet)
}

// ListVehicles lists the catalog, optionally by category.
func (h *VehicleHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := models.VehicleFilter{Category: query.Get("category")}
	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			apperrors.ValidationError("active must be a boolean").WriteHTTP(w)
			return
		}
		filter.OnlyActive = active
	}

	vehicles, err := h.vehicleService.ListVehicles(r.Context(), sess, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"data": vehicles})
}

// CreateVehicle adds a vehicle to the catalog.
func (h *VehicleHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var input models.VehicleInput
	if !decode(w, r, &input) {
		return
	}

	vehicle, err := h.vehicleService.CreateVehicle(r.Context(), sess, &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, vehicle)
}

// GetVehicle returns one vehicle.
func (h *VehicleHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	vehicle, err := h.vehicleService.GetVehicle(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, vehicle)
}

// UpdateVehicle replaces a vehicle's attributes.
func (h *VehicleHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var input models.VehicleInput
	if !decode(w, r, &input) {
		return
	}

	vehicle, err := h.vehicleService.UpdateVehicle(r.Context(), sess, mux.Vars(r)["id"], &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, vehicle)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// SetVehicleActive lists or unlists a vehicle.
func (h *VehicleHandler) SetVehicleActive(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var req setActiveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		apperrors.ValidationError("active is required").WriteHTTP(w)
		return
	}

	if err := h.vehicleService.SetVehicleActive(r.Context(), sess, mux.Vars(r)["id"], *req.Active); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Quote returns the monthly rate for a duration and annual mileage.
func (h *VehicleHandler) Quote(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	duration, err := strconv.Atoi(query.Get("duration_months"))
	if err != nil {
		apperrors.ValidationError("duration_months must be an integer").WriteHTTP(w)
		return
	}
	mileage, err := strconv.Atoi(query.Get("annual_mileage"))
	if err != nil {
		apperrors.ValidationError("annual_mileage must be an integer").WriteHTTP(w)
		return
	}

	quote, err := h.vehicleService.QuoteMonthlyRate(r.Context(), sess, mux.Vars(r)["id"], duration, mileage)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, quote)
}
