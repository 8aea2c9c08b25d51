package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vilonda/portal/api/middleware"
	"github.com/vilonda/portal/internal/apperrors"
	"github.com/vilonda/portal/internal/httputil"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/service"
	"go.uber.org/zap"
)

// VehicleRequestHandler exposes lease requests and their approval.
type VehicleRequestHandler struct {
	responder
	requestService *service.VehicleRequestService
	tokens         middleware.TokenValidator
}

// NewVehicleRequestHandler constructs a new handler instance.
func NewVehicleRequestHandler(requests *service.VehicleRequestService, tokens middleware.TokenValidator, logger *zap.Logger) *VehicleRequestHandler {
	return &VehicleRequestHandler{
		responder:      newResponder(logger),
		requestService: requests,
		tokens:         tokens,
	}
}

// RegisterRoutes wires the vehicle request routes.
func (h *VehicleRequestHandler) RegisterRoutes(router *mux.Router) {
	requests := router.PathPrefix("/v1/vehicle-requests").Subrouter()
	requests.Use(middleware.Authenticate(h.tokens))
	requests.HandleFunc("", h.ListRequests).Methods(http.MethodGet)
	requests.HandleFunc("", h.CreateRequest).Methods(http.MethodPost)
	requests.HandleFunc("/{id}", h.GetRequest).Methods(http.MethodGet)
	requests.HandleFunc("/{id}/decision", h.DecideRequest).Methods(http.MethodPost)
	requests.HandleFunc("/{id}/cancel", h.CancelRequest).Methods(http.MethodPost)
}

// ListRequests lists the requests visible to the caller.
func (h *VehicleRequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var status *models.VehicleRequestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed := models.VehicleRequestStatus(raw)
		switch parsed {
		case models.VehicleRequestPending, models.VehicleRequestApproved,
			models.VehicleRequestRejected, models.VehicleRequestCancelled:
		default:
			apperrors.ValidationError("unknown status").WriteHTTP(w)
			return
		}
		status = &parsed
	}

	requests, err := h.requestService.ListRequests(r.Context(), sess, status)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"data": requests})
}

// CreateRequest places a lease request.
func (h *VehicleRequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var input models.CreateVehicleRequestInput
	if !decode(w, r, &input) {
		return
	}

	request, err := h.requestService.CreateRequest(r.Context(), sess, &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, request)
}

// GetRequest returns one request.
func (h *VehicleRequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	request, err := h.requestService.GetRequest(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, request)
}

// DecideRequest approves or rejects a pending request.
func (h *VehicleRequestHandler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var input models.DecideVehicleRequestInput
	if !decode(w, r, &input) {
		return
	}

	request, err := h.requestService.DecideRequest(r.Context(), sess, mux.Vars(r)["id"], &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, request)
}

// CancelRequest withdraws the caller's own pending request.
func (h *VehicleRequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.requestService.CancelRequest(r.Context(), sess, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
