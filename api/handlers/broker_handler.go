package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vilonda/portal/api/middleware"
	"github.com/vilonda/portal/internal/httputil"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/service"
	"go.uber.org/zap"
)

// BrokerHandler exposes the broker hierarchy and commission ledger endpoints.
type BrokerHandler struct {
	responder
	brokerService *service.BrokerService
	tokens        middleware.TokenValidator
}

// NewBrokerHandler constructs a new handler instance.
func NewBrokerHandler(brokers *service.BrokerService, tokens middleware.TokenValidator, logger *zap.Logger) *BrokerHandler {
	return &BrokerHandler{
		responder:     newResponder(logger),
		brokerService: brokers,
		tokens:        tokens,
	}
}

// RegisterRoutes wires the broker routes.
func (h *BrokerHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/broker-invites/accept", h.AcceptInvite).Methods(http.MethodPost)

	invites := router.PathPrefix("/v1/broker-invites").Subrouter()
	invites.Use(middleware.Authenticate(h.tokens))
	invites.HandleFunc("/{id}", h.RevokeInvite).Methods(http.MethodDelete)

	brokers := router.PathPrefix("/v1/brokers").Subrouter()
	brokers.Use(middleware.Authenticate(h.tokens))
	brokers.HandleFunc("", h.ListRootBrokers).Methods(http.MethodGet)
	brokers.HandleFunc("", h.CreateRootBroker).Methods(http.MethodPost)
	brokers.HandleFunc("/{id}", h.GetBroker).Methods(http.MethodGet)
	brokers.HandleFunc("/{id}", h.DeactivateBroker).Methods(http.MethodDelete)
	brokers.HandleFunc("/{id}/ledger", h.GetLedger).Methods(http.MethodGet)
	brokers.HandleFunc("/{id}/commission", h.ReviseCommission).Methods(http.MethodPut)
	brokers.HandleFunc("/{id}/sub-brokers", h.ListSubBrokers).Methods(http.MethodGet)
	brokers.HandleFunc("/{id}/sub-brokers/{subId}/commission", h.AllocateCommission).Methods(http.MethodPut)
	brokers.HandleFunc("/{id}/invites", h.ListInvites).Methods(http.MethodGet)
	brokers.HandleFunc("/{id}/invites", h.InviteSubBroker).Methods(http.MethodPost)
}

// ListRootBrokers lists the top of the hierarchy.
func (h *BrokerHandler) ListRootBrokers(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	brokers, err := h.brokerService.ListRootBrokers(r.Context(), sess)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"data": brokers})
}

// CreateRootBroker provisions a top-level broker.
func (h *BrokerHandler) CreateRootBroker(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var input models.CreateRootBrokerInput
	if !decode(w, r, &input) {
		return
	}

	broker, err := h.brokerService.CreateRootBroker(r.Context(), sess, &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, broker)
}

// GetBroker returns one broker.
func (h *BrokerHandler) GetBroker(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	broker, err := h.brokerService.GetBroker(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, broker)
}

// DeactivateBroker disables a broker.
func (h *BrokerHandler) DeactivateBroker(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.brokerService.DeactivateBroker(r.Context(), sess, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetLedger returns the commission ledger of a broker.
func (h *BrokerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	ledger, err := h.brokerService.GetLedger(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ledger)
}

// ReviseCommission overrides the original commission of a broker.
func (h *BrokerHandler) ReviseCommission(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var input models.AllocateCommissionInput
	if !decode(w, r, &input) {
		return
	}

	ledger, err := h.brokerService.ReviseOriginalCommission(r.Context(), sess, mux.Vars(r)["id"], input.Commission)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ledger)
}

// ListSubBrokers lists the direct sub-brokers of a broker.
func (h *BrokerHandler) ListSubBrokers(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	brokers, err := h.brokerService.ListSubBrokers(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"data": brokers})
}

// AllocateCommission sets the commission of one direct sub-broker.
func (h *BrokerHandler) AllocateCommission(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var input models.AllocateCommissionInput
	if !decode(w, r, &input) {
		return
	}

	vars := mux.Vars(r)
	ledger, err := h.brokerService.AllocateCommission(r.Context(), sess, vars["id"], vars["subId"], input.Commission)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ledger)
}

// ListInvites lists the invitations issued by a broker.
func (h *BrokerHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	invites, err := h.brokerService.ListInvites(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"data": invites})
}

// InviteSubBroker invites a new sub-broker and reserves its commission.
func (h *BrokerHandler) InviteSubBroker(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var input models.InviteSubBrokerInput
	if !decode(w, r, &input) {
		return
	}

	result, err := h.brokerService.InviteSubBroker(r.Context(), sess, mux.Vars(r)["id"], &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, result)
}

// RevokeInvite withdraws a pending invitation.
func (h *BrokerHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.brokerService.RevokeInvite(r.Context(), sess, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AcceptInvite completes an invitation and creates the sub-broker's account.
func (h *BrokerHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var input models.AcceptInviteInput
	if !decode(w, r, &input) {
		return
	}

	user, err := h.brokerService.AcceptInvite(r.Context(), &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, user.ToUserInfo())
}
