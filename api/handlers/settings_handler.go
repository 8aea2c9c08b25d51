package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vilonda/portal/api/middleware"
	"github.com/vilonda/portal/internal/httputil"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/service"
	"go.uber.org/zap"
)

// SettingsHandler exposes platform-wide JSON settings to administrators.
type SettingsHandler struct {
	responder
	settingsService *service.SettingsService
	tokens          middleware.TokenValidator
}

// NewSettingsHandler constructs a new handler instance.
func NewSettingsHandler(settings *service.SettingsService, tokens middleware.TokenValidator, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		responder:       newResponder(logger),
		settingsService: settings,
		tokens:          tokens,
	}
}

// RegisterRoutes wires the settings routes.
func (h *SettingsHandler) RegisterRoutes(router *mux.Router) {
	settings := router.PathPrefix("/v1/settings").Subrouter()
	settings.Use(middleware.Authenticate(h.tokens))
	settings.Use(middleware.RequirePermission(roles.ManageSettings))
	settings.HandleFunc("", h.ListSettings).Methods(http.MethodGet)
	settings.HandleFunc("/{key}", h.GetSetting).Methods(http.MethodGet)
	settings.HandleFunc("/{key}", h.PutSetting).Methods(http.MethodPut)
}

func (h *SettingsHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	settings, err := h.settingsService.List(r.Context(), sess)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"data": settings})
}

func (h *SettingsHandler) GetSetting(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	setting, err := h.settingsService.Get(r.Context(), sess, mux.Vars(r)["key"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, setting)
}

// PutSetting stores the request body as the setting's value.
func (h *SettingsHandler) PutSetting(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var value json.RawMessage
	if !decode(w, r, &value) {
		return
	}

	setting, err := h.settingsService.Put(r.Context(), sess, mux.Vars(r)["key"], value)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, setting)
}
