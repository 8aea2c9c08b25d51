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

// CompanyHandler exposes company registration and employee management.
type CompanyHandler struct {
	responder
	companyService *service.CompanyService
	tokens         middleware.TokenValidator
}

// NewCompanyHandler constructs a new handler instance.
func NewCompanyHandler(companies *service.CompanyService, tokens middleware.TokenValidator, logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{
		responder:      newResponder(logger),
		companyService: companies,
		tokens:         tokens,
	}
}

// RegisterRoutes wires the routes for company management.
func (h *CompanyHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/companies/register", h.RegisterCompany).Methods(http.MethodPost)

	authenticated := router.PathPrefix("/v1/companies").Subrouter()
	authenticated.Use(middleware.Authenticate(h.tokens))
	authenticated.HandleFunc("", h.ListCompanies).Methods(http.MethodGet)
	authenticated.HandleFunc("/{id}", h.GetCompany).Methods(http.MethodGet)
	authenticated.HandleFunc("/{id}", h.DeactivateCompany).Methods(http.MethodDelete)
	authenticated.HandleFunc("/{id}/employees", h.ListEmployees).Methods(http.MethodGet)
	authenticated.HandleFunc("/{id}/employees", h.AddEmployee).Methods(http.MethodPost)
}

// RegisterCompany creates a company together with its first employer account.
func (h *CompanyHandler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var input models.RegisterCompanyInput
	if !decode(w, r, &input) {
		return
	}

	registration, err := h.companyService.RegisterCompany(r.Context(), &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, registration)
}

// ListCompanies lists the companies visible to the caller.
func (h *CompanyHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	companies, err := h.companyService.ListCompanies(r.Context(), sess)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"data": companies})
}

// GetCompany returns one company.
func (h *CompanyHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	company, err := h.companyService.GetCompany(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, company)
}

// DeactivateCompany disables a company.
func (h *CompanyHandler) DeactivateCompany(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.companyService.DeactivateCompany(r.Context(), sess, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListEmployees lists the staff of a company.
func (h *CompanyHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	employees, err := h.companyService.ListEmployees(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"data": employees})
}

// AddEmployee creates an employee account in a company.
func (h *CompanyHandler) AddEmployee(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var input models.AddEmployeeInput
	if !decode(w, r, &input) {
		return
	}

	user, err := h.companyService.AddEmployee(r.Context(), sess, mux.Vars(r)["id"], &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, user.ToUserInfo())
}
