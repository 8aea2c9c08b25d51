package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/vilonda/portal/api/middleware"
	"github.com/vilonda/portal/internal/apperrors"
	"github.com/vilonda/portal/internal/httputil"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/service"
	"go.uber.org/zap"
)

// AuthenticationHandler handles login, registration and account administration endpoints
type AuthenticationHandler struct {
	responder
	authenticationService *service.AuthenticationService
	verificationService   *service.VerificationService
	serviceName           string
}

// NewAuthenticationHandler creates a new auth handler
func NewAuthenticationHandler(authService *service.AuthenticationService, verifications *service.VerificationService, serviceName string, logger *zap.Logger) *AuthenticationHandler {
	return &AuthenticationHandler{
		responder:             newResponder(logger),
		authenticationService: authService,
		verificationService:   verifications,
		serviceName:           serviceName,
	}
}

// RegisterRoutes registers all auth routes
func (h *AuthenticationHandler) RegisterRoutes(router *mux.Router) {
	// Public routes (no auth required)
	router.HandleFunc("/v1/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/v1/register", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/v1/refresh", h.RefreshToken).Methods(http.MethodPost)
	router.HandleFunc("/v1/verification/confirm", h.ConfirmVerification).Methods(http.MethodPost)
	router.HandleFunc("/v1/health", h.Health).Methods(http.MethodGet)

	// Protected routes (authentication required)
	authenticated := router.PathPrefix("/v1/auth").Subrouter()
	authenticated.Use(middleware.Authenticate(h.authenticationService))
	authenticated.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	authenticated.HandleFunc("/verification/resend", h.ResendVerification).Methods(http.MethodPost)

	// Administrative routes
	adminRouter := router.PathPrefix("/v1/admin").Subrouter()
	adminRouter.Use(middleware.Authenticate(h.authenticationService))
	adminRouter.Use(middleware.RequirePermission(roles.ManageUsers))
	adminRouter.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	adminRouter.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	adminRouter.HandleFunc("/users/{id}/role", h.SetUserRole).Methods(http.MethodPut)
	adminRouter.HandleFunc("/users/{id}", h.DeactivateUser).Methods(http.MethodDelete)
}

// Login handles user login
func (h *AuthenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		apperrors.ValidationError("Email and password are required").WriteHTTP(w)
		return
	}

	response, err := h.authenticationService.Login(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, response)
}

// Register handles self-service registration of private customers
func (h *AuthenticationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, emailSent, err := h.authenticationService.RegisterCustomer(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, map[string]any{
		"user":       user.ToUserInfo(),
		"email_sent": emailSent,
	})
}

// RefreshToken handles token refresh
func (h *AuthenticationHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if !decode(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		apperrors.ValidationError("Refresh token is required").WriteHTTP(w)
		return
	}

	response, err := h.authenticationService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, response)
}

type confirmVerificationRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ConfirmVerification marks an account verified using the mailed code
func (h *AuthenticationHandler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	var req confirmVerificationRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.verificationService.Confirm(r.Context(), req.Email, req.Code); err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// ResendVerification mails a fresh code to the caller
func (h *AuthenticationHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	sent, err := h.verificationService.Resend(r.Context(), sess)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusAccepted, map[string]bool{"email_sent": sent})
}

// Health returns service health status
func (h *AuthenticationHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.serviceName,
	})
}

// Me returns details about the authenticated user.
func (h *AuthenticationHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	userInfo, err := h.authenticationService.GetUserInfoByID(r.Context(), sess.UserID)
	if err != nil {
		apperrors.Internal("failed to load user profile").WithInternal(err).WriteHTTP(w)
		return
	}
	if userInfo == nil {
		apperrors.NotFound("user").WriteHTTP(w)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, userInfo)
}

// ListUsers returns a paginated list of users, optionally filtered by role.
func (h *AuthenticationHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var role *roles.Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, err := roles.Parse(raw)
		if err != nil {
			apperrors.ValidationError("unknown role").WriteHTTP(w)
			return
		}
		role = &parsed
	}

	page := httputil.ParsePagination(r)
	userInfos, total, err := h.authenticationService.ListUsers(r.Context(), sess, role, page.Offset(), page.PageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"data": userInfos,
		"pagination": map[string]any{
			"page":        page.Page,
			"page_size":   page.PageSize,
			"total":       total,
			"total_pages": page.TotalPages(total),
		},
	})
}

// CreateUser provisions an account of any role.
func (h *AuthenticationHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var input models.CreateUserInput
	if !decode(w, r, &input) {
		return
	}

	user, err := h.authenticationService.CreateUser(r.Context(), sess, &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, user.ToUserInfo())
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetUserRole changes the role of a user.
func (h *AuthenticationHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	var req setRoleRequest
	if !decode(w, r, &req) {
		return
	}
	role, err := roles.Parse(req.Role)
	if err != nil {
		apperrors.ValidationError("unknown role").WriteHTTP(w)
		return
	}

	user, err := h.authenticationService.SetUserRole(r.Context(), sess, mux.Vars(r)["id"], role)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, user.ToUserInfo())
}

// DeactivateUser disables a user account.
func (h *AuthenticationHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.authenticationService.DeactivateUser(r.Context(), sess, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
