package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/vilonda/portal/internal/httputil"
	"github.com/vilonda/portal/internal/service"
)

// TokenIntrospectionRequest represents a token introspection request
type TokenIntrospectionRequest struct {
	Token string `json:"token"`
}

// TokenIntrospectionResponse represents a token introspection response
type TokenIntrospectionResponse struct {
	Active    bool   `json:"active"`
	Sub       string `json:"sub,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Portal    string `json:"portal,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	BrokerID  string `json:"broker_id,omitempty"`
	IssuedAt  *int64 `json:"iat,omitempty"`
	ExpiresAt *int64 `json:"exp,omitempty"`
	NotBefore *int64 `json:"nbf,omitempty"`
	TokenType string `json:"token_type,omitempty"`
}

// TokenIntrospector validates access and refresh tokens.
type TokenIntrospector interface {
	IntrospectToken(token string) (*service.TokenClaims, error)
}

// TokenIntrospectionHandler handles token introspection requests
type TokenIntrospectionHandler struct {
	introspector TokenIntrospector
}

// NewTokenIntrospectionHandler creates a new token introspection handler
func NewTokenIntrospectionHandler(introspector TokenIntrospector) *TokenIntrospectionHandler {
	return &TokenIntrospectionHandler{introspector: introspector}
}

// RegisterRoutes registers token introspection routes
func (h *TokenIntrospectionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/token/introspect", h.Introspect).Methods(http.MethodPost)
}

// Introspect validates a token and returns its metadata. Invalid tokens are reported
// as inactive with a 200.
func (h *TokenIntrospectionHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	var req TokenIntrospectionRequest
	if !decode(w, r, &req) {
		return
	}

	response := &TokenIntrospectionResponse{Active: false}

	claims, err := h.introspector.IntrospectToken(req.Token)
	if err != nil {
		httputil.RespondJSON(w, http.StatusOK, response)
		return
	}

	response.Active = true
	response.Sub = claims.UserID
	response.Email = claims.Email
	response.CompanyID = claims.CompanyID
	response.BrokerID = claims.BrokerID
	response.TokenType = claims.TokenType
	if claims.Role != "" {
		response.Role = claims.Role.String()
		if portal, ok := claims.Role.Portal(); ok {
			response.Portal = string(portal)
		}
	}
	response.IssuedAt = unixPtr(claims.IssuedAt)
	response.ExpiresAt = unixPtr(claims.ExpiresAt)
	response.NotBefore = unixPtr(claims.NotBefore)

	httputil.RespondJSON(w, http.StatusOK, response)
}

func unixPtr(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	v := t.Unix()
	return &v
}
