// Package middleware holds the mux middleware shared by every portal route.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/vilonda/portal/internal/apperrors"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/service"
	"github.com/vilonda/portal/internal/session"
)

// TokenValidator validates access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*service.TokenClaims, error)
}

// Authenticate requires a valid bearer access token and attaches the caller's session
// to the request context.
func Authenticate(validator TokenValidator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				apperrors.Unauthorized("missing bearer token").WriteHTTP(w)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				apperrors.Unauthorized("invalid or expired token").WriteHTTP(w)
				return
			}
			ctx := session.WithSession(r.Context(), claims.Session())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects callers whose role lacks p. It must run after Authenticate.
func RequirePermission(p roles.Permission) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := session.FromContext(r.Context())
			if err != nil {
				apperrors.Unauthorized("authentication required").WriteHTTP(w)
				return
			}
			if !sess.Can(p) {
				apperrors.Forbidden("insufficient permissions").WriteHTTP(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
