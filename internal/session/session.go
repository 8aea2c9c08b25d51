// Package session carries the authenticated caller through a request.
package session

import (
	"context"
	"errors"

	"github.com/vilonda/portal/internal/roles"
)

// ErrNoSession is returned when a request carries no authenticated caller.
var ErrNoSession = errors.New("no authenticated session")

// Session describes the authenticated caller of one request.
type Session struct {
	UserID    string
	Email     string
	Role      roles.Role
	CompanyID string
	BrokerID  string
}

// Can reports whether the caller may perform p.
func (s *Session) Can(p roles.Permission) bool {
	if s == nil {
		return false
	}
	return roles.Can(s.Role, p)
}

// IsAdmin reports whether the caller is a platform administrator.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == roles.Admin
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext extracts the session placed by WithSession.
func FromContext(ctx context.Context) (*Session, error) {
	if ctx == nil {
		return nil, ErrNoSession
	}
	s, ok := ctx.Value(contextKey{}).(*Session)
	if !ok || s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}
