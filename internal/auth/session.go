package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUnauthenticated = errors.New("unauthenticated")

const RoleAdmin = "admin"

// Session is the verified identity of the caller
type Session struct {
	PlayerID uuid.UUID
	Role     string
}

// IsAdmin reports whether the session carries the admin role
func (s *Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

type sessionKey struct{}

// WithSession attaches a session to ctx
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// RequireAuth returns the session attached to ctx or ErrUnauthenticated
func RequireAuth(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	if !ok || s == nil || s.PlayerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	return s, nil
}

// SessionFromClaims converts verified claims into a session
func SessionFromClaims(claims *Claims) (*Session, error) {
	id, err := uuid.Parse(claims.PlayerID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return &Session{PlayerID: id, Role: claims.Role}, nil
}
