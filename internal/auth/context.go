// ABOUTME: Request-scoped session for tracking identity through request handlers
// ABOUTME: Provides WithSession/FromContext for propagating the session via context

package auth

import (
	"context"

	"github.com/2389/cultural-storyteller/internal/store"
)

// Session holds the identity attached to one request.
// A nil User with Authenticated set is a guest who chose to continue without an account.
type Session struct {
	ID            string // browser session ID, empty for token-authenticated requests
	Authenticated bool
	Role          Role
	User          *store.User
}

// Anonymous returns an unauthenticated session with guest capabilities.
func Anonymous() *Session {
	return &Session{Role: RoleGuest}
}

// Can reports whether the session's role holds the capability under policy.
func (s *Session) Can(p *Policy, c Capability) bool {
	if s == nil || !s.Authenticated {
		return p.Allows(RoleGuest, c)
	}
	return p.Allows(s.Role, c)
}

// IsRegistered reports whether the session belongs to a stored account.
func (s *Session) IsRegistered() bool {
	return s != nil && s.Authenticated && s.User != nil
}

// UserID returns the account ID, or 0 for guests.
func (s *Session) UserID() int64 {
	if !s.IsRegistered() {
		return 0
	}
	return s.User.ID
}

// DisplayName returns the username, or "Guest".
func (s *Session) DisplayName() string {
	if !s.IsRegistered() {
		return "Guest"
	}
	return s.User.Username
}

// sessionKey is the key type for storing Session in context.Context.
type sessionKey struct{}

// WithSession returns a new context with the Session attached.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext retrieves the Session from the context.
// Returns an anonymous session if none is attached.
func FromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	if !ok || s == nil {
		return Anonymous()
	}
	return s
}
