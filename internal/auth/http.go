// ABOUTME: HTTP middleware for JWT authentication and capability checks on API endpoints
// ABOUTME: Extracts JWT from Authorization header and attaches a Session to the context

package auth

import (
	"net/http"
	"strings"

	"github.com/2389/cultural-storyteller/internal/store"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// BearerSession creates an HTTP middleware that resolves a bearer token into a Session.
// Requests without an Authorization header continue as anonymous; a header that
// fails verification is rejected with 401.
func BearerSession(users store.UserStore, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), Anonymous())))
				return
			}

			token, errMsg := extractBearerToken(header)
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			user, err := users.GetUserByUsername(r.Context(), claims.Username)
			if err != nil {
				http.Error(w, `{"error":"user not found"}`, http.StatusUnauthorized)
				return
			}
			if Role(user.Role) != claims.Role {
				http.Error(w, `{"error":"role mismatch"}`, http.StatusUnauthorized)
				return
			}

			sess := &Session{Authenticated: true, Role: claims.Role, User: user}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// RequireCapability creates an HTTP middleware that requires the session's role
// to hold c. Anonymous callers get 401, authenticated callers without the grant 403.
func RequireCapability(policy *Policy, c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := FromContext(r.Context())
			if sess.Can(policy, c) {
				next.ServeHTTP(w, r)
				return
			}
			if !sess.Authenticated {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}
			http.Error(w, `{"error":"`+string(c)+` required"}`, http.StatusForbidden)
		})
	}
}

// RequireAccount creates an HTTP middleware that requires a registered user.
func RequireAccount() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !FromContext(r.Context()).IsRegistered() {
				http.Error(w, `{"error":"account required"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
