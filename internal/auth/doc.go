// Package auth provides authentication and authorization for the storyteller platform.
//
// # Roles and Capabilities
//
// Every user holds exactly one role: storyteller, audience or guest. What a role
// may do is answered by a Policy, an immutable role to capability table built
// once at startup and shared by reference:
//
//	policy := auth.DefaultPolicy()
//	policy.Allows(auth.RoleAudience, auth.CapComment) // true
//	policy.Allows(auth.RoleGuest, auth.CapLike)       // false
//
// Unknown or unset roles fall back to the guest row; unknown capabilities are
// denied.
//
// # Sessions
//
// A Session is request-scoped state (authenticated flag, role, user) carried on
// the request context:
//
//	ctx = auth.WithSession(ctx, session)
//	s := auth.FromContext(ctx) // anonymous guest when nothing is attached
//
// Sessions are created by the web layer (cookie) or by BearerSession (JWT).
//
// # Credentials
//
// Service registers accounts with bcrypt password hashes and logs users in by
// matching username, role and password. Unknown usernames still pay for a
// bcrypt comparison so response timing does not reveal which names exist.
//
// # Tokens
//
// API clients authenticate with HS256 JWTs issued by TokenIssuer. The "sub"
// claim holds the username and the "role" claim the role at issue time.
package auth
