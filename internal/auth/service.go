// ABOUTME: Account registration and login using bcrypt password hashes
// ABOUTME: Login requires username, role and password to all match

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/cultural-storyteller/internal/store"
)

// Credential errors
var (
	ErrInvalidCredentials = errors.New("invalid username, password or role")
	ErrAlreadyExists      = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidRole        = errors.New("invalid role")
)

// Username validation regex: alphanumeric + underscores, 3-32 characters
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,31}$`)

// dummyHash is compared against when the user doesn't exist to keep timing constant.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// DefaultMinPasswordLength is used when ServiceConfig leaves it unset.
const DefaultMinPasswordLength = 6

// ServiceConfig tunes the credential service.
type ServiceConfig struct {
	MinPasswordLength int
	BcryptCost        int // 0 means bcrypt.DefaultCost
}

// Service registers accounts and verifies logins.
type Service struct {
	users  store.UserStore
	cfg    ServiceConfig
	logger *slog.Logger
}

// NewService creates a credential service over the given user store.
func NewService(users store.UserStore, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		cfg:    cfg,
		logger: logger.With("component", "auth"),
	}
}

// ValidateUsername checks if username meets requirements.
// Returns a message suitable for a form, or empty string if valid.
func ValidateUsername(username string) string {
	if len(username) < 3 {
		return "Username must be at least 3 characters"
	}
	if len(username) > 32 {
		return "Username must be at most 32 characters"
	}
	if !usernameRegex.MatchString(username) {
		return "Username must start with a letter and contain only letters, numbers, and underscores"
	}
	return ""
}

// Register creates a storyteller or audience account.
// Guests never have accounts.
func (s *Service) Register(ctx context.Context, username, password string, role Role, email string) (*store.User, error) {
	if msg := ValidateUsername(username); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidUsername, msg)
	}
	if len(password) < s.cfg.MinPasswordLength {
		return nil, fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, s.cfg.MinPasswordLength)
	}
	if role != RoleStoryteller && role != RoleAudience {
		return nil, fmt.Errorf("%w: %q cannot register", ErrInvalidRole, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, store.NewUser{
		Username:     username,
		PasswordHash: string(hash),
		Role:         string(role),
		Email:        email,
	})
	if errors.Is(err, store.ErrUserExists) {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("registered user", "username", username, "role", role)
	return user, nil
}

// Login verifies username, password and role together and returns an
// authenticated session. Any mismatch yields ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string, role Role) (*Session, error) {
	checked := false
	check := func(stored string) bool {
		checked = true
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}

	user, err := s.users.VerifyCredentials(ctx, username, string(role), check)
	if !checked {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
	}
	if errors.Is(err, store.ErrInvalidCredentials) {
		s.logger.Debug("login rejected", "username", username, "role", role)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("verifying credentials: %w", err)
	}

	return &Session{
		Authenticated: true,
		Role:          Role(user.Role),
		User:          user,
	}, nil
}

// Guest returns an authenticated guest session with no account behind it.
func (s *Service) Guest() *Session {
	return &Session{Authenticated: true, Role: RoleGuest}
}

// Resume rebuilds a session from a stored browser session.
func (s *Service) Resume(ctx context.Context, stored *store.Session) (*Session, error) {
	role, err := ParseRole(stored.Role)
	if err != nil {
		return nil, err
	}
	if stored.UserID == nil {
		sess := s.Guest()
		sess.ID = stored.ID
		return sess, nil
	}

	user, err := s.users.GetUser(ctx, *stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading session user: %w", err)
	}
	if Role(user.Role) != role {
		return nil, fmt.Errorf("%w: session role %q does not match account", ErrInvalidRole, role)
	}

	return &Session{ID: stored.ID, Authenticated: true, Role: role, User: user}, nil
}
