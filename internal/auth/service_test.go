// ABOUTME: Tests for registration and login against a real SQLite store
// ABOUTME: Covers validation errors, duplicate names and three-field credential matching

package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/cultural-storyteller/internal/store"
)

func setupTestService(t *testing.T) (*Service, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return NewService(s, ServiceConfig{BcryptCost: bcrypt.MinCost}, nil), s
}

func TestRegister(t *testing.T) {
	svc, s := setupTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "asha", "secret1", RoleStoryteller, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, "storyteller", user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	stored, err := s.GetUserByUsername(ctx, "asha")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		role     Role
		wantErr  error
	}{
		{"short username", "ab", "secret1", RoleAudience, ErrInvalidUsername},
		{"username starts with digit", "1asha", "secret1", RoleAudience, ErrInvalidUsername},
		{"short password", "asha", "12345", RoleAudience, ErrWeakPassword},
		{"guest cannot register", "asha", "secret1", RoleGuest, ErrInvalidRole},
		{"unknown role", "asha", "secret1", Role("admin"), ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.password, tt.role, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "asha", "secret1", RoleStoryteller, "")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "asha", "other-secret", RoleAudience, "")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// The original password still works for the original role.
	_, err = svc.Login(ctx, "asha", "secret1", RoleStoryteller)
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "ravi", "listen123", RoleAudience, "")
	require.NoError(t, err)

	sess, err := svc.Login(ctx, "ravi", "listen123", RoleAudience)
	require.NoError(t, err)
	assert.True(t, sess.Authenticated)
	assert.Equal(t, RoleAudience, sess.Role)
	require.NotNil(t, sess.User)
	assert.Equal(t, "ravi", sess.User.Username)
	assert.NotNil(t, sess.User.LastLogin)

	tests := []struct {
		name     string
		username string
		password string
		role     Role
	}{
		{"wrong role", "ravi", "listen123", RoleStoryteller},
		{"wrong password", "ravi", "listen124", RoleAudience},
		{"unknown user", "nobody", "listen123", RoleAudience},
		{"guest role", "ravi", "listen123", RoleGuest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.username, tt.password, tt.role)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestGuestAndResume(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	guest := svc.Guest()
	assert.True(t, guest.Authenticated)
	assert.Equal(t, RoleGuest, guest.Role)
	assert.Nil(t, guest.User)

	resumed, err := svc.Resume(ctx, &store.Session{ID: "g1", Role: "guest"})
	require.NoError(t, err)
	assert.Equal(t, "g1", resumed.ID)
	assert.False(t, resumed.IsRegistered())

	user, err := svc.Register(ctx, "asha", "secret1", RoleStoryteller, "")
	require.NoError(t, err)

	resumed, err = svc.Resume(ctx, &store.Session{ID: "u1", UserID: &user.ID, Role: "storyteller"})
	require.NoError(t, err)
	assert.True(t, resumed.IsRegistered())
	assert.Equal(t, RoleStoryteller, resumed.Role)

	_, err = svc.Resume(ctx, &store.Session{ID: "u2", UserID: &user.ID, Role: "audience"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}
