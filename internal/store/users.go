// ABOUTME: User account persistence and credential verification
// ABOUTME: Usernames are unique; roles are fixed at registration

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = `id, username, password_hash, user_type, email, created_at, last_login, profile_data, stats`

// CreateUser registers a new account with empty profile and stats.
// Returns ErrUserExists if the username is taken; the existing row is untouched.
func (s *SQLiteStore) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	createdAt := s.timestamp()
	profile, err := encodeJSON(Profile{Preferences: map[string]string{}}, "{}")
	if err != nil {
		return nil, err
	}
	stats, err := encodeJSON(UserStats{}, "{}")
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, user_type, email, created_at, profile_data, stats)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.Username, u.PasswordHash, u.Role, u.Email, createdAt, profile, stats)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user id: %w", err)
	}

	s.logger.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return s.GetUser(ctx, id)
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// VerifyCredentials looks up the account matching both username and role and
// runs check against its stored hash. On success last_login is stamped.
// Any mismatch yields ErrInvalidCredentials.
func (s *SQLiteStore) VerifyCredentials(ctx context.Context, username, role string, check CredentialCheck) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND user_type = ?`, username, role)
	user, err := scanUser(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if check == nil || !check(user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	// Never move last_login backwards even if the clock does.
	now := s.now()
	if user.LastLogin != nil && now.Before(*user.LastLogin) {
		now = *user.LastLogin
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, formatTime(now), user.ID); err != nil {
		return nil, fmt.Errorf("updating last_login: %w", err)
	}
	stamped := now.UTC().Truncate(time.Second)
	user.LastLogin = &stamped

	return user, nil
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	var createdAt, profile, stats string
	var lastLogin sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.Email,
		&createdAt,
		&lastLogin,
		&profile,
		&stats,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if user.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if user.LastLogin, err = parseNullTime("last_login", lastLogin); err != nil {
		return nil, err
	}
	if err := decodeJSON("profile_data", profile, &user.Profile); err != nil {
		return nil, err
	}
	if err := decodeJSON("stats", stats, &user.Stats); err != nil {
		return nil, err
	}
	if user.Profile.Preferences == nil {
		user.Profile.Preferences = map[string]string{}
	}

	return &user, nil
}

// bumpUserStat increments one field of the stats blob for the named user.
// Unknown usernames are ignored; the author of a story may be absent.
func bumpUserStat(ctx context.Context, tx *sql.Tx, username, field string) error {
	path := "$." + field
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET stats = json_set(stats, ?, COALESCE(json_extract(stats, ?), 0) + 1)
		WHERE username = ?
	`, path, path, username)
	if err != nil {
		return fmt.Errorf("updating %s for %s: %w", field, username, err)
	}
	return nil
}
