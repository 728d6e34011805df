// ABOUTME: Browser session persistence for the web UI
// ABOUTME: Sessions expire; guest sessions carry a role but no user

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateSession creates a new browser session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	var userID sql.NullInt64
	if session.UserID != nil {
		userID = sql.NullInt64{Int64: *session.UserID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, role, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		session.ID,
		userID,
		session.Role,
		formatTime(session.CreatedAt),
		formatTime(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "role", session.Role, "user_id", userID.Int64)
	return nil
}

// GetSession retrieves a valid (non-expired) session.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var session Session
	var userID sql.NullInt64
	var createdAt, expiresAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, role, created_at, expires_at
		FROM sessions
		WHERE id = ? AND expires_at > ?
	`, id, s.timestamp()).Scan(
		&session.ID,
		&userID,
		&session.Role,
		&createdAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if userID.Valid {
		session.UserID = &userID.Int64
	}
	if session.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if session.ExpiresAt, err = parseTime("expires_at", expiresAt); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession deletes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions and reports how many were removed.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("deleted expired sessions", "count", rowsAffected)
	}
	return rowsAffected, nil
}
