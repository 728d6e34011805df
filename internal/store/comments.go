// ABOUTME: Comment persistence for stories
// ABOUTME: Comments must reference an existing story and user

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddComment inserts a comment and returns its ID.
// Returns ErrNotFound when the story or user does not exist.
func (s *SQLiteStore) AddComment(ctx context.Context, c *Comment) (int64, error) {
	kind := c.Type
	if kind == "" {
		kind = CommentText
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (story_id, user_id, comment_text, comment_type, audio_file, likes, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, c.StoryID, c.UserID, c.Text, kind, c.AudioRef, s.timestamp())
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("inserting comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading comment id: %w", err)
	}

	s.logger.Debug("added comment", "id", id, "story_id", c.StoryID, "user_id", c.UserID)
	return id, nil
}

// GetComment retrieves a comment by ID with its author's username.
func (s *SQLiteStore) GetComment(ctx context.Context, id int64) (*Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.story_id, c.user_id, u.username, c.comment_text, c.comment_type,
			c.audio_file, c.likes, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = ?
	`, id)
	return scanComment(row)
}

// ListComments returns a story's comments, newest first.
func (s *SQLiteStore) ListComments(ctx context.Context, storyID int64) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.story_id, c.user_id, u.username, c.comment_text, c.comment_type,
			c.audio_file, c.likes, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.story_id = ?
		ORDER BY c.created_at DESC, c.id DESC
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}
	return comments, nil
}

func scanComment(row rowScanner) (*Comment, error) {
	var c Comment
	var createdAt string
	err := row.Scan(
		&c.ID,
		&c.StoryID,
		&c.UserID,
		&c.Username,
		&c.Text,
		&c.Type,
		&c.AudioRef,
		&c.Likes,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying comment: %w", err)
	}
	if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}
