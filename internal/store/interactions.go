// ABOUTME: Interaction ledger persistence for likes and follows
// ABOUTME: A unique index plus INSERT OR IGNORE makes each interaction at-most-once

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordInteraction inserts the interaction unless an identical one exists.
// It reports whether a row was inserted. For likes on stories and comments the
// target's like counter is bumped in the same transaction, so concurrent duplicate
// likes produce exactly one increment. Returns ErrNotFound (and records nothing)
// when the liked or followed target does not exist.
func (s *SQLiteStore) RecordInteraction(ctx context.Context, in Interaction) (bool, error) {
	var applied bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO user_interactions (user_id, target_type, target_id, interaction_type, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, in.UserID, in.TargetType, in.TargetID, in.Type, s.timestamp())
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return fmt.Errorf("inserting interaction: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			// Duplicate; still report a missing target rather than a silent no-op.
			return ensureTarget(ctx, tx, in.TargetType, in.TargetID)
		}
		applied = true

		return applyInteraction(ctx, tx, in)
	})
	if err != nil {
		return false, err
	}

	if applied {
		s.logger.Debug("recorded interaction",
			"user_id", in.UserID, "target_type", in.TargetType, "target_id", in.TargetID, "type", in.Type)
	}
	return applied, nil
}

// applyInteraction performs the counter side effect of a newly recorded interaction.
func applyInteraction(ctx context.Context, tx *sql.Tx, in Interaction) error {
	switch {
	case in.Type == InteractionLike && in.TargetType == TargetStory:
		author, err := bumpStoryCounter(ctx, tx, in.TargetID, "likes")
		if err != nil {
			return err
		}
		return bumpUserStat(ctx, tx, author, "likes_received")

	case in.Type == InteractionLike && in.TargetType == TargetComment:
		result, err := tx.ExecContext(ctx, `UPDATE comments SET likes = likes + 1 WHERE id = ?`, in.TargetID)
		if err != nil {
			return fmt.Errorf("incrementing comment likes: %w", err)
		}
		return requireAffected(result)

	default:
		return ensureTarget(ctx, tx, in.TargetType, in.TargetID)
	}
}

// ensureTarget returns ErrNotFound unless the target row exists.
func ensureTarget(ctx context.Context, tx *sql.Tx, targetType string, targetID int64) error {
	var table string
	switch targetType {
	case TargetStory:
		table = "stories"
	case TargetComment:
		table = "comments"
	case TargetUser:
		table = "users"
	default:
		return fmt.Errorf("unknown interaction target %q", targetType)
	}

	var exists int
	err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = ?)`, targetID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking %s: %w", targetType, err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasInteraction reports whether the user already recorded the interaction.
func (s *SQLiteStore) HasInteraction(ctx context.Context, userID int64, targetType string, targetID int64, kind string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM user_interactions
			WHERE user_id = ? AND target_type = ? AND target_id = ? AND interaction_type = ?
		)
	`, userID, targetType, targetID, kind).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking interaction: %w", err)
	}
	return exists == 1, nil
}

// CountInteractions counts interactions of one kind on a target, e.g. a user's followers.
func (s *SQLiteStore) CountInteractions(ctx context.Context, targetType string, targetID int64, kind string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_interactions
		WHERE target_type = ? AND target_id = ? AND interaction_type = ?
	`, targetType, targetID, kind).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting interactions: %w", err)
	}
	return count, nil
}
