// ABOUTME: Interaction ledger giving likes and follows at-most-once semantics
// ABOUTME: Wraps the store's atomic insert-if-absent and reports outcomes to metrics

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/cultural-storyteller/internal/metrics"
	"github.com/2389/cultural-storyteller/internal/store"
)

// Outcome is the result of a like or follow request.
type Outcome string

// Outcomes reported by the ledger.
const (
	Applied          Outcome = "applied"
	AlreadyLiked     Outcome = "already_liked"
	AlreadyFollowing Outcome = "already_following"
)

// ErrSelfFollow is returned when a user tries to follow themselves.
var ErrSelfFollow = errors.New("cannot follow yourself")

// ErrUnsupportedTarget is returned for like targets other than stories and comments.
var ErrUnsupportedTarget = errors.New("unsupported like target")

// Store is the persistence the ledger needs.
type Store interface {
	store.InteractionStore
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
}

// Ledger records likes and follows.
type Ledger struct {
	store   Store
	metrics metrics.Recorder
	logger  *slog.Logger
}

// New creates a Ledger. A nil recorder disables metrics.
func New(s Store, rec metrics.Recorder, logger *slog.Logger) *Ledger {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:   s,
		metrics: rec,
		logger:  logger.With("component", "ledger"),
	}
}

// Like records userID liking the target. The first like from a user applies and
// bumps the target's counter; repeats return AlreadyLiked and change nothing.
// Unknown targets return store.ErrNotFound.
func (l *Ledger) Like(ctx context.Context, targetType string, targetID, userID int64) (Outcome, error) {
	if targetType != store.TargetStory && targetType != store.TargetComment {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTarget, targetType)
	}

	applied, err := l.store.RecordInteraction(ctx, store.Interaction{
		UserID:     userID,
		TargetType: targetType,
		TargetID:   targetID,
		Type:       store.InteractionLike,
	})
	if err != nil {
		return "", err
	}

	outcome := AlreadyLiked
	if applied {
		outcome = Applied
	}
	l.metrics.RecordLike(targetType, string(outcome))
	l.logger.Debug("like", "target_type", targetType, "target_id", targetID, "user_id", userID, "outcome", outcome)
	return outcome, nil
}

// HasLiked reports whether the user already liked the target.
func (l *Ledger) HasLiked(ctx context.Context, targetType string, targetID, userID int64) (bool, error) {
	return l.store.HasInteraction(ctx, userID, targetType, targetID, store.InteractionLike)
}

// Follow records userID following the named user.
func (l *Ledger) Follow(ctx context.Context, userID int64, username string) (Outcome, error) {
	target, err := l.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if target.ID == userID {
		return "", ErrSelfFollow
	}

	applied, err := l.store.RecordInteraction(ctx, store.Interaction{
		UserID:     userID,
		TargetType: store.TargetUser,
		TargetID:   target.ID,
		Type:       store.InteractionFollow,
	})
	if err != nil {
		return "", err
	}

	outcome := AlreadyFollowing
	if applied {
		outcome = Applied
	}
	l.metrics.RecordFollow(string(outcome))
	return outcome, nil
}

// Followers counts the users following username.
func (l *Ledger) Followers(ctx context.Context, username string) (int64, error) {
	target, err := l.store.GetUserByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	return l.store.CountInteractions(ctx, store.TargetUser, target.ID, store.InteractionFollow)
}
