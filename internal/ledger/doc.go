// Package ledger records likes and follows with at-most-once semantics.
//
// A user's first like of a story or comment, or first follow of another user,
// returns Applied and moves the target's counter. Every repeat returns
// AlreadyLiked or AlreadyFollowing and changes nothing. Following yourself is
// refused with ErrSelfFollow.
//
//	outcome, err := l.Like(ctx, store.TargetStory, storyID, userID)
//
// The guarantee rests on the store's unique interaction index, so concurrent
// requests from the same user cannot double count.
package ledger
