// Package store provides persistent storage for the storyteller platform using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with one interface
// per concern:
//
//   - UserStore: Accounts and credential verification
//   - StoryStore: Stories, listing, search and view/like counters
//   - CommentStore: Comments on stories
//   - RoomStore: Rooms and membership intervals
//   - InteractionStore: The like/follow ledger
//   - SessionStore: Browser sessions
//
// SQLiteStore implements all interfaces in a single struct; Store combines them.
//
// # Schema
//
// The schema is versioned with golang-migrate. Migrations live in
// migrations/*.sql, are embedded into the binary and applied by NewSQLiteStore.
// Timestamps are RFC3339 UTC text. Profile, stats, tags, images and settings are
// JSON text columns.
//
// # Interaction Ledger
//
// user_interactions carries a unique index over
// (user_id, target_type, target_id, interaction_type). RecordInteraction uses
// INSERT OR IGNORE and only bumps the target's counter when a row was actually
// inserted, all inside one transaction:
//
//	applied, err := s.RecordInteraction(ctx, store.Interaction{
//	    UserID: userID, TargetType: store.TargetStory, TargetID: storyID,
//	    Type: store.InteractionLike,
//	})
//
// # Concurrency
//
// The store holds a single SQLite connection in WAL mode. Statements from
// concurrent goroutines serialise on it, so counter updates never lose writes.
//
// # Errors
//
//   - ErrNotFound: Entity doesn't exist
//   - ErrUserExists: Username already registered
//   - ErrInvalidCredentials: Username, role or password mismatch
//   - ErrSessionNotFound: Session missing or expired
//   - ErrRoomFull: Joining would exceed the room's capacity
//   - ErrRoomClosed: Joining a room that is not active
package store
