// ABOUTME: Store interfaces and data types for storyteller persistence
// ABOUTME: Defines users, stories, comments, rooms, interactions, sessions and sentinel errors

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUserExists is returned when registering a username that is already taken
var ErrUserExists = errors.New("username already exists")

// ErrInvalidCredentials is returned when username, role and password do not all match
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSessionNotFound is returned when a session doesn't exist or is expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrRoomFull is returned when a new participant would exceed a room's capacity
var ErrRoomFull = errors.New("room is full")

// ErrRoomClosed is returned when joining a room that is not active
var ErrRoomClosed = errors.New("room is not active")

// Role values stored in users.user_type.
const (
	RoleStoryteller = "storyteller"
	RoleAudience    = "audience"
	RoleGuest       = "guest"
)

// Interaction target and kind values.
const (
	TargetStory   = "story"
	TargetComment = "comment"
	TargetUser    = "user"

	InteractionLike   = "like"
	InteractionFollow = "follow"
)

// Room status and type values.
const (
	RoomActive    = "active"
	RoomEnded     = "ended"
	RoomScheduled = "scheduled"

	RoomVoice  = "voice"
	RoomVideo  = "video"
	RoomAvatar = "avatar"
	RoomMixed  = "mixed"
)

// Comment type values.
const (
	CommentText  = "text"
	CommentVoice = "voice"
)

// Profile is the free-form profile blob kept on a user.
type Profile struct {
	Bio         string            `json:"bio"`
	Avatar      string            `json:"avatar"`
	Preferences map[string]string `json:"preferences"`
}

// UserStats are the per-user counters kept alongside the profile.
type UserStats struct {
	StoriesCreated int64 `json:"stories_created"`
	ViewsReceived  int64 `json:"views_received"`
	LikesReceived  int64 `json:"likes_received"`
}

// User is a registered account. Role is fixed at registration.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	Email        string
	Profile      Profile
	Stats        UserStats
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// NewUser carries the fields supplied at registration.
type NewUser struct {
	Username     string
	PasswordHash string
	Role         string
	Email        string
}

// CredentialCheck reports whether a plaintext secret matches the stored hash.
type CredentialCheck func(storedHash string) bool

// ExactHash returns a CredentialCheck that compares hashes byte for byte.
func ExactHash(passwordHash string) CredentialCheck {
	return func(stored string) bool { return stored == passwordHash }
}

// StorySettings holds per-story presentation switches.
type StorySettings struct {
	VoiceEnabled    bool `json:"voice_enabled"`
	CommentsEnabled bool `json:"comments_enabled"`
	Public          bool `json:"public"`
	Remixable       bool `json:"remixable"`
	AdultContent    bool `json:"adult_content"`
	Educational     bool `json:"educational"`
}

// DefaultStorySettings are applied to stories created without explicit settings.
func DefaultStorySettings() StorySettings {
	return StorySettings{VoiceEnabled: true, CommentsEnabled: true, Public: true}
}

// Story is a narrative authored by a storyteller.
// Views and Likes only change through the increment operations.
type Story struct {
	ID          int64
	Title       string
	Author      string
	Content     string
	Description string
	Category    string
	Region      string
	Language    string
	Tags        []string
	Duration    string
	Views       int64
	Likes       int64
	Settings    StorySettings
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AudioRef    string
	VideoRef    string
	Images      []string
}

// StorySummary is the listing projection of a story (no body).
type StorySummary struct {
	ID          int64
	Title       string
	Author      string
	Description string
	Category    string
	Region      string
	Language    string
	Tags        []string
	Duration    string
	Views       int64
	Likes       int64
	CreatedAt   time.Time
}

// StoryFilter narrows SearchStories. Empty fields do not filter.
type StoryFilter struct {
	Text     string
	Category string
	Region   string
	Language string
	Limit    int
}

// Comment is a reply to a story. Username is filled when listing.
type Comment struct {
	ID        int64
	StoryID   int64
	UserID    int64
	Username  string
	Text      string
	Type      string // "text" or "voice"
	AudioRef  string
	Likes     int64
	CreatedAt time.Time
}

// Room is a presence-tracked gathering hosted by a user.
type Room struct {
	ID              int64
	Name            string
	HostID          int64
	HostName        string
	Type            string
	Topic           string
	Language        string
	MaxParticipants int
	IsPublic        bool
	Status          string
	Settings        map[string]any
	CreatedAt       time.Time

	// Participants is the live membership count, filled by ListActiveRooms.
	Participants int
}

// RoomParticipant is one membership interval. LeftAt is nil while open.
type RoomParticipant struct {
	ID       int64
	RoomID   int64
	UserID   int64
	Role     string
	JoinedAt time.Time
	LeftAt   *time.Time
}

// Interaction is a ledger row recording a like or follow.
type Interaction struct {
	ID         int64
	UserID     int64
	TargetType string
	TargetID   int64
	Type       string
	CreatedAt  time.Time
}

// PlatformStats aggregates counts for the analytics view.
type PlatformStats struct {
	UsersByRole  map[string]int64
	TotalUsers   int64
	TotalStories int64
	TotalViews   int64
	TotalLikes   int64
	ActiveRooms  int64
}

// Session is a browser session. UserID is nil for guest sessions.
type Session struct {
	ID        string
	UserID    *int64
	Role      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// UserStore persists accounts and verifies credentials.
type UserStore interface {
	CreateUser(ctx context.Context, u NewUser) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	VerifyCredentials(ctx context.Context, username, role string, check CredentialCheck) (*User, error)
}

// StoryStore persists stories, their counters and search.
type StoryStore interface {
	SaveStory(ctx context.Context, story *Story) (int64, error)
	GetStory(ctx context.Context, id int64) (*Story, error)
	ListStories(ctx context.Context, limit int) ([]*StorySummary, error)
	ListStoriesByAuthor(ctx context.Context, author string, limit int) ([]*StorySummary, error)
	SearchStories(ctx context.Context, filter StoryFilter) ([]*Story, error)
	IncrementViews(ctx context.Context, storyID int64) error
	IncrementLikes(ctx context.Context, storyID int64) error
}

// CommentStore persists comments on stories.
type CommentStore interface {
	AddComment(ctx context.Context, c *Comment) (int64, error)
	GetComment(ctx context.Context, id int64) (*Comment, error)
	ListComments(ctx context.Context, storyID int64) ([]*Comment, error)
}

// RoomStore persists rooms and membership intervals.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *Room) (int64, error)
	GetRoom(ctx context.Context, id int64) (*Room, error)
	ListActiveRooms(ctx context.Context, roomType string) ([]*Room, error)
	JoinRoom(ctx context.Context, roomID, userID int64, role string) (int64, error)
	LeaveRoom(ctx context.Context, roomID, userID int64) error
	EndRoom(ctx context.Context, roomID int64) error
	OpenMemberships(ctx context.Context, roomID, userID int64) (int, error)
	ListParticipants(ctx context.Context, roomID int64) ([]*RoomParticipant, error)
}

// InteractionStore persists likes and follows with at-most-once semantics.
type InteractionStore interface {
	RecordInteraction(ctx context.Context, in Interaction) (bool, error)
	HasInteraction(ctx context.Context, userID int64, targetType string, targetID int64, kind string) (bool, error)
	CountInteractions(ctx context.Context, targetType string, targetID int64, kind string) (int64, error)
}

// SessionStore persists browser sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Store combines every persistence concern of the platform.
type Store interface {
	UserStore
	StoryStore
	CommentStore
	RoomStore
	InteractionStore
	SessionStore

	PlatformStats(ctx context.Context) (*PlatformStats, error)
	Close() error
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
