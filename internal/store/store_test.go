// ABOUTME: Tests for the SQLite store
// ABOUTME: Covers schema setup, users, credentials, stories, comments and stats

package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a controllable time source for ordering assertions.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*SQLiteStore, *testClock) {
	t.Helper()
	clock := newTestClock()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath, WithClock(clock.Now))
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store, clock
}

func createTestUser(t *testing.T, s *SQLiteStore, username, role string) *User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), NewUser{
		Username:     username,
		PasswordHash: "hash-" + username,
		Role:         role,
		Email:        username + "@example.com",
	})
	require.NoError(t, err)
	return user
}

func createTestStory(t *testing.T, s *SQLiteStore, story Story) int64 {
	t.Helper()
	id, err := s.SaveStory(context.Background(), &story)
	require.NoError(t, err)
	return id
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist in nested directory")

	version, err := store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestNewSQLiteStore_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	_, err = first.CreateUser(context.Background(), NewUser{Username: "meera", PasswordHash: "h", Role: RoleStoryteller})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	user, err := second.GetUserByUsername(context.Background(), "meera")
	require.NoError(t, err)
	assert.Equal(t, RoleStoryteller, user.Role)
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
}

func TestCreateUser(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, NewUser{
		Username:     "ravi",
		PasswordHash: "secret-hash",
		Role:         RoleAudience,
		Email:        "ravi@example.com",
	})
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "ravi", user.Username)
	assert.Equal(t, RoleAudience, user.Role)
	assert.Equal(t, "ravi@example.com", user.Email)
	assert.Equal(t, clock.Now(), user.CreatedAt)
	assert.Nil(t, user.LastLogin)
	assert.Equal(t, UserStats{}, user.Stats)
	assert.NotNil(t, user.Profile.Preferences)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	original := createTestUser(t, store, "ravi", RoleStoryteller)

	_, err := store.CreateUser(ctx, NewUser{Username: "ravi", PasswordHash: "other", Role: RoleAudience})
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := store.GetUserByUsername(ctx, "ravi")
	require.NoError(t, err)
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, RoleStoryteller, got.Role)
	assert.Equal(t, "hash-ravi", got.PasswordHash)
}

func TestCreateUser_RejectsUnknownRole(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.CreateUser(context.Background(), NewUser{Username: "x", PasswordHash: "h", Role: "admin"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserExists)
}

func TestGetUser_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetUser(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyCredentials(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "asha", RoleStoryteller)

	tests := []struct {
		name     string
		username string
		role     string
		hash     string
		wantErr  error
	}{
		{"all fields match", "asha", RoleStoryteller, "hash-asha", nil},
		{"wrong role", "asha", RoleAudience, "hash-asha", ErrInvalidCredentials},
		{"wrong password", "asha", RoleStoryteller, "nope", ErrInvalidCredentials},
		{"unknown user", "ghost", RoleStoryteller, "hash-asha", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := store.VerifyCredentials(ctx, tt.username, tt.role, ExactHash(tt.hash))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, user.LastLogin)
			assert.Equal(t, clock.Now(), *user.LastLogin)
		})
	}
}

func TestVerifyCredentials_NilCheckRejects(t *testing.T) {
	store, _ := setupTestStore(t)
	createTestUser(t, store, "asha", RoleStoryteller)

	_, err := store.VerifyCredentials(context.Background(), "asha", RoleStoryteller, nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyCredentials_LastLoginMonotonic(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "asha", RoleStoryteller)

	first, err := store.VerifyCredentials(ctx, "asha", RoleStoryteller, ExactHash("hash-asha"))
	require.NoError(t, err)

	clock.Advance(-time.Hour)
	second, err := store.VerifyCredentials(ctx, "asha", RoleStoryteller, ExactHash("hash-asha"))
	require.NoError(t, err)
	assert.False(t, second.LastLogin.Before(*first.LastLogin))

	clock.Advance(2 * time.Hour)
	third, err := store.VerifyCredentials(ctx, "asha", RoleStoryteller, ExactHash("hash-asha"))
	require.NoError(t, err)
	assert.True(t, third.LastLogin.After(*second.LastLogin))

	stored, err := store.GetUserByUsername(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, *third.LastLogin, *stored.LastLogin)
}

func TestSaveAndGetStory(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "asha", RoleStoryteller)

	id := createTestStory(t, store, Story{
		Title:       "The Wise Minister",
		Author:      "asha",
		Content:     "Once upon a time in the court of Akbar...",
		Description: "Birbal outwits a rival",
		Category:    "Wisdom Tales",
		Region:      "North India",
		Language:    "Hindi",
		Tags:        []string{"wisdom", "court"},
		Duration:    "5-10 minutes",
		Settings:    DefaultStorySettings(),
		Images:      []string{"https://example.com/a.png"},
	})

	story, err := store.GetStory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "The Wise Minister", story.Title)
	assert.Equal(t, "asha", story.Author)
	assert.Equal(t, []string{"wisdom", "court"}, story.Tags)
	assert.Equal(t, []string{"https://example.com/a.png"}, story.Images)
	assert.Equal(t, DefaultStorySettings(), story.Settings)
	assert.Zero(t, story.Views)
	assert.Zero(t, story.Likes)
	assert.Equal(t, clock.Now(), story.CreatedAt)

	author, err := store.GetUserByUsername(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, int64(1), author.Stats.StoriesCreated)
}

func TestSaveStory_NilTagsStoredAsEmpty(t *testing.T) {
	store, _ := setupTestStore(t)
	id := createTestStory(t, store, Story{Title: "Untagged", Author: "nobody"})

	story, err := store.GetStory(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, story.Tags)
	assert.Empty(t, story.Images)
}

func TestGetStory_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.GetStory(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListStories_NewestFirst(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()

	first := createTestStory(t, store, Story{Title: "First", Author: "a"})
	clock.Advance(time.Minute)
	second := createTestStory(t, store, Story{Title: "Second", Author: "b"})
	// Same timestamp as second; id breaks the tie.
	third := createTestStory(t, store, Story{Title: "Third", Author: "a"})

	all, err := store.ListStories(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{third, second, first}, []int64{all[0].ID, all[1].ID, all[2].ID})

	limited, err := store.ListStories(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	byAuthor, err := store.ListStoriesByAuthor(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, byAuthor, 2)
	assert.Equal(t, third, byAuthor[0].ID)
	assert.Equal(t, first, byAuthor[1].ID)
}

func TestIncrementViewsAndLikes(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "asha", RoleStoryteller)
	id := createTestStory(t, store, Story{Title: "Counted", Author: "asha"})

	for i := 0; i < 3; i++ {
		require.NoError(t, store.IncrementViews(ctx, id))
	}
	require.NoError(t, store.IncrementLikes(ctx, id))

	story, err := store.GetStory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), story.Views)
	assert.Equal(t, int64(1), story.Likes)

	author, err := store.GetUserByUsername(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, int64(3), author.Stats.ViewsReceived)
}

func TestIncrementViews_Concurrent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	id := createTestStory(t, store, Story{Title: "Busy", Author: "asha"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.IncrementViews(ctx, id))
		}()
	}
	wg.Wait()

	story, err := store.GetStory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(20), story.Views)
}

func TestIncrement_UnknownStory(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.IncrementViews(ctx, 7), ErrNotFound)
	assert.ErrorIs(t, store.IncrementLikes(ctx, 7), ErrNotFound)
}

func TestComments(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "ravi", RoleAudience)
	storyID := createTestStory(t, store, Story{Title: "Commented", Author: "asha"})

	firstID, err := store.AddComment(ctx, &Comment{StoryID: storyID, UserID: user.ID, Text: "Lovely"})
	require.NoError(t, err)
	clock.Advance(time.Second)
	secondID, err := store.AddComment(ctx, &Comment{
		StoryID: storyID, UserID: user.ID, Text: "Listen", Type: CommentVoice, AudioRef: "media/a.mp3",
	})
	require.NoError(t, err)

	comments, err := store.ListComments(ctx, storyID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, secondID, comments[0].ID)
	assert.Equal(t, firstID, comments[1].ID)
	assert.Equal(t, "ravi", comments[0].Username)
	assert.Equal(t, CommentVoice, comments[0].Type)
	assert.Equal(t, CommentText, comments[1].Type)

	got, err := store.GetComment(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "Lovely", got.Text)
}

func TestAddComment_MissingReferences(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "ravi", RoleAudience)
	storyID := createTestStory(t, store, Story{Title: "Real", Author: "asha"})

	_, err := store.AddComment(ctx, &Comment{StoryID: 999, UserID: user.ID, Text: "orphan"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.AddComment(ctx, &Comment{StoryID: storyID, UserID: 999, Text: "nobody"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlatformStats_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	stats, err := store.PlatformStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalUsers)
	assert.Zero(t, stats.TotalStories)
	assert.Zero(t, stats.TotalViews)
	assert.Zero(t, stats.TotalLikes)
	assert.Empty(t, stats.UsersByRole)
}

func TestPlatformStats(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "asha", RoleStoryteller)
	createTestUser(t, store, "ravi", RoleAudience)
	createTestUser(t, store, "uma", RoleAudience)

	a := createTestStory(t, store, Story{Title: "A", Author: "asha"})
	b := createTestStory(t, store, Story{Title: "B", Author: "asha"})
	require.NoError(t, store.IncrementViews(ctx, a))
	require.NoError(t, store.IncrementViews(ctx, b))
	require.NoError(t, store.IncrementViews(ctx, b))
	require.NoError(t, store.IncrementLikes(ctx, b))

	stats, err := store.PlatformStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.UsersByRole[RoleStoryteller])
	assert.Equal(t, int64(2), stats.UsersByRole[RoleAudience])
	assert.Equal(t, int64(2), stats.TotalStories)
	assert.Equal(t, int64(3), stats.TotalViews)
	assert.Equal(t, int64(1), stats.TotalLikes)
}
