// ABOUTME: Tests for at-most-once likes and follows, including concurrent likers
// ABOUTME: Uses a real SQLite store so the unique index is exercised

package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/cultural-storyteller/internal/metrics"
	"github.com/2389/cultural-storyteller/internal/store"
)

type fixture struct {
	ledger  *Ledger
	store   *store.SQLiteStore
	teller  *store.User
	fan     *store.User
	storyID int64
}

func setup(t *testing.T) fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	teller, err := s.CreateUser(ctx, store.NewUser{Username: "asha", PasswordHash: "h", Role: store.RoleStoryteller})
	require.NoError(t, err)
	fan, err := s.CreateUser(ctx, store.NewUser{Username: "ravi", PasswordHash: "h", Role: store.RoleAudience})
	require.NoError(t, err)
	storyID, err := s.SaveStory(ctx, &store.Story{Title: "The Banyan Tree", Author: "asha"})
	require.NoError(t, err)

	return fixture{
		ledger:  New(s, metrics.NewCollector(prometheus.NewRegistry()), nil),
		store:   s,
		teller:  teller,
		fan:     fan,
		storyID: storyID,
	}
}

func TestLike_AppliedThenAlreadyLiked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	outcome, err := f.ledger.Like(ctx, store.TargetStory, f.storyID, f.fan.ID)
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)

	outcome, err = f.ledger.Like(ctx, store.TargetStory, f.storyID, f.fan.ID)
	require.NoError(t, err)
	assert.Equal(t, AlreadyLiked, outcome)

	story, err := f.store.GetStory(ctx, f.storyID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), story.Likes)

	liked, err := f.ledger.HasLiked(ctx, store.TargetStory, f.storyID, f.fan.ID)
	require.NoError(t, err)
	assert.True(t, liked)
}

func TestLike_ConcurrentCallsIncrementOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 2)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := f.ledger.Like(ctx, store.TargetStory, f.storyID, f.fan.ID)
			assert.NoError(t, err)
			outcomes[i] = o
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []Outcome{Applied, AlreadyLiked}, outcomes)

	story, err := f.store.GetStory(ctx, f.storyID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), story.Likes)
}

func TestLike_UnknownTarget(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.ledger.Like(ctx, store.TargetStory, 9999, f.fan.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.ledger.Like(ctx, "room", 1, f.fan.ID)
	assert.ErrorIs(t, err, ErrUnsupportedTarget)
}

func TestFollow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	outcome, err := f.ledger.Follow(ctx, f.fan.ID, "asha")
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)

	outcome, err = f.ledger.Follow(ctx, f.fan.ID, "asha")
	require.NoError(t, err)
	assert.Equal(t, AlreadyFollowing, outcome)

	followers, err := f.ledger.Followers(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, int64(1), followers)

	_, err = f.ledger.Follow(ctx, f.teller.ID, "asha")
	assert.ErrorIs(t, err, ErrSelfFollow)

	_, err = f.ledger.Follow(ctx, f.fan.ID, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
