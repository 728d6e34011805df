// ABOUTME: Tests for story search
// ABOUTME: Covers substring matching across fields, exact filters, ordering and the cap

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSearchStories(t *testing.T, s *SQLiteStore, clock *testClock) map[string]int64 {
	t.Helper()
	ids := map[string]int64{}
	stories := []Story{
		{Title: "The Clever Minister", Description: "Court wisdom", Content: "Birbal answers the emperor.",
			Category: "Wisdom Tales", Region: "North India", Language: "Hindi"},
		{Title: "River Goddess", Description: "A tale of the Kaveri", Content: "The river rose.",
			Category: "Mythological", Region: "South India", Language: "Tamil"},
		{Title: "Harvest Song", Description: "Village festival", Content: "Drums and the emperor's feast.",
			Category: "Folk Tales", Region: "North India", Language: "Punjabi"},
		{Title: "100% Courage", Description: "Odds were 1_in_100", Content: "A soldier's story.",
			Category: "Heroic Adventures", Region: "West India", Language: "Marathi"},
	}
	for _, story := range stories {
		story.Author = "asha"
		ids[story.Title] = createTestStory(t, s, story)
		clock.Advance(time.Minute)
	}
	return ids
}

func titles(stories []*Story) []string {
	out := make([]string, 0, len(stories))
	for _, s := range stories {
		out = append(out, s.Title)
	}
	return out
}

func TestSearchStories(t *testing.T) {
	store, clock := setupTestStore(t)
	seedSearchStories(t, store, clock)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter StoryFilter
		want   []string
	}{
		{
			name:   "empty text matches all newest first",
			filter: StoryFilter{},
			want:   []string{"100% Courage", "Harvest Song", "River Goddess", "The Clever Minister"},
		},
		{
			name:   "title substring",
			filter: StoryFilter{Text: "Goddess"},
			want:   []string{"River Goddess"},
		},
		{
			name:   "description substring",
			filter: StoryFilter{Text: "Kaveri"},
			want:   []string{"River Goddess"},
		},
		{
			name:   "content substring across stories",
			filter: StoryFilter{Text: "emperor"},
			want:   []string{"Harvest Song", "The Clever Minister"},
		},
		{
			name:   "text and region",
			filter: StoryFilter{Text: "emperor", Region: "North India", Language: "Hindi"},
			want:   []string{"The Clever Minister"},
		},
		{
			name:   "category only",
			filter: StoryFilter{Category: "Mythological"},
			want:   []string{"River Goddess"},
		},
		{
			name:   "percent is literal",
			filter: StoryFilter{Text: "100%"},
			want:   []string{"100% Courage"},
		},
		{
			name:   "underscore is literal",
			filter: StoryFilter{Text: "1_in"},
			want:   []string{"100% Courage"},
		},
		{
			name:   "no match",
			filter: StoryFilter{Text: "dragon"},
			want:   []string{},
		},
		{
			name:   "unknown category matches nothing",
			filter: StoryFilter{Category: "Science Fiction"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.SearchStories(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestSearchStories_Cap(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < DefaultSearchLimit+5; i++ {
		createTestStory(t, store, Story{Title: fmt.Sprintf("Tale %d", i), Author: "asha"})
	}

	got, err := store.SearchStories(ctx, StoryFilter{Text: "Tale"})
	require.NoError(t, err)
	assert.Len(t, got, DefaultSearchLimit)

	got, err = store.SearchStories(ctx, StoryFilter{Text: "Tale", Limit: 100})
	require.NoError(t, err)
	assert.Len(t, got, DefaultSearchLimit+5)
}
