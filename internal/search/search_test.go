// ABOUTME: Tests for query parsing, sentinel filtering and store-backed search
// ABOUTME: Runs against a temp SQLite store seeded with a few stories

package search

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/cultural-storyteller/internal/store"
)

func setupEngine(t *testing.T) (*Engine, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewEngine(s), s
}

func TestQuery_FilterDropsSentinels(t *testing.T) {
	q := Query{Text: "akbar", Category: AllCategories, Region: AllRegions, Language: AllLanguages}
	f := q.Filter()

	assert.Equal(t, "akbar", f.Text)
	assert.Empty(t, f.Category)
	assert.Empty(t, f.Region)
	assert.Empty(t, f.Language)
	assert.Equal(t, MaxResults, f.Limit)
}

func TestQuery_FilterKeepsRealValues(t *testing.T) {
	f := Query{Category: "Folk Tales", Region: "East India", Language: "Bengali", Limit: 5}.Filter()

	assert.Equal(t, "Folk Tales", f.Category)
	assert.Equal(t, "East India", f.Region)
	assert.Equal(t, "Bengali", f.Language)
	assert.Equal(t, 5, f.Limit)
}

func TestQuery_IsFiltered(t *testing.T) {
	assert.False(t, Query{}.IsFiltered())
	assert.False(t, Query{Category: AllCategories, Region: AllRegions}.IsFiltered())
	assert.True(t, Query{Region: "South India"}.IsFiltered())
	assert.True(t, Query{Text: "river"}.IsFiltered())
}

func TestParseQuery(t *testing.T) {
	values := url.Values{
		"q":        {"  river  "},
		"category": {"Mythological"},
		"region":   {AllRegions},
		"language": {"Tamil"},
		"limit":    {"10"},
	}

	q := ParseQuery(values)
	assert.Equal(t, "  river  ", q.Text, "surrounding spaces are part of the match")
	assert.Equal(t, "Mythological", q.Category)
	assert.Equal(t, AllRegions, q.Region)
	assert.Equal(t, "Tamil", q.Language)
	assert.Equal(t, 10, q.Limit)

	assert.Empty(t, ParseQuery(url.Values{"q": {" \t "}}).Text)
	assert.False(t, ParseQuery(url.Values{"q": {"   "}}).IsFiltered())

	assert.Equal(t, MaxResults, ParseQuery(url.Values{"limit": {"100000"}}).Filter().Limit)
	assert.Equal(t, MaxResults, Query{}.Filter().Limit)

	assert.Zero(t, ParseQuery(url.Values{"limit": {"-3"}}).Limit)
	assert.Zero(t, ParseQuery(url.Values{"limit": {"lots"}}).Limit)
}

func TestEngine_Search(t *testing.T) {
	engine, s := setupEngine(t)
	ctx := context.Background()

	for _, story := range []store.Story{
		{Title: "Akbar and Birbal", Author: "asha", Category: "Wisdom Tales", Region: "North India", Language: "Hindi"},
		{Title: "Tenali Raman", Author: "asha", Category: "Wisdom Tales", Region: "South India", Language: "Telugu"},
		{Title: "Durga Puja Night", Author: "asha", Category: "Religious Stories", Region: "East India", Language: "Bengali"},
	} {
		story := story
		_, err := s.SaveStory(ctx, &story)
		require.NoError(t, err)
	}

	all, err := engine.Search(ctx, Query{Category: AllCategories, Region: AllRegions, Language: AllLanguages})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	wisdom, err := engine.Search(ctx, Query{Category: "Wisdom Tales"})
	require.NoError(t, err)
	assert.Len(t, wisdom, 2)
	for _, st := range wisdom {
		assert.Equal(t, "Wisdom Tales", st.Category)
	}

	south, err := engine.Search(ctx, Query{Category: "Wisdom Tales", Region: "South India", Language: AllLanguages})
	require.NoError(t, err)
	require.Len(t, south, 1)
	assert.Equal(t, "Tenali Raman", south[0].Title)

	birbal, err := engine.Search(ctx, Query{Text: "Birbal"})
	require.NoError(t, err)
	require.Len(t, birbal, 1)
	assert.Equal(t, "Akbar and Birbal", birbal[0].Title)

	spaced, err := engine.Search(ctx, ParseQuery(url.Values{"q": {" and "}}))
	require.NoError(t, err)
	require.Len(t, spaced, 1)
	assert.Equal(t, "Akbar and Birbal", spaced[0].Title)

	trailing, err := engine.Search(ctx, ParseQuery(url.Values{"q": {"Birbal "}}))
	require.NoError(t, err)
	assert.Empty(t, trailing, "Birbal ends the title, so a trailing space cannot match")

	blank, err := engine.Search(ctx, ParseQuery(url.Values{"q": {"   "}}))
	require.NoError(t, err)
	assert.Len(t, blank, 3)

	capped, err := engine.Search(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, "Durga Puja Night", capped[0].Title)
}
