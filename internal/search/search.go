// ABOUTME: Story search with free-text matching and categorical filters
// ABOUTME: "All ..." sentinel values and empty strings disable a filter

package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/2389/cultural-storyteller/internal/store"
)

// Sentinel filter values meaning "no filter".
const (
	AllCategories = "All Categories"
	AllRegions    = "All Regions"
	AllLanguages  = "All Languages"
)

// MaxResults is the default and the largest number of returned stories.
const MaxResults = store.DefaultSearchLimit

// Query describes one search request.
type Query struct {
	Text     string
	Category string
	Region   string
	Language string
	Limit    int // 0 means MaxResults, larger values are clamped to it
}

// Engine runs queries against the story store.
type Engine struct {
	stories store.StoryStore
}

// NewEngine creates a search engine over stories.
func NewEngine(stories store.StoryStore) *Engine {
	return &Engine{stories: stories}
}

// Search returns stories containing q.Text in title, description or content,
// narrowed by any set filters, newest first and capped at q.Limit.
func (e *Engine) Search(ctx context.Context, q Query) ([]*store.Story, error) {
	stories, err := e.stories.SearchStories(ctx, q.Filter())
	if err != nil {
		return nil, fmt.Errorf("searching stories: %w", err)
	}
	return stories, nil
}

// Filter converts the query into a store filter, dropping sentinel values.
func (q Query) Filter() store.StoryFilter {
	limit := q.Limit
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	return store.StoryFilter{
		Text:     queryText(q.Text),
		Category: normalize(q.Category, AllCategories),
		Region:   normalize(q.Region, AllRegions),
		Language: normalize(q.Language, AllLanguages),
		Limit:    limit,
	}
}

// IsFiltered reports whether any filter or text narrows the result set.
func (q Query) IsFiltered() bool {
	f := q.Filter()
	return f.Text != "" || f.Category != "" || f.Region != "" || f.Language != ""
}

// ParseQuery builds a Query from URL parameters q, category, region, language and limit.
// Invalid or negative limits are ignored.
func ParseQuery(values url.Values) Query {
	q := Query{
		Text:     queryText(values.Get("q")),
		Category: values.Get("category"),
		Region:   values.Get("region"),
		Language: values.Get("language"),
	}
	if raw := values.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			q.Limit = n
		}
	}
	return q
}

// queryText keeps surrounding spaces, which are part of the substring matched.
// A query of only whitespace is treated as no query.
func queryText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return raw
}

func normalize(value, sentinel string) string {
	value = strings.TrimSpace(value)
	if value == sentinel {
		return ""
	}
	return value
}
