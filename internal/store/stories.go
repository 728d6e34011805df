// ABOUTME: Story persistence, listing, search and counter updates
// ABOUTME: Views and likes change only through the increment operations

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// DefaultSearchLimit caps search results. Filters may ask for fewer, never more.
const DefaultSearchLimit = 50

const storyColumns = `id, title, author, content, description, category, region, language,
	tags, duration, views, likes, settings, created_at, updated_at, audio_file, video_file, images`

const summaryColumns = `id, title, author, description, category, region, language,
	tags, duration, views, likes, created_at`

// SaveStory inserts a story with zero counters and returns its ID.
// The author's stories_created stat is bumped in the same transaction.
func (s *SQLiteStore) SaveStory(ctx context.Context, story *Story) (int64, error) {
	tags, err := encodeJSON(nonNilStrings(story.Tags), "[]")
	if err != nil {
		return 0, err
	}
	images, err := encodeJSON(nonNilStrings(story.Images), "[]")
	if err != nil {
		return 0, err
	}
	settings, err := encodeJSON(story.Settings, "{}")
	if err != nil {
		return 0, err
	}
	now := s.timestamp()

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO stories (title, author, content, description, category, region, language,
				tags, duration, views, likes, settings, created_at, updated_at, audio_file, video_file, images)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?, ?, ?)
		`,
			story.Title,
			story.Author,
			story.Content,
			story.Description,
			story.Category,
			story.Region,
			story.Language,
			tags,
			story.Duration,
			settings,
			now,
			now,
			story.AudioRef,
			story.VideoRef,
			images,
		)
		if err != nil {
			return fmt.Errorf("inserting story: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("reading story id: %w", err)
		}
		return bumpUserStat(ctx, tx, story.Author, "stories_created")
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("saved story", "id", id, "author", story.Author, "category", story.Category)
	return id, nil
}

// GetStory retrieves a full story by ID.
func (s *SQLiteStore) GetStory(ctx context.Context, id int64) (*Story, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, id)
	return scanStory(row)
}

// ListStories returns summaries of the most recent stories, newest first.
// A non-positive limit means no limit.
func (s *SQLiteStore) ListStories(ctx context.Context, limit int) ([]*StorySummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM stories ORDER BY created_at DESC, id DESC`
	return s.querySummaries(ctx, query+limitClause(limit))
}

// ListStoriesByAuthor returns summaries of one author's stories, newest first.
func (s *SQLiteStore) ListStoriesByAuthor(ctx context.Context, author string, limit int) ([]*StorySummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM stories WHERE author = ? ORDER BY created_at DESC, id DESC`
	return s.querySummaries(ctx, query+limitClause(limit), author)
}

// SearchStories returns stories whose title, description or content contains
// filter.Text, narrowed by exact category, region and language when those are set.
// Results are newest first and capped at filter.Limit, itself at most DefaultSearchLimit.
func (s *SQLiteStore) SearchStories(ctx context.Context, filter StoryFilter) ([]*Story, error) {
	pattern := "%" + escapeLike(filter.Text) + "%"

	var where []string
	args := []any{pattern, pattern, pattern}
	where = append(where, `(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`)

	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Region != "" {
		where = append(where, "region = ?")
		args = append(args, filter.Region)
	}
	if filter.Language != "" {
		where = append(where, "language = ?")
		args = append(args, filter.Language)
	}

	limit := filter.Limit
	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}
	args = append(args, limit)

	query := `SELECT ` + storyColumns + ` FROM stories WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching stories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stories []*Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stories: %w", err)
	}
	return stories, nil
}

// IncrementViews adds one to a story's view count and its author's views_received.
func (s *SQLiteStore) IncrementViews(ctx context.Context, storyID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		author, err := bumpStoryCounter(ctx, tx, storyID, "views")
		if err != nil {
			return err
		}
		return bumpUserStat(ctx, tx, author, "views_received")
	})
}

// IncrementLikes adds one to a story's like count unconditionally.
// Per-user deduplication lives in RecordInteraction.
func (s *SQLiteStore) IncrementLikes(ctx context.Context, storyID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := bumpStoryCounter(ctx, tx, storyID, "likes")
		return err
	})
}

// bumpStoryCounter increments views or likes and returns the story's author.
func bumpStoryCounter(ctx context.Context, tx *sql.Tx, storyID int64, column string) (string, error) {
	var author string
	err := tx.QueryRowContext(ctx,
		`UPDATE stories SET `+column+` = `+column+` + 1 WHERE id = ? RETURNING author`, storyID).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("incrementing %s: %w", column, err)
	}
	return author, nil
}

func (s *SQLiteStore) querySummaries(ctx context.Context, query string, args ...any) ([]*StorySummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing stories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []*StorySummary
	for rows.Next() {
		var sum StorySummary
		var tags, createdAt string
		if err := rows.Scan(
			&sum.ID,
			&sum.Title,
			&sum.Author,
			&sum.Description,
			&sum.Category,
			&sum.Region,
			&sum.Language,
			&tags,
			&sum.Duration,
			&sum.Views,
			&sum.Likes,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning story: %w", err)
		}
		if err := decodeJSON("tags", tags, &sum.Tags); err != nil {
			return nil, err
		}
		if sum.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stories: %w", err)
	}
	return summaries, nil
}

func scanStory(row rowScanner) (*Story, error) {
	var story Story
	var tags, settings, createdAt, updatedAt, images string

	err := row.Scan(
		&story.ID,
		&story.Title,
		&story.Author,
		&story.Content,
		&story.Description,
		&story.Category,
		&story.Region,
		&story.Language,
		&tags,
		&story.Duration,
		&story.Views,
		&story.Likes,
		&settings,
		&createdAt,
		&updatedAt,
		&story.AudioRef,
		&story.VideoRef,
		&images,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying story: %w", err)
	}

	if err := decodeJSON("tags", tags, &story.Tags); err != nil {
		return nil, err
	}
	if err := decodeJSON("settings", settings, &story.Settings); err != nil {
		return nil, err
	}
	if err := decodeJSON("images", images, &story.Images); err != nil {
		return nil, err
	}
	if story.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if story.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &story, nil
}

// escapeLike escapes LIKE wildcards so the text matches literally.
func escapeLike(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(text)
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
