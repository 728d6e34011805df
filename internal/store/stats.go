// ABOUTME: Platform-wide aggregate statistics
// ABOUTME: Counts users by role and sums story views and likes

package store

import (
	"context"
	"fmt"
)

// PlatformStats returns user counts grouped by role, total stories, summed
// views and likes (zero when there are no stories) and the active room count.
func (s *SQLiteStore) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	stats := &PlatformStats{UsersByRole: map[string]int64{}}

	rows, err := s.db.QueryContext(ctx, `SELECT user_type, COUNT(*) FROM users GROUP BY user_type`)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var role string
		var count int64
		if err := rows.Scan(&role, &count); err != nil {
			return nil, fmt.Errorf("scanning user count: %w", err)
		}
		stats.UsersByRole[role] = count
		stats.TotalUsers += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user counts: %w", err)
	}
	_ = rows.Close()

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(views), 0), COALESCE(SUM(likes), 0) FROM stories
	`).Scan(&stats.TotalStories, &stats.TotalViews, &stats.TotalLikes)
	if err != nil {
		return nil, fmt.Errorf("aggregating stories: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE status = 'active'`).Scan(&stats.ActiveRooms)
	if err != nil {
		return nil, fmt.Errorf("counting active rooms: %w", err)
	}

	return stats, nil
}
