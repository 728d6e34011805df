// ABOUTME: Room and membership persistence
// ABOUTME: Memberships are intervals; an open membership has no left_at

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Room defaults applied by NewRoom and CreateRoom.
const (
	DefaultRoomLanguage     = "English"
	DefaultRoomParticipants = 10
)

// NewRoom returns an active, public room with default language and capacity.
// A zero Room literal is private, so callers building rooms should start here.
func NewRoom(name string, hostID int64, roomType string) *Room {
	return &Room{
		Name:            name,
		HostID:          hostID,
		Type:            roomType,
		Language:        DefaultRoomLanguage,
		MaxParticipants: DefaultRoomParticipants,
		IsPublic:        true,
		Status:          RoomActive,
	}
}

// CreateRoom inserts a room, applying defaults for unset fields, and returns its ID.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *Room) (int64, error) {
	language := room.Language
	if language == "" {
		language = DefaultRoomLanguage
	}
	maxParticipants := room.MaxParticipants
	if maxParticipants <= 0 {
		maxParticipants = DefaultRoomParticipants
	}
	status := room.Status
	if status == "" {
		status = RoomActive
	}
	settings, err := encodeJSON(room.Settings, "{}")
	if err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (room_name, host_id, room_type, topic, language, max_participants,
			is_public, status, settings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, room.Name, room.HostID, room.Type, room.Topic, language, maxParticipants,
		room.IsPublic, status, settings, s.timestamp())
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("inserting room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading room id: %w", err)
	}

	s.logger.Info("created room", "id", id, "host_id", room.HostID, "type", room.Type)
	return id, nil
}

// GetRoom retrieves a room by ID with its host's username and live participant count.
func (s *SQLiteStore) GetRoom(ctx context.Context, id int64) (*Room, error) {
	row := s.db.QueryRowContext(ctx, roomSelect+` WHERE r.id = ? GROUP BY r.id`, id)
	return scanRoom(row)
}

// ListActiveRooms returns active rooms newest first, optionally restricted to one type.
// Participants counts memberships that are still open.
func (s *SQLiteStore) ListActiveRooms(ctx context.Context, roomType string) ([]*Room, error) {
	query := roomSelect + ` WHERE r.status = 'active'`
	var args []any
	if roomType != "" {
		query += ` AND r.room_type = ?`
		args = append(args, roomType)
	}
	query += ` GROUP BY r.id ORDER BY r.created_at DESC, r.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rooms []*Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rooms: %w", err)
	}
	return rooms, nil
}

// JoinRoom opens a membership row and returns its ID.
// The room must be active (ErrRoomClosed) and, for a user without an open
// membership, below capacity (ErrRoomFull). Both checks and the insert run in
// one transaction. A user who already holds an open membership gets a second
// one without counting against capacity.
func (s *SQLiteStore) JoinRoom(ctx context.Context, roomID, userID int64, role string) (int64, error) {
	if role == "" {
		role = "participant"
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		var capacity int
		err := tx.QueryRowContext(ctx, `SELECT status, max_participants FROM rooms WHERE id = ?`, roomID).
			Scan(&status, &capacity)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading room: %w", err)
		}
		if status != RoomActive {
			return ErrRoomClosed
		}

		var mine, open int
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(CASE WHEN user_id = ? THEN 1 ELSE 0 END), 0), COUNT(*)
			FROM room_participants
			WHERE room_id = ? AND left_at IS NULL
		`, userID, roomID).Scan(&mine, &open); err != nil {
			return fmt.Errorf("counting memberships: %w", err)
		}
		if mine == 0 && open >= capacity {
			return ErrRoomFull
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO room_participants (room_id, user_id, role, joined_at)
			VALUES (?, ?, ?, ?)
		`, roomID, userID, role, s.timestamp())
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return fmt.Errorf("joining room: %w", err)
		}

		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading membership id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("joined room", "room_id", roomID, "user_id", userID, "membership_id", id)
	return id, nil
}

// LeaveRoom closes the most recently opened open membership of the user in the room.
// Returns ErrNotFound if the user has no open membership.
func (s *SQLiteStore) LeaveRoom(ctx context.Context, roomID, userID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE room_participants SET left_at = ?
		WHERE id = (
			SELECT id FROM room_participants
			WHERE room_id = ? AND user_id = ? AND left_at IS NULL
			ORDER BY joined_at DESC, id DESC
			LIMIT 1
		)
	`, s.timestamp(), roomID, userID)
	if err != nil {
		return fmt.Errorf("leaving room: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("left room", "room_id", roomID, "user_id", userID)
	return nil
}

// EndRoom marks a room ended and closes every open membership in it.
func (s *SQLiteStore) EndRoom(ctx context.Context, roomID int64) error {
	now := s.timestamp()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE rooms SET status = ? WHERE id = ?`, RoomEnded, roomID)
		if err != nil {
			return fmt.Errorf("ending room: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE room_participants SET left_at = ?
			WHERE room_id = ? AND left_at IS NULL
		`, now, roomID); err != nil {
			return fmt.Errorf("closing memberships: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("ended room", "room_id", roomID)
	return nil
}

// OpenMemberships counts the user's memberships in the room that have not been left.
func (s *SQLiteStore) OpenMemberships(ctx context.Context, roomID, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM room_participants
		WHERE room_id = ? AND user_id = ? AND left_at IS NULL
	`, roomID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting memberships: %w", err)
	}
	return count, nil
}

// ListParticipants returns the memberships of a room, open ones first.
func (s *SQLiteStore) ListParticipants(ctx context.Context, roomID int64) ([]*RoomParticipant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, user_id, role, joined_at, left_at
		FROM room_participants
		WHERE room_id = ?
		ORDER BY left_at IS NOT NULL, joined_at DESC, id DESC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var participants []*RoomParticipant
	for rows.Next() {
		var p RoomParticipant
		var joinedAt string
		var leftAt sql.NullString
		if err := rows.Scan(&p.ID, &p.RoomID, &p.UserID, &p.Role, &joinedAt, &leftAt); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		if p.JoinedAt, err = parseTime("joined_at", joinedAt); err != nil {
			return nil, err
		}
		if p.LeftAt, err = parseNullTime("left_at", leftAt); err != nil {
			return nil, err
		}
		participants = append(participants, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}
	return participants, nil
}

const roomSelect = `
	SELECT r.id, r.room_name, r.host_id, u.username, r.room_type, r.topic, r.language,
		r.max_participants, r.is_public, r.status, r.settings, r.created_at,
		COUNT(p.id)
	FROM rooms r
	JOIN users u ON u.id = r.host_id
	LEFT JOIN room_participants p ON p.room_id = r.id AND p.left_at IS NULL`

func scanRoom(row rowScanner) (*Room, error) {
	var room Room
	var settings, createdAt string
	err := row.Scan(
		&room.ID,
		&room.Name,
		&room.HostID,
		&room.HostName,
		&room.Type,
		&room.Topic,
		&room.Language,
		&room.MaxParticipants,
		&room.IsPublic,
		&room.Status,
		&settings,
		&createdAt,
		&room.Participants,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying room: %w", err)
	}
	if err := decodeJSON("settings", settings, &room.Settings); err != nil {
		return nil, err
	}
	if room.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	return &room, nil
}
