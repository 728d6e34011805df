// ABOUTME: Tests for room and membership persistence
// ABOUTME: Covers defaults, live participant counts, leave semantics and ending rooms

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom_Defaults(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	host := createTestUser(t, store, "asha", RoleStoryteller)

	id, err := store.CreateRoom(ctx, NewRoom("Evening Tales", host.ID, RoomVoice))
	require.NoError(t, err)

	room, err := store.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Evening Tales", room.Name)
	assert.Equal(t, "asha", room.HostName)
	assert.Equal(t, "English", room.Language)
	assert.Equal(t, 10, room.MaxParticipants)
	assert.Equal(t, RoomActive, room.Status)
	assert.True(t, room.IsPublic, "rooms are public unless made private")
	assert.Zero(t, room.Participants)

	private := NewRoom("Quiet Circle", host.ID, RoomVoice)
	private.IsPublic = false
	id, err = store.CreateRoom(ctx, private)
	require.NoError(t, err)
	room, err = store.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.False(t, room.IsPublic)
}

func TestCreateRoom_UnknownHost(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.CreateRoom(context.Background(), &Room{Name: "Nobody's", HostID: 404, Type: RoomVoice})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRoom_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.GetRoom(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActiveRooms(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	host := createTestUser(t, store, "asha", RoleStoryteller)
	guest1 := createTestUser(t, store, "ravi", RoleAudience)
	guest2 := createTestUser(t, store, "uma", RoleAudience)

	voiceID, err := store.CreateRoom(ctx, &Room{Name: "Voice", HostID: host.ID, Type: RoomVoice})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	videoID, err := store.CreateRoom(ctx, &Room{Name: "Video", HostID: host.ID, Type: RoomVideo})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = store.CreateRoom(ctx, &Room{Name: "Later", HostID: host.ID, Type: RoomVoice, Status: RoomScheduled})
	require.NoError(t, err)

	_, err = store.JoinRoom(ctx, voiceID, guest1.ID, "")
	require.NoError(t, err)
	_, err = store.JoinRoom(ctx, voiceID, guest2.ID, "")
	require.NoError(t, err)
	require.NoError(t, store.LeaveRoom(ctx, voiceID, guest2.ID))

	rooms, err := store.ListActiveRooms(ctx, "")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, videoID, rooms[0].ID)
	assert.Equal(t, voiceID, rooms[1].ID)
	assert.Equal(t, 0, rooms[0].Participants)
	assert.Equal(t, 1, rooms[1].Participants)

	voiceOnly, err := store.ListActiveRooms(ctx, RoomVoice)
	require.NoError(t, err)
	require.Len(t, voiceOnly, 1)
	assert.Equal(t, voiceID, voiceOnly[0].ID)
}

func TestLeaveRoom_ClosesMostRecentOpenMembership(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()
	host := createTestUser(t, store, "asha", RoleStoryteller)
	user := createTestUser(t, store, "ravi", RoleAudience)
	roomID, err := store.CreateRoom(ctx, &Room{Name: "Circle", HostID: host.ID, Type: RoomMixed})
	require.NoError(t, err)

	older, err := store.JoinRoom(ctx, roomID, user.ID, "")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	newer, err := store.JoinRoom(ctx, roomID, user.ID, "")
	require.NoError(t, err)

	open, err := store.OpenMemberships(ctx, roomID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, open)

	require.NoError(t, store.LeaveRoom(ctx, roomID, user.ID))

	participants, err := store.ListParticipants(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, participants, 2)

	byID := map[int64]*RoomParticipant{}
	for _, p := range participants {
		byID[p.ID] = p
	}
	assert.Nil(t, byID[older].LeftAt, "older membership should stay open")
	assert.NotNil(t, byID[newer].LeftAt, "newest membership should be closed")

	open, err = store.OpenMemberships(ctx, roomID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestLeaveRoom_WithoutMembership(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	host := createTestUser(t, store, "asha", RoleStoryteller)
	roomID, err := store.CreateRoom(ctx, &Room{Name: "Empty", HostID: host.ID, Type: RoomVoice})
	require.NoError(t, err)

	assert.ErrorIs(t, store.LeaveRoom(ctx, roomID, host.ID), ErrNotFound)
}

func TestJoinRoom_UnknownRoom(t *testing.T) {
	store, _ := setupTestStore(t)
	user := createTestUser(t, store, "ravi", RoleAudience)

	_, err := store.JoinRoom(context.Background(), 99, user.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinRoom_EnforcesCapacity(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	host := createTestUser(t, store, "asha", RoleStoryteller)
	ravi := createTestUser(t, store, "ravi", RoleAudience)
	kiran := createTestUser(t, store, "kiran", RoleAudience)

	room := NewRoom("Pair", host.ID, RoomVoice)
	room.MaxParticipants = 2
	roomID, err := store.CreateRoom(ctx, room)
	require.NoError(t, err)

	_, err = store.JoinRoom(ctx, roomID, host.ID, "host")
	require.NoError(t, err)
	_, err = store.JoinRoom(ctx, roomID, ravi.ID, "")
	require.NoError(t, err)

	_, err = store.JoinRoom(ctx, roomID, kiran.ID, "")
	assert.ErrorIs(t, err, ErrRoomFull)

	// Someone already inside is not turned away by the full room.
	_, err = store.JoinRoom(ctx, roomID, ravi.ID, "")
	assert.NoError(t, err)

	require.NoError(t, store.LeaveRoom(ctx, roomID, ravi.ID))
	require.NoError(t, store.LeaveRoom(ctx, roomID, ravi.ID))
	_, err = store.JoinRoom(ctx, roomID, kiran.ID, "")
	assert.NoError(t, err, "a seat frees up once ravi has left")
}

func TestJoinRoom_ConcurrentJoinsRespectCapacity(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	host := createTestUser(t, store, "asha", RoleStoryteller)

	room := NewRoom("Crowded", host.ID, RoomMixed)
	room.MaxParticipants = 3
	roomID, err := store.CreateRoom(ctx, room)
	require.NoError(t, err)

	const joiners = 10
	users := make([]*User, joiners)
	for i := range users {
		users[i] = createTestUser(t, store, fmt.Sprintf("listener%d", i), RoleAudience)
	}

	var wg sync.WaitGroup
	var joined, full atomic.Int32
	for _, u := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := store.JoinRoom(ctx, roomID, userID, "")
			switch {
			case err == nil:
				joined.Add(1)
			case errors.Is(err, ErrRoomFull):
				full.Add(1)
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, int32(3), joined.Load())
	assert.Equal(t, int32(joiners-3), full.Load())

	got, err := store.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Participants)
}

func TestJoinRoom_EndedRoom(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	host := createTestUser(t, store, "asha", RoleStoryteller)
	user := createTestUser(t, store, "ravi", RoleAudience)
	roomID, err := store.CreateRoom(ctx, NewRoom("Over", host.ID, RoomVoice))
	require.NoError(t, err)
	require.NoError(t, store.EndRoom(ctx, roomID))

	_, err = store.JoinRoom(ctx, roomID, user.ID, "")
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestEndRoom(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	host := createTestUser(t, store, "asha", RoleStoryteller)
	user := createTestUser(t, store, "ravi", RoleAudience)
	roomID, err := store.CreateRoom(ctx, &Room{Name: "Finale", HostID: host.ID, Type: RoomAvatar})
	require.NoError(t, err)
	_, err = store.JoinRoom(ctx, roomID, host.ID, "host")
	require.NoError(t, err)
	_, err = store.JoinRoom(ctx, roomID, user.ID, "")
	require.NoError(t, err)

	require.NoError(t, store.EndRoom(ctx, roomID))

	room, err := store.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, RoomEnded, room.Status)
	assert.Zero(t, room.Participants)

	rooms, err := store.ListActiveRooms(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rooms)

	assert.ErrorIs(t, store.EndRoom(ctx, 12345), ErrNotFound)
}
