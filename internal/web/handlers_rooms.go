// ABOUTME: Live room handlers: listing, hosting, joining, leaving and ending rooms
// ABOUTME: Room membership needs a registered account; avatar rooms also need can_use_avatars

package web

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/2389/cultural-storyteller/internal/auth"
	"github.com/2389/cultural-storyteller/internal/store"
)

const defaultRoomCapacity = store.DefaultRoomParticipants

var roomTypes = []string{store.RoomVoice, store.RoomVideo, store.RoomAvatar, store.RoomMixed}

// Room rule violations.
var (
	errNotRoomHost  = errors.New("only the host can end this room")
	errInvalidRoom  = errors.New("invalid room")
	errAvatarDenied = errors.New("avatar rooms need avatar access")
)

type roomsView struct {
	Rooms           []*store.Room
	Type            string
	Types           []string
	Languages       []string
	DefaultLanguage string
	DefaultCapacity int
}

func (a *Web) handleRooms(w http.ResponseWriter, r *http.Request) {
	roomType := r.URL.Query().Get("type")
	if roomType != "" && !slices.Contains(roomTypes, roomType) {
		roomType = ""
	}

	rooms, err := a.store.ListActiveRooms(r.Context(), roomType)
	if err != nil {
		a.serverError(w, r, "failed to list rooms", err)
		return
	}

	view := roomsView{
		Rooms:           rooms,
		Type:            roomType,
		Types:           roomTypes,
		Languages:       a.config.Catalog.Languages,
		DefaultLanguage: a.config.DefaultLanguage,
		DefaultCapacity: min(defaultRoomCapacity, a.maxRoomCapacity()),
	}
	a.renderPage(w, http.StatusOK, "rooms", a.page(w, r, "Rooms", view))
}

func (a *Web) maxRoomCapacity() int {
	if a.config.MaxRoomParticipants > 0 {
		return a.config.MaxRoomParticipants
	}
	return defaultRoomCapacity
}

// parseRoom validates the room form for host.
func (a *Web) parseRoom(r *http.Request, sess *auth.Session) (*store.Room, error) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" || len([]rune(name)) > maxTitleLength {
		return nil, fmt.Errorf("%w: room name must be 1 to 200 characters", errInvalidRoom)
	}

	roomType := r.FormValue("type")
	if !slices.Contains(roomTypes, roomType) {
		return nil, fmt.Errorf("%w: unknown room type", errInvalidRoom)
	}
	if roomType == store.RoomAvatar && !sess.Can(a.policy, auth.CapUseAvatars) {
		return nil, errAvatarDenied
	}

	capacity := defaultRoomCapacity
	if raw := strings.TrimSpace(r.FormValue("max_participants")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 {
			return nil, fmt.Errorf("%w: rooms need space for at least 2 participants", errInvalidRoom)
		}
		capacity = n
	}
	capacity = min(capacity, a.maxRoomCapacity())

	room := store.NewRoom(name, sess.UserID(), roomType)
	room.Topic = strings.TrimSpace(r.FormValue("topic"))
	room.MaxParticipants = capacity
	room.Language = a.config.DefaultLanguage
	if language := r.FormValue("language"); language != "" {
		room.Language = language
	}
	room.IsPublic = r.FormValue("visibility") != "private"
	return room, nil
}

func (a *Web) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if !a.checkForm(w, r) {
		return
	}
	sess := auth.FromContext(r.Context())
	if !sess.IsRegistered() {
		a.renderError(w, r, http.StatusForbidden, "Create an account to host rooms.")
		return
	}

	room, err := a.parseRoom(r, sess)
	switch {
	case errors.Is(err, errAvatarDenied):
		a.renderError(w, r, http.StatusForbidden, "Your role cannot host avatar rooms.")
		return
	case err != nil:
		a.renderError(w, r, http.StatusBadRequest, roomMessage(err))
		return
	}

	id, err := a.store.CreateRoom(r.Context(), room)
	if err != nil {
		a.serverError(w, r, "failed to create room", err)
		return
	}
	if _, err := a.store.JoinRoom(r.Context(), id, sess.UserID(), "host"); err != nil {
		a.serverError(w, r, "failed to join hosted room", err)
		return
	}

	a.logger.Info("room created", "room_id", id, "host", sess.DisplayName(), "type", room.Type)
	http.Redirect(w, r, "/rooms?notice=room_created", http.StatusSeeOther)
}

// joinRoom applies the room rules and opens a membership for sess. Activity
// and capacity are enforced by the store inside the join transaction.
func (a *Web) joinRoom(r *http.Request, sess *auth.Session, roomID int64) error {
	ctx := r.Context()

	room, err := a.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Type == store.RoomAvatar && !sess.Can(a.policy, auth.CapUseAvatars) {
		return errAvatarDenied
	}

	open, err := a.store.OpenMemberships(ctx, roomID, sess.UserID())
	if err != nil {
		return err
	}
	if open > 0 {
		a.logger.Warn("duplicate open membership", "room_id", roomID, "user_id", sess.UserID(), "open", open)
	}

	_, err = a.store.JoinRoom(ctx, roomID, sess.UserID(), "participant")
	return err
}

func (a *Web) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		a.renderError(w, r, http.StatusNotFound, "Room not found.")
		return
	}
	if !a.checkForm(w, r) {
		return
	}

	err := a.joinRoom(r, auth.FromContext(r.Context()), id)
	switch {
	case err == nil:
		http.Redirect(w, r, "/rooms?notice=joined", http.StatusSeeOther)
	case errors.Is(err, store.ErrNotFound):
		a.renderError(w, r, http.StatusNotFound, "Room not found.")
	case errors.Is(err, errAvatarDenied):
		a.renderError(w, r, http.StatusForbidden, "Your role cannot join avatar rooms.")
	case errors.Is(err, store.ErrRoomFull), errors.Is(err, store.ErrRoomClosed):
		a.renderError(w, r, http.StatusConflict, roomMessage(err))
	default:
		a.serverError(w, r, "failed to join room", err)
	}
}

func (a *Web) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		a.renderError(w, r, http.StatusNotFound, "Room not found.")
		return
	}
	if !a.checkForm(w, r) {
		return
	}

	err := a.store.LeaveRoom(r.Context(), id, auth.FromContext(r.Context()).UserID())
	switch {
	case err == nil:
		http.Redirect(w, r, "/rooms?notice=left", http.StatusSeeOther)
	case errors.Is(err, store.ErrNotFound):
		http.Redirect(w, r, "/rooms?notice=not_in_room", http.StatusSeeOther)
	default:
		a.serverError(w, r, "failed to leave room", err)
	}
}

func (a *Web) handleEndRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		a.renderError(w, r, http.StatusNotFound, "Room not found.")
		return
	}
	if !a.checkForm(w, r) {
		return
	}

	room, err := a.store.GetRoom(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		a.renderError(w, r, http.StatusNotFound, "Room not found.")
		return
	}
	if err != nil {
		a.serverError(w, r, "failed to load room", err)
		return
	}
	if room.HostID != auth.FromContext(r.Context()).UserID() {
		a.renderError(w, r, http.StatusForbidden, roomMessage(errNotRoomHost))
		return
	}

	if err := a.store.EndRoom(r.Context(), id); err != nil {
		a.serverError(w, r, "failed to end room", err)
		return
	}
	http.Redirect(w, r, "/rooms?notice=ended", http.StatusSeeOther)
}

func roomMessage(err error) string {
	return validationMessage(err) + "."
}
