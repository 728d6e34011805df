// ABOUTME: JSON API under /api/v1 authenticated with bearer JWTs
// ABOUTME: Provides token issuance, story search and publishing, likes, rooms and stats

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2389/cultural-storyteller/internal/auth"
	"github.com/2389/cultural-storyteller/internal/ledger"
	"github.com/2389/cultural-storyteller/internal/search"
	"github.com/2389/cultural-storyteller/internal/store"
)

const maxAPIBodyBytes = 1 << 20

// TokenRequest is the JSON request body for POST /api/v1/token.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// TokenResponse is the JSON response for POST /api/v1/token.
type TokenResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MeResponse is the JSON response for GET /api/v1/me.
type MeResponse struct {
	Username     string          `json:"username"`
	Role         string          `json:"role"`
	Email        string          `json:"email,omitempty"`
	Capabilities []string        `json:"capabilities"`
	Stats        store.UserStats `json:"stats"`
	Followers    int64           `json:"followers"`
}

// StoryResponse is the JSON shape of a story. Content is omitted from listings.
type StoryResponse struct {
	ID          int64                `json:"id"`
	Title       string               `json:"title"`
	Author      string               `json:"author"`
	Description string               `json:"description"`
	Content     string               `json:"content,omitempty"`
	Category    string               `json:"category"`
	Region      string               `json:"region"`
	Language    string               `json:"language"`
	Tags        []string             `json:"tags"`
	Duration    string               `json:"duration"`
	Views       int64                `json:"views"`
	Likes       int64                `json:"likes"`
	Settings    *store.StorySettings `json:"settings,omitempty"`
	AudioURL    string               `json:"audio_url,omitempty"`
	Images      []string             `json:"images,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// ListStoriesResponse is the JSON response for GET /api/v1/stories.
type ListStoriesResponse struct {
	Stories []StoryResponse `json:"stories"`
}

// CreateStoryResponse is the JSON response for POST /api/v1/stories.
type CreateStoryResponse struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// LikeResponse is the JSON response for POST /api/v1/stories/{id}/like.
type LikeResponse struct {
	Outcome string `json:"outcome"`
	Likes   int64  `json:"likes"`
}

// RoomResponse is the JSON shape of an active room.
type RoomResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Host            string    `json:"host"`
	Type            string    `json:"type"`
	Topic           string    `json:"topic"`
	Language        string    `json:"language"`
	Participants    int       `json:"participants"`
	MaxParticipants int       `json:"max_participants"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListRoomsResponse is the JSON response for GET /api/v1/rooms.
type ListRoomsResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	UsersByRole  map[string]int64 `json:"users_by_role"`
	TotalUsers   int64            `json:"total_users"`
	TotalStories int64            `json:"total_stories"`
	TotalViews   int64            `json:"total_views"`
	TotalLikes   int64            `json:"total_likes"`
	ActiveRooms  int64            `json:"active_rooms"`
}

// disabledVerifier rejects every token when no signing secret is configured.
type disabledVerifier struct{}

func (disabledVerifier) Verify(string) (*auth.Claims, error) {
	return nil, auth.ErrInvalidToken
}

func (a *Web) registerAPIRoutes(mux *http.ServeMux) {
	var verifier auth.TokenVerifier = disabledVerifier{}
	if a.tokens != nil {
		verifier = a.tokens
	}
	bearer := auth.BearerSession(a.store, verifier)
	account := auth.RequireAccount()
	capability := func(c auth.Capability, h http.HandlerFunc) http.Handler {
		return bearer(account(auth.RequireCapability(a.policy, c)(h)))
	}

	mux.Handle("POST /api/v1/token", a.limiter.Middleware(http.HandlerFunc(a.handleAPIToken)))
	mux.Handle("GET /api/v1/me", bearer(account(http.HandlerFunc(a.handleAPIMe))))
	mux.Handle("GET /api/v1/stories", bearer(http.HandlerFunc(a.handleAPIListStories)))
	mux.Handle("POST /api/v1/stories", capability(auth.CapCreateStories, a.handleAPICreateStory))
	mux.Handle("GET /api/v1/stories/{id}", bearer(http.HandlerFunc(a.handleAPIGetStory)))
	mux.Handle("POST /api/v1/stories/{id}/like", capability(auth.CapLike, a.handleAPILikeStory))
	mux.Handle("GET /api/v1/rooms", bearer(http.HandlerFunc(a.handleAPIListRooms)))
	mux.Handle("GET /api/v1/stats", capability(auth.CapAccessAnalytics, a.handleAPIStats))
}

func (a *Web) handleAPIToken(w http.ResponseWriter, r *http.Request) {
	if a.tokens == nil {
		a.sendJSONError(w, http.StatusServiceUnavailable, "token issuance is disabled")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBodyBytes)).Decode(&req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		a.sendJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil || role == auth.RoleGuest {
		a.sendJSONError(w, http.StatusBadRequest, "role must be storyteller or audience")
		return
	}

	sess, err := a.auth.Login(r.Context(), req.Username, req.Password, role)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		a.metrics.RecordLogin("invalid")
		a.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		a.metrics.RecordLogin("error")
		a.logger.Error("api login failed", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	expiresAt := a.now().Add(a.config.TokenTTL)
	token, err := a.tokens.Generate(sess.User.Username, sess.Role, a.config.TokenTTL)
	if err != nil {
		a.logger.Error("failed to issue token", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	a.metrics.RecordLogin("token")
	a.sendJSON(w, http.StatusOK, TokenResponse{Token: token, Role: string(sess.Role), ExpiresAt: expiresAt})
}

func (a *Web) handleAPIMe(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())

	caps := make([]string, 0)
	for _, c := range a.policy.Grants(sess.Role) {
		caps = append(caps, string(c))
	}
	followers, err := a.ledger.Followers(r.Context(), sess.User.Username)
	if err != nil {
		a.logger.Warn("failed to count followers", "error", err)
	}

	a.sendJSON(w, http.StatusOK, MeResponse{
		Username:     sess.User.Username,
		Role:         string(sess.Role),
		Email:        sess.User.Email,
		Capabilities: caps,
		Stats:        sess.User.Stats,
		Followers:    followers,
	})
}

func (a *Web) handleAPIListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := a.search.Search(r.Context(), search.ParseQuery(r.URL.Query()))
	if err != nil {
		a.logger.Error("api story search failed", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ListStoriesResponse{Stories: make([]StoryResponse, 0, len(stories))}
	for _, s := range stories {
		item := storyResponse(s)
		item.Content = ""
		item.Settings = nil
		resp.Stories = append(resp.Stories, item)
	}
	a.sendJSON(w, http.StatusOK, resp)
}

func (a *Web) handleAPICreateStory(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())

	var in storyInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBodyBytes)).Decode(&in); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	story, err := a.buildStory(in, sess.User.Username)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	id, err := a.store.SaveStory(r.Context(), story)
	if err != nil {
		a.logger.Error("failed to save story", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	a.metrics.RecordStoryCreated()
	a.logger.Info("story published via api", "story_id", id, "author", story.Author)
	a.sendJSON(w, http.StatusCreated, CreateStoryResponse{ID: id, URL: storyPath(id)})
}

func (a *Web) handleAPIGetStory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		a.sendJSONError(w, http.StatusNotFound, "story not found")
		return
	}

	story, err := a.store.GetStory(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		a.sendJSONError(w, http.StatusNotFound, "story not found")
		return
	}
	if err != nil {
		a.logger.Error("failed to load story", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if a.views.FirstView(apiViewerKey(r), id) {
		if err := a.store.IncrementViews(r.Context(), id); err != nil {
			a.logger.Warn("failed to count view", "story_id", id, "error", err)
		} else {
			a.metrics.RecordStoryView()
			story.Views++
		}
	}

	a.sendJSON(w, http.StatusOK, storyResponse(story))
}

func (a *Web) handleAPILikeStory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		a.sendJSONError(w, http.StatusNotFound, "story not found")
		return
	}
	sess := auth.FromContext(r.Context())

	outcome, err := a.ledger.Like(r.Context(), store.TargetStory, id, sess.UserID())
	if errors.Is(err, store.ErrNotFound) {
		a.sendJSONError(w, http.StatusNotFound, "story not found")
		return
	}
	if err != nil {
		a.logger.Error("failed to record like", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := LikeResponse{Outcome: string(outcome)}
	if story, err := a.store.GetStory(r.Context(), id); err == nil {
		resp.Likes = story.Likes
	}
	status := http.StatusOK
	if outcome == ledger.Applied {
		status = http.StatusCreated
	}
	a.sendJSON(w, status, resp)
}

func (a *Web) handleAPIListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.store.ListActiveRooms(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		a.logger.Error("failed to list rooms", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ListRoomsResponse{Rooms: make([]RoomResponse, 0, len(rooms))}
	for _, room := range rooms {
		resp.Rooms = append(resp.Rooms, RoomResponse{
			ID:              room.ID,
			Name:            room.Name,
			Host:            room.HostName,
			Type:            room.Type,
			Topic:           room.Topic,
			Language:        room.Language,
			Participants:    room.Participants,
			MaxParticipants: room.MaxParticipants,
			CreatedAt:       room.CreatedAt,
		})
	}
	a.sendJSON(w, http.StatusOK, resp)
}

func (a *Web) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.PlatformStats(r.Context())
	if err != nil {
		a.logger.Error("failed to load platform stats", "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.sendJSON(w, http.StatusOK, StatsResponse{
		UsersByRole:  stats.UsersByRole,
		TotalUsers:   stats.TotalUsers,
		TotalStories: stats.TotalStories,
		TotalViews:   stats.TotalViews,
		TotalLikes:   stats.TotalLikes,
		ActiveRooms:  stats.ActiveRooms,
	})
}

func storyResponse(s *store.Story) StoryResponse {
	settings := s.Settings
	return StoryResponse{
		ID:          s.ID,
		Title:       s.Title,
		Author:      s.Author,
		Description: s.Description,
		Content:     s.Content,
		Category:    s.Category,
		Region:      s.Region,
		Language:    s.Language,
		Tags:        s.Tags,
		Duration:    s.Duration,
		Views:       s.Views,
		Likes:       s.Likes,
		Settings:    &settings,
		AudioURL:    mediaURL(s.AudioRef),
		Images:      s.Images,
		CreatedAt:   s.CreatedAt,
	}
}

func storyPath(id int64) string {
	return "/stories/" + itoa(id)
}

// apiViewerKey identifies token callers by account and others by IP.
func apiViewerKey(r *http.Request) string {
	if sess := auth.FromContext(r.Context()); sess.IsRegistered() {
		return "user:" + itoa(sess.UserID())
	}
	return "ip:" + clientIP(r)
}

// sendJSON writes v as a JSON response with status.
func (a *Web) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (a *Web) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
