// ABOUTME: Storyteller web UI: cookie sessions, CSRF protection and capability-gated routes
// ABOUTME: Every request carries an auth.Session resolved from its cookie or bearer token

package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/cultural-storyteller/internal/auth"
	"github.com/2389/cultural-storyteller/internal/config"
	"github.com/2389/cultural-storyteller/internal/dedupe"
	"github.com/2389/cultural-storyteller/internal/generate"
	"github.com/2389/cultural-storyteller/internal/ledger"
	"github.com/2389/cultural-storyteller/internal/metrics"
	"github.com/2389/cultural-storyteller/internal/search"
	"github.com/2389/cultural-storyteller/internal/store"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "storyteller_session"

	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "storyteller_csrf"

	// DefaultSessionTTL is how long sessions last when not configured
	DefaultSessionTTL = 7 * 24 * time.Hour

	maxCommentLength = 2000
	homeStoryCount   = 6
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const csrfContextKey contextKey = "csrf_token"

// Config holds web UI configuration
type Config struct {
	AppName             string
	SessionTTL          time.Duration
	TokenTTL            time.Duration
	SecureCookies       bool
	MaxStoryLength      int
	MaxRoomParticipants int
	DefaultLanguage     string
	MediaDir            string
	MaxUploadBytes      int64
	Catalog             config.CatalogConfig
	RateLimit           RateLimitConfig
}

// Deps are the collaborators the web layer drives.
type Deps struct {
	Store     store.Store
	Auth      *auth.Service
	Policy    *auth.Policy
	Tokens    *auth.JWTIssuer // nil disables POST /api/v1/token
	Search    *search.Engine
	Ledger    *ledger.Ledger
	Generator *generate.Provider
	Views     *dedupe.ViewWindow
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// Web handles UI and API routes
type Web struct {
	store     store.Store
	auth      *auth.Service
	policy    *auth.Policy
	tokens    *auth.JWTIssuer
	search    *search.Engine
	ledger    *ledger.Ledger
	generator *generate.Provider
	views     *dedupe.ViewWindow
	metrics   metrics.Recorder
	limiter   *RateLimiter
	render    *renderer
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Web handler. Store, Auth, Policy, Search, Ledger, Generator and
// Views are required.
func New(deps Deps, cfg Config) (*Web, error) {
	if deps.Store == nil || deps.Auth == nil || deps.Policy == nil || deps.Search == nil ||
		deps.Ledger == nil || deps.Generator == nil || deps.Views == nil {
		return nil, errors.New("web: missing required dependency")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.AppName == "" {
		cfg.AppName = "Cultural Storyteller"
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "English"
	}

	rnd, err := newRenderer()
	if err != nil {
		return nil, err
	}

	logger := deps.Logger.With("component", "web")
	return &Web{
		store:     deps.Store,
		auth:      deps.Auth,
		policy:    deps.Policy,
		tokens:    deps.Tokens,
		search:    deps.Search,
		ledger:    deps.Ledger,
		generator: deps.Generator,
		views:     deps.Views,
		metrics:   deps.Metrics,
		limiter:   NewRateLimiter(cfg.RateLimit, logger),
		render:    rnd,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Close stops background work owned by the web layer.
func (a *Web) Close() {
	a.limiter.Stop()
}

// RegisterRoutes registers all UI and API routes on the given mux
func (a *Web) RegisterRoutes(mux *http.ServeMux) {
	// Public pages
	mux.HandleFunc("GET /{$}", a.handleHome)
	mux.HandleFunc("GET /login", a.handleLoginPage)
	mux.Handle("POST /login", a.limiter.Middleware(http.HandlerFunc(a.handleLogin)))
	mux.HandleFunc("GET /register", a.handleRegisterPage)
	mux.Handle("POST /register", a.limiter.Middleware(http.HandlerFunc(a.handleRegister)))
	mux.HandleFunc("POST /login/guest", a.handleGuestLogin)
	mux.HandleFunc("POST /logout", a.handleLogout)

	// Stories
	mux.HandleFunc("GET /stories", a.handleStories)
	mux.HandleFunc("GET /stories/{id}", a.handleStory)
	mux.HandleFunc("POST /stories/{id}/like", a.requireCap(auth.CapLike, a.handleStoryLike))
	mux.HandleFunc("POST /stories/{id}/comments", a.requireCap(auth.CapComment, a.handleAddComment))
	mux.HandleFunc("POST /stories/{id}/narrate", a.requireSession(a.handleNarrate))
	mux.HandleFunc("POST /comments/{id}/like", a.requireCap(auth.CapLike, a.handleCommentLike))
	mux.HandleFunc("POST /users/{username}/follow", a.requireCap(auth.CapFollow, a.handleFollow))

	// Authoring
	mux.HandleFunc("GET /upload", a.requireCap(auth.CapCreateStories, a.handleUploadPage))
	mux.HandleFunc("POST /upload", a.requireCap(auth.CapCreateStories, a.handleUpload))
	mux.HandleFunc("POST /upload/generate", a.requireCap(auth.CapCreateStories, a.handleGenerate))

	// Rooms
	mux.HandleFunc("GET /rooms", a.handleRooms)
	mux.HandleFunc("POST /rooms", a.requireCap(auth.CapCreateRooms, a.handleCreateRoom))
	mux.HandleFunc("POST /rooms/{id}/join", a.requireAccount(a.handleJoinRoom))
	mux.HandleFunc("POST /rooms/{id}/leave", a.requireAccount(a.handleLeaveRoom))
	mux.HandleFunc("POST /rooms/{id}/end", a.requireAccount(a.handleEndRoom))

	// Analytics
	mux.HandleFunc("GET /analytics", a.requireCap(auth.CapAccessAnalytics, a.handleAnalytics))

	// Media
	if a.config.MediaDir != "" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", noDirListing(http.FileServer(http.Dir(a.config.MediaDir)))))
	}

	a.registerAPIRoutes(mux)
	a.logger.Info("web routes registered")
}

// Middleware wraps next with request logging and cookie session resolution.
func (a *Web) Middleware(next http.Handler) http.Handler {
	return a.requestLogger(a.loadSession(next))
}

// loadSession resolves the session cookie into an auth.Session on the context.
// Unknown or expired cookies are cleared and the request continues anonymously.
func (a *Web) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := auth.Anonymous()

		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			stored, err := a.store.GetSession(r.Context(), cookie.Value)
			switch {
			case err == nil:
				resumed, err := a.auth.Resume(r.Context(), stored)
				if err != nil {
					a.logger.Warn("dropping unusable session", "error", err)
					_ = a.store.DeleteSession(r.Context(), stored.ID)
					a.clearCookie(w, SessionCookieName)
				} else {
					sess = resumed
				}
			case errors.Is(err, store.ErrSessionNotFound):
				a.clearCookie(w, SessionCookieName)
			default:
				a.logger.Error("failed to load session", "error", err)
			}
		}

		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}

// requireCap wraps a handler to require a capability. Unauthenticated visitors
// are sent to the login page; authenticated sessions without the grant get 403.
func (a *Web) requireCap(c auth.Capability, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := auth.FromContext(r.Context())
		if sess.Can(a.policy, c) {
			next(w, r)
			return
		}
		if !sess.Authenticated {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		a.logger.Debug("capability denied", "capability", c, "role", sess.Role)
		a.renderError(w, r, http.StatusForbidden, "Your role does not allow this action.")
	}
}

// requireSession wraps a handler to require any authenticated session, guests included.
func (a *Web) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).Authenticated {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// requireAccount wraps a handler to require a registered user.
func (a *Web) requireAccount(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := auth.FromContext(r.Context())
		if sess.IsRegistered() {
			next(w, r)
			return
		}
		if !sess.Authenticated {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		a.renderError(w, r, http.StatusForbidden, "Create an account to take part in rooms.")
	}
}

// getCSRFToken retrieves the CSRF token from the request context
func getCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey).(string)
	return token
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context
func (a *Web) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	if token := getCSRFToken(r); token != "" {
		return r, token
	}

	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		a.logger.Error("failed to generate CSRF token", "error", err)
		token = ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secureCookies(r),
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from form against cookie
func (a *Web) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// checkForm parses the form and validates CSRF, rendering an error page on failure.
func (a *Web) checkForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		a.renderError(w, r, http.StatusBadRequest, "Invalid form data.")
		return false
	}
	if !a.validateCSRF(r) {
		a.renderError(w, r, http.StatusForbidden, "Invalid request, please try again.")
		return false
	}
	return true
}

// createSession stores a browser session and sets the cookie. userID is nil for guests.
func (a *Web) createSession(w http.ResponseWriter, r *http.Request, userID *int64, role auth.Role) error {
	sessionID, err := generateSecureToken(32)
	if err != nil {
		return err
	}

	now := a.now()
	session := &store.Session{
		ID:        sessionID,
		UserID:    userID,
		Role:      string(role),
		CreatedAt: now,
		ExpiresAt: now.Add(a.config.SessionTTL),
	}
	if err := a.store.CreateSession(r.Context(), session); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   a.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (a *Web) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (a *Web) secureCookies(r *http.Request) bool {
	return a.config.SecureCookies || r.TLS != nil
}

// viewerKey identifies a viewer for view de-duplication.
func viewerKey(r *http.Request) string {
	if sess := auth.FromContext(r.Context()); sess.ID != "" {
		return "session:" + sess.ID
	}
	return "ip:" + clientIP(r)
}

// clientIP returns the remote host without port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// noDirListing rejects directory requests so media folders are not enumerable.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
