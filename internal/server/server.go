// ABOUTME: Server orchestrator wiring store, services, web handlers and metrics into one HTTP server
// ABOUTME: Runs the listener alongside the expired-session sweep and shuts both down together

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/2389/cultural-storyteller/internal/auth"
	"github.com/2389/cultural-storyteller/internal/config"
	"github.com/2389/cultural-storyteller/internal/dedupe"
	"github.com/2389/cultural-storyteller/internal/generate"
	"github.com/2389/cultural-storyteller/internal/ledger"
	"github.com/2389/cultural-storyteller/internal/metrics"
	"github.com/2389/cultural-storyteller/internal/search"
	"github.com/2389/cultural-storyteller/internal/store"
	"github.com/2389/cultural-storyteller/internal/web"
)

// Server owns every long-lived component of the storyteller service.
type Server struct {
	config     *config.Config
	store      *store.SQLiteStore
	web        *web.Web
	views      *dedupe.ViewWindow
	registry   *prometheus.Registry
	httpServer *http.Server
	logger     *slog.Logger

	// listening is closed once the HTTP listener is bound
	listening chan struct{}
	addr      net.Addr
}

// New creates a Server from cfg. The database is opened and migrated here.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path, store.WithLogger(logger.With("component", "store")))
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	srv, err := build(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return srv, nil
}

func build(cfg *config.Config, s *store.SQLiteStore, logger *slog.Logger) (*Server, error) {
	if err := os.MkdirAll(cfg.Media.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	generator, err := generate.New(generate.Config{
		Provider: cfg.Generation.Provider,
		OpenAI: generate.OpenAIConfig{
			APIKey:      cfg.Generation.APIKey,
			BaseURL:     cfg.Generation.BaseURL,
			ChatModel:   cfg.Generation.ChatModel,
			ImageModel:  cfg.Generation.ImageModel,
			SpeechModel: cfg.Generation.SpeechModel,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
			Timeout:     cfg.Generation.Timeout,
			MediaDir:    cfg.Media.Dir,
		},
		FallbackOnError: cfg.Generation.FallbackOnError,
	}, collector, logger)
	if err != nil {
		return nil, fmt.Errorf("configuring generation: %w", err)
	}

	var tokens *auth.JWTIssuer
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewJWTIssuer([]byte(cfg.Auth.JWTSecret))
	} else {
		logger.Warn("auth.jwt_secret not set, API token issuance disabled")
	}

	views := dedupe.NewViewWindow(cfg.App.ViewDedupeWindow, sweepInterval(cfg.App.ViewDedupeWindow))

	webHandler, err := web.New(web.Deps{
		Store: s,
		Auth: auth.NewService(s, auth.ServiceConfig{
			MinPasswordLength: cfg.Auth.MinPasswordLength,
			BcryptCost:        cfg.Auth.BcryptCost,
		}, logger),
		Policy:    auth.DefaultPolicy(),
		Tokens:    tokens,
		Search:    search.NewEngine(s),
		Ledger:    ledger.New(s, collector, logger),
		Generator: generator,
		Views:     views,
		Metrics:   collector,
		Logger:    logger,
	}, web.Config{
		AppName:             cfg.App.Name,
		SessionTTL:          cfg.Auth.SessionTTL,
		TokenTTL:            cfg.Auth.TokenTTL,
		SecureCookies:       cfg.Auth.SecureCookies,
		MaxStoryLength:      cfg.App.MaxStoryLength,
		MaxRoomParticipants: cfg.App.MaxRoomParticipants,
		DefaultLanguage:     cfg.App.DefaultLanguage,
		MediaDir:            cfg.Media.Dir,
		MaxUploadBytes:      cfg.Media.MaxUploadBytes,
		Catalog:             cfg.Catalog,
		RateLimit: web.RateLimitConfig{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	})
	if err != nil {
		views.Close()
		return nil, fmt.Errorf("creating web handler: %w", err)
	}

	srv := &Server{
		config:    cfg,
		store:     s,
		web:       webHandler,
		views:     views,
		registry:  registry,
		logger:    logger.With("component", "server"),
		listening: make(chan struct{}),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("GET /health/ready", srv.handleReady)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler(registry))
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	webHandler.RegisterRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           webHandler.Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	logger.Info("generation provider ready", "provider", generator.Name)
	return srv, nil
}

// sweepInterval picks how often expired view entries are dropped.
func sweepInterval(window time.Duration) time.Duration {
	if window <= 0 {
		return time.Minute
	}
	return max(window/2, time.Second)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr blocks until the listener is bound or ctx ends, then returns its address.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.listening:
		return s.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run serves HTTP and sweeps expired sessions until ctx is canceled or the
// listener fails, then shuts everything down.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		s.closeComponents()
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	s.addr = ln.Addr()
	close(s.listening)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.sweepLoop(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("context canceled, initiating shutdown")
		return s.gracefulShutdown()
	})

	return g.Wait()
}

// sweepLoop deletes expired sessions every App.SessionSweep until ctx ends.
func (s *Server) sweepLoop(ctx context.Context) {
	interval := s.config.App.SessionSweep
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepSessions(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("session sweep failed", "error", err)
			}
		}
	}
}

// SweepSessions removes expired browser sessions and returns how many were deleted.
func (s *Server) SweepSessions(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("swept expired sessions", "count", n)
	}
	return n, nil
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server then releases the store and background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", s.closeComponents())

	return errors.Join(errs...)
}

func (s *Server) closeComponents() error {
	s.web.Close()
	s.views.Close()
	return s.store.Close()
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
