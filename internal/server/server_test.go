// ABOUTME: Tests for server wiring, health endpoints, metrics and the run loop
// ABOUTME: Uses a temp-directory database and checks for leaked goroutines on shutdown

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/cultural-storyteller/internal/config"
	"github.com/2389/cultural-storyteller/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Database.Path = filepath.Join(dir, "storyteller.db")
	cfg.Media.Dir = filepath.Join(dir, "media")
	cfg.Auth.BcryptCost = 4
	cfg.Auth.JWTSecret = "test-secret-that-is-long-enough!"
	cfg.App.ViewDedupeWindow = time.Minute
	cfg.App.SessionSweep = time.Hour
	return cfg
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	code, body := get(t, srv.Handler(), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)

	code, body = get(t, srv.Handler(), "/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	get(t, srv.Handler(), "/stories")
	code, body := get(t, srv.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "storyteller_http_requests_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	srv, err := New(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = srv.Shutdown(context.Background()) }()

	code, _ := get(t, srv.Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWebRoutesMounted(t *testing.T) {
	srv := newTestServer(t)

	code, body := get(t, srv.Handler(), "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Cultural Storyteller")

	code, _ = get(t, srv.Handler(), "/api/v1/stories")
	assert.Equal(t, http.StatusOK, code)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.Provider = "carrier-pigeon"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestSweepSessions(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, srv.store.CreateSession(ctx, &store.Session{
		ID: "expired", Role: store.RoleGuest, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))
	require.NoError(t, srv.store.CreateSession(ctx, &store.Session{
		ID: "live", Role: store.RoleGuest, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	n, err := srv.SweepSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = srv.store.GetSession(ctx, "live")
	assert.NoError(t, err)
	_, err = srv.store.GetSession(ctx, "expired")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestRunServesAndShutsDown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv, err := New(testConfig(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	addrCtx, addrCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer addrCancel()
	addr, err := srv.Addr(addrCtx)
	require.NoError(t, err)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr.String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
