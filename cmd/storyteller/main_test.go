// ABOUTME: Tests for the storyteller command tree and log handler
// ABOUTME: Commands run against a temp config and database, output captured in buffers

package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/cultural-storyteller/internal/config"
)

// writeTestConfig writes a config whose database and media live in a temp dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "storyteller.db")
	cfg.Media.Dir = filepath.Join(dir, "media")
	cfg.Auth.BcryptCost = 4

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Write(path, cfg))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := execute(t, "", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote config")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(cfg.Auth.JWTSecret), 32)

	_, err = execute(t, "", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "", "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestMigrate(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "", "migrate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "up to date (schema version 2)")
}

func TestUserCreateAndStats(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "", "user", "create", "meera", "-c", path, "-p", "secret123", "-e", "meera@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, `account "meera"`)

	out, err = execute(t, "hunter22\n", "user", "create", "arjun", "-c", path, "--role", "audience")
	require.NoError(t, err)
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, `account "arjun"`)

	_, err = execute(t, "", "user", "create", "meera", "-c", path, "-p", "secret123")
	assert.ErrorContains(t, err, "already taken")

	_, err = execute(t, "", "user", "create", "visitor", "-c", path, "-p", "secret123", "--role", "guest")
	assert.Error(t, err)

	out, err = execute(t, "", "stats", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Users:        2")
	assert.Contains(t, out, "storyteller:")
	assert.Contains(t, out, "audience:")
	assert.Contains(t, out, "Stories:      0")
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "", "summon")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"DEBUG": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	logger.With("component", "web").WithGroup("req").Warn("slow request", "ms", 900)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "slow request")
	assert.Contains(t, out, " component=")
	assert.NotContains(t, out, "req.component=")
	assert.Contains(t, out, "req.ms=")
	assert.Contains(t, out, "900")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("story published", "story_id", 7)
	assert.Contains(t, buf.String(), `"msg":"story published"`)
	assert.Contains(t, buf.String(), `"story_id":7`)
}
