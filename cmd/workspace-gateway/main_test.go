// ABOUTME: Tests for CLI helpers: logger setup, init and health
// ABOUTME: Uses temp dirs and httptest servers; never touches the real config path

package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/workspace-gateway/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestColorHandler(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "gateway").WithGroup("req").Info("started", "path", "/mcp")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF started")
	assert.Contains(t, out, "component=gateway")
	assert.Contains(t, out, "req.path=/mcp")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("hello", "client_id", "mcp_1")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"client_id":"mcp_1"`)
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gateway.yaml")

	require.NoError(t, runInit(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)

	// A second run refuses to overwrite.
	assert.Error(t, runInit(path))
}

func TestCheckHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	assert.NoError(t, checkHealth(t.Context(), healthy.Client(), healthy.URL))

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()
	assert.Error(t, checkHealth(t.Context(), unhealthy.Client(), unhealthy.URL))
}
