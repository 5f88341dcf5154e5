package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/mapbridge/internal/env"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(env.Production, WithOutput(&buf))

	l.Debug("Hidden")
	l.Info("Map created", "map_id", "main")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Map created", rec["msg"])
	assert.Equal(t, "main", rec["map_id"])
}

func TestNew_DevelopmentIsText(t *testing.T) {
	var buf bytes.Buffer
	l := New(env.Test, WithOutput(&buf), WithLevel(slog.LevelWarn))

	l.Info("Hidden")
	l.Warn("Image failed", "url", "https://x")

	out := buf.String()
	assert.NotContains(t, out, "Hidden")
	assert.Contains(t, out, "Image failed")
	assert.Contains(t, out, "url=https://x")
}

func TestNew_FileSink(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "nested", "mapbridge.log")
	l := New(env.Test, WithOutput(&buf), WithLogToFile(true), WithLogFile(path))

	l.With("map_id", "main").Info("Map destroyed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Map destroyed"`)
	assert.Contains(t, string(data), `"map_id":"main"`)
	assert.Contains(t, buf.String(), "Map destroyed")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_FileSinkKeepsGroups(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "mapbridge.log")
	l := New(env.Test, WithOutput(&buf), WithLogToFile(true), WithLogFile(path), WithLevel(slog.LevelWarn))

	l.Info("Hidden")
	l.WithGroup("image").Warn("Fetch failed", "url", "https://x")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Hidden")
	assert.Contains(t, string(data), `"image":{"url":"https://x"}`)
	assert.Contains(t, buf.String(), "image.url=https://x")
}
