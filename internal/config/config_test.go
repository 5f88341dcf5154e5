package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/mapbridge/internal/envvar"
)

const sample = `
version: "1"
platform: ios
server:
  grpc_port: 9000
images:
  fetch_timeout: 3s
  max_retries: 2
clustering:
  debounce: 250ms
  default_min_cluster_size: 6
`

func TestParse_ValidConfig(t *testing.T) {
	cfg, err := Parse([]byte(sample), "")
	require.NoError(t, err)

	assert.Equal(t, "ios", cfg.Platform)
	assert.Equal(t, 9000, cfg.Server.GRPCPort)
	assert.Equal(t, 3*time.Second, cfg.Images.FetchTimeout)
	assert.Equal(t, 2, cfg.Images.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, cfg.Images.RetryDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Clustering.Debounce)
	assert.Equal(t, 6, cfg.Clustering.DefaultMinClusterSize)
	assert.Equal(t, float64(DefaultClusterRadiusPx), cfg.Clustering.RadiusPx)
	assert.Equal(t, DefaultTileMaxZoom, cfg.Tiles.DefaultMaxZoom)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
}

func TestParse_RejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing version":  "platform: web\n",
		"unknown platform": "version: \"1\"\nplatform: symbian\n",
		"bad duration":     "version: \"1\"\nclustering:\n  debounce: soon\n",
		"unknown key":      "version: \"1\"\nstorage: {}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), "")
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("version: [unterminated"), "")
	assert.ErrorContains(t, err, "invalid YAML")
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(envvar.MapbridgePlatform, "android")
	t.Setenv(envvar.MapbridgeServerGRPCPort, "7000")

	cfg, err := Parse([]byte(sample), "")
	require.NoError(t, err)
	assert.Equal(t, "android", cfg.Platform)
	assert.Equal(t, 7000, cfg.Server.GRPCPort)

	t.Setenv(envvar.MapbridgeServerGRPCPort, "seven")
	_, err = Parse([]byte(sample), "")
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultPlatform, cfg.Platform)
	assert.Equal(t, DefaultClusterDebounce, cfg.Clustering.Debounce)
	assert.Positive(t, cfg.Server.GRPCPort)
}

func TestLoadAndValidate_SchemaFile(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(Schema()), 0o644))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := LoadAndValidate(path, schemaPath)
	require.NoError(t, err)
	assert.Equal(t, "ios", cfg.Platform)

	_, err = LoadAndValidate(filepath.Join(dir, "missing.yaml"), schemaPath)
	assert.ErrorContains(t, err, "failed to read config")
}

func TestWatcher_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, "", func(cfg *Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "ios", w.Snapshot().Platform)

	updated := "version: \"1\"\nplatform: web\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "web", cfg.Platform)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	assert.Equal(t, "web", w.Snapshot().Platform)
	assert.GreaterOrEqual(t, w.ReloadCount(), uint32(1))

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
