package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/ekisa-team/mapbridge/internal/envvar"
)

const (
	DefaultPlatform        = "web"
	DefaultLogLevel        = "info"
	DefaultLogFile         = "logs/mapbridge.log"
	DefaultFetchTimeout    = 10 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = 500 * time.Millisecond
	DefaultClusterDebounce = 100 * time.Millisecond
	DefaultMinClusterSize  = 4
	DefaultClusterRadiusPx = 100
	DefaultTileMaxZoom     = 22

	defaultGRPCPort = 7410
)

// DefaultGRPCPort returns the gRPC port, honoring MAPBRIDGE_SERVER_GRPC_PORT.
func DefaultGRPCPort() int {
	if v := os.Getenv(envvar.MapbridgeServerGRPCPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			return port
		}
	}
	return defaultGRPCPort
}

// DefaultConfigPath returns the default path for the mapbridge config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mapbridge", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "mapbridge")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "mapbridge")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "mapbridge")
		}
		return filepath.Join(home, ".config", "mapbridge")
	}
}
