package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ekisa-team/mapbridge/internal/envvar"
)

// Config holds the main configuration for the application.
type Config struct {
	Version    string           `json:"version"              yaml:"version"`
	Platform   string           `json:"platform,omitempty"   yaml:"platform,omitempty"`
	Server     ServerConfig     `json:"server,omitempty"     yaml:"server,omitempty"`
	Logging    LoggingConfig    `json:"logging,omitempty"    yaml:"logging,omitempty"`
	Images     ImagesConfig     `json:"images,omitempty"     yaml:"images,omitempty"`
	Clustering ClusteringConfig `json:"clustering,omitempty" yaml:"clustering,omitempty"`
	Tiles      TilesConfig      `json:"tiles,omitempty"      yaml:"tiles,omitempty"`
}

// ServerConfig holds the transport settings.
type ServerConfig struct {
	GRPCPort int `json:"grpc_port,omitempty" yaml:"grpc_port,omitempty"`
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"   yaml:"level,omitempty"`
	File   string `json:"file,omitempty"    yaml:"file,omitempty"`
	ToFile bool   `json:"to_file,omitempty" yaml:"to_file,omitempty"`
}

// ImagesConfig tunes the remote image fetcher.
type ImagesConfig struct {
	FetchTimeout time.Duration `json:"fetch_timeout,omitempty" yaml:"fetch_timeout,omitempty"`
	MaxRetries   int           `json:"max_retries,omitempty"   yaml:"max_retries,omitempty"`
	RetryDelay   time.Duration `json:"retry_delay,omitempty"   yaml:"retry_delay,omitempty"`
}

// ClusteringConfig tunes new cluster coordinators.
type ClusteringConfig struct {
	Debounce              time.Duration `json:"debounce,omitempty"                 yaml:"debounce,omitempty"`
	DefaultMinClusterSize int           `json:"default_min_cluster_size,omitempty" yaml:"default_min_cluster_size,omitempty"`
	RadiusPx              float64       `json:"radius_px,omitempty"                yaml:"radius_px,omitempty"`
}

// TilesConfig holds tile layer defaults.
type TilesConfig struct {
	DefaultMaxZoom int `json:"default_max_zoom,omitempty" yaml:"default_max_zoom,omitempty"`
}

// Default returns a config with every field set to its default.
func Default() *Config {
	cfg := &Config{Version: "1"}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Platform == "" {
		c.Platform = DefaultPlatform
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = DefaultGRPCPort()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.File == "" {
		c.Logging.File = DefaultLogFile
	}
	if c.Images.FetchTimeout == 0 {
		c.Images.FetchTimeout = DefaultFetchTimeout
	}
	if c.Images.MaxRetries == 0 {
		c.Images.MaxRetries = DefaultMaxRetries
	}
	if c.Images.RetryDelay == 0 {
		c.Images.RetryDelay = DefaultRetryDelay
	}
	if c.Clustering.Debounce == 0 {
		c.Clustering.Debounce = DefaultClusterDebounce
	}
	if c.Clustering.DefaultMinClusterSize == 0 {
		c.Clustering.DefaultMinClusterSize = DefaultMinClusterSize
	}
	if c.Clustering.RadiusPx == 0 {
		c.Clustering.RadiusPx = DefaultClusterRadiusPx
	}
	if c.Tiles.DefaultMaxZoom == 0 {
		c.Tiles.DefaultMaxZoom = DefaultTileMaxZoom
	}
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(envvar.MapbridgePlatform); v != "" {
		c.Platform = v
	}
	if v := os.Getenv(envvar.MapbridgeServerGRPCPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envvar.MapbridgeServerGRPCPort, err)
		}
		c.Server.GRPCPort = port
	}
	if v := os.Getenv(envvar.MapbridgeLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}
