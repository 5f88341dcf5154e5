package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ekisa-team/mapbridge/internal/cluster"
	"github.com/ekisa-team/mapbridge/internal/config"
	"github.com/ekisa-team/mapbridge/internal/env"
	"github.com/ekisa-team/mapbridge/internal/events"
	"github.com/ekisa-team/mapbridge/internal/imagecache"
	"github.com/ekisa-team/mapbridge/internal/logger"
	"github.com/ekisa-team/mapbridge/internal/maps"
	"github.com/ekisa-team/mapbridge/internal/provider"
	"github.com/ekisa-team/mapbridge/internal/provider/memory"
	grpcserver "github.com/ekisa-team/mapbridge/internal/server/grpc"
	"github.com/ekisa-team/mapbridge/internal/service"
)

func main() {
	var (
		flagGRPCPort   = flag.Int("grpc-port", 0, "GRPC port to listen on (overrides config)")
		flagConfigPath = flag.String("config", path.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
		flagSchemaPath = flag.String("schema", "", "Path to schema file (defaults to the embedded schema)")
	)
	flag.Parse()

	environment := env.FromEnv()
	slog.SetDefault(logger.New(environment))

	var live atomic.Pointer[maps.Registry]
	watcher, err := config.NewWatcher(*flagConfigPath, *flagSchemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}
		if registry := live.Load(); registry != nil {
			registry.SetOptions(mapsOptions(cfg))
			slog.Info("Applied config to new maps", "min_cluster_size", cfg.Clustering.DefaultMinClusterSize, "debounce", cfg.Clustering.Debounce)
		}
	})
	if err != nil {
		slog.Error("Failed to create config watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()

	cfg := watcher.Snapshot()
	slog.SetDefault(
		logger.New(environment,
			logger.WithLevel(logger.ParseLevel(cfg.Logging.Level)),
			logger.WithLogToFile(cfg.Logging.ToFile),
			logger.WithLogFile(cfg.Logging.File),
		),
	)
	slog.Info("Config loaded successfully", "config", *flagConfigPath, "platform", cfg.Platform)

	providers := provider.NewRegistry()
	for _, p := range []provider.Platform{provider.PlatformAndroid, provider.PlatformIOS, provider.PlatformWeb} {
		if err := providers.Register(memory.New(memory.Options{Platform: p})); err != nil {
			slog.Error("Failed to register provider", "platform", p, "error", err)
			os.Exit(1)
		}
	}
	prov, err := providers.Resolve(provider.Platform(cfg.Platform))
	if err != nil {
		slog.Error("No provider for platform", "platform", cfg.Platform, "available", providers.Platforms(), "error", err)
		os.Exit(1)
	}

	images := imagecache.New(imagecache.NewHTTPFetcher(cfg.Images.FetchTimeout, cfg.Images.MaxRetries, cfg.Images.RetryDelay))
	bus := events.NewBusWithConfig(events.DefaultBusConfig())
	registry := maps.NewRegistry(prov, images, bus, mapsOptions(cfg))
	live.Store(registry)

	server := grpcserver.NewServer(service.NewMaps(registry), bus)

	port := cfg.Server.GRPCPort
	if *flagGRPCPort > 0 {
		port = *flagGRPCPort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe(port) }()

	select {
	case err := <-errCh:
		slog.Error("gRPC server stopped", "error", err)
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Stop(shutdown)
	if err := registry.Close(shutdown); err != nil {
		slog.Error("Failed to destroy maps", "error", err)
	}
	st := images.Stats()
	slog.Info("Stopped", "image_hits", st.Hits, "image_fetches", st.Fetches, "image_failures", st.Failed)
}

func mapsOptions(cfg *config.Config) maps.Options {
	return maps.Options{
		Cluster: cluster.Options{
			MinClusterSize: cfg.Clustering.DefaultMinClusterSize,
			RadiusPx:       cfg.Clustering.RadiusPx,
			Debounce:       cfg.Clustering.Debounce,
		},
		TileMaxZoom: cfg.Tiles.DefaultMaxZoom,
	}
}
