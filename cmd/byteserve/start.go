package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/byteserve/internal/logger"
	"github.com/marmos91/byteserve/internal/telemetry"
	"github.com/marmos91/byteserve/pkg/api"
	"github.com/marmos91/byteserve/pkg/blobstore"
	"github.com/marmos91/byteserve/pkg/config"
	"github.com/marmos91/byteserve/pkg/fileserver"
	"github.com/marmos91/byteserve/pkg/kvcache"
	"github.com/marmos91/byteserve/pkg/metadata/postgres"
	"github.com/marmos91/byteserve/pkg/metrics"
	"github.com/marmos91/byteserve/pkg/objectapi"
	"github.com/marmos91/byteserve/pkg/pathresolver"
	"github.com/marmos91/byteserve/pkg/quota"
	"github.com/marmos91/byteserve/pkg/s3api"
	"github.com/marmos91/byteserve/pkg/statsagg"
	"github.com/marmos91/byteserve/pkg/upload"
)

func runStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/byteserve/config.yaml)")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	cfg, err := config.MustLoad(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("byteserve starting", "version", version)

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "byteserve",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "byteserve",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		log.Fatalf("failed to initialize profiling: %v", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	metrics.InitRegistry(cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled {
		metricsServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metrics.Handler(),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	} else {
		logger.Info("metrics collection disabled")
	}

	store, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to open metadata store: %v", err)
	}
	defer store.Close()

	blobs, err := blobstore.New(cfg.Storage.BlobRoot)
	if err != nil {
		log.Fatalf("failed to open blob store: %v", err)
	}

	cache, err := kvcache.New(cfg.Cache.Path)
	if err != nil {
		log.Fatalf("failed to open kv cache: %v", err)
	}
	defer cache.Close()

	quotas := quota.New(store)
	uploads := upload.New(store, blobs, cache, quotas)
	paths := pathresolver.New(store, cache)

	stats := statsagg.New(store, cfg.Stats.FlushInterval)
	stats.Start(ctx)
	defer stats.Stop()

	baseURL := cfg.FileRequest.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Warn("file_request.base_url unset, falling back to listener address", "base_url", baseURL)
	}

	s3 := s3api.New(store, blobs, cache, quotas, uploads, stats)
	objects := objectapi.New(store, blobs, paths, uploads, cache, stats)
	filereq := fileserver.New(store, paths, uploads, baseURL)

	httpServer := api.NewServer(cfg.Server,
		mountAt("/s3", s3.Mount),
		mountAt("/api/storage", objects.MountStorage),
		mountAt("/transform", objects.MountTransform),
		mountAt("/api/filereq", filereq.Mount),
	)

	serverDone := make(chan error, 1)
	go func() { serverDone <- httpServer.Start(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running, press ctrl+c to stop", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		logger.Info("server stopped")
	}
}

// routeMounter adapts a prefix + mount func into an api.Mounter so
// each wire surface's own router (which assumes it owns the router
// root) can be nested under its documented External Interfaces path.
type routeMounter struct {
	prefix string
	mount  func(chi.Router)
}

func (m routeMounter) Mount(r chi.Router) {
	r.Route(m.prefix, m.mount)
}

func mountAt(prefix string, mount func(chi.Router)) routeMounter {
	return routeMounter{prefix: prefix, mount: mount}
}
