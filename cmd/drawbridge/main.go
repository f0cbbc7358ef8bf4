package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/drawbridge-ai/drawbridge/internal/adapter/drawio"
	"github.com/drawbridge-ai/drawbridge/internal/adapter/fifo"
	dbhttp "github.com/drawbridge-ai/drawbridge/internal/adapter/http"
	"github.com/drawbridge-ai/drawbridge/internal/adapter/litellm"
	dbmcp "github.com/drawbridge-ai/drawbridge/internal/adapter/mcp"
	otelad "github.com/drawbridge-ai/drawbridge/internal/adapter/otel"
	ristrettoad "github.com/drawbridge-ai/drawbridge/internal/adapter/ristretto"
	"github.com/drawbridge-ai/drawbridge/internal/config"
	"github.com/drawbridge-ai/drawbridge/internal/logger"
	"github.com/drawbridge-ai/drawbridge/internal/middleware"
	"github.com/drawbridge-ai/drawbridge/internal/registry"
	"github.com/drawbridge-ai/drawbridge/internal/resilience"
	"github.com/drawbridge-ai/drawbridge/internal/service"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"storage_dir", cfg.Storage.Dir,
		"cache_entries", cfg.Cache.MaxEntries,
	)

	ctx := context.Background()

	// --- Telemetry ---
	if cfg.Telemetry.Enabled {
		shutdown, err := otelad.Setup(ctx, cfg.Logging.Service, version, cfg.Telemetry.Exporter)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown", "error", err)
			}
		}()
	}

	// --- Storage ---
	reg, err := registry.New(cfg.Storage.Dir, log)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	cleaner := registry.NewCleaner(reg, cfg.Cleanup.Interval,
		cfg.Storage.MaxBytes, cfg.Storage.TargetFreePct, log)
	cleaner.Start(ctx)
	defer cleaner.Stop()

	// --- Caches ---
	responseCache := fifo.New(cfg.Cache.MaxEntries)

	idemCache, err := ristrettoad.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("idempotency cache: %w", err)
	}
	defer idemCache.Close()

	// --- Generation pipeline ---
	llm := litellm.NewClient(cfg.Generator.URL, cfg.Generator.APIKey,
		cfg.Generator.Model, cfg.Generator.Timeout)
	llm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	rend := drawio.New(cfg.Renderer.Binary, cfg.Renderer.Timeout,
		cfg.Renderer.MaxConcurrent, log)

	svc := service.NewGenerationService(llm, rend, responseCache, reg, cleaner,
		cfg.Cache.TTL, cfg.Storage.ArtifactTTL, cfg.Storage.TargetFreePct, log)

	if cfg.Telemetry.Enabled {
		metrics, err := otelad.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		svc.SetMetrics(metrics)
		cleaner.OnSweep(func(removed int) {
			metrics.CleanupRemoved.Add(context.Background(), int64(removed))
		})
	}

	// --- HTTP ---
	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopLimiterCleanup := limiter.StartCleanup(5*time.Minute, 30*time.Minute)
	defer stopLimiterCleanup()

	r := chi.NewRouter()
	r.Use(dbhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(dbhttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(dbhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Telemetry.Enabled {
		r.Use(otelad.HTTPMiddleware(cfg.Logging.Service))
	}

	dbhttp.MountRoutes(r, dbhttp.NewHandlers(svc, version), cfg.Idempotency, limiter, idemCache)

	// --- MCP ---
	if cfg.MCP.Enabled {
		mcpSrv := dbmcp.NewServer(dbmcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    cfg.MCP.Name,
			Version: cfg.MCP.Version,
			APIKey:  cfg.MCP.APIKey,
		}, dbmcp.ServerDeps{Service: svc})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mcpSrv.Stop(stopCtx); err != nil {
				slog.Warn("mcp shutdown", "error", err)
			}
		}()
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
