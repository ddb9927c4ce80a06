package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/trailwx/segment-weather/internal/api/http"
	"github.com/trailwx/segment-weather/internal/availability"
	"github.com/trailwx/segment-weather/internal/cache"
	"github.com/trailwx/segment-weather/internal/config"
	"github.com/trailwx/segment-weather/internal/observability"
	"github.com/trailwx/segment-weather/internal/scheduler"
	"github.com/trailwx/segment-weather/internal/store"
	"github.com/trailwx/segment-weather/internal/weather"
	"github.com/trailwx/segment-weather/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	// Forecast model adapters with resilience (backoff + circuit breaker).
	provs := map[string]weather.Provider{}
	openMeteo := providers.NewOpenMeteoProvider(httpClient)
	metNo := providers.NewMetNoProvider(httpClient, cfg.UserAgent)
	provs[openMeteo.Name()] = openMeteo
	provs[metNo.Name()] = metNo

	// File-backed persistence for the probe cache and delivered baselines.
	kv, err := store.NewFileKV(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		log.Fatalf("failed to open state store: %v", err)
	}

	regions := availability.DefaultRegions()
	prober := availability.NewProber(provs, regions, kv, cfg.AvailabilityTTL, clock, metrics)
	resolver := availability.NewResolver(provs, regions, prober, metrics)

	segmentCache := cache.New(cfg.CacheTTL, clock)
	snapshots := store.NewSnapshotStore(kv, clock)

	// Core service orchestrating fetch, cache, aggregation, and diffing.
	service := weather.NewService(resolver, segmentCache, snapshots, metrics)

	// Probe model availability at startup when the persisted cache is stale.
	if prober.Stale() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := prober.Probe(ctx); err != nil {
				log.Printf("startup availability probe failed: %v", err)
			}
		}()
	}

	// Scheduler keeps the availability cache fresh on a coarse interval.
	sched := scheduler.New(prober, cfg.ProbeInterval, 2*time.Minute)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "segment-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "segment-weather",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service, prober, cfg.Thresholds)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
