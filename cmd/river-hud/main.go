package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/river-hud/internal/api/http"
	"github.com/i474232898/river-hud/internal/conditions"
	"github.com/i474232898/river-hud/internal/conditions/providers"
	"github.com/i474232898/river-hud/internal/config"
	"github.com/i474232898/river-hud/internal/observability"
	"github.com/i474232898/river-hud/internal/scheduler"
	"github.com/i474232898/river-hud/internal/store"
)

const serviceName = "river-hud"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logg)

	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound source calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Source clients, each behind its own circuit breaker.
	sources := providers.All(providers.ClientConfig{
		Client:    httpClient,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
		Logger:    logg,
	})

	cache := store.NewCache(clockwork.NewRealClock(), metrics, logg)

	// Core service merging sources through the cache.
	service := conditions.NewService(cache, sources, logg, metrics,
		conditions.WithWarningTolerance(cfg.EarlyWarningTolerance),
	)

	// Optional cache warmer.
	sched := scheduler.New(service, cfg.WarmInterval, 2*cfg.HTTPTimeout, logg)
	if err := sched.Start(); err != nil {
		logg.Error("failed to start cache warmer", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          3 * cfg.HTTPTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
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

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		logg.Info("server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logg.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Error("error during shutdown", "error", err)
	}
}
