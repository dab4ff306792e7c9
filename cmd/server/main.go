package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecoshore/backend/internal/cache"
	"github.com/ecoshore/backend/internal/config"
	"github.com/ecoshore/backend/internal/delivery/http"
	"github.com/ecoshore/backend/internal/domain"
	"github.com/ecoshore/backend/internal/repository/postgres"
	"github.com/ecoshore/backend/internal/service"
)

func main() {
	// Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(appLogger)

	// Database connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(ctx)
		}
		if err != nil {
			appLogger.Warn("could not connect to database, running with demo beaches", "error", err)
			if pool != nil {
				pool.Close()
			}
			pool = nil
		} else {
			defer pool.Close()
			appLogger.Info("connected to PostgreSQL")
		}
	} else {
		appLogger.Warn("DATABASE_URL not set, running with demo beaches")
	}

	// Dependency Injection: Repositories
	var beachRepo domain.BeachDataProvider
	if pool != nil {
		beachRepo = postgres.NewBeachRepository(pool)
	} else {
		beachRepo = postgres.NewDemoRepository()
	}

	// Dependency Injection: Services
	if !cfg.Weather.HasAPIKey() {
		appLogger.Warn("OPENWEATHER_API_KEY not set, using synthetic weather")
	}
	weatherSvc := service.NewWeatherService(cfg.Weather, service.WithWeatherLogger(appLogger))
	mlBridge := service.NewMLBridge(cfg.Heatmap.MLServiceURL, service.NewFallbackPredictor(),
		service.WithMLLogger(appLogger),
	)
	predictions := cache.New[domain.HeatmapResult](cfg.Heatmap.CacheTTL())
	heatmapSvc := service.NewHeatmapService(beachRepo, weatherSvc, mlBridge, predictions,
		service.WithMaxConcurrency(cfg.Heatmap.MaxConcurrency),
		service.WithHeatmapLogger(appLogger),
	)

	// Background expiry of both cache layers
	sweeper := cache.NewSweeper(appLogger)
	sweeper.Register("heatmap", predictions)
	sweeper.Register("weather", weatherSvc.Cache())
	if err := sweeper.Start(cfg.Heatmap.SweepInterval); err != nil {
		log.Fatalf("Failed to start cache sweeper: %v", err)
	}

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName: "EcoShore API v1.0",
		// Cold heatmap generation waits on the ML service per beach
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, heatmapSvc)

	// Graceful shutdown
	go func() {
		appLogger.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	sweeper.Stop()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
	}
	appLogger.Info("server exited gracefully")
}
