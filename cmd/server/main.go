// Package main is the entry point for the Harvest backtesting service.
// It replays withdrawal and dividend-reinvestment strategies against stored
// monthly price history and serves the results over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/harvest/internal/config"
	"github.com/aristath/harvest/internal/di"
	"github.com/aristath/harvest/internal/server"
	"github.com/aristath/harvest/pkg/logger"
)

// seedTimeout bounds the startup seeding of the series store
const seedTimeout = 5 * time.Minute

// main loads configuration, wires the container, seeds the store, starts
// the scheduler and HTTP server, then waits for SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Harvest")

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close databases")
		}
	}()

	// Seed the store; a missing API key or an exhausted budget must not block startup
	seedCtx, seedCancel := context.WithTimeout(context.Background(), seedTimeout)
	if err := container.TimeseriesService.EnsureInitialized(seedCtx, cfg.SeedTickers); err != nil {
		log.Warn().Err(err).Msg("Series store is not fully initialized")
	}
	seedCancel()

	container.Scheduler.Start()
	log.Info().Strs("jobs", container.Scheduler.Jobs()).Msg("Background jobs scheduled")

	srv, err := server.New(server.Config{
		Log:           log,
		Port:          cfg.Port,
		DevMode:       cfg.DevMode,
		DataDir:       cfg.DataDir,
		AdminPassword: cfg.AdminPassword,
		JWTSecret:     cfg.JWTSecret,
		Container:     container,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
