// Strategy evolver API server
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/internal/api"
	"github.com/ajitpratap0/evolver/internal/app"
	"github.com/ajitpratap0/evolver/internal/config"
	"github.com/ajitpratap0/evolver/internal/metrics"
)

// How often persisted-best gauges are refreshed from the store
const metricsUpdateInterval = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./configs/config.yaml)")
	flag.Parse()

	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().
		Str("version", config.GetVersion()).
		Str("environment", cfg.App.Environment).
		Msg("Starting Strategy Evolver")

	// Create context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	validator := config.NewValidator(cfg, config.DefaultValidatorOptions())
	if err := validator.ValidateStartup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Startup validation failed")
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	hub := api.NewHub(cfg.API.AllowedOrigins)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)
	application.Service.AddObserver(hub)

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		updater := metrics.NewUpdater(application.Store, metricsUpdateInterval)
		updater.Start(ctx)
		defer updater.Stop()

		if cfg.Monitoring.PrometheusPort != 0 {
			metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, log.Logger)
			if err := metricsServer.Start(); err != nil {
				log.Fatal().Err(err).Msg("Failed to start metrics server")
			}
		}
	}

	var rateLimit *api.RateLimiterConfig
	if cfg.API.RateLimit.Enabled {
		rateLimit = &api.RateLimiterConfig{
			Window:            cfg.API.RateLimit.Window,
			EvolveMaxRequests: cfg.API.RateLimit.EvolveMaxRequests,
			ReadMaxRequests:   cfg.API.RateLimit.ReadMaxRequests,
			Enabled:           true,
		}
	}

	server, err := api.NewServer(api.Config{
		Host:           cfg.API.Host,
		Port:           cfg.API.Port,
		AllowedOrigins: cfg.API.AllowedOrigins,
		RunTimeout:     cfg.API.RunTimeout,
		Version:        config.GetVersion(),
		Service:        application.Service,
		Hub:            hub,
		RateLimit:      rateLimit,
		HealthChecks:   application.HealthChecks(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create API server")
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}

	log.Info().Msg("Server stopped successfully")
}
