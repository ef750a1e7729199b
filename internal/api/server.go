// Package api exposes the evolution service over HTTP: run triggers, the
// persisted best solution, gene decoding and a live generation stream.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/internal/metrics"
	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// DefaultRunTimeout bounds a synchronous /evolve call
const DefaultRunTimeout = 10 * time.Minute

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

// Server represents the REST API server
type Server struct {
	router       *gin.Engine
	service      *evolution.Service
	hub          *Hub
	limiter      *RateLimiterMiddleware
	healthChecks map[string]HealthCheck
	runTimeout   time.Duration
	version      string
	addr         string
	server       *http.Server
	listener     net.Listener
}

// Config contains server configuration
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RunTimeout     time.Duration
	Version        string
	Service        *evolution.Service
	Hub            *Hub                   // optional live stream
	RateLimit      *RateLimiterConfig     // nil disables rate limiting
	HealthChecks   map[string]HealthCheck // optional dependency checks
}

// NewServer creates a new API server
func NewServer(config Config) (*Server, error) {
	if config.Service == nil {
		return nil, fmt.Errorf("evolution service is required")
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultRunTimeout
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(corsConfig(config.AllowedOrigins)))

	limiterConfig := config.RateLimit
	if limiterConfig == nil {
		limiterConfig = &RateLimiterConfig{Enabled: false}
	}

	server := &Server{
		router:       router,
		service:      config.Service,
		hub:          config.Hub,
		limiter:      NewRateLimiterMiddleware(limiterConfig),
		healthChecks: config.HealthChecks,
		runTimeout:   config.RunTimeout,
		version:      config.Version,
		addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
	}

	server.setupRoutes()
	server.limiter.StartCleanupWorker(limiterConfig.Window)

	return server, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Router returns the underlying gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start binds the address and serves until Stop is called
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Stop is called
func (s *Server) Serve(listener net.Listener) error {
	s.listener = listener
	s.server = &http.Server{
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// /evolve is synchronous, so writes may take as long as a run
		WriteTimeout: s.runTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", listener.Addr().String()).Msg("Starting API server")

	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Addr returns the bound address once serving, otherwise the configured one
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")

	if s.limiter != nil {
		s.limiter.Stop()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}

	return nil
}

// LoggerMiddleware is a custom logging middleware for Gin
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logEvent := log.Info()
		if statusCode >= http.StatusInternalServerError {
			logEvent = log.Warn()
		}

		logEvent = logEvent.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP())

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}

		logEvent.Msg("API request")
	}
}
