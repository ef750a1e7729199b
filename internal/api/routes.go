package api

import "github.com/ajitpratap0/evolver/internal/metrics"

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handleGetHealth)

		// Run trigger
		v1.POST("/evolve", s.limiter.EvolveMiddleware(), s.handleEvolve)

		// Persisted best solution
		best := v1.Group("/best", s.limiter.ReadMiddleware())
		{
			best.GET("", s.handleGetBest)
			best.GET("/export", s.handleExportBest)
		}

		v1.POST("/decode", s.limiter.ReadMiddleware(), s.handleDecode)

		if s.hub != nil {
			v1.GET("/ws", s.hub.ServeWS)
		}
	}

	s.router.GET("/metrics", metrics.GinHandler())

	// Root endpoint
	s.router.GET("/", s.handleRoot)
}
