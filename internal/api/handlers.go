package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/internal/metrics"
	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// StatusClientClosedRequest is returned when the caller disconnects mid-run
const StatusClientClosedRequest = 499

var startTime = time.Now()

// EvolveRequest is the body of POST /api/v1/evolve. Omitted fields fall back
// to the service defaults; explicit zeros are rejected as invalid configuration.
type EvolveRequest struct {
	Generations *int `json:"generations"`
	PopSize     *int `json:"pop_size"`
}

// DecodeRequest is the body of POST /api/v1/decode
type DecodeRequest struct {
	Genes []float64 `json:"genes" binding:"required"`
}

// DecodeResponse pairs normalized genes with their strategy parameters
type DecodeResponse struct {
	Genes    []float64                 `json:"genes"`
	Strategy evolution.DecodedStrategy `json:"decoded_strategy"`
}

// handleRoot returns the service banner
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "Genetic Algorithm Strategy Evolution",
		"version": s.version,
		"time":    time.Now().UTC(),
	})
}

// handleGetHealth checks the configured dependencies (for load balancers)
func (s *Server) handleGetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	components := gin.H{}
	healthy := true
	for name, check := range s.healthChecks {
		if err := check(ctx); err != nil {
			healthy = false
			components[name] = gin.H{"status": "unhealthy", "error": err.Error()}
			log.Warn().Err(err).Str("component", name).Msg("Health check failed")
			continue
		}
		components[name] = gin.H{"status": "healthy"}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	body := gin.H{
		"status":     overall,
		"time":       time.Now().UTC(),
		"uptime":     time.Since(startTime).Seconds(),
		"components": components,
	}
	if s.hub != nil {
		body["websocket_clients"] = s.hub.ClientCount()
	}

	c.JSON(status, body)
}

// handleEvolve runs a fresh evolution synchronously and returns its best solution
func (s *Server) handleEvolve(c *gin.Context) {
	var req EvolveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	defaults := s.service.Defaults()
	generations := defaults.Generations
	if req.Generations != nil {
		generations = *req.Generations
	}
	popSize := defaults.PopSize
	if req.PopSize != nil {
		popSize = *req.PopSize
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.runTimeout)
	defer cancel()

	done := metrics.StartRun()
	record, err := s.service.Run(ctx, generations, popSize)
	done(err)

	if err != nil {
		s.respondError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleGetBest returns the persisted best solution
func (s *Server) handleGetBest(c *gin.Context) {
	record, err := s.service.GetBest(c.Request.Context())
	if err != nil {
		s.respondError(c, c.Request.Context(), err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleExportBest downloads the persisted best solution as YAML or JSON
func (s *Server) handleExportBest(c *gin.Context) {
	format, err := evolution.ParseExportFormat(c.DefaultQuery("format", string(evolution.FormatYAML)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := s.service.GetBest(c.Request.Context())
	if err != nil {
		s.respondError(c, c.Request.Context(), err)
		return
	}

	data, err := evolution.ExportRecord(record, format)
	if err != nil {
		log.Err(err).Msg("Failed to export best solution")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export best solution"})
		return
	}

	contentType := "application/json"
	if format == evolution.FormatYAML {
		contentType = "text/yaml"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=best_strategy.%s", format))
	c.Data(http.StatusOK, contentType, data)
}

// handleDecode maps a normalized gene vector to strategy parameters
func (s *Server) handleDecode(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	genes, err := evolution.ParseGeneVector(req.Genes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, DecodeResponse{
		Genes:    genes.Slice(),
		Strategy: evolution.Decode(genes),
	})
}

// respondError maps service errors to HTTP status codes
func (s *Server) respondError(c *gin.Context, ctx context.Context, err error) {
	switch {
	case errors.Is(err, evolution.ErrInvalidConfiguration):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, evolution.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No evolved strategy found"})

	case errors.Is(err, evolution.ErrRunCancelled):
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": fmt.Sprintf("Evolution run exceeded the %s limit", s.runTimeout),
			})
			return
		}
		c.JSON(StatusClientClosedRequest, gin.H{"error": "Evolution run cancelled"})

	case errors.Is(err, evolution.ErrPersistence):
		log.Error().Err(err).Msg("Best solution persistence failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist best solution"})

	default:
		log.Error().Err(err).Msg("Evolution request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
