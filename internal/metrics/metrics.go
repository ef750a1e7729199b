package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Run outcomes (bounded set)
	RunStatusCompleted     = "completed"
	RunStatusInvalidConfig = "invalid_config"
	RunStatusCancelled     = "cancelled"
	RunStatusPersistence   = "persistence_error"
	RunStatusFailed        = "failed"

	// Store operation results (bounded set)
	StoreResultSuccess  = "success"
	StoreResultNotFound = "not_found"
	StoreResultError    = "error"
)

// NormalizeRunStatus maps a run error to a bounded status label
func NormalizeRunStatus(err error) string {
	switch {
	case err == nil:
		return RunStatusCompleted
	case errors.Is(err, evolution.ErrInvalidConfiguration):
		return RunStatusInvalidConfig
	case errors.Is(err, evolution.ErrRunCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return RunStatusCancelled
	case errors.Is(err, evolution.ErrPersistence):
		return RunStatusPersistence
	default:
		return RunStatusFailed
	}
}

// NormalizeStoreResult maps a store error to a bounded result label
func NormalizeStoreResult(err error) string {
	switch {
	case err == nil:
		return StoreResultSuccess
	case errors.Is(err, evolution.ErrNotFound):
		return StoreResultNotFound
	default:
		return StoreResultError
	}
}

// NormalizePath maps unmatched routes to a single label. Callers pass the
// registered route template, not the raw request path.
func NormalizePath(route string) string {
	if route == "" {
		return "unmatched"
	}
	return route
}

// Evolution metrics
var (
	// Runs by outcome
	EvolutionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_runs_total",
		Help: "Total number of evolution runs by outcome",
	}, []string{"status"})

	// Runs currently in progress
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evolver_active_runs",
		Help: "Number of evolution runs currently in progress",
	})

	// Run duration
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evolver_run_duration_seconds",
		Help:    "Wall-clock duration of evolution runs in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})

	// Completed generations
	Generations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evolver_generations_total",
		Help: "Total number of fully evaluated generations",
	})

	// Fitness evaluations
	Evaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evolver_evaluations_total",
		Help: "Total number of fitness evaluations",
	})

	// Evaluations recovered as fitness 0
	EvaluationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evolver_evaluation_failures_total",
		Help: "Total number of fitness evaluations that failed and were scored 0",
	})

	// Per-generation fitness
	GenerationFitness = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evolver_generation_fitness",
		Help: "Fitness statistics of the latest evaluated generation",
	}, []string{"stat"})

	// Running best within the current run
	RunBestFitness = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evolver_run_best_fitness",
		Help: "Best fitness seen so far in the latest run",
	})

	// Fitness of the persisted best solution
	PersistedBestFitness = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evolver_persisted_best_fitness",
		Help: "Fitness of the persisted best solution",
	})

	// Age of the persisted best solution
	PersistedBestAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evolver_persisted_best_age_seconds",
		Help: "Seconds since the persisted best solution was completed",
	})
)

// Storage metrics
var (
	// Store operations by backend, operation and result
	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_store_operations_total",
		Help: "Total number of best-solution store operations",
	}, []string{"backend", "operation", "result"})

	// Store operation latency
	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evolver_store_operation_duration_ms",
		Help:    "Best-solution store operation duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"backend", "operation"})
)

// API metrics
var (
	// HTTP requests
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// API request duration
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evolver_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
	}, []string{"method", "path", "status"})

	// Connected websocket clients
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evolver_websocket_clients",
		Help: "Number of connected websocket clients",
	})

	// Published events by type and result
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_events_published_total",
		Help: "Total number of published run events",
	}, []string{"type", "result"})

	// Errors by type and component
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evolver_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// Helper functions to update metrics

// RecordRun records the outcome and duration of a run
func RecordRun(err error, durationSeconds float64) {
	EvolutionRuns.WithLabelValues(NormalizeRunStatus(err)).Inc()
	RunDuration.Observe(durationSeconds)
}

// RecordGeneration records the statistics of one evaluated generation
func RecordGeneration(stats evolution.GenerationStats, runBest float64) {
	Generations.Inc()
	Evaluations.Add(float64(stats.Evaluations))
	EvaluationFailures.Add(float64(stats.Failures))
	GenerationFitness.WithLabelValues("avg").Set(stats.Avg)
	GenerationFitness.WithLabelValues("std").Set(stats.Std)
	GenerationFitness.WithLabelValues("min").Set(stats.Min)
	GenerationFitness.WithLabelValues("max").Set(stats.Max)
	RunBestFitness.Set(runBest)
}

// RecordStoreOperation records a store call with its normalized result
func RecordStoreOperation(backend, operation string, durationMs float64, err error) {
	StoreOperations.WithLabelValues(backend, operation, NormalizeStoreResult(err)).Inc()
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(durationMs)
}

// RecordAPIRequest records an API request with duration
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	normalized := NormalizePath(path)
	APIRequestDuration.WithLabelValues(method, normalized, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, normalized, statusCode).Inc()
}

// RecordEventPublished records a published event
func RecordEventPublished(eventType string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventsPublished.WithLabelValues(eventType, result).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}
