package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// Remote scorer defaults
const (
	DefaultHTTPTimeout     = 4 * time.Second
	DefaultMinRequests     = 5                // Minimum requests before tripping
	DefaultFailureRatio    = 0.6              // Failure ratio threshold (60%)
	DefaultOpenTimeout     = 30 * time.Second // How long circuit stays open
	DefaultHalfOpenMaxReqs = 3                // Max requests in half-open state
	DefaultCountInterval   = 10 * time.Second // Window for counting failures
	maxResponseBytes       = 1 << 20
	breakerName            = "backtest_scorer"
	resultSuccess          = "success"
	resultFailure          = "failure"
	resultRejected         = "rejected"
)

// ErrScorerUnavailable is returned while the circuit breaker is open
var ErrScorerUnavailable = errors.New("backtest scorer unavailable")

// BreakerSettings configures the circuit breaker around the remote scorer
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// HTTPScorerOptions configures the remote backtest scorer
type HTTPScorerOptions struct {
	URL       string
	Timeout   time.Duration
	RateLimit float64 // requests per second, <= 0 disables limiting
	Burst     int
	Breaker   BreakerSettings
	Client    *http.Client
}

type scoreResponse struct {
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

// scorerMetrics holds Prometheus metrics for the remote scorer
type scorerMetrics struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
	state    prometheus.Gauge
}

var (
	globalMetrics *scorerMetrics
	metricsOnce   sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		globalMetrics = &scorerMetrics{
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "evolver_scorer_requests_total",
					Help: "Total number of remote backtest scoring requests",
				},
				[]string{"result"},
			),
			duration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "evolver_scorer_request_duration_seconds",
				Help:    "Remote backtest scoring latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			}),
			state: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "evolver_scorer_circuit_breaker_state",
				Help: "Remote scorer circuit breaker state (0=closed, 1=open, 2=half_open)",
			}),
		}
	})
}

// HTTPScorer scores strategies by POSTing them to a backtesting engine. Calls
// are rate limited and wrapped in a circuit breaker so a failing engine
// degrades to fast evaluation failures instead of per-call timeouts.
type HTTPScorer struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *scorerMetrics
}

// NewHTTPScorer creates a remote scorer. Zero-valued breaker settings fall
// back to the package defaults.
func NewHTTPScorer(opts HTTPScorerOptions) (*HTTPScorer, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("scorer URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultHTTPTimeout
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	initMetrics()

	s := &HTTPScorer{
		url:     opts.URL,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		metrics: globalMetrics,
	}
	s.breaker = gobreaker.NewCircuitBreaker(breakerSettings(opts.Breaker, s.onStateChange))
	s.metrics.state.Set(0)

	return s, nil
}

func breakerSettings(b BreakerSettings, onStateChange func(name string, from, to gobreaker.State)) gobreaker.Settings {
	if b.MaxRequests == 0 {
		b.MaxRequests = DefaultHalfOpenMaxReqs
	}
	if b.Interval <= 0 {
		b.Interval = DefaultCountInterval
	}
	if b.Timeout <= 0 {
		b.Timeout = DefaultOpenTimeout
	}
	if b.MinRequests == 0 {
		b.MinRequests = DefaultMinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = DefaultFailureRatio
	}

	return gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: b.MaxRequests,
		Interval:    b.Interval,
		Timeout:     b.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= b.MinRequests && failureRatio >= b.FailureRatio
		},
		OnStateChange: onStateChange,
	}
}

func (s *HTTPScorer) onStateChange(name string, from, to gobreaker.State) {
	var value float64
	switch to {
	case gobreaker.StateClosed:
		value = 0
	case gobreaker.StateOpen:
		value = 1
	case gobreaker.StateHalfOpen:
		value = 2
	}
	s.metrics.state.Set(value)

	log.Warn().
		Str("breaker", name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Backtest scorer circuit breaker state changed")
}

// State reports the circuit breaker state
func (s *HTTPScorer) State() gobreaker.State {
	return s.breaker.State()
}

// Score sends the decoded strategy to the backtest engine
func (s *HTTPScorer) Score(ctx context.Context, strategy evolution.DecodedStrategy) (float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.post(ctx, strategy)
	})
	s.metrics.duration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.metrics.requests.WithLabelValues(resultRejected).Inc()
			return 0, fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
		}
		s.metrics.requests.WithLabelValues(resultFailure).Inc()
		return 0, err
	}

	s.metrics.requests.WithLabelValues(resultSuccess).Inc()
	return out.(float64), nil
}

func (s *HTTPScorer) post(ctx context.Context, strategy evolution.DecodedStrategy) (float64, error) {
	body, err := json.Marshal(strategy)
	if err != nil {
		return 0, fmt.Errorf("failed to encode strategy: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("scoring request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to read scoring response: %w", err)
	}

	var parsed scoreResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
			return 0, fmt.Errorf("backtest engine returned %d: %s", resp.StatusCode, parsed.Error)
		}
		return 0, fmt.Errorf("backtest engine returned %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, &parsed); err != nil {
		return 0, fmt.Errorf("failed to decode scoring response: %w", err)
	}
	return parsed.Score, nil
}
