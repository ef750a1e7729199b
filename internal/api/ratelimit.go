package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RateLimiterConfig defines per-IP limits for the two endpoint classes
type RateLimiterConfig struct {
	Window time.Duration

	// Run triggers; each one occupies the service for a full run
	EvolveMaxRequests int

	// Read-only endpoints (best, export, decode)
	ReadMaxRequests int

	Enabled bool
}

// DefaultRateLimiterConfig returns the default rate limiter configuration
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Window:            time.Minute,
		EvolveMaxRequests: 5,
		ReadMaxRequests:   120,
		Enabled:           true,
	}
}

// rateLimiterEntry tracks request timestamps for an IP address
type rateLimiterEntry struct {
	requests []time.Time
	mu       sync.Mutex
}

// RateLimiter implements sliding window rate limiting per IP address
type RateLimiter struct {
	entries     sync.Map // map[string]*rateLimiterEntry
	maxRequests int
	window      time.Duration
	name        string // For logging
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(name string, maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		name:        name,
	}
}

// allow checks if a request from the given IP is allowed
func (rl *RateLimiter) allow(ip string, now time.Time) bool {
	val, _ := rl.entries.LoadOrStore(ip, &rateLimiterEntry{
		requests: make([]time.Time, 0, rl.maxRequests),
	})
	entry := val.(*rateLimiterEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Drop requests outside the window
	cutoff := now.Add(-rl.window)
	valid := entry.requests[:0]
	for _, req := range entry.requests {
		if req.After(cutoff) {
			valid = append(valid, req)
		}
	}
	entry.requests = valid

	if len(entry.requests) >= rl.maxRequests {
		log.Warn().
			Str("ip", ip).
			Str("limiter", rl.name).
			Int("requests", len(entry.requests)).
			Int("max", rl.maxRequests).
			Dur("window", rl.window).
			Msg("Rate limit exceeded")
		return false
	}

	entry.requests = append(entry.requests, now)
	return true
}

// Middleware returns a Gin middleware that applies rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"message":     fmt.Sprintf("Maximum %d requests per %v allowed", rl.maxRequests, rl.window),
				"retry_after": rl.window.Seconds(),
			})
			return
		}
		c.Next()
	}
}

// cleanup removes IPs with no requests in the last two windows
func (rl *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.window * 2)
	rl.entries.Range(func(key, value interface{}) bool {
		entry := value.(*rateLimiterEntry)
		entry.mu.Lock()
		active := false
		for _, req := range entry.requests {
			if req.After(cutoff) {
				active = true
				break
			}
		}
		entry.mu.Unlock()

		if !active {
			rl.entries.Delete(key)
		}
		return true
	})
}

// RateLimiterMiddleware manages the per-class rate limiters
type RateLimiterMiddleware struct {
	evolve  *RateLimiter
	read    *RateLimiter
	enabled bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiterMiddleware creates a new rate limiter middleware with the given config
func NewRateLimiterMiddleware(config *RateLimiterConfig) *RateLimiterMiddleware {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}

	return &RateLimiterMiddleware{
		evolve:  NewRateLimiter("evolve", config.EvolveMaxRequests, config.Window),
		read:    NewRateLimiter("read", config.ReadMaxRequests, config.Window),
		enabled: config.Enabled,
		stopCh:  make(chan struct{}),
	}
}

func passThrough(c *gin.Context) { c.Next() }

// EvolveMiddleware limits run triggers
func (rlm *RateLimiterMiddleware) EvolveMiddleware() gin.HandlerFunc {
	if !rlm.enabled {
		return passThrough
	}
	return rlm.evolve.Middleware()
}

// ReadMiddleware limits read-only endpoints
func (rlm *RateLimiterMiddleware) ReadMiddleware() gin.HandlerFunc {
	if !rlm.enabled {
		return passThrough
	}
	return rlm.read.Middleware()
}

// CleanupOldEntries removes stale IP entries from all rate limiters
func (rlm *RateLimiterMiddleware) CleanupOldEntries() {
	now := time.Now()
	rlm.evolve.cleanup(now)
	rlm.read.cleanup(now)
}

// StartCleanupWorker periodically removes stale entries until Stop is called
func (rlm *RateLimiterMiddleware) StartCleanupWorker(interval time.Duration) {
	if !rlm.enabled || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rlm.CleanupOldEntries()
				log.Debug().Msg("Rate limiter cleanup completed")
			case <-rlm.stopCh:
				return
			}
		}
	}()
}

// Stop ends the cleanup worker
func (rlm *RateLimiterMiddleware) Stop() {
	rlm.stopOnce.Do(func() { close(rlm.stopCh) })
}
