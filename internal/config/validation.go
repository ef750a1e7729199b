package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

var (
	validEnvironments  = []string{"development", "staging", "production"}
	validLogLevels     = []string{"trace", "debug", "info", "warn", "error"}
	validLogFormats    = []string{"json", "console"}
	validScorers       = []string{ScorerLandscape, ScorerHTTP, ScorerIndicator}
	validCandleSources = []string{CandleSourcePostgres, CandleSourceBinance}
	validBackends      = []string{StorageMemory, StorageFile, StorageRedis, StoragePostgres}
)

// Validate performs comprehensive configuration validation. Database and
// Redis settings are only checked when a configured component uses them.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateApp()...)
	errs = append(errs, c.validateEvolution()...)
	errs = append(errs, c.validateScorer()...)
	errs = append(errs, c.validateStorage()...)

	if c.NeedsDatabase() {
		errs = append(errs, c.validateDatabase()...)
	}
	if c.NeedsRedis() {
		errs = append(errs, c.validateRedis()...)
	}
	if c.NATS.Enabled {
		errs = append(errs, c.validateNATS()...)
	}

	errs = append(errs, c.validateAPI()...)
	errs = append(errs, c.validateEnvironmentRequirements()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errs ValidationErrors

	if c.App.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	if !slices.Contains(validEnvironments, c.App.Environment) {
		errs = append(errs, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvironments),
		})
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.App.LogLevel)) {
		errs = append(errs, ValidationError{
			Field:   "app.log_level",
			Message: fmt.Sprintf("Invalid log level '%s'. Must be one of: %v", c.App.LogLevel, validLogLevels),
		})
	}

	if c.App.LogFormat != "" && !slices.Contains(validLogFormats, c.App.LogFormat) {
		errs = append(errs, ValidationError{
			Field:   "app.log_format",
			Message: fmt.Sprintf("Invalid log format '%s'. Must be one of: %v", c.App.LogFormat, validLogFormats),
		})
	}

	return errs
}

// validateEvolution reuses the engine's own checks so both layers agree
func (c *Config) validateEvolution() ValidationErrors {
	err := c.Evolution.Validate()
	if err == nil {
		return nil
	}

	var evErrs evolution.ValidationErrors
	if !errors.As(err, &evErrs) {
		return ValidationErrors{{Field: "evolution", Message: err.Error()}}
	}

	errs := make(ValidationErrors, 0, len(evErrs))
	for _, e := range evErrs {
		errs = append(errs, ValidationError{Field: "evolution." + e.Field, Message: e.Message})
	}
	return errs
}

func (c *Config) validateScorer() ValidationErrors {
	var errs ValidationErrors

	if !slices.Contains(validScorers, c.Scorer.Type) {
		return ValidationErrors{{
			Field:   "scorer.type",
			Message: fmt.Sprintf("Invalid scorer '%s'. Must be one of: %v", c.Scorer.Type, validScorers),
		}}
	}

	if c.Scorer.Noise < 0 {
		errs = append(errs, ValidationError{
			Field:   "scorer.noise",
			Message: "Noise must be >= 0",
		})
	}

	switch c.Scorer.Type {
	case ScorerHTTP:
		h := c.Scorer.HTTP
		if u, err := url.Parse(h.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "scorer.http.url",
				Message: fmt.Sprintf("A valid http(s) URL is required, got '%s'", h.URL),
			})
		}
		if h.Timeout <= 0 {
			errs = append(errs, ValidationError{
				Field:   "scorer.http.timeout",
				Message: "Timeout must be positive",
			})
		}
		if h.RateLimit < 0 {
			errs = append(errs, ValidationError{
				Field:   "scorer.http.rate_limit",
				Message: "Rate limit must be >= 0",
			})
		}
		if h.Breaker.FailureRatio <= 0 || h.Breaker.FailureRatio > 1 {
			errs = append(errs, ValidationError{
				Field:   "scorer.http.breaker.failure_ratio",
				Message: fmt.Sprintf("Failure ratio must be in (0,1], got %v", h.Breaker.FailureRatio),
			})
		}
		if h.Timeout >= c.Evolution.EvalTimeout && c.Evolution.EvalTimeout > 0 {
			errs = append(errs, ValidationError{
				Field:   "scorer.http.timeout",
				Message: fmt.Sprintf("Must be shorter than evolution.eval_timeout (%s)", c.Evolution.EvalTimeout),
			})
		}

	case ScorerIndicator:
		ind := c.Scorer.Indicator
		if !slices.Contains(validCandleSources, ind.Source) {
			errs = append(errs, ValidationError{
				Field:   "scorer.indicator.source",
				Message: fmt.Sprintf("Invalid candle source '%s'. Must be one of: %v", ind.Source, validCandleSources),
			})
		}
		if ind.Symbol == "" {
			errs = append(errs, ValidationError{
				Field:   "scorer.indicator.symbol",
				Message: "Symbol is required",
			})
		}
		if ind.Limit < 50 {
			errs = append(errs, ValidationError{
				Field:   "scorer.indicator.limit",
				Message: fmt.Sprintf("At least 50 candles are required, got %d", ind.Limit),
			})
		}
		if ind.RSIPeriod < 2 {
			errs = append(errs, ValidationError{
				Field:   "scorer.indicator.rsi_period",
				Message: "RSI period must be >= 2",
			})
		}
		if ind.MACDSignal < 1 {
			errs = append(errs, ValidationError{
				Field:   "scorer.indicator.macd_signal",
				Message: "MACD signal period must be >= 1",
			})
		}
		if ind.FeeRate < 0 || ind.FeeRate >= 1 {
			errs = append(errs, ValidationError{
				Field:   "scorer.indicator.fee_rate",
				Message: "Fee rate must be in [0,1)",
			})
		}
	}

	return errs
}

func (c *Config) validateStorage() ValidationErrors {
	var errs ValidationErrors

	if !slices.Contains(validBackends, c.Storage.Backend) {
		return ValidationErrors{{
			Field:   "storage.backend",
			Message: fmt.Sprintf("Invalid backend '%s'. Must be one of: %v", c.Storage.Backend, validBackends),
		}}
	}

	if c.Storage.Backend == StorageFile && c.Storage.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.file_path",
			Message: "File path is required for the file backend",
		})
	}
	if c.Storage.Backend == StorageRedis && c.Storage.RedisKey == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.redis_key",
			Message: "Redis key is required for the redis backend",
		})
	}

	return errs
}

func (c *Config) validateDatabase() ValidationErrors {
	var errs ValidationErrors

	if c.Database.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "database.host",
			Message: "Database host is required",
		})
	}
	errs = append(errs, validatePort("database.port", c.Database.Port)...)

	if c.Database.User == "" {
		errs = append(errs, ValidationError{
			Field:   "database.user",
			Message: "Database user is required",
		})
	}
	if c.Database.Database == "" {
		errs = append(errs, ValidationError{
			Field:   "database.database",
			Message: "Database name is required",
		})
	}
	if c.Database.PoolSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "database.pool_size",
			Message: fmt.Sprintf("Pool size must be >= 1, got %d", c.Database.PoolSize),
		})
	}

	return errs
}

func (c *Config) validateRedis() ValidationErrors {
	var errs ValidationErrors

	if c.Redis.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		})
	}
	errs = append(errs, validatePort("redis.port", c.Redis.Port)...)

	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		errs = append(errs, ValidationError{
			Field:   "redis.db",
			Message: fmt.Sprintf("Invalid Redis DB %d. Must be between 0-15", c.Redis.DB),
		})
	}

	return errs
}

func (c *Config) validateNATS() ValidationErrors {
	var errs ValidationErrors

	if c.NATS.URL == "" {
		errs = append(errs, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL is required",
		})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") {
		errs = append(errs, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL must start with 'nats://'",
		})
	}

	if c.NATS.SubjectPrefix == "" {
		errs = append(errs, ValidationError{
			Field:   "nats.subject_prefix",
			Message: "Subject prefix is required",
		})
	}

	return errs
}

func (c *Config) validateAPI() ValidationErrors {
	errs := validatePort("api.port", c.API.Port)

	if c.API.RunTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "api.run_timeout",
			Message: "Run timeout must be positive",
		})
	}

	if c.API.RateLimit.Enabled {
		if c.API.RateLimit.Window <= 0 {
			errs = append(errs, ValidationError{
				Field:   "api.rate_limit.window",
				Message: "Window must be positive when rate limiting is enabled",
			})
		}
		if c.API.RateLimit.EvolveMaxRequests < 1 {
			errs = append(errs, ValidationError{
				Field:   "api.rate_limit.evolve_max_requests",
				Message: "Must be at least 1 when rate limiting is enabled",
			})
		}
		if c.API.RateLimit.ReadMaxRequests < 1 {
			errs = append(errs, ValidationError{
				Field:   "api.rate_limit.read_max_requests",
				Message: "Must be at least 1 when rate limiting is enabled",
			})
		}
	}

	if c.Monitoring.PrometheusPort != 0 {
		errs = append(errs, validatePort("monitoring.prometheus_port", c.Monitoring.PrometheusPort)...)
		if c.Monitoring.PrometheusPort == c.API.Port {
			errs = append(errs, ValidationError{
				Field:   "monitoring.prometheus_port",
				Message: "Must differ from api.port",
			})
		}
	}

	return errs
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errs ValidationErrors

	if c.App.Environment != "production" {
		return nil
	}

	errs = append(errs, ValidateProductionSecrets(c)...)

	if c.NeedsDatabase() && c.Database.SSLMode == "disable" {
		errs = append(errs, ValidationError{
			Field:   "database.ssl_mode",
			Message: "SSL must be enabled for database in production",
		})
	}

	if c.Storage.Backend == StorageMemory {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: "The memory backend loses the best solution on restart and is not allowed in production",
		})
	}

	if c.Scorer.Type == ScorerIndicator && c.Scorer.Indicator.Testnet {
		errs = append(errs, ValidationError{
			Field:   "scorer.indicator.testnet",
			Message: "Testnet candles must not be used in production",
		})
	}

	if slices.Contains(c.API.AllowedOrigins, "*") {
		errs = append(errs, ValidationError{
			Field:   "api.allowed_origins",
			Message: "Wildcard CORS origin is not allowed in production",
		})
	}

	return errs
}

func validatePort(field string, port int) ValidationErrors {
	if port == 0 {
		return ValidationErrors{{Field: field, Message: "Port is required"}}
	}
	if port < 1 || port > 65535 {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", port)}}
	}
	return nil
}
