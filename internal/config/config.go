package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig                 `mapstructure:"app"`
	Evolution  evolution.EvolutionConfig `mapstructure:"evolution"`
	Scorer     ScorerConfig              `mapstructure:"scorer"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Database   DatabaseConfig            `mapstructure:"database"`
	Redis      RedisConfig               `mapstructure:"redis"`
	NATS       NATSConfig                `mapstructure:"nats"`
	API        APIConfig                 `mapstructure:"api"`
	Monitoring MonitoringConfig          `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json or console
}

// Scorer types
const (
	ScorerLandscape = "landscape"
	ScorerHTTP      = "http"
	ScorerIndicator = "indicator"
)

// ScorerConfig selects and configures the fitness scorer
type ScorerConfig struct {
	Type      string                `mapstructure:"type"`  // landscape, http, indicator
	Noise     float64               `mapstructure:"noise"` // landscape noise std dev, 0 disables
	Seed      int64                 `mapstructure:"seed"`  // landscape noise seed, 0 = follow the run seed
	HTTP      HTTPScorerConfig      `mapstructure:"http"`
	Indicator IndicatorScorerConfig `mapstructure:"indicator"`
}

// HTTPScorerConfig configures the remote backtest scorer
type HTTPScorerConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `mapstructure:"burst"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig contains circuit breaker settings for the remote scorer
type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"` // allowed in half-open state
	Interval     time.Duration `mapstructure:"interval"`     // closed-state counter reset
	Timeout      time.Duration `mapstructure:"timeout"`      // open-state duration
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// Candle sources
const (
	CandleSourcePostgres = "postgres"
	CandleSourceBinance  = "binance"
)

// IndicatorScorerConfig configures the local RSI/MACD backtest
type IndicatorScorerConfig struct {
	Source     string  `mapstructure:"source"` // postgres or binance
	Symbol     string  `mapstructure:"symbol"`
	Interval   string  `mapstructure:"interval"`
	Limit      int     `mapstructure:"limit"` // candles to load
	RSIPeriod  int     `mapstructure:"rsi_period"`
	MACDSignal int     `mapstructure:"macd_signal"`
	FeeRate    float64 `mapstructure:"fee_rate"` // round-trip cost per trade
	Testnet    bool    `mapstructure:"testnet"`
}

// Storage backends
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// StorageConfig selects the best-solution store
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`   // memory, file, redis, postgres
	FilePath string `mapstructure:"file_path"` // file backend
	RedisKey string `mapstructure:"redis_key"` // redis backend
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS event settings
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host           string          `mapstructure:"host"`
	Port           int             `mapstructure:"port"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RunTimeout     time.Duration   `mapstructure:"run_timeout"` // upper bound for a synchronous /evolve call
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig contains per-IP request limits for the API
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Window            time.Duration `mapstructure:"window"`
	EvolveMaxRequests int           `mapstructure:"evolve_max_requests"` // runs are expensive
	ReadMaxRequests   int           `mapstructure:"read_max_requests"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	EnableMetrics  bool `mapstructure:"enable_metrics"`
	PrometheusPort int  `mapstructure:"prometheus_port"` // 0 = only serve /metrics on the API
}

var envKeyReplacer = strings.NewReplacer(".", "_")

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// EVOLVER_STORAGE_BACKEND overrides storage.backend
	v.SetEnvPrefix("EVOLVER")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Evolver")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Evolution defaults
	v.SetDefault("evolution.pop_size", evolution.DefaultPopSize)
	v.SetDefault("evolution.generations", evolution.DefaultGenerations)
	v.SetDefault("evolution.cxpb", evolution.DefaultCXPB)
	v.SetDefault("evolution.mutpb", evolution.DefaultMutPB)
	v.SetDefault("evolution.tournament_k", evolution.DefaultTournamentK)
	v.SetDefault("evolution.blend_alpha", evolution.DefaultBlendAlpha)
	v.SetDefault("evolution.mutation_sigma", evolution.DefaultMutationSigma)
	v.SetDefault("evolution.indpb", evolution.DefaultIndPB)
	v.SetDefault("evolution.elitism", false)
	v.SetDefault("evolution.workers", evolution.DefaultWorkers)
	v.SetDefault("evolution.eval_timeout", evolution.DefaultEvalTimeout)
	v.SetDefault("evolution.seed", 0)

	// Scorer defaults
	v.SetDefault("scorer.type", ScorerLandscape)
	v.SetDefault("scorer.noise", evolution.DefaultLandscapeNoise)
	v.SetDefault("scorer.seed", 0)
	v.SetDefault("scorer.http.url", fmt.Sprintf("http://localhost:%d/api/v1/backtest/score", BacktestScorerPort))
	v.SetDefault("scorer.http.timeout", 4*time.Second)
	v.SetDefault("scorer.http.rate_limit", 20.0)
	v.SetDefault("scorer.http.burst", 5)
	v.SetDefault("scorer.http.breaker.max_requests", 3)
	v.SetDefault("scorer.http.breaker.interval", 10*time.Second)
	v.SetDefault("scorer.http.breaker.timeout", 30*time.Second)
	v.SetDefault("scorer.http.breaker.min_requests", 5)
	v.SetDefault("scorer.http.breaker.failure_ratio", 0.6)
	v.SetDefault("scorer.indicator.source", CandleSourcePostgres)
	v.SetDefault("scorer.indicator.symbol", "BTCUSDT")
	v.SetDefault("scorer.indicator.interval", "1h")
	v.SetDefault("scorer.indicator.limit", 1000)
	v.SetDefault("scorer.indicator.rsi_period", 14)
	v.SetDefault("scorer.indicator.macd_signal", 9)
	v.SetDefault("scorer.indicator.fee_rate", 0.002)
	v.SetDefault("scorer.indicator.testnet", false)

	// Storage defaults
	v.SetDefault("storage.backend", StorageFile)
	v.SetDefault("storage.file_path", "best_strategy.json")
	v.SetDefault("storage.redis_key", "evolver:best_solution")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", PostgresPort)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "evolver")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.db", 0)

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", fmt.Sprintf("nats://localhost:%d", NATSPort))
	v.SetDefault("nats.subject_prefix", "evolver")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", APIServerPort)
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("api.run_timeout", 10*time.Minute)
	v.SetDefault("api.rate_limit.enabled", true)
	v.SetDefault("api.rate_limit.window", time.Minute)
	v.SetDefault("api.rate_limit.evolve_max_requests", 5)
	v.SetDefault("api.rate_limit.read_max_requests", 120)

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.prometheus_port", 0)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NeedsDatabase reports whether any configured component reads Postgres
func (c *Config) NeedsDatabase() bool {
	return c.Storage.Backend == StoragePostgres ||
		(c.Scorer.Type == ScorerIndicator && c.Scorer.Indicator.Source == CandleSourcePostgres)
}

// NeedsRedis reports whether the Redis store is configured
func (c *Config) NeedsRedis() bool {
	return c.Storage.Backend == StorageRedis
}
