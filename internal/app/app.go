// Package app wires configuration into a ready evolution service: the
// best-solution store, the fitness scorer, and the run observers.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/internal/api"
	"github.com/ajitpratap0/evolver/internal/config"
	"github.com/ajitpratap0/evolver/internal/db"
	"github.com/ajitpratap0/evolver/internal/events"
	"github.com/ajitpratap0/evolver/internal/metrics"
	"github.com/ajitpratap0/evolver/internal/scoring"
	"github.com/ajitpratap0/evolver/internal/storage"
	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// App holds the components built from a configuration
type App struct {
	Config    *config.Config
	Service   *evolution.Service
	Store     evolution.Store
	Scorer    evolution.Scorer
	Publisher *events.Publisher // nil unless NATS is enabled

	database *db.DB
	redis    *redis.Client
	checks   map[string]api.HealthCheck
	closers  []func()
}

// New builds every component the configuration asks for. On error, anything
// already opened is closed again.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	a := &App{
		Config: cfg,
		checks: make(map[string]api.HealthCheck),
	}

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	if a.Config.NeedsDatabase() {
		database, err := db.New(ctx, a.Config.Database.GetDSN(), int32(a.Config.Database.PoolSize)) // #nosec G115 -- pool size validated to a small positive int
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.database = database
		a.closers = append(a.closers, database.Close)
		a.checks["database"] = database.Health
	}

	if a.Config.NeedsRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     a.Config.Redis.GetRedisAddr(),
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
		a.redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}

	store, err := a.buildStore()
	if err != nil {
		return err
	}
	a.Store = metrics.NewInstrumentedStore(store, a.Config.Storage.Backend)

	scorer, err := a.buildScorer()
	if err != nil {
		return err
	}
	a.Scorer = scorer

	a.Service = evolution.NewService(a.Store, a.Scorer, a.Config.Evolution)
	if a.Config.Monitoring.EnableMetrics {
		a.Service.AddObserver(metrics.NewObserver())
	}

	if a.Config.NATS.Enabled {
		publisher, err := events.NewPublisher(events.Config{
			URL:    a.Config.NATS.URL,
			Prefix: a.Config.NATS.SubjectPrefix,
			Name:   a.Config.App.Name,
		})
		if err != nil {
			return err
		}
		a.Publisher = publisher
		a.closers = append(a.closers, func() { _ = publisher.Close() })
		a.checks["nats"] = func(context.Context) error {
			if !publisher.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
		a.Service.AddObserver(publisher)
	}

	log.Info().
		Str("storage", a.Config.Storage.Backend).
		Str("scorer", a.Config.Scorer.Type).
		Bool("events", a.Publisher != nil).
		Msg("Evolution service ready")

	return nil
}

func (a *App) buildStore() (evolution.Store, error) {
	switch a.Config.Storage.Backend {
	case config.StorageMemory:
		return evolution.NewMemoryStore(), nil

	case config.StorageFile:
		store := storage.NewFileStore(a.Config.Storage.FilePath)
		log.Info().Str("path", store.Path()).Msg("Using file store")
		return store, nil

	case config.StorageRedis:
		return storage.NewRedisStore(a.redis, a.Config.Storage.RedisKey)

	case config.StoragePostgres:
		return db.NewBestSolutionRepository(a.database.Pool()), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s", a.Config.Storage.Backend)
	}
}

func (a *App) buildScorer() (evolution.Scorer, error) {
	sc := a.Config.Scorer

	switch sc.Type {
	case config.ScorerLandscape:
		// A zero seed derives the noise from the run seed
		return evolution.NewLandscapeScorer(sc.Seed, sc.Noise), nil

	case config.ScorerHTTP:
		return scoring.NewHTTPScorer(scoring.HTTPScorerOptions{
			URL:       sc.HTTP.URL,
			Timeout:   sc.HTTP.Timeout,
			RateLimit: sc.HTTP.RateLimit,
			Burst:     sc.HTTP.Burst,
			Breaker: scoring.BreakerSettings{
				MaxRequests:  sc.HTTP.Breaker.MaxRequests,
				Interval:     sc.HTTP.Breaker.Interval,
				Timeout:      sc.HTTP.Breaker.Timeout,
				MinRequests:  sc.HTTP.Breaker.MinRequests,
				FailureRatio: sc.HTTP.Breaker.FailureRatio,
			},
		})

	case config.ScorerIndicator:
		var source scoring.CandleSource
		switch sc.Indicator.Source {
		case config.CandleSourcePostgres:
			source = db.NewCandleRepository(a.database.Pool())
		case config.CandleSourceBinance:
			source = scoring.NewBinanceCandleSource("", "", sc.Indicator.Testnet)
		default:
			return nil, fmt.Errorf("unknown candle source: %s", sc.Indicator.Source)
		}
		return scoring.NewIndicatorScorer(source, scoring.IndicatorScorerOptions{
			Symbol:     sc.Indicator.Symbol,
			Interval:   sc.Indicator.Interval,
			Limit:      sc.Indicator.Limit,
			RSIPeriod:  sc.Indicator.RSIPeriod,
			MACDSignal: sc.Indicator.MACDSignal,
			FeeRate:    sc.Indicator.FeeRate,
		})

	default:
		return nil, fmt.Errorf("unknown scorer type: %s", sc.Type)
	}
}

// HealthChecks returns a check per external dependency
func (a *App) HealthChecks() map[string]api.HealthCheck {
	checks := make(map[string]api.HealthCheck, len(a.checks))
	for name, check := range a.checks {
		checks[name] = check
	}
	return checks
}

// Close releases connections in reverse order of opening
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
