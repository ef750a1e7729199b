package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/evolver/internal/config"
	"github.com/ajitpratap0/evolver/internal/metrics"
	"github.com/ajitpratap0/evolver/internal/scoring"
	"github.com/ajitpratap0/evolver/pkg/evolution"
)

func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}

func TestNew_MemoryLandscape(t *testing.T) {
	cfg := loadConfig(t, `
storage:
  backend: memory
scorer:
  type: landscape
  seed: 3
  noise: 0
`)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &metrics.InstrumentedStore{}, a.Store)
	assert.IsType(t, &evolution.LandscapeScorer{}, a.Scorer)
	assert.Nil(t, a.Publisher)
	assert.Empty(t, a.HealthChecks())

	_, err = a.Service.GetBest(context.Background())
	assert.ErrorIs(t, err, evolution.ErrNotFound)

	record, err := a.Service.Run(context.Background(), 2, 6)
	require.NoError(t, err)

	best, err := a.Service.GetBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, record.RunID, best.RunID)
}

func TestNew_LandscapeFollowsRunSeed(t *testing.T) {
	cfg := loadConfig(t, `
storage:
  backend: memory
evolution:
  seed: 42
scorer:
  type: landscape
  noise: 0.05
`)

	run := func() *evolution.BestSolutionRecord {
		a, err := New(context.Background(), cfg)
		require.NoError(t, err)
		defer a.Close()
		record, err := a.Service.Run(context.Background(), 3, 12)
		require.NoError(t, err)
		return record
	}

	first, second := run(), run()
	assert.Equal(t, first.GenerationStats, second.GenerationStats)
	assert.Equal(t, first.Genes, second.Genes)
	assert.Equal(t, first.Fitness, second.Fitness)
}

func TestNew_FileStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.json")
	yaml := fmt.Sprintf(`
storage:
  backend: file
  file_path: %s
scorer:
  type: landscape
  seed: 5
`, path)

	first, err := New(context.Background(), loadConfig(t, yaml))
	require.NoError(t, err)
	record, err := first.Service.Run(context.Background(), 1, 4)
	require.NoError(t, err)
	first.Close()

	assert.FileExists(t, path)

	second, err := New(context.Background(), loadConfig(t, yaml))
	require.NoError(t, err)
	defer second.Close()

	best, err := second.Service.GetBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, record.RunID, best.RunID)
	assert.Equal(t, record.Genes, best.Genes)
}

func TestNew_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := loadConfig(t, fmt.Sprintf(`
storage:
  backend: redis
  redis_key: test:best
redis:
  host: %s
  port: %d
scorer:
  type: landscape
  seed: 9
`, host, port))

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	checks := a.HealthChecks()
	require.Contains(t, checks, "redis")
	assert.NoError(t, checks["redis"](context.Background()))

	_, err = a.Service.Run(context.Background(), 1, 4)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:best"))
}

func TestNew_HTTPScorer(t *testing.T) {
	cfg := loadConfig(t, `
storage:
  backend: memory
scorer:
  type: http
  http:
    url: http://localhost:9/score
`)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &scoring.HTTPScorer{}, a.Scorer)
}

func TestNew_BinanceIndicatorScorer(t *testing.T) {
	cfg := loadConfig(t, `
storage:
  backend: memory
scorer:
  type: indicator
  indicator:
    source: binance
    symbol: ETHUSDT
`)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &scoring.IndicatorScorer{}, a.Scorer)
}

func TestNew_NATSUnavailable(t *testing.T) {
	cfg := loadConfig(t, `
storage:
  backend: memory
nats:
  enabled: true
  url: nats://127.0.0.1:1
`)

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
