package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

func TestNewUpdater(t *testing.T) {
	updater := NewUpdater(evolution.NewMemoryStore(), 30*time.Second)

	assert.NotNil(t, updater)
	assert.Equal(t, 30*time.Second, updater.interval)
	assert.NotNil(t, updater.stopCh)
}

func TestUpdater_UpdateFromStore(t *testing.T) {
	store := evolution.NewMemoryStore()
	updater := NewUpdater(store, time.Minute)

	updater.update(context.Background())
	assert.Equal(t, 0.0, testutil.ToFloat64(PersistedBestFitness))

	require.NoError(t, store.Save(context.Background(), &evolution.BestSolutionRecord{
		SchemaVersion: evolution.RecordSchemaVersion,
		Fitness:       0.42,
		CompletedAt:   time.Now().Add(-time.Minute),
	}))

	updater.update(context.Background())
	assert.Equal(t, 0.42, testutil.ToFloat64(PersistedBestFitness))
	assert.GreaterOrEqual(t, testutil.ToFloat64(PersistedBestAge), 60.0)
}

func TestUpdater_StoreError(t *testing.T) {
	PersistedBestFitness.Set(0.33)
	updater := NewUpdater(failingStore{}, time.Minute)

	updater.update(context.Background())

	// gauges keep their last known value when the store is unreachable
	assert.Equal(t, 0.33, testutil.ToFloat64(PersistedBestFitness))
}

func TestUpdater_Stop(t *testing.T) {
	updater := NewUpdater(evolution.NewMemoryStore(), 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		updater.Start(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	updater.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("updater did not stop")
	}
}

func TestUpdater_ContextCancellation(t *testing.T) {
	updater := NewUpdater(evolution.NewMemoryStore(), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		updater.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("updater did not exit on context cancellation")
	}
}
