package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// Updater periodically refreshes the persisted-solution gauges from the store.
// Another process may overwrite the slot, so the gauges are not only driven
// by local runs.
type Updater struct {
	store    evolution.Store
	interval time.Duration
	stopCh   chan struct{}
}

// NewUpdater creates a new metrics updater
func NewUpdater(store evolution.Store, interval time.Duration) *Updater {
	return &Updater{
		store:    store,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the metrics update loop
func (u *Updater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	// Update immediately on start
	u.update(ctx)

	for {
		select {
		case <-ticker.C:
			u.update(ctx)
		case <-u.stopCh:
			log.Info().Msg("Metrics updater stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Metrics updater context cancelled")
			return
		}
	}
}

// Stop stops the metrics updater
func (u *Updater) Stop() {
	close(u.stopCh)
}

// update reads the persisted record and refreshes its gauges
func (u *Updater) update(ctx context.Context) {
	log.Debug().Msg("Updating metrics from best-solution store")

	record, err := u.store.Load(ctx)
	if errors.Is(err, evolution.ErrNotFound) {
		PersistedBestFitness.Set(0)
		PersistedBestAge.Set(0)
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load best solution for metrics")
		RecordError("store_load", "metrics_updater")
		return
	}

	PersistedBestFitness.Set(record.Fitness)
	if !record.CompletedAt.IsZero() {
		PersistedBestAge.Set(time.Since(record.CompletedAt).Seconds())
	}
}
