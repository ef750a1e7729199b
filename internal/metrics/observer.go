package metrics

import (
	"context"
	"time"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// Observer records generation progress as Prometheus metrics
type Observer struct{}

// NewObserver creates a metrics observer
func NewObserver() *Observer {
	return &Observer{}
}

// GenerationCompleted records the statistics of one evaluated generation
func (o *Observer) GenerationCompleted(_ context.Context, report evolution.GenerationReport) {
	RecordGeneration(report.Stats, report.BestFitness)
}

// RunCompleted records the fitness of the newly persisted best solution
func (o *Observer) RunCompleted(_ context.Context, record *evolution.BestSolutionRecord) {
	if record == nil {
		return
	}
	PersistedBestFitness.Set(record.Fitness)
	PersistedBestAge.Set(0)
}

// StartRun marks a run active. The returned function records its outcome
// and must be called exactly once.
func StartRun() func(err error) {
	ActiveRuns.Inc()
	start := time.Now()
	return func(err error) {
		ActiveRuns.Dec()
		RecordRun(err, time.Since(start).Seconds())
	}
}
