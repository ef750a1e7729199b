package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

func TestNormalizeRunStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, RunStatusCompleted},
		{"invalid config", fmt.Errorf("%w: pop_size", evolution.ErrInvalidConfiguration), RunStatusInvalidConfig},
		{"validation errors", evolution.ValidationErrors{{Field: "pop_size", Message: "bad"}}, RunStatusInvalidConfig},
		{"run cancelled", fmt.Errorf("%w after generation 2", evolution.ErrRunCancelled), RunStatusCancelled},
		{"deadline", context.DeadlineExceeded, RunStatusCancelled},
		{"persistence", fmt.Errorf("%w: save: disk full", evolution.ErrPersistence), RunStatusPersistence},
		{"other", errors.New("boom"), RunStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeRunStatus(tt.err))
		})
	}
}

func TestNormalizeStoreResult(t *testing.T) {
	assert.Equal(t, StoreResultSuccess, NormalizeStoreResult(nil))
	assert.Equal(t, StoreResultNotFound, NormalizeStoreResult(evolution.ErrNotFound))
	assert.Equal(t, StoreResultNotFound, NormalizeStoreResult(fmt.Errorf("load: %w", evolution.ErrNotFound)))
	assert.Equal(t, StoreResultError, NormalizeStoreResult(errors.New("connection reset")))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "unmatched", NormalizePath(""))
	assert.Equal(t, "/api/v1/best", NormalizePath("/api/v1/best"))
}

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(EvolutionRuns.WithLabelValues(RunStatusCancelled))

	RecordRun(evolution.ErrRunCancelled, 1.5)

	assert.Equal(t, before+1, testutil.ToFloat64(EvolutionRuns.WithLabelValues(RunStatusCancelled)))
}

func TestRecordGeneration(t *testing.T) {
	generations := testutil.ToFloat64(Generations)
	evaluations := testutil.ToFloat64(Evaluations)
	failures := testutil.ToFloat64(EvaluationFailures)

	RecordGeneration(evolution.GenerationStats{
		Generation:  3,
		Avg:         0.4,
		Std:         0.1,
		Min:         0.2,
		Max:         0.7,
		Evaluations: 30,
		Failures:    2,
	}, 0.8)

	assert.Equal(t, generations+1, testutil.ToFloat64(Generations))
	assert.Equal(t, evaluations+30, testutil.ToFloat64(Evaluations))
	assert.Equal(t, failures+2, testutil.ToFloat64(EvaluationFailures))
	assert.Equal(t, 0.4, testutil.ToFloat64(GenerationFitness.WithLabelValues("avg")))
	assert.Equal(t, 0.7, testutil.ToFloat64(GenerationFitness.WithLabelValues("max")))
	assert.Equal(t, 0.8, testutil.ToFloat64(RunBestFitness))
}

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		statusCode string
		label      string
	}{
		{"evolve", "POST", "/api/v1/evolve", "200", "/api/v1/evolve"},
		{"best not found", "GET", "/api/v1/best", "404", "/api/v1/best"},
		{"unknown route", "GET", "", "404", "unmatched"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := HTTPRequests.WithLabelValues(tt.method, tt.label, tt.statusCode)
			before := testutil.ToFloat64(counter)

			RecordAPIRequest(tt.method, tt.path, tt.statusCode, 12.5)

			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestRecordEventPublished(t *testing.T) {
	ok := EventsPublished.WithLabelValues("generation", "success")
	failed := EventsPublished.WithLabelValues("generation", "failure")
	okBefore := testutil.ToFloat64(ok)
	failedBefore := testutil.ToFloat64(failed)

	RecordEventPublished("generation", nil)
	RecordEventPublished("generation", errors.New("nats: connection closed"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestRecordError(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError("store_load", "metrics_updater")
		RecordError("publish", "events")
	})
}

func TestStartRun(t *testing.T) {
	active := testutil.ToFloat64(ActiveRuns)
	completed := testutil.ToFloat64(EvolutionRuns.WithLabelValues(RunStatusCompleted))

	done := StartRun()
	assert.Equal(t, active+1, testutil.ToFloat64(ActiveRuns))

	done(nil)
	assert.Equal(t, active, testutil.ToFloat64(ActiveRuns))
	assert.Equal(t, completed+1, testutil.ToFloat64(EvolutionRuns.WithLabelValues(RunStatusCompleted)))
}
