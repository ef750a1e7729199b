package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

func TestHandleRoot(t *testing.T) {
	server := newTestServer(t, nil)

	w := doRequest(t, server, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Genetic Algorithm Strategy Evolution", body["service"])
	assert.Equal(t, "test", body["version"])
}

func TestHandleGetHealth(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		server := newTestServer(t, func(c *Config) {
			c.HealthChecks = map[string]HealthCheck{
				"store": func(context.Context) error { return nil },
			}
		})

		w := doRequest(t, server, http.MethodGet, "/api/v1/health", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "healthy", body["status"])
		components := body["components"].(map[string]interface{})
		assert.Equal(t, "healthy", components["store"].(map[string]interface{})["status"])
	})

	t.Run("failing component", func(t *testing.T) {
		server := newTestServer(t, func(c *Config) {
			c.HealthChecks = map[string]HealthCheck{
				"store":  func(context.Context) error { return nil },
				"events": func(context.Context) error { return errors.New("nats disconnected") },
			}
		})

		w := doRequest(t, server, http.MethodGet, "/api/v1/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "unhealthy", body["status"])
		events := body["components"].(map[string]interface{})["events"].(map[string]interface{})
		assert.Equal(t, "nats disconnected", events["error"])
	})
}

func TestHandleGetBest_NotFound(t *testing.T) {
	server := newTestServer(t, nil)

	w := doRequest(t, server, http.MethodGet, "/api/v1/best", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No evolved strategy found", decodeBody(t, w)["error"])
}

func TestHandleEvolve(t *testing.T) {
	server := newTestServer(t, nil)

	w := doRequest(t, server, http.MethodPost, "/api/v1/evolve", map[string]int{
		"generations": 3,
		"pop_size":    8,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, evolution.RecordSchemaVersion, body["schema_version"])
	assert.EqualValues(t, 3, body["generations"])
	assert.EqualValues(t, 8, body["pop_size"])
	assert.Len(t, body["genes"], evolution.NumGenes)
	assert.Len(t, body["generation_stats"], 4)

	strategy := body["decoded_strategy"].(map[string]interface{})
	assert.Contains(t, strategy, "rsi_threshold")
	assert.Contains(t, strategy, "macd_fast")
	assert.Contains(t, strategy, "macd_slow")
	assert.Contains(t, strategy, "hold_period")

	// The run's best is now served by /best
	best := doRequest(t, server, http.MethodGet, "/api/v1/best", nil)
	require.Equal(t, http.StatusOK, best.Code)
	assert.Equal(t, body["run_id"], decodeBody(t, best)["run_id"])
}

func TestHandleEvolve_Defaults(t *testing.T) {
	server := newTestServer(t, nil)

	w := doRequest(t, server, http.MethodPost, "/api/v1/evolve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.EqualValues(t, evolution.DefaultGenerations, body["generations"])
	assert.EqualValues(t, evolution.DefaultPopSize, body["pop_size"])
}

func TestHandleEvolve_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{"zero generations", map[string]int{"generations": 0}, http.StatusBadRequest},
		{"negative pop size", map[string]int{"pop_size": -1}, http.StatusBadRequest},
		{"wrong type", map[string]string{"generations": "ten"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, nil)

			w := doRequest(t, server, http.MethodPost, "/api/v1/evolve", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotEmpty(t, decodeBody(t, w)["error"])

			// A rejected run persists nothing
			best := doRequest(t, server, http.MethodGet, "/api/v1/best", nil)
			assert.Equal(t, http.StatusNotFound, best.Code)
		})
	}
}

func TestHandleEvolve_RunTimeout(t *testing.T) {
	slow := evolution.ScorerFunc(func(ctx context.Context, _ evolution.DecodedStrategy) (float64, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return 0.5, nil
		}
	})

	server := newTestServer(t, func(c *Config) {
		c.Service = newTestService(slow)
		c.RunTimeout = 30 * time.Millisecond
	})

	w := doRequest(t, server, http.MethodPost, "/api/v1/evolve", map[string]int{
		"generations": 50,
		"pop_size":    10,
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	best := doRequest(t, server, http.MethodGet, "/api/v1/best", nil)
	assert.Equal(t, http.StatusNotFound, best.Code)
}

func TestHandleExportBest(t *testing.T) {
	server := newTestServer(t, nil)

	w := doRequest(t, server, http.MethodGet, "/api/v1/best/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	run := doRequest(t, server, http.MethodPost, "/api/v1/evolve", map[string]int{"generations": 1, "pop_size": 4})
	require.Equal(t, http.StatusOK, run.Code)
	runID := decodeBody(t, run)["run_id"]

	t.Run("yaml by default", func(t *testing.T) {
		w := doRequest(t, server, http.MethodGet, "/api/v1/best/export", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "best_strategy.yaml")

		var doc map[string]interface{}
		require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &doc))
		assert.Equal(t, runID, doc["run_id"])
	})

	t.Run("json", func(t *testing.T) {
		w := doRequest(t, server, http.MethodGet, "/api/v1/best/export?format=json", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "best_strategy.json")

		record, err := evolution.ImportRecord(w.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, runID, record.RunID)
	})

	t.Run("unknown format", func(t *testing.T) {
		w := doRequest(t, server, http.MethodGet, "/api/v1/best/export?format=csv", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDecode(t *testing.T) {
	server := newTestServer(t, nil)

	w := doRequest(t, server, http.MethodPost, "/api/v1/decode", DecodeRequest{
		Genes: []float64{0.5, 0.5, 0.5, 0.5},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp DecodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, evolution.Decode(evolution.GeneVector{0.5, 0.5, 0.5, 0.5}), resp.Strategy)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing genes", map[string]interface{}{}},
		{"too few genes", DecodeRequest{Genes: []float64{0.1, 0.2}}},
		{"out of range", DecodeRequest{Genes: []float64{0.1, 0.2, 1.5, 0.3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server, http.MethodPost, "/api/v1/decode", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, nil)

	doRequest(t, server, http.MethodGet, "/", nil)
	w := doRequest(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "evolver_http_requests_total")
}
