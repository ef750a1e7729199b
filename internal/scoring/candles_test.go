package scoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKlinesToCloses(t *testing.T) {
	closes, err := klinesToCloses([]*binance.Kline{
		{Close: "42000.50"},
		nil,
		{Close: "42100"},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{42000.50, 42100}, closes)

	_, err = klinesToCloses([]*binance.Kline{{Close: "abc"}})
	assert.Error(t, err)

	_, err = klinesToCloses(nil)
	assert.Error(t, err)
}

const klinesFixture = `[
  [1700000000000, "100.0", "101.0", "99.0", "100.5", "10.0", 1700003599999, "1000.0", 10, "5.0", "500.0", "0"],
  [1700003600000, "100.5", "102.0", "100.0", "101.5", "12.0", 1700007199999, "1200.0", 12, "6.0", "600.0", "0"],
  [1700007200000, "101.5", "103.0", "101.0", "102.25", "11.0", 1700010799999, "1100.0", 11, "5.5", "550.0", "0"]
]`

func TestBinanceCandleSource_LoadCloses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(klinesFixture))
	}))
	defer server.Close()

	source := NewBinanceCandleSourceWithURL(server.URL)
	closes, err := source.LoadCloses(context.Background(), "ETHUSDT", "1h", 5000)
	require.NoError(t, err)
	assert.Equal(t, []float64{100.5, 101.5, 102.25}, closes)
}

func TestBinanceCandleSource_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer server.Close()

	source := NewBinanceCandleSourceWithURL(server.URL)
	_, err := source.LoadCloses(context.Background(), "NOPE", "1h", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE")
}
