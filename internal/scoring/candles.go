// Package scoring provides fitness scorers that back the evolution engine:
// a remote backtest engine reached over HTTP and a local RSI/MACD backtest
// replayed over historical candles.
package scoring

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
)

// MaxBinanceKlines is the largest page the klines endpoint returns
const MaxBinanceKlines = 1000

// CandleSource loads close prices in chronological order
type CandleSource interface {
	LoadCloses(ctx context.Context, symbol, interval string, limit int) ([]float64, error)
}

// BinanceCandleSource reads klines from the Binance public market data API
type BinanceCandleSource struct {
	client *binance.Client
}

// NewBinanceCandleSource creates a candle source. Keys may be empty since
// klines are public market data.
func NewBinanceCandleSource(apiKey, secretKey string, testnet bool) *BinanceCandleSource {
	if testnet {
		binance.UseTestnet = true
		log.Info().Msg("Using Binance TESTNET for candle history")
	}
	return &BinanceCandleSource{client: binance.NewClient(apiKey, secretKey)}
}

// NewBinanceCandleSourceWithURL points the source at a custom API base URL
func NewBinanceCandleSourceWithURL(baseURL string) *BinanceCandleSource {
	client := binance.NewClient("", "")
	client.BaseURL = baseURL
	return &BinanceCandleSource{client: client}
}

// LoadCloses fetches the most recent limit klines for symbol
func (s *BinanceCandleSource) LoadCloses(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	if limit <= 0 || limit > MaxBinanceKlines {
		limit = MaxBinanceKlines
	}

	start := time.Now()
	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
	}

	closes, err := klinesToCloses(klines)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("candles", len(closes)).
		Dur("duration", time.Since(start)).
		Msg("Fetched candle history from Binance")

	return closes, nil
}

// klinesToCloses parses kline close prices, which the API sends as strings
func klinesToCloses(klines []*binance.Kline) ([]float64, error) {
	closes := make([]float64, 0, len(klines))
	for i, k := range klines {
		if k == nil {
			continue
		}
		c, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid close price %q at kline %d: %w", k.Close, i, err)
		}
		closes = append(closes, c)
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no candles returned")
	}
	return closes, nil
}
