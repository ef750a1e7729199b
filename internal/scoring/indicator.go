package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// Indicator backtest defaults
const (
	DefaultRSIPeriod  = 14
	DefaultMACDSignal = 9
	DefaultFeeRate    = 0.002
	DefaultLimit      = 1000

	// DefaultLoadRetryInterval is how long a failed candle load is reported
	// without asking the source again
	DefaultLoadRetryInterval = 30 * time.Second
)

var (
	// ErrInvalidStrategy is returned for parameters the backtest cannot run
	ErrInvalidStrategy = errors.New("strategy parameters cannot be backtested")

	// ErrInsufficientData is returned when the candle history is shorter than
	// the indicator warm-up
	ErrInsufficientData = errors.New("insufficient candle history")
)

// IndicatorScorerOptions configures the local backtest
type IndicatorScorerOptions struct {
	Symbol     string
	Interval   string
	Limit      int
	RSIPeriod  int
	MACDSignal int
	FeeRate    float64 // charged on entry and on exit
}

// BacktestResult summarizes one replay of a strategy over the candle history
type BacktestResult struct {
	Equity float64 `json:"equity"` // starting from 1.0
	Trades int     `json:"trades"`
	Bars   int     `json:"bars"`
}

// Return is the compounded net return of the replay
func (r BacktestResult) Return() float64 {
	return r.Equity - 1
}

// IndicatorScorer scores strategies by replaying them over historical
// closes: enter long when RSI is at or below the threshold while MACD is
// above its signal line, exit after the hold period. The score is the net
// compounded return; the evaluator floors losses to zero.
type IndicatorScorer struct {
	source CandleSource
	opts   IndicatorScorerOptions

	mu     sync.Mutex
	closes []float64
	rsi    []float64
	macd   map[macdKey]macdSeries

	loadErr       error
	loadErrAt     time.Time
	retryInterval time.Duration
	now           func() time.Time
}

type macdKey struct {
	fast, slow int
}

type macdSeries struct {
	macd, signal []float64
}

// NewIndicatorScorer creates a scorer over source. Candles are loaded lazily
// on the first Score call and cached for the scorer's lifetime. A failed load
// is returned to every caller for DefaultLoadRetryInterval before the source
// is tried again.
func NewIndicatorScorer(source CandleSource, opts IndicatorScorerOptions) (*IndicatorScorer, error) {
	if source == nil {
		return nil, fmt.Errorf("candle source is required")
	}
	if opts.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if opts.Interval == "" {
		opts.Interval = "1h"
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.RSIPeriod <= 0 {
		opts.RSIPeriod = DefaultRSIPeriod
	}
	if opts.MACDSignal <= 0 {
		opts.MACDSignal = DefaultMACDSignal
	}
	if opts.FeeRate < 0 || opts.FeeRate >= 1 {
		return nil, fmt.Errorf("fee rate must be in [0, 1), got %v", opts.FeeRate)
	}
	return &IndicatorScorer{
		source:        source,
		opts:          opts,
		macd:          make(map[macdKey]macdSeries),
		retryInterval: DefaultLoadRetryInterval,
		now:           time.Now,
	}, nil
}

// NewIndicatorScorerFromCloses creates a scorer over a fixed price series
func NewIndicatorScorerFromCloses(closes []float64, opts IndicatorScorerOptions) (*IndicatorScorer, error) {
	if opts.Symbol == "" {
		opts.Symbol = "STATIC"
	}
	return NewIndicatorScorer(staticSource(closes), opts)
}

type staticSource []float64

func (s staticSource) LoadCloses(_ context.Context, _, _ string, _ int) ([]float64, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("no candles found")
	}
	return s, nil
}

// Score runs the backtest and returns its net return
func (s *IndicatorScorer) Score(ctx context.Context, strategy evolution.DecodedStrategy) (float64, error) {
	result, err := s.Backtest(ctx, strategy)
	if err != nil {
		return 0, err
	}
	return result.Return(), nil
}

// Backtest replays strategy over the cached candle history
func (s *IndicatorScorer) Backtest(ctx context.Context, strategy evolution.DecodedStrategy) (*BacktestResult, error) {
	if strategy.MACDFast < 1 || strategy.MACDSlow <= strategy.MACDFast {
		return nil, fmt.Errorf("%w: macd fast=%d slow=%d", ErrInvalidStrategy, strategy.MACDFast, strategy.MACDSlow)
	}

	closes, rsi, err := s.history(ctx)
	if err != nil {
		return nil, err
	}

	warmup := strategy.MACDSlow + s.opts.MACDSignal
	if len(closes) <= warmup {
		return nil, fmt.Errorf("%w: need more than %d candles, have %d", ErrInsufficientData, warmup, len(closes))
	}

	macd, signal := s.macdSeries(closes, strategy.MACDFast, strategy.MACDSlow)

	// Indicator outputs are shorter than the input by their warm-up; align
	// them on the most recent bar.
	bars := min(len(rsi), len(macd), len(signal))
	if bars == 0 {
		return nil, fmt.Errorf("%w: no indicator values", ErrInsufficientData)
	}
	rsi = rsi[len(rsi)-bars:]
	macd = macd[len(macd)-bars:]
	signal = signal[len(signal)-bars:]
	prices := closes[len(closes)-bars:]

	return simulate(prices, rsi, macd, signal, strategy, s.opts.FeeRate), nil
}

// history returns the cached closes and RSI series, loading them on first use
func (s *IndicatorScorer) history(ctx context.Context) ([]float64, []float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closes != nil {
		return s.closes, s.rsi, nil
	}
	if s.loadErr != nil && s.now().Sub(s.loadErrAt) < s.retryInterval {
		return nil, nil, s.loadErr
	}

	closes, err := s.loadHistory(ctx)
	if err != nil {
		s.loadErr = err
		s.loadErrAt = s.now()
		log.Warn().
			Err(err).
			Str("symbol", s.opts.Symbol).
			Dur("retry_in", s.retryInterval).
			Msg("Candle history unavailable")
		return nil, nil, err
	}

	s.loadErr = nil
	s.closes = closes
	s.rsi = computeRSI(closes, s.opts.RSIPeriod)

	log.Info().
		Str("symbol", s.opts.Symbol).
		Str("interval", s.opts.Interval).
		Int("candles", len(closes)).
		Msg("Loaded candle history for indicator scorer")

	return s.closes, s.rsi, nil
}

func (s *IndicatorScorer) loadHistory(ctx context.Context) ([]float64, error) {
	closes, err := s.source.LoadCloses(ctx, s.opts.Symbol, s.opts.Interval, s.opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load candles: %w", err)
	}
	if len(closes) <= s.opts.RSIPeriod {
		return nil, fmt.Errorf("%w: need more than %d candles for RSI, have %d", ErrInsufficientData, s.opts.RSIPeriod, len(closes))
	}
	return closes, nil
}

// macdSeries returns the MACD and signal lines for one period pair. The
// decoded period space is small, so every pair is computed at most once per
// history.
func (s *IndicatorScorer) macdSeries(closes []float64, fast, slow int) ([]float64, []float64) {
	key := macdKey{fast: fast, slow: slow}

	s.mu.Lock()
	cached, ok := s.macd[key]
	s.mu.Unlock()
	if ok {
		return cached.macd, cached.signal
	}

	macd, signal := computeMACD(closes, fast, slow, s.opts.MACDSignal)

	s.mu.Lock()
	s.macd[key] = macdSeries{macd: macd, signal: signal}
	s.mu.Unlock()

	return macd, signal
}

// simulate walks the aligned series. At most one position is open at a time;
// a position still open on the last bar is closed at that bar's price.
func simulate(prices, rsi, macd, signal []float64, strategy evolution.DecodedStrategy, fee float64) *BacktestResult {
	hold := max(strategy.HoldPeriod, 1)
	threshold := float64(strategy.RSIThreshold)

	result := &BacktestResult{Equity: 1.0, Bars: len(prices)}
	inPosition := false
	entry := 0.0
	held := 0

	for i, price := range prices {
		if inPosition {
			held++
			if held >= hold {
				result.Equity *= (price / entry) * (1 - fee)
				inPosition = false
			}
			continue
		}

		if rsi[i] <= threshold && macd[i] > signal[i] && price > 0 {
			inPosition = true
			entry = price
			held = 0
			result.Equity *= 1 - fee
			result.Trades++
		}
	}

	if inPosition {
		result.Equity *= (prices[len(prices)-1] / entry) * (1 - fee)
	}

	return result
}

func priceChannel(prices []float64) chan float64 {
	ch := make(chan float64, len(prices))
	for _, p := range prices {
		ch <- p
	}
	close(ch)
	return ch
}

func computeRSI(prices []float64, period int) []float64 {
	rsiIndicator := momentum.NewRsiWithPeriod[float64](period)

	values := make([]float64, 0, len(prices))
	for v := range rsiIndicator.Compute(priceChannel(prices)) {
		values = append(values, v)
	}
	return values
}

func computeMACD(prices []float64, fast, slow, signal int) ([]float64, []float64) {
	macdIndicator := trend.NewMacdWithPeriod[float64](fast, slow, signal)
	macdChan, signalChan := macdIndicator.Compute(priceChannel(prices))

	var macdValues, signalValues []float64
	for {
		m, mok := <-macdChan
		s, sok := <-signalChan
		if !mok || !sok {
			break
		}
		macdValues = append(macdValues, m)
		signalValues = append(signalValues, s)
	}
	return macdValues, signalValues
}
