package db

import (
	"context"
	"fmt"
)

// CandleRepository reads close prices from the candlesticks hypertable
type CandleRepository struct {
	pool PoolInterface
}

// NewCandleRepository creates a repository on pool
func NewCandleRepository(pool PoolInterface) *CandleRepository {
	return &CandleRepository{pool: pool}
}

// LoadCloses returns the most recent limit close prices for symbol and
// interval, oldest first
func (r *CandleRepository) LoadCloses(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("no database pool available")
	}

	query := `
		SELECT close FROM (
			SELECT close, open_time
			FROM candlesticks
			WHERE symbol = $1 AND interval = $2
			ORDER BY open_time DESC
			LIMIT $3
		) recent
		ORDER BY open_time ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	closes := make([]float64, 0, limit)
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan candle row: %w", err)
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candle rows: %w", err)
	}

	if len(closes) == 0 {
		return nil, fmt.Errorf("no candles found for %s %s", symbol, interval)
	}
	return closes, nil
}
