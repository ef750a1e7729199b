package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// bestSolutionSlot is the primary key of the only row in best_solution
const bestSolutionSlot = 1

// BestSolutionRepository stores the best solution as a single upserted row
type BestSolutionRepository struct {
	pool PoolInterface
}

// NewBestSolutionRepository creates a repository on pool
func NewBestSolutionRepository(pool PoolInterface) *BestSolutionRepository {
	return &BestSolutionRepository{pool: pool}
}

// Save implements evolution.Store
func (r *BestSolutionRepository) Save(ctx context.Context, record *evolution.BestSolutionRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}

	stats, err := json.Marshal(record.GenerationStats)
	if err != nil {
		return fmt.Errorf("failed to marshal generation stats: %w", err)
	}

	query := `
		INSERT INTO best_solution (
			id, schema_version, run_id,
			rsi_threshold, macd_fast, macd_slow, hold_period,
			genes, fitness, found_generation, generations, pop_size,
			generation_stats, completed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			run_id = EXCLUDED.run_id,
			rsi_threshold = EXCLUDED.rsi_threshold,
			macd_fast = EXCLUDED.macd_fast,
			macd_slow = EXCLUDED.macd_slow,
			hold_period = EXCLUDED.hold_period,
			genes = EXCLUDED.genes,
			fitness = EXCLUDED.fitness,
			found_generation = EXCLUDED.found_generation,
			generations = EXCLUDED.generations,
			pop_size = EXCLUDED.pop_size,
			generation_stats = EXCLUDED.generation_stats,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query,
		bestSolutionSlot,
		record.SchemaVersion,
		record.RunID,
		record.DecodedStrategy.RSIThreshold,
		record.DecodedStrategy.MACDFast,
		record.DecodedStrategy.MACDSlow,
		record.DecodedStrategy.HoldPeriod,
		record.Genes,
		record.Fitness,
		record.FoundGeneration,
		record.Generations,
		record.PopSize,
		stats,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert best solution: %w", err)
	}

	log.Debug().
		Str("run_id", record.RunID).
		Float64("fitness", record.Fitness).
		Msg("Best solution upserted")

	return nil
}

// Load implements evolution.Store
func (r *BestSolutionRepository) Load(ctx context.Context) (*evolution.BestSolutionRecord, error) {
	query := `
		SELECT schema_version, run_id,
			rsi_threshold, macd_fast, macd_slow, hold_period,
			genes, fitness, found_generation, generations, pop_size,
			generation_stats, completed_at
		FROM best_solution
		WHERE id = $1
	`

	var (
		record evolution.BestSolutionRecord
		stats  []byte
	)
	err := r.pool.QueryRow(ctx, query, bestSolutionSlot).Scan(
		&record.SchemaVersion,
		&record.RunID,
		&record.DecodedStrategy.RSIThreshold,
		&record.DecodedStrategy.MACDFast,
		&record.DecodedStrategy.MACDSlow,
		&record.DecodedStrategy.HoldPeriod,
		&record.Genes,
		&record.Fitness,
		&record.FoundGeneration,
		&record.Generations,
		&record.PopSize,
		&stats,
		&record.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, evolution.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load best solution: %w", err)
	}

	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &record.GenerationStats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal generation stats: %w", err)
		}
	}

	return &record, nil
}
