package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// DefaultRedisKey holds the best solution when no key is configured
const DefaultRedisKey = "evolver:best_solution"

// redisOpTimeout bounds every Redis call so a slow server cannot stall a run
const redisOpTimeout = 500 * time.Millisecond

// RedisStore keeps the best solution as a JSON value under a single key
// without expiry
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client, key string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}, nil
}

// Save implements evolution.Store
func (s *RedisStore) Save(ctx context.Context, record *evolution.BestSolutionRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := s.client.Set(opCtx, s.key, data, 0).Err(); err != nil {
		log.Warn().
			Err(err).
			Str("key", s.key).
			Msg("Failed to store best solution in Redis")
		return fmt.Errorf("failed to set %s: %w", s.key, err)
	}

	log.Debug().
		Str("key", s.key).
		Str("run_id", record.RunID).
		Float64("fitness", record.Fitness).
		Msg("Best solution stored in Redis")

	return nil
}

// Load implements evolution.Store
func (s *RedisStore) Load(ctx context.Context) (*evolution.BestSolutionRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	cached, err := s.client.Get(opCtx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, evolution.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", s.key, err)
	}

	var record evolution.BestSolutionRecord
	if err := json.Unmarshal(cached, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", s.key, err)
	}
	return &record, nil
}
