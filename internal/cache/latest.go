package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coinpulse/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const (
	latestBatchKey   = "observation:latest"
	latestCoinKey    = "observation:latest:"
	DefaultLatestTTL = 2 * time.Hour
)

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// LatestStore caches the most recent batch and each coin's latest row.
type LatestStore struct {
	client RedisClient
	tracer trace.Tracer
	ttl    time.Duration
}

func NewLatestStore(client RedisClient, tracer trace.Tracer, ttl time.Duration) *LatestStore {
	if ttl <= 0 {
		ttl = DefaultLatestTTL
	}
	return &LatestStore{client: client, tracer: tracer, ttl: ttl}
}

// StoreBatch replaces the cached batch. Rows with invalid timestamps are not
// cached per coin.
func (s *LatestStore) StoreBatch(ctx context.Context, rows []domain.Observation) error {
	ctx, span := s.tracer.Start(ctx, "latest-store.store-batch")
	defer span.End()

	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, latestBatchKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache latest batch: %w", err)
	}

	for _, row := range rows {
		if !row.Timestamp.Valid {
			continue
		}
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := s.client.Set(ctx, latestCoinKey+row.Coin, data, s.ttl).Err(); err != nil {
			return fmt.Errorf("cache latest %s: %w", row.Coin, err)
		}
	}
	return nil
}

// LatestBatch returns the cached batch, or nil when nothing is cached.
func (s *LatestStore) LatestBatch(ctx context.Context) ([]domain.Observation, error) {
	ctx, span := s.tracer.Start(ctx, "latest-store.latest-batch")
	defer span.End()

	var rows []domain.Observation
	ok, err := s.get(ctx, latestBatchKey, &rows)
	if err != nil || !ok {
		return nil, err
	}
	return rows, nil
}

// Latest returns coin's cached row, or nil when nothing is cached.
func (s *LatestStore) Latest(ctx context.Context, coin string) (*domain.Observation, error) {
	ctx, span := s.tracer.Start(ctx, "latest-store.latest")
	defer span.End()

	var row domain.Observation
	ok, err := s.get(ctx, latestCoinKey+coin, &row)
	if err != nil || !ok {
		return nil, err
	}
	return &row, nil
}

func (s *LatestStore) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
