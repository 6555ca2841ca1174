package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinpulse/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

type memoryRedis struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func newLatestStore(client RedisClient) *LatestStore {
	return NewLatestStore(client, trace.NewNoopTracerProvider().Tracer("test"), 0)
}

func TestLatestStoreRoundTrip(t *testing.T) {
	mem := newMemoryRedis()
	store := newLatestStore(mem)
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	rows := []domain.Observation{
		{Timestamp: domain.At(at), Coin: "bitcoin", Price: domain.Float(50000), RedditSentiment: domain.Float(0.2)},
		{Timestamp: domain.InvalidTimestamp, Coin: "ethereum", Price: domain.Float(3000)},
	}
	if err := store.StoreBatch(ctx, rows); err != nil {
		t.Fatalf("store: %v", err)
	}
	if mem.ttls[latestBatchKey] != DefaultLatestTTL {
		t.Fatalf("expected default ttl, got %v", mem.ttls[latestBatchKey])
	}

	batch, err := store.LatestBatch(ctx)
	if err != nil {
		t.Fatalf("latest batch: %v", err)
	}
	if len(batch) != 2 || batch[0].Key() != rows[0].Key() || batch[1].Timestamp.Valid {
		t.Fatalf("unexpected batch: %+v", batch)
	}

	btc, err := store.Latest(ctx, "bitcoin")
	if err != nil || btc == nil {
		t.Fatalf("expected bitcoin row, got %v err=%v", btc, err)
	}
	if *btc.Price != 50000 || *btc.RedditSentiment != 0.2 || btc.SP500 != nil {
		t.Fatalf("unexpected bitcoin row: %+v", btc)
	}

	eth, err := store.Latest(ctx, "ethereum")
	if err != nil || eth != nil {
		t.Fatalf("invalid-timestamp rows are not cached per coin, got %+v err=%v", eth, err)
	}
}

func TestLatestStoreMiss(t *testing.T) {
	store := newLatestStore(newMemoryRedis())
	batch, err := store.LatestBatch(context.Background())
	if err != nil || batch != nil {
		t.Fatalf("expected empty miss, got %v err=%v", batch, err)
	}
}

func TestLatestStoreWriteError(t *testing.T) {
	mem := newMemoryRedis()
	mem.err = errors.New("READONLY")
	if err := newLatestStore(mem).StoreBatch(context.Background(), nil); err == nil {
		t.Fatal("expected write error")
	}
}
