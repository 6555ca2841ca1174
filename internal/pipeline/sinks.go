package pipeline

import (
	"context"

	"coinpulse/internal/domain"
)

type ObservationUpserter interface {
	UpsertObservations(ctx context.Context, rows []domain.Observation) (int, error)
}

type BatchCache interface {
	StoreBatch(ctx context.Context, rows []domain.Observation) error
}

// MirrorSink copies each batch into the Postgres observation mirror.
type MirrorSink struct {
	Repo ObservationUpserter
}

func (s MirrorSink) Name() string { return "postgres" }

func (s MirrorSink) Publish(ctx context.Context, rows []domain.Observation) error {
	_, err := s.Repo.UpsertObservations(ctx, rows)
	return err
}

// CacheSink refreshes the latest-snapshot cache.
type CacheSink struct {
	Cache BatchCache
}

func (s CacheSink) Name() string { return "redis" }

func (s CacheSink) Publish(ctx context.Context, rows []domain.Observation) error {
	return s.Cache.StoreBatch(ctx, rows)
}
