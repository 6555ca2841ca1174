package enrich

import (
	"context"

	"coinpulse/internal/domain"
	"coinpulse/internal/provider"
)

type FearGreedSource interface {
	FetchLatest(ctx context.Context) (*provider.FearGreedPoint, error)
}

// FearGreedEnricher fills fear_greed_index from the published composite index.
type FearGreedEnricher struct {
	source FearGreedSource
}

func NewFearGreedEnricher(source FearGreedSource) *FearGreedEnricher {
	return &FearGreedEnricher{source: source}
}

func (e *FearGreedEnricher) Name() string { return "fear-greed" }

func (e *FearGreedEnricher) Enrich(ctx context.Context) domain.Patch {
	point, err := e.source.FetchLatest(ctx)
	if err != nil {
		return degrade(e.Name(), err, domain.FieldFearGreedIndex)
	}
	return domain.Patch{domain.FieldFearGreedIndex: domain.Float(point.Value)}
}
