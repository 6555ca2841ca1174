package enrich

import (
	"context"
	"fmt"
	"time"

	"coinpulse/internal/domain"
)

type TrendSource interface {
	LatestInterest(ctx context.Context, terms []string, timeframe string) (map[string]float64, error)
}

// TrackedTerm binds a search term to the column it fills.
type TrackedTerm struct {
	Term  string
	Field domain.Field
}

var DefaultTrackedTerms = []TrackedTerm{
	{Term: "Bitcoin", Field: domain.FieldGoogleTrendBTC},
	{Term: "Ethereum", Field: domain.FieldGoogleTrendETH},
}

const DefaultTrendTimeframe = "now 4-H"

// TrendEnricher fills search-interest columns from the latest sample.
type TrendEnricher struct {
	source    TrendSource
	terms     []TrackedTerm
	timeframe string
	cooldown  time.Duration
}

func NewTrendEnricher(source TrendSource, timeframe string, cooldown time.Duration) *TrendEnricher {
	if timeframe == "" {
		timeframe = DefaultTrendTimeframe
	}
	return &TrendEnricher{
		source:    source,
		terms:     DefaultTrackedTerms,
		timeframe: timeframe,
		cooldown:  cooldown,
	}
}

func (e *TrendEnricher) Name() string { return "trend" }

func (e *TrendEnricher) Enrich(ctx context.Context) domain.Patch {
	fields := make([]domain.Field, len(e.terms))
	terms := make([]string, len(e.terms))
	for i, t := range e.terms {
		fields[i] = t.Field
		terms[i] = t.Term
	}

	if !cooldown(ctx, e.cooldown) {
		return degrade(e.Name(), ctx.Err(), fields...)
	}

	interest, err := e.source.LatestInterest(ctx, terms, e.timeframe)
	if err != nil {
		return degrade(e.Name(), err, fields...)
	}
	if len(interest) == 0 {
		return degrade(e.Name(), fmt.Errorf("empty interest timeline"), fields...)
	}

	patch := domain.Missing(fields...)
	for _, t := range e.terms {
		if v, ok := interest[t.Term]; ok {
			patch[t.Field] = domain.Float(v)
		}
	}
	return patch
}
