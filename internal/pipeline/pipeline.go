package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"coinpulse/internal/dataset"
	"coinpulse/internal/domain"
	"coinpulse/internal/enrich"
	"coinpulse/internal/market"
	"coinpulse/internal/runlog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Fetcher interface {
	Fetch(ctx context.Context) market.Result
}

type Store interface {
	Persist(ctx context.Context, batch []domain.Observation) (dataset.MergeStats, error)
}

// Sink receives every persisted batch. Sink failures are logged and never
// fail the run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rows []domain.Observation) error
}

type Observer interface {
	Observe(result domain.RunResult)
	ObserveFailure()
}

// Pipeline runs one collection cycle: fetch, enrich, merge-persist, then the
// optional sinks and the run record.
type Pipeline struct {
	tracer    trace.Tracer
	fetcher   Fetcher
	enrichers []enrich.Enricher
	store     Store
	recorder  runlog.Recorder
	observer  Observer
	sinks     []Sink
	now       func() time.Time
	newID     func() string
}

// New builds a pipeline. Enrichers run in the given order. recorder and
// observer may be nil.
func New(
	tracer trace.Tracer,
	fetcher Fetcher,
	enrichers []enrich.Enricher,
	store Store,
	recorder runlog.Recorder,
	observer Observer,
	sinks ...Sink,
) *Pipeline {
	if recorder == nil {
		recorder = runlog.NewNoopRecorder()
	}
	return &Pipeline{
		tracer:    tracer,
		fetcher:   fetcher,
		enrichers: enrichers,
		store:     store,
		recorder:  recorder,
		observer:  observer,
		sinks:     sinks,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Run executes one cycle. It fails only when the dataset cannot be written;
// every other degradation is logged and reflected in the result.
func (p *Pipeline) Run(ctx context.Context) (domain.RunResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	result := domain.RunResult{RunID: p.newID(), StartedAt: p.now().UTC()}
	span.SetAttributes(attribute.String("run.id", result.RunID))

	fetched := p.fetcher.Fetch(ctx)
	result.CoinsSkipped = fetched.Skipped

	rows := fetched.Observations
	if len(rows) > 0 {
		rows, result.MissingFields = enrich.Apply(ctx, p.tracer, rows, p.enrichers...)
	} else {
		log.Printf("pipeline: run=%s empty batch, skipping enrichment", result.RunID)
	}

	stats, err := p.store.Persist(ctx, rows)
	if err != nil {
		span.RecordError(err)
		if p.observer != nil {
			p.observer.ObserveFailure()
		}
		return result, fmt.Errorf("persist dataset: %w", err)
	}
	result.RowsAdded = len(rows)
	result.Replaced = stats.Replaced
	result.DatasetRows = stats.Total

	if len(rows) > 0 {
		for _, s := range p.sinks {
			if err := s.Publish(ctx, rows); err != nil {
				log.Printf("pipeline: run=%s sink=%s err=%v", result.RunID, s.Name(), err)
			}
		}
	}

	result.CompletedAt = p.now().UTC()
	if err := p.recorder.Record(ctx, result); err != nil {
		log.Printf("pipeline: run=%s run record err=%v", result.RunID, err)
	}
	if p.observer != nil {
		p.observer.Observe(result)
	}

	span.SetAttributes(
		attribute.Int("rows.added", result.RowsAdded),
		attribute.Int("rows.dataset", result.DatasetRows),
	)
	log.Printf("pipeline: run=%s rows_added=%d replaced=%d dataset_rows=%d skipped=%v missing=%v",
		result.RunID, result.RowsAdded, result.Replaced, result.DatasetRows, result.CoinsSkipped, result.MissingFields)
	return result, nil
}
