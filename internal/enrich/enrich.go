package enrich

import (
	"context"
	"log"
	"time"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Enricher produces batch-wide signal columns. Enrich never fails: a column
// it cannot fill is returned as missing.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context) domain.Patch
}

// Apply runs enrichers in order and merges each patch into every row. It
// returns the new rows and the fields left missing.
func Apply(ctx context.Context, tracer trace.Tracer, rows []domain.Observation, enrichers ...Enricher) ([]domain.Observation, []domain.Field) {
	var missing []domain.Field
	for _, e := range enrichers {
		ectx, span := tracer.Start(ctx, "enrich."+e.Name())
		patch := e.Enrich(ectx)

		var absent []string
		for _, f := range sortedFields(patch) {
			if patch[f] == nil {
				missing = append(missing, f)
				absent = append(absent, string(f))
			}
		}
		span.SetAttributes(attribute.StringSlice("fields.missing", absent))
		span.End()

		rows = domain.ApplyPatch(rows, patch)
	}
	return rows, missing
}

func sortedFields(p domain.Patch) []domain.Field {
	out := make([]domain.Field, 0, len(p))
	for _, f := range domain.Columns {
		if _, ok := p[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

func degrade(name string, err error, fields ...domain.Field) domain.Patch {
	log.Printf("enrich %s degraded to missing: %v", name, err)
	return domain.Missing(fields...)
}

// cooldown waits d before an upstream call. It reports false if ctx ends first.
func cooldown(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
