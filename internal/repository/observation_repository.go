package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coinpulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	MigrationDB
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ObservationRepository mirrors the dataset into Postgres.
type ObservationRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewObservationRepository(pool PgxPool, tracer trace.Tracer) *ObservationRepository {
	return &ObservationRepository{pool: pool, tracer: tracer}
}

// RunMigrations brings the mirror schema up to date with the embedded
// migrations, the same ones cmd/migrate applies.
func (r *ObservationRepository) RunMigrations(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "observation-repo.run-migrations")
	defer span.End()

	migrator, err := NewMigrator(r.pool, r.tracer)
	if err != nil {
		return err
	}
	if _, err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("migrate observations schema: %w", err)
	}
	return nil
}

// UpsertObservations writes rows with the same last-wins policy as the file
// dataset. Rows with invalid timestamps have no usable key and are skipped.
// It returns the number of rows sent.
func (r *ObservationRepository) UpsertObservations(ctx context.Context, rows []domain.Observation) (int, error) {
	ctx, span := r.tracer.Start(ctx, "observation-repo.upsert-observations")
	defer span.End()

	batch := &pgx.Batch{}
	for _, row := range rows {
		if !row.Timestamp.Valid || row.Coin == "" {
			continue
		}
		args := make([]any, 0, len(domain.Columns)+2)
		args = append(args, row.Coin, row.Timestamp.Time)
		for _, f := range domain.Columns {
			args = append(args, row.Get(f))
		}
		batch.Queue(upsertSQL, args...)
	}
	queued := batch.Len()
	span.SetAttributes(attribute.Int("rows", queued))
	if queued == 0 {
		return 0, nil
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("upsert observation %d: %w", i, err)
		}
	}
	return queued, nil
}

// LatestObservations returns up to limit rows for coin, newest first.
func (r *ObservationRepository) LatestObservations(ctx context.Context, coin string, limit int) ([]domain.Observation, error) {
	_, span := r.tracer.Start(ctx, "observation-repo.latest-observations")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT coin, observed_at, `+strings.Join(sqlColumns(), ", ")+`
		 FROM observations
		 WHERE coin = $1
		 ORDER BY observed_at DESC
		 LIMIT $2`,
		coin, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Observation
	for rows.Next() {
		var (
			o    domain.Observation
			at   time.Time
			vals = make([]*float64, len(domain.Columns))
		)
		dest := make([]any, 0, len(vals)+2)
		dest = append(dest, &o.Coin, &at)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		o.Timestamp = domain.At(at)
		for i, f := range domain.Columns {
			o.Set(f, vals[i])
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

var upsertSQL = buildUpsertSQL()

func sqlColumns() []string {
	cols := make([]string, len(domain.Columns))
	for i, f := range domain.Columns {
		cols[i] = strings.ToLower(string(f))
	}
	return cols
}

func buildUpsertSQL() string {
	cols := sqlColumns()
	placeholders := make([]string, len(cols)+2)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := make([]string, len(cols))
	for i, c := range cols {
		updates[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}
	return fmt.Sprintf(
		`INSERT INTO observations (coin, observed_at, %s)
		 VALUES (%s)
		 ON CONFLICT (coin, observed_at) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}
