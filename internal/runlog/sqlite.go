package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"coinpulse/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder mirrors run records into a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and its schema.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("sqlite run record opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_records (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL UNIQUE,
			started_at     INTEGER NOT NULL,
			completed_at   INTEGER NOT NULL,
			rows_added     INTEGER NOT NULL,
			replaced       INTEGER NOT NULL,
			dataset_rows   INTEGER NOT NULL,
			coins_skipped  TEXT,
			missing_fields TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_records_completed ON run_records(completed_at)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, result domain.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	missing := make([]string, len(result.MissingFields))
	for i, f := range result.MissingFields {
		missing[i] = string(f)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_records
			(run_id, started_at, completed_at, rows_added, replaced, dataset_rows, coins_skipped, missing_fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.StartedAt.Unix(),
		result.CompletedAt.Unix(),
		result.RowsAdded,
		result.Replaced,
		result.DatasetRows,
		strings.Join(result.CoinsSkipped, ","),
		strings.Join(missing, ","),
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
