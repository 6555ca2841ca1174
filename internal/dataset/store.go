package dataset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FileStore owns the persisted CSV dataset. It assumes a single writer.
type FileStore struct {
	path   string
	tracer trace.Tracer
	now    func() time.Time
}

func NewFileStore(tracer trace.Tracer, path string) *FileStore {
	return &FileStore{path: path, tracer: tracer, now: time.Now}
}

func (s *FileStore) Path() string { return s.path }

// Load returns the persisted rows. A missing file is an empty dataset.
func (s *FileStore) Load(ctx context.Context) ([]domain.Observation, error) {
	_, span := s.tracer.Start(ctx, "dataset.load")
	defer span.End()

	rows, _, err := s.read()
	return rows, err
}

func (s *FileStore) read() ([]domain.Observation, DecodeStats, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, DecodeStats{}, nil
	}
	if err != nil {
		return nil, DecodeStats{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	rows, stats, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, stats, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return rows, stats, nil
}

// Persist merges batch into the dataset and rewrites the file atomically.
// A file that cannot be decoded at all is moved aside and the merge starts
// from an empty dataset.
func (s *FileStore) Persist(ctx context.Context, batch []domain.Observation) (MergeStats, error) {
	_, span := s.tracer.Start(ctx, "dataset.persist")
	defer span.End()

	old, decoded, err := s.read()
	switch {
	case errors.Is(err, ErrCorruptDataset):
		moved, qerr := s.quarantine()
		if qerr != nil {
			return MergeStats{}, fmt.Errorf("quarantine corrupt dataset: %w", qerr)
		}
		log.Printf("dataset: %v; moved to %s, starting from empty", err, moved)
		old = nil
	case err != nil:
		return MergeStats{}, err
	}
	if decoded.InvalidTimestamps > 0 || decoded.BadValues > 0 {
		log.Printf("dataset: recovered rows=%d invalid_timestamps=%d bad_values=%d",
			decoded.Rows, decoded.InvalidTimestamps, decoded.BadValues)
	}

	merged, stats := Merge(old, batch)
	if err := s.write(merged); err != nil {
		span.RecordError(err)
		return stats, err
	}

	span.SetAttributes(
		attribute.Int("rows.incoming", stats.Incoming),
		attribute.Int("rows.replaced", stats.Replaced),
		attribute.Int("rows.total", stats.Total),
	)
	return stats, nil
}

// The dataset is meant to be read by other tools and users.
const datasetMode os.FileMode = 0o644

func (s *FileStore) write(rows []domain.Observation) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(datasetMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp dataset: %w", err)
	}

	w := bufio.NewWriter(tmp)
	if err := Encode(w, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush dataset: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace dataset: %w", err)
	}
	return nil
}

func (s *FileStore) quarantine() (string, error) {
	dest := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, dest); err != nil {
		return "", err
	}
	return dest, nil
}
