package runlog

import (
	"context"
	"errors"

	"coinpulse/internal/domain"
)

// Recorder stores one completion record per pipeline run. Records are never
// read back by the pipeline.
type Recorder interface {
	Record(ctx context.Context, result domain.RunResult) error
	Close() error
}

// Multi fans a record out to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, result domain.RunResult) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopRecorder is used when no run record is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Record(_ context.Context, _ domain.RunResult) error { return nil }
func (n *NoopRecorder) Close() error                                      { return nil }
