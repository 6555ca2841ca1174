package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"coinpulse/internal/domain"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCollectSpec fires at the top of every hour (seconds field first).
const DefaultCollectSpec = "0 0 * * * *"

// ErrRunInProgress is returned when a collection is already running.
var ErrRunInProgress = errors.New("collector run already in progress")

type Runner interface {
	Run(ctx context.Context) (domain.RunResult, error)
}

var specParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CollectorJob schedules pipeline runs and guarantees at most one runs at a
// time, whether triggered by the schedule or on demand.
type CollectorJob struct {
	tracer trace.Tracer
	runner Runner
	spec   string

	running sync.Mutex

	mu     sync.RWMutex
	status Status
}

// Status describes the most recent run.
type Status struct {
	Ran    bool             `json:"ran"`
	Result domain.RunResult `json:"result"`
	Error  string           `json:"error,omitempty"`
}

func NewCollectorJob(tracer trace.Tracer, runner Runner, spec string) (*CollectorJob, error) {
	if spec == "" {
		spec = DefaultCollectSpec
	}
	if _, err := specParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse collect schedule %q: %w", spec, err)
	}
	return &CollectorJob{tracer: tracer, runner: runner, spec: spec}, nil
}

// Start runs the schedule until ctx is cancelled, then waits for an
// in-flight run to finish.
func (j *CollectorJob) Start(ctx context.Context) {
	c := cron.New(
		cron.WithParser(specParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.Default()))),
	)
	if _, err := c.AddFunc(j.spec, func() { j.runOnce(ctx) }); err != nil {
		log.Printf("collector job disabled: %v", err)
		<-ctx.Done()
		return
	}

	c.Start()
	log.Printf("collector job started schedule=%q", j.spec)
	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("collector job stopped")
}

// TryRun runs one collection now. It returns ErrRunInProgress instead of
// waiting when another run holds the dataset.
func (j *CollectorJob) TryRun(ctx context.Context) (domain.RunResult, error) {
	if !j.running.TryLock() {
		return domain.RunResult{}, ErrRunInProgress
	}
	defer j.running.Unlock()

	ctx, span := j.tracer.Start(ctx, "collector-job.run")
	defer span.End()

	result, err := j.runner.Run(ctx)

	status := Status{Ran: true, Result: result}
	if err != nil {
		status.Error = err.Error()
	}
	j.mu.Lock()
	j.status = status
	j.mu.Unlock()
	return result, err
}

// Status reports the most recent run.
func (j *CollectorJob) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func (j *CollectorJob) runOnce(ctx context.Context) {
	result, err := j.TryRun(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		log.Println("collector cycle skipped: previous run still in progress")
	case err != nil:
		log.Printf("collector cycle error: %v", err)
	default:
		log.Printf("collector cycle complete run=%s rows_added=%d dataset_rows=%d",
			result.RunID, result.RowsAdded, result.DatasetRows)
	}
}
