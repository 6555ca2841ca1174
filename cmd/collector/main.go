package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"coinpulse/internal/app"
	"coinpulse/internal/config"
	"coinpulse/internal/job"
	"coinpulse/pkg/tracing"

	"github.com/joho/godotenv"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	initTracerFunc = tracing.InitTracer
	buildAppFunc   = app.Build
	newRunnerFunc  = func(a *app.App) job.Runner { return a.Pipeline }
	exitFunc       = os.Exit
)

// collector performs one collection run and exits. It is meant to be
// invoked hourly by an external scheduler.
func main() {
	exitFunc(run())
}

func run() int {
	if err := loadEnvFunc(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := loadConfigFunc()
	if err != nil {
		log.Printf("load config: %v", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Printf("failed to initialize tracer: %v", err)
		return 2
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	a, err := buildAppFunc(ctx, cfg, tracer)
	if err != nil {
		log.Printf("build collector: %v", err)
		return 2
	}
	defer a.Close()

	result, err := newRunnerFunc(a).Run(ctx)
	if err != nil {
		log.Printf("collection run failed run=%s: %v", result.RunID, err)
		return 1
	}
	log.Printf("collection run complete run=%s rows_added=%d dataset_rows=%d",
		result.RunID, result.RowsAdded, result.DatasetRows)
	return 0
}
