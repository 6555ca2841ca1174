package handler

import (
	"context"

	"coinpulse/internal/domain"
	"coinpulse/internal/job"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type LatestReader interface {
	LatestBatch(ctx context.Context) ([]domain.Observation, error)
	Latest(ctx context.Context, coin string) (*domain.Observation, error)
}

type DatasetReader interface {
	Load(ctx context.Context) ([]domain.Observation, error)
}

type HistoryReader interface {
	LatestObservations(ctx context.Context, coin string, limit int) ([]domain.Observation, error)
}

type RunTrigger interface {
	TryRun(ctx context.Context) (domain.RunResult, error)
	Status() job.Status
}

type Handler struct {
	tracer  trace.Tracer
	latest  LatestReader
	dataset DatasetReader
	history HistoryReader
	runs    RunTrigger
}

// New wires the read API. latest and history are optional; reads fall back
// to the dataset file.
func New(tracer trace.Tracer, dataset DatasetReader, latest LatestReader, history HistoryReader, runs RunTrigger) *Handler {
	return &Handler{
		tracer:  tracer,
		latest:  latest,
		dataset: dataset,
		history: history,
		runs:    runs,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)
	r.GET("/api/observations/latest", h.GetLatest)
	r.GET("/api/observations/:coin", h.GetCoinObservations)
	r.GET("/api/runs/last", h.GetLastRun)
	r.POST("/api/runs", APIKeyAuth(apiKey), h.TriggerRun)
}
