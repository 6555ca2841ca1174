package handler

import (
	"context"
	"errors"
	"net/http"

	"coinpulse/internal/job"

	"github.com/gin-gonic/gin"
)

// TriggerRun godoc
// @Summary      Run a collection now
// @Description  Runs one collection cycle synchronously. Fails with 409 while another run is in progress.
// @Tags         runs
// @Produce      json
// @Success      200  {object}  domain.RunResult
// @Failure      409  {object}  map[string]string
// @Router       /api/runs [post]
func (h *Handler) TriggerRun(c *gin.Context) {
	// A started run completes even if the caller goes away.
	ctx, span := h.tracer.Start(context.WithoutCancel(c.Request.Context()), "handler.trigger-run")
	defer span.End()

	result, err := h.runs.TryRun(ctx)
	switch {
	case errors.Is(err, job.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": result})
	default:
		c.JSON(http.StatusOK, result)
	}
}

// GetLastRun godoc
// @Summary      Last collection run
// @Tags         runs
// @Produce      json
// @Success      200  {object}  job.Status
// @Router       /api/runs/last [get]
func (h *Handler) GetLastRun(c *gin.Context) {
	c.JSON(http.StatusOK, h.runs.Status())
}
