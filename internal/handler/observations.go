package handler

import (
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"coinpulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultHistoryLimit = 24
	maxHistoryLimit     = 500
)

// GetLatest godoc
// @Summary      Latest observation per coin
// @Description  Returns the most recent batch from the cache, or the newest dataset row per coin
// @Tags         observations
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/observations/latest [get]
func (h *Handler) GetLatest(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest")
	defer span.End()

	if h.latest != nil {
		rows, err := h.latest.LatestBatch(ctx)
		if err != nil {
			log.Printf("latest cache read error: %v", err)
		}
		if len(rows) > 0 {
			c.JSON(http.StatusOK, gin.H{"source": "cache", "observations": rows})
			return
		}
	}

	rows, err := h.dataset.Load(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": "dataset", "observations": latestPerCoin(rows)})
}

// GetCoinObservations godoc
// @Summary      Observation history for a coin
// @Description  Returns up to limit observations for one coin, newest first. limit=1 is served from the cache when available.
// @Tags         observations
// @Produce      json
// @Param        coin   path   string  true   "Coin identifier (e.g., bitcoin)"
// @Param        limit  query  int     false  "Number of rows (default 24, max 500)"  default(24)
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/observations/{coin} [get]
func (h *Handler) GetCoinObservations(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-coin-observations")
	defer span.End()

	coin := strings.ToLower(strings.TrimSpace(c.Param("coin")))
	span.SetAttributes(attribute.String("coin", coin))

	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxHistoryLimit {
			limit = n
		}
	}

	if limit == 1 && h.latest != nil {
		row, err := h.latest.Latest(ctx, coin)
		if err != nil {
			log.Printf("latest cache read error coin=%s: %v", coin, err)
		}
		if row != nil {
			c.JSON(http.StatusOK, gin.H{"coin": coin, "source": "cache", "observations": []domain.Observation{*row}})
			return
		}
	}

	var (
		rows []domain.Observation
		err  error
	)
	if h.history != nil {
		rows, err = h.history.LatestObservations(ctx, coin, limit)
	} else {
		var all []domain.Observation
		all, err = h.dataset.Load(ctx)
		rows = coinHistory(all, coin, limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no observations for coin: " + coin})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coin": coin, "observations": rows})
}

// latestPerCoin keeps the newest valid row of each coin, in order of first
// appearance.
func latestPerCoin(rows []domain.Observation) []domain.Observation {
	index := make(map[string]int)
	var out []domain.Observation
	for _, row := range rows {
		if !row.Timestamp.Valid {
			continue
		}
		i, ok := index[row.Coin]
		if !ok {
			index[row.Coin] = len(out)
			out = append(out, row)
			continue
		}
		if row.Timestamp.Time.After(out[i].Timestamp.Time) {
			out[i] = row
		}
	}
	return out
}

func coinHistory(rows []domain.Observation, coin string, limit int) []domain.Observation {
	var out []domain.Observation
	for _, row := range rows {
		if row.Coin == coin && row.Timestamp.Valid {
			out = append(out, row)
		}
	}
	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortNewestFirst(rows []domain.Observation) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Time.After(rows[j].Timestamp.Time)
	})
}
