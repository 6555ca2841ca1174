package market

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces per-coin upstream calls. At most one coin is admitted per
// interval; the first is admitted immediately.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer admitting one coin per interval. A non-positive
// interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next coin may be fetched or ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
