package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"coinpulse/internal/domain"
	"coinpulse/internal/ta"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MarketProvider is the market-data source the fetcher reads from.
type MarketProvider interface {
	FetchTopCoins(ctx context.Context, n int) ([]domain.CoinMarket, error)
	FetchCoinMarket(ctx context.Context, id string) (*domain.CoinMarket, error)
	FetchPriceHistory(ctx context.Context, id string, days int) (domain.PriceSeries, error)
}

type Options struct {
	TopN        int
	HistoryDays int
	Pace        time.Duration
}

// Fetcher assembles one observation per top-ranked coin.
type Fetcher struct {
	tracer      trace.Tracer
	provider    MarketProvider
	engine      ta.Engine
	pacer       *Pacer
	topN        int
	historyDays int
	now         func() time.Time
}

// Result is one fetched batch. Skipped lists coins that were dropped.
type Result struct {
	Observations []domain.Observation
	Skipped      []string
}

func NewFetcher(tracer trace.Tracer, provider MarketProvider, engine ta.Engine, opts Options) *Fetcher {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 1
	}
	return &Fetcher{
		tracer:      tracer,
		provider:    provider,
		engine:      engine,
		pacer:       NewPacer(opts.Pace),
		topN:        opts.TopN,
		historyDays: opts.HistoryDays,
		now:         time.Now,
	}
}

// Fetch returns between 0 and TopN observations. It never fails: a coin whose
// snapshot or history cannot be retrieved is logged and left out.
func (f *Fetcher) Fetch(ctx context.Context) Result {
	ctx, span := f.tracer.Start(ctx, "market.fetch")
	defer span.End()

	var res Result
	coins, err := f.provider.FetchTopCoins(ctx, f.topN)
	if err != nil {
		log.Printf("market fetch: ranked coin list unavailable: %v", err)
		span.RecordError(err)
		return res
	}

	for i, coin := range coins {
		if err := f.pacer.Wait(ctx); err != nil {
			for _, rest := range coins[i:] {
				res.Skipped = append(res.Skipped, rest.ID)
			}
			log.Printf("market fetch: stopped before coin=%s err=%v", coin.ID, err)
			break
		}

		row, err := f.fetchCoin(ctx, coin.ID)
		if err != nil {
			log.Printf("market fetch: skipped coin=%s err=%v", coin.ID, err)
			res.Skipped = append(res.Skipped, coin.ID)
			continue
		}
		res.Observations = append(res.Observations, row)
	}

	span.SetAttributes(
		attribute.Int("coins.fetched", len(res.Observations)),
		attribute.Int("coins.skipped", len(res.Skipped)),
	)
	return res
}

func (f *Fetcher) fetchCoin(ctx context.Context, id string) (domain.Observation, error) {
	ctx, span := f.tracer.Start(ctx, "market.fetch-coin")
	defer span.End()
	span.SetAttributes(attribute.String("coin", id))

	if id == "" {
		return domain.Observation{}, fmt.Errorf("empty coin id")
	}

	snap, err := f.provider.FetchCoinMarket(ctx, id)
	if err != nil {
		return domain.Observation{}, err
	}
	if snap.CurrentPrice == nil || *snap.CurrentPrice <= 0 {
		return domain.Observation{}, fmt.Errorf("no positive price for %s", id)
	}

	history, err := f.provider.FetchPriceHistory(ctx, id, f.historyDays)
	if err != nil {
		return domain.Observation{}, err
	}

	row := domain.Observation{
		Timestamp:    domain.At(f.now()),
		Coin:         id,
		Price:        snap.CurrentPrice,
		Change24hPct: snap.Change24hPct,
		Volume24h:    snap.TotalVolume,
		MarketCap:    snap.MarketCap,
	}

	ind, err := f.engine.Latest(history)
	switch {
	case err == nil:
		row.RSI = domain.Float(ind.RSI)
		row.Volatility = domain.Float(ind.Volatility)
		row.SMA20 = domain.Float(ind.SMA20)
	case errors.Is(err, ta.ErrInsufficientData):
		log.Printf("market fetch: no indicators coin=%s samples=%d: %v", id, len(history), err)
	default:
		return domain.Observation{}, err
	}
	return row, nil
}
