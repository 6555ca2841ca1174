package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinpulse/internal/domain"
	"coinpulse/internal/ta"

	"go.opentelemetry.io/otel/trace"
)

type fakeProvider struct {
	top        []domain.CoinMarket
	topErr     error
	markets    map[string]*domain.CoinMarket
	marketErr  map[string]error
	history    map[string]domain.PriceSeries
	historyErr map[string]error
	calls      []string
}

func (f *fakeProvider) FetchTopCoins(ctx context.Context, n int) ([]domain.CoinMarket, error) {
	if f.topErr != nil {
		return nil, f.topErr
	}
	if len(f.top) > n {
		return f.top[:n], nil
	}
	return f.top, nil
}

func (f *fakeProvider) FetchCoinMarket(ctx context.Context, id string) (*domain.CoinMarket, error) {
	f.calls = append(f.calls, "market:"+id)
	if err := f.marketErr[id]; err != nil {
		return nil, err
	}
	return f.markets[id], nil
}

func (f *fakeProvider) FetchPriceHistory(ctx context.Context, id string, days int) (domain.PriceSeries, error) {
	f.calls = append(f.calls, "history:"+id)
	if err := f.historyErr[id]; err != nil {
		return nil, err
	}
	return f.history[id], nil
}

func rampSeries(n int, start float64) domain.PriceSeries {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(domain.PriceSeries, n)
	for i := range out {
		price := start + float64(i)
		if i%3 == 0 {
			price -= 0.5
		}
		out[i] = domain.PricePoint{Time: base.Add(time.Duration(i) * 5 * time.Minute), Price: price}
	}
	return out
}

func snapshot(id string, price float64) *domain.CoinMarket {
	return &domain.CoinMarket{
		ID:           id,
		CurrentPrice: domain.Float(price),
		Change24hPct: domain.Float(1.25),
		TotalVolume:  domain.Float(1000),
		MarketCap:    domain.Float(5000),
	}
}

func newTestFetcher(p MarketProvider) *Fetcher {
	f := NewFetcher(trace.NewNoopTracerProvider().Tracer("test"), p, ta.NewEngine(14, 20), Options{TopN: 10})
	f.now = func() time.Time { return time.Date(2025, 1, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600)) }
	return f
}

func threeCoinProvider() *fakeProvider {
	return &fakeProvider{
		top: []domain.CoinMarket{{ID: "bitcoin"}, {ID: "ethereum"}, {ID: "solana"}},
		markets: map[string]*domain.CoinMarket{
			"bitcoin":  snapshot("bitcoin", 50000),
			"ethereum": snapshot("ethereum", 3000),
			"solana":   snapshot("solana", 150),
		},
		history: map[string]domain.PriceSeries{
			"bitcoin":  rampSeries(30, 100),
			"ethereum": rampSeries(30, 50),
			"solana":   rampSeries(30, 10),
		},
	}
}

func TestFetchAssemblesOneRowPerCoin(t *testing.T) {
	p := threeCoinProvider()
	res := newTestFetcher(p).Fetch(context.Background())

	if len(res.Observations) != 3 || len(res.Skipped) != 0 {
		t.Fatalf("expected 3 rows and no skips, got %d rows skipped=%v", len(res.Observations), res.Skipped)
	}
	row := res.Observations[0]
	if row.Coin != "bitcoin" || *row.Price != 50000 || *row.Change24hPct != 1.25 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.RSI == nil || row.Volatility == nil || row.SMA20 == nil {
		t.Fatalf("expected indicators, got %+v", row)
	}
	if *row.RSI < 0 || *row.RSI > 100 {
		t.Fatalf("rsi out of range: %v", *row.RSI)
	}
	if row.Timestamp.Time.Location() != time.UTC || row.Timestamp.Time.Hour() != 12 {
		t.Fatalf("expected UTC fetch instant, got %v", row.Timestamp.Time)
	}
	for _, f := range domain.EnrichmentColumns {
		if row.Get(f) != nil {
			t.Fatalf("enrichment field %s should start missing", f)
		}
	}
}

func TestFetchSkipsExactlyTheFailingCoin(t *testing.T) {
	cases := map[string]func(p *fakeProvider){
		"snapshot error": func(p *fakeProvider) {
			p.marketErr = map[string]error{"ethereum": errors.New("timeout")}
		},
		"history error": func(p *fakeProvider) {
			p.historyErr = map[string]error{"ethereum": errors.New("503")}
		},
		"missing price": func(p *fakeProvider) {
			p.markets["ethereum"].CurrentPrice = nil
		},
		"zero price": func(p *fakeProvider) {
			p.markets["ethereum"].CurrentPrice = domain.Float(0)
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := threeCoinProvider()
			mutate(p)

			res := newTestFetcher(p).Fetch(context.Background())
			if len(res.Observations) != 2 {
				t.Fatalf("expected 2 rows, got %d", len(res.Observations))
			}
			if len(res.Skipped) != 1 || res.Skipped[0] != "ethereum" {
				t.Fatalf("expected ethereum skipped, got %v", res.Skipped)
			}
			if res.Observations[0].Coin != "bitcoin" || res.Observations[1].Coin != "solana" {
				t.Fatalf("unexpected coins: %s, %s", res.Observations[0].Coin, res.Observations[1].Coin)
			}
		})
	}
}

func TestFetchShortHistoryKeepsCoinWithoutIndicators(t *testing.T) {
	p := threeCoinProvider()
	p.history["solana"] = rampSeries(5, 10)

	res := newTestFetcher(p).Fetch(context.Background())
	if len(res.Observations) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(res.Observations))
	}
	sol := res.Observations[2]
	if sol.RSI != nil || sol.Volatility != nil || sol.SMA20 != nil {
		t.Fatalf("expected missing indicators, got %+v", sol)
	}
	if sol.Price == nil || *sol.Price != 150 {
		t.Fatalf("expected snapshot fields kept, got %+v", sol)
	}
}

func TestFetchRankedListFailureYieldsEmptyBatch(t *testing.T) {
	p := &fakeProvider{topErr: errors.New("connection refused")}
	res := newTestFetcher(p).Fetch(context.Background())

	if len(res.Observations) != 0 {
		t.Fatalf("expected empty batch, got %d", len(res.Observations))
	}
	if len(p.calls) != 0 {
		t.Fatalf("no per-coin calls expected, got %v", p.calls)
	}
}

func TestFetchIsSequentialPerCoin(t *testing.T) {
	p := threeCoinProvider()
	newTestFetcher(p).Fetch(context.Background())

	want := []string{
		"market:bitcoin", "history:bitcoin",
		"market:ethereum", "history:ethereum",
		"market:solana", "history:solana",
	}
	if len(p.calls) != len(want) {
		t.Fatalf("unexpected calls: %v", p.calls)
	}
	for i := range want {
		if p.calls[i] != want[i] {
			t.Fatalf("call %d: expected %s, got %s", i, want[i], p.calls[i])
		}
	}
}
