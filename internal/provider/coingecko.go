package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoProvider fetches ranked market snapshots and price history from the
// CoinGecko API.
type CoinGeckoProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
}

// NewCoinGeckoProvider creates a provider. apiKey is optional and sent as the
// demo API key header when set.
func NewCoinGeckoProvider(tracer trace.Tracer, apiKey string, timeout time.Duration) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		client:  newHTTPClient(timeout),
		baseURL: coingeckoBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		tracer:  tracer,
	}
}

// FetchTopCoins returns the top n coins by market capitalization.
func (p *CoinGeckoProvider) FetchTopCoins(ctx context.Context, n int) ([]domain.CoinMarket, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-top-coins")
	defer span.End()

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(n))
	q.Set("page", "1")

	coins, err := p.fetchMarkets(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch top coins: %w", err)
	}
	if len(coins) > n {
		coins = coins[:n]
	}
	return coins, nil
}

// FetchCoinMarket returns the live market snapshot for a single coin.
func (p *CoinGeckoProvider) FetchCoinMarket(ctx context.Context, id string) (*domain.CoinMarket, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-coin-market")
	defer span.End()
	span.SetAttributes(attribute.String("coin", id))

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", id)

	coins, err := p.fetchMarkets(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch market for %s: %w", id, err)
	}
	if len(coins) == 0 {
		return nil, fmt.Errorf("fetch market for %s: %w: empty result", id, ErrSchemaMismatch)
	}
	return &coins[0], nil
}

// FetchPriceHistory returns the (timestamp, price) samples of the last days
// days. Samples are returned in provider order.
func (p *CoinGeckoProvider) FetchPriceHistory(ctx context.Context, id string, days int) (domain.PriceSeries, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-price-history")
	defer span.End()
	span.SetAttributes(attribute.String("coin", id), attribute.Int("days", days))

	u := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d",
		strings.TrimRight(p.baseURL, "/"), url.PathEscape(id), days)

	body, err := doGet(ctx, p.client, "coingecko", u, p.headers())
	if err != nil {
		return nil, fmt.Errorf("fetch price history for %s: %w", id, err)
	}

	// Response shape: {"prices": [[1711843200000, 69702.3], ...], "market_caps": [...], "total_volumes": [...]}
	var raw struct {
		Prices [][]float64 `json:"prices"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse price history for %s: %w", id, err)
	}

	series := make(domain.PriceSeries, 0, len(raw.Prices))
	for _, pt := range raw.Prices {
		if len(pt) < 2 {
			continue
		}
		series = append(series, domain.PricePoint{
			Time:  time.UnixMilli(int64(pt[0])).UTC(),
			Price: pt[1],
		})
	}
	return series, nil
}

func (p *CoinGeckoProvider) fetchMarkets(ctx context.Context, q url.Values) ([]domain.CoinMarket, error) {
	u := strings.TrimRight(p.baseURL, "/") + "/coins/markets?" + q.Encode()
	body, err := doGet(ctx, p.client, "coingecko", u, p.headers())
	if err != nil {
		return nil, err
	}

	var coins []domain.CoinMarket
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, fmt.Errorf("parse markets: %w", err)
	}
	return coins, nil
}

func (p *CoinGeckoProvider) headers() map[string]string {
	return map[string]string{"x-cg-demo-api-key": p.apiKey}
}
