package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	alphaVantageBaseURL = "https://www.alphavantage.co"

	globalQuotePricePath = `Global Quote.05\. price`
	exchangeRatePath     = `Realtime Currency Exchange Rate.5\. Exchange Rate`
)

// AlphaVantageProvider reads point quotes and exchange rates from Alpha Vantage.
type AlphaVantageProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
}

func NewAlphaVantageProvider(tracer trace.Tracer, apiKey string, timeout time.Duration) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		client:  newHTTPClient(timeout),
		baseURL: alphaVantageBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		tracer:  tracer,
	}
}

// GlobalQuote returns the latest price for symbol.
func (p *AlphaVantageProvider) GlobalQuote(ctx context.Context, symbol string) (float64, error) {
	ctx, span := p.tracer.Start(ctx, "alphavantage.global-quote")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	v, err := p.query(ctx, q, globalQuotePricePath)
	if err != nil {
		return 0, fmt.Errorf("global quote %s: %w", symbol, err)
	}
	return v, nil
}

// ExchangeRate returns how many units of to one unit of from buys.
func (p *AlphaVantageProvider) ExchangeRate(ctx context.Context, from, to string) (float64, error) {
	ctx, span := p.tracer.Start(ctx, "alphavantage.exchange-rate")
	defer span.End()
	span.SetAttributes(attribute.String("from", from), attribute.String("to", to))

	q := url.Values{}
	q.Set("function", "CURRENCY_EXCHANGE_RATE")
	q.Set("from_currency", from)
	q.Set("to_currency", to)
	v, err := p.query(ctx, q, exchangeRatePath)
	if err != nil {
		return 0, fmt.Errorf("exchange rate %s/%s: %w", from, to, err)
	}
	return v, nil
}

func (p *AlphaVantageProvider) query(ctx context.Context, q url.Values, path string) (float64, error) {
	if p.apiKey == "" {
		return 0, fmt.Errorf("alpha vantage api key not configured")
	}
	q.Set("apikey", p.apiKey)

	u := strings.TrimRight(p.baseURL, "/") + "/query?" + q.Encode()
	body, err := doGet(ctx, p.client, "alpha vantage", u, nil)
	if err != nil {
		return 0, err
	}
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("decode alpha vantage response: invalid json")
	}

	value := gjson.GetBytes(body, path)
	if !value.Exists() {
		// Throttled and invalid-key responses carry a "Note" or "Information" message instead.
		for _, key := range []string{"Note", "Information", "Error Message"} {
			if note := gjson.GetBytes(body, key); note.Exists() {
				return 0, fmt.Errorf("%w: %s", ErrSchemaMismatch, note.String())
			}
		}
		return 0, fmt.Errorf("%w: missing %q", ErrSchemaMismatch, path)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(value.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", path, err)
	}
	return v, nil
}
