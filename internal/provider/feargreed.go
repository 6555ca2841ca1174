package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"
)

const fearGreedBaseURL = "https://api.alternative.me"

type FearGreedProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewFearGreedProvider(tracer trace.Tracer, timeout time.Duration) *FearGreedProvider {
	return &FearGreedProvider{
		client:  newHTTPClient(timeout),
		baseURL: fearGreedBaseURL,
		tracer:  tracer,
	}
}

// FetchLatest returns the most recent published Fear & Greed index value.
func (p *FearGreedProvider) FetchLatest(ctx context.Context) (*FearGreedPoint, error) {
	ctx, span := p.tracer.Start(ctx, "feargreed.fetch-latest")
	defer span.End()

	url := strings.TrimRight(p.baseURL, "/") + "/fng/?limit=1"
	body, err := doGet(ctx, p.client, "fear & greed", url, nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode fear & greed response: invalid json")
	}

	row := gjson.GetBytes(body, "data.0")
	value := row.Get("value")
	if !value.Exists() {
		return nil, fmt.Errorf("fear & greed data.0.value: %w", ErrSchemaMismatch)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value.String()), 64)
	if err != nil {
		return nil, fmt.Errorf("parse fear & greed value: %w", err)
	}

	point := &FearGreedPoint{
		Value:          v,
		Classification: row.Get("value_classification").String(),
	}
	if ts, err := strconv.ParseInt(strings.TrimSpace(row.Get("timestamp").String()), 10, 64); err == nil {
		if ts > 1_000_000_000_000 {
			ts = ts / 1000
		}
		point.Timestamp = time.Unix(ts, 0).UTC()
	}
	return point, nil
}
