package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/groovili/gogtrends"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	trendsLanguage     = "EN"
	timeseriesWidgetID = "TIMESERIES"
)

// TrendsProvider reads relative search interest from Google Trends.
type TrendsProvider struct {
	tracer  trace.Tracer
	geo     string
	timeout time.Duration

	explore          func(ctx context.Context, r *gogtrends.ExploreRequest, hl string) ([]*gogtrends.ExploreWidget, error)
	interestOverTime func(ctx context.Context, w *gogtrends.ExploreWidget, hl string) ([]*gogtrends.Timeline, error)
}

// NewTrendsProvider reads interest for geo ("" is worldwide). gogtrends uses
// the default HTTP client, so timeout bounds every call through the context.
func NewTrendsProvider(tracer trace.Tracer, geo string, timeout time.Duration) *TrendsProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &TrendsProvider{
		tracer:  tracer,
		geo:     strings.ToUpper(strings.TrimSpace(geo)),
		timeout: timeout,
		explore: func(ctx context.Context, r *gogtrends.ExploreRequest, hl string) ([]*gogtrends.ExploreWidget, error) {
			return gogtrends.Explore(ctx, r, hl)
		},
		interestOverTime: gogtrends.InterestOverTime,
	}
}

// LatestInterest returns the most recent interest sample for each term over
// timeframe (for example "now 4-H"). Terms without data are absent from the map.
func (p *TrendsProvider) LatestInterest(ctx context.Context, terms []string, timeframe string) (map[string]float64, error) {
	ctx, span := p.tracer.Start(ctx, "trends.latest-interest")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("terms", terms), attribute.String("timeframe", timeframe))

	if len(terms) == 0 {
		return nil, fmt.Errorf("no trend terms")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	items := make([]*gogtrends.ComparisonItem, 0, len(terms))
	for _, term := range terms {
		items = append(items, &gogtrends.ComparisonItem{Keyword: term, Geo: p.geo, Time: timeframe})
	}

	widgets, err := p.explore(ctx, &gogtrends.ExploreRequest{ComparisonItems: items}, trendsLanguage)
	if err != nil {
		return nil, fmt.Errorf("explore trends: %w", err)
	}

	var widget *gogtrends.ExploreWidget
	for _, w := range widgets {
		if w != nil && strings.EqualFold(w.ID, timeseriesWidgetID) {
			widget = w
			break
		}
	}
	if widget == nil {
		return nil, fmt.Errorf("trends timeseries widget: %w", ErrSchemaMismatch)
	}

	timeline, err := p.interestOverTime(ctx, widget, trendsLanguage)
	if err != nil {
		return nil, fmt.Errorf("interest over time: %w", err)
	}
	if len(timeline) == 0 {
		return map[string]float64{}, nil
	}

	return lastSample(terms, timeline[len(timeline)-1]), nil
}

func lastSample(terms []string, point *gogtrends.Timeline) map[string]float64 {
	out := make(map[string]float64, len(terms))
	if point == nil {
		return out
	}
	for i, term := range terms {
		if i >= len(point.Value) {
			break
		}
		if i < len(point.HasData) && !point.HasData[i] {
			continue
		}
		out[term] = float64(point.Value[i])
	}
	return out
}
