package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/groovili/gogtrends"
)

func TestTrendsLatestInterest(t *testing.T) {
	p := NewTrendsProvider(testTracer(), "", time.Second)
	p.explore = func(ctx context.Context, r *gogtrends.ExploreRequest, hl string) ([]*gogtrends.ExploreWidget, error) {
		if len(r.ComparisonItems) != 2 || r.ComparisonItems[0].Time != "now 4-H" {
			t.Fatalf("unexpected explore request: %+v", r.ComparisonItems)
		}
		return []*gogtrends.ExploreWidget{{ID: "GEO_MAP"}, {ID: "TIMESERIES"}}, nil
	}
	p.interestOverTime = func(ctx context.Context, w *gogtrends.ExploreWidget, hl string) ([]*gogtrends.Timeline, error) {
		if w.ID != "TIMESERIES" {
			t.Fatalf("unexpected widget: %s", w.ID)
		}
		return []*gogtrends.Timeline{
			{Value: []int{10, 20}, HasData: []bool{true, true}},
			{Value: []int{71, 0}, HasData: []bool{true, false}},
		}, nil
	}

	got, err := p.LatestInterest(context.Background(), []string{"Bitcoin", "Ethereum"}, "now 4-H")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["Bitcoin"] != 71 {
		t.Fatalf("expected Bitcoin=71, got %+v", got)
	}
	if _, ok := got["Ethereum"]; ok {
		t.Fatalf("Ethereum without data should be absent, got %+v", got)
	}
}

func TestTrendsMissingTimeseriesWidget(t *testing.T) {
	p := NewTrendsProvider(testTracer(), "", time.Second)
	p.explore = func(ctx context.Context, r *gogtrends.ExploreRequest, hl string) ([]*gogtrends.ExploreWidget, error) {
		return []*gogtrends.ExploreWidget{{ID: "RELATED_QUERIES"}}, nil
	}

	_, err := p.LatestInterest(context.Background(), []string{"Bitcoin"}, "now 4-H")
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestTrendsEmptyTimeline(t *testing.T) {
	p := NewTrendsProvider(testTracer(), "", time.Second)
	p.explore = func(ctx context.Context, r *gogtrends.ExploreRequest, hl string) ([]*gogtrends.ExploreWidget, error) {
		return []*gogtrends.ExploreWidget{{ID: "TIMESERIES"}}, nil
	}
	p.interestOverTime = func(ctx context.Context, w *gogtrends.ExploreWidget, hl string) ([]*gogtrends.Timeline, error) {
		return nil, nil
	}

	got, err := p.LatestInterest(context.Background(), []string{"Bitcoin"}, "now 4-H")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestTrendsCallsAreBoundedByTimeout(t *testing.T) {
	p := NewTrendsProvider(testTracer(), " us ", 50*time.Millisecond)
	var exploreDeadline, timelineDeadline bool
	p.explore = func(ctx context.Context, r *gogtrends.ExploreRequest, hl string) ([]*gogtrends.ExploreWidget, error) {
		_, exploreDeadline = ctx.Deadline()
		if r.ComparisonItems[0].Geo != "US" {
			t.Fatalf("expected geo US, got %q", r.ComparisonItems[0].Geo)
		}
		return []*gogtrends.ExploreWidget{{ID: "TIMESERIES"}}, nil
	}
	p.interestOverTime = func(ctx context.Context, w *gogtrends.ExploreWidget, hl string) ([]*gogtrends.Timeline, error) {
		_, timelineDeadline = ctx.Deadline()
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	_, err := p.LatestInterest(context.Background(), []string{"Bitcoin"}, "now 4-H")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !exploreDeadline || !timelineDeadline {
		t.Fatalf("expected deadlines on both calls, explore=%v timeline=%v", exploreDeadline, timelineDeadline)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("stalled call was not bounded, took %v", elapsed)
	}
}

func TestNewTrendsProviderDefaultsTimeout(t *testing.T) {
	if p := NewTrendsProvider(testTracer(), "", 0); p.timeout != defaultTimeout {
		t.Fatalf("expected default timeout, got %v", p.timeout)
	}
}
