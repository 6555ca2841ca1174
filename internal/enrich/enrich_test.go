package enrich

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"coinpulse/internal/domain"
	"coinpulse/internal/provider"

	"github.com/jonreiter/govader"
	"go.opentelemetry.io/otel/trace"
)

type trendStub struct {
	values map[string]float64
	err    error
}

func (s trendStub) LatestInterest(ctx context.Context, terms []string, timeframe string) (map[string]float64, error) {
	return s.values, s.err
}

type fearGreedStub struct {
	point *provider.FearGreedPoint
	err   error
}

func (s fearGreedStub) FetchLatest(ctx context.Context) (*provider.FearGreedPoint, error) {
	return s.point, s.err
}

type postStub struct {
	posts []provider.Post
	err   error
}

func (s postStub) FetchTop(ctx context.Context, subreddit string, limit int, window string) ([]provider.Post, error) {
	return s.posts, s.err
}

type quoteStub struct {
	quotes   map[string]float64
	quoteErr map[string]error
	rate     float64
	rateErr  error
}

func (s quoteStub) GlobalQuote(ctx context.Context, symbol string) (float64, error) {
	if err := s.quoteErr[symbol]; err != nil {
		return 0, err
	}
	return s.quotes[symbol], nil
}

func (s quoteStub) ExchangeRate(ctx context.Context, from, to string) (float64, error) {
	return s.rate, s.rateErr
}

func assertValue(t *testing.T, p domain.Patch, f domain.Field, want float64) {
	t.Helper()
	v, ok := p[f]
	if !ok || v == nil {
		t.Fatalf("expected %s=%v, got missing", f, want)
	}
	if math.Abs(*v-want) > 1e-9 {
		t.Fatalf("expected %s=%v, got %v", f, want, *v)
	}
}

func assertMissing(t *testing.T, p domain.Patch, f domain.Field) {
	t.Helper()
	v, ok := p[f]
	if !ok {
		t.Fatalf("expected %s in patch", f)
	}
	if v != nil {
		t.Fatalf("expected %s missing, got %v", f, *v)
	}
}

func TestTrendEnricher(t *testing.T) {
	e := NewTrendEnricher(trendStub{values: map[string]float64{"Bitcoin": 71, "Ethereum": 33}}, "", 0)
	p := e.Enrich(context.Background())
	assertValue(t, p, domain.FieldGoogleTrendBTC, 71)
	assertValue(t, p, domain.FieldGoogleTrendETH, 33)
}

func TestTrendEnricherDegrades(t *testing.T) {
	cases := map[string]trendStub{
		"error": {err: errors.New("429 too many requests")},
		"empty": {values: map[string]float64{}},
	}
	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewTrendEnricher(stub, "now 4-H", 0).Enrich(context.Background())
			assertMissing(t, p, domain.FieldGoogleTrendBTC)
			assertMissing(t, p, domain.FieldGoogleTrendETH)
		})
	}
}

func TestTrendEnricherPartialTerms(t *testing.T) {
	p := NewTrendEnricher(trendStub{values: map[string]float64{"Bitcoin": 50}}, "", 0).Enrich(context.Background())
	assertValue(t, p, domain.FieldGoogleTrendBTC, 50)
	assertMissing(t, p, domain.FieldGoogleTrendETH)
}

func TestTrendEnricherCooldownHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewTrendEnricher(trendStub{values: map[string]float64{"Bitcoin": 50}}, "", time.Hour).Enrich(ctx)
	assertMissing(t, p, domain.FieldGoogleTrendBTC)
}

func TestFearGreedEnricher(t *testing.T) {
	p := NewFearGreedEnricher(fearGreedStub{point: &provider.FearGreedPoint{Value: 63}}).Enrich(context.Background())
	assertValue(t, p, domain.FieldFearGreedIndex, 63)

	p = NewFearGreedEnricher(fearGreedStub{err: provider.ErrSchemaMismatch}).Enrich(context.Background())
	assertMissing(t, p, domain.FieldFearGreedIndex)
}

func TestSocialSentimentMeanCompound(t *testing.T) {
	titles := []string{
		"Bitcoin rally is amazing, great gains for everyone!",
		"Terrible crash, I lost everything. Awful day.",
		"Ethereum upgrade scheduled for next week",
	}
	posts := make([]provider.Post, len(titles))
	analyzer := govader.NewSentimentIntensityAnalyzer()
	var want float64
	for i, title := range titles {
		posts[i] = provider.Post{ID: string(rune('a' + i)), Title: title}
		want += analyzer.PolarityScores(title).Compound
	}
	want /= float64(len(titles))

	p := NewSocialSentimentEnricher(postStub{posts: posts}, SocialOptions{}).Enrich(context.Background())
	assertValue(t, p, domain.FieldRedditSentiment, want)
	if v := *p[domain.FieldRedditSentiment]; v < -1 || v > 1 {
		t.Fatalf("compound mean out of range: %v", v)
	}
}

func TestSocialSentimentDegrades(t *testing.T) {
	cases := map[string]postStub{
		"service unavailable": {err: &provider.APIError{Provider: "reddit", StatusCode: http.StatusServiceUnavailable}},
		"malformed":           {err: errors.New("decode reddit response: unexpected EOF")},
		"empty":               {posts: nil},
	}
	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewSocialSentimentEnricher(stub, SocialOptions{}).Enrich(context.Background())
			assertMissing(t, p, domain.FieldRedditSentiment)
		})
	}
}

func TestMacroEnricherDerivesDollarIndex(t *testing.T) {
	stub := quoteStub{quotes: map[string]float64{"SPY": 512.34, "GLD": 220.5}, rate: 0.5}
	p := NewMacroEnricher(stub).Enrich(context.Background())

	assertValue(t, p, domain.FieldSP500, 512.34)
	assertValue(t, p, domain.FieldGold, 220.5)
	assertValue(t, p, domain.FieldUSDIndex, 200)
}

func TestMacroEnricherIsolatesQuotes(t *testing.T) {
	stub := quoteStub{
		quotes:   map[string]float64{"GLD": 220.5},
		quoteErr: map[string]error{"SPY": provider.ErrSchemaMismatch},
		rate:     0.92,
	}
	p := NewMacroEnricher(stub).Enrich(context.Background())

	assertMissing(t, p, domain.FieldSP500)
	assertValue(t, p, domain.FieldGold, 220.5)
	assertValue(t, p, domain.FieldUSDIndex, 100/0.92)
}

func TestMacroEnricherRejectsNonPositiveRate(t *testing.T) {
	for _, rate := range []float64{0, -1} {
		p := NewMacroEnricher(quoteStub{quotes: map[string]float64{"SPY": 1, "GLD": 1}, rate: rate}).Enrich(context.Background())
		assertMissing(t, p, domain.FieldUSDIndex)
	}
	p := NewMacroEnricher(quoteStub{rateErr: errors.New("timeout")}).Enrich(context.Background())
	assertMissing(t, p, domain.FieldUSDIndex)
}

func TestApplyMergesPatchesIntoEveryRow(t *testing.T) {
	rows := []domain.Observation{
		{Coin: "bitcoin", Price: domain.Float(50000)},
		{Coin: "ethereum", Price: domain.Float(3000)},
	}
	out, missing := Apply(context.Background(), trace.NewNoopTracerProvider().Tracer("test"), rows,
		NewFearGreedEnricher(fearGreedStub{point: &provider.FearGreedPoint{Value: 40}}),
		NewSocialSentimentEnricher(postStub{err: errors.New("503")}, SocialOptions{}),
	)

	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	for _, row := range out {
		if row.FearGreedIndex == nil || *row.FearGreedIndex != 40 {
			t.Fatalf("expected fear_greed_index 40 on %s", row.Coin)
		}
		if row.RedditSentiment != nil {
			t.Fatalf("expected reddit_sentiment missing on %s", row.Coin)
		}
	}
	if rows[0].FearGreedIndex != nil {
		t.Fatal("input rows must not be mutated")
	}
	if len(missing) != 1 || missing[0] != domain.FieldRedditSentiment {
		t.Fatalf("unexpected missing fields: %v", missing)
	}
}
