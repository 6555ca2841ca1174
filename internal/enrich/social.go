package enrich

import (
	"context"
	"fmt"
	"time"

	"coinpulse/internal/domain"
	"coinpulse/internal/provider"

	"github.com/jonreiter/govader"
)

type PostSource interface {
	FetchTop(ctx context.Context, subreddit string, limit int, window string) ([]provider.Post, error)
}

type SocialOptions struct {
	Subreddit string
	Limit     int
	Window    string
	Cooldown  time.Duration
}

// SocialSentimentEnricher scores community post titles with VADER and fills
// reddit_sentiment with the mean compound polarity.
type SocialSentimentEnricher struct {
	source   PostSource
	analyzer *govader.SentimentIntensityAnalyzer
	opts     SocialOptions
}

func NewSocialSentimentEnricher(source PostSource, opts SocialOptions) *SocialSentimentEnricher {
	if opts.Subreddit == "" {
		opts.Subreddit = "CryptoCurrency"
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Window == "" {
		opts.Window = "hour"
	}
	return &SocialSentimentEnricher{
		source:   source,
		analyzer: govader.NewSentimentIntensityAnalyzer(),
		opts:     opts,
	}
}

func (e *SocialSentimentEnricher) Name() string { return "social-sentiment" }

func (e *SocialSentimentEnricher) Enrich(ctx context.Context) domain.Patch {
	if !cooldown(ctx, e.opts.Cooldown) {
		return degrade(e.Name(), ctx.Err(), domain.FieldRedditSentiment)
	}

	posts, err := e.source.FetchTop(ctx, e.opts.Subreddit, e.opts.Limit, e.opts.Window)
	if err != nil {
		return degrade(e.Name(), err, domain.FieldRedditSentiment)
	}

	score, ok := e.meanCompound(posts)
	if !ok {
		return degrade(e.Name(), fmt.Errorf("no post titles in r/%s", e.opts.Subreddit), domain.FieldRedditSentiment)
	}
	return domain.Patch{domain.FieldRedditSentiment: domain.Float(score)}
}

func (e *SocialSentimentEnricher) meanCompound(posts []provider.Post) (float64, bool) {
	var sum float64
	var n int
	for _, p := range posts {
		if p.Title == "" {
			continue
		}
		sum += e.analyzer.PolarityScores(p.Title).Compound
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
