package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	redditBaseURL     = "https://www.reddit.com"
	defaultRedditUA   = "coinpulse/1.0 (hourly market collector)"
	defaultRedditSize = 50
)

type RedditProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	tracer    trace.Tracer
}

func NewRedditProvider(tracer trace.Tracer, userAgent string, timeout time.Duration) *RedditProvider {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		userAgent = defaultRedditUA
	}
	return &RedditProvider{
		client:    newHTTPClient(timeout),
		baseURL:   redditBaseURL,
		userAgent: userAgent,
		tracer:    tracer,
	}
}

// FetchTop returns up to limit top posts of subreddit over window
// (hour, day, week, ...).
func (p *RedditProvider) FetchTop(ctx context.Context, subreddit string, limit int, window string) ([]Post, error) {
	ctx, span := p.tracer.Start(ctx, "reddit.fetch-top")
	defer span.End()

	subreddit = strings.TrimSpace(subreddit)
	if subreddit == "" {
		return nil, fmt.Errorf("subreddit is required")
	}
	if limit <= 0 {
		limit = defaultRedditSize
	}
	if limit > 100 {
		limit = 100
	}
	if window == "" {
		window = "hour"
	}
	span.SetAttributes(attribute.String("subreddit", subreddit), attribute.Int("limit", limit))

	u := fmt.Sprintf("%s/r/%s/top.json?limit=%d&t=%s",
		strings.TrimRight(p.baseURL, "/"), url.PathEscape(subreddit), limit, url.QueryEscape(window))

	body, err := doGet(ctx, p.client, "reddit", u, map[string]string{"User-Agent": p.userAgent})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data *struct {
			Children []struct {
				Data struct {
					ID    string `json:"id"`
					Title string `json:"title"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode reddit response: %w", err)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("reddit data: %w", ErrSchemaMismatch)
	}

	posts := make([]Post, 0, len(payload.Data.Children))
	for _, row := range payload.Data.Children {
		title := sanitizeText(row.Data.Title, 300)
		if title == "" {
			continue
		}
		posts = append(posts, Post{ID: row.Data.ID, Title: title})
	}
	return posts, nil
}

func sanitizeText(in string, maxLen int) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.ReplaceAll(in, "\n", " ")
	in = strings.ReplaceAll(in, "\r", " ")
	in = strings.Join(strings.Fields(in), " ")
	if maxLen > 0 && len(in) > maxLen {
		in = in[:maxLen]
	}
	return in
}
