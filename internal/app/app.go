package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"coinpulse/internal/cache"
	"coinpulse/internal/config"
	"coinpulse/internal/dataset"
	"coinpulse/internal/domain"
	"coinpulse/internal/enrich"
	"coinpulse/internal/market"
	"coinpulse/internal/metrics"
	"coinpulse/internal/pipeline"
	"coinpulse/internal/provider"
	"coinpulse/internal/repository"
	"coinpulse/internal/runlog"
	"coinpulse/internal/ta"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// Pause before the rate-sensitive community and search sources.
const enrichCooldown = 2 * time.Second

var (
	newRedisClientFunc = cache.NewRedisClient
	newPgxPoolFunc     = func(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	}
	newSQLiteRecorderFunc = runlog.NewSQLiteRecorder
)

// App holds the collector and its optional backends. Cache and Repo are nil
// when their backend is not configured or unreachable.
type App struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Dataset  *dataset.FileStore
	Cache    *cache.LatestStore
	Repo     *repository.ObservationRepository
	Metrics  *metrics.Metrics

	recorder runlog.Recorder
	redis    *redis.Client
	pool     *pgxpool.Pool
}

// Build wires providers, enrichers, the dataset store and every configured
// sink into one pipeline. Optional backends that fail to connect are logged
// and left out.
func Build(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	timeout := time.Duration(cfg.HTTPTimeoutSecs) * time.Second

	a := &App{
		Config:  cfg,
		Dataset: dataset.NewFileStore(tracer, cfg.DatasetPath),
		Metrics: metrics.New(),
	}

	recorders := runlog.Multi{runlog.NewTextRecorder(cfg.RunLogPath)}
	if cfg.RunRecordSQLitePath != "" {
		rec, err := newSQLiteRecorderFunc(cfg.RunRecordSQLitePath)
		if err != nil {
			log.Printf("sqlite run record disabled: %v", err)
		} else {
			recorders = append(recorders, rec)
		}
	}
	a.recorder = recorders

	var sinks []pipeline.Sink
	if cfg.DatabaseURL != "" {
		pool, err := newPgxPoolFunc(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("postgres mirror disabled: %v", err)
		} else {
			a.pool = pool
			a.Repo = repository.NewObservationRepository(pool, tracer)
			sinks = append(sinks, pipeline.MirrorSink{Repo: a.Repo})
		}
	}
	if cfg.RedisURL != "" {
		client, err := newRedisClientFunc(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("latest-observation cache disabled: %v", err)
		} else {
			a.redis = client
			a.Cache = cache.NewLatestStore(client, tracer, cache.DefaultLatestTTL)
			sinks = append(sinks, pipeline.CacheSink{Cache: a.Cache})
		}
	}

	fetcher := market.NewFetcher(tracer,
		provider.NewCoinGeckoProvider(tracer, cfg.CoinGeckoAPIKey, timeout),
		ta.NewEngine(cfg.MomentumWindow, cfg.TrendWindow),
		market.Options{
			TopN:        cfg.TopNCoins,
			HistoryDays: cfg.HistoryDays,
			Pace:        time.Duration(cfg.CoinPaceMs) * time.Millisecond,
		},
	)

	a.Pipeline = pipeline.New(tracer, fetcher, Enrichers(cfg, tracer, timeout), a.Dataset, a.recorder,
		textfileObserver{metrics: a.Metrics, path: cfg.MetricsTextfile}, sinks...)
	return a, nil
}

// Enrichers returns the signal enrichers in their fixed run order.
func Enrichers(cfg *config.Config, tracer trace.Tracer, timeout time.Duration) []enrich.Enricher {
	return []enrich.Enricher{
		enrich.NewTrendEnricher(provider.NewTrendsProvider(tracer, cfg.TrendsGeo, timeout), cfg.TrendsTimeframe, enrichCooldown),
		enrich.NewFearGreedEnricher(provider.NewFearGreedProvider(tracer, timeout)),
		enrich.NewSocialSentimentEnricher(
			provider.NewRedditProvider(tracer, cfg.RedditUserAgent, timeout),
			enrich.SocialOptions{
				Subreddit: cfg.RedditSubreddit,
				Limit:     cfg.RedditPostLimit,
				Cooldown:  enrichCooldown,
			},
		),
		enrich.NewMacroEnricher(provider.NewAlphaVantageProvider(tracer, cfg.AlphaVantageAPIKey, timeout)),
	}
}

// Close releases the run recorders and backend connections.
func (a *App) Close() {
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			log.Printf("close run record: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// textfileObserver updates the metrics and, when a path is set, rewrites the
// node-exporter textfile after every run.
type textfileObserver struct {
	metrics *metrics.Metrics
	path    string
}

func (o textfileObserver) Observe(result domain.RunResult) {
	o.metrics.Observe(result)
	o.flush()
}

func (o textfileObserver) ObserveFailure() {
	o.metrics.ObserveFailure()
	o.flush()
}

func (o textfileObserver) flush() {
	if o.path == "" {
		return
	}
	if err := o.metrics.WriteTextfile(o.path); err != nil {
		log.Printf("write metrics textfile error: %v", err)
	}
}
