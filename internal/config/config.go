package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatasetPath         string `yaml:"dataset_path"`
	RunLogPath          string `yaml:"run_log_path"`
	RunRecordSQLitePath string `yaml:"run_record_sqlite_path"`

	TopNCoins       int `yaml:"top_n_coins"`
	HistoryDays     int `yaml:"history_days"`
	CoinPaceMs      int `yaml:"coin_pace_ms"`
	MomentumWindow  int `yaml:"momentum_window"`
	TrendWindow     int `yaml:"trend_window"`
	HTTPTimeoutSecs int `yaml:"http_timeout_secs"`

	CoinGeckoAPIKey    string `yaml:"coingecko_api_key"`
	AlphaVantageAPIKey string `yaml:"alphavantage_api_key"`
	RedditSubreddit    string `yaml:"reddit_subreddit"`
	RedditPostLimit    int    `yaml:"reddit_post_limit"`
	RedditUserAgent    string `yaml:"reddit_user_agent"`
	TrendsTimeframe    string `yaml:"trends_timeframe"`
	TrendsGeo          string `yaml:"trends_geo"`

	DatabaseURL     string `yaml:"database_url"`
	RedisURL        string `yaml:"redis_url"`
	MetricsTextfile string `yaml:"metrics_textfile"`

	CollectCron string `yaml:"collect_cron"`
	HTTPPort    int    `yaml:"http_port"`
	APIKey      string `yaml:"api_key"`
}

func defaults() *Config {
	return &Config{
		DatasetPath:     "crypto_hourly.csv",
		RunLogPath:      "run_log.txt",
		TopNCoins:       10,
		HistoryDays:     1,
		CoinPaceMs:      250,
		MomentumWindow:  14,
		TrendWindow:     20,
		HTTPTimeoutSecs: 30,
		RedditSubreddit: "CryptoCurrency",
		RedditPostLimit: 50,
		TrendsTimeframe: "now 4-H",
		CollectCron:     "0 0 * * * *",
		HTTPPort:        8080,
	}
}

// Load reads the optional YAML file named by CONFIG_FILE, then applies
// environment overrides. Invalid numeric values keep the previous value.
func Load() (*Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	envString("DATASET_PATH", &cfg.DatasetPath)
	envString("RUN_LOG_PATH", &cfg.RunLogPath)
	envString("RUN_RECORD_SQLITE_PATH", &cfg.RunRecordSQLitePath)

	envPositiveInt("TOP_N_COINS", &cfg.TopNCoins)
	envPositiveInt("HISTORY_DAYS", &cfg.HistoryDays)
	envPositiveInt("MOMENTUM_WINDOW", &cfg.MomentumWindow)
	envPositiveInt("TREND_WINDOW", &cfg.TrendWindow)
	envPositiveInt("HTTP_TIMEOUT_SECS", &cfg.HTTPTimeoutSecs)
	envPositiveInt("REDDIT_POST_LIMIT", &cfg.RedditPostLimit)
	envPositiveInt("HTTP_PORT", &cfg.HTTPPort)

	// Zero disables pacing.
	if v := strings.TrimSpace(os.Getenv("COIN_PACE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.CoinPaceMs = n
		}
	}

	envString("COINGECKO_API_KEY", &cfg.CoinGeckoAPIKey)
	envString("ALPHAVANTAGE_API_KEY", &cfg.AlphaVantageAPIKey)
	envString("REDDIT_SUBREDDIT", &cfg.RedditSubreddit)
	envString("REDDIT_USER_AGENT", &cfg.RedditUserAgent)
	envString("TRENDS_TIMEFRAME", &cfg.TrendsTimeframe)
	envString("TRENDS_GEO", &cfg.TrendsGeo)

	envString("DATABASE_URL", &cfg.DatabaseURL)
	envString("REDIS_URL", &cfg.RedisURL)
	envString("METRICS_TEXTFILE", &cfg.MetricsTextfile)
	envString("COLLECT_CRON", &cfg.CollectCron)
	envString("API_KEY", &cfg.APIKey)

	if cfg.AlphaVantageAPIKey == "" {
		log.Println("Warning: ALPHAVANTAGE_API_KEY not set, macro fields will be missing")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, postgres mirror disabled")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, latest-observation cache disabled")
	}

	return cfg, nil
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envPositiveInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	} else {
		log.Printf("Warning: invalid %s=%q, keeping %d", key, v, *dst)
	}
}
