package domain

import (
	"strconv"
	"time"
)

// Field names one numeric column of the persisted dataset.
type Field string

const (
	FieldPrice           Field = "price"
	FieldChange24hPct    Field = "change_24h_pct"
	FieldVolume24h       Field = "volume_24h"
	FieldMarketCap       Field = "market_cap"
	FieldRSI             Field = "rsi"
	FieldVolatility      Field = "volatility"
	FieldSMA20           Field = "sma_20"
	FieldGoogleTrendBTC  Field = "google_trend_btc"
	FieldGoogleTrendETH  Field = "google_trend_eth"
	FieldFearGreedIndex  Field = "fear_greed_index"
	FieldRedditSentiment Field = "reddit_sentiment"
	FieldSP500           Field = "SP500"
	FieldGold            Field = "Gold"
	FieldUSDIndex        Field = "USD_Index"
)

// Columns lists the numeric fields in dataset column order.
var Columns = []Field{
	FieldPrice,
	FieldChange24hPct,
	FieldVolume24h,
	FieldMarketCap,
	FieldRSI,
	FieldVolatility,
	FieldSMA20,
	FieldGoogleTrendBTC,
	FieldGoogleTrendETH,
	FieldFearGreedIndex,
	FieldRedditSentiment,
	FieldSP500,
	FieldGold,
	FieldUSDIndex,
}

// EnrichmentColumns are the batch-wide fields filled by enrichers.
var EnrichmentColumns = []Field{
	FieldGoogleTrendBTC,
	FieldGoogleTrendETH,
	FieldFearGreedIndex,
	FieldRedditSentiment,
	FieldSP500,
	FieldGold,
	FieldUSDIndex,
}

// Timestamp is an observation instant. Valid=false marks a value that could
// not be parsed; it is never treated as a missing numeric.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// At returns a valid timestamp normalized to UTC.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC(), Valid: true}
}

// InvalidTimestamp is the marker for unparseable timestamps.
var InvalidTimestamp = Timestamp{}

func (t Timestamp) String() string {
	if !t.Valid {
		return "invalid"
	}
	return t.Time.UTC().Format(time.RFC3339Nano)
}

func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts RFC 3339 instants. Anything else decodes to the
// invalid marker.
func (t *Timestamp) UnmarshalText(b []byte) error {
	parsed, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		*t = InvalidTimestamp
		return nil
	}
	*t = At(parsed)
	return nil
}

// Key identifies one logical observation: (coin, instant).
type Key struct {
	Coin    string
	Instant string
}

// Observation is one coin's state at one timestamp. A nil numeric pointer is
// a missing value.
type Observation struct {
	Timestamp       Timestamp `json:"timestamp"`
	Coin            string    `json:"coin"`
	Price           *float64  `json:"price"`
	Change24hPct    *float64  `json:"change_24h_pct"`
	Volume24h       *float64  `json:"volume_24h"`
	MarketCap       *float64  `json:"market_cap"`
	RSI             *float64  `json:"rsi"`
	Volatility      *float64  `json:"volatility"`
	SMA20           *float64  `json:"sma_20"`
	GoogleTrendBTC  *float64  `json:"google_trend_btc"`
	GoogleTrendETH  *float64  `json:"google_trend_eth"`
	FearGreedIndex  *float64  `json:"fear_greed_index"`
	RedditSentiment *float64  `json:"reddit_sentiment"`
	SP500           *float64  `json:"SP500"`
	Gold            *float64  `json:"Gold"`
	USDIndex        *float64  `json:"USD_Index"`
}

// Key returns the dedup key. Invalid timestamps share one "invalid" instant
// per coin so they never collide with valid rows.
func (o Observation) Key() Key {
	if !o.Timestamp.Valid {
		return Key{Coin: o.Coin, Instant: "invalid"}
	}
	return Key{Coin: o.Coin, Instant: strconv.FormatInt(o.Timestamp.Time.UnixNano(), 10)}
}

func (o *Observation) ref(f Field) **float64 {
	switch f {
	case FieldPrice:
		return &o.Price
	case FieldChange24hPct:
		return &o.Change24hPct
	case FieldVolume24h:
		return &o.Volume24h
	case FieldMarketCap:
		return &o.MarketCap
	case FieldRSI:
		return &o.RSI
	case FieldVolatility:
		return &o.Volatility
	case FieldSMA20:
		return &o.SMA20
	case FieldGoogleTrendBTC:
		return &o.GoogleTrendBTC
	case FieldGoogleTrendETH:
		return &o.GoogleTrendETH
	case FieldFearGreedIndex:
		return &o.FearGreedIndex
	case FieldRedditSentiment:
		return &o.RedditSentiment
	case FieldSP500:
		return &o.SP500
	case FieldGold:
		return &o.Gold
	case FieldUSDIndex:
		return &o.USDIndex
	default:
		return nil
	}
}

// Get returns the value of f, or nil when missing or unknown.
func (o Observation) Get(f Field) *float64 {
	p := o.ref(f)
	if p == nil || *p == nil {
		return nil
	}
	v := **p
	return &v
}

// Set assigns f in place. Unknown fields are ignored.
func (o *Observation) Set(f Field, v *float64) {
	p := o.ref(f)
	if p == nil {
		return
	}
	if v == nil {
		*p = nil
		return
	}
	c := *v
	*p = &c
}

// With returns a copy of o with every field in patch applied.
func (o Observation) With(patch Patch) Observation {
	out := o.clone()
	for f, v := range patch {
		out.Set(f, v)
	}
	return out
}

func (o Observation) clone() Observation {
	out := Observation{Timestamp: o.Timestamp, Coin: o.Coin}
	for _, f := range Columns {
		out.Set(f, o.Get(f))
	}
	return out
}

// Patch is a set of field values produced by one enrichment step. A nil
// value records the field as missing.
type Patch map[Field]*float64

// Missing returns a patch marking every field as missing.
func Missing(fields ...Field) Patch {
	p := make(Patch, len(fields))
	for _, f := range fields {
		p[f] = nil
	}
	return p
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// ApplyPatch returns a new batch with patch merged into every row.
func ApplyPatch(rows []Observation, patch Patch) []Observation {
	out := make([]Observation, len(rows))
	for i, row := range rows {
		out[i] = row.With(patch)
	}
	return out
}

// RunResult summarizes one pipeline invocation.
type RunResult struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	RowsAdded     int       `json:"rows_added"`
	CoinsSkipped  []string  `json:"coins_skipped"`
	DatasetRows   int       `json:"dataset_rows"`
	Replaced      int       `json:"replaced"`
	MissingFields []Field   `json:"missing_fields"`
}
