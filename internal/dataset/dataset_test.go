package dataset

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var (
	t0 = time.Date(2025, 1, 1, 12, 0, 0, 123456000, time.UTC)
	t1 = time.Date(2025, 1, 1, 12, 0, 1, 0, time.UTC)
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(trace.NewNoopTracerProvider().Tracer("test"), filepath.Join(t.TempDir(), "crypto_hourly.csv"))
}

func obs(coin string, at time.Time, price float64) domain.Observation {
	return domain.Observation{Timestamp: domain.At(at), Coin: coin, Price: domain.Float(price)}
}

func TestMergeNewWinsOnSharedKey(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := store.Persist(ctx, []domain.Observation{obs("bitcoin", t0, 50000)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	stats, err := store.Persist(ctx, []domain.Observation{
		obs("bitcoin", t0, 50500),
		obs("ethereum", t1, 3000),
	})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if stats.Replaced != 1 || stats.Added != 1 || stats.Total != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rows, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Coin != "bitcoin" || *rows[0].Price != 50500 || !rows[0].Timestamp.Time.Equal(t0) {
		t.Fatalf("unexpected bitcoin row: %+v", rows[0])
	}
	if rows[1].Coin != "ethereum" || *rows[1].Price != 3000 || !rows[1].Timestamp.Time.Equal(t1) {
		t.Fatalf("unexpected ethereum row: %+v", rows[1])
	}
}

func TestPersistIsIdempotent(t *testing.T) {
	batch := []domain.Observation{obs("bitcoin", t0, 50500), obs("ethereum", t1, 3000)}
	priors := map[string][]domain.Observation{
		"empty":       nil,
		"overlapping": {obs("bitcoin", t0, 1), obs("solana", t0, 150)},
	}

	for name, prior := range priors {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			if prior != nil {
				if _, err := store.Persist(ctx, prior); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}

			if _, err := store.Persist(ctx, batch); err != nil {
				t.Fatalf("first persist: %v", err)
			}
			once, err := os.ReadFile(store.Path())
			if err != nil {
				t.Fatalf("read: %v", err)
			}

			if _, err := store.Persist(ctx, batch); err != nil {
				t.Fatalf("second persist: %v", err)
			}
			twice, err := os.ReadFile(store.Path())
			if err != nil {
				t.Fatalf("read: %v", err)
			}

			if !bytes.Equal(once, twice) {
				t.Fatalf("dataset changed on re-merge:\n%s\n---\n%s", once, twice)
			}
		})
	}
}

func TestRoundTripPreservesValues(t *testing.T) {
	row := domain.Observation{
		Timestamp:       domain.At(t0),
		Coin:            "bitcoin",
		Price:           domain.Float(50123.456789),
		Change24hPct:    domain.Float(-2.75),
		Volume24h:       domain.Float(3.2e10),
		MarketCap:       domain.Float(9.9e11),
		RSI:             domain.Float(61.2345),
		Volatility:      domain.Float(0.00123),
		SMA20:           domain.Float(50000.1),
		FearGreedIndex:  domain.Float(63),
		RedditSentiment: domain.Float(-0.1234),
		USDIndex:        domain.Float(108.69565217391305),
	}

	var buf bytes.Buffer
	if err := Encode(&buf, []domain.Observation{row}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	rows, stats, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || stats.BadValues != 0 || stats.InvalidTimestamps != 0 {
		t.Fatalf("unexpected decode: rows=%d stats=%+v", len(rows), stats)
	}

	got := rows[0]
	if got.Key() != row.Key() {
		t.Fatalf("key changed: %v vs %v", got.Key(), row.Key())
	}
	for _, f := range domain.Columns {
		want, have := row.Get(f), got.Get(f)
		if (want == nil) != (have == nil) {
			t.Fatalf("%s: missing mismatch, want %v have %v", f, want, have)
		}
		if want != nil && math.Abs(*want-*have) > 1e-9 {
			t.Fatalf("%s: want %v have %v", f, *want, *have)
		}
	}
}

func TestDecodeLegacyFile(t *testing.T) {
	legacy := strings.Join([]string{
		"timestamp,coin,price,change_24h_%,volume_24h,market_cap,rsi,volatility,sma_20,google_trend_btc,google_trend_eth,fear_greed_index,reddit_sentiment,SP500,Gold,USD_Index",
		"2025-01-01 12:00:00.123456+00:00,bitcoin,50000.0,1.5,100,1000,55.5,0.01,49000,71,33,63,0.12,512.34,220.5,108.7",
		"not-a-date,ethereum,3000,,,,,,,,,,,,,",
		"2025-01-01 13:00:00,solana,abc,2,,,,,,,,,,,,",
	}, "\n") + "\n"

	rows, stats, err := Decode(strings.NewReader(legacy))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	btc := rows[0]
	if !btc.Timestamp.Valid || !btc.Timestamp.Time.Equal(time.Date(2025, 1, 1, 12, 0, 0, 123456000, time.UTC)) {
		t.Fatalf("unexpected bitcoin timestamp: %v", btc.Timestamp)
	}
	if btc.Change24hPct == nil || *btc.Change24hPct != 1.5 {
		t.Fatalf("legacy change column not mapped: %+v", btc.Change24hPct)
	}

	eth := rows[1]
	if eth.Timestamp.Valid {
		t.Fatalf("expected invalid timestamp marker, got %v", eth.Timestamp)
	}
	if eth.Change24hPct != nil || eth.SP500 != nil {
		t.Fatal("empty cells should be missing")
	}

	sol := rows[2]
	if sol.Price != nil || sol.Change24hPct == nil || *sol.Change24hPct != 2 {
		t.Fatalf("bad numeric should be missing, others kept: %+v", sol)
	}
	if stats.InvalidTimestamps != 1 || stats.BadValues != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestInvalidTimestampsNeverMergeWithValidRows(t *testing.T) {
	invalid := domain.Observation{Timestamp: domain.InvalidTimestamp, Coin: "bitcoin", Price: domain.Float(1)}
	valid := obs("bitcoin", t0, 2)

	merged, _ := Merge([]domain.Observation{invalid}, []domain.Observation{valid})
	if len(merged) != 2 {
		t.Fatalf("expected invalid and valid rows kept apart, got %d", len(merged))
	}

	again, stats := Merge(merged, []domain.Observation{{Timestamp: domain.InvalidTimestamp, Coin: "bitcoin", Price: domain.Float(3)}})
	if len(again) != 2 || stats.Replaced != 1 || *again[0].Price != 3 {
		t.Fatalf("invalid rows for a coin should collapse with last winning: %+v", again)
	}
}

func TestInvalidTimestampSurvivesPersist(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	content := "timestamp,coin,price\ngarbage,bitcoin,1\n"
	if err := os.WriteFile(store.Path(), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := store.Persist(ctx, []domain.Observation{obs("bitcoin", t0, 2)}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "invalid,bitcoin,1") {
		t.Fatalf("expected invalid marker written back, got:\n%s", data)
	}
	rows, err := store.Load(ctx)
	if err != nil || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d err=%v", len(rows), err)
	}
}

func TestPersistQuarantinesCorruptFile(t *testing.T) {
	store := newStore(t)
	store.now = func() time.Time { return time.Unix(1700000000, 0) }
	ctx := context.Background()
	if err := os.WriteFile(store.Path(), []byte("this,is,not\na,dataset,file\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := store.Load(ctx); !errors.Is(err, ErrCorruptDataset) {
		t.Fatalf("expected corrupt dataset error, got %v", err)
	}

	stats, err := store.Persist(ctx, []domain.Observation{obs("bitcoin", t0, 2)})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("expected fresh dataset of 1 row, got %+v", stats)
	}
	if _, err := os.Stat(store.Path() + ".corrupt-1700000000"); err != nil {
		t.Fatalf("expected quarantined file: %v", err)
	}
}

func TestPersistEmptyBatchWritesHeader(t *testing.T) {
	store := newStore(t)
	if _, err := store.Persist(context.Background(), nil); err != nil {
		t.Fatalf("persist: %v", err)
	}
	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) != strings.Join(Header(), ",") {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	rows, err := newStore(t).Load(context.Background())
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected empty dataset, got %d rows err=%v", len(rows), err)
	}
}

func TestPersistLeavesDatasetWorldReadable(t *testing.T) {
	store := newStore(t)
	if _, err := store.Persist(context.Background(), nil); err != nil {
		t.Fatalf("persist: %v", err)
	}
	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected mode 0644, got %v", info.Mode().Perm())
	}
}
