package domain

import "time"

// PricePoint is one sample of a coin's price history.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// PriceSeries is an ordered short-horizon price history for one coin.
type PriceSeries []PricePoint

// Prices returns the price column.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Price
	}
	return out
}

// Indicators are the latest fully-defined technical signals for one coin.
type Indicators struct {
	RSI        float64
	Volatility float64
	SMA20      float64
}

// CoinMarket is the live market snapshot of a ranked coin.
type CoinMarket struct {
	ID           string   `json:"id"`
	Symbol       string   `json:"symbol"`
	CurrentPrice *float64 `json:"current_price"`
	Change24hPct *float64 `json:"price_change_percentage_24h"`
	TotalVolume  *float64 `json:"total_volume"`
	MarketCap    *float64 `json:"market_cap"`
	Rank         int      `json:"market_cap_rank"`
}
