package ta

import (
	"errors"
	"fmt"
	"math"

	"coinpulse/internal/domain"
)

const (
	DefaultMomentumWindow = 14
	DefaultTrendWindow    = 20
)

// ErrInsufficientData means no indicator row could be fully defined from the
// series. Malformed series (empty, unordered, non-positive prices) report it too.
var ErrInsufficientData = errors.New("insufficient data for indicators")

// Engine derives momentum, volatility and trend signals from a price series.
type Engine struct {
	MomentumWindow int
	TrendWindow    int
}

func NewEngine(momentumWindow, trendWindow int) Engine {
	if momentumWindow <= 1 {
		momentumWindow = DefaultMomentumWindow
	}
	if trendWindow <= 0 {
		trendWindow = DefaultTrendWindow
	}
	return Engine{MomentumWindow: momentumWindow, TrendWindow: trendWindow}
}

// Latest returns the most recent point where RSI, volatility and SMA are all
// defined.
func (e Engine) Latest(series domain.PriceSeries) (domain.Indicators, error) {
	if err := validate(series); err != nil {
		return domain.Indicators{}, err
	}

	prices := series.Prices()
	rsi := RSISeries(prices, e.MomentumWindow)
	vol := VolatilitySeries(prices, e.MomentumWindow)
	sma := SMASeries(prices, e.TrendWindow)

	for i := len(prices) - 1; i >= 0; i-- {
		if defined(rsi[i]) && defined(vol[i]) && defined(sma[i]) {
			return domain.Indicators{RSI: rsi[i], Volatility: vol[i], SMA20: sma[i]}, nil
		}
	}
	return domain.Indicators{}, fmt.Errorf("%w: %d samples, need momentum window %d and trend window %d",
		ErrInsufficientData, len(prices), e.MomentumWindow, e.TrendWindow)
}

func validate(series domain.PriceSeries) error {
	if len(series) == 0 {
		return fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	for i, p := range series {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
			return fmt.Errorf("%w: bad price %v at %d", ErrInsufficientData, p.Price, i)
		}
		if i > 0 && !p.Time.After(series[i-1].Time) {
			return fmt.Errorf("%w: non-monotonic timestamp at %d", ErrInsufficientData, i)
		}
	}
	return nil
}
