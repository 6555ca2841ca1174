package ta

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RSISeries returns the rolling-mean RSI for each point. Points before
// index window are NaN. A window with no losses saturates to 100.
func RSISeries(prices []float64, window int) []float64 {
	series := nanSeries(len(prices))
	if window <= 0 || len(prices) <= window {
		return series
	}

	gains := make([]float64, len(prices))
	losses := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gains[i] = math.Max(delta, 0)
		losses[i] = math.Max(-delta, 0)
	}

	for i := window; i < len(prices); i++ {
		avgGain := stat.Mean(gains[i-window+1:i+1], nil)
		avgLoss := stat.Mean(losses[i-window+1:i+1], nil)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return series
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// VolatilitySeries returns the rolling sample standard deviation of
// percentage price changes. Points before index window are NaN.
func VolatilitySeries(prices []float64, window int) []float64 {
	series := nanSeries(len(prices))
	if window <= 1 || len(prices) <= window {
		return series
	}

	changes := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		changes[i] = prices[i]/prices[i-1] - 1
	}

	for i := window; i < len(prices); i++ {
		series[i] = stat.StdDev(changes[i-window+1:i+1], nil)
	}
	return series
}

// SMASeries returns the rolling mean of prices. Points before index
// window-1 are NaN.
func SMASeries(prices []float64, window int) []float64 {
	series := nanSeries(len(prices))
	if window <= 0 || len(prices) < window {
		return series
	}
	for i := window - 1; i < len(prices); i++ {
		series[i] = stat.Mean(prices[i-window+1:i+1], nil)
	}
	return series
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
