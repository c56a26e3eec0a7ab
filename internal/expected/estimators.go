// Package expected implements the expected-return stage: annualized
// expected return estimators and the table that joins their output.
package expected

import (
	"context"
	"errors"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/montanaflynn/stats"

	"github.com/wonny/frontier/internal/contracts"
)

// TradingDays is the annualization factor for daily prices
const TradingDays = 252

// DefaultEMASpan is the EMA span in trading days
const DefaultEMASpan = 500

// ErrInsufficientData is returned when fewer than two prices are available
var ErrInsufficientData = errors.New("expected return: need at least two prices")

// Method names
const (
	ArithmeticMeanHistorical = "ArithmeticMeanHistorical"
	CAGRMeanHistorical       = "CAGRMeanHistorical"
	EMAHistorical            = "EMAHistorical"
	LogMeanHistorical        = "LogMeanHistorical"
)

// ArithmeticMean annualizes the arithmetic mean of daily returns
type ArithmeticMean struct {
	Frequency int
}

// Estimate implements contracts.ExpectedReturnEstimator
func (e ArithmeticMean) Estimate(ctx context.Context, prices *contracts.PriceSeries) (map[string]float64, error) {
	return perTicker(prices, prices.Returns(), func(col []float64) (float64, bool) {
		mean, err := stats.Mean(col)
		if err != nil {
			return 0, false
		}
		return mean * float64(frequency(e.Frequency)), true
	})
}

// CAGR is the compound annual growth rate from first to last price
type CAGR struct {
	Frequency int
}

// Estimate implements contracts.ExpectedReturnEstimator
func (e CAGR) Estimate(ctx context.Context, prices *contracts.PriceSeries) (map[string]float64, error) {
	if prices.Len() < 2 {
		return nil, ErrInsufficientData
	}
	periods := float64(prices.Len() - 1)
	out := make(map[string]float64, prices.Width())
	for j, ticker := range prices.Tickers {
		first := prices.Values[0][j]
		last := prices.Values[prices.Len()-1][j]
		if !(first > 0) || !(last > 0) {
			continue
		}
		out[ticker] = math.Pow(last/first, float64(frequency(e.Frequency))/periods) - 1
	}
	return out, nil
}

// EMA annualizes the exponential moving average of daily returns.
// The span shrinks to the number of returns when the window is shorter.
type EMA struct {
	Frequency int
	Span      int
}

// Estimate implements contracts.ExpectedReturnEstimator
func (e EMA) Estimate(ctx context.Context, prices *contracts.PriceSeries) (map[string]float64, error) {
	span := e.Span
	if span <= 0 {
		span = DefaultEMASpan
	}
	return perTicker(prices, prices.Returns(), func(col []float64) (float64, bool) {
		period := span
		if len(col) < period {
			period = len(col)
		}
		if period < 2 {
			mean, err := stats.Mean(col)
			return mean * float64(frequency(e.Frequency)), err == nil
		}
		ema := talib.Ema(col, period)
		return ema[len(ema)-1] * float64(frequency(e.Frequency)), true
	})
}

// LogMean annualizes the mean of daily log returns
type LogMean struct {
	Frequency int
}

// Estimate implements contracts.ExpectedReturnEstimator
func (e LogMean) Estimate(ctx context.Context, prices *contracts.PriceSeries) (map[string]float64, error) {
	return perTicker(prices, prices.LogReturns(), func(col []float64) (float64, bool) {
		mean, err := stats.Mean(col)
		if err != nil {
			return 0, false
		}
		return mean * float64(frequency(e.Frequency)), true
	})
}

// perTicker applies fn to each ticker's return column.
// Tickers with an invalid return or result are left out.
func perTicker(prices *contracts.PriceSeries, returns [][]float64, fn func([]float64) (float64, bool)) (map[string]float64, error) {
	if len(returns) == 0 {
		return nil, ErrInsufficientData
	}
	out := make(map[string]float64, prices.Width())
	for j, ticker := range prices.Tickers {
		col := make([]float64, 0, len(returns))
		ok := true
		for _, row := range returns {
			v := row[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
			col = append(col, v)
		}
		if !ok {
			continue
		}
		if v, ok := fn(col); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[ticker] = v
		}
	}
	return out, nil
}

func frequency(f int) int {
	if f <= 0 {
		return TradingDays
	}
	return f
}
