// Package performance scores every successful allocation over the period's
// price window: return, annualized volatility, Sharpe ratio and extras.
package performance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/wonny/frontier/internal/contracts"
)

// Extra metric names
const (
	MaxDrawdown = "MaxDrawdown"
	Sortino     = "Sortino"
	VaR95       = "HistoricalVaR95"
	CVaR95      = "HistoricalCVaR95"
)

// ErrZeroVolatility is returned when a holding's value never moves
var ErrZeroVolatility = errors.New("performance: zero volatility")

// Drawdown is the largest peak-to-trough fall of the holding value, as a
// positive fraction of the peak
type Drawdown struct{}

// Compute implements contracts.PerformanceMetric
func (Drawdown) Compute(ctx context.Context, h *contracts.Holding) (float64, error) {
	values, err := holdingValues(h)
	if err != nil {
		return 0, err
	}
	peak := values[0]
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst, nil
}

// SortinoRatio is (annualized mean return - rf) / annualized downside deviation
type SortinoRatio struct{}

// Compute implements contracts.PerformanceMetric
func (SortinoRatio) Compute(ctx context.Context, h *contracts.Holding) (float64, error) {
	if len(h.DailyReturns) < 2 {
		return 0, errors.New("performance: need at least two daily returns")
	}
	days := float64(tradingDays(h))
	mean, err := stats.Mean(h.DailyReturns)
	if err != nil {
		return 0, err
	}

	var downside float64
	for _, r := range h.DailyReturns {
		if r < 0 {
			downside += r * r
		}
	}
	dd := math.Sqrt(downside/float64(len(h.DailyReturns))) * math.Sqrt(days)
	if dd == 0 {
		return 0, errors.New("performance: no downside returns")
	}
	return (mean*days - h.RiskFreeRate) / dd, nil
}

// HistoricalVaR is the one-day loss not exceeded with the given confidence,
// read from the sorted daily returns. Losses are positive; a tail without
// losses gives 0.
type HistoricalVaR struct {
	Confidence float64
}

// Compute implements contracts.PerformanceMetric
func (m HistoricalVaR) Compute(ctx context.Context, h *contracts.Holding) (float64, error) {
	sorted, idx, err := tail(h.DailyReturns, m.Confidence)
	if err != nil {
		return 0, err
	}
	return math.Max(0, -sorted[idx]), nil
}

// HistoricalCVaR is the mean loss of the tail at or below the VaR return
// (expected shortfall)
type HistoricalCVaR struct {
	Confidence float64
}

// Compute implements contracts.PerformanceMetric
func (m HistoricalCVaR) Compute(ctx context.Context, h *contracts.Holding) (float64, error) {
	sorted, idx, err := tail(h.DailyReturns, m.Confidence)
	if err != nil {
		return 0, err
	}
	mean, err := stats.Mean(sorted[:idx+1])
	if err != nil {
		return 0, err
	}
	return math.Max(0, -mean), nil
}

// tail sorts returns ascending and locates the (1-confidence) percentile
func tail(returns []float64, confidence float64) ([]float64, int, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, 0, fmt.Errorf("performance: confidence %v outside (0, 1)", confidence)
	}
	if len(returns) == 0 {
		return nil, 0, errors.New("performance: no daily returns")
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted, idx, nil
}

// holdingValues returns the market value of the held shares on every date
func holdingValues(h *contracts.Holding) ([]float64, error) {
	if h.Prices.Empty() {
		return nil, contracts.ErrEmptySeries
	}
	values := make([]float64, h.Prices.Len())
	for j, ticker := range h.Prices.Tickers {
		n := float64(h.Shares[ticker])
		for i := range values {
			values[i] += n * h.Prices.Values[i][j]
		}
	}
	return values, nil
}

func tradingDays(h *contracts.Holding) int {
	if h.TradingDays <= 0 {
		return 252
	}
	return h.TradingDays
}
