package optimizer

import (
	"fmt"
	"math"

	"github.com/wonny/frontier/internal/contracts"
)

const (
	// DustThreshold zeroes weights smaller in magnitude
	DustThreshold = 1e-4
	// WeightDecimals is the rounding applied to every weight
	WeightDecimals = 5
	// SumTolerance bounds |Σw - 1| (or |Σw| for market-neutral short results)
	SumTolerance = 1e-2
)

// Normalize re-orders result weights to tickers, zeroes dust, rounds and
// checks the sum. A result that breaks the invariant returns an error and
// becomes an error row.
func Normalize(res *contracts.OptimizerResult, tickers []string) (contracts.Weights, error) {
	byTicker := make(map[string]float64, len(res.Weights))
	for _, w := range res.Weights {
		if _, dup := byTicker[w.Ticker]; dup {
			return nil, fmt.Errorf("normalize: duplicate weight for %s", w.Ticker)
		}
		byTicker[w.Ticker] = w.Value
	}

	known := make(map[string]struct{}, len(tickers))
	out := make(contracts.Weights, 0, len(tickers))
	scale := math.Pow(10, WeightDecimals)
	for _, t := range tickers {
		known[t] = struct{}{}
		v := byTicker[t]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("normalize: invalid weight %v for %s", v, t)
		}
		if math.Abs(v) < DustThreshold {
			v = 0
		}
		v = math.Round(v*scale) / scale
		if v < 0 && !res.ShortEnabled {
			return nil, fmt.Errorf("normalize: negative weight %v for %s in long-only result", v, t)
		}
		out = append(out, contracts.Weight{Ticker: t, Value: v})
	}
	for t := range byTicker {
		if _, ok := known[t]; !ok {
			return nil, fmt.Errorf("normalize: weight for unknown ticker %s", t)
		}
	}

	sum := out.Sum()
	switch {
	case math.Abs(sum-1) <= SumTolerance:
	case res.ShortEnabled && math.Abs(sum) <= SumTolerance:
	default:
		return nil, fmt.Errorf("normalize: weights sum to %.6f", sum)
	}

	for _, v := range []float64{res.ExpectedAnnualReturn, res.AnnualVolatility, res.SharpeRatio} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("normalize: invalid performance figure %v", v)
		}
	}
	return out, nil
}
