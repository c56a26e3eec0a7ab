// Package riskmodel implements the risk-model stage: annualized covariance
// estimators over daily returns, made positive semidefinite before use.
package riskmodel

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/frontier/internal/contracts"
)

// TradingDays is the annualization factor for daily returns
const TradingDays = 252

// DefaultSpan is the exponential covariance span in trading days
const DefaultSpan = 180

// ErrInsufficientData is returned when fewer than two returns are available
var ErrInsufficientData = errors.New("risk model: need at least two returns per ticker")

// Method names
const (
	SampleCovariance           = "SampleCovariance"
	SemiCovariance             = "SemiCovariance"
	ExponentialCovariance      = "ExponentialCovariance"
	LedoitWolfConstantVariance = "LedoitWolfConstantVariance"
)

// Sample is the annualized sample covariance (N-1 denominator)
type Sample struct{}

// Estimate implements contracts.RiskModel
func (Sample) Estimate(ctx context.Context, prices *contracts.PriceSeries) (*contracts.RiskMatrix, error) {
	x, err := returnsMatrix(prices)
	if err != nil {
		return nil, err
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)
	return toRiskMatrix(prices.Tickers, &cov, TradingDays)
}

// Semi is the annualized semicovariance of returns below Benchmark (daily)
type Semi struct {
	Benchmark float64
}

// Estimate implements contracts.RiskModel
func (s Semi) Estimate(ctx context.Context, prices *contracts.PriceSeries) (*contracts.RiskMatrix, error) {
	x, err := returnsMatrix(prices)
	if err != nil {
		return nil, err
	}
	t, n := x.Dims()
	drops := mat.NewDense(t, n, nil)
	drops.Apply(func(_, _ int, v float64) float64 {
		return math.Min(v-s.Benchmark, 0)
	}, x)

	var cov mat.SymDense
	cov.SymOuterK(1/float64(t), drops.T())
	return toRiskMatrix(prices.Tickers, &cov, TradingDays)
}

// Exponential weights recent deviations more heavily.
// Weights decay by (1-alpha) per day with alpha = 2/(span+1).
type Exponential struct {
	Span int
}

// Estimate implements contracts.RiskModel
func (e Exponential) Estimate(ctx context.Context, prices *contracts.PriceSeries) (*contracts.RiskMatrix, error) {
	x, err := returnsMatrix(prices)
	if err != nil {
		return nil, err
	}
	span := e.Span
	if span <= 0 {
		span = DefaultSpan
	}
	t, n := x.Dims()

	alpha := 2 / (float64(span) + 1)
	weights := make([]float64, t)
	var sum float64
	for k := 0; k < t; k++ {
		weights[k] = math.Pow(1-alpha, float64(t-1-k))
		sum += weights[k]
	}
	for k := range weights {
		weights[k] /= sum
	}

	means := make([]float64, n)
	for j := 0; j < n; j++ {
		means[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var acc float64
			for k := 0; k < t; k++ {
				acc += weights[k] * (x.At(k, i) - means[i]) * (x.At(k, j) - means[j])
			}
			cov.SetSym(i, j, acc)
		}
	}
	return toRiskMatrix(prices.Tickers, cov, TradingDays)
}

// LedoitWolf shrinks the sample covariance toward a constant-variance
// target (mean variance times identity) with the Ledoit-Wolf intensity
type LedoitWolf struct{}

// Estimate implements contracts.RiskModel
func (LedoitWolf) Estimate(ctx context.Context, prices *contracts.PriceSeries) (*contracts.RiskMatrix, error) {
	x, err := returnsMatrix(prices)
	if err != nil {
		return nil, err
	}
	t, n := x.Dims()

	// demean
	xc := mat.DenseCopyOf(x)
	for j := 0; j < n; j++ {
		m := stat.Mean(mat.Col(nil, j, x), nil)
		for k := 0; k < t; k++ {
			xc.Set(k, j, xc.At(k, j)-m)
		}
	}

	var s mat.SymDense
	s.SymOuterK(1/float64(t), xc.T())

	mu := mat.Trace(&s) / float64(n)

	// d² = ||S - mu I||² / n
	var d2 float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := s.At(i, j)
			if i == j {
				v -= mu
			}
			d2 += v * v
		}
	}
	d2 /= float64(n)

	// b̄² = Σ_k ||x_k x_kᵀ - S||² / (n T²)
	var b2 float64
	row := make([]float64, n)
	for k := 0; k < t; k++ {
		mat.Row(row, k, xc)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := row[i]*row[j] - s.At(i, j)
				b2 += v * v
			}
		}
	}
	b2 /= float64(n) * float64(t) * float64(t)
	b2 = math.Min(b2, d2)

	shrinkage := 0.0
	if d2 > 0 {
		shrinkage = b2 / d2
	}

	shrunk := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (1 - shrinkage) * s.At(i, j)
			if i == j {
				v += shrinkage * mu
			}
			shrunk.SetSym(i, j, v)
		}
	}
	return toRiskMatrix(prices.Tickers, shrunk, TradingDays)
}

func returnsMatrix(prices *contracts.PriceSeries) (*mat.Dense, error) {
	if prices.Empty() {
		return nil, contracts.ErrEmptySeries
	}
	returns := prices.Returns()
	if len(returns) < 2 {
		return nil, ErrInsufficientData
	}
	n := prices.Width()
	data := make([]float64, 0, len(returns)*n)
	for k, row := range returns {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("risk model: invalid return for %s at row %d", prices.Tickers[j], k)
			}
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(returns), n, data), nil
}

func toRiskMatrix(tickers []string, sym mat.Symmetric, scale float64) (*contracts.RiskMatrix, error) {
	n := sym.SymmetricDim()
	values := make([][]float64, n)
	for i := 0; i < n; i++ {
		values[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			values[i][j] = sym.At(i, j) * scale
		}
	}
	return contracts.NewRiskMatrix(tickers, values)
}
