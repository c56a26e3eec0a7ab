package contracts

import (
	"context"
	"time"
)

// Strategy contracts, one per stage (SSOT)
// Strategies are selected by configured name through a registry; the
// pipeline only relies on these signatures.

// FetchRequest asks a price source for one period's prices
type FetchRequest struct {
	Dir     string    // period storage directory
	Start   time.Time // inclusive
	End     time.Time // inclusive
	Tickers []string  // empty means every ticker the source knows
}

// PriceSource is the price-data collaborator
type PriceSource interface {
	Fetch(ctx context.Context, req FetchRequest) (*PriceSeries, error)
}

// ExpectedReturnEstimator estimates an annualized expected return per ticker
type ExpectedReturnEstimator interface {
	Estimate(ctx context.Context, prices *PriceSeries) (map[string]float64, error)
}

// RiskModel estimates an annualized covariance-like matrix
type RiskModel interface {
	Estimate(ctx context.Context, prices *PriceSeries) (*RiskMatrix, error)
}

// OptimizerInput is one solvable (expected return, risk model) pair.
// Tickers, ExpectedReturns and Covariance share the same order.
type OptimizerInput struct {
	Tickers         []string
	ExpectedReturns []float64
	Covariance      *RiskMatrix
	Prices          *PriceSeries
	RiskFreeRate    float64
}

// OptimizerResult is the normalized optimizer output
type OptimizerResult struct {
	Weights              Weights
	ExpectedAnnualReturn float64
	AnnualVolatility     float64
	SharpeRatio          float64
	ShortEnabled         bool
}

// Optimizer turns an expected return vector and covariance into weights
type Optimizer interface {
	Optimize(ctx context.Context, in OptimizerInput) (*OptimizerResult, error)
}

// Allocator converts weights into integer share counts under a budget
type Allocator interface {
	Allocate(ctx context.Context, weights Weights, latest map[string]float64, budget float64) (*Allocation, error)
}

// PerformanceMetric computes one extra score of a holding
type PerformanceMetric interface {
	Compute(ctx context.Context, h *Holding) (float64, error)
}

// Function adapters

type PriceSourceFunc func(ctx context.Context, req FetchRequest) (*PriceSeries, error)

func (f PriceSourceFunc) Fetch(ctx context.Context, req FetchRequest) (*PriceSeries, error) {
	return f(ctx, req)
}

type ExpectedReturnFunc func(ctx context.Context, prices *PriceSeries) (map[string]float64, error)

func (f ExpectedReturnFunc) Estimate(ctx context.Context, prices *PriceSeries) (map[string]float64, error) {
	return f(ctx, prices)
}

type RiskModelFunc func(ctx context.Context, prices *PriceSeries) (*RiskMatrix, error)

func (f RiskModelFunc) Estimate(ctx context.Context, prices *PriceSeries) (*RiskMatrix, error) {
	return f(ctx, prices)
}

type OptimizerFunc func(ctx context.Context, in OptimizerInput) (*OptimizerResult, error)

func (f OptimizerFunc) Optimize(ctx context.Context, in OptimizerInput) (*OptimizerResult, error) {
	return f(ctx, in)
}

type AllocatorFunc func(ctx context.Context, weights Weights, latest map[string]float64, budget float64) (*Allocation, error)

func (f AllocatorFunc) Allocate(ctx context.Context, weights Weights, latest map[string]float64, budget float64) (*Allocation, error) {
	return f(ctx, weights, latest, budget)
}

type PerformanceMetricFunc func(ctx context.Context, h *Holding) (float64, error)

func (f PerformanceMetricFunc) Compute(ctx context.Context, h *Holding) (float64, error) {
	return f(ctx, h)
}
