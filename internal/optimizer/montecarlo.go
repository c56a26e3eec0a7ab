package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/frontier/internal/contracts"
)

// Row labels of the Monte Carlo portfolios (all three name fields)
const (
	MonteCarloMaxSharpe = "monte_carlo_max_sharpe_ratio"
	MonteCarloMinVol    = "monte_carlo_min_annual_volatility"
)

// MonteCarloConfig configures the random-portfolio search
type MonteCarloConfig struct {
	Simulations  int
	Seed         uint64 // PCG seed; equal seeds give equal rows
	RiskFreeRate float64
	TradingDays  int
}

// MonteCarloSimulator samples random long-only portfolios from log returns
// and keeps the best Sharpe ratio and the lowest volatility
type MonteCarloSimulator struct {
	config MonteCarloConfig
	rng    *rand.Rand
}

// NewMonteCarloSimulator creates a simulator
func NewMonteCarloSimulator(config MonteCarloConfig) *MonteCarloSimulator {
	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))
	if config.TradingDays <= 0 {
		config.TradingDays = 252
	}
	return &MonteCarloSimulator{config: config, rng: rng}
}

// Rows returns the max-Sharpe and min-volatility rows, in that order
func (mc *MonteCarloSimulator) Rows(ctx context.Context, prices *contracts.PriceSeries) ([]contracts.OptimizationRow, error) {
	if mc.config.Simulations <= 0 {
		return nil, nil
	}
	logReturns := prices.LogReturns()
	if len(logReturns) < 2 {
		return nil, fmt.Errorf("monte carlo: need at least two returns, got %d", len(logReturns))
	}

	n := prices.Width()
	t := len(logReturns)
	data := make([]float64, 0, t*n)
	for _, row := range logReturns {
		data = append(data, row...)
	}
	x := mat.NewDense(t, n, data)

	annual := float64(mc.config.TradingDays)
	mu := make([]float64, n)
	for j := 0; j < n; j++ {
		mu[j] = stat.Mean(mat.Col(nil, j, x), nil) * annual
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)
	cov.ScaleSym(annual, &cov)

	best := struct {
		sharpe, sharpeRet, sharpeVol float64
		sharpeW                      []float64
		vol, volRet                  float64
		volW                         []float64
	}{sharpe: math.Inf(-1), vol: math.Inf(1)}

	w := make([]float64, n)
	for s := 0; s < mc.config.Simulations; s++ {
		if s%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var sum float64
		for i := range w {
			w[i] = mc.rng.Float64()
			sum += w[i]
		}
		for i := range w {
			w[i] /= sum
		}
		ret, vol := portfolioStats(w, mu, &cov)
		if vol <= 0 {
			continue
		}
		if sharpe := (ret - mc.config.RiskFreeRate) / vol; sharpe > best.sharpe {
			best.sharpe, best.sharpeRet, best.sharpeVol = sharpe, ret, vol
			best.sharpeW = append(best.sharpeW[:0], w...)
		}
		if vol < best.vol {
			best.vol, best.volRet = vol, ret
			best.volW = append(best.volW[:0], w...)
		}
	}
	if best.sharpeW == nil {
		return nil, fmt.Errorf("monte carlo: every sampled portfolio has zero volatility")
	}

	return []contracts.OptimizationRow{
		mc.row(MonteCarloMaxSharpe, prices.Tickers, best.sharpeW, best.sharpeRet, best.sharpeVol),
		mc.row(MonteCarloMinVol, prices.Tickers, best.volW, best.volRet, best.vol),
	}, nil
}

func (mc *MonteCarloSimulator) row(label string, tickers []string, w []float64, ret, vol float64) contracts.OptimizationRow {
	res := &contracts.OptimizerResult{
		ExpectedAnnualReturn: ret,
		AnnualVolatility:     vol,
		SharpeRatio:          (ret - mc.config.RiskFreeRate) / vol,
	}
	for i, t := range tickers {
		res.Weights = append(res.Weights, contracts.Weight{Ticker: t, Value: w[i]})
	}
	weights, err := Normalize(res, tickers)
	if err != nil {
		return contracts.NewErrorRow(label, label, label, err)
	}
	return contracts.OptimizationRow{
		ExpectedReturnType:   label,
		RiskModel:            label,
		Optimizer:            label,
		Weights:              weights,
		ExpectedAnnualReturn: contracts.Metric(res.ExpectedAnnualReturn),
		AnnualVolatility:     contracts.Metric(res.AnnualVolatility),
		SharpeRatio:          contracts.Metric(res.SharpeRatio),
	}
}
