// Package optimizer implements the combinatorial optimization stage: every
// enabled optimizer over every compatible (expected return, risk model) pair.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/wonny/frontier/internal/contracts"
)

// Method names
const (
	MaxSharpe          = "MaxSharpe"
	MinVolatility      = "MinVolatility"
	MinVolatilityShort = "MinVolatilityShort"
	EqualWeight        = "EqualWeight"
	InverseVolatility  = "InverseVolatility"
)

var (
	// ErrSingular is returned when the covariance cannot be factorized
	ErrSingular = errors.New("optimizer: covariance matrix is singular")
	// ErrZeroVolatility is returned when the optimal portfolio has no risk
	ErrZeroVolatility = errors.New("optimizer: portfolio volatility is zero")
	// ErrNoConvergence is returned when the numerical search fails
	ErrNoConvergence = errors.New("optimizer: did not converge")
)

// Sharpe maximizes (μᵀw - rf) / √(wᵀΣw), long-only, fully invested
type Sharpe struct{}

// Optimize implements contracts.Optimizer
func (Sharpe) Optimize(ctx context.Context, in contracts.OptimizerInput) (*contracts.OptimizerResult, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	mu, sigma := vectors(in)
	w, err := minimizeSimplex(len(mu), func(w []float64) float64 {
		ret, vol := portfolioStats(w, mu, sigma)
		if vol <= 0 {
			return math.Inf(1)
		}
		return -(ret - in.RiskFreeRate) / vol
	})
	if err != nil {
		return nil, err
	}
	return result(in, w, mu, sigma, false)
}

// MinVol minimizes √(wᵀΣw), long-only, fully invested
type MinVol struct{}

// Optimize implements contracts.Optimizer
func (MinVol) Optimize(ctx context.Context, in contracts.OptimizerInput) (*contracts.OptimizerResult, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	mu, sigma := vectors(in)
	w, err := minimizeSimplex(len(mu), func(w []float64) float64 {
		var v mat.VecDense
		x := mat.NewVecDense(len(w), w)
		v.MulVec(sigma, x)
		return mat.Dot(x, &v)
	})
	if err != nil {
		return nil, err
	}
	return result(in, w, mu, sigma, false)
}

// MinVolShort is the global minimum-variance portfolio with shorting:
// w = Σ⁻¹1 / 1ᵀΣ⁻¹1, solved with a Cholesky factorization
type MinVolShort struct{}

// Optimize implements contracts.Optimizer
func (MinVolShort) Optimize(ctx context.Context, in contracts.OptimizerInput) (*contracts.OptimizerResult, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	mu, sigma := vectors(in)
	n := len(mu)

	var chol mat.Cholesky
	if ok := chol.Factorize(sigma); !ok {
		return nil, ErrSingular
	}
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, mat.NewVecDense(n, ones)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	sum := mat.Sum(&x)
	if sum == 0 || math.IsNaN(sum) {
		return nil, ErrSingular
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = x.AtVec(i) / sum
	}
	return result(in, w, mu, sigma, true)
}

// Equal gives every ticker 1/n
type Equal struct{}

// Optimize implements contracts.Optimizer
func (Equal) Optimize(ctx context.Context, in contracts.OptimizerInput) (*contracts.OptimizerResult, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	mu, sigma := vectors(in)
	w := make([]float64, len(mu))
	for i := range w {
		w[i] = 1 / float64(len(w))
	}
	return result(in, w, mu, sigma, false)
}

// InverseVol weights tickers by 1/σᵢ
type InverseVol struct{}

// Optimize implements contracts.Optimizer
func (InverseVol) Optimize(ctx context.Context, in contracts.OptimizerInput) (*contracts.OptimizerResult, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	mu, sigma := vectors(in)
	w := make([]float64, len(mu))
	var sum float64
	for i := range w {
		v := sigma.At(i, i)
		if v <= 0 {
			return nil, fmt.Errorf("optimizer: non-positive variance for %s", in.Tickers[i])
		}
		w[i] = 1 / math.Sqrt(v)
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return result(in, w, mu, sigma, false)
}

func checkInput(in contracts.OptimizerInput) error {
	n := len(in.Tickers)
	if n == 0 {
		return errors.New("optimizer: no tickers")
	}
	if len(in.ExpectedReturns) != n {
		return fmt.Errorf("optimizer: %d expected returns for %d tickers", len(in.ExpectedReturns), n)
	}
	if in.Covariance == nil || in.Covariance.Dim() != n {
		return fmt.Errorf("optimizer: covariance does not match %d tickers", n)
	}
	return nil
}

func vectors(in contracts.OptimizerInput) ([]float64, *mat.SymDense) {
	n := len(in.Tickers)
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, in.Covariance.Values[i][j])
		}
	}
	mu := make([]float64, n)
	copy(mu, in.ExpectedReturns)
	return mu, sigma
}

func portfolioStats(w, mu []float64, sigma mat.Symmetric) (float64, float64) {
	x := mat.NewVecDense(len(w), w)
	ret := mat.Dot(x, mat.NewVecDense(len(mu), mu))
	var v mat.VecDense
	v.MulVec(sigma, x)
	variance := mat.Dot(x, &v)
	if variance < 0 {
		variance = 0
	}
	return ret, math.Sqrt(variance)
}

func result(in contracts.OptimizerInput, w, mu []float64, sigma mat.Symmetric, short bool) (*contracts.OptimizerResult, error) {
	ret, vol := portfolioStats(w, mu, sigma)
	if vol <= 0 {
		return nil, ErrZeroVolatility
	}
	weights := make(contracts.Weights, len(w))
	for i, t := range in.Tickers {
		weights[i] = contracts.Weight{Ticker: t, Value: w[i]}
	}
	return &contracts.OptimizerResult{
		Weights:              weights,
		ExpectedAnnualReturn: ret,
		AnnualVolatility:     vol,
		SharpeRatio:          (ret - in.RiskFreeRate) / vol,
		ShortEnabled:         short,
	}, nil
}

// minimizeSimplex minimizes f over the probability simplex by searching an
// unconstrained vector z with w = softmax(z), starting from equal weights
func minimizeSimplex(n int, f func(w []float64) float64) ([]float64, error) {
	if n == 1 {
		return []float64{1}, nil
	}
	w := make([]float64, n)
	problem := optimize.Problem{
		Func: func(z []float64) float64 {
			softmax(w, z)
			return f(w)
		},
	}

	z0 := make([]float64, n)
	settings := &optimize.Settings{
		MajorIterations: 20_000,
		FuncEvaluations: 200_000,
	}
	res, err := optimize.Minimize(problem, z0, settings, &optimize.NelderMead{})
	if res == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}
	if err != nil && !acceptable[res.Status] {
		return nil, fmt.Errorf("%w: status=%v: %v", ErrNoConvergence, res.Status, err)
	}
	if math.IsInf(res.F, 0) || math.IsNaN(res.F) {
		return nil, fmt.Errorf("%w: objective is %v", ErrNoConvergence, res.F)
	}

	out := make([]float64, n)
	softmax(out, res.X)
	return out, nil
}

// iteration and evaluation limits still leave a usable point on the simplex
var acceptable = map[optimize.Status]bool{
	optimize.Success:                 true,
	optimize.FunctionConvergence:     true,
	optimize.MethodConverge:          true,
	optimize.IterationLimit:          true,
	optimize.FunctionEvaluationLimit: true,
}

func softmax(dst, z []float64) {
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}
	var sum float64
	for i, v := range z {
		dst[i] = math.Exp(v - maxZ)
		sum += dst[i]
	}
	for i := range dst {
		dst[i] /= sum
	}
}
