package expected

import (
	"context"
	"math"

	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/registry"
	"github.com/wonny/frontier/internal/stage"
)

// Registry resolves expected-return methods by name
type Registry = registry.Registry[contracts.ExpectedReturnEstimator]

// NewRegistry returns a registry with every built-in estimator
func NewRegistry() *Registry {
	reg := registry.New[contracts.ExpectedReturnEstimator]()
	RegisterDefaults(reg)
	return reg
}

// RegisterDefaults registers the built-in estimators
func RegisterDefaults(reg *Registry) {
	reg.MustRegister(ArithmeticMeanHistorical, ArithmeticMean{})
	reg.MustRegister(CAGRMeanHistorical, CAGR{})
	reg.MustRegister(EMAHistorical, EMA{})
	reg.MustRegister(LogMeanHistorical, LogMean{})
}

// Runner is the stage runner specialised for expected returns
type Runner = stage.Runner[contracts.ExpectedReturnEstimator, map[string]float64]

// Stage builds the expected-return table of one period
type Stage struct {
	Runner *Runner
}

// NewStage creates the stage over r; r.Stage is forced to expected_return
func NewStage(r *Runner) *Stage {
	r.Stage = contracts.StageExpectedReturn
	return &Stage{Runner: r}
}

// Run estimates every enabled method and joins the successful columns
// in enabled order
func (s *Stage) Run(ctx context.Context, p contracts.Period, prices *contracts.PriceSeries, methods []string) (*contracts.ExpectedReturnTable, *stage.Result[map[string]float64], error) {
	res, err := s.Runner.Run(ctx, p, methods, func(ctx context.Context, est contracts.ExpectedReturnEstimator) (map[string]float64, error) {
		out, err := est.Estimate(ctx, prices)
		if err != nil {
			return nil, err
		}
		return finite(out), nil
	})
	if err != nil {
		return nil, res, err
	}

	table := contracts.NewExpectedReturnTable()
	for _, method := range res.Order {
		table.AddColumn(method, res.Outputs[method])
	}
	return table, res, nil
}

// finite drops NaN and infinite estimates so the column caches cleanly
func finite(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}
