package optimizer

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/metrics"
	"github.com/wonny/frontier/internal/registry"
	"github.com/wonny/frontier/pkg/logger"
)

// Registry resolves optimizers by name
type Registry = registry.Registry[contracts.Optimizer]

// NewRegistry returns a registry with every built-in optimizer
func NewRegistry() *Registry {
	reg := registry.New[contracts.Optimizer]()
	RegisterDefaults(reg)
	return reg
}

// RegisterDefaults registers the built-in optimizers
func RegisterDefaults(reg *Registry) {
	reg.MustRegister(MaxSharpe, Sharpe{})
	reg.MustRegister(MinVolatility, MinVol{})
	reg.MustRegister(MinVolatilityShort, MinVolShort{})
	reg.MustRegister(EqualWeight, Equal{})
	reg.MustRegister(InverseVolatility, InverseVol{})
}

// SweepInput is everything one period's sweep reads
type SweepInput struct {
	Returns      *contracts.ExpectedReturnTable
	RiskOrder    []string                         // successful risk models in enabled order
	RiskModels   map[string]*contracts.RiskMatrix // risk model → matrix
	Prices       *contracts.PriceSeries
	Methods      []string // enabled optimizers in order
	RiskFreeRate float64
	MonteCarlo   MonteCarloConfig
}

// Driver runs the combinatorial sweep for one period.
// Cache, Metrics and Sink are optional.
type Driver struct {
	Registry *Registry
	Cache    *artifact.Cache
	Logger   *logger.Logger
	Metrics  *metrics.Registry
	Sink     contracts.ProgressSink
	RunID    string
}

// Calculate returns the optimization table of period p.
// The whole table is one artifact: a cache hit skips the sweep entirely.
func (d *Driver) Calculate(ctx context.Context, p contracts.Period, in SweepInput) ([]contracts.OptimizationRow, error) {
	log := d.Logger.WithFields(map[string]interface{}{
		"period": p.StorageKey,
		"stage":  string(contracts.StageOptimization),
	})
	key := artifact.NewKey(p, contracts.StageOptimization, artifact.AllMethods)

	if d.Cache != nil {
		var cached []contracts.OptimizationRow
		found, err := d.Cache.Load(ctx, key, &cached)
		if err != nil {
			log.WithError(err).Warn("Cache read failed, recomputing")
		}
		if found {
			log.WithField("rows", len(cached)).Debug("Cache hit")
			return cached, nil
		}
	}

	optimizers, names := d.resolve(log, in.Methods)

	var rows []contracts.OptimizationRow
	if in.MonteCarlo.Simulations > 0 && in.Prices != nil {
		mcRows, err := NewMonteCarloSimulator(in.MonteCarlo).Rows(ctx, in.Prices)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, err
		case err != nil:
			log.WithError(err).Warn("Monte Carlo simulation failed")
		default:
			rows = append(rows, mcRows...)
		}
	}

	for _, returnType := range in.Returns.Methods {
		tickers, mu := in.Returns.Column(returnType)

		for _, riskName := range in.RiskOrder {
			matrix := in.RiskModels[riskName]
			if matrix == nil || matrix.Dim() != len(tickers) || !matrix.SameUniverse(tickers) {
				log.WithFields(map[string]interface{}{
					"expected_return": returnType,
					"risk_model":      riskName,
				}).Debug("Dimension mismatch, pair excluded")
				continue
			}
			cov, err := matrix.Reorder(tickers)
			if err != nil {
				return nil, err
			}

			input := contracts.OptimizerInput{
				Tickers:         tickers,
				ExpectedReturns: mu,
				Covariance:      cov,
				Prices:          in.Prices,
				RiskFreeRate:    in.RiskFreeRate,
			}

			for i, opt := range optimizers {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				row, err := d.solve(ctx, opt, input, returnType, riskName, names[i])
				if err != nil {
					return nil, err
				}
				if row.IsError() {
					failure := &contracts.StrategyFailure{Stage: contracts.StageOptimization, Method: names[i], Err: errors.New(row.Error)}
					log.WithFields(map[string]interface{}{
						"expected_return": returnType,
						"risk_model":      riskName,
						"method":          names[i],
					}).WithError(failure).Warn("Optimizer failed")
					d.publish(contracts.Event{
						Kind:    contracts.EventStrategyFailed,
						Period:  p.StorageKey,
						Stage:   contracts.StageOptimization,
						Method:  names[i],
						Message: failure.Error(),
					})
				}
				rows = append(rows, row)
			}
		}
	}

	failed := 0
	for _, r := range rows {
		if r.IsError() {
			failed++
		}
	}
	d.Metrics.ObserveRows(len(rows)-failed, failed)
	log.WithFields(map[string]interface{}{"rows": len(rows), "failed": failed}).Info("Optimization sweep completed")

	if d.Cache != nil {
		if err := d.Cache.Save(ctx, key, rows); err != nil {
			log.WithError(err).Warn("Cache write failed")
		}
	}
	return rows, nil
}

// resolve drops duplicate and unknown optimizers with a warning
func (d *Driver) resolve(log *logger.Logger, methods []string) ([]contracts.Optimizer, []string) {
	seen := make(map[string]struct{}, len(methods))
	var optimizers []contracts.Optimizer
	var names []string
	for _, m := range methods {
		if _, dup := seen[m]; dup {
			log.WithField("method", m).Warn("Duplicate method in enabled list, skipping")
			continue
		}
		seen[m] = struct{}{}
		opt, ok := d.Registry.Lookup(m)
		if !ok {
			log.WithField("method", m).Warn("Method not registered, skipping")
			continue
		}
		optimizers = append(optimizers, opt)
		names = append(names, m)
	}
	return optimizers, names
}

// solve runs one optimizer; only cancellation is returned as an error
func (d *Driver) solve(ctx context.Context, opt contracts.Optimizer, in contracts.OptimizerInput, returnType, riskModel, name string) (contracts.OptimizationRow, error) {
	start := time.Now()
	res, err := opt.Optimize(ctx, in)
	d.Metrics.ObserveStrategy(string(contracts.StageOptimization), name, err)
	d.Logger.WithFields(map[string]interface{}{
		"expected_return": returnType,
		"risk_model":      riskModel,
		"method":          name,
		"duration":        time.Since(start).String(),
	}).Debug("Optimizer finished")

	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return contracts.OptimizationRow{}, err
		}
		return contracts.NewErrorRow(returnType, riskModel, name, err), nil
	}
	if res == nil {
		return contracts.NewErrorRow(returnType, riskModel, name, errors.New("optimizer returned no result")), nil
	}

	weights, err := Normalize(res, in.Tickers)
	if err != nil {
		return contracts.NewErrorRow(returnType, riskModel, name, err), nil
	}
	return contracts.OptimizationRow{
		ExpectedReturnType:   returnType,
		RiskModel:            riskModel,
		Optimizer:            name,
		Weights:              weights,
		ExpectedAnnualReturn: contracts.Metric(res.ExpectedAnnualReturn),
		AnnualVolatility:     contracts.Metric(res.AnnualVolatility),
		SharpeRatio:          contracts.Metric(res.SharpeRatio),
		ShortEnabled:         res.ShortEnabled,
	}, nil
}

func (d *Driver) publish(e contracts.Event) {
	if d.Sink == nil {
		return
	}
	e.RunID = d.RunID
	e.Time = time.Now().UTC()
	d.Sink.Publish(e)
}
