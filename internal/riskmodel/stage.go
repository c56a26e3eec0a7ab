package riskmodel

import (
	"context"
	"fmt"

	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/registry"
	"github.com/wonny/frontier/internal/stage"
)

// Registry resolves risk models by name
type Registry = registry.Registry[contracts.RiskModel]

// NewRegistry returns a registry with every built-in risk model
func NewRegistry() *Registry {
	reg := registry.New[contracts.RiskModel]()
	RegisterDefaults(reg)
	return reg
}

// RegisterDefaults registers the built-in risk models
func RegisterDefaults(reg *Registry) {
	reg.MustRegister(SampleCovariance, Sample{})
	reg.MustRegister(SemiCovariance, Semi{})
	reg.MustRegister(ExponentialCovariance, Exponential{})
	reg.MustRegister(LedoitWolfConstantVariance, LedoitWolf{})
}

// Runner is the stage runner specialised for risk models
type Runner = stage.Runner[contracts.RiskModel, *contracts.RiskMatrix]

// Stage estimates every enabled risk model of one period
type Stage struct {
	Runner *Runner
}

// NewStage creates the stage over r; r.Stage is forced to risk_model
func NewStage(r *Runner) *Stage {
	r.Stage = contracts.StageRiskModel
	return &Stage{Runner: r}
}

// Run returns the stage result. Every matrix in Outputs has passed EnsurePSD;
// the fixed matrix is what gets cached.
func (s *Stage) Run(ctx context.Context, p contracts.Period, prices *contracts.PriceSeries, methods []string) (*stage.Result[*contracts.RiskMatrix], error) {
	return s.Runner.Run(ctx, p, methods, func(ctx context.Context, model contracts.RiskModel) (*contracts.RiskMatrix, error) {
		m, err := model.Estimate(ctx, prices)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("risk model returned no matrix")
		}
		fixed, nudged, err := EnsurePSD(m)
		if err != nil {
			return nil, err
		}
		if nudged {
			s.Runner.Logger.WithField("period", p.StorageKey).Debug("Risk matrix nudged to positive semidefinite")
		}
		return fixed, nil
	})
}
