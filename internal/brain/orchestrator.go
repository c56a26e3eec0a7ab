package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/frontier/internal/allocation"
	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/data"
	"github.com/wonny/frontier/internal/expected"
	"github.com/wonny/frontier/internal/metrics"
	"github.com/wonny/frontier/internal/optimizer"
	"github.com/wonny/frontier/internal/performance"
	"github.com/wonny/frontier/internal/period"
	"github.com/wonny/frontier/internal/pipelineconfig"
	"github.com/wonny/frontier/internal/riskmodel"
	"github.com/wonny/frontier/pkg/logger"
)

// Period outcomes
const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
)

// Dependencies are the collaborators shared by every run
type Dependencies struct {
	Source      data.Source
	Cache       *artifact.Cache // nil disables caching
	Expected    *expected.Registry
	RiskModels  *riskmodel.Registry
	Optimizers  *optimizer.Registry
	Allocators  *allocation.Registry
	Performance *performance.Registry
	Metrics     *metrics.Registry // optional
	OutputDir   string
}

// DefaultDependencies fills every registry with the built-in strategies
func DefaultDependencies(src data.Source, cache *artifact.Cache, m *metrics.Registry, outputDir string) Dependencies {
	return Dependencies{
		Source:      src,
		Cache:       cache,
		Expected:    expected.NewRegistry(),
		RiskModels:  riskmodel.NewRegistry(),
		Optimizers:  optimizer.NewRegistry(),
		Allocators:  allocation.NewRegistry(),
		Performance: performance.NewRegistry(),
		Metrics:     m,
		OutputDir:   outputDir,
	}
}

// Orchestrator sequences the stages of every period
// ⭐ SSOT: pipeline sequencing lives here only
type Orchestrator struct {
	deps   Dependencies
	logger *logger.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(deps Dependencies, log *logger.Logger) *Orchestrator {
	return &Orchestrator{deps: deps, logger: log}
}

// RunOptions identify one run
type RunOptions struct {
	RunID string                 // generated when empty
	Sink  contracts.ProgressSink // optional
}

// RunResult is the outcome of a whole run
type RunResult struct {
	RunID      string         `json:"run_id"`
	ConfigHash string         `json:"config_hash"`
	Periods    []PeriodResult `json:"periods"`
	Warnings   []string       `json:"warnings,omitempty"`
	Timings    *Timings       `json:"-"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
}

// Completed counts the periods that ran to the end
func (r *RunResult) Completed() int {
	n := 0
	for _, p := range r.Periods {
		if p.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// PeriodResult is the outcome of one period
type PeriodResult struct {
	Period      contracts.Period                      `json:"period"`
	Status      string                                `json:"status"`
	Reason      string                                `json:"reason,omitempty"`
	Rows        []contracts.OptimizationRow           `json:"-"`
	RowCount    int                                   `json:"row_count"`
	ErrorRows   int                                   `json:"error_rows"`
	Failures    map[contracts.Stage]map[string]string `json:"failures,omitempty"`
	Warnings    []string                              `json:"warnings,omitempty"`
	Invocations int                                   `json:"invocations"`
	CacheHits   int                                   `json:"cache_hits"`
}

// run carries the per-run state through the stages
type run struct {
	id      string
	cfg     *pipelineconfig.Config
	sink    contracts.ProgressSink
	timings *Timings
}

// Run executes every scheduled period of cfg in order.
// A ConfigurationError aborts the run before or between periods; a period
// without data is recorded as skipped and the run continues. Cancellation
// is checked between periods.
func (o *Orchestrator) Run(ctx context.Context, cfg *pipelineconfig.Config, opts RunOptions) (*RunResult, error) {
	if err := pipelineconfig.Validate(cfg); err != nil {
		return nil, err
	}
	periods, err := Schedule(cfg)
	if err != nil {
		return nil, err
	}

	r := &run{id: opts.RunID, cfg: cfg, sink: opts.Sink, timings: NewTimings()}
	if r.id == "" {
		r.id = GenerateRunID()
	}
	if r.sink == nil {
		r.sink = contracts.NopSink{}
	}

	hash, err := pipelineconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash pipeline config: %w", err)
	}

	result := &RunResult{
		RunID:      r.id,
		ConfigHash: hash,
		Timings:    r.timings,
		StartedAt:  time.Now().UTC(),
	}
	for _, w := range pipelineconfig.Warn(cfg) {
		result.Warnings = append(result.Warnings, w.Message)
		o.logger.WithField("code", w.Code).Warn(w.Message)
	}

	log := o.logger.WithFields(map[string]interface{}{
		"run_id":  r.id,
		"periods": len(periods),
		"config":  hash[:12],
		"source":  data.Describe(o.deps.Source),
	})
	log.Info("Starting pipeline run")
	r.publish(contracts.Event{Kind: contracts.EventRunStarted, Message: fmt.Sprintf("%d periods", len(periods))})

	for _, p := range periods {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pr, err := o.runPeriod(ctx, r, p)
		switch {
		case err == nil:
			o.deps.Metrics.ObservePeriod(StatusCompleted)
			r.publish(contracts.Event{
				Kind:    contracts.EventPeriodCompleted,
				Period:  p.StorageKey,
				Message: fmt.Sprintf("%d rows, %d errors", pr.RowCount, pr.ErrorRows),
			})
		case contracts.IsDataUnavailable(err):
			pr.Status = StatusSkipped
			pr.Reason = err.Error()
			o.deps.Metrics.ObservePeriod(StatusSkipped)
			o.logger.WithError(err).WithField("period", p.StorageKey).Warn("Period skipped")
			r.publish(contracts.Event{Kind: contracts.EventPeriodSkipped, Period: p.StorageKey, Message: err.Error()})
		default:
			o.deps.Metrics.ObservePeriod("failed")
			result.Periods = append(result.Periods, *pr)
			result.Duration = time.Since(result.StartedAt)
			return result, fmt.Errorf("period %s: %w", p.StorageKey, err)
		}
		result.Periods = append(result.Periods, *pr)
	}

	result.Duration = time.Since(result.StartedAt)
	r.publish(contracts.Event{
		Kind:    contracts.EventRunCompleted,
		Message: fmt.Sprintf("%d/%d periods completed", result.Completed(), len(result.Periods)),
	})
	log.WithFields(map[string]interface{}{
		"completed": result.Completed(),
		"duration":  result.Duration.String(),
	}).Info("Pipeline run completed")

	return result, nil
}

// Schedule expands the schedule section of cfg into periods
func Schedule(cfg *pipelineconfig.Config) ([]contracts.Period, error) {
	freq, err := contracts.ParseFrequency(cfg.Schedule.Frequency)
	if err != nil {
		return nil, err
	}
	return period.Generate(cfg.Schedule.Years, cfg.Schedule.Months, freq)
}

// RunPeriod executes a single period with cfg
func (o *Orchestrator) RunPeriod(ctx context.Context, cfg *pipelineconfig.Config, p contracts.Period, opts RunOptions) (*PeriodResult, error) {
	r := &run{id: opts.RunID, cfg: cfg, sink: opts.Sink, timings: NewTimings()}
	if r.id == "" {
		r.id = GenerateRunID()
	}
	if r.sink == nil {
		r.sink = contracts.NopSink{}
	}
	return o.runPeriod(ctx, r, p)
}

// runPeriod: data → expected returns → risk models → optimization →
// allocation → performance. Only a DataUnavailableError, a
// ConfigurationError or cancellation stops the period; strategy failures
// stay inside the results.
func (o *Orchestrator) runPeriod(ctx context.Context, r *run, p contracts.Period) (*PeriodResult, error) {
	cfg := r.cfg
	pr := &PeriodResult{
		Period:   p,
		Status:   StatusCompleted,
		Failures: make(map[contracts.Stage]map[string]string),
	}
	log := o.logger.WithFields(map[string]interface{}{
		"run_id": r.id,
		"period": p.StorageKey,
	})
	log.Info("Running period")
	r.publish(contracts.Event{Kind: contracts.EventPeriodStarted, Period: p.StorageKey, Message: p.String()})

	// Data
	dataStage := &data.Stage{
		Source:  o.deps.Source,
		Cache:   o.deps.Cache,
		Logger:  o.logger,
		Metrics: o.deps.Metrics,
		Root:    o.deps.OutputDir,
		Tickers: cfg.Data.Tickers,
	}
	var prices *contracts.PriceSeries
	err := o.timed(r, p, contracts.StageData, func() error {
		var hit bool
		var err error
		prices, hit, err = dataStage.Run(ctx, p)
		if hit {
			pr.CacheHits++
		} else if err == nil {
			pr.Invocations++
		}
		return err
	})
	if err != nil {
		return pr, err
	}

	// Expected returns
	expStage := expected.NewStage(&expected.Runner{
		Registry: o.deps.Expected,
		Cache:    o.deps.Cache,
		Logger:   o.logger,
		Metrics:  o.deps.Metrics,
		Sink:     r.sink,
		RunID:    r.id,
	})
	var returns *contracts.ExpectedReturnTable
	err = o.timed(r, p, contracts.StageExpectedReturn, func() error {
		table, res, err := expStage.Run(ctx, p, prices, cfg.ExpectedReturns.EnabledMethods)
		if res != nil {
			pr.absorb(res.Stage, res.Failures, res.Warnings, res.Invocations, res.CacheHits)
		}
		returns = table
		return err
	})
	if err != nil {
		return pr, err
	}

	// Risk models
	riskStage := riskmodel.NewStage(&riskmodel.Runner{
		Registry: o.deps.RiskModels,
		Cache:    o.deps.Cache,
		Logger:   o.logger,
		Metrics:  o.deps.Metrics,
		Sink:     r.sink,
		RunID:    r.id,
	})
	var riskOrder []string
	var matrices map[string]*contracts.RiskMatrix
	err = o.timed(r, p, contracts.StageRiskModel, func() error {
		res, err := riskStage.Run(ctx, p, prices, cfg.RiskModels.EnabledMethods)
		if res != nil {
			pr.absorb(res.Stage, res.Failures, res.Warnings, res.Invocations, res.CacheHits)
			riskOrder, matrices = res.Order, res.Outputs
		}
		return err
	})
	if err != nil {
		return pr, err
	}

	// Optimization
	driver := &optimizer.Driver{
		Registry: o.deps.Optimizers,
		Cache:    o.deps.Cache,
		Logger:   o.logger,
		Metrics:  o.deps.Metrics,
		Sink:     r.sink,
		RunID:    r.id,
	}
	var rows []contracts.OptimizationRow
	err = o.timed(r, p, contracts.StageOptimization, func() error {
		var err error
		rows, err = driver.Calculate(ctx, p, optimizer.SweepInput{
			Returns:      returns,
			RiskOrder:    riskOrder,
			RiskModels:   matrices,
			Prices:       prices,
			Methods:      cfg.Optimization.EnabledMethods,
			RiskFreeRate: cfg.Optimization.RiskFreeRate,
			MonteCarlo: optimizer.MonteCarloConfig{
				Simulations:  cfg.Optimization.MonteCarlo.Simulations,
				Seed:         cfg.Optimization.MonteCarlo.Seed,
				RiskFreeRate: cfg.Optimization.RiskFreeRate,
				TradingDays:  cfg.Performance.TradingDays,
			},
		})
		return err
	})
	if err != nil {
		return pr, err
	}

	// Allocation
	allocStage := &allocation.Stage{
		Registry: o.deps.Allocators,
		Methods:  cfg.Allocation.EnabledMethods,
		Cache:    o.deps.Cache,
		Logger:   o.logger,
		Metrics:  o.deps.Metrics,
		Sink:     r.sink,
		RunID:    r.id,
	}
	err = o.timed(r, p, contracts.StageAllocation, func() error {
		var err error
		rows, err = allocStage.Run(ctx, p, rows, prices.Latest(), cfg.Allocation.Budget)
		return err
	})
	if err != nil {
		return pr, err
	}

	// Performance
	perfStage := &performance.Stage{
		Registry:     o.deps.Performance,
		Methods:      cfg.Performance.EnabledMethods,
		Budget:       cfg.Allocation.Budget,
		RiskFreeRate: cfg.Performance.RiskFreeRate,
		TradingDays:  cfg.Performance.TradingDays,
		Cache:        o.deps.Cache,
		Logger:       o.logger,
		Metrics:      o.deps.Metrics,
		Sink:         r.sink,
		RunID:        r.id,
	}
	err = o.timed(r, p, contracts.StagePerformance, func() error {
		var err error
		rows, err = perfStage.Run(ctx, p, rows, prices, p.Start, p.LastDay())
		return err
	})
	if err != nil {
		return pr, err
	}
	failures, warnings := perfStage.Issues()
	pr.absorb(contracts.StagePerformance, failures, warnings, 0, 0)

	pr.Rows = rows
	pr.RowCount = len(rows)
	for i := range rows {
		if rows[i].IsError() {
			pr.ErrorRows++
		}
	}
	for stage, failures := range pr.Failures {
		if len(failures) == 0 {
			delete(pr.Failures, stage)
		}
	}

	log.WithFields(map[string]interface{}{
		"rows":       pr.RowCount,
		"error_rows": pr.ErrorRows,
		"cache_hits": pr.CacheHits,
	}).Info("Period completed")
	return pr, nil
}

// timed runs fn, records its duration and announces the stage
func (o *Orchestrator) timed(r *run, p contracts.Period, stage contracts.Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	r.timings.Record(p.StorageKey, stage, d)
	o.deps.Metrics.ObserveStage(string(stage), d)
	if err == nil {
		r.publish(contracts.Event{
			Kind:    contracts.EventStageCompleted,
			Period:  p.StorageKey,
			Stage:   stage,
			Message: d.Round(time.Millisecond).String(),
		})
	}
	return err
}

func (pr *PeriodResult) absorb(stage contracts.Stage, failures map[string]string, warnings []string, invocations, hits int) {
	if len(failures) > 0 {
		pr.Failures[stage] = failures
	}
	for _, w := range warnings {
		pr.Warnings = append(pr.Warnings, string(stage)+": "+w)
	}
	pr.Invocations += invocations
	pr.CacheHits += hits
}

func (r *run) publish(e contracts.Event) {
	e.RunID = r.id
	e.Time = time.Now().UTC()
	r.sink.Publish(e)
}

// ErrRunInProgress is returned when a run is requested while another runs
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return fmt.Sprintf("run_%s_%s", time.Now().Format("20060102_150405"), uuid.NewString()[:8])
}
