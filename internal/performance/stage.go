package performance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/metrics"
	"github.com/wonny/frontier/internal/registry"
	"github.com/wonny/frontier/internal/stage"
	"github.com/wonny/frontier/pkg/logger"
)

// Registry resolves extra performance metrics by name
type Registry = registry.Registry[contracts.PerformanceMetric]

// NewRegistry returns a registry with every built-in extra metric
func NewRegistry() *Registry {
	reg := registry.New[contracts.PerformanceMetric]()
	RegisterDefaults(reg)
	return reg
}

// RegisterDefaults registers the built-in extra metrics
func RegisterDefaults(reg *Registry) {
	reg.MustRegister(MaxDrawdown, Drawdown{})
	reg.MustRegister(Sortino, SortinoRatio{})
	reg.MustRegister(VaR95, HistoricalVaR{Confidence: 0.95})
	reg.MustRegister(CVaR95, HistoricalCVaR{Confidence: 0.95})
}

// Stage attaches a PerformanceRecord to every successful allocation.
// Cache, Metrics and Sink are optional.
type Stage struct {
	Registry     *Registry
	Methods      []string // extra metrics
	Budget       float64
	RiskFreeRate float64
	TradingDays  int
	Cache        *artifact.Cache
	Logger       *logger.Logger
	Metrics      *metrics.Registry
	Sink         contracts.ProgressSink
	RunID        string

	failures map[string]string
	warnings []string
}

// Issues returns the extra-metric failures (first error per metric) and the
// configuration warnings of the last Run
func (s *Stage) Issues() (map[string]string, []string) {
	return s.failures, s.warnings
}

func (s *Stage) collect(failures map[string]string, warnings []string) {
	for method, msg := range failures {
		if _, ok := s.failures[method]; !ok {
			s.failures[method] = msg
		}
	}
	for _, w := range warnings {
		seen := false
		for _, have := range s.warnings {
			if have == w {
				seen = true
				break
			}
		}
		if !seen {
			s.warnings = append(s.warnings, w)
		}
	}
}

// Run scores rows over prices between start and end (inclusive).
// Dates absent from the index are clamped to the first or last available date.
func (s *Stage) Run(ctx context.Context, p contracts.Period, rows []contracts.OptimizationRow, prices *contracts.PriceSeries, start, end time.Time) ([]contracts.OptimizationRow, error) {
	log := s.Logger.WithFields(map[string]interface{}{
		"period": p.StorageKey,
		"stage":  string(contracts.StagePerformance),
	})
	key := artifact.NewKey(p, contracts.StagePerformance, artifact.AllMethods)
	s.failures, s.warnings = make(map[string]string), nil

	if s.Cache != nil {
		var cached []contracts.OptimizationRow
		found, err := s.Cache.Load(ctx, key, &cached)
		if err != nil {
			log.WithError(err).Warn("Cache read failed, recomputing")
		}
		if found {
			log.WithField("rows", len(cached)).Debug("Cache hit")
			return cached, nil
		}
	}

	if prices.Empty() {
		return nil, &contracts.DataUnavailableError{Period: p.StorageKey, Err: contracts.ErrEmptySeries}
	}
	from, to := Clamp(prices, start, end)
	window := prices.Window(from, to)

	extras := &stage.Runner[contracts.PerformanceMetric, float64]{
		Stage:    contracts.StagePerformance,
		Registry: s.Registry,
		Logger:   s.Logger,
		Metrics:  s.Metrics,
	}

	out := make([]contracts.OptimizationRow, len(rows))
	scored, failed := 0, 0
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		allocations := make([]contracts.AllocationOutcome, len(row.Allocations))
		copy(allocations, row.Allocations)

		for k := range allocations {
			o := &allocations[k]
			o.Performance = nil
			if !o.Succeeded() {
				continue
			}
			rec, err := s.score(ctx, p, extras, o, window)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				failed++
				log.WithFields(map[string]interface{}{
					"row":    row.Label(),
					"method": o.Method,
				}).WithError(err).Warn("Performance computation failed")
				continue
			}
			o.Performance = rec
			scored++
		}
		row.Allocations = allocations
		out[i] = row
	}

	log.WithFields(map[string]interface{}{
		"scored": scored,
		"failed": failed,
		"from":   window.Dates[0].Format(contracts.DateLayout),
		"to":     window.Dates[window.Len()-1].Format(contracts.DateLayout),
	}).Info("Performance completed")

	if s.Cache != nil {
		if err := s.Cache.Save(ctx, key, out); err != nil {
			log.WithError(err).Warn("Cache write failed")
		}
	}
	return out, nil
}

// Clamp maps start and end to row indexes, falling back to the first and
// last available rows for dates absent from the index
func Clamp(prices *contracts.PriceSeries, start, end time.Time) (int, int) {
	from := prices.IndexOf(start)
	if from < 0 {
		from = 0
	}
	to := prices.IndexOf(end)
	if to < 0 {
		to = prices.Len() - 1
	}
	if to < from {
		from, to = 0, prices.Len()-1
	}
	return from, to
}

func (s *Stage) score(ctx context.Context, p contracts.Period, extras *stage.Runner[contracts.PerformanceMetric, float64], o *contracts.AllocationOutcome, window *contracts.PriceSeries) (*contracts.PerformanceRecord, error) {
	h, err := s.holding(o, window)
	if err != nil {
		return nil, err
	}

	values, err := holdingValues(h)
	if err != nil {
		return nil, err
	}
	if values[0] <= 0 {
		return nil, errors.New("performance: holding has no value at window start")
	}

	invested := (h.Budget - h.RemainingCash) / h.Budget
	ret := (values[len(values)-1]/values[0] - 1) * invested

	if len(h.DailyReturns) < 2 {
		return nil, errors.New("performance: need at least two daily returns")
	}
	sd, err := stats.StandardDeviationSample(h.DailyReturns)
	if err != nil {
		return nil, err
	}
	days := float64(tradingDays(h))
	vol := sd * math.Sqrt(days)
	if vol == 0 || math.IsNaN(vol) {
		return nil, ErrZeroVolatility
	}
	sharpe := (ret*days/float64(window.Len()) - h.RiskFreeRate) / vol

	rec := &contracts.PerformanceRecord{
		Return:               contracts.Metric(ret),
		AnnualizedVolatility: contracts.Metric(vol),
		SharpeRatio:          contracts.Metric(sharpe),
	}

	if len(s.Methods) > 0 {
		res, err := extras.Run(ctx, p, s.Methods, func(ctx context.Context, m contracts.PerformanceMetric) (float64, error) {
			v, err := m.Compute(ctx, h)
			if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
				err = fmt.Errorf("performance: metric is %v", v)
			}
			return v, err
		})
		if err != nil {
			return nil, err
		}
		s.collect(res.Failures, res.Warnings)
		if len(res.Order) > 0 {
			rec.Extras = make(map[string]float64, len(res.Order))
			for _, name := range res.Order {
				rec.Extras[name] = res.Outputs[name]
			}
		}
	}
	return rec, nil
}

// holding builds the metric input: the price window restricted to held
// tickers and the capital-weighted daily returns of the position
func (s *Stage) holding(o *contracts.AllocationOutcome, window *contracts.PriceSeries) (*contracts.Holding, error) {
	tickers := make([]string, 0, len(o.Shares))
	for t, n := range o.Shares {
		if n > 0 {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		return nil, errors.New("performance: allocation holds no shares")
	}
	sort.Strings(tickers)

	sub, err := window.Select(tickers)
	if err != nil {
		return nil, err
	}

	budget := s.Budget
	if budget <= 0 {
		return nil, fmt.Errorf("performance: budget must be positive, got %v", budget)
	}
	h := &contracts.Holding{
		Shares:        o.Shares,
		RemainingCash: o.RemainingCash,
		Budget:        budget,
		Prices:        sub,
		RiskFreeRate:  s.RiskFreeRate,
		TradingDays:   s.TradingDays,
	}
	values, err := holdingValues(h)
	if err != nil {
		return nil, err
	}
	h.DailyReturns = make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			return nil, errors.New("performance: holding value dropped to zero")
		}
		h.DailyReturns = append(h.DailyReturns, values[i]/values[i-1]-1)
	}
	return h, nil
}
