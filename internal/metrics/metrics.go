// Package metrics holds the Prometheus collectors of the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all pipeline metrics on a private prometheus registry.
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	StageDuration       *prometheus.HistogramVec
	CacheLookups        *prometheus.CounterVec
	StrategyInvocations *prometheus.CounterVec
	Periods             *prometheus.CounterVec
	OptimizationRows    *prometheus.CounterVec
}

// New creates and registers the collectors
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frontier_stage_duration_seconds",
				Help:    "Duration of each pipeline stage per period",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_cache_lookups_total",
				Help: "Artifact cache lookups by stage and result",
			},
			[]string{"stage", "result"},
		),
		StrategyInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_strategy_invocations_total",
				Help: "Strategy invocations by stage, method and status",
			},
			[]string{"stage", "method", "status"},
		),
		Periods: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_periods_total",
				Help: "Processed periods by outcome",
			},
			[]string{"outcome"},
		),
		OptimizationRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_optimization_rows_total",
				Help: "Optimization rows emitted by status",
			},
			[]string{"status"},
		),
	}

	r.reg.MustRegister(
		r.StageDuration,
		r.CacheLookups,
		r.StrategyInvocations,
		r.Periods,
		r.OptimizationRows,
		prometheus.NewGoCollector(),
	)
	return r
}

// Handler exposes the registry over HTTP
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry (tests)
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveCacheLookup implements artifact.Observer
func (r *Registry) ObserveCacheLookup(stage string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookups.WithLabelValues(stage, result).Inc()
}

// ObserveStage records a stage duration
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveStrategy counts one strategy invocation
func (r *Registry) ObserveStrategy(stage, method string, err error) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	r.StrategyInvocations.WithLabelValues(stage, method, status).Inc()
}

// ObservePeriod counts a processed period ("completed", "skipped", "failed")
func (r *Registry) ObservePeriod(outcome string) {
	if r == nil {
		return
	}
	r.Periods.WithLabelValues(outcome).Inc()
}

// ObserveRows counts optimization rows
func (r *Registry) ObserveRows(ok, failed int) {
	if r == nil {
		return
	}
	r.OptimizationRows.WithLabelValues("success").Add(float64(ok))
	r.OptimizationRows.WithLabelValues("error").Add(float64(failed))
}
