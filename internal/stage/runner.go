// Package stage implements the generic per-stage runner: iterate enabled
// methods in order, reuse cached outputs, resolve strategies by name and
// record per-method failures without stopping the stage.
package stage

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

// Result is the outcome of one stage for one period
type Result[Out any] struct {
	Stage       contracts.Stage
	Outputs     map[string]Out    // successful methods only
	Order       []string          // successful methods in enabled order
	Failures    map[string]string // method → stringified error
	Warnings    []string          // configuration warnings (unknown or duplicate method)
	Invocations int               // strategy calls made (cache hits excluded)
	CacheHits   int
}

func newResult[Out any](stage contracts.Stage) *Result[Out] {
	return &Result[Out]{
		Stage:    stage,
		Outputs:  make(map[string]Out),
		Failures: make(map[string]string),
	}
}

// Invoke calls one resolved strategy with the stage inputs
type Invoke[S any, Out any] func(ctx context.Context, strategy S) (Out, error)

// Runner runs one stage. Cache, Metrics and Sink are optional;
// with a nil Cache nothing is persisted.
type Runner[S any, Out any] struct {
	Stage    contracts.Stage
	Registry *registry.Registry[S]
	Cache    *artifact.Cache
	Logger   *logger.Logger
	Metrics  *metrics.Registry
	Sink     contracts.ProgressSink
	RunID    string
}

// Run executes methods in order for period p.
// Only context cancellation is returned as an error; strategy errors are
// recorded in Result.Failures. Panics inside a strategy are programming
// errors and are not recovered.
func (r *Runner[S, Out]) Run(ctx context.Context, p contracts.Period, methods []string, invoke Invoke[S, Out]) (*Result[Out], error) {
	res := newResult[Out](r.Stage)
	seen := make(map[string]struct{}, len(methods))

	for _, method := range methods {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		log := r.Logger.WithFields(map[string]interface{}{
			"period": p.StorageKey,
			"stage":  string(r.Stage),
			"method": method,
		})

		if _, dup := seen[method]; dup {
			res.Warnings = append(res.Warnings, "duplicate method "+method+" ignored")
			log.Warn("Duplicate method in enabled list, skipping")
			continue
		}
		seen[method] = struct{}{}

		key := artifact.NewKey(p, r.Stage, method)
		if r.Cache != nil {
			var cached Out
			found, err := r.Cache.Load(ctx, key, &cached)
			if err != nil {
				log.WithError(err).Warn("Cache read failed, recomputing")
			}
			if found {
				res.Outputs[method] = cached
				res.Order = append(res.Order, method)
				res.CacheHits++
				log.Debug("Cache hit")
				continue
			}
		}

		strategy, ok := r.Registry.Lookup(method)
		if !ok {
			res.Warnings = append(res.Warnings, "unknown method "+method)
			log.Warn("Method not registered, skipping")
			continue
		}

		start := time.Now()
		out, err := invoke(ctx, strategy)
		res.Invocations++
		r.Metrics.ObserveStrategy(string(r.Stage), method, err)

		if err != nil {
			if isCancellation(ctx, err) {
				return res, err
			}
			failure := &contracts.StrategyFailure{Stage: r.Stage, Method: method, Err: err}
			res.Failures[method] = err.Error()
			log.WithError(err).Warn("Strategy failed")
			r.publish(contracts.Event{
				Kind:    contracts.EventStrategyFailed,
				Period:  p.StorageKey,
				Stage:   r.Stage,
				Method:  method,
				Message: failure.Error(),
			})
			continue
		}

		if r.Cache != nil {
			if err := r.Cache.Save(ctx, key, out); err != nil {
				log.WithError(err).Warn("Cache write failed")
			}
		}

		res.Outputs[method] = out
		res.Order = append(res.Order, method)
		log.WithField("duration", time.Since(start).String()).Debug("Strategy completed")
	}

	return res, nil
}

func (r *Runner[S, Out]) publish(e contracts.Event) {
	if r.Sink == nil {
		return
	}
	e.RunID = r.RunID
	e.Time = time.Now().UTC()
	r.Sink.Publish(e)
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
