package allocation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/metrics"
	"github.com/wonny/frontier/internal/registry"
	"github.com/wonny/frontier/pkg/logger"
)

// CashTolerance bounds |Σ shares·price + remaining - budget|
const CashTolerance = 0.01

// Registry resolves allocators by name
type Registry = registry.Registry[contracts.Allocator]

// NewRegistry returns a registry with every built-in allocator
func NewRegistry() *Registry {
	reg := registry.New[contracts.Allocator]()
	RegisterDefaults(reg)
	return reg
}

// RegisterDefaults registers the built-in allocators
func RegisterDefaults(reg *Registry) {
	reg.MustRegister(GreedyPortfolio, Greedy{})
	reg.MustRegister(WeightedFloorAllocator, WeightedFloor{})
	reg.MustRegister(ProportionalRoundingAllocator, ProportionalRounding{})
	reg.MustRegister(CustomGreedyAllocation, CustomGreedy{})
}

// Stage attaches one outcome per enabled allocator to every row.
// Cache, Metrics and Sink are optional.
type Stage struct {
	Registry *Registry
	Methods  []string
	Cache    *artifact.Cache
	Logger   *logger.Logger
	Metrics  *metrics.Registry
	Sink     contracts.ProgressSink
	RunID    string
}

// Run returns a copy of rows with Allocations filled. Error rows get an
// allocator failure per method without invoking the allocator.
func (s *Stage) Run(ctx context.Context, p contracts.Period, rows []contracts.OptimizationRow, latest map[string]float64, budget float64) ([]contracts.OptimizationRow, error) {
	log := s.Logger.WithFields(map[string]interface{}{
		"period": p.StorageKey,
		"stage":  string(contracts.StageAllocation),
	})
	key := artifact.NewKey(p, contracts.StageAllocation, artifact.AllMethods)

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

	allocators, names := s.resolve(log)

	out := make([]contracts.OptimizationRow, len(rows))
	failures := 0
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row.Allocations = make([]contracts.AllocationOutcome, 0, len(names))

		for k, alloc := range allocators {
			if row.IsError() {
				row.Allocations = append(row.Allocations, contracts.AllocationOutcome{
					Method: names[k],
					Error:  "optimization failed: " + row.Error,
				})
				continue
			}

			outcome, err := s.allocate(ctx, alloc, names[k], row.Weights, latest, budget)
			if err != nil {
				return nil, err
			}
			if !outcome.Succeeded() {
				failures++
				log.WithFields(map[string]interface{}{
					"method": names[k],
					"row":    row.Label(),
				}).Warn("Allocator failed: " + outcome.Error)
				s.publish(contracts.Event{
					Kind:    contracts.EventStrategyFailed,
					Period:  p.StorageKey,
					Stage:   contracts.StageAllocation,
					Method:  names[k],
					Message: outcome.Error,
				})
			}
			row.Allocations = append(row.Allocations, outcome)
		}
		out[i] = row
	}

	log.WithFields(map[string]interface{}{"rows": len(out), "failures": failures}).Info("Allocation completed")

	if s.Cache != nil {
		if err := s.Cache.Save(ctx, key, out); err != nil {
			log.WithError(err).Warn("Cache write failed")
		}
	}
	return out, nil
}

// allocate invokes one allocator and checks the cash invariant.
// Only cancellation is returned as an error.
func (s *Stage) allocate(ctx context.Context, alloc contracts.Allocator, name string, weights contracts.Weights, latest map[string]float64, budget float64) (contracts.AllocationOutcome, error) {
	res, err := alloc.Allocate(ctx, weights, latest, budget)
	if err == nil {
		err = CheckInvariant(res, latest, budget)
	}
	s.Metrics.ObserveStrategy(string(contracts.StageAllocation), name, err)

	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return contracts.AllocationOutcome{}, err
		}
		return contracts.AllocationOutcome{Method: name, Error: err.Error()}, nil
	}
	return contracts.AllocationOutcome{
		Method:        name,
		Shares:        res.Shares,
		RemainingCash: res.RemainingCash,
	}, nil
}

// CheckInvariant verifies non-negative integer shares, non-negative cash and
// Σ shares·price + remaining == budget within CashTolerance
func CheckInvariant(a *contracts.Allocation, latest map[string]float64, budget float64) error {
	if a == nil {
		return errors.New("allocation: allocator returned no result")
	}
	if a.Shares == nil {
		a.Shares = map[string]int64{}
	}
	if a.RemainingCash < -CashTolerance || math.IsNaN(a.RemainingCash) {
		return fmt.Errorf("allocation: negative remaining cash %.2f", a.RemainingCash)
	}
	spent := 0.0
	for ticker, n := range a.Shares {
		if n < 0 {
			return fmt.Errorf("allocation: negative share count %d for %s", n, ticker)
		}
		price, ok := latest[ticker]
		if !ok {
			return fmt.Errorf("allocation: shares of %s without a latest price", ticker)
		}
		spent += float64(n) * price
	}
	if diff := math.Abs(spent + a.RemainingCash - budget); diff > CashTolerance {
		return fmt.Errorf("allocation: cash invariant violated by %.4f", diff)
	}
	return nil
}

func (s *Stage) resolve(log *logger.Logger) ([]contracts.Allocator, []string) {
	seen := make(map[string]struct{}, len(s.Methods))
	var allocators []contracts.Allocator
	var names []string
	for _, m := range s.Methods {
		if _, dup := seen[m]; dup {
			log.WithField("method", m).Warn("Duplicate method in enabled list, skipping")
			continue
		}
		seen[m] = struct{}{}
		a, ok := s.Registry.Lookup(m)
		if !ok {
			log.WithField("method", m).Warn("Method not registered, skipping")
			continue
		}
		allocators = append(allocators, a)
		names = append(names, m)
	}
	return allocators, names
}

func (s *Stage) publish(e contracts.Event) {
	if s.Sink == nil {
		return
	}
	e.RunID = s.RunID
	e.Time = time.Now().UTC()
	s.Sink.Publish(e)
}
