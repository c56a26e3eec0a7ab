// Package allocation converts optimizer weights into whole share counts
// under a cash budget. All cash arithmetic is carried in decimal.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wonny/frontier/internal/contracts"
)

// Method names
const (
	GreedyPortfolio               = "GreedyPortfolio"
	WeightedFloorAllocator        = "WeightedFloorAllocator"
	ProportionalRoundingAllocator = "ProportionalRoundingAllocator"
	CustomGreedyAllocation        = "CustomGreedyAllocation"
)

var (
	// ErrNegativeWeight is returned for short positions; allocators are long-only
	ErrNegativeWeight = errors.New("allocation: negative weight")
	// ErrInvalidBudget is returned for a non-positive budget
	ErrInvalidBudget = errors.New("allocation: budget must be positive")
)

// position is one ticker to buy, sorted by descending weight
type position struct {
	ticker string
	weight decimal.Decimal
	price  decimal.Decimal
	shares int64
}

// prepare validates inputs and returns positive-weight positions in
// descending weight order (ticker order breaks ties)
func prepare(weights contracts.Weights, latest map[string]float64, budget float64) ([]*position, decimal.Decimal, error) {
	if !(budget > 0) {
		return nil, decimal.Zero, ErrInvalidBudget
	}
	var out []*position
	for _, w := range weights {
		if w.Value < 0 {
			return nil, decimal.Zero, fmt.Errorf("%w: %s=%v", ErrNegativeWeight, w.Ticker, w.Value)
		}
		if w.Value == 0 {
			continue
		}
		price, ok := latest[w.Ticker]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("allocation: no latest price for %s", w.Ticker)
		}
		if !(price > 0) {
			return nil, decimal.Zero, fmt.Errorf("allocation: non-positive price %v for %s", price, w.Ticker)
		}
		out = append(out, &position{
			ticker: w.Ticker,
			weight: decimal.NewFromFloat(w.Value),
			price:  decimal.NewFromFloat(price),
		})
	}
	if len(out) == 0 {
		return nil, decimal.Zero, errors.New("allocation: no positive weights")
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].weight.Cmp(out[j].weight); c != 0 {
			return c > 0
		}
		return out[i].ticker < out[j].ticker
	})
	return out, decimal.NewFromFloat(budget), nil
}

func finish(positions []*position, budget decimal.Decimal) (*contracts.Allocation, error) {
	spent := decimal.Zero
	shares := make(map[string]int64, len(positions))
	for _, p := range positions {
		if p.shares < 0 {
			return nil, fmt.Errorf("allocation: negative share count for %s", p.ticker)
		}
		if p.shares > 0 {
			shares[p.ticker] = p.shares
			spent = spent.Add(p.price.Mul(decimal.NewFromInt(p.shares)))
		}
	}
	remaining := budget.Sub(spent)
	if remaining.IsNegative() {
		return nil, fmt.Errorf("allocation: spent %s over budget %s", spent, budget)
	}
	return &contracts.Allocation{Shares: shares, RemainingCash: remaining.InexactFloat64()}, nil
}

// floorShares returns ⌊cash / price⌋
func floorShares(cash, price decimal.Decimal) int64 {
	return cash.Div(price).Floor().IntPart()
}

// Greedy buys ⌊w·V/p⌋ of every ticker, then spends leftover cash one share
// at a time on the ticker furthest below its target weight
type Greedy struct{}

// Allocate implements contracts.Allocator
func (Greedy) Allocate(ctx context.Context, weights contracts.Weights, latest map[string]float64, budget float64) (*contracts.Allocation, error) {
	positions, total, err := prepare(weights, latest, budget)
	if err != nil {
		return nil, err
	}

	available := total
	for _, p := range positions {
		p.shares = floorShares(p.weight.Mul(total), p.price)
		available = available.Sub(p.price.Mul(decimal.NewFromInt(p.shares)))
	}

	for {
		var pick *position
		var bestDeficit decimal.Decimal
		for _, p := range positions {
			if p.price.GreaterThan(available) {
				continue
			}
			current := p.price.Mul(decimal.NewFromInt(p.shares)).Div(total)
			deficit := p.weight.Sub(current)
			if pick == nil || deficit.GreaterThan(bestDeficit) {
				pick, bestDeficit = p, deficit
			}
		}
		if pick == nil || !bestDeficit.IsPositive() {
			break
		}
		pick.shares++
		available = available.Sub(pick.price)
	}

	return finish(positions, total)
}

// WeightedFloor floors every position, then hands the leftover to tickers
// in descending weight order, as many whole shares as it affords
type WeightedFloor struct{}

// Allocate implements contracts.Allocator
func (WeightedFloor) Allocate(ctx context.Context, weights contracts.Weights, latest map[string]float64, budget float64) (*contracts.Allocation, error) {
	positions, total, err := prepare(weights, latest, budget)
	if err != nil {
		return nil, err
	}

	remaining := total
	for _, p := range positions {
		p.shares = floorShares(p.weight.Mul(total), p.price)
		remaining = remaining.Sub(p.price.Mul(decimal.NewFromInt(p.shares)))
	}
	for _, p := range positions {
		if !remaining.IsPositive() {
			break
		}
		extra := floorShares(remaining, p.price)
		p.shares += extra
		remaining = remaining.Sub(p.price.Mul(decimal.NewFromInt(extra)))
	}

	return finish(positions, total)
}

// ProportionalRounding rounds w·V/p to the nearest share, then sells one
// share at a time from the most overweight ticker until the budget holds
type ProportionalRounding struct{}

// Allocate implements contracts.Allocator
func (ProportionalRounding) Allocate(ctx context.Context, weights contracts.Weights, latest map[string]float64, budget float64) (*contracts.Allocation, error) {
	positions, total, err := prepare(weights, latest, budget)
	if err != nil {
		return nil, err
	}

	spent := decimal.Zero
	for _, p := range positions {
		p.shares = p.weight.Mul(total).Div(p.price).Round(0).IntPart()
		spent = spent.Add(p.price.Mul(decimal.NewFromInt(p.shares)))
	}

	for spent.GreaterThan(total) {
		var pick *position
		var worst decimal.Decimal
		for _, p := range positions {
			if p.shares == 0 {
				continue
			}
			over := p.price.Mul(decimal.NewFromInt(p.shares)).Div(total).Sub(p.weight)
			if pick == nil || over.GreaterThan(worst) {
				pick, worst = p, over
			}
		}
		if pick == nil {
			break
		}
		pick.shares--
		spent = spent.Sub(pick.price)
	}

	return finish(positions, total)
}

// CustomGreedy walks tickers in descending weight order and buys as many
// shares of each as the remaining budget allows
type CustomGreedy struct{}

// Allocate implements contracts.Allocator
func (CustomGreedy) Allocate(ctx context.Context, weights contracts.Weights, latest map[string]float64, budget float64) (*contracts.Allocation, error) {
	positions, total, err := prepare(weights, latest, budget)
	if err != nil {
		return nil, err
	}

	remaining := total
	for _, p := range positions {
		p.shares = floorShares(remaining, p.price)
		remaining = remaining.Sub(p.price.Mul(decimal.NewFromInt(p.shares)))
	}

	return finish(positions, total)
}
