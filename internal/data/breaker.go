package data

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/pkg/logger"
)

// BreakerConfig configures a BreakerSource
type BreakerConfig struct {
	Name        string
	MaxFailures uint32        // consecutive failures that open the circuit
	OpenTimeout time.Duration // open → half-open delay
}

// BreakerSource wraps a Source with a circuit breaker.
// While the circuit is open every Fetch fails fast with a
// DataUnavailableError, so the affected periods are skipped instead of
// hammering a broken backend.
type BreakerSource struct {
	next    Source
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

// NewBreakerSource wraps next
func NewBreakerSource(next Source, cfg BreakerConfig, log *logger.Logger) *BreakerSource {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Name == "" {
		cfg.Name = "price-source"
	}

	b := &BreakerSource{next: next, logger: log}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: b.onStateChange,
		IsSuccessful:  countsAsSuccess,
	})
	return b
}

// Fetch implements Source
func (b *BreakerSource) Fetch(ctx context.Context, req contracts.FetchRequest) (*contracts.PriceSeries, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Fetch(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &contracts.DataUnavailableError{Err: err}
		}
		return nil, err
	}
	return out.(*contracts.PriceSeries), nil
}

// State returns the current circuit state ("closed", "half-open", "open")
func (b *BreakerSource) State() string {
	return b.breaker.State().String()
}

func (b *BreakerSource) onStateChange(name string, from, to gobreaker.State) {
	log := b.logger.WithFields(map[string]interface{}{
		"breaker": name,
		"from":    from.String(),
		"to":      to.String(),
	})

	switch to {
	case gobreaker.StateOpen:
		log.Warn("Price source circuit open, periods will be skipped")
	case gobreaker.StateHalfOpen:
		log.Info("Price source circuit half-open, probing")
	case gobreaker.StateClosed:
		log.Info("Price source circuit closed")
	}
}

// countsAsSuccess keeps "no rows in range", configuration mistakes and
// cancellations from tripping the circuit; only backend failures count.
func countsAsSuccess(err error) bool {
	return err == nil ||
		contracts.IsDataUnavailable(err) ||
		contracts.IsConfigurationError(err) ||
		errors.Is(err, ErrNoTickers) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
