package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/metrics"
	"github.com/wonny/frontier/pkg/logger"
)

// Method is the fixed cache method name of the data stage
const Method = "prices"

// Stage retrieves and cleans the prices of one period
type Stage struct {
	Source  Source
	Cache   *artifact.Cache // optional
	Logger  *logger.Logger
	Metrics *metrics.Registry
	Root    string   // output root; the source sees the period directory
	Tickers []string // empty means every ticker the source has
}

// Run returns the cleaned price series of p.
// Source failures and empty results become a DataUnavailableError so the
// period is skipped; cancellation and configuration errors pass through.
func (s *Stage) Run(ctx context.Context, p contracts.Period) (*contracts.PriceSeries, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	log := s.Logger.WithFields(map[string]interface{}{
		"period": p.StorageKey,
		"stage":  string(contracts.StageData),
	})

	key := artifact.NewKey(p, contracts.StageData, Method)
	if s.Cache != nil {
		var cached contracts.PriceSeries
		found, err := s.Cache.Load(ctx, key, &cached)
		if err != nil {
			log.WithError(err).Warn("Cache read failed, refetching")
		}
		if found && !cached.Empty() {
			log.Debug("Cache hit")
			return &cached, true, nil
		}
	}

	raw, err := s.Source.Fetch(ctx, contracts.FetchRequest{
		Dir:     p.Dir(s.Root),
		Start:   p.Start,
		End:     p.LastDay(),
		Tickers: s.Tickers,
	})
	s.Metrics.ObserveStrategy(string(contracts.StageData), Method, err)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			if ctx.Err() != nil {
				return nil, false, err
			}
		case contracts.IsConfigurationError(err):
			return nil, false, err
		}
		var du *contracts.DataUnavailableError
		if errors.As(err, &du) {
			du.Period = p.StorageKey
			return nil, false, du
		}
		return nil, false, &contracts.DataUnavailableError{Period: p.StorageKey, Err: err}
	}

	prices := raw.Clean()
	if prices.Empty() {
		return nil, false, &contracts.DataUnavailableError{Period: p.StorageKey, Err: contracts.ErrEmptySeries}
	}
	if dropped := raw.Width() - prices.Width(); dropped > 0 {
		log.WithField("dropped", dropped).Info("Dropped tickers without any price")
	}

	if s.Cache != nil {
		if err := s.Cache.Save(ctx, key, prices); err != nil {
			log.WithError(err).Warn("Cache write failed")
		}
	}

	log.WithFields(map[string]interface{}{
		"rows":    prices.Len(),
		"tickers": prices.Width(),
	}).Debug("Prices fetched")
	return prices, false, nil
}

// Describe names the source for logs
func Describe(src Source) string {
	switch s := src.(type) {
	case *BreakerSource:
		return fmt.Sprintf("breaker(%s)", Describe(s.next))
	case *CSVSource:
		return "csv:" + s.path
	case *PostgresSource:
		return "postgres:" + s.table
	default:
		return fmt.Sprintf("%T", src)
	}
}
