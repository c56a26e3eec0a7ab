// Package pricegen produces deterministic synthetic price series
// (geometric Brownian motion on weekdays), for sample data and tests.
package pricegen

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/wonny/frontier/internal/contracts"
)

// Options controls the generated series
type Options struct {
	Tickers []string
	Start   time.Time
	End     time.Time // inclusive
	Seed    uint64
	Drift   float64 // annual
	Vol     float64 // annual
}

// Generate returns one row per weekday in [Start, End].
// Each ticker gets its own drift offset and starting price so columns differ.
func Generate(opts Options) *contracts.PriceSeries {
	drift, vol := opts.Drift, opts.Vol
	if vol == 0 {
		vol = 0.25
	}
	if drift == 0 {
		drift = 0.08
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	dt := 1.0 / 252

	n := len(opts.Tickers)
	last := make([]float64, n)
	mus := make([]float64, n)
	sigmas := make([]float64, n)
	for j := range opts.Tickers {
		last[j] = 20 + rng.Float64()*180
		mus[j] = drift + (rng.Float64()-0.5)*0.2
		sigmas[j] = vol * (0.6 + 0.8*rng.Float64())
	}

	var dates []time.Time
	var values [][]float64
	for d := opts.Start; !d.After(opts.End); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		row := make([]float64, n)
		if len(values) == 0 {
			copy(row, last)
		} else {
			// one shared market shock keeps columns correlated
			market := rng.NormFloat64()
			for j := range row {
				z := 0.5*market + math.Sqrt(0.75)*rng.NormFloat64()
				last[j] *= math.Exp((mus[j]-0.5*sigmas[j]*sigmas[j])*dt + sigmas[j]*math.Sqrt(dt)*z)
				row[j] = math.Round(last[j]*100) / 100
			}
		}
		dates = append(dates, d)
		values = append(values, row)
	}

	tickers := make([]string, n)
	copy(tickers, opts.Tickers)
	return &contracts.PriceSeries{Dates: dates, Tickers: tickers, Values: values}
}

// Year generates a full calendar year of prices
func Year(year int, seed uint64, tickers ...string) *contracts.PriceSeries {
	return Generate(Options{
		Tickers: tickers,
		Start:   time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		Seed:    seed,
	})
}
