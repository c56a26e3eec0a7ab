package contracts

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// PriceSeries is a table of adjusted prices indexed by trading date,
// one column per ticker. Missing values are NaN until Clean is applied.
type PriceSeries struct {
	Dates   []time.Time `json:"dates"`
	Tickers []string    `json:"tickers"`
	Values  [][]float64 `json:"values"` // [date][ticker]
}

// ErrEmptySeries is returned when a price series has no rows or no tickers
var ErrEmptySeries = errors.New("price series is empty")

// NewPriceSeries validates shape and date ordering
func NewPriceSeries(dates []time.Time, tickers []string, values [][]float64) (*PriceSeries, error) {
	if len(values) != len(dates) {
		return nil, fmt.Errorf("price series: %d dates but %d rows", len(dates), len(values))
	}
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		if _, dup := seen[t]; dup {
			return nil, fmt.Errorf("price series: duplicate ticker %q", t)
		}
		seen[t] = struct{}{}
	}
	for i, row := range values {
		if len(row) != len(tickers) {
			return nil, fmt.Errorf("price series: row %d has %d values, want %d", i, len(row), len(tickers))
		}
		if i > 0 && !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("price series: dates not strictly ascending at %s", dates[i].Format(DateLayout))
		}
	}
	return &PriceSeries{Dates: dates, Tickers: tickers, Values: values}, nil
}

// Len returns the number of trading dates
func (s *PriceSeries) Len() int {
	return len(s.Dates)
}

// Width returns the number of tickers
func (s *PriceSeries) Width() int {
	return len(s.Tickers)
}

// Empty reports whether the series has no usable data
func (s *PriceSeries) Empty() bool {
	return s == nil || s.Len() == 0 || s.Width() == 0
}

// TickerIndex returns the column of ticker, or -1
func (s *PriceSeries) TickerIndex(ticker string) int {
	for i, t := range s.Tickers {
		if t == ticker {
			return i
		}
	}
	return -1
}

// Column returns a copy of column j
func (s *PriceSeries) Column(j int) []float64 {
	col := make([]float64, s.Len())
	for i, row := range s.Values {
		col[i] = row[j]
	}
	return col
}

// Latest returns the last row as ticker → price
func (s *PriceSeries) Latest() map[string]float64 {
	latest := make(map[string]float64, s.Width())
	if s.Len() == 0 {
		return latest
	}
	last := s.Values[s.Len()-1]
	for j, t := range s.Tickers {
		latest[t] = last[j]
	}
	return latest
}

// IndexOf returns the row of an exact trading date, or -1
func (s *PriceSeries) IndexOf(date time.Time) int {
	i := sort.Search(len(s.Dates), func(i int) bool { return !s.Dates[i].Before(date) })
	if i < len(s.Dates) && s.Dates[i].Equal(date) {
		return i
	}
	return -1
}

// Returns computes simple daily returns, one row shorter than the series
func (s *PriceSeries) Returns() [][]float64 {
	return s.returns(func(prev, cur float64) float64 { return cur/prev - 1 })
}

// LogReturns computes daily log returns, one row shorter than the series
func (s *PriceSeries) LogReturns() [][]float64 {
	return s.returns(func(prev, cur float64) float64 { return math.Log(cur / prev) })
}

func (s *PriceSeries) returns(fn func(prev, cur float64) float64) [][]float64 {
	if s.Len() < 2 {
		return nil
	}
	out := make([][]float64, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		row := make([]float64, s.Width())
		for j := range s.Tickers {
			row[j] = fn(s.Values[i-1][j], s.Values[i][j])
		}
		out[i-1] = row
	}
	return out
}

// Clean forward-fills then back-fills gaps and drops tickers that have no
// observation at all. The receiver is not modified.
func (s *PriceSeries) Clean() *PriceSeries {
	keep := make([]int, 0, s.Width())
	for j := range s.Tickers {
		for i := range s.Values {
			if valid(s.Values[i][j]) {
				keep = append(keep, j)
				break
			}
		}
	}

	tickers := make([]string, len(keep))
	values := make([][]float64, s.Len())
	for i := range values {
		values[i] = make([]float64, len(keep))
	}

	for k, j := range keep {
		tickers[k] = s.Tickers[j]
		last := math.NaN()
		for i := range s.Values {
			if v := s.Values[i][j]; valid(v) {
				last = v
			}
			values[i][k] = last
		}
		// back-fill leading gap with the first observation
		first := math.NaN()
		for i := range values {
			if valid(values[i][k]) {
				first = values[i][k]
				break
			}
		}
		for i := range values {
			if valid(values[i][k]) {
				break
			}
			values[i][k] = first
		}
	}

	dates := make([]time.Time, s.Len())
	copy(dates, s.Dates)
	return &PriceSeries{Dates: dates, Tickers: tickers, Values: values}
}

// Select returns the series restricted to tickers, in the given order
func (s *PriceSeries) Select(tickers []string) (*PriceSeries, error) {
	idx := make([]int, len(tickers))
	for k, t := range tickers {
		j := s.TickerIndex(t)
		if j < 0 {
			return nil, fmt.Errorf("price series: unknown ticker %q", t)
		}
		idx[k] = j
	}
	values := make([][]float64, s.Len())
	for i, row := range s.Values {
		values[i] = make([]float64, len(idx))
		for k, j := range idx {
			values[i][k] = row[j]
		}
	}
	names := make([]string, len(tickers))
	copy(names, tickers)
	return &PriceSeries{Dates: s.Dates, Tickers: names, Values: values}, nil
}

// Window returns rows [from, to] inclusive
func (s *PriceSeries) Window(from, to int) *PriceSeries {
	return &PriceSeries{
		Dates:   s.Dates[from : to+1],
		Tickers: s.Tickers,
		Values:  s.Values[from : to+1],
	}
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
