// Package data provides the price-data collaborators of the data stage:
// a wide CSV file, a PostgreSQL table, and a circuit breaker around either.
package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wonny/frontier/internal/contracts"
)

// Source is the price-data collaborator of the data stage
type Source = contracts.PriceSource

// DateColumn is the header of the date column in a wide price CSV
const DateColumn = "Date"

// ErrNoTickers is returned when none of the requested tickers exist
var ErrNoTickers = errors.New("data: no requested ticker in source")

// CSVSource reads a wide CSV file: a Date column followed by one column of
// adjusted prices per ticker. Empty cells are missing values.
// The file is parsed once, on first Fetch.
type CSVSource struct {
	path string

	once   sync.Once
	series *contracts.PriceSeries
	err    error
}

// NewCSVSource creates a source over the file at path
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Fetch returns the rows dated within [req.Start, req.End], restricted to
// req.Tickers when given. Unknown tickers are left out.
func (s *CSVSource) Fetch(ctx context.Context, req contracts.FetchRequest) (*contracts.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.once.Do(func() {
		s.series, s.err = s.load()
	})
	if s.err != nil {
		return nil, s.err
	}

	return slice(s.series, req)
}

func (s *CSVSource) load() (*contracts.PriceSeries, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open price csv: %w", err)
	}
	defer f.Close()

	series, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read price csv %s: %w", s.path, err)
	}
	return series, nil
}

// ReadCSV parses a wide price CSV
func ReadCSV(r io.Reader) (*contracts.PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), DateColumn) {
		return nil, fmt.Errorf("header must start with %q and name at least one ticker", DateColumn)
	}
	tickers := make([]string, len(header)-1)
	for i, h := range header[1:] {
		tickers[i] = strings.TrimSpace(h)
	}

	var (
		dates  []time.Time
		values [][]float64
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := time.Parse(contracts.DateLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q", line, rec[0])
		}

		row := make([]float64, len(tickers))
		for j, cell := range rec[1:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				row[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, %s: invalid price %q", line, tickers[j], cell)
			}
			row[j] = v
		}

		dates = append(dates, date)
		values = append(values, row)
	}

	return contracts.NewPriceSeries(dates, tickers, values)
}

// WriteCSV writes series in the wide layout read by ReadCSV
func WriteCSV(w io.Writer, series *contracts.PriceSeries) error {
	cw := csv.NewWriter(w)

	header := append([]string{DateColumn}, series.Tickers...)
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, len(header))
	for i, date := range series.Dates {
		rec[0] = date.Format(contracts.DateLayout)
		for j, v := range series.Values[i] {
			if math.IsNaN(v) {
				rec[j+1] = ""
			} else {
				rec[j+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// slice cuts the inclusive date range and the requested tickers out of s
func slice(s *contracts.PriceSeries, req contracts.FetchRequest) (*contracts.PriceSeries, error) {
	from, to := -1, -1
	for i, d := range s.Dates {
		if d.Before(req.Start) || d.After(req.End) {
			continue
		}
		if from < 0 {
			from = i
		}
		to = i
	}

	var out *contracts.PriceSeries
	if from < 0 {
		out = &contracts.PriceSeries{Tickers: s.Tickers}
	} else {
		out = s.Window(from, to)
	}

	if len(req.Tickers) == 0 {
		return out, nil
	}

	known := make([]string, 0, len(req.Tickers))
	for _, t := range req.Tickers {
		if s.TickerIndex(t) >= 0 {
			known = append(known, t)
		}
	}
	if len(known) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTickers, strings.Join(req.Tickers, ","))
	}
	return out.Select(known)
}
