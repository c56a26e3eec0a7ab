package contracts

import (
	"fmt"
	"math"
	"sort"
)

// ExpectedReturnTable joins the output of every successful expected-return
// method on ticker. Missing entries stay unset.
type ExpectedReturnTable struct {
	Methods []string                      `json:"methods"`
	Tickers []string                      `json:"tickers"`
	Values  map[string]map[string]float64 `json:"values"` // method → ticker → value
}

// NewExpectedReturnTable creates an empty table
func NewExpectedReturnTable() *ExpectedReturnTable {
	return &ExpectedReturnTable{Values: make(map[string]map[string]float64)}
}

// AddColumn adds one method's estimates. NaN and infinite values are left unset.
// Tickers not seen before are appended in sorted order.
func (t *ExpectedReturnTable) AddColumn(method string, estimates map[string]float64) {
	if _, exists := t.Values[method]; !exists {
		t.Methods = append(t.Methods, method)
	}

	known := make(map[string]struct{}, len(t.Tickers))
	for _, ticker := range t.Tickers {
		known[ticker] = struct{}{}
	}

	column := make(map[string]float64, len(estimates))
	var added []string
	for ticker, v := range estimates {
		if valid(v) {
			column[ticker] = v
		}
		if _, ok := known[ticker]; !ok {
			added = append(added, ticker)
		}
	}
	sort.Strings(added)
	t.Tickers = append(t.Tickers, added...)
	t.Values[method] = column
}

// Column returns the non-null entries of a method in table ticker order
func (t *ExpectedReturnTable) Column(method string) ([]string, []float64) {
	column, ok := t.Values[method]
	if !ok {
		return nil, nil
	}
	tickers := make([]string, 0, len(column))
	values := make([]float64, 0, len(column))
	for _, ticker := range t.Tickers {
		if v, ok := column[ticker]; ok {
			tickers = append(tickers, ticker)
			values = append(values, v)
		}
	}
	return tickers, values
}

// NonNullCount returns the number of set entries in a method column
func (t *ExpectedReturnTable) NonNullCount(method string) int {
	return len(t.Values[method])
}

// Value returns one entry
func (t *ExpectedReturnTable) Value(method, ticker string) (float64, bool) {
	v, ok := t.Values[method][ticker]
	return v, ok
}

// RiskMatrix is a square symmetric ticker × ticker matrix
type RiskMatrix struct {
	Tickers []string    `json:"tickers"`
	Values  [][]float64 `json:"values"`
}

// SymmetryTolerance is the largest asymmetry NewRiskMatrix silently averages away
const SymmetryTolerance = 1e-8

// NewRiskMatrix validates shape and symmetry. Entries within
// SymmetryTolerance of symmetric are averaged.
func NewRiskMatrix(tickers []string, values [][]float64) (*RiskMatrix, error) {
	n := len(tickers)
	if n == 0 {
		return nil, fmt.Errorf("risk matrix: no tickers")
	}
	if len(values) != n {
		return nil, fmt.Errorf("risk matrix: %d rows for %d tickers", len(values), n)
	}
	out := make([][]float64, n)
	for i := range values {
		if len(values[i]) != n {
			return nil, fmt.Errorf("risk matrix: row %d has %d columns, want %d", i, len(values[i]), n)
		}
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a, b := values[i][j], values[j][i]
			if !valid(a) {
				return nil, fmt.Errorf("risk matrix: invalid entry at (%s, %s)", tickers[i], tickers[j])
			}
			scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
			if math.Abs(a-b) > SymmetryTolerance*scale {
				return nil, fmt.Errorf("risk matrix: not symmetric at (%s, %s)", tickers[i], tickers[j])
			}
			out[i][j] = (a + b) / 2
		}
	}
	names := make([]string, n)
	copy(names, tickers)
	return &RiskMatrix{Tickers: names, Values: out}, nil
}

// Dim returns the matrix dimension
func (m *RiskMatrix) Dim() int {
	return len(m.Tickers)
}

// SameUniverse reports whether the matrix covers exactly the given tickers
func (m *RiskMatrix) SameUniverse(tickers []string) bool {
	if len(tickers) != m.Dim() {
		return false
	}
	index := make(map[string]struct{}, m.Dim())
	for _, t := range m.Tickers {
		index[t] = struct{}{}
	}
	for _, t := range tickers {
		if _, ok := index[t]; !ok {
			return false
		}
	}
	return true
}

// Reorder returns the matrix with rows and columns in the given ticker order
func (m *RiskMatrix) Reorder(tickers []string) (*RiskMatrix, error) {
	pos := make(map[string]int, m.Dim())
	for i, t := range m.Tickers {
		pos[t] = i
	}
	idx := make([]int, len(tickers))
	for k, t := range tickers {
		i, ok := pos[t]
		if !ok {
			return nil, fmt.Errorf("risk matrix: unknown ticker %q", t)
		}
		idx[k] = i
	}
	values := make([][]float64, len(idx))
	for a, i := range idx {
		values[a] = make([]float64, len(idx))
		for b, j := range idx {
			values[a][b] = m.Values[i][j]
		}
	}
	names := make([]string, len(tickers))
	copy(names, tickers)
	return &RiskMatrix{Tickers: names, Values: values}, nil
}
