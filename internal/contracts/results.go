package contracts

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Metric is a float64 that encodes NaN as JSON null
type Metric float64

// NaN returns a not-a-number Metric
func NaN() Metric {
	return Metric(math.NaN())
}

// IsNaN reports whether the metric is not a number
func (m Metric) IsNaN() bool {
	return math.IsNaN(float64(m))
}

// Float returns the raw value
func (m Metric) Float() float64 {
	return float64(m)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*m = NaN()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Metric(f)
	return nil
}

// Weight is one ticker's portfolio fraction
type Weight struct {
	Ticker string  `json:"ticker"`
	Value  float64 `json:"value"`
}

// Weights is an ordered ticker → fraction mapping
type Weights []Weight

// Sum returns the sum of all fractions
func (w Weights) Sum() float64 {
	var sum float64
	for _, x := range w {
		sum += x.Value
	}
	return sum
}

// Get returns the weight of ticker
func (w Weights) Get(ticker string) (float64, bool) {
	for _, x := range w {
		if x.Ticker == ticker {
			return x.Value, true
		}
	}
	return 0, false
}

// HasNegative reports whether any fraction is below zero
func (w Weights) HasNegative() bool {
	for _, x := range w {
		if x.Value < 0 {
			return true
		}
	}
	return false
}

// String renders the weights in order, e.g. {AAPL: 0.6, MSFT: 0.4}
func (w Weights) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, x := range w {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(x.Ticker)
		b.WriteString(": ")
		b.WriteString(strconv.FormatFloat(x.Value, 'f', -1, 64))
	}
	b.WriteByte('}')
	return b.String()
}

// OptimizationRow is one (expected return type, risk model, optimizer) result.
// Either Weights and the three scalars are set, or Error is set and the
// scalars are NaN.
type OptimizationRow struct {
	ExpectedReturnType   string              `json:"expected_return_type"`
	RiskModel            string              `json:"risk_model"`
	Optimizer            string              `json:"optimizer"`
	Weights              Weights             `json:"weights,omitempty"`
	ExpectedAnnualReturn Metric              `json:"expected_annual_return"`
	AnnualVolatility     Metric              `json:"annual_volatility"`
	SharpeRatio          Metric              `json:"sharpe_ratio"`
	ShortEnabled         bool                `json:"short_enabled,omitempty"`
	Error                string              `json:"error,omitempty"`
	Allocations          []AllocationOutcome `json:"allocations,omitempty"`
}

// NewErrorRow builds the row emitted for a failed optimizer
func NewErrorRow(returnType, riskModel, optimizer string, err error) OptimizationRow {
	return OptimizationRow{
		ExpectedReturnType:   returnType,
		RiskModel:            riskModel,
		Optimizer:            optimizer,
		ExpectedAnnualReturn: NaN(),
		AnnualVolatility:     NaN(),
		SharpeRatio:          NaN(),
		Error:                err.Error(),
	}
}

// IsError reports whether the row records a failed optimization
func (r *OptimizationRow) IsError() bool {
	return r.Error != ""
}

// Label identifies the row in logs
func (r *OptimizationRow) Label() string {
	return r.ExpectedReturnType + "|" + r.RiskModel + "|" + r.Optimizer
}

// Allocation returns the outcome of an allocator on this row
func (r *OptimizationRow) Allocation(method string) (*AllocationOutcome, bool) {
	for i := range r.Allocations {
		if r.Allocations[i].Method == method {
			return &r.Allocations[i], true
		}
	}
	return nil, false
}

// Allocation is an allocator's discrete result
type Allocation struct {
	Shares        map[string]int64 `json:"shares"`
	RemainingCash float64          `json:"remaining_cash"`
}

// AllocationOutcome is one allocator's result attached to a row.
// A failed allocator leaves Shares nil and sets Error.
type AllocationOutcome struct {
	Method        string             `json:"method"`
	Shares        map[string]int64   `json:"shares"`
	RemainingCash float64            `json:"remaining_cash"`
	Error         string             `json:"error,omitempty"`
	Performance   *PerformanceRecord `json:"performance,omitempty"`
}

// Succeeded reports whether the allocator produced shares
func (o *AllocationOutcome) Succeeded() bool {
	return o.Error == "" && o.Shares != nil
}

// PerformanceRecord scores one allocation over the period's prices
type PerformanceRecord struct {
	Return               Metric             `json:"return"`
	AnnualizedVolatility Metric             `json:"annualized_volatility"`
	SharpeRatio          Metric             `json:"sharpe_ratio"`
	Extras               map[string]float64 `json:"extras,omitempty"`
}

// Holding is the input of a performance metric: an allocation evaluated
// over a price window
type Holding struct {
	Shares        map[string]int64
	RemainingCash float64
	Budget        float64
	Prices        *PriceSeries // window, tickers restricted to held instruments
	DailyReturns  []float64    // capital-weighted
	RiskFreeRate  float64
	TradingDays   int
}
