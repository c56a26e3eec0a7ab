package contracts

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Column headers of the flat export
const (
	HeaderExpectedReturnType   = "Expected Return Type"
	HeaderRiskModel            = "Risk Model"
	HeaderOptimizer            = "Optimizer"
	HeaderWeights              = "Weights"
	HeaderExpectedAnnualReturn = "Expected Annual Return"
	HeaderAnnualVolatility     = "Annual Volatility"
	HeaderSharpeRatio          = "Sharpe Ratio"
)

// AllocationWeightColumn names the serialized shares column of an allocator
func AllocationWeightColumn(method string) string {
	return "Allocation_" + method + "_weight"
}

// AllocationRemainingColumn names the remaining cash (or error) column of an allocator
func AllocationRemainingColumn(method string) string {
	return "Allocation_" + method + "_remaining_amount"
}

// PerformanceColumn names one performance metric column of an allocator
func PerformanceColumn(method, metric string) string {
	return "Performance_" + method + "_" + metric
}

// FlattenRows renders rows as a flat table. A failed allocator fills only its
// remaining-amount column with the error string; its weight column is left
// absent (empty cell) for that row.
func FlattenRows(rows []OptimizationRow) ([]string, [][]string) {
	header := []string{
		HeaderExpectedReturnType,
		HeaderRiskModel,
		HeaderOptimizer,
		HeaderWeights,
		HeaderExpectedAnnualReturn,
		HeaderAnnualVolatility,
		HeaderSharpeRatio,
	}

	// allocator columns in first-seen order
	var methods []string
	seen := make(map[string]struct{})
	extras := make(map[string]map[string]struct{})
	for _, row := range rows {
		for _, o := range row.Allocations {
			if _, ok := seen[o.Method]; !ok {
				seen[o.Method] = struct{}{}
				methods = append(methods, o.Method)
				extras[o.Method] = make(map[string]struct{})
			}
			if o.Performance != nil {
				for name := range o.Performance.Extras {
					extras[o.Method][name] = struct{}{}
				}
			}
		}
	}

	extraNames := make(map[string][]string, len(methods))
	for _, m := range methods {
		header = append(header, AllocationWeightColumn(m), AllocationRemainingColumn(m))
		header = append(header,
			PerformanceColumn(m, "return"),
			PerformanceColumn(m, "annualized_volatility"),
			PerformanceColumn(m, "sharpe_ratio"),
		)
		names := make([]string, 0, len(extras[m]))
		for name := range extras[m] {
			names = append(names, name)
		}
		sort.Strings(names)
		extraNames[m] = names
		for _, name := range names {
			header = append(header, PerformanceColumn(m, name))
		}
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		weights := row.Weights.String()
		if row.IsError() {
			weights = row.Error
		}
		rec := []string{
			row.ExpectedReturnType,
			row.RiskModel,
			row.Optimizer,
			weights,
			formatMetric(row.ExpectedAnnualReturn),
			formatMetric(row.AnnualVolatility),
			formatMetric(row.SharpeRatio),
		}
		for _, m := range methods {
			o, ok := row.Allocation(m)
			switch {
			case !ok:
				rec = append(rec, "", "")
			case o.Succeeded():
				shares, _ := json.Marshal(o.Shares)
				rec = append(rec, string(shares), strconv.FormatFloat(o.RemainingCash, 'f', 2, 64))
			default:
				rec = append(rec, "", o.Error)
			}

			var perf *PerformanceRecord
			if ok {
				perf = o.Performance
			}
			if perf == nil {
				for i := 0; i < 3+len(extraNames[m]); i++ {
					rec = append(rec, "")
				}
				continue
			}
			rec = append(rec, formatMetric(perf.Return), formatMetric(perf.AnnualizedVolatility), formatMetric(perf.SharpeRatio))
			for _, name := range extraNames[m] {
				if v, ok := perf.Extras[name]; ok {
					rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
				} else {
					rec = append(rec, "")
				}
			}
		}
		records = append(records, rec)
	}

	return header, records
}

func formatMetric(m Metric) string {
	if m.IsNaN() {
		return "NaN"
	}
	return strconv.FormatFloat(m.Float(), 'f', -1, 64)
}
