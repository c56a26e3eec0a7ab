package performance

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/period"
	"github.com/wonny/frontier/internal/pricegen"
	"github.com/wonny/frontier/pkg/logger"
)

func date(s string) time.Time {
	t, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func series(t *testing.T) *contracts.PriceSeries {
	t.Helper()
	s, err := contracts.NewPriceSeries(
		[]time.Time{date("2024-01-02"), date("2024-01-03"), date("2024-01-04"), date("2024-01-05")},
		[]string{"A", "B"},
		[][]float64{
			{10, 20},
			{11, 20},
			{9, 21},
			{12, 22},
		},
	)
	require.NoError(t, err)
	return s
}

func row(shares map[string]int64, remaining float64) contracts.OptimizationRow {
	return contracts.OptimizationRow{
		ExpectedReturnType: "Mean", RiskModel: "Sample", Optimizer: "EqualWeight",
		Weights: contracts.Weights{{Ticker: "A", Value: 0.5}, {Ticker: "B", Value: 0.5}},
		Allocations: []contracts.AllocationOutcome{
			{Method: "Greedy", Shares: shares, RemainingCash: remaining},
			{Method: "Floor", Error: "no price"},
		},
	}
}

func newStage(cache *artifact.Cache) *Stage {
	return &Stage{
		Registry:     NewRegistry(),
		Methods:      []string{MaxDrawdown, Sortino},
		Budget:       100,
		RiskFreeRate: 0.02,
		TradingDays:  252,
		Cache:        cache,
		Logger:       logger.NewNop(),
	}
}

func TestClamp(t *testing.T) {
	s := series(t)
	tests := []struct {
		start, end string
		from, to   int
	}{
		{"2024-01-01", "2024-12-31", 0, 3},
		{"2024-01-03", "2024-01-04", 1, 2},
		{"2024-01-03", "2024-02-01", 1, 3},
	}
	for _, tt := range tests {
		from, to := Clamp(s, date(tt.start), date(tt.end))
		assert.Equal(t, tt.from, from, tt.start)
		assert.Equal(t, tt.to, to, tt.end)
	}
}

func TestStage_CapitalWeightedMetrics(t *testing.T) {
	st := newStage(nil)
	// 4 × A + 2 × B = 80 invested of 100
	rows := []contracts.OptimizationRow{row(map[string]int64{"A": 4, "B": 2}, 20)}

	out, err := st.Run(context.Background(), period.Yearly(2024), rows, series(t), date("2024-01-01"), date("2024-12-31"))
	require.NoError(t, err)

	greedy, _ := out[0].Allocation("Greedy")
	require.NotNil(t, greedy.Performance)
	// values: 80, 84, 78, 92
	assert.InDelta(t, (92.0/80-1)*0.8, float64(greedy.Performance.Return), 1e-12)
	assert.Greater(t, float64(greedy.Performance.AnnualizedVolatility), 0.0)

	vol := float64(greedy.Performance.AnnualizedVolatility)
	wantSharpe := ((92.0/80-1)*0.8*252/4 - 0.02) / vol
	assert.InDelta(t, wantSharpe, float64(greedy.Performance.SharpeRatio), 1e-12)

	assert.InDelta(t, (84.0-78)/84, greedy.Performance.Extras[MaxDrawdown], 1e-12)
	assert.Contains(t, greedy.Performance.Extras, Sortino)

	floor, _ := out[0].Allocation("Floor")
	assert.Nil(t, floor.Performance, "failed allocations are not scored")
	assert.Nil(t, rows[0].Allocations[0].Performance, "input rows are not modified")
}

func TestStage_FailureKeepsMetricsUnset(t *testing.T) {
	st := newStage(nil)
	rows := []contracts.OptimizationRow{
		row(map[string]int64{"Z": 1}, 0),
		row(map[string]int64{"A": 1}, 90),
	}

	out, err := st.Run(context.Background(), period.Yearly(2024), rows, series(t), date("2024-01-01"), date("2024-12-31"))
	require.NoError(t, err)

	bad, _ := out[0].Allocation("Greedy")
	assert.Nil(t, bad.Performance)
	good, _ := out[1].Allocation("Greedy")
	assert.NotNil(t, good.Performance)
}

func TestStage_ReportsExtraMetricIssues(t *testing.T) {
	st := newStage(nil)
	st.Registry.MustRegister("Broken", contracts.PerformanceMetricFunc(func(ctx context.Context, h *contracts.Holding) (float64, error) {
		return 0, errors.New("not enough history")
	}))
	st.Methods = []string{MaxDrawdown, "Broken", "Omega"}
	rows := []contracts.OptimizationRow{
		row(map[string]int64{"A": 4, "B": 2}, 20),
		row(map[string]int64{"A": 1}, 90),
	}

	out, err := st.Run(context.Background(), period.Yearly(2024), rows, series(t), date("2024-01-01"), date("2024-12-31"))
	require.NoError(t, err)

	greedy, _ := out[0].Allocation("Greedy")
	require.NotNil(t, greedy.Performance)
	assert.Contains(t, greedy.Performance.Extras, MaxDrawdown)
	assert.NotContains(t, greedy.Performance.Extras, "Broken")

	failures, warnings := st.Issues()
	assert.Equal(t, map[string]string{"Broken": "not enough history"}, failures)
	assert.Equal(t, []string{"unknown method Omega"}, warnings)
}

func TestStage_ZeroRiskFreeRate(t *testing.T) {
	st := newStage(nil)
	st.RiskFreeRate = 0
	rows := []contracts.OptimizationRow{row(map[string]int64{"A": 4, "B": 2}, 20)}

	out, err := st.Run(context.Background(), period.Yearly(2024), rows, series(t), date("2024-01-01"), date("2024-12-31"))
	require.NoError(t, err)

	greedy, _ := out[0].Allocation("Greedy")
	require.NotNil(t, greedy.Performance)
	vol := float64(greedy.Performance.AnnualizedVolatility)
	assert.InDelta(t, (92.0/80-1)*0.8*252/4/vol, float64(greedy.Performance.SharpeRatio), 1e-12)
}

func TestStage_IdempotentWithCacheCleared(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := period.Yearly(2023)
	prices := pricegen.Year(2023, 4, "A", "B", "C")
	rows := []contracts.OptimizationRow{row(map[string]int64{"A": 100, "B": 50, "C": 10}, 12.5)}
	rows[0].Allocations = rows[0].Allocations[:1]

	newCache := func() *artifact.Cache {
		return artifact.NewCache(artifact.NewFSStore(dir, ".json"), artifact.JSONCodec{}, logger.NewNop(),
			artifact.WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }))
	}

	st := newStage(newCache())
	st.Budget = 1_000_000
	first, err := st.Run(ctx, p, rows, prices, p.Start, p.End)
	require.NoError(t, err)
	file := filepath.Join(p.Dir(dir), "performance", "all.json")
	before, err := os.ReadFile(file)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(p.Dir(dir)))

	st.Cache = newCache()
	second, err := st.Run(ctx, p, rows, prices, p.Start, p.End)
	require.NoError(t, err)
	after, err := os.ReadFile(file)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, string(before), string(after))
}

func TestSortino_NoDownside(t *testing.T) {
	h := &contracts.Holding{DailyReturns: []float64{0.01, 0.02}}
	_, err := SortinoRatio{}.Compute(context.Background(), h)
	assert.Error(t, err)

	h.DailyReturns = []float64{0.01, -0.02, 0.03}
	v, err := SortinoRatio{}.Compute(context.Background(), h)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(v))
}

func TestHistoricalVaR(t *testing.T) {
	returns := []float64{-0.05, 0.01, -0.03}
	for len(returns) < 20 {
		returns = append(returns, 0.01)
	}
	h := &contracts.Holding{DailyReturns: returns}
	ctx := context.Background()

	tests := []struct {
		name   string
		metric contracts.PerformanceMetric
		want   float64
	}{
		{"VaR 95", HistoricalVaR{Confidence: 0.95}, 0.03},
		{"CVaR 95", HistoricalCVaR{Confidence: 0.95}, 0.04},
		{"VaR 99 takes the worst day", HistoricalVaR{Confidence: 0.99}, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.metric.Compute(ctx, h)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, v, 1e-12)
		})
	}

	gains := &contracts.Holding{DailyReturns: []float64{0.01, 0.02, 0.03}}
	v, err := HistoricalVaR{Confidence: 0.95}.Compute(ctx, gains)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	_, err = HistoricalCVaR{Confidence: 1.5}.Compute(ctx, h)
	assert.Error(t, err)
	_, err = HistoricalVaR{Confidence: 0.95}.Compute(ctx, &contracts.Holding{})
	assert.Error(t, err)
}
