package expected

import (
	"context"
	"errors"
	"math"
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

func linearSeries(t *testing.T) *contracts.PriceSeries {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 3)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	s, err := contracts.NewPriceSeries(dates, []string{"A", "B"}, [][]float64{
		{100, 50},
		{110, 50},
		{121, 50},
	})
	require.NoError(t, err)
	return s
}

func TestEstimators(t *testing.T) {
	ctx := context.Background()
	prices := linearSeries(t)

	tests := []struct {
		name string
		est  contracts.ExpectedReturnEstimator
		a    float64
	}{
		{"arithmetic", ArithmeticMean{}, 0.1 * TradingDays},
		{"log", LogMean{}, math.Log(1.1) * TradingDays},
		{"cagr", CAGR{}, math.Pow(1.21, TradingDays/2.0) - 1},
		{"ema", EMA{}, 0.1 * TradingDays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.est.Estimate(ctx, prices)
			require.NoError(t, err)
			assert.InEpsilon(t, tt.a, out["A"], 1e-9)
			assert.InDelta(t, 0, out["B"], 1e-12)
		})
	}
}

func TestEstimators_InsufficientData(t *testing.T) {
	s, err := contracts.NewPriceSeries([]time.Time{time.Now()}, []string{"A"}, [][]float64{{1}})
	require.NoError(t, err)

	for name, est := range map[string]contracts.ExpectedReturnEstimator{
		"arithmetic": ArithmeticMean{},
		"cagr":       CAGR{},
		"ema":        EMA{},
		"log":        LogMean{},
	} {
		_, err := est.Estimate(context.Background(), s)
		assert.ErrorIs(t, err, ErrInsufficientData, name)
	}
}

func TestStage_BuildsTableInEnabledOrder(t *testing.T) {
	ctx := context.Background()
	p := period.Yearly(2023)
	prices := pricegen.Year(2023, 3, "AAA", "BBB", "CCC")

	reg := NewRegistry()
	reg.MustRegister("Broken", contracts.ExpectedReturnFunc(func(ctx context.Context, _ *contracts.PriceSeries) (map[string]float64, error) {
		return nil, errors.New("boom")
	}))

	store := artifact.NewFSStore(t.TempDir(), ".json")
	cache := artifact.NewCache(store, artifact.JSONCodec{}, logger.NewNop())

	st := NewStage(&Runner{Registry: reg, Cache: cache, Logger: logger.NewNop()})
	methods := []string{LogMeanHistorical, "Broken", ArithmeticMeanHistorical}

	table, res, err := st.Run(ctx, p, prices, methods)
	require.NoError(t, err)
	assert.Equal(t, []string{LogMeanHistorical, ArithmeticMeanHistorical}, table.Methods)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, table.Tickers)
	assert.Contains(t, res.Failures, "Broken")
	assert.Equal(t, 3, table.NonNullCount(LogMeanHistorical))

	again, res2, err := st.Run(ctx, p, prices, methods)
	require.NoError(t, err)
	assert.Equal(t, 1, res2.Invocations, "only the failed method reruns")
	assert.Equal(t, table.Values, again.Values)
}
