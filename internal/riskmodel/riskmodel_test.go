package riskmodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/period"
	"github.com/wonny/frontier/internal/pricegen"
	"github.com/wonny/frontier/pkg/logger"
)

func TestModels_ShapeSymmetryPSD(t *testing.T) {
	ctx := context.Background()
	prices := pricegen.Year(2023, 11, "A", "B", "C", "D")

	for name, model := range map[string]contracts.RiskModel{
		SampleCovariance:           Sample{},
		SemiCovariance:             Semi{},
		ExponentialCovariance:      Exponential{},
		LedoitWolfConstantVariance: LedoitWolf{},
	} {
		t.Run(name, func(t *testing.T) {
			m, err := model.Estimate(ctx, prices)
			require.NoError(t, err)
			require.Equal(t, 4, m.Dim())
			assert.Equal(t, prices.Tickers, m.Tickers)

			for i := 0; i < 4; i++ {
				assert.Greater(t, m.Values[i][i], 0.0, "variance must be positive")
				for j := 0; j < 4; j++ {
					assert.Equal(t, m.Values[i][j], m.Values[j][i])
				}
			}

			minEig, err := MinEigenvalue(m)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, minEig, PSDTolerance)
		})
	}
}

func TestSample_MatchesPairwiseCovariance(t *testing.T) {
	prices := pricegen.Year(2022, 5, "A", "B")
	m, err := Sample{}.Estimate(context.Background(), prices)
	require.NoError(t, err)

	returns := prices.Returns()
	a := make([]float64, len(returns))
	b := make([]float64, len(returns))
	for k, row := range returns {
		a[k], b[k] = row[0], row[1]
	}
	assert.InEpsilon(t, stat.Covariance(a, b, nil)*TradingDays, m.Values[0][1], 1e-9)
}

func TestLedoitWolf_ShrinksOffDiagonal(t *testing.T) {
	prices := pricegen.Year(2022, 9, "A", "B", "C")
	sample, err := Sample{}.Estimate(context.Background(), prices)
	require.NoError(t, err)
	shrunk, err := LedoitWolf{}.Estimate(context.Background(), prices)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i != j {
				assert.LessOrEqual(t, abs(shrunk.Values[i][j]), abs(sample.Values[i][j])+1e-9)
			}
		}
	}
}

func TestEnsurePSD(t *testing.T) {
	// eigenvalues 3 and -1
	m, err := contracts.NewRiskMatrix([]string{"A", "B"}, [][]float64{{1, 2}, {2, 1}})
	require.NoError(t, err)

	fixed, nudged, err := EnsurePSD(m)
	require.NoError(t, err)
	assert.True(t, nudged)
	assert.Equal(t, 2.0, fixed.Values[0][1], "off-diagonal is untouched")

	minEig, err := MinEigenvalue(fixed)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, minEig, 0.0)

	ok, nudged, err := EnsurePSD(fixed)
	require.NoError(t, err)
	assert.False(t, nudged)
	assert.Same(t, fixed, ok)
}

func TestModels_InsufficientData(t *testing.T) {
	s, err := contracts.NewPriceSeries(
		[]time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		[]string{"A"}, [][]float64{{1}, {2}},
	)
	require.NoError(t, err)
	_, err = Sample{}.Estimate(context.Background(), s)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestStage_CachesMatrices(t *testing.T) {
	ctx := context.Background()
	p := period.Yearly(2023)
	prices := pricegen.Year(2023, 2, "A", "B", "C")
	cache := artifact.NewCache(artifact.NewFSStore(t.TempDir(), ".json"), artifact.JSONCodec{}, logger.NewNop())

	st := NewStage(&Runner{Registry: NewRegistry(), Cache: cache, Logger: logger.NewNop()})
	methods := []string{SampleCovariance, LedoitWolfConstantVariance}

	first, err := st.Run(ctx, p, prices, methods)
	require.NoError(t, err)
	assert.Equal(t, methods, first.Order)
	assert.Equal(t, 2, first.Invocations)

	second, err := st.Run(ctx, p, prices, methods)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Invocations)
	assert.Equal(t, 2, second.CacheHits)
	assert.Equal(t, first.Outputs[SampleCovariance].Values, second.Outputs[SampleCovariance].Values)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
