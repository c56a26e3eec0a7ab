package commands

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/brain"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/period"
	"github.com/wonny/frontier/internal/pipelineconfig"
)

func TestMatchesKey(t *testing.T) {
	key := artifact.Key{Period: "2024", Stage: contracts.StageRiskModel, Method: "SampleCovariance"}

	tests := []struct {
		name   string
		stage  contracts.Stage
		method string
		want   bool
	}{
		{"whole period", "", "", true},
		{"same stage", contracts.StageRiskModel, "", true},
		{"other stage", contracts.StageOptimization, "", false},
		{"same method", contracts.StageRiskModel, "SampleCovariance", true},
		{"other method", contracts.StageRiskModel, "SemiCovariance", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesKey(key, tt.stage, tt.method))
		})
	}
}

func TestWriteTable(t *testing.T) {
	rows := []contracts.OptimizationRow{
		{
			ExpectedReturnType:   "CAPM",
			RiskModel:            "SampleCovariance",
			Optimizer:            "EqualWeight",
			Weights:              contracts.Weights{{Ticker: "AAA", Value: 0.5}, {Ticker: "BBB", Value: 0.5}},
			ExpectedAnnualReturn: 0.1,
			AnnualVolatility:     0.2,
			SharpeRatio:          0.4,
		},
		contracts.NewErrorRow("CAPM", "SampleCovariance", "MaxSharpe", errors.New("singular")),
	}

	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, contracts.HeaderExpectedReturnType, records[0][0])
	assert.Equal(t, "EqualWeight", records[1][2])
	assert.Equal(t, "MaxSharpe", records[2][2])
}

func TestApplyScheduleFlags(t *testing.T) {
	defer func() { runYears, runMonths, runFrequency = nil, nil, "" }()

	cfg := pipelineconfig.Default()
	runYears = []int{2022, 2023}
	runFrequency = "multiyear"
	require.NoError(t, applyScheduleFlags(cfg))
	assert.Equal(t, []int{2022, 2023}, cfg.Schedule.Years)

	runFrequency = "weekly"
	err := applyScheduleFlags(cfg)
	assert.True(t, contracts.IsConfigurationError(err))
}

func TestPrintRunResult(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	PrintRunResult(&brain.RunResult{
		Periods: []brain.PeriodResult{
			{Period: period.Yearly(2023), Status: brain.StatusCompleted, RowCount: 12},
			{Period: period.Yearly(2024), Status: brain.StatusSkipped, Reason: "no prices"},
		},
		Warnings: []string{"performance: unknown method Omega"},
	})
	require.NoError(t, w.Close())
	os.Stdout = stdout

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), "2023")
	assert.Contains(t, string(out), "2024")
	assert.Contains(t, string(out), "no prices")
	assert.Contains(t, string(out), "unknown method Omega")
}
