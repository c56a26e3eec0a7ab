package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/frontier/internal/contracts"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerate_MonthlyFullYear(t *testing.T) {
	periods, err := Generate([]int{2024}, nil, contracts.FrequencyMonthly)
	require.NoError(t, err)
	require.Len(t, periods, 12)

	assert.Equal(t, date(2024, 1, 1), periods[0].Start)
	assert.Equal(t, date(2024, 1, 31), periods[0].End)
	assert.Equal(t, date(2024, 12, 1), periods[11].Start)
	assert.Equal(t, date(2024, 12, 31), periods[11].End)

	// leap year
	assert.Equal(t, date(2024, 2, 29), periods[1].End)

	for i, p := range periods {
		assert.False(t, p.End.Before(p.Start), "period %d", i)
		if i > 0 {
			// contiguous and non-overlapping
			assert.Equal(t, periods[i-1].End.AddDate(0, 0, 1), p.Start, "period %d", i)
		}
	}
	assert.Equal(t, "202401", periods[0].StorageKey)
	assert.Equal(t, "202412", periods[11].StorageKey)
}

func TestGenerate_MonthlySelectedMonths(t *testing.T) {
	periods, err := Generate([]int{2023, 2023}, []int{12, 2, 2}, contracts.FrequencyMonthly)
	require.NoError(t, err)
	require.Len(t, periods, 2)

	assert.Equal(t, date(2023, 2, 28), periods[0].End)
	assert.Equal(t, date(2023, 12, 31), periods[1].End)
}

func TestGenerate_MonthlyInvalidMonth(t *testing.T) {
	_, err := Generate([]int{2024}, []int{13}, contracts.FrequencyMonthly)
	require.Error(t, err)
	assert.True(t, contracts.IsConfigurationError(err))
}

func TestGenerate_Yearly(t *testing.T) {
	periods, err := Generate([]int{2024, 2023}, nil, contracts.FrequencyYearly)
	require.NoError(t, err)

	require.Equal(t, []contracts.Period{
		{Start: date(2023, 1, 1), End: date(2023, 12, 31), Frequency: contracts.FrequencyYearly, StorageKey: "2023"},
		{Start: date(2024, 1, 1), End: date(2024, 12, 31), Frequency: contracts.FrequencyYearly, StorageKey: "2024"},
	}, periods)
}

func TestGenerate_Multiyear(t *testing.T) {
	periods, err := Generate([]int{2022, 2023}, nil, contracts.FrequencyMultiyear)
	require.NoError(t, err)
	require.Len(t, periods, 1)

	p := periods[0]
	assert.Equal(t, date(2022, 1, 1), p.Start)
	assert.Equal(t, date(2024, 1, 1), p.End)
	assert.True(t, p.HalfOpen())
	assert.Equal(t, date(2023, 12, 31), p.LastDay())
	assert.False(t, p.Contains(date(2024, 1, 1)))
	assert.True(t, p.Contains(date(2023, 12, 31)))
	assert.Equal(t, "2022_2024", p.StorageKey)
}

func TestGenerate_MultiyearSingleYear(t *testing.T) {
	_, err := Generate([]int{2024}, nil, contracts.FrequencyMultiyear)
	require.Error(t, err)
	assert.True(t, contracts.IsConfigurationError(err))

	// duplicates do not count as distinct years
	_, err = Generate([]int{2024, 2024}, nil, contracts.FrequencyMultiyear)
	assert.True(t, contracts.IsConfigurationError(err))
}

func TestGenerate_UnknownFrequency(t *testing.T) {
	_, err := Generate([]int{2024}, nil, contracts.Frequency("weekly"))
	require.Error(t, err)
	assert.True(t, contracts.IsConfigurationError(err))
}

func TestGenerate_NoYears(t *testing.T) {
	_, err := Generate(nil, nil, contracts.FrequencyYearly)
	assert.True(t, contracts.IsConfigurationError(err))
}

func TestGenerate_StableKeys(t *testing.T) {
	a, err := Generate([]int{2021, 2022}, []int{3}, contracts.FrequencyMonthly)
	require.NoError(t, err)
	b, err := Generate([]int{2022, 2021}, []int{3}, contracts.FrequencyMonthly)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	p, ok := Find(a, "202203")
	require.True(t, ok)
	assert.Equal(t, "/out/202203", p.Dir("/out"))
}
