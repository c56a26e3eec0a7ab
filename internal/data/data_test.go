package data

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/frontier/internal/artifact"
	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/internal/period"
	"github.com/wonny/frontier/internal/pipelineconfig"
	"github.com/wonny/frontier/internal/pricegen"
	"github.com/wonny/frontier/pkg/logger"
)

const sample = `Date,AAA,BBB,CCC
2023-12-29,10,20,
2024-01-02,11,,
2024-01-03,12,22,
2024-01-04,13,23,
`

func day(s string) time.Time {
	t, _ := time.Parse(contracts.DateLayout, s)
	return t
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	return path
}

func TestCSVSource_Fetch(t *testing.T) {
	src := NewCSVSource(writeSample(t))
	ctx := context.Background()

	s, err := src.Fetch(ctx, contracts.FetchRequest{Start: day("2024-01-01"), End: day("2024-01-03")})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, s.Tickers)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 11.0, s.Values[0][0])
	assert.True(t, math.IsNaN(s.Values[0][1]), "empty cell is missing")

	s, err = src.Fetch(ctx, contracts.FetchRequest{
		Start:   day("2023-01-01"),
		End:     day("2024-12-31"),
		Tickers: []string{"BBB", "ZZZ"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB"}, s.Tickers)
	assert.Equal(t, 4, s.Len())

	_, err = src.Fetch(ctx, contracts.FetchRequest{Start: day("2024-01-01"), End: day("2024-01-31"), Tickers: []string{"ZZZ"}})
	assert.ErrorIs(t, err, ErrNoTickers)

	s, err = src.Fetch(ctx, contracts.FetchRequest{Start: day("2025-01-01"), End: day("2025-12-31")})
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no date column", "Ticker,AAA\n2024-01-02,1\n"},
		{"no tickers", "Date\n2024-01-02\n"},
		{"bad date", "Date,AAA\n02/01/2024,1\n"},
		{"bad price", "Date,AAA\n2024-01-02,abc\n"},
		{"descending", "Date,AAA\n2024-01-03,1\n2024-01-02,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestWriteCSV_ReadBack(t *testing.T) {
	want := pricegen.Year(2023, 7, "AAA", "BBB")
	want.Values[3][1] = math.NaN()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, want))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, want.Tickers, got.Tickers)
	assert.Equal(t, want.Dates, got.Dates)
	assert.True(t, math.IsNaN(got.Values[3][1]))
	assert.Equal(t, want.Values[10], got.Values[10])
}

func TestPivot(t *testing.T) {
	records := []PriceRecord{
		{"BBB", day("2024-01-03"), 21},
		{"AAA", day("2024-01-02"), 10},
		{"AAA", day("2024-01-03"), 11},
	}

	s, err := pivot(records, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, s.Tickers)
	assert.Equal(t, []time.Time{day("2024-01-02"), day("2024-01-03")}, s.Dates)
	assert.True(t, math.IsNaN(s.Values[0][1]))
	assert.Equal(t, 21.0, s.Values[1][1])

	s, err = pivot(records, []string{"BBB", "CCC", "AAA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB", "AAA"}, s.Tickers)
}

func TestSanitizeTable(t *testing.T) {
	got, err := sanitizeTable("")
	require.NoError(t, err)
	assert.Equal(t, `"daily_prices"`, got)

	got, err = sanitizeTable("market.prices")
	require.NoError(t, err)
	assert.Equal(t, `"market"."prices"`, got)

	for _, bad := range []string{"a.b.c", ".x", "x."} {
		_, err := sanitizeTable(bad)
		assert.True(t, contracts.IsConfigurationError(err), bad)
	}
}

func TestBreakerSource_OpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	failing := contracts.PriceSourceFunc(func(ctx context.Context, req contracts.FetchRequest) (*contracts.PriceSeries, error) {
		calls++
		return nil, errors.New("connection refused")
	})

	b := NewBreakerSource(failing, BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}, logger.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.Fetch(ctx, contracts.FetchRequest{})
		require.Error(t, err)
		assert.False(t, contracts.IsDataUnavailable(err))
	}
	assert.Equal(t, "open", b.State())

	_, err := b.Fetch(ctx, contracts.FetchRequest{})
	assert.True(t, contracts.IsDataUnavailable(err))
	assert.Equal(t, 2, calls, "open circuit must not reach the source")
}

func TestBreakerSource_EmptyRangeDoesNotTrip(t *testing.T) {
	empty := contracts.PriceSourceFunc(func(ctx context.Context, req contracts.FetchRequest) (*contracts.PriceSeries, error) {
		return nil, &contracts.DataUnavailableError{Err: contracts.ErrEmptySeries}
	})
	b := NewBreakerSource(empty, BreakerConfig{MaxFailures: 1}, logger.NewNop())

	for i := 0; i < 3; i++ {
		_, _ = b.Fetch(context.Background(), contracts.FetchRequest{})
	}
	assert.Equal(t, "closed", b.State())
}

func TestStage_Run(t *testing.T) {
	root := t.TempDir()
	calls := 0
	var seen contracts.FetchRequest
	src := contracts.PriceSourceFunc(func(ctx context.Context, req contracts.FetchRequest) (*contracts.PriceSeries, error) {
		calls++
		seen = req
		return slice(pricegen.Year(2023, 1, "AAA", "BBB"), req)
	})

	cache := artifact.NewCache(artifact.NewFSStore(root, ".json"), artifact.JSONCodec{}, logger.NewNop())
	st := &Stage{Source: src, Cache: cache, Logger: logger.NewNop(), Root: root}
	p := period.Yearly(2023)

	prices, hit, err := st.Run(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, prices.Width())
	assert.Equal(t, filepath.Join(root, "2023"), seen.Dir)
	assert.Equal(t, day("2023-12-31"), seen.End)

	again, hit, err := st.Run(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, prices.Values, again.Values)
}

func TestStage_ErrorClassification(t *testing.T) {
	p := period.Yearly(2024)
	tests := []struct {
		name    string
		err     error
		series  *contracts.PriceSeries
		check   func(error) bool
		message string
	}{
		{"source error skips period", errors.New("timeout"), nil, contracts.IsDataUnavailable, "DataUnavailable"},
		{"empty series skips period", nil, &contracts.PriceSeries{Tickers: []string{"A"}}, contracts.IsDataUnavailable, "DataUnavailable"},
		{"configuration error aborts", contracts.NewConfigurationError("data.source", "bad"), nil, contracts.IsConfigurationError, "ConfigurationError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := contracts.PriceSourceFunc(func(ctx context.Context, req contracts.FetchRequest) (*contracts.PriceSeries, error) {
				return tt.series, tt.err
			})
			st := &Stage{Source: src, Logger: logger.NewNop()}
			_, _, err := st.Run(context.Background(), p)
			require.Error(t, err)
			assert.True(t, tt.check(err), "want %s, got %v", tt.message, err)
		})
	}

	var du *contracts.DataUnavailableError
	st := &Stage{Source: NewBreakerSource(contracts.PriceSourceFunc(func(ctx context.Context, req contracts.FetchRequest) (*contracts.PriceSeries, error) {
		return nil, errors.New("down")
	}), BreakerConfig{MaxFailures: 1}, logger.NewNop()), Logger: logger.NewNop()}
	_, _, _ = st.Run(context.Background(), p)
	_, _, err := st.Run(context.Background(), p)
	require.ErrorAs(t, err, &du)
	assert.Equal(t, "2024", du.Period)
}

func TestStage_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := &Stage{Source: NewCSVSource("missing.csv"), Logger: logger.NewNop()}
	_, _, err := st.Run(ctx, period.Yearly(2024))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSource(t *testing.T) {
	log := logger.NewNop()

	src, err := NewSource(pipelineconfig.DataConfig{Source: "csv", CSVPath: "prices.csv"}, nil, log)
	require.NoError(t, err)
	assert.Equal(t, "breaker(csv:prices.csv)", Describe(src))

	_, err = NewSource(pipelineconfig.DataConfig{Source: "postgres"}, nil, log)
	assert.True(t, contracts.IsConfigurationError(err))

	_, err = NewSource(pipelineconfig.DataConfig{Source: "yahoo"}, nil, log)
	assert.True(t, contracts.IsConfigurationError(err))
}
