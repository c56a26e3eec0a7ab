package artifact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/frontier/internal/contracts"
	"github.com/wonny/frontier/pkg/logger"
)

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) ObserveCacheLookup(_ string, hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func sampleRows() []contracts.OptimizationRow {
	return []contracts.OptimizationRow{
		{
			ExpectedReturnType:   "ArithmeticMeanHistorical",
			RiskModel:            "SampleCovariance",
			Optimizer:            "MaxSharpe",
			Weights:              contracts.Weights{{Ticker: "A", Value: 0.7}, {Ticker: "B", Value: 0.3}},
			ExpectedAnnualReturn: 0.12,
			AnnualVolatility:     0.2,
			SharpeRatio:          0.5,
		},
		contracts.NewErrorRow("ArithmeticMeanHistorical", "SampleCovariance", "MinVolatility", errors.New("singular")),
	}
}

func TestCache_RoundTripBothCodecs(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			obs := &countingObserver{}
			cache := NewCache(NewFSStore(t.TempDir(), codec.Ext()), codec, logger.NewNop(), WithObserver(obs), WithClock(func() time.Time { return fixed }))
			key := Key{Period: "2024", Stage: contracts.StageOptimization, Method: AllMethods}

			var miss []contracts.OptimizationRow
			found, err := cache.Load(ctx, key, &miss)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, cache.Save(ctx, key, sampleRows()))

			var rows []contracts.OptimizationRow
			found, err = cache.Load(ctx, key, &rows)
			require.NoError(t, err)
			require.True(t, found)
			require.Len(t, rows, 2)
			assert.Equal(t, sampleRows()[0], rows[0])
			assert.True(t, rows[1].SharpeRatio.IsNaN())
			assert.Equal(t, "singular", rows[1].Error)

			_, meta, err := cache.Raw(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, SchemaVersion, meta.Schema)
			assert.Equal(t, "optimization", meta.Stage)
			assert.True(t, fixed.Equal(meta.CreatedAt))

			assert.Equal(t, 1, obs.hits)
			assert.Equal(t, 1, obs.misses)
		})
	}
}

func TestCache_SaveIsDeterministic(t *testing.T) {
	ctx := context.Background()
	fixed := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			store := NewFSStore(t.TempDir(), codec.Ext())
			cache := NewCache(store, codec, logger.NewNop(), WithClock(fixed))
			a := Key{Period: "2024", Stage: contracts.StageAllocation, Method: "a"}
			b := Key{Period: "2024", Stage: contracts.StageAllocation, Method: "a2"}
			shares := map[string]int64{"C": 1, "A": 2, "B": 3}

			require.NoError(t, cache.Save(ctx, a, shares))
			require.NoError(t, cache.Save(ctx, b, shares))
			da, _, _ := store.Get(ctx, a)
			db, _, _ := store.Get(ctx, b)
			// only the method name differs in the envelope
			assert.Equal(t, len(da)+1, len(db))
		})
	}
}

func TestCache_CorruptOrStaleIsMiss(t *testing.T) {
	ctx := context.Background()
	store := NewFSStore(t.TempDir(), ".json")
	cache := NewCache(store, JSONCodec{}, logger.NewNop())
	key := Key{Period: "2024", Stage: contracts.StageExpectedReturn, Method: "Mean"}

	require.NoError(t, store.Put(ctx, key, []byte("not json")))
	var out map[string]float64
	found, err := cache.Load(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, found)

	stale, err := JSONCodec{}.Encode(Meta{Schema: SchemaVersion + 1}, map[string]float64{"A": 1})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, stale))
	found, err = cache.Load(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewCodec(t *testing.T) {
	c, err := NewCodec("msgpack")
	require.NoError(t, err)
	assert.Equal(t, ".msgpack", c.Ext())

	c, err = NewCodec("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	_, err = NewCodec("gob")
	assert.Error(t, err)
}
