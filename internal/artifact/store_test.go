package artifact

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/frontier/internal/contracts"
	pkgredis "github.com/wonny/frontier/pkg/redis"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs := NewFSStore(t.TempDir(), ".json")
	sq := NewSQLiteStore(t.TempDir())
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"fs": fs, "sqlite": sq}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	key := Key{Period: "2024", Stage: contracts.StageRiskModel, Method: "SampleCovariance"}

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// missing key is absence, not an error
			data, found, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, data)

			// empty payload is distinct from absence
			require.NoError(t, store.Put(ctx, key, []byte{}))
			data, found, err = store.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, found)
			assert.NotNil(t, data)
			assert.Len(t, data, 0)

			// last writer wins
			require.NoError(t, store.Put(ctx, key, []byte("first")))
			require.NoError(t, store.Put(ctx, key, []byte("second")))
			data, _, err = store.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "second", string(data))

			other := Key{Period: "2024", Stage: contracts.StageData, Method: AllMethods}
			require.NoError(t, store.Put(ctx, other, []byte("prices")))

			keys, err := store.List(ctx, "2024")
			require.NoError(t, err)
			assert.Equal(t, []Key{other, key}, keys)

			keys, err = store.List(ctx, "1999")
			require.NoError(t, err)
			assert.Empty(t, keys)

			require.NoError(t, store.Delete(ctx, key))
			_, found, err = store.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, found)

			// deleting twice is fine
			require.NoError(t, store.Delete(ctx, key))
		})
	}
}

func TestStore_InvalidKey(t *testing.T) {
	ctx := context.Background()
	bad := Key{Period: "../etc", Stage: contracts.StageData, Method: "passwd"}

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := store.Get(ctx, bad)
			assert.ErrorIs(t, err, ErrInvalidKey)
			assert.ErrorIs(t, store.Put(ctx, bad, []byte("x")), ErrInvalidKey)
		})
	}
}

func TestFSStore_Layout(t *testing.T) {
	root := t.TempDir()
	store := NewFSStore(root, ".json")
	key := Key{Period: "202401", Stage: contracts.StageExpectedReturn, Method: "CAGRMeanHistorical"}

	require.NoError(t, store.Put(context.Background(), key, []byte("{}")))
	assert.FileExists(t, filepath.Join(root, "202401", "expected_return", "CAGRMeanHistorical.json"))
}

func TestSQLiteStore_OneDatabasePerPeriod(t *testing.T) {
	root := t.TempDir()
	store := NewSQLiteStore(root)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Key{Period: "2023", Stage: contracts.StageData, Method: AllMethods}, []byte("a")))
	require.NoError(t, store.Put(ctx, Key{Period: "2024", Stage: contracts.StageData, Method: AllMethods}, []byte("b")))

	assert.FileExists(t, filepath.Join(root, "2023", SQLiteFile))
	assert.FileExists(t, filepath.Join(root, "2024", SQLiteFile))

	// reads of a period never written do not create a database
	_, found, err := store.Get(ctx, Key{Period: "2025", Stage: contracts.StageData, Method: AllMethods})
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoFileExists(t, filepath.Join(root, "2025", SQLiteFile))
}

func TestRedisStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(pkgredis.Wrap(db), "frontier")
	ctx := context.Background()
	key := Key{Period: "2024", Stage: contracts.StageOptimization, Method: AllMethods}

	mock.ExpectGet("frontier:artifact:2024:optimization:all").RedisNil()
	mock.ExpectSet("frontier:artifact:2024:optimization:all", []byte("rows"), 0).SetVal("OK")
	mock.ExpectGet("frontier:artifact:2024:optimization:all").SetVal("rows")
	mock.ExpectScan(0, "frontier:artifact:2024:*", 100).SetVal([]string{
		"frontier:artifact:2024:optimization:all",
		"frontier:artifact:2024:data:all",
	}, 0)

	_, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, key, []byte("rows")))

	data, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "rows", string(data))

	keys, err := store.List(ctx, "2024")
	require.NoError(t, err)
	assert.Equal(t, []Key{
		{Period: "2024", Stage: contracts.StageData, Method: AllMethods},
		key,
	}, keys)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenStore(t *testing.T) {
	codec := JSONCodec{}

	s, err := OpenStore("fs", t.TempDir(), codec, nil, "p")
	require.NoError(t, err)
	assert.IsType(t, &FSStore{}, s)

	s, err = OpenStore("sqlite", t.TempDir(), codec, nil, "p")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)

	_, err = OpenStore("redis", t.TempDir(), codec, nil, "p")
	assert.Error(t, err)

	_, err = OpenStore("s3", t.TempDir(), codec, nil, "p")
	assert.Error(t, err)
}
