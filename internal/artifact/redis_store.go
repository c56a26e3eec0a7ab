package artifact

import (
	"context"

	"github.com/wonny/frontier/internal/contracts"
	pkgredis "github.com/wonny/frontier/pkg/redis"
)

// RedisStore keeps artifacts under <prefix>:artifact:<period>:<stage>:<method>
type RedisStore struct {
	keys *pkgredis.Keyspace
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *pkgredis.Client, prefix string) *RedisStore {
	return &RedisStore{keys: pkgredis.NewKeyspace(client, prefix, "artifact")}
}

// Get reads a payload
func (s *RedisStore) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	return s.keys.Get(ctx, key.Period, string(key.Stage), key.Method)
}

// Put writes a payload without expiry
func (s *RedisStore) Put(ctx context.Context, key Key, payload []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return s.keys.Set(ctx, payload, key.Period, string(key.Stage), key.Method)
}

// Delete removes a payload
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return s.keys.Delete(ctx, key.Period, string(key.Stage), key.Method)
}

// List scans the period's keys
func (s *RedisStore) List(ctx context.Context, period string) ([]Key, error) {
	full, err := s.keys.Scan(ctx, period)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(full))
	for _, k := range full {
		parts := s.keys.Parts(k)
		if len(parts) != 3 {
			continue
		}
		keys = append(keys, Key{Period: parts[0], Stage: contracts.Stage(parts[1]), Method: parts[2]})
	}
	sortKeys(keys)
	return keys, nil
}

// Close is a no-op; the client is owned by the caller
func (s *RedisStore) Close() error {
	return nil
}
