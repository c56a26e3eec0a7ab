package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrDisabled is returned by Keyspace operations when Redis is disabled
var ErrDisabled = errors.New("redis is disabled")

// Keyspace stores raw byte values under "<prefix>:<namespace>:<parts...>"
// ⭐ SSOT: Redis key layout is built here only
type Keyspace struct {
	client    *Client
	prefix    string
	namespace string
}

// NewKeyspace creates a keyspace helper
func NewKeyspace(client *Client, prefix, namespace string) *Keyspace {
	return &Keyspace{client: client, prefix: prefix, namespace: namespace}
}

// Key joins parts into a full Redis key
func (k *Keyspace) Key(parts ...string) string {
	return k.prefix + ":" + k.namespace + ":" + strings.Join(parts, ":")
}

// Parts strips the keyspace prefix and splits the remainder
func (k *Keyspace) Parts(fullKey string) []string {
	return strings.Split(strings.TrimPrefix(fullKey, k.prefix+":"+k.namespace+":"), ":")
}

// Get reads a value; a missing key returns found=false and no error
func (k *Keyspace) Get(ctx context.Context, parts ...string) ([]byte, bool, error) {
	if !k.client.Enabled() {
		return nil, false, ErrDisabled
	}
	data, err := k.client.Redis().Get(ctx, k.Key(parts...)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Set writes a value without expiry
func (k *Keyspace) Set(ctx context.Context, value []byte, parts ...string) error {
	if !k.client.Enabled() {
		return ErrDisabled
	}
	if err := k.client.Redis().Set(ctx, k.Key(parts...), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a value
func (k *Keyspace) Delete(ctx context.Context, parts ...string) error {
	if !k.client.Enabled() {
		return ErrDisabled
	}
	if err := k.client.Redis().Del(ctx, k.Key(parts...)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Scan lists every full key under the given parts prefix
func (k *Keyspace) Scan(ctx context.Context, parts ...string) ([]string, error) {
	if !k.client.Enabled() {
		return nil, ErrDisabled
	}
	pattern := k.Key(parts...) + ":*"

	var keys []string
	var cursor uint64
	for {
		batch, next, err := k.client.Redis().Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
