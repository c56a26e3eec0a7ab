package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/frontier/pkg/logger"
)

// Observer is notified of cache lookups (metrics)
type Observer interface {
	ObserveCacheLookup(stage string, hit bool)
}

// Cache is the typed read-through layer over a Store
type Cache struct {
	store    Store
	codec    Codec
	logger   *logger.Logger
	observer Observer
	now      func() time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithObserver attaches a lookup observer
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// WithClock overrides the envelope timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache over store using codec
func NewCache(store Store, codec Codec, log *logger.Logger, opts ...Option) *Cache {
	c := &Cache{store: store, codec: codec, logger: log, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying backend
func (c *Cache) Store() Store {
	return c.store
}

// Codec returns the payload codec
func (c *Cache) Codec() Codec {
	return c.codec
}

// Load decodes the artifact at key into dest.
// It returns false when the key is absent. A payload that cannot be decoded,
// or that was written with another schema version, is logged and reported as
// absent so the caller recomputes and overwrites it.
func (c *Cache) Load(ctx context.Context, key Key, dest interface{}) (bool, error) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !found {
		c.observe(key, false)
		return false, nil
	}

	meta, err := c.codec.Decode(data, dest)
	if err != nil {
		c.logger.WithError(err).WithField("key", key.String()).Warn("Discarding unreadable artifact")
		c.observe(key, false)
		return false, nil
	}
	if meta.Schema != SchemaVersion {
		c.logger.WithFields(map[string]interface{}{
			"key":    key.String(),
			"schema": meta.Schema,
			"want":   SchemaVersion,
		}).Warn("Discarding artifact with stale schema")
		c.observe(key, false)
		return false, nil
	}

	c.observe(key, true)
	return true, nil
}

// Save encodes v and writes it at key (last writer wins)
func (c *Cache) Save(ctx context.Context, key Key, v interface{}) error {
	data, err := c.codec.Encode(Meta{
		Schema:    SchemaVersion,
		Period:    key.Period,
		Stage:     string(key.Stage),
		Method:    key.Method,
		CreatedAt: c.now().UTC(),
	}, v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present without decoding it
func (c *Cache) Exists(ctx context.Context, key Key) (bool, error) {
	_, found, err := c.store.Get(ctx, key)
	return found, err
}

// Raw returns the stored bytes and the decoded envelope metadata
func (c *Cache) Raw(ctx context.Context, key Key) ([]byte, *Meta, error) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil || !found {
		return nil, nil, err
	}
	meta, err := c.codec.Decode(data, nil)
	if err != nil {
		return data, nil, err
	}
	return data, &meta, nil
}

func (c *Cache) observe(key Key, hit bool) {
	if c.observer != nil {
		c.observer.ObserveCacheLookup(string(key.Stage), hit)
	}
}
