// Package artifact persists stage outputs keyed by (period, stage, method)
// so reruns of a period skip work that already succeeded.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/wonny/frontier/internal/contracts"
)

// AllMethods is the composite method name of stage-level artifacts
// (data, optimization, allocation and performance tables)
const AllMethods = "all"

// Key identifies one cached artifact
type Key struct {
	Period string          `json:"period"`
	Stage  contracts.Stage `json:"stage"`
	Method string          `json:"method"`
}

// NewKey builds a key for a period
func NewKey(p contracts.Period, stage contracts.Stage, method string) Key {
	return Key{Period: p.StorageKey, Stage: stage, Method: method}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Period, k.Stage, k.Method)
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)

// ErrInvalidKey is returned for keys that cannot be mapped to storage
var ErrInvalidKey = errors.New("invalid artifact key")

// Validate checks that every segment is a safe storage name
func (k Key) Validate() error {
	for _, seg := range []string{k.Period, string(k.Stage), k.Method} {
		if !segmentPattern.MatchString(seg) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
		}
	}
	return nil
}

// Store is the durable key → payload backend.
// Get signals absence with found=false and a nil error; an existing empty
// payload is returned as a non-nil empty slice. Put overwrites.
type Store interface {
	Get(ctx context.Context, key Key) (payload []byte, found bool, err error)
	Put(ctx context.Context, key Key, payload []byte) error
	Delete(ctx context.Context, key Key) error
	List(ctx context.Context, period string) ([]Key, error)
	Close() error
}
