package artifact

import (
	"fmt"

	pkgredis "github.com/wonny/frontier/pkg/redis"
)

// OpenStore builds the backend named by backend ("fs", "sqlite", "redis")
func OpenStore(backend, root string, codec Codec, rdb *pkgredis.Client, prefix string) (Store, error) {
	switch backend {
	case "fs", "":
		return NewFSStore(root, codec.Ext()), nil
	case "sqlite":
		return NewSQLiteStore(root), nil
	case "redis":
		if rdb == nil || !rdb.Enabled() {
			return nil, fmt.Errorf("redis artifact backend requires an enabled redis client")
		}
		return NewRedisStore(rdb, prefix), nil
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", backend)
	}
}
