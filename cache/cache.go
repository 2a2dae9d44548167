package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// Store is a byte-oriented TTL cache shared across processes. The football
// client uses it as an optional second tier behind the in-process store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Clearer is implemented by stores that can drop every key they own.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}
