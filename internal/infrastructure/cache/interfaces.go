package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the minimal key-value contract the governance core needs.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ErrCacheKeyNotFound indicates a cache miss.
type ErrCacheKeyNotFound struct {
	Key string
}

func (e ErrCacheKeyNotFound) Error() string {
	return fmt.Sprintf("cache key not found: %s", e.Key)
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	_, ok := err.(ErrCacheKeyNotFound)
	return ok
}
