// Package cache provides the TTL key/value store injected into components that
// memoise expensive results, such as query embeddings.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values under string keys with a per-entry TTL.
// A zero or negative TTL means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Noop is a cache that never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error { return nil }
