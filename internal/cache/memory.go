package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is an in-process TTL cache. Expired entries are never returned;
// StartSweeper also removes them in the background.
type Memory struct {
	items *ttlcache.Cache[string, []byte]
}

type memoryConfig struct {
	maxEntries uint64
}

type MemoryOption func(*memoryConfig)

// WithMaxEntries bounds the cache. When full, the least recently used entry
// is evicted.
func WithMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxEntries = uint64(n)
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	var cfg memoryConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	ttlOpts := []ttlcache.Option[string, []byte]{
		// A hit must not extend the entry past the TTL it was stored with.
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	}
	if cfg.maxEntries > 0 {
		ttlOpts = append(ttlOpts, ttlcache.WithCapacity[string, []byte](cfg.maxEntries))
	}
	return &Memory{items: ttlcache.New[string, []byte](ttlOpts...)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := m.items.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return clone(item.Value()), true, nil
}

// Set stores a copy of value. ttl <= 0 keeps the entry until it is deleted or
// evicted.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	m.items.Set(key, clone(value), ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *Memory) Len() int { return m.items.Len() }

// Sweep removes every expired entry now.
func (m *Memory) Sweep() { m.items.DeleteExpired() }

// StartSweeper removes expired entries in the background until ctx is done.
func (m *Memory) StartSweeper(ctx context.Context) {
	go m.items.Start()
	go func() {
		<-ctx.Done()
		m.items.Stop()
	}()
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
