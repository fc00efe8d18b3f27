// Package cache provides a small in-process TTL cache used by the store layer.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the cache configuration.
type Config struct {
	// DefaultTTL is applied by Set. Zero means entries never expire.
	DefaultTTL time.Duration
	// CleanupInterval controls how often the janitor sweeps expired entries.
	// Zero disables the janitor.
	CleanupInterval time.Duration
	// MaxItems bounds the cache size. Zero means unbounded. When full, the
	// entry closest to expiry is evicted to make room.
	MaxItems int
	// OnEviction is called for entries removed by the janitor or by the
	// size bound, not for explicit deletes.
	OnEviction func(key string, value any)
}

type item struct {
	value     any
	expiresAt time.Time // zero means no expiry
}

func (i *item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// Cache is a TTL cache safe for concurrent use. The context parameters exist
// so call sites read the same whether the backing cache is local or remote;
// the in-memory implementation ignores them.
type Cache struct {
	config Config
	data   sync.Map
	size   atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache and starts its cleanup janitor.
func New(config Config) *Cache {
	c := &Cache{
		config: config,
		stop:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.janitor()
	}
	return c
}

// Get returns the value for key if present and not expired.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	v, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}
	it := v.(*item)
	if it.expired(time.Now()) {
		c.remove(key, it, false)
		return nil, false
	}
	return it.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores value under key with an explicit TTL. A non-positive TTL
// means no expiry.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	it := &item{value: value}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	}
	if _, existed := c.data.Swap(key, it); !existed {
		c.size.Add(1)
	}
	if c.config.MaxItems > 0 && int(c.size.Load()) > c.config.MaxItems {
		c.evictOne()
	}
}

// Delete removes key. No eviction callback fires.
func (c *Cache) Delete(_ context.Context, key string) {
	if _, ok := c.data.LoadAndDelete(key); ok {
		c.size.Add(-1)
	}
}

// Clear removes all entries.
func (c *Cache) Clear(_ context.Context) {
	c.data.Range(func(key, _ any) bool {
		if _, ok := c.data.LoadAndDelete(key); ok {
			c.size.Add(-1)
		}
		return true
	})
}

// Size returns the current entry count.
func (c *Cache) Size() int {
	return int(c.size.Load())
}

// Close stops the janitor. The cache stays usable but no longer sweeps.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	return nil
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.data.Range(func(key, v any) bool {
				it := v.(*item)
				if it.expired(now) {
					c.remove(key.(string), it, true)
				}
				return true
			})
		case <-c.stop:
			return
		}
	}
}

// evictOne drops the entry closest to expiry. Entries without expiry are
// only evicted when nothing expiring exists.
func (c *Cache) evictOne() {
	var victimKey string
	var victim *item
	c.data.Range(func(key, v any) bool {
		it := v.(*item)
		if victim == nil {
			victimKey, victim = key.(string), it
			return true
		}
		if victim.expiresAt.IsZero() || (!it.expiresAt.IsZero() && it.expiresAt.Before(victim.expiresAt)) {
			victimKey, victim = key.(string), it
		}
		return true
	})
	if victim != nil {
		c.remove(victimKey, victim, true)
	}
}

func (c *Cache) remove(key string, it *item, evicted bool) {
	if _, ok := c.data.LoadAndDelete(key); !ok {
		return
	}
	c.size.Add(-1)
	if evicted && c.config.OnEviction != nil {
		c.config.OnEviction(key, it.value)
	}
}
