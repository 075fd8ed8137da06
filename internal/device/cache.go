package device

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long a fetched snapshot is served without refetching.
const DefaultTTL = 30 * time.Second

// Source performs live fetches for the cache.
type Source interface {
	Fetch(ctx context.Context, path dbus.ObjectPath) FetchResult
}

type cacheEntry struct {
	entity  Entity
	fetched time.Time
}

// Cache holds recent entity snapshots keyed by object path. It is confined
// to the monitor loop goroutine and does no locking.
type Cache struct {
	src     Source
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger
	entries map[dbus.ObjectPath]cacheEntry
}

type CacheOption func(*Cache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func WithLogger(log zerolog.Logger) CacheOption {
	return func(c *Cache) { c.log = log }
}

func NewCache(src Source, opts ...CacheOption) *Cache {
	c := &Cache{
		src:     src,
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     zerolog.Nop(),
		entries: make(map[dbus.ObjectPath]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached snapshot for path if it is younger than the TTL,
// otherwise it fetches a fresh one. It never fails: an unresolvable object
// yields the Unknown placeholder, which is not cached.
func (c *Cache) Get(ctx context.Context, path dbus.ObjectPath) Entity {
	now := c.now()
	if e, ok := c.entries[path]; ok && now.Sub(e.fetched) < c.ttl {
		return e.entity
	}

	res := c.src.Fetch(ctx, path)
	switch res.Status {
	case StatusUnavailable:
		delete(c.entries, path)
		c.log.Warn().Str("path", string(path)).Strs("missing", res.Missing).Msg("Error getting entity info")
		return res.Entity
	case StatusPartial:
		c.log.Debug().Str("path", string(path)).Strs("missing", res.Missing).Msg("Partial entity info")
	}
	c.entries[path] = cacheEntry{entity: res.Entity, fetched: now}
	return res.Entity
}

// Invalidate drops the snapshot for path so the next Get refetches.
func (c *Cache) Invalidate(path dbus.ObjectPath) {
	delete(c.entries, path)
}

func (c *Cache) Len() int {
	return len(c.entries)
}
