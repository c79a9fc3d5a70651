package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how long a result may be served after its last fetch
// when no invalidation arrives. Invalidation is the primary freshness
// mechanism; the TTL is the backstop.
const DefaultTTL = 30 * time.Second

type Fetcher func(ctx context.Context) (interface{}, error)

type entry struct {
	value     interface{}
	fetchedAt time.Time
	stale     bool
	gen       uint64
}

// QueryCache stores query results under semantic keys ("conversations:<user>",
// "messages:<conversation>", ...). Identical in-flight fetches share one
// round-trip, invalidated keys keep their last value for stale-while-error
// reads, and fetch errors are never cached.
type QueryCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]*entry

	group singleflight.Group

	listenerMu sync.RWMutex
	listeners  []func(key string)
}

// Shared is the process-wide cache everything in this repo uses.
var Shared = New(DefaultTTL)

func New(ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QueryCache{
		ttl:     ttl,
		entries: make(map[string]*entry),
	}
}

// GetOrFetch returns the cached value for key, or runs fetch and caches the
// result. Concurrent callers for the same key share a single fetch. When a
// refetch fails and a previous value exists, that value is returned alongside
// the error so callers can serve stale data while surfacing the failure.
func (c *QueryCache) GetOrFetch(ctx context.Context, key string, fetch Fetcher) (interface{}, error) {
	if v, ok := c.fresh(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A caller queued behind the flight that refreshed this key is
		// served from the new entry.
		if v, ok := c.fresh(key); ok {
			return v, nil
		}
		startGen := c.generation(key)
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		ne := &entry{value: v, fetchedAt: time.Now()}
		if cur, ok := c.entries[key]; ok {
			ne.gen = cur.gen
			// An invalidation that landed while the fetch ran means the
			// fetched value may predate the change. Keep it for stale
			// reads but make the next reader refetch.
			if cur.gen != startGen {
				ne.stale = true
			}
		}
		c.entries[key] = ne
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		if prev, ok := c.Peek(key); ok {
			return prev, err
		}
		return nil, err
	}
	return v, nil
}

func (c *QueryCache) generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[key]; ok {
		return e.gen
	}
	return 0
}

func (c *QueryCache) fresh(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.stale || time.Since(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// Peek returns the last known value for key regardless of staleness.
func (c *QueryCache) Peek(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Invalidate marks key stale. The value is retained until the next
// successful refetch replaces it.
func (c *QueryCache) Invalidate(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		e.stale = true
		e.gen++
	}
	c.mu.Unlock()
	if ok {
		c.notify(key)
	}
}

// InvalidatePrefix marks every key under prefix stale.
func (c *QueryCache) InvalidatePrefix(prefix string) {
	var hit []string
	c.mu.Lock()
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			e.stale = true
			e.gen++
			hit = append(hit, key)
		}
	}
	c.mu.Unlock()
	for _, key := range hit {
		c.notify(key)
	}
}

// Update applies fn to the current value for key, if any. Used for
// optimistic writes (appending a just-sent message to the cached feed)
// without waiting for the change-event echo. A missing entry is left
// missing rather than fabricated from a partial view.
func (c *QueryCache) Update(key string, fn func(old interface{}) interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.value = fn(e.value)
}

// OnInvalidate registers fn to run, with the affected key, after every
// invalidation. Listeners must not call back into the cache.
func (c *QueryCache) OnInvalidate(fn func(key string)) {
	c.listenerMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenerMu.Unlock()
}

func (c *QueryCache) notify(key string) {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	for _, fn := range c.listeners {
		fn(key)
	}
}
