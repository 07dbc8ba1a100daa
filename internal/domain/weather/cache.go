package weather

import (
	"sync"
	"time"

	"github.com/okian/zonetrust/pkg/geo"
)

// DefaultTTL is how long a cached reading stays usable.
const DefaultTTL = 15 * time.Minute

// Cache holds recent readings keyed by the s2 cell of their location.
// It has no background goroutine: the owner calls EvictExpired when it
// wants memory back. Safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	cellLevel int
	entries   map[string]cacheEntry
}

type cacheEntry struct {
	reading  Reading
	storedAt time.Time
}

// CacheOption applies a configuration option to the Cache.
type CacheOption func(*Cache)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCellLevel sets the s2 level used to bucket locations; lower is coarser.
func WithCellLevel(level int) CacheOption {
	return func(c *Cache) {
		c.cellLevel = level
	}
}

// NewCache creates an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		ttl:       DefaultTTL,
		cellLevel: geo.DefaultCellLevel,
		entries:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores r for the cell containing p, replacing any previous reading.
func (c *Cache) Put(p geo.Point, r Reading, now time.Time) {
	key := geo.CellToken(p, c.cellLevel)
	c.mu.Lock()
	c.entries[key] = cacheEntry{reading: r, storedAt: now}
	c.mu.Unlock()
}

// Get returns the reading for the cell containing p if it is still fresh at now.
func (c *Cache) Get(p geo.Point, now time.Time) (*Reading, bool) {
	key := geo.CellToken(p, c.cellLevel)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.expired(e, now) {
		return nil, false
	}
	r := e.reading
	return &r, true
}

// EvictExpired drops every entry that is stale at now and returns how many were removed.
func (c *Cache) EvictExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(e cacheEntry, now time.Time) bool {
	return now.Sub(e.storedAt) >= c.ttl
}
