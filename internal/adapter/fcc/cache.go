package fcc

import (
	"container/list"
	"context"
	"sync"

	"github.com/couchcryptid/fcc-block-geocoder/internal/domain"
	"github.com/couchcryptid/fcc-block-geocoder/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by the
// exact coordinate tokens. Input files often repeat points (one row per
// event at the same address), and a block never moves.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *outcomeCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator holding at most maxEntries outcomes.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newOutcomeCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) Lookup(ctx context.Context, coord domain.Coordinate, verbose bool) (domain.Outcome, error) {
	key := cacheKey{coord: coord, verbose: verbose}
	if out, ok := c.cache.get(key); ok {
		c.record("hit")
		return out, nil
	}
	c.record("miss")

	out, err := c.inner.Lookup(ctx, coord, verbose)
	if err != nil {
		return out, err
	}
	// Only OK answers are cached so rate limits and provider errors are retried.
	if out.Status == domain.StatusOK {
		c.cache.add(key, out)
	}
	return out, nil
}

// Len reports how many outcomes are cached.
func (c *CachedGeocoder) Len() int {
	return c.cache.len()
}

func (c *CachedGeocoder) record(result string) {
	if c.metrics != nil {
		c.metrics.Cache.WithLabelValues(result).Inc()
	}
}

// Verbose and terse answers for one point are cached separately since only
// the former carries the raw response.
type cacheKey struct {
	coord   domain.Coordinate
	verbose bool
}

type cacheItem struct {
	key     cacheKey
	outcome domain.Outcome
}

// outcomeCache is a mutex-guarded LRU. The front of order is the most
// recently used item.
type outcomeCache struct {
	mu    sync.Mutex
	limit int
	order *list.List
	items map[cacheKey]*list.Element
}

func newOutcomeCache(limit int) *outcomeCache {
	return &outcomeCache{
		limit: max(limit, 1),
		order: list.New(),
		items: make(map[cacheKey]*list.Element),
	}
}

func (c *outcomeCache) get(key cacheKey) (domain.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return domain.Outcome{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheItem).outcome, true
}

func (c *outcomeCache) add(key cacheKey, out domain.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheItem).outcome = out
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&cacheItem{key: key, outcome: out})
	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheItem).key)
	}
}

func (c *outcomeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
