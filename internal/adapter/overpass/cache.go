package overpass

import (
	"context"
	"fmt"
	"sync"

	"github.com/ctessum/geom"

	"github.com/couchcryptid/lakerise/internal/domain"
	"github.com/couchcryptid/lakerise/internal/observability"
	"github.com/couchcryptid/lakerise/internal/pipeline"
)

// CachedSource wraps an AssetSource with an in-memory LRU cache keyed by
// bounding box. Repeated runs over the same extent skip the API round trip.
type CachedSource struct {
	inner   pipeline.AssetSource
	assets  *lruCache[[]domain.Asset]
	parcels *lruCache[[]domain.LandCoverParcel]
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around an asset source.
func NewCachedSource(inner pipeline.AssetSource, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		assets:  newLRUCache[[]domain.Asset](maxEntries),
		parcels: newLRUCache[[]domain.LandCoverParcel](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) Assets(ctx context.Context, bounds *geom.Bounds) ([]domain.Asset, error) {
	key := boundsKey(bounds)
	if v, ok := c.assets.get(key); ok {
		c.metrics.OverpassCache.WithLabelValues("hit").Inc()
		return v, nil
	}
	c.metrics.OverpassCache.WithLabelValues("miss").Inc()
	v, err := c.inner.Assets(ctx, bounds)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient empty responses can be retried.
	if len(v) > 0 {
		c.assets.put(key, v)
	}
	return v, nil
}

func (c *CachedSource) LandCover(ctx context.Context, bounds *geom.Bounds) ([]domain.LandCoverParcel, error) {
	key := boundsKey(bounds)
	if v, ok := c.parcels.get(key); ok {
		c.metrics.OverpassCache.WithLabelValues("hit").Inc()
		return v, nil
	}
	c.metrics.OverpassCache.WithLabelValues("miss").Inc()
	v, err := c.inner.LandCover(ctx, bounds)
	if err != nil {
		return nil, err
	}
	if len(v) > 0 {
		c.parcels.put(key, v)
	}
	return v, nil
}

func boundsKey(b *geom.Bounds) string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
