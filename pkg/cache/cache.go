package cache

import (
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/Code-Hex/go-generics-cache/policy/lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "multisigd_cache_lookups_total",
		Help: "Cache lookups by cache name and result",
	},
	[]string{"name", "result"},
)

// Cache is a size-bounded LRU cache. Entries expire after ttl when it is
// positive and live until evicted otherwise.
type Cache[K comparable, V any] struct {
	lru  *cache.Cache[K, V]
	name string
	ttl  time.Duration
}

func NewLRUCache[K comparable, V any](size int, name string, ttl time.Duration) Cache[K, V] {
	return Cache[K, V]{
		lru:  cache.New(cache.AsLRU[K, V](lru.WithCapacity(size))),
		name: name,
		ttl:  ttl,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	val, ok := c.lru.Get(key)
	result := "miss"
	if ok {
		result = "hit"
	}
	lookups.WithLabelValues(c.name, result).Inc()
	return val, ok
}

func (c *Cache[K, V]) Set(key K, val V) {
	if c.ttl > 0 {
		c.lru.Set(key, val, cache.WithExpiration(c.ttl))
		return
	}
	c.lru.Set(key, val)
}

// GetOrLoad returns the cached value for key or stores the result of load.
// Failed loads are not cached.
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if val, ok := c.Get(key); ok {
		return val, nil
	}
	val, err := load()
	if err != nil {
		return val, err
	}
	c.Set(key, val)
	return val, nil
}

func (c *Cache[K, V]) Delete(key K) {
	c.lru.Delete(key)
}

// Keys returns the cached keys, least recently used first.
func (c *Cache[K, V]) Keys() []K {
	return c.lru.Keys()
}
