package badger

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/finalitylabs/blocksync/module"
)

type retrieveFunc[K comparable, V any] func(key K) (V, error)

// Cache is a read-through LRU cache in front of the database. It only holds
// immutable entities, so it never needs invalidation.
type Cache[K comparable, V any] struct {
	metrics  module.CacheMetrics
	resource string
	retrieve retrieveFunc[K, V]
	cache    *lru.Cache[K, V]
}

func newCache[K comparable, V any](collector module.CacheMetrics, resource string, limit int, retrieve retrieveFunc[K, V]) *Cache[K, V] {
	// lru.New only fails for a non-positive size
	if limit < 1 {
		limit = 1
	}
	cache, _ := lru.New[K, V](limit)
	c := &Cache[K, V]{
		metrics:  collector,
		resource: resource,
		retrieve: retrieve,
		cache:    cache,
	}
	c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	return c
}

// Get returns the cached entity or retrieves it from the database. Errors of
// the retrieve function are passed through unchanged.
func (c *Cache[K, V]) Get(key K) (V, error) {
	resource, cached := c.cache.Get(key)
	if cached {
		c.metrics.CacheHit(c.resource)
		return resource, nil
	}

	c.metrics.CacheMiss(c.resource)
	resource, err := c.retrieve(key)
	if err != nil {
		return resource, err
	}

	c.Insert(key, resource)
	return resource, nil
}

// Insert adds an entity that was just written to the database.
func (c *Cache[K, V]) Insert(key K, resource V) {
	evicted := c.cache.Add(key, resource)
	if !evicted {
		c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	}
}
