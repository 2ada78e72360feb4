package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/NERVsystems/osmreach/pkg/monitoring"
	"github.com/NERVsystems/osmreach/pkg/tracing"
)

// ResultKey identifies a batch query after root resolution
type ResultKey struct {
	RootID int64
	Depth  int
	Radius float64
}

// ResultCache is a bounded, expiring LRU of query results. A nil
// *ResultCache is valid and caches nothing.
type ResultCache[V any] struct {
	lru *expirable.LRU[ResultKey, V]
}

// NewResultCache returns a cache holding at most size results for ttl each.
// A size of zero or less disables caching and returns nil.
func NewResultCache[V any](size int, ttl time.Duration) *ResultCache[V] {
	if size <= 0 {
		return nil
	}
	return &ResultCache[V]{lru: expirable.NewLRU[ResultKey, V](size, nil, ttl)}
}

// Get returns the cached result for key
func (c *ResultCache[V]) Get(key ResultKey) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		monitoring.RecordCacheHit(tracing.CacheTypeResult)
	} else {
		monitoring.RecordCacheMiss(tracing.CacheTypeResult)
	}
	return v, ok
}

// Add stores a result
func (c *ResultCache[V]) Add(key ResultKey, v V) {
	if c == nil {
		return
	}
	c.lru.Add(key, v)
	monitoring.UpdateCacheSize(tracing.CacheTypeResult, c.lru.Len())
}

// Len returns the number of live entries
func (c *ResultCache[V]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
