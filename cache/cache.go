// Package cache provides a small bounded read-through cache in front of
// isto's by-id lookups.
package cache

import (
	lru "github.com/hashicorp/golang-lru"
)

// Cache is a bounded, id-keyed cache of arbitrary values.
type Cache struct {
	c *lru.Cache
}

// New creates a Cache holding at most size entries. size must be
// positive.
func New(size int) *Cache {
	c, err := lru.New(size)
	if err != nil {
		// lru.New only fails for a non-positive size, which is a
		// programmer error here since isto always passes a fixed constant.
		panic(err)
	}
	return &Cache{c: c}
}

// Get returns the cached value for id, if any.
func (c *Cache) Get(id string) (interface{}, bool) {
	return c.c.Get(id)
}

// Add stores val under id, evicting the least recently used entry if the
// cache is full.
func (c *Cache) Add(id string, val interface{}) {
	c.c.Add(id, val)
}

// Remove evicts id, if present. Called whenever the underlying row it
// was caching stops being valid: eviction, migration, or upsert.
func (c *Cache) Remove(id string) {
	c.c.Remove(id)
}
