// Copyright (c) 2015 AKUALAB INC., All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache keeps transition weight tables of training instances.
//
// A table computed by lattice.CacheDots holds the weight of every
// transition at every position. Tables are keyed by instance index and
// stamped with the model version; a lookup with a newer version misses.
package cache

import (
	"fmt"
	"sync"

	"github.com/akualab/tagger/lattice"
	"github.com/akualab/tagger/model"
	"github.com/golang/glog"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DotCache is an LRU cache of [ip][src][dst] weight tables.
type DotCache struct {
	lruCache *lru.Cache[int, *entry]
	capacity int

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

type entry struct {
	version uint64
	dots    [][][]float64
}

// NewDotCache creates a cache for up to capacity tables.
func NewDotCache(capacity int) (*DotCache, error) {
	c, err := lru.New[int, *entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("dot cache: capacity [%d]: %w", capacity, err)
	}
	return &DotCache{lruCache: c, capacity: capacity}, nil
}

// Stats returns the number of tables, the capacity, and hit and miss counts.
func (c *DotCache) Stats() (size, capacity int, hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruCache.Len(), c.capacity, c.hits, c.misses
}

// Set stores the table for instance n computed at version.
func (c *DotCache) Set(n int, version uint64, dots [][][]float64) {
	c.lruCache.Add(n, &entry{version: version, dots: dots})
}

// Get returns the table for instance n if it was computed at version.
// Stale tables are evicted.
func (c *DotCache) Get(n int, version uint64) ([][][]float64, bool) {

	e, ok := c.lruCache.Get(n)
	if ok && e.version != version {
		glog.V(4).Infof("dot cache: instance %d is stale, version %d != %d", n, e.version, version)
		c.lruCache.Remove(n)
		ok = false
	}
	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	return e.dots, true
}

// Dots returns the table of instance n, computing and storing it on a
// miss. When t is not versioned every lookup uses version zero.
func (c *DotCache) Dots(n int, t model.Transducer, input model.Sequence) ([][][]float64, error) {

	var version uint64
	if v, ok := t.(model.Versioned); ok {
		version = v.Version()
	}
	if dots, ok := c.Get(n, version); ok {
		return dots, nil
	}
	dots, err := lattice.CacheDots(t, input)
	if err != nil {
		return nil, err
	}
	c.Set(n, version, dots)
	return dots, nil
}

// Delete removes the table of instance n.
func (c *DotCache) Delete(n int) bool {
	return c.lruCache.Remove(n)
}

// Clear removes all tables.
func (c *DotCache) Clear() {
	c.lruCache.Purge()
}
