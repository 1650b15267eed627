// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package cache implements the hydration cache: a size-bounded LRU of
// decompressed block buffers keyed by block id.
//
// # Memory Management
//
// Cached buffers are reference counted. The cache holds one reference on every
// resident Value and each Handle returned by Get or Set holds another. Evicting
// an entry only drops the cache's reference, so a buffer stays valid for as
// long as a Handle on it is outstanding. It is imperative that every Handle is
// eventually released. The "invariants" build tag enables a leak detection
// facility that places a GC finalizer on Value.
//
// A Cache is not safe for concurrent use.
package cache

import (
	"github.com/cockroachdb/compressmap/internal/invariants"
)

// Metrics holds metrics for the cache.
type Metrics struct {
	// The number of bytes resident in the cache.
	Size int64
	// The count of blocks resident in the cache.
	Count int64
	// The number of cache hits.
	Hits int64
	// The number of cache misses.
	Misses int64
	// The number of entries evicted to stay within the size bound.
	Evictions int64
	// The number of outstanding handles.
	Pinned int64
}

// Cache is a size-bounded LRU of hydrated block buffers. The most recently
// inserted entry is never evicted by its own insertion, so a cache always
// holds at least one block regardless of its configured size.
type Cache struct {
	maxSize int64
	blocks  *blockMap
	// lru is the sentinel of the recency list. lru.link.next is the most
	// recently used entry, lru.link.prev the least.
	lru     entry
	metrics Metrics
	closed  invariants.CloseChecker
}

// New creates a new cache of the specified size.
func New(size int64) *Cache {
	c := &Cache{
		maxSize: size,
		blocks:  newBlockMap(16),
	}
	c.lru.link.next = &c.lru
	c.lru.link.prev = &c.lru
	return c
}

// MaxSize returns the configured size bound.
func (c *Cache) MaxSize() int64 {
	return c.maxSize
}

// Get retrieves the cached buffer for the given block id. The returned Handle
// is empty on a miss.
func (c *Cache) Get(id uint64) Handle {
	c.closed.AssertNotClosed()
	e, ok := c.blocks.Get(id)
	if !ok {
		c.metrics.Misses++
		return Handle{}
	}
	c.metrics.Hits++
	e.unlink()
	c.lru.link.next.linkBefore(e)
	return c.newHandle(e.acquireValue())
}

// Set inserts a value into the cache under the given block id, replacing any
// existing entry, and returns a Handle on it. Set takes over the caller's
// reference on v. Least recently used entries are evicted until the cache is
// within its size bound.
func (c *Cache) Set(id uint64, v *Value) Handle {
	c.closed.AssertNotClosed()
	if old, ok := c.blocks.Get(id); ok {
		c.remove(old)
	}
	e := newEntry(id, v)
	// newEntry acquired a reference for the cache; the caller's reference is
	// transferred to the returned handle.
	c.blocks.Put(id, e)
	c.lru.link.next.linkBefore(e)
	c.metrics.Size += e.size
	c.metrics.Count++
	c.evict(e)
	c.metrics.Pinned++
	return Handle{c: c, value: v}
}

// evict removes least recently used entries other than keep until the cache
// fits within maxSize.
func (c *Cache) evict(keep *entry) {
	for c.metrics.Size > c.maxSize {
		tail := c.lru.link.prev
		if tail == keep || tail == &c.lru {
			return
		}
		c.remove(tail)
		c.metrics.Evictions++
	}
}

// Evict removes the entry for the given block id, if present. Outstanding
// handles on it remain valid.
func (c *Cache) Evict(id uint64) {
	if e, ok := c.blocks.Get(id); ok {
		c.remove(e)
	}
}

func (c *Cache) remove(e *entry) {
	c.blocks.Delete(e.id)
	e.unlink()
	c.metrics.Size -= e.size
	c.metrics.Count--
	e.free()
}

// EvictAll removes every entry.
func (c *Cache) EvictAll() {
	for e := c.lru.link.next; e != &c.lru; e = c.lru.link.next {
		c.remove(e)
	}
}

// Metrics returns the current metrics for the cache.
func (c *Cache) Metrics() Metrics {
	return c.metrics
}

// Close evicts every entry and releases the block map. Handles obtained before
// Close remain valid until released.
func (c *Cache) Close() {
	c.EvictAll()
	c.blocks.Close()
	c.closed.Close()
}

// Pin returns a Handle holding a new reference on v, which need not be
// resident in the cache. It is used to hand out buffers of blocks that are
// still being written.
func (c *Cache) Pin(v *Value) Handle {
	if v != nil {
		v.acquire()
	}
	return c.newHandle(v)
}

func (c *Cache) newHandle(v *Value) Handle {
	if v == nil {
		return Handle{}
	}
	c.metrics.Pinned++
	return Handle{c: c, value: v}
}

// Handle provides a strong reference to a value in the cache. The reference
// does not pin the value in the cache, but it does prevent the underlying byte
// slice from being reused.
type Handle struct {
	c     *Cache
	value *Value
}

// Valid returns true if the handle holds a value.
func (h Handle) Valid() bool {
	return h.value != nil
}

// RawBuffer returns the value buffer. Note that this buffer holds the raw
// decompressed block data and must not be modified.
func (h Handle) RawBuffer() []byte {
	return h.value.RawBuffer()
}

// Release releases the reference to the cache entry.
func (h Handle) Release() {
	if h.value == nil {
		return
	}
	h.c.metrics.Pinned--
	h.value.Release()
}
