// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/compressmap/internal/manual"
	"github.com/stretchr/testify/require"
)

func testValue(s string, repeat int) *Value {
	b := bytes.Repeat([]byte(s), repeat)
	v := Alloc(manual.HydratedBuffer, len(b))
	copy(v.RawBuffer(), b)
	return v
}

func TestCacheGetSet(t *testing.T) {
	c := New(100)
	defer c.Close()

	h := c.Get(1)
	require.False(t, h.Valid())

	h = c.Set(1, testValue("a", 10))
	require.True(t, h.Valid())
	require.Equal(t, bytes.Repeat([]byte("a"), 10), h.RawBuffer())
	h.Release()

	h = c.Get(1)
	require.True(t, h.Valid())
	require.Equal(t, bytes.Repeat([]byte("a"), 10), h.RawBuffer())
	h.Release()

	m := c.Metrics()
	require.Equal(t, int64(1), m.Hits)
	require.Equal(t, int64(1), m.Misses)
	require.Equal(t, int64(10), m.Size)
	require.Equal(t, int64(1), m.Count)
	require.Equal(t, int64(0), m.Pinned)
}

func TestCacheLRU(t *testing.T) {
	c := New(30)
	defer c.Close()

	for id := uint64(1); id <= 3; id++ {
		c.Set(id, testValue("x", 10)).Release()
	}
	// Touch 1 so that 2 becomes the least recently used entry.
	c.Get(1).Release()
	c.Set(4, testValue("y", 10)).Release()

	var handles []Handle
	for _, id := range []uint64{1, 2, 3, 4} {
		h := c.Get(id)
		require.Equal(t, id != 2, h.Valid(), "block %d", id)
		handles = append(handles, h)
	}
	require.Equal(t, int64(1), c.Metrics().Evictions)
	require.Equal(t, int64(30), c.Metrics().Size)
	require.Equal(t, int64(3), c.Metrics().Pinned)
	for _, h := range handles {
		h.Release()
	}
	require.Equal(t, int64(0), c.Metrics().Pinned)
}

func TestCacheKeepsOversizedEntry(t *testing.T) {
	c := New(5)
	defer c.Close()

	c.Set(1, testValue("z", 3)).Release()
	c.Set(2, testValue("z", 50)).Release()
	h := c.Get(2)
	require.True(t, h.Valid())
	h.Release()
	require.False(t, c.Get(1).Valid())
	require.Equal(t, int64(1), c.Metrics().Count)
}

func TestCacheHandleOutlivesEviction(t *testing.T) {
	before := manual.GetMetrics()[manual.HydratedBuffer]

	c := New(10)
	h := c.Set(1, testValue("q", 10))
	c.Set(2, testValue("r", 10)).Release()
	c.Evict(2)

	// Block 1 was evicted to make room for block 2, but the handle keeps the
	// buffer alive.
	require.False(t, c.Get(1).Valid())
	require.Equal(t, bytes.Repeat([]byte("q"), 10), h.RawBuffer())

	after := manual.GetMetrics()[manual.HydratedBuffer]
	require.Equal(t, before.InUseBytes+10, after.InUseBytes)

	h.Release()
	c.Close()
	after = manual.GetMetrics()[manual.HydratedBuffer]
	require.Equal(t, before.InUseBytes, after.InUseBytes)
}

func TestCacheReplace(t *testing.T) {
	c := New(100)
	defer c.Close()

	c.Set(1, testValue("a", 4)).Release()
	c.Set(1, testValue("b", 6)).Release()
	h := c.Get(1)
	require.Equal(t, []byte("bbbbbb"), h.RawBuffer())
	h.Release()
	require.Equal(t, int64(6), c.Metrics().Size)
	require.Equal(t, int64(1), c.Metrics().Count)

	c.EvictAll()
	require.Equal(t, int64(0), c.Metrics().Size)
	require.False(t, c.Get(1).Valid())
}

func TestValueDoubleRelease(t *testing.T) {
	v := Alloc(manual.HydratedBuffer, 4)
	v.Release()
	require.Panics(t, v.Release)
}

func TestCachePin(t *testing.T) {
	c := New(100)
	defer c.Close()

	v := testValue("w", 8)
	h := c.Pin(v)
	require.Equal(t, int64(1), c.Metrics().Pinned)
	require.Equal(t, int64(0), c.Metrics().Count)

	// Dropping the owner's reference leaves the pinned buffer intact.
	v.Release()
	require.Equal(t, []byte("wwwwwwww"), h.RawBuffer())
	h.Release()
	require.Equal(t, int64(0), c.Metrics().Pinned)
	require.Nil(t, v.RawBuffer())
}
