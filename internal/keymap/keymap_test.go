// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package keymap

import (
	"testing"

	"github.com/cockroachdb/compressmap/internal/base"
	"github.com/stretchr/testify/require"
)

func TestKeyMap(t *testing.T) {
	m := New()
	require.Equal(t, base.Key(0), m.LastKey())

	var keys []base.Key
	for i := 0; i < 100; i++ {
		k := m.Next()
		m.Set(base.Pointer{Key: k, Block: i / 10, Offset: (i % 10) * 8, Length: 8})
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
	require.Equal(t, 100, m.Len())

	p, ok := m.Get(keys[42])
	require.True(t, ok)
	require.Equal(t, base.Pointer{Key: keys[42], Block: 4, Offset: 16, Length: 8}, p)

	_, ok = m.Delete(keys[42])
	require.True(t, ok)
	_, ok = m.Get(keys[42])
	require.False(t, ok)
	_, ok = m.Delete(keys[42])
	require.False(t, ok)
	require.Equal(t, 99, m.Len())

	require.True(t, m.Replace(base.Pointer{Key: keys[7], Block: 20, Offset: 0, Length: 8}))
	p, _ = m.Get(keys[7])
	require.Equal(t, 20, p.Block)
	require.False(t, m.Replace(base.Pointer{Key: keys[42], Block: 20}))

	mx, ok := m.Max()
	require.True(t, ok)
	require.Equal(t, keys[99], mx.Key)

	var prev base.Key
	n := 0
	for p := range m.All() {
		require.Greater(t, p.Key, prev)
		prev = p.Key
		n++
	}
	require.Equal(t, 99, n)
}

func TestKeyMapMaxRemovedNotReissued(t *testing.T) {
	m := New()
	k1 := m.Next()
	m.Set(base.Pointer{Key: k1})
	k2 := m.Next()
	m.Set(base.Pointer{Key: k2})
	m.Delete(k2)

	k3 := m.Next()
	require.Greater(t, k3, k2)

	m.Clear()
	require.Equal(t, 0, m.Len())
	require.Greater(t, m.Next(), k3)
}

func TestKeyMapSetUnallocated(t *testing.T) {
	m := New()
	require.Panics(t, func() { m.Set(base.Pointer{Key: 1}) })
	k := m.Next()
	m.Set(base.Pointer{Key: k})
	require.Panics(t, func() { m.Set(base.Pointer{Key: k}) })
}
