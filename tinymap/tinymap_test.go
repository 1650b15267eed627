// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tinymap

import (
	"maps"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	var m Map[string, int]
	m.Set("m", 1)
	m.Set("z", 2) // append
	m.Set("a", 3) // prepend
	m.Set("q", 4)
	m.Set("m", 5)
	require.Equal(t, 4, m.Len())

	var keys []string
	for k := range m.All() {
		keys = append(keys, k)
	}
	require.Equal(t, []string{"a", "m", "q", "z"}, keys)

	v, ok := m.Get("m")
	require.True(t, ok)
	require.Equal(t, 5, v)
	_, ok = m.Get("b")
	require.False(t, ok)

	require.False(t, m.SetIfAbsent("m", 6))
	require.True(t, m.SetIfAbsent("b", 7))
	v, _ = m.Get("m")
	require.Equal(t, 5, v)

	*m.GetOrInsert("c") += 10
	*m.GetOrInsert("c") += 10
	*m.GetOrInsert("a") += 10
	v, _ = m.Get("c")
	require.Equal(t, 20, v)
	v, _ = m.Get("a")
	require.Equal(t, 13, v)

	require.True(t, m.Delete("q"))
	require.False(t, m.Delete("q"))
	require.Equal(t, 5, m.Len())

	m.Clear()
	require.Zero(t, m.Len())
	_, ok = m.Get("a")
	require.False(t, ok)
}

func TestMapRandomized(t *testing.T) {
	seed := rand.Uint64()
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewPCG(seed, seed))

	m := Make[int, int](16)
	ref := map[int]int{}
	for i := 0; i < 5000; i++ {
		k := rng.IntN(300)
		switch rng.IntN(4) {
		case 0, 1:
			m.Set(k, i)
			ref[k] = i
		case 2:
			_, exists := ref[k]
			require.Equal(t, !exists, m.SetIfAbsent(k, i))
			if !exists {
				ref[k] = i
			}
		case 3:
			_, exists := ref[k]
			require.Equal(t, exists, m.Delete(k))
			delete(ref, k)
		}
	}
	require.Equal(t, len(ref), m.Len())
	var keys []int
	for k, v := range m.All() {
		require.Equal(t, ref[k], v)
		keys = append(keys, k)
	}
	require.True(t, slices.IsSorted(keys))
	require.Equal(t, ref, maps.Collect(m.All()))
}
