// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tinymap implements a map backed by a sorted slice. It uses less
// memory than a Go map and iterates in key order, at the cost of O(n)
// insertions and deletions, which suits small or rarely updated tables.
package tinymap

import (
	"cmp"
	"iter"
	"slices"
)

type pair[K cmp.Ordered, V any] struct {
	key K
	val V
}

// Map is a sorted-slice map. The zero value is an empty map ready to use.
type Map[K cmp.Ordered, V any] struct {
	pairs []pair[K, V]
}

// Make returns an empty map with room for n entries.
func Make[K cmp.Ordered, V any](n int) Map[K, V] {
	return Map[K, V]{pairs: make([]pair[K, V], 0, n)}
}

func (m *Map[K, V]) search(k K) (int, bool) {
	return slices.BinarySearchFunc(m.pairs, k, func(p pair[K, V], k K) int {
		return cmp.Compare(p.key, k)
	})
}

// insert returns the index of k, inserting v if k is absent. If replace is
// set, an existing value is overwritten.
func (m *Map[K, V]) insert(k K, v V, replace bool) int {
	n := len(m.pairs)
	switch {
	case n == 0 || cmp.Less(m.pairs[n-1].key, k):
		m.pairs = append(m.pairs, pair[K, V]{k, v})
		return n
	case cmp.Less(k, m.pairs[0].key):
		m.pairs = slices.Insert(m.pairs, 0, pair[K, V]{k, v})
		return 0
	}
	i, found := m.search(k)
	if !found {
		m.pairs = slices.Insert(m.pairs, i, pair[K, V]{k, v})
	} else if replace {
		m.pairs[i].val = v
	}
	return i
}

// Set associates v with k, replacing any existing value.
func (m *Map[K, V]) Set(k K, v V) {
	m.insert(k, v, true)
}

// SetIfAbsent associates v with k unless k is already present. It reports
// whether v was stored.
func (m *Map[K, V]) SetIfAbsent(k K, v V) bool {
	n := len(m.pairs)
	m.insert(k, v, false)
	return len(m.pairs) > n
}

// GetOrInsert returns a pointer to the value for k, inserting the zero value
// if k is absent. The pointer is valid until the next mutation of m.
func (m *Map[K, V]) GetOrInsert(k K) *V {
	var zero V
	i := m.insert(k, zero, false)
	return &m.pairs[i].val
}

// Get returns the value for k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	if i, found := m.search(k); found {
		return m.pairs[i].val, true
	}
	var zero V
	return zero, false
}

// Delete removes k and reports whether it was present.
func (m *Map[K, V]) Delete(k K) bool {
	i, found := m.search(k)
	if found {
		m.pairs = slices.Delete(m.pairs, i, i+1)
	}
	return found
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return len(m.pairs)
}

// Clear removes every entry, retaining the allocated capacity.
func (m *Map[K, V]) Clear() {
	clear(m.pairs)
	m.pairs = m.pairs[:0]
}

// All returns an iterator over the entries in ascending key order. The map
// must not be modified during iteration.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, p := range m.pairs {
			if !yield(p.key, p.val) {
				return
			}
		}
	}
}
