// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package keymap maps the stable keys handed out by an arena to the physical
// location of their records.
package keymap

import (
	"cmp"
	"iter"

	"github.com/cockroachdb/compressmap/internal/base"
	"github.com/cockroachdb/compressmap/internal/btree"
	"github.com/cockroachdb/compressmap/internal/invariants"
	"github.com/cockroachdb/errors"
)

func cmpPointer(a, b base.Pointer) int {
	return cmp.Compare(a.Key, b.Key)
}

// Map is an ordered key to Pointer index. Keys are allocated from a counter
// that only moves forward; Clear does not reset it, so a key is never issued
// twice by the same Map.
type Map struct {
	tree *btree.BTree[base.Pointer]
	last base.Key
}

// New returns an empty Map.
func New() *Map {
	return &Map{tree: btree.New(cmpPointer)}
}

// Next allocates and returns a new key, greater than every key allocated
// before.
func (m *Map) Next() base.Key {
	m.last++
	return m.last
}

// LastKey returns the most recently allocated key, or 0.
func (m *Map) LastKey() base.Key {
	return m.last
}

// Set adds the pointer for a key obtained from Next. Setting a key that was
// never allocated or that is already present is a programming error.
func (m *Map) Set(p base.Pointer) {
	if p.Key == 0 || p.Key > m.last {
		panic(errors.AssertionFailedf("keymap: key %s was not allocated (last %s)", p.Key, m.last))
	}
	if _, replaced := m.tree.Set(p); replaced {
		panic(errors.AssertionFailedf("keymap: key %s set twice", p.Key))
	}
	if invariants.Sometimes(1) {
		m.tree.Verify()
	}
}

// Get returns the pointer for a key.
func (m *Map) Get(k base.Key) (base.Pointer, bool) {
	return m.tree.Get(base.Pointer{Key: k})
}

// Delete removes a key, returning its pointer. Deleting an unknown key is a
// no-op.
func (m *Map) Delete(k base.Key) (base.Pointer, bool) {
	return m.tree.Delete(base.Pointer{Key: k})
}

// Replace rewrites the physical coordinates of an existing key. It returns
// false if the key is not present.
func (m *Map) Replace(p base.Pointer) bool {
	if _, ok := m.tree.Get(p); !ok {
		return false
	}
	m.tree.Set(p)
	return true
}

// Len returns the number of live keys.
func (m *Map) Len() int {
	return m.tree.Len()
}

// Max returns the pointer with the largest live key.
func (m *Map) Max() (base.Pointer, bool) {
	return m.tree.Max()
}

// All iterates over the live pointers in ascending key order. The Map must not
// be modified during iteration.
func (m *Map) All() iter.Seq[base.Pointer] {
	return m.tree.All()
}

// Clear removes every key. The key counter is retained.
func (m *Map) Clear() {
	m.tree.Reset()
}
