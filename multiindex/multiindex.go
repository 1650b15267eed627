// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package multiindex provides an ordered multiset that can be queried through
// several independent orderings of the same values.
package multiindex

import (
	"cmp"
	"iter"

	"github.com/cockroachdb/compressmap/internal/btree"
	"github.com/cockroachdb/errors"
)

// Index identifies an ordering added to a Set with AddIndex.
type Index int

type entry[T any] struct {
	v   *T
	seq uint64
}

type index[T any] struct {
	cmp  func(a, b T) int
	tree *btree.BTree[entry[T]]
}

// Set stores each value once and keeps one B-tree per index. Values comparing
// equal under an index are ordered by insertion, so every index is a multiset.
//
// Values are stored behind stable pointers. A stored value must not be
// modified in place in a way that changes its position in any index; use
// Update instead.
//
// The zero value is ready to use. A Set is not safe for concurrent use.
type Set[T any] struct {
	indexes []index[T]
	// bySeq holds every value in insertion order.
	bySeq *btree.BTree[entry[T]]
	seqs  map[*T]uint64
	// nextSeq starts at 1; sequence 0 is reserved for lookup probes.
	nextSeq uint64
}

func (s *Set[T]) init() {
	if s.bySeq == nil {
		s.bySeq = btree.New(func(a, b entry[T]) int { return cmp.Compare(a.seq, b.seq) })
		s.seqs = make(map[*T]uint64)
		s.nextSeq = 1
	}
}

// AddIndex adds an ordering defined by cmp and indexes the values already in
// the set.
func (s *Set[T]) AddIndex(cmpFn func(a, b T) int) Index {
	s.init()
	idx := index[T]{
		cmp: cmpFn,
		tree: btree.New(func(a, b entry[T]) int {
			if c := cmpFn(*a.v, *b.v); c != 0 {
				return c
			}
			return cmp.Compare(a.seq, b.seq)
		}),
	}
	for e := range s.bySeq.All() {
		idx.tree.Set(e)
	}
	s.indexes = append(s.indexes, idx)
	return Index(len(s.indexes) - 1)
}

func (s *Set[T]) index(i Index) *index[T] {
	if i < 0 || int(i) >= len(s.indexes) {
		panic(errors.AssertionFailedf("multiindex: unknown index %d", i))
	}
	return &s.indexes[i]
}

// Insert adds a copy of v and returns a pointer to the stored value.
func (s *Set[T]) Insert(v T) *T {
	s.init()
	e := entry[T]{v: new(T), seq: s.nextSeq}
	*e.v = v
	s.nextSeq++
	s.bySeq.Set(e)
	s.seqs[e.v] = e.seq
	for i := range s.indexes {
		s.indexes[i].tree.Set(e)
	}
	return e.v
}

// Erase removes the value p points to and reports whether it was present.
func (s *Set[T]) Erase(p *T) bool {
	seq, ok := s.seqs[p]
	if !ok {
		return false
	}
	e := entry[T]{v: p, seq: seq}
	for i := range s.indexes {
		if _, ok := s.indexes[i].tree.Delete(e); !ok {
			panic(errors.AssertionFailedf("multiindex: value missing from index %d", i))
		}
	}
	s.bySeq.Delete(e)
	delete(s.seqs, p)
	return true
}

// Update replaces the value old points to with v, returning the pointer to
// the new stored value. old is no longer valid afterwards. If old is not in
// the set, v is inserted.
func (s *Set[T]) Update(old *T, v T) *T {
	s.Erase(old)
	return s.Insert(v)
}

// Find returns the earliest inserted value equal to probe under idx.
func (s *Set[T]) Find(idx Index, probe T) (*T, bool) {
	it := s.LowerBound(idx, probe)
	if !it.Valid() || s.index(idx).cmp(*it.Value(), probe) != 0 {
		return nil, false
	}
	return it.Value(), true
}

// LowerBound returns an iterator positioned at the first value under idx that
// is not less than probe.
func (s *Set[T]) LowerBound(idx Index, probe T) Iterator[T] {
	x := s.index(idx)
	it := Iterator[T]{it: x.tree.NewIter()}
	it.it.SeekGE(entry[T]{v: &probe, seq: 0})
	return it
}

// UpperBound returns an iterator positioned at the first value under idx that
// is greater than probe.
func (s *Set[T]) UpperBound(idx Index, probe T) Iterator[T] {
	x := s.index(idx)
	it := Iterator[T]{it: x.tree.NewIter()}
	it.it.SeekGE(entry[T]{v: &probe, seq: ^uint64(0)})
	return it
}

// EqualRange returns the values v under idx with lo <= v <= hi, in index
// order. The bounds are swapped if hi orders before lo.
func (s *Set[T]) EqualRange(idx Index, lo, hi T) iter.Seq[*T] {
	x := s.index(idx)
	if x.cmp(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	return func(yield func(*T) bool) {
		for it := s.LowerBound(idx, lo); it.Valid(); it.Next() {
			if x.cmp(*it.Value(), hi) > 0 || !yield(it.Value()) {
				return
			}
		}
	}
}

// Ascend returns an iterator over all values in idx order.
func (s *Set[T]) Ascend(idx Index) iter.Seq[*T] {
	x := s.index(idx)
	return func(yield func(*T) bool) {
		for e := range x.tree.All() {
			if !yield(e.v) {
				return
			}
		}
	}
}

// All returns an iterator over all values in insertion order.
func (s *Set[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		if s.bySeq == nil {
			return
		}
		for e := range s.bySeq.All() {
			if !yield(e.v) {
				return
			}
		}
	}
}

// Len returns the number of values.
func (s *Set[T]) Len() int {
	return len(s.seqs)
}

// Empty returns true if the set holds no values.
func (s *Set[T]) Empty() bool {
	return s.Len() == 0
}

// Clear removes every value and every index.
func (s *Set[T]) Clear() {
	*s = Set[T]{}
}

// Iterator is a position within one index of a Set.
type Iterator[T any] struct {
	it btree.Iterator[entry[T]]
}

// Valid returns true if the iterator is positioned at a value.
func (i *Iterator[T]) Valid() bool {
	return i.it.Valid()
}

// Value returns the value at the current position.
func (i *Iterator[T]) Value() *T {
	return i.it.Item().v
}

// Next moves to the next value in index order.
func (i *Iterator[T]) Next() {
	i.it.Next()
}

// Prev moves to the previous value in index order.
func (i *Iterator[T]) Prev() {
	i.it.Prev()
}
