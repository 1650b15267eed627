// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compressmap

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Mode is the ordering state of a LazyMap.
type Mode int8

const (
	// Ordered means the entries are sorted by key with no duplicates; lookups
	// are served by binary search.
	Ordered Mode = iota
	// Dirty means entries have been appended since the last Sort. Lookups and
	// deletions are refused until the next Sort.
	Dirty
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Ordered:
		return "ordered"
	case Dirty:
		return "dirty"
	default:
		return fmt.Sprintf("Mode(%d)", int8(m))
	}
}

// SafeFormat implements redact.SafeFormatter.
func (m Mode) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(m.String()))
}

// LazyMapOptions configures a LazyMap.
type LazyMapOptions[V any] struct {
	// Storage configures the Storage holding the encoded values.
	Storage *Options
	// Release, if set, is called with the decoded value of every entry that
	// leaves the map: on Del, on Clear, when Set overwrites an entry and when
	// Sort drops a superseded entry.
	Release func(V)
}

type lazyEntry[K cmp.Ordered] struct {
	key K
	sk  Key
}

func (e lazyEntry[K]) compare(o lazyEntry[K]) int {
	return cmp.Or(cmp.Compare(e.key, o.key), cmp.Compare(e.sk, o.sk))
}

// LazyMap is a key-ordered map whose values are encoded into a Storage.
//
// Writes are cheap: a Set of a key that is not present appends an entry and
// switches the map to Dirty mode, without keeping the entries sorted. Sort
// restores Ordered mode, keeping the most recent value of every key, and
// freezes the storage. Get and Del only operate in Ordered mode.
//
// A LazyMap is not safe for concurrent use.
type LazyMap[K cmp.Ordered, V any] struct {
	codec         ValueCodec[V]
	release       func(V)
	compactOnSort bool
	storage       *Storage
	entries       []lazyEntry[K]
	mode          Mode
	buf           []byte
}

// NewLazyMap returns an empty LazyMap in Ordered mode.
func NewLazyMap[K cmp.Ordered, V any](
	codec ValueCodec[V], opts LazyMapOptions[V],
) (*LazyMap[K, V], error) {
	s, err := NewStorage(opts.Storage)
	if err != nil {
		return nil, err
	}
	return &LazyMap[K, V]{
		codec:         codec,
		release:       opts.Release,
		compactOnSort: s.opts.CompactOnSort,
		storage:       s,
		mode:          Ordered,
	}, nil
}

// Mode returns the current mode.
func (m *LazyMap[K, V]) Mode() Mode {
	return m.mode
}

// Len returns the number of entries. In Dirty mode this includes entries that
// the next Sort will drop as superseded.
func (m *LazyMap[K, V]) Len() int {
	return len(m.entries)
}

// Empty returns true if the map has no entries.
func (m *LazyMap[K, V]) Empty() bool {
	return len(m.entries) == 0
}

// Storage returns the storage holding the encoded values. It is exposed for
// metrics; records owned by the map must not be modified or removed through
// it.
func (m *LazyMap[K, V]) Storage() *Storage {
	return m.storage
}

func (m *LazyMap[K, V]) search(k K) (int, bool) {
	return slices.BinarySearchFunc(m.entries, k, func(e lazyEntry[K], k K) int {
		return cmp.Compare(e.key, k)
	})
}

func (m *LazyMap[K, V]) decode(sk Key) (V, error) {
	h, err := m.storage.Get(sk)
	if err != nil {
		var zero V
		return zero, err
	}
	defer h.Release()
	return m.codec.Decode(h.Bytes())
}

// releaseValue runs the Release hook on the value stored under sk.
func (m *LazyMap[K, V]) releaseValue(sk Key) error {
	if m.release == nil {
		return nil
	}
	v, err := m.decode(sk)
	if err != nil {
		return err
	}
	m.release(v)
	return nil
}

// Set associates v with k.
//
// In Ordered mode, an existing entry for k is overwritten after releasing its
// previous value and the map stays Ordered; a new key is appended and switches
// the map to Dirty. In Dirty mode the entry is always appended, shadowing any
// earlier entry for k until the next Sort drops it.
func (m *LazyMap[K, V]) Set(k K, v V) error {
	var err error
	if m.buf, err = m.codec.Encode(m.buf[:0], v); err != nil {
		return errors.Wrap(err, "compressmap: encoding value")
	}
	if m.mode == Ordered {
		if i, found := m.search(k); found {
			sk := m.entries[i].sk
			if err := m.releaseValue(sk); err != nil {
				return err
			}
			return m.storage.Replace(sk, m.buf)
		}
	}
	sk, err := m.storage.Insert(m.buf)
	if err != nil {
		return err
	}
	m.entries = append(m.entries, lazyEntry[K]{key: k, sk: sk})
	m.mode = Dirty
	return nil
}

// Get returns the value for k. In Dirty mode Get always reports that the key
// is absent; call Sort first.
func (m *LazyMap[K, V]) Get(k K) (V, bool, error) {
	var zero V
	if m.mode == Dirty {
		return zero, false, nil
	}
	i, found := m.search(k)
	if !found {
		return zero, false, nil
	}
	v, err := m.decode(m.entries[i].sk)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Del removes k, releasing its value, and reports whether it was present. In
// Dirty mode Del is a no-op that returns false.
func (m *LazyMap[K, V]) Del(k K) (bool, error) {
	if m.mode == Dirty {
		return false, nil
	}
	i, found := m.search(k)
	if !found {
		return false, nil
	}
	sk := m.entries[i].sk
	if err := m.releaseValue(sk); err != nil {
		return false, err
	}
	m.storage.Remove(sk)
	m.entries = slices.Delete(m.entries, i, i+1)
	return true, nil
}

// Sort restores Ordered mode. Entries are sorted by key and, among entries
// with the same key, only the most recently set one is kept; the others are
// released and removed from the storage. The storage is then frozen, and
// compacted if Options.CompactOnSort is set. Sort is a no-op in Ordered mode.
//
// Every superseded entry is dropped even if releasing one of them fails; the
// first such error is returned.
func (m *LazyMap[K, V]) Sort() error {
	if m.mode == Ordered || len(m.entries) == 0 {
		return nil
	}
	slices.SortStableFunc(m.entries, lazyEntry[K].compare)

	var err error
	out := m.entries[:0]
	for i, e := range m.entries {
		if i+1 < len(m.entries) && cmp.Compare(e.key, m.entries[i+1].key) == 0 {
			err = errors.CombineErrors(err, m.releaseValue(e.sk))
			m.storage.Remove(e.sk)
			continue
		}
		out = append(out, e)
	}
	clear(m.entries[len(out):])
	m.entries = out
	m.mode = Ordered

	if cerr := m.storage.Compress(); cerr != nil {
		return errors.CombineErrors(err, cerr)
	}
	if m.compactOnSort {
		if _, cerr := m.storage.Compact(); cerr != nil {
			return errors.CombineErrors(err, cerr)
		}
	}
	return err
}

// Clear releases every value and empties the map, which returns to Ordered
// mode. In Dirty mode superseded entries are released too.
func (m *LazyMap[K, V]) Clear() error {
	var err error
	for _, e := range m.entries {
		err = errors.CombineErrors(err, m.releaseValue(e.sk))
	}
	m.entries = nil
	m.storage.Clear()
	m.mode = Ordered
	return err
}

// Close clears the map and closes its storage.
func (m *LazyMap[K, V]) Close() error {
	err := m.Clear()
	return errors.CombineErrors(err, m.storage.Close())
}

// All returns an iterator over the entries in their current order: ascending
// by key in Ordered mode, and unsorted, possibly including superseded
// entries, in Dirty mode. Iteration stops early if a value fails to decode;
// use Scan to observe such errors. The map must not be modified during
// iteration.
func (m *LazyMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, e := range m.entries {
			v, err := m.decode(e.sk)
			if err != nil || !yield(e.key, v) {
				return
			}
		}
	}
}

// Scan calls fn for every entry in the same order as All, stopping at the
// first error.
func (m *LazyMap[K, V]) Scan(fn func(K, V) error) error {
	for _, e := range m.entries {
		v, err := m.decode(e.sk)
		if err != nil {
			return err
		}
		if err := fn(e.key, v); err != nil {
			return err
		}
	}
	return nil
}
