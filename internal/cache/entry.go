// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

// entry holds the metadata for a cache entry. Entries are linked in a circular
// list ordered by recency; the list head is a sentinel owned by the Cache.
type entry struct {
	id uint64
	// The value associated with the entry. The entry holds a reference on the
	// value which is maintained by entry.setValue().
	val  *Value
	link struct {
		next *entry
		prev *entry
	}
	size int64
}

func newEntry(id uint64, v *Value) *entry {
	e := &entry{id: id}
	e.link.next = e
	e.link.prev = e
	e.setValue(v)
	return e
}

func (e *entry) free() {
	e.setValue(nil)
}

// link inserts s immediately before e.
func (e *entry) linkBefore(s *entry) {
	s.link.prev = e.link.prev
	s.link.prev.link.next = s
	s.link.next = e
	s.link.next.link.prev = s
}

func (e *entry) unlink() {
	e.link.prev.link.next = e.link.next
	e.link.next.link.prev = e.link.prev
	e.link.prev = e
	e.link.next = e
}

func (e *entry) setValue(v *Value) {
	if v != nil {
		v.acquire()
	}
	old := e.val
	e.val = v
	if v != nil {
		e.size = int64(len(v.buf))
	} else {
		e.size = 0
	}
	old.Release()
}

func (e *entry) acquireValue() *Value {
	v := e.val
	if v != nil {
		v.acquire()
	}
	return v
}
