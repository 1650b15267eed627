// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/cockroachdb/compressmap/internal/invariants"
	"github.com/cockroachdb/compressmap/internal/manual"
)

// Value holds a reference counted block buffer. The buffer is allocated
// through the manual package and returned to it when the last reference is
// released.
type Value struct {
	buf     []byte
	purpose manual.Purpose
	refs    atomic.Int32
}

// Alloc allocates a Value with a buffer of n bytes and a single reference
// owned by the caller. The caller either hands the reference to the cache with
// Cache.Set or drops it with Release.
func Alloc(purpose manual.Purpose, n int) *Value {
	v := &Value{buf: manual.New(purpose, n), purpose: purpose}
	v.refs.Store(1)
	// Note: this is a no-op if invariants are disabled or race is enabled.
	invariants.SetFinalizer(v, func(obj interface{}) {
		v := obj.(*Value)
		if v.buf != nil {
			fmt.Fprintf(os.Stderr, "%p: cache value was not freed: refs=%d\n", v, v.refs.Load())
			os.Exit(1)
		}
	})
	return v
}

// RawBuffer returns the buffer associated with the value. The contents of the
// buffer must not be changed once the value has been added to the cache.
func (v *Value) RawBuffer() []byte {
	if v == nil {
		return nil
	}
	return v.buf
}

func (v *Value) refCount() int32 {
	return v.refs.Load()
}

func (v *Value) acquire() {
	v.refs.Add(1)
}

// Release drops a reference. The buffer is freed when no references remain.
func (v *Value) Release() {
	if v == nil {
		return
	}
	switch n := v.refs.Add(-1); {
	case n == 0:
		manual.Free(v.purpose, v.buf)
		// Clearing buf is needed for the leak check performed by the finalizer.
		v.buf = nil
	case n < 0:
		panic(fmt.Sprintf("cache: value released too many times: refs=%d", n))
	}
}
