// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import (
	"fmt"
	"os"

	"github.com/cockroachdb/compressmap/internal/invariants"
	"github.com/cockroachdb/swiss"
)

func fibonacciHash(k *uint64, seed uintptr) uintptr {
	const m = 11400714819323198485
	h := uint64(seed)
	h ^= *k * m
	return uintptr(h)
}

var blockMapOptions = []swiss.Option[uint64, *entry]{
	swiss.WithHash[uint64, *entry](fibonacciHash),
	swiss.WithMaxBucketCapacity[uint64, *entry](1 << 16),
}

// blockMap maps block ids to their cache entries.
type blockMap struct {
	swiss.Map[uint64, *entry]
	closed bool
}

func newBlockMap(initialCapacity int) *blockMap {
	m := &blockMap{}
	m.Init(initialCapacity)

	// Note: this is a no-op if invariants are disabled or race is enabled.
	invariants.SetFinalizer(m, func(obj interface{}) {
		m := obj.(*blockMap)
		if !m.closed {
			fmt.Fprintf(os.Stderr, "%p: block-map not closed\n", m)
			os.Exit(1)
		}
	})
	return m
}

func (m *blockMap) Init(initialCapacity int) {
	m.Map.Init(initialCapacity, blockMapOptions...)
}

func (m *blockMap) Close() {
	m.Map.Close()
	m.closed = true
}
