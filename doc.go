// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package compressmap provides in-memory containers that keep large numbers of
// small, rarely mutated records compressed in bulk.
//
// Storage is an arena of records addressed by stable integer keys. Records are
// appended to writable blocks (16 KB by default). Compress freezes every
// writable block into a compressed buffer; a frozen block is decompressed on
// demand into a bounded cache of hydrated blocks. Records are accessed through
// reference counted Handles that stay valid until released, even if the
// block is evicted from the cache in the meantime. Compact rewrites the live
// records into fresh blocks, reclaiming the space of removed records.
//
// LazyMap layers a key-ordered map over a Storage. Values are encoded through
// a ValueCodec. Inserting a new key only appends and marks the map Dirty;
// Sort restores key order, drops superseded values and freezes the storage:
//
//	m, err := compressmap.NewLazyMap[string, uint64](compressmap.Uint64Codec{},
//		compressmap.LazyMapOptions[uint64]{})
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//	for i, k := range keys {
//		if err := m.Set(k, uint64(i)); err != nil {
//			return err
//		}
//	}
//	if err := m.Sort(); err != nil {
//		return err
//	}
//	v, ok, err := m.Get("foo")
//
// Neither type is safe for concurrent use.
package compressmap // import "github.com/cockroachdb/compressmap"
