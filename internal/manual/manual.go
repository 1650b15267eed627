// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package manual accounts for the byte buffers backing storage blocks. Every
// buffer is allocated and freed through New and Free so that live byte and
// object counts can be reported per purpose.
package manual

import (
	"sync/atomic"

	"github.com/cockroachdb/compressmap/internal/invariants"
)

// Purpose identifies the use-case for an allocation.
type Purpose uint8

const (
	_ Purpose = iota

	// BlockBuffer is the raw buffer of a writable block.
	BlockBuffer
	// CompressedBuffer is the compressed buffer of a frozen block.
	CompressedBuffer
	// HydratedBuffer is a decompressed copy of a frozen block, owned by the
	// hydration cache.
	HydratedBuffer

	NumPurposes
)

func (p Purpose) String() string {
	switch p {
	case BlockBuffer:
		return "block"
	case CompressedBuffer:
		return "compressed"
	case HydratedBuffer:
		return "hydrated"
	default:
		return "unknown"
	}
}

// Metrics contains memory statistics by purpose.
type Metrics [NumPurposes]struct {
	// InUseBytes is the total number of bytes currently allocated. This is just
	// the sum of the capacities of the allocations and does not include any
	// overhead or fragmentation.
	InUseBytes uint64
	// TotalBytes is the total cumulative number of bytes allocated since the
	// process started.
	TotalBytes uint64
	// InUseObjects is the number of buffers currently allocated.
	InUseObjects uint64
	// TotalObjects is the cumulative number of buffers allocated.
	TotalObjects uint64
}

var counters [NumPurposes]struct {
	TotalAllocated   atomic.Uint64
	TotalFreed       atomic.Uint64
	ObjectsAllocated atomic.Uint64
	ObjectsFreed     atomic.Uint64
	// Pad to separate counters into cache lines. We assume 64 byte cache line
	// size which is the case for ARM64 servers and AMD64.
	_ [4]uint64
}

// GetMetrics returns memory usage statistics.
func GetMetrics() Metrics {
	var res Metrics
	for i := range res {
		res[i].TotalBytes = counters[i].TotalAllocated.Load()
		res[i].InUseBytes = res[i].TotalBytes - counters[i].TotalFreed.Load()
		res[i].TotalObjects = counters[i].ObjectsAllocated.Load()
		res[i].InUseObjects = res[i].TotalObjects - counters[i].ObjectsFreed.Load()
	}
	return res
}

// New allocates a zeroed slice of length and capacity n.
func New(purpose Purpose, n int) []byte {
	if n == 0 {
		return nil
	}
	counters[purpose].TotalAllocated.Add(uint64(n))
	counters[purpose].ObjectsAllocated.Add(1)
	return make([]byte, n)
}

// Free records that the specified slice is no longer used. It has to be
// exactly the slice that was returned by New (possibly resliced, since the
// capacity is what is accounted for). In invariant builds the contents are
// mangled.
func Free(purpose Purpose, b []byte) {
	if cap(b) == 0 {
		return
	}
	invariants.MaybeMangle(b[:cap(b)])
	counters[purpose].TotalFreed.Add(uint64(cap(b)))
	counters[purpose].ObjectsFreed.Add(1)
}
