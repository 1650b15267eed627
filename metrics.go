// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compressmap

import (
	"github.com/cockroachdb/compressmap/internal/cache"
	"github.com/cockroachdb/compressmap/internal/manual"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
)

// CacheMetrics holds metrics for the hydration cache.
type CacheMetrics = cache.Metrics

// AllocMetrics holds process-wide buffer allocation counts, indexed by
// AllocPurpose.
type AllocMetrics = manual.Metrics

// AllocPurpose identifies a class of block buffer.
type AllocPurpose = manual.Purpose

// Buffer classes reported in AllocMetrics.
const (
	BlockBuffer      = manual.BlockBuffer
	CompressedBuffer = manual.CompressedBuffer
	HydratedBuffer   = manual.HydratedBuffer
)

// Metrics holds metrics for a Storage.
type Metrics struct {
	Blocks struct {
		// The number of blocks still accepting records.
		Writable int64
		// The number of frozen blocks.
		Frozen int64
		// The cumulative number of blocks allocated and frozen.
		Allocated   int64
		FrozenTotal int64
	}
	// The number of live records.
	Records int64
	// RawBytes is QueryBytes: the uncompressed bytes held by all blocks.
	RawBytes int64
	// FrozenRawBytes is the uncompressed size of the frozen blocks.
	FrozenRawBytes int64
	// CompressedBytes is QueryCBytes.
	CompressedBytes int64
	// LiveBytes is the total length of live records.
	LiveBytes int64

	Cache CacheMetrics

	Compact struct {
		// The number of compactions performed.
		Count int64
		// The cumulative uncompressed bytes reclaimed by compactions.
		BytesReclaimed int64
	}

	// The number of blocks that failed to decompress or verify.
	Corruptions int64

	// Alloc contains process-wide buffer accounting.
	Alloc AllocMetrics
}

// Metrics returns metrics about the storage.
func (s *Storage) Metrics() Metrics {
	var m Metrics
	for _, b := range s.blocks {
		if b.frozen {
			m.Blocks.Frozen++
			m.FrozenRawBytes += int64(b.oldLen)
		} else {
			m.Blocks.Writable++
		}
		m.RawBytes += int64(b.rawLen())
		m.CompressedBytes += int64(b.compressedLen())
	}
	m.Blocks.Allocated = s.metrics.blocksAllocated
	m.Blocks.FrozenTotal = s.metrics.blocksFrozen
	m.Records = int64(s.keys.Len())
	m.LiveBytes = s.liveBytes
	m.Cache = s.cache.Metrics()
	m.Compact.Count = s.metrics.compactions
	m.Compact.BytesReclaimed = s.metrics.bytesReclaimed
	m.Corruptions = s.metrics.corruptions
	m.Alloc = manual.GetMetrics()
	return m
}

// BlockInfo describes a block of a Storage.
type BlockInfo struct {
	Frozen bool
	// RawBytes is the number of uncompressed bytes in the block.
	RawBytes int
	// CompressedBytes is the size of the compressed buffer; 0 while writable.
	CompressedBytes int
	// Algorithm is the algorithm the block was frozen with.
	Algorithm CompressionAlgorithm
}

// Blocks returns a description of every block, in allocation order.
func (s *Storage) Blocks() []BlockInfo {
	infos := make([]BlockInfo, len(s.blocks))
	for i, b := range s.blocks {
		infos[i] = BlockInfo{
			Frozen:          b.frozen,
			RawBytes:        b.rawLen(),
			CompressedBytes: b.compressedLen(),
			Algorithm:       b.algorithm,
		}
	}
	return infos
}

// CompressionRatio returns the ratio of uncompressed bytes to compressed
// bytes over frozen blocks. It returns 0 when nothing is frozen.
func (m *Metrics) CompressionRatio() float64 {
	if m.CompressedBytes == 0 {
		return 0
	}
	return float64(m.FrozenRawBytes) / float64(m.CompressedBytes)
}

// CacheHitRate returns the percentage of hydration cache lookups that hit.
func (m *Metrics) CacheHitRate() float64 {
	if total := m.Cache.Hits + m.Cache.Misses; total > 0 {
		return 100 * float64(m.Cache.Hits) / float64(total)
	}
	return 0
}

func (m *Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}

// SafeFormat implements redact.SafeFormatter.
func (m *Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	humanBytes := func(n int64) crhumanize.SafeString {
		return crhumanize.Bytes(n, crhumanize.Compact, crhumanize.OmitI)
	}
	w.Printf("blocks: %d writable, %d frozen (%d allocated, %d frozen total)\n",
		redact.Safe(m.Blocks.Writable), redact.Safe(m.Blocks.Frozen),
		redact.Safe(m.Blocks.Allocated), redact.Safe(m.Blocks.FrozenTotal))
	w.Printf("records: %s (%s live)\n",
		crhumanize.Count(m.Records, crhumanize.Compact), humanBytes(m.LiveBytes))
	w.Printf("bytes: %s raw, %s compressed (ratio %.2f)\n",
		humanBytes(m.RawBytes), humanBytes(m.CompressedBytes), redact.Safe(m.CompressionRatio()))
	w.Printf("cache: %s in %d blocks, %d hits, %d misses (%.1f%%), %d evictions, %d pinned\n",
		humanBytes(m.Cache.Size), redact.Safe(m.Cache.Count), redact.Safe(m.Cache.Hits),
		redact.Safe(m.Cache.Misses), redact.Safe(m.CacheHitRate()),
		redact.Safe(m.Cache.Evictions), redact.Safe(m.Cache.Pinned))
	w.Printf("compactions: %d (%s reclaimed)\n",
		redact.Safe(m.Compact.Count), humanBytes(m.Compact.BytesReclaimed))
	w.Printf("corruptions: %d\n", redact.Safe(m.Corruptions))
}
