// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compressmap

import (
	"cmp"
	"slices"

	"github.com/cockroachdb/compressmap/internal/cache"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
)

// Relocation records the move of a record performed by Compact.
type Relocation struct {
	Key  Key
	From Pointer
	To   Pointer
}

// CompactionResult describes the outcome of a compaction.
type CompactionResult struct {
	// Relocations lists, in ascending key order, every record whose location
	// changed.
	Relocations  []Relocation
	BlocksBefore int
	BlocksAfter  int
	// BytesBefore and BytesAfter are the uncompressed bytes held by blocks
	// (QueryBytes) before and after the compaction.
	BytesBefore int64
	BytesAfter  int64
}

// Reclaimed returns the number of uncompressed bytes freed by the compaction.
func (r CompactionResult) Reclaimed() int64 {
	return r.BytesBefore - r.BytesAfter
}

func (r CompactionResult) String() string {
	return redact.StringWithoutMarkers(r)
}

// SafeFormat implements redact.SafeFormatter.
func (r CompactionResult) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("compacted %d blocks (%s) into %d blocks (%s), %d records relocated",
		redact.Safe(r.BlocksBefore), crhumanize.Bytes(r.BytesBefore, crhumanize.Compact, crhumanize.OmitI),
		redact.Safe(r.BlocksAfter), crhumanize.Bytes(r.BytesAfter, crhumanize.Compact, crhumanize.OmitI),
		redact.Safe(len(r.Relocations)))
}

// Compact rewrites the live records into a minimal sequence of new blocks,
// dropping the space of removed and superseded records. Live records keep
// their relative order within and across blocks. The Pointers of all records
// are rewritten in one step once every record has been copied; if reading a
// block fails, the storage is left unchanged. The new blocks are frozen.
//
// Handles obtained before Compact remain valid.
func (s *Storage) Compact() (CompactionResult, error) {
	if err := s.checkOpen(); err != nil {
		return CompactionResult{}, err
	}
	res := CompactionResult{
		BlocksBefore: len(s.blocks),
		BytesBefore:  s.QueryBytes(),
	}

	live := slices.Collect(s.keys.All())
	slices.SortFunc(live, func(a, b Pointer) int {
		return cmp.Or(
			cmp.Compare(a.Block, b.Block),
			cmp.Compare(a.Offset, b.Offset),
			cmp.Compare(a.Key, b.Key),
		)
	})

	var newBlocks []*block
	moved := make([]Pointer, 0, len(live))
	var src cache.Handle
	srcBlock := -1
	for _, p := range live {
		if p.Block != srcBlock {
			src.Release()
			h, err := s.blockHandle(s.blocks[p.Block])
			if err != nil {
				for _, b := range newBlocks {
					b.release()
				}
				return CompactionResult{}, err
			}
			src, srcBlock = h, p.Block
		}
		if n := len(newBlocks); n == 0 || !newBlocks[n-1].hasRoom(p.Length) {
			newBlocks = append(newBlocks, s.newBlock(max(s.opts.BlockSize, p.Length)))
		}
		off := newBlocks[len(newBlocks)-1].append(src.RawBuffer()[p.Offset:p.End()])
		moved = append(moved, Pointer{
			Key:    p.Key,
			Block:  len(newBlocks) - 1,
			Offset: off,
			Length: p.Length,
		})
	}
	src.Release()

	for _, b := range s.blocks {
		s.cache.Evict(b.id)
		b.release()
	}
	s.blocks = newBlocks
	for i, p := range moved {
		s.keys.Replace(p)
		if p != live[i] {
			res.Relocations = append(res.Relocations, Relocation{Key: p.Key, From: live[i], To: p})
		}
	}
	slices.SortFunc(res.Relocations, func(a, b Relocation) int {
		return cmp.Compare(a.Key, b.Key)
	})
	res.BlocksAfter = len(s.blocks)
	res.BytesAfter = s.QueryBytes()

	s.metrics.compactions++
	s.metrics.bytesReclaimed += res.Reclaimed()
	s.opts.Logger.Infof("compressmap: %s", res)

	return res, s.Compress()
}
