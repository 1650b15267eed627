// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compressmap

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/compressmap/internal/base"
	"github.com/cockroachdb/compressmap/internal/cache"
	"github.com/cockroachdb/compressmap/internal/compression"
	"github.com/cockroachdb/compressmap/internal/invariants"
	"github.com/cockroachdb/compressmap/internal/manual"
	"github.com/cockroachdb/errors"
)

// block is a contiguous region of record data. A block starts out writable,
// backed by a raw buffer that records are appended to, and is frozen into a
// compressed buffer. A frozen block is immutable; its raw bytes are recreated
// on demand in the hydration cache.
type block struct {
	// id identifies the block in the hydration cache. Ids are never reused by
	// a Storage, so a cache entry cannot outlive the block it was built from
	// and be mistaken for another.
	id uint64

	// Writable state. raw holds a single reference owned by the block; wOff is
	// the write cursor.
	raw  *cache.Value
	wOff int

	// Frozen state.
	frozen     bool
	compressed []byte
	algorithm  compression.Algorithm
	oldLen     int
	checksum   uint64
}

func newBlock(id uint64, capacity int) *block {
	return &block{
		id:  id,
		raw: cache.Alloc(manual.BlockBuffer, capacity),
	}
}

func (b *block) capacity() int {
	return len(b.raw.RawBuffer())
}

// rawLen returns the number of uncompressed bytes held by the block.
func (b *block) rawLen() int {
	if b.frozen {
		return b.oldLen
	}
	return b.wOff
}

// compressedLen returns the size of the compressed buffer, or 0 for a
// writable block.
func (b *block) compressedLen() int {
	return len(b.compressed)
}

// hasRoom returns true if a record of n bytes can be appended.
func (b *block) hasRoom(n int) bool {
	return !b.frozen && b.wOff+n <= b.capacity()
}

// append copies data at the write cursor and returns its offset.
func (b *block) append(data []byte) int {
	off := b.wOff
	copy(b.raw.RawBuffer()[off:off+len(data)], data)
	b.wOff += len(data)
	return off
}

// freeze compresses the live bytes of a writable block and releases its raw
// buffer. scratch is reused across calls and returned. On error the block is
// left writable.
func (b *block) freeze(c compression.Compressor, scratch []byte) ([]byte, error) {
	if invariants.Enabled && b.frozen {
		panic(errors.AssertionFailedf("block %d is already frozen", errors.Safe(b.id)))
	}
	raw := b.raw.RawBuffer()[:b.wOff]
	out, setting := raw, compression.None
	if len(raw) > 0 {
		scratch, setting = c.Compress(scratch[:0], raw)
		out = scratch
		// Store the block uncompressed if compression saved less than 12.5%.
		if len(out) >= len(raw)-len(raw)/8 {
			out, setting = raw, compression.None
		}
	}
	if invariants.Enabled && len(raw) > 0 {
		check := make([]byte, len(raw))
		if err := compression.DecompressExact(setting.Algorithm, check, out); err != nil {
			return scratch, errors.Wrapf(err, "verifying block %d", errors.Safe(b.id))
		}
		if !bytes.Equal(check, raw) {
			return scratch, errors.AssertionFailedf("block %d does not round-trip through %s",
				errors.Safe(b.id), setting)
		}
	}

	b.compressed = manual.New(manual.CompressedBuffer, len(out))
	copy(b.compressed, out)
	b.algorithm = setting.Algorithm
	b.oldLen = b.wOff
	b.checksum = xxhash.Sum64(raw)
	b.frozen = true
	b.raw.Release()
	b.raw = nil
	return scratch, nil
}

// hydrate decompresses a frozen block into a new buffer of oldLen bytes and
// verifies its checksum. The returned value holds one reference owned by the
// caller.
func (b *block) hydrate(verifyChecksum bool) (*cache.Value, error) {
	v := cache.Alloc(manual.HydratedBuffer, b.oldLen)
	if err := compression.DecompressExact(b.algorithm, v.RawBuffer(), b.compressed); err != nil {
		v.Release()
		return nil, errors.Wrapf(err, "block %d", errors.Safe(b.id))
	}
	if verifyChecksum {
		if sum := xxhash.Sum64(v.RawBuffer()); sum != b.checksum {
			v.Release()
			return nil, base.CorruptionErrorf("compressmap: block %d checksum mismatch: %016x != %016x",
				errors.Safe(b.id), errors.Safe(sum), errors.Safe(b.checksum))
		}
	}
	return v, nil
}

// release frees the buffers held by the block.
func (b *block) release() {
	if b.raw != nil {
		b.raw.Release()
		b.raw = nil
	}
	if b.compressed != nil {
		manual.Free(manual.CompressedBuffer, b.compressed)
		b.compressed = nil
	}
}
