// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compressmap

import (
	"iter"

	"github.com/cockroachdb/compressmap/internal/cache"
	"github.com/cockroachdb/compressmap/internal/compression"
	"github.com/cockroachdb/compressmap/internal/invariants"
	"github.com/cockroachdb/compressmap/internal/keymap"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
)

// Storage is an arena of variable-size records addressed by stable integer
// keys. Records are appended to writable blocks; Compress freezes every
// writable block into a compressed buffer, after which records are served out
// of a bounded cache of decompressed blocks.
//
// A Storage is not safe for concurrent use.
type Storage struct {
	opts       Options
	blocks     []*block
	keys       *keymap.Map
	cache      *cache.Cache
	compressor compression.Compressor
	scratch    []byte
	// nextBlockID is the id of the next block allocated. It is never reset.
	nextBlockID uint64
	liveBytes   int64

	metrics struct {
		compactions     int64
		bytesReclaimed  int64
		corruptions     int64
		blocksFrozen    int64
		blocksAllocated int64
	}
	closed       bool
	closeChecker invariants.CloseChecker
}

// Handle provides access to the bytes of a record. The bytes must not be
// modified and remain valid until Release is called, regardless of later
// operations on the Storage, with one exception: Replace may overwrite the
// record in place while its block is still writable.
type Handle struct {
	data []byte
	h    cache.Handle
}

// Bytes returns the record.
func (h Handle) Bytes() []byte {
	return h.data
}

// Release releases the reference on the underlying block buffer.
func (h Handle) Release() {
	h.h.Release()
}

// NewStorage returns an empty Storage configured by opts, which may be nil.
func NewStorage(opts *Options) (*Storage, error) {
	opts = opts.Clone()
	opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Storage{
		opts:        *opts,
		keys:        keymap.New(),
		cache:       cache.New(opts.CacheSize),
		nextBlockID: 1,
	}
	if a := opts.AdaptiveCompression; a != nil {
		s.compressor = compression.NewAdaptiveCompressor(compression.AdaptiveCompressorParams{
			Fast:            opts.Compression(),
			Slow:            a.Slow,
			ReductionCutoff: a.ReductionCutoff,
			SampleEvery:     a.SampleEvery,
			SampleHalfLife:  16 * int64(opts.BlockSize),
			SamplingSeed:    1,
		})
	} else {
		s.compressor = compression.GetCompressor(opts.Compression())
	}
	return s, nil
}

func (s *Storage) checkOpen() error {
	s.closeChecker.AssertNotClosed()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// reserve finds room for a record of n bytes, allocating a new block if the
// last block is frozen or too full. Records are never split across blocks.
func (s *Storage) reserve(n int) int {
	if len(s.blocks) > 0 && s.blocks[len(s.blocks)-1].hasRoom(n) {
		return len(s.blocks) - 1
	}
	s.blocks = append(s.blocks, s.newBlock(max(s.opts.BlockSize, n)))
	return len(s.blocks) - 1
}

func (s *Storage) newBlock(capacity int) *block {
	b := newBlock(s.nextBlockID, capacity)
	s.nextBlockID++
	s.metrics.blocksAllocated++
	return b
}

// Insert copies data into the storage and returns the key identifying it.
// Keys are strictly increasing; the first key is 1.
func (s *Storage) Insert(data []byte) (Key, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	bi := s.reserve(len(data))
	off := s.blocks[bi].append(data)
	k := s.keys.Next()
	s.keys.Set(Pointer{Key: k, Block: bi, Offset: off, Length: len(data)})
	s.liveBytes += int64(len(data))
	return k, nil
}

// Replace rebinds an existing key to data. The record is overwritten in place
// if it has the same length and its block is still writable; otherwise data
// is appended as a new record and the key repointed at it.
func (s *Storage) Replace(key Key, data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	p, ok := s.keys.Get(key)
	if !ok {
		return ErrNotFound
	}
	if b := s.blocks[p.Block]; !b.frozen && p.Length == len(data) {
		copy(b.raw.RawBuffer()[p.Offset:p.End()], data)
		return nil
	}
	bi := s.reserve(len(data))
	off := s.blocks[bi].append(data)
	s.keys.Replace(Pointer{Key: key, Block: bi, Offset: off, Length: len(data)})
	s.liveBytes += int64(len(data) - p.Length)
	return nil
}

// Remove forgets a key. The space occupied by the record is not reclaimed
// until Compact. Removing an unknown key is a no-op and returns false.
func (s *Storage) Remove(key Key) bool {
	p, ok := s.keys.Delete(key)
	if ok {
		s.liveBytes -= int64(p.Length)
	}
	return ok
}

// Query returns the location of a key, or the zero Pointer if the key is not
// present.
func (s *Storage) Query(key Key) Pointer {
	p, _ := s.keys.Get(key)
	return p
}

// Len returns the number of live records.
func (s *Storage) Len() int {
	return s.keys.Len()
}

// Get returns a Handle on the bytes of a record, decompressing its block if
// the block is frozen and not cached. It returns ErrNotFound for an unknown
// key. The Handle must be released.
func (s *Storage) Get(key Key) (Handle, error) {
	if err := s.checkOpen(); err != nil {
		return Handle{}, err
	}
	p, ok := s.keys.Get(key)
	if !ok {
		return Handle{}, ErrNotFound
	}
	h, err := s.blockHandle(s.blocks[p.Block])
	if err != nil {
		return Handle{}, err
	}
	buf := h.RawBuffer()
	if invariants.Enabled && p.End() > len(buf) {
		panic(errors.AssertionFailedf("pointer %s out of bounds of block of %d bytes", p, errors.Safe(len(buf))))
	}
	return Handle{data: buf[p.Offset:p.End():p.End()], h: h}, nil
}

// GetCopy appends the bytes of a record to dst.
func (s *Storage) GetCopy(key Key, dst []byte) ([]byte, error) {
	h, err := s.Get(key)
	if err != nil {
		return dst, err
	}
	defer h.Release()
	return append(dst, h.Bytes()...), nil
}

// blockHandle returns a handle on the uncompressed contents of a block.
func (s *Storage) blockHandle(b *block) (cache.Handle, error) {
	if !b.frozen {
		return s.cache.Pin(b.raw), nil
	}
	if h := s.cache.Get(b.id); h.Valid() {
		return h, nil
	}
	v, err := b.hydrate(!s.opts.DisableChecksumVerification)
	if err != nil {
		s.metrics.corruptions++
		s.opts.Logger.Errorf("compressmap: %v", err)
		if invariants.Enabled {
			panic(err)
		}
		return cache.Handle{}, err
	}
	h := s.cache.Set(b.id, v)
	if invariants.Sometimes(10) {
		// Evict right away so that handles outliving their cache entry get
		// exercised.
		s.cache.Evict(b.id)
	}
	return h, nil
}

// Compress freezes every writable block. It is idempotent: calling it again
// without intervening inserts changes nothing. If compression fails the
// failing block and the blocks after it are left writable.
func (s *Storage) Compress() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for i, b := range s.blocks {
		if b.frozen {
			continue
		}
		if err := s.freeze(b); err != nil {
			return errors.Wrapf(err, "compressmap: freezing block %d", errors.Safe(i))
		}
	}
	return nil
}

func (s *Storage) freeze(b *block) error {
	var err error
	s.scratch, err = b.freeze(s.compressor, s.scratch)
	if err != nil {
		if invariants.Enabled {
			panic(err)
		}
		return err
	}
	s.metrics.blocksFrozen++
	if s.opts.Verbose {
		s.opts.Logger.Infof("compressmap: froze block %d: %s -> %s (%s)", b.id,
			crhumanize.Bytes(b.oldLen, crhumanize.Compact, crhumanize.OmitI),
			crhumanize.Bytes(b.compressedLen(), crhumanize.Compact, crhumanize.OmitI),
			b.algorithm)
	}
	return nil
}

// QueryBytes returns the number of uncompressed bytes held by all blocks,
// including the bytes of removed records that have not been compacted away.
func (s *Storage) QueryBytes() int64 {
	var n int64
	for _, b := range s.blocks {
		n += int64(b.rawLen())
	}
	return n
}

// QueryCBytes returns the number of compressed bytes held by frozen blocks.
func (s *Storage) QueryCBytes() int64 {
	var n int64
	for _, b := range s.blocks {
		n += int64(b.compressedLen())
	}
	return n
}

// LiveBytes returns the total length of the live records.
func (s *Storage) LiveBytes() int64 {
	return s.liveBytes
}

// Clear removes every record and block. Keys issued after Clear remain
// greater than every key issued before it.
func (s *Storage) Clear() {
	for _, b := range s.blocks {
		s.cache.Evict(b.id)
		b.release()
	}
	s.blocks = nil
	s.keys.Clear()
	s.liveBytes = 0
}

// Close releases all resources held by the storage. Handles obtained before
// Close remain valid until released.
func (s *Storage) Close() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.Clear()
	s.cache.Close()
	s.compressor.Close()
	s.compressor = nil
	s.closed = true
	s.closeChecker.Close()
	return nil
}

// Keys iterates over the live pointers in ascending key order. The storage
// must not be modified during iteration.
func (s *Storage) Keys() iter.Seq[Pointer] {
	return s.keys.All()
}
