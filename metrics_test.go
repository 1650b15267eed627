// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compressmap

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/compressmap/internal/base"
	"github.com/stretchr/testify/require"
)

func TestMetricsRatios(t *testing.T) {
	var m Metrics
	require.Zero(t, m.CompressionRatio())
	require.Zero(t, m.CacheHitRate())

	m.FrozenRawBytes = 300
	m.CompressedBytes = 100
	m.Cache.Hits = 3
	m.Cache.Misses = 1
	require.Equal(t, 3.0, m.CompressionRatio())
	require.Equal(t, 75.0, m.CacheHitRate())
}

func TestMetricsFormat(t *testing.T) {
	var m Metrics
	m.Blocks.Writable = 1
	m.Blocks.Frozen = 2
	m.Blocks.Allocated = 3
	m.Blocks.FrozenTotal = 4
	m.Cache.Count = 5
	m.Cache.Hits = 6
	m.Cache.Misses = 2
	m.Cache.Evictions = 7
	m.Cache.Pinned = 8
	m.Compact.Count = 9
	m.Corruptions = 10

	s := m.String()
	for _, want := range []string{
		"blocks: 1 writable, 2 frozen (3 allocated, 4 frozen total)\n",
		"in 5 blocks, 6 hits, 2 misses (75.0%), 7 evictions, 8 pinned\n",
		"compactions: 9 (",
		"corruptions: 10\n",
	} {
		require.Contains(t, s, want)
	}
	// Metrics contain no user data, so nothing is redacted.
	require.NotContains(t, s, "‹")
}

func TestStorageMetrics(t *testing.T) {
	s, err := NewStorage(&Options{
		BlockSize:   64,
		Compression: func() CompressionSetting { return SnappyCompression },
		Logger:      base.NoopLogger{},
	})
	require.NoError(t, err)
	defer s.Close()

	val := bytes.Repeat([]byte("a"), 32)
	var keys []Key
	for i := 0; i < 8; i++ {
		k, err := s.Insert(val)
		require.NoError(t, err)
		keys = append(keys, k)
	}
	m := s.Metrics()
	require.Equal(t, int64(4), m.Blocks.Allocated)
	require.Equal(t, int64(4), m.Blocks.Writable)
	require.Zero(t, m.Blocks.Frozen)
	require.Equal(t, int64(8), m.Records)
	require.Equal(t, int64(256), m.RawBytes)
	require.Equal(t, int64(256), m.LiveBytes)
	require.Zero(t, m.CompressionRatio())

	require.NoError(t, s.Compress())
	m = s.Metrics()
	require.Equal(t, int64(4), m.Blocks.Frozen)
	require.Equal(t, int64(4), m.Blocks.FrozenTotal)
	require.Equal(t, int64(256), m.FrozenRawBytes)
	require.Greater(t, m.CompressionRatio(), 1.0)
	require.Positive(t, m.Alloc[CompressedBuffer].InUseObjects)

	for _, k := range keys {
		h, err := s.Get(k)
		require.NoError(t, err)
		require.Equal(t, val, h.Bytes())
		h.Release()
	}
	m = s.Metrics()
	require.Equal(t, int64(8), m.Cache.Hits+m.Cache.Misses)
	require.GreaterOrEqual(t, m.Cache.Misses, int64(4))

	s.Remove(keys[0])
	_, err = s.Compact()
	require.NoError(t, err)
	m = s.Metrics()
	require.Equal(t, int64(1), m.Compact.Count)
	require.Equal(t, int64(32), m.Compact.BytesReclaimed)
	require.Equal(t, int64(7), m.Records)
}
