// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/cockroachdb/compressmap/internal/compression"
	"github.com/stretchr/testify/require"
)

func TestParseValueSpec(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want valueSpec
		err  bool
	}{
		{in: "100", want: valueSpec{minSize: 100, maxSize: 100, targetCompression: 1}},
		{in: "uniform:10-20", want: valueSpec{minSize: 10, maxSize: 20, targetCompression: 1}},
		{in: "10-20/2.5", want: valueSpec{minSize: 10, maxSize: 20, targetCompression: 2.5}},
		{in: "zipf:10-20", err: true},
		{in: "20-10", err: true},
		{in: "10/0.5", err: true},
		{in: "10/x", err: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseValueSpec(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRandomBlock(t *testing.T) {
	rng := rand.New(rand.NewPCG(0, 1))
	for _, size := range []int{0, 1, 7, 100, 4096} {
		b := randomBlock(rng, size, 4)
		require.Len(t, b, size)
		if u := size / 4; u > 0 {
			require.Equal(t, b[:size-u], b[u:])
		}
	}

	// A block generated with a target ratio compresses noticeably better than
	// an incompressible one.
	c := compression.GetCompressor(compression.ZstdLevel3)
	defer c.Close()
	compressible, _ := c.Compress(nil, randomBlock(rng, 16<<10, 4))
	random, _ := c.Compress(nil, randomBlock(rng, 16<<10, 1))
	require.Less(t, 2*len(compressible), len(random))
}

func TestCodecs(t *testing.T) {
	blockSize, seed = 4096, 1
	spec, err := parseValueSpec("64-128/3")
	require.NoError(t, err)
	block := generateBlock(spec)
	require.Len(t, block, 4096)

	var buf bytes.Buffer
	require.NoError(t, runCodecs(&buf, block))
	for _, s := range compression.Presets() {
		require.Contains(t, buf.String(), s.String())
	}
}

func TestLoad(t *testing.T) {
	blockSize, cacheSize, compressionName, values, seed, verbose =
		1024, 4096, "Snappy", "16-64/2", 1, false
	loadConfig.concurrency = 2
	loadConfig.records = 2000
	loadConfig.dupRate = 0.2
	loadConfig.reads = 500
	loadConfig.compactOnSort = true
	loadConfig.plot = true

	var buf bytes.Buffer
	require.NoError(t, runLoad(context.Background(), &buf))
	out := buf.String()
	for _, want := range []string{"SET", "GET", "sort:", "TOTAL", "compression ratio by block"} {
		require.True(t, strings.Contains(strings.ToUpper(out), strings.ToUpper(want)), "missing %q in:\n%s", want, out)
	}

	compressionName = "bogus"
	require.Error(t, runLoad(context.Background(), &buf))
}
