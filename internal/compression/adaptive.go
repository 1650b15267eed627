// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"math"
	"math/rand/v2"
	"sync"
)

// AdaptiveCompressor is a Compressor that automatically chooses between two
// settings: it uses a slower but better setting as long as it reduces the
// compressed size (compared to the faster setting) by a certain relative
// amount. The decision is probabilistic and based on sampling a subset of
// blocks.
type AdaptiveCompressor struct {
	fast Compressor
	slow Compressor

	reductionCutoff float64
	sampleEvery     int

	estimator reductionEstimator
	rng       rand.PCG

	buf []byte
}

// AdaptiveCompressorParams contains the parameters for an adaptive compressor.
type AdaptiveCompressorParams struct {
	// Fast and Slow are the two compression settings the adaptive compressor
	// chooses between.
	Fast Setting
	Slow Setting
	// ReductionCutoff is the relative size reduction (when using the slow
	// setting vs the fast one) below which we use the fast setting. For
	// example, if ReductionCutoff is 0.3 then we only use the slow setting if
	// it reduces the compressed size by at least 30%.
	ReductionCutoff float64
	// SampleEvery defines the sampling frequency: the probability we sample a
	// block is 1.0/SampleEvery. Sampling means trying both settings and
	// recording the reduction.
	SampleEvery int
	// SampleHalfLife defines the half-life of the moving average, in bytes. It
	// should be a factor larger than the expected block size.
	SampleHalfLife int64
	SamplingSeed   uint64
}

// NewAdaptiveCompressor returns a compressor for the given parameters. The
// compressor must be closed.
func NewAdaptiveCompressor(p AdaptiveCompressorParams) *AdaptiveCompressor {
	ac := adaptiveCompressorPool.Get().(*AdaptiveCompressor)
	ac.fast = GetCompressor(p.Fast)
	ac.slow = GetCompressor(p.Slow)
	ac.sampleEvery = max(p.SampleEvery, 1)
	ac.reductionCutoff = p.ReductionCutoff
	ac.estimator.init(p.SampleHalfLife)
	ac.rng.Seed(p.SamplingSeed, p.SamplingSeed)
	return ac
}

var _ Compressor = (*AdaptiveCompressor)(nil)

var adaptiveCompressorPool = sync.Pool{
	New: func() any { return &AdaptiveCompressor{} },
}

// Compress implements Compressor.
func (ac *AdaptiveCompressor) Compress(dst, src []byte) ([]byte, Setting) {
	estimate := ac.estimator.estimate()
	sampleThisBlock := math.IsNaN(estimate) || ac.rng.Uint64()%uint64(ac.sampleEvery) == 0
	if !sampleThisBlock {
		ac.estimator.skip(int64(len(src)))
		if estimate < ac.reductionCutoff {
			return ac.fast.Compress(dst, src)
		}
		return ac.slow.Compress(dst, src)
	}
	bufFast, fastSetting := ac.fast.Compress(ac.buf[:0], src)
	ac.buf = bufFast[:0]
	dst, slowSetting := ac.slow.Compress(dst, src)
	reduction := 1 - float64(len(dst))/float64(max(len(bufFast), 1))
	if len(src) > 0 {
		ac.estimator.sample(int64(len(src)), reduction)
	}
	if reduction < ac.reductionCutoff {
		return append(dst[:0], bufFast...), fastSetting
	}
	return dst, slowSetting
}

// Close implements Compressor.
func (ac *AdaptiveCompressor) Close() {
	ac.fast.Close()
	ac.slow.Close()
	if cap(ac.buf) > 256*1024 {
		ac.buf = nil // Release large buffers.
	}
	adaptiveCompressorPool.Put(ac)
}
