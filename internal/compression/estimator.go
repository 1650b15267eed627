// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"math"

	"github.com/cockroachdb/compressmap/internal/invariants"
)

// reductionEstimator estimates the relative size reduction of one setting
// over another as a per-byte exponentially weighted moving average: a block
// sampled halfLife bytes ago carries half the weight of a block sampled now.
// Unsampled blocks only age the existing samples.
type reductionEstimator struct {
	// logKeep is log(1-alpha), the per-byte log decay factor.
	logKeep     float64
	sum         float64
	totalWeight float64
	// pending counts bytes seen since the last sample whose decay has not
	// been applied yet.
	pending int64
}

func (e *reductionEstimator) init(halfLife int64) {
	*e = reductionEstimator{}
	if halfLife < 1 {
		halfLife = 1
	}
	// alpha = 1 - 2^(-1/H), so log(1-alpha) = -ln(2)/H exactly.
	e.logKeep = -math.Ln2 / float64(halfLife)
}

// estimate returns NaN until the first sample is recorded.
func (e *reductionEstimator) estimate() float64 {
	return e.sum / e.totalWeight
}

func (e *reductionEstimator) skip(numBytes int64) {
	if numBytes < 0 {
		if invariants.Enabled {
			panic("invalid numBytes")
		}
		return
	}
	e.pending += numBytes
}

func (e *reductionEstimator) sample(numBytes int64, reduction float64) {
	if numBytes < 1 {
		if invariants.Enabled {
			panic("invalid numBytes")
		}
		return
	}
	d := e.decay(e.pending + numBytes)
	e.sum *= d
	e.totalWeight *= d
	e.pending = 0

	// The new bytes carry a combined weight of (1 - keep^numBytes), dropping
	// the common 1/alpha factor.
	w := 1 - e.decay(numBytes)
	e.sum += reduction * w
	e.totalWeight += w
}

// decay returns (1-alpha)^n.
func (e *reductionEstimator) decay(n int64) float64 {
	return math.Exp(float64(n) * e.logKeep)
}
