// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"encoding/binary"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var sizeSpecRE = regexp.MustCompile(`^(?:uniform:)?(\d+)(?:-(\d+))?$`)

// valueSpec describes generated values: sizes drawn uniformly from
// [minSize, maxSize], with contents that compress by roughly
// targetCompression.
type valueSpec struct {
	minSize, maxSize  int
	targetCompression float64
}

func parseValueSpec(v string) (valueSpec, error) {
	size, ratio, hasRatio := strings.Cut(v, "/")
	m := sizeSpecRE.FindStringSubmatch(size)
	if m == nil {
		return valueSpec{}, errors.Errorf("invalid values spec: %s", v)
	}
	spec := valueSpec{targetCompression: 1.0}
	var err error
	if spec.minSize, err = strconv.Atoi(m[1]); err != nil {
		return valueSpec{}, err
	}
	spec.maxSize = spec.minSize
	if m[2] != "" {
		if spec.maxSize, err = strconv.Atoi(m[2]); err != nil {
			return valueSpec{}, err
		}
	}
	if spec.maxSize < spec.minSize {
		return valueSpec{}, errors.Errorf("invalid values spec: %s: max < min", v)
	}
	if hasRatio {
		if spec.targetCompression, err = strconv.ParseFloat(ratio, 64); err != nil {
			return valueSpec{}, err
		}
		if spec.targetCompression < 1 {
			return valueSpec{}, errors.Errorf("invalid values spec: %s: target compression must be >= 1", v)
		}
	}
	return spec, nil
}

func (s valueSpec) size(rng *rand.Rand) int {
	return s.minSize + rng.IntN(s.maxSize-s.minSize+1)
}

func (s valueSpec) value(rng *rand.Rand) []byte {
	return randomBlock(rng, s.size(rng), s.targetCompression)
}

// randomBlock returns size bytes whose first size/targetCompressionRatio
// bytes are random and the rest repeat them.
func randomBlock(rng *rand.Rand, size int, targetCompressionRatio float64) []byte {
	uniqueSize := max(int(float64(size)/targetCompressionRatio), 1)
	data := make([]byte, size)
	offset := 0
	for offset+8 <= uniqueSize {
		binary.LittleEndian.PutUint64(data[offset:], rng.Uint64())
		offset += 8
	}
	word := rng.Uint64()
	for offset < uniqueSize && offset < size {
		data[offset] = byte(word)
		word >>= 8
		offset++
	}
	for offset < size {
		data[offset] = data[offset-uniqueSize]
		offset++
	}
	return data
}
