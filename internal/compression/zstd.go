// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compression

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/compressmap/internal/base"
)

// zstdDecompressedLen reads the uvarint length prefix written by both zstd
// compressor implementations.
func zstdDecompressedLen(b []byte) (int, error) {
	decodedLenU64, varIntLen := binary.Uvarint(b)
	if varIntLen <= 0 || decodedLenU64 > math.MaxInt32 {
		return 0, base.CorruptionErrorf("compressmap: zstd block has invalid length")
	}
	return int(decodedLenU64), nil
}
