// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package compression implements the block codecs used to freeze storage
// blocks.
package compression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/compressmap/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/minio/minlz"
)

// Algorithm identifies a compression algorithm. The algorithm is recorded with
// each frozen block so the block can be decompressed regardless of the
// setting in use when it is read back.
type Algorithm uint8

const (
	NoCompression Algorithm = iota
	SnappyAlgorithm
	Zstd
	MinLZ

	NumAlgorithms
)

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	switch a {
	case NoCompression:
		return "NoCompression"
	case SnappyAlgorithm:
		return "Snappy"
	case Zstd:
		return "ZSTD"
	case MinLZ:
		return "MinLZ"
	default:
		return fmt.Sprintf("unknown(%d)", a)
	}
}

// SafeFormat implements redact.SafeFormatter.
func (a Algorithm) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(a.String()))
}

// Setting is an algorithm together with an algorithm-specific level.
type Setting struct {
	Algorithm Algorithm
	Level     uint8
}

// String returns a human-readable name which ParseSetting accepts.
func (s Setting) String() string {
	switch s.Algorithm {
	case Zstd, MinLZ:
		return fmt.Sprintf("%s%d", s.Algorithm, s.Level)
	default:
		return s.Algorithm.String()
	}
}

// Valid returns true if the setting names a known algorithm with a level it
// supports.
func (s Setting) Valid() bool {
	switch s.Algorithm {
	case NoCompression, SnappyAlgorithm:
		return s.Level == 0
	case Zstd:
		return s.Level >= 1 && s.Level <= 22
	case MinLZ:
		return int(s.Level) == minlz.LevelFastest || int(s.Level) == minlz.LevelBalanced
	default:
		return false
	}
}

// Setting presets.
var (
	None          = Setting{Algorithm: NoCompression}
	Snappy        = Setting{Algorithm: SnappyAlgorithm}
	MinLZFastest  = Setting{Algorithm: MinLZ, Level: uint8(minlz.LevelFastest)}
	MinLZBalanced = Setting{Algorithm: MinLZ, Level: uint8(minlz.LevelBalanced)}
	ZstdLevel1    = Setting{Algorithm: Zstd, Level: 1}
	ZstdLevel3    = Setting{Algorithm: Zstd, Level: 3}
	ZstdLevel7    = Setting{Algorithm: Zstd, Level: 7}
)

var presets = []Setting{None, Snappy, MinLZFastest, MinLZBalanced, ZstdLevel1, ZstdLevel3, ZstdLevel7}

// Presets returns the predefined settings.
func Presets() []Setting {
	return append([]Setting(nil), presets...)
}

// ParseSetting parses the output of Setting.String. Matching is case
// insensitive.
func ParseSetting(s string) (Setting, error) {
	for _, p := range presets {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "ZSTD"):
		level, err := strconv.Atoi(upper[len("ZSTD"):])
		if err != nil || level < 1 || level > 22 {
			return Setting{}, errors.Errorf("compressmap: invalid zstd level in %q", s)
		}
		return Setting{Algorithm: Zstd, Level: uint8(level)}, nil
	case strings.HasPrefix(upper, "MINLZ"):
		level, err := strconv.Atoi(upper[len("MINLZ"):])
		if err != nil || (level != minlz.LevelFastest && level != minlz.LevelBalanced) {
			return Setting{}, errors.Errorf("compressmap: invalid minlz level in %q", s)
		}
		return Setting{Algorithm: MinLZ, Level: uint8(level)}, nil
	}
	return Setting{}, errors.Errorf("compressmap: unknown compression %q", s)
}

// Compressor is an interface for compressing data. An instance is associated
// with a specific Setting.
type Compressor interface {
	// Compress a block, appending the compressed data to dst[:0]. Returns the
	// setting that was actually used (which is needed to decompress).
	Compress(dst, src []byte) ([]byte, Setting)

	// Close must be called when the Compressor is no longer needed.
	// After Close is called, the Compressor must not be used again.
	Close()
}

// GetCompressor returns a Compressor for the given setting.
func GetCompressor(s Setting) Compressor {
	switch s.Algorithm {
	case NoCompression:
		return noopCompressor{}
	case SnappyAlgorithm:
		return snappyCompressor{}
	case Zstd:
		return getZstdCompressor(int(s.Level))
	case MinLZ:
		return getMinlzCompressor(int(s.Level))
	default:
		panic(errors.AssertionFailedf("invalid compression setting %d/%d", s.Algorithm, s.Level))
	}
}

// Decompressor is an interface for decompressing data. An instance is
// associated with a specific Algorithm.
type Decompressor interface {
	// DecompressInto decompresses compressed into buf. The buf slice must have
	// the exact size as the decompressed value. Callers may use
	// DecompressedLen to determine the correct size.
	DecompressInto(buf, compressed []byte) error

	// DecompressedLen returns the length of the provided block once
	// decompressed, allowing the caller to allocate a buffer exactly sized to
	// the decompressed payload.
	DecompressedLen(b []byte) (decompressedLen int, err error)

	// Close must be called when the Decompressor is no longer needed.
	// After Close is called, the Decompressor must not be used again.
	Close()
}

// GetDecompressor returns a Decompressor for the given algorithm.
func GetDecompressor(a Algorithm) Decompressor {
	switch a {
	case NoCompression:
		return noopDecompressor{}
	case SnappyAlgorithm:
		return snappyDecompressor{}
	case Zstd:
		return getZstdDecompressor()
	case MinLZ:
		return minlzDecompressor{}
	default:
		panic(errors.AssertionFailedf("invalid compression algorithm %d", a))
	}
}

// DecompressExact decompresses src into dst, which must be sized to the
// length recorded when the block was compressed. A mismatch between that
// length and the length encoded in src is reported as corruption, as is any
// codec failure.
func DecompressExact(a Algorithm, dst, src []byte) error {
	if a >= NumAlgorithms {
		return base.CorruptionErrorf("compressmap: unknown compression algorithm %d", errors.Safe(a))
	}
	d := GetDecompressor(a)
	defer d.Close()
	n, err := d.DecompressedLen(src)
	if err != nil {
		return base.MarkCorruptionError(errors.Wrapf(err, "decompressing %s block", a))
	}
	if n != len(dst) {
		return base.CorruptionErrorf("compressmap: decompressed length %d != expected %d",
			errors.Safe(n), errors.Safe(len(dst)))
	}
	if n == 0 {
		return nil
	}
	if err := d.DecompressInto(dst, src); err != nil {
		return base.MarkCorruptionError(errors.Wrapf(err, "decompressing %s block", a))
	}
	return nil
}
