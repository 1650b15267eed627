// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compressmap

import (
	"github.com/cockroachdb/compressmap/internal/base"
	"github.com/cockroachdb/compressmap/internal/compression"
)

// Key exports the base.Key type.
type Key = base.Key

// Pointer exports the base.Pointer type.
type Pointer = base.Pointer

// Logger exports the base.Logger type.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
var DefaultLogger = base.DefaultLogger

// CompressionSetting exports the compression.Setting type.
type CompressionSetting = compression.Setting

// CompressionAlgorithm exports the compression.Algorithm type.
type CompressionAlgorithm = compression.Algorithm

// Exported compression settings.
var (
	NoCompression     = compression.None
	SnappyCompression = compression.Snappy
	MinLZFastest      = compression.MinLZFastest
	MinLZBalanced     = compression.MinLZBalanced
	ZstdCompression   = compression.ZstdLevel3
	ZstdLevel1        = compression.ZstdLevel1
	ZstdLevel7        = compression.ZstdLevel7
)

// ParseCompression parses the output of CompressionSetting.String.
func ParseCompression(s string) (CompressionSetting, error) {
	return compression.ParseSetting(s)
}

// CompressionPresets returns every predefined compression setting.
func CompressionPresets() []CompressionSetting {
	return compression.Presets()
}

var (
	// ErrNotFound is returned by Get and Replace for keys that are not
	// present.
	ErrNotFound = base.ErrNotFound
	// ErrCorruption is a marker for errors returned when a frozen block fails
	// to decompress or verify.
	ErrCorruption = base.ErrCorruption
	// ErrClosed is returned when a closed Storage is used.
	ErrClosed = base.ErrClosed
)

// IsCorruptionError returns true if the given error indicates corruption.
func IsCorruptionError(err error) bool {
	return base.IsCorruptionError(err)
}
