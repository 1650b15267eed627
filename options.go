// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compressmap

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/compressmap/internal/base"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
)

const (
	// DefaultBlockSize is the capacity of a block allocated for records that
	// are not larger than it.
	DefaultBlockSize = 16 << 10 // 16 KB
	// DefaultCacheSize bounds the bytes held by the hydration cache.
	DefaultCacheSize = 4 << 20 // 4 MB

	maxBlockSize = 1 << 30 // 1 GB
)

// AdaptiveCompressionOptions configures a compressor that chooses, per block,
// between Options.Compression and a slower setting with a better ratio.
type AdaptiveCompressionOptions struct {
	// Slow is the setting used when it reduces the compressed size enough
	// compared to Options.Compression.
	Slow CompressionSetting
	// ReductionCutoff is the minimum relative size reduction (in [0, 1]) the
	// slow setting must achieve to be used.
	ReductionCutoff float64
	// SampleEvery defines the sampling frequency: 1/SampleEvery of the blocks
	// are compressed with both settings to update the estimate.
	SampleEvery int
}

// Options holds the optional parameters for configuring a Storage. These
// options apply to the Storage at construction time and are not mutated
// afterwards.
type Options struct {
	// BlockSize is the capacity of newly allocated blocks. A record larger
	// than BlockSize is placed alone in a block of exactly its size.
	//
	// The default value is 16 KB.
	BlockSize int

	// CacheSize bounds the number of bytes of decompressed blocks retained by
	// the hydration cache. The cache always retains at least the most recently
	// hydrated block.
	//
	// The default value is 4 MB.
	CacheSize int64

	// Compression defines the setting used to freeze blocks.
	//
	// The default value is Snappy.
	Compression func() CompressionSetting

	// AdaptiveCompression, if set, chooses between Compression and a slower
	// setting on a per-block basis.
	AdaptiveCompression *AdaptiveCompressionOptions

	// CompactOnSort causes LazyMap.Sort to compact the storage after
	// freezing it, reclaiming the space of removed and superseded values.
	CompactOnSort bool

	// DisableChecksumVerification disables verification of the checksum of a
	// frozen block when it is decompressed.
	DisableChecksumVerification bool

	// Logger used to write log messages.
	//
	// The default logger uses the Go standard library log package.
	Logger Logger

	// Verbose logs every block that is frozen.
	Verbose bool
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified.
func (o *Options) EnsureDefaults() {
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.Compression == nil {
		o.Compression = func() CompressionSetting { return SnappyCompression }
	}
	if a := o.AdaptiveCompression; a != nil && a.SampleEvery <= 0 {
		a.SampleEvery = 10
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger
	}
}

// Clone creates a shallow-copy of the supplied options.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	n := *o
	if o.AdaptiveCompression != nil {
		a := *o.AdaptiveCompression
		n.AdaptiveCompression = &a
	}
	return &n
}

func (o *Options) String() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "[Version]\n")
	fmt.Fprintf(&buf, "  compressmap_version=0.1\n")
	fmt.Fprintf(&buf, "\n")
	fmt.Fprintf(&buf, "[Options]\n")
	fmt.Fprintf(&buf, "  block_size=%d\n", o.BlockSize)
	fmt.Fprintf(&buf, "  cache_size=%d\n", o.CacheSize)
	fmt.Fprintf(&buf, "  compact_on_sort=%t\n", o.CompactOnSort)
	if o.Compression != nil {
		fmt.Fprintf(&buf, "  compression=%s\n", o.Compression())
	}
	fmt.Fprintf(&buf, "  disable_checksum_verification=%t\n", o.DisableChecksumVerification)
	fmt.Fprintf(&buf, "  verbose=%t\n", o.Verbose)

	if a := o.AdaptiveCompression; a != nil {
		fmt.Fprintf(&buf, "\n")
		fmt.Fprintf(&buf, "[Adaptive Compression]\n")
		fmt.Fprintf(&buf, "  slow=%s\n", a.Slow)
		fmt.Fprintf(&buf, "  reduction_cutoff=%.2f\n", a.ReductionCutoff)
		fmt.Fprintf(&buf, "  sample_every=%d\n", a.SampleEvery)
	}
	return buf.String()
}

type parseOptionsFuncs struct {
	visitNewSection func(i, j int, section string) error
	visitKeyValue   func(i, j int, section, key, value string) error
}

// parseOptions takes options serialized by Options.String() and parses them
// into keys and values. It calls fns.visitNewSection for the beginning of each
// new section and fns.visitKeyValue for each key-value pair.
func parseOptions(s string, fns parseOptionsFuncs) error {
	var section string
	i := 0
	for i < len(s) {
		rem := s[i:]
		j := strings.IndexByte(rem, '\n')
		if j < 0 {
			j = len(rem)
		} else {
			j += 1 // Include the newline.
		}
		line := strings.TrimSpace(s[i : i+j])
		startOff, endOff := i, i+j
		i += j

		if len(line) == 0 || line[0] == ';' || line[0] == '#' {
			// Skip blank lines and comments.
			continue
		}
		n := len(line)
		if line[0] == '[' && line[n-1] == ']' {
			// Parse section.
			section = line[1 : n-1]
			if fns.visitNewSection != nil {
				if err := fns.visitNewSection(startOff, endOff, section); err != nil {
					return err
				}
			}
			continue
		}

		pos := strings.Index(line, "=")
		if pos < 0 {
			const maxLen = 50
			if len(line) > maxLen {
				line = line[:maxLen-3] + "..."
			}
			return base.CorruptionErrorf("invalid key=value syntax: %q", errors.Safe(line))
		}

		key := strings.TrimSpace(line[:pos])
		value := strings.TrimSpace(line[pos+1:])
		if fns.visitKeyValue != nil {
			if err := fns.visitKeyValue(startOff, endOff, section, key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Parse parses the options from the specified string. Options that are not
// present in the string are left unchanged.
func (o *Options) Parse(s string) error {
	visitKeyValue := func(i, j int, section, key, value string) error {
		switch section {
		case "Version":
			switch key {
			case "compressmap_version":
			default:
				return errors.Errorf("compressmap: unknown option: %s.%s",
					errors.Safe(section), errors.Safe(key))
			}
			return nil

		case "Options":
			var err error
			switch key {
			case "block_size":
				o.BlockSize, err = strconv.Atoi(value)
			case "cache_size":
				o.CacheSize, err = strconv.ParseInt(value, 10, 64)
			case "compact_on_sort":
				o.CompactOnSort, err = strconv.ParseBool(value)
			case "compression":
				var setting CompressionSetting
				setting, err = ParseCompression(value)
				if err == nil {
					o.Compression = func() CompressionSetting { return setting }
				}
			case "disable_checksum_verification":
				o.DisableChecksumVerification, err = strconv.ParseBool(value)
			case "verbose":
				o.Verbose, err = strconv.ParseBool(value)
			default:
				return errors.Errorf("compressmap: unknown option: %s.%s",
					errors.Safe(section), errors.Safe(key))
			}
			return err

		case "Adaptive Compression":
			if o.AdaptiveCompression == nil {
				o.AdaptiveCompression = new(AdaptiveCompressionOptions)
			}
			a := o.AdaptiveCompression
			var err error
			switch key {
			case "slow":
				a.Slow, err = ParseCompression(value)
			case "reduction_cutoff":
				a.ReductionCutoff, err = strconv.ParseFloat(value, 64)
			case "sample_every":
				a.SampleEvery, err = strconv.Atoi(value)
			default:
				return errors.Errorf("compressmap: unknown option: %s.%s",
					errors.Safe(section), errors.Safe(key))
			}
			return err
		}
		return errors.Errorf("compressmap: unknown section: %q", errors.Safe(section))
	}
	return parseOptions(s, parseOptionsFuncs{
		visitKeyValue: visitKeyValue,
	})
}

// Validate verifies that the options are mutually consistent.
func (o *Options) Validate() error {
	// Note that we can presume Options.EnsureDefaults has been called, so there
	// is no need to check for zero values.

	var buf strings.Builder
	if o.BlockSize > maxBlockSize {
		fmt.Fprintf(&buf, "BlockSize (%s) must be <= %s\n",
			crhumanize.Bytes(o.BlockSize, crhumanize.Compact, crhumanize.OmitI),
			crhumanize.Bytes(maxBlockSize, crhumanize.Compact, crhumanize.OmitI))
	}
	if c := o.Compression(); !c.Valid() {
		fmt.Fprintf(&buf, "Compression (%s) is not a valid setting\n", c)
	}
	if a := o.AdaptiveCompression; a != nil {
		if a.ReductionCutoff < 0 || a.ReductionCutoff > 1 {
			fmt.Fprintf(&buf, "AdaptiveCompression.ReductionCutoff (%.2f) must be in [0, 1]\n",
				a.ReductionCutoff)
		}
		if a.SampleEvery < 1 {
			fmt.Fprintf(&buf, "AdaptiveCompression.SampleEvery (%d) must be >= 1\n", a.SampleEvery)
		}
	}

	if buf.Len() == 0 {
		return nil
	}
	return errors.New(buf.String())
}
