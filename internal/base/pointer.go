// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// Key is the stable identity of a record stored in an arena. Keys are issued
// in strictly increasing order starting at 1; the zero Key is never issued.
type Key uint64

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("#%d", uint64(k))
}

// SafeFormat implements redact.SafeFormatter.
func (k Key) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(k.String()))
}

// Pointer locates a record: the block holding it and the byte range within
// the block's uncompressed data. The physical coordinates are only valid for
// the arena generation in which the Pointer was obtained; compaction rewrites
// them.
type Pointer struct {
	Key    Key
	Block  int
	Offset int
	Length int
}

// IsZero returns true for the zero Pointer, which is returned for unknown
// keys.
func (p Pointer) IsZero() bool {
	return p.Key == 0
}

// End returns the offset one past the last byte of the record.
func (p Pointer) End() int {
	return p.Offset + p.Length
}

// String implements fmt.Stringer.
func (p Pointer) String() string {
	return redact.StringWithoutMarkers(p)
}

// SafeFormat implements redact.SafeFormatter.
func (p Pointer) SafeFormat(w redact.SafePrinter, _ rune) {
	if p.IsZero() {
		w.Printf("<none>")
		return
	}
	w.Printf("%s b%d [%d,%d)", p.Key, redact.Safe(p.Block),
		redact.Safe(p.Offset), redact.Safe(p.End()))
}
