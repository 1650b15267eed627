// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package invariants

import (
	"math/rand/v2"
	"runtime"

	"github.com/cockroachdb/compressmap/internal/buildtags"
)

// Enabled is true if we were built with the "invariants" or "race" build tags.
//
// Enabled should be used to gate invariant checks that may be expensive. It
// should not be used to unconditionally alter a code path significantly;
// Sometimes() should be used instead so that the production code path gets
// test coverage as well.
const Enabled = buildtags.Race || buildtags.Invariants

// RaceEnabled is true if we were built with the "race" build tag.
const RaceEnabled = buildtags.Race

// Sometimes returns true percent% of the time if we were built with the
// "invariants" of "race" build tags
func Sometimes(percent int) bool {
	return Enabled && rand.Uint32N(100) < uint32(percent)
}

// UseFinalizers is true if we want to use finalizers for assertions around
// object lifetime and cleanup. We exclude race builds because we historically
// ran into some finalizer-related race detector bugs.
const UseFinalizers = !RaceEnabled && Enabled

// SetFinalizer is a wrapper around runtime.SetFinalizer that is a no-op under
// race builds or if the invariants build tag is not specified.
func SetFinalizer(obj, finalizer interface{}) {
	if UseFinalizers {
		runtime.SetFinalizer(obj, finalizer)
	}
}

// MaybeMangle overwrites the contents of the buffer with garbage in invariant
// builds. It is used on buffers that are being released so that a caller still
// holding on to one observes corrupt data instead of silently reading stale
// bytes.
func MaybeMangle(b []byte) {
	if Enabled {
		for i := range b {
			b[i] = 0xCC
		}
	}
}
