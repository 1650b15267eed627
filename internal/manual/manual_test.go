// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manual

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFree(t *testing.T) {
	before := GetMetrics()[BlockBuffer]

	a := New(BlockBuffer, 100)
	b := New(BlockBuffer, 28)
	require.Len(t, a, 100)
	require.Equal(t, 28, cap(b))

	m := GetMetrics()[BlockBuffer]
	require.Equal(t, before.InUseBytes+128, m.InUseBytes)
	require.Equal(t, before.InUseObjects+2, m.InUseObjects)

	// Resliced buffers are accounted for by capacity.
	Free(BlockBuffer, a[:10])
	Free(BlockBuffer, b)
	m = GetMetrics()[BlockBuffer]
	require.Equal(t, before.InUseBytes, m.InUseBytes)
	require.Equal(t, before.InUseObjects, m.InUseObjects)
	require.Equal(t, before.TotalBytes+128, m.TotalBytes)
	require.Equal(t, before.TotalObjects+2, m.TotalObjects)
}

func TestZeroSized(t *testing.T) {
	before := GetMetrics()[HydratedBuffer]
	b := New(HydratedBuffer, 0)
	require.Nil(t, b)
	Free(HydratedBuffer, b)
	require.Equal(t, before, GetMetrics()[HydratedBuffer])
}

func TestPurposeString(t *testing.T) {
	require.Equal(t, "block", BlockBuffer.String())
	require.Equal(t, "compressed", CompressedBuffer.String())
	require.Equal(t, "hydrated", HydratedBuffer.String())
	require.Equal(t, "unknown", NumPurposes.String())
}
