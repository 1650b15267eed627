// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package compressmap

import (
	"cmp"
	"fmt"
	randv1 "math/rand"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/compressmap/internal/base"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/metamorphic"
	"github.com/stretchr/testify/require"
)

func TestLazyMapDataDriven(t *testing.T) {
	var m *LazyMap[string, string]
	var released []string
	defer func() {
		if m != nil {
			require.NoError(t, m.Close())
		}
	}()
	// withReleased prefixes out with the values released while running the
	// command.
	withReleased := func(out string) string {
		if len(released) > 0 {
			out = fmt.Sprintf("released: %s\n%s", strings.Join(released, " "), out)
			released = released[:0]
		}
		return out
	}

	datadriven.RunTest(t, "testdata/lazy_map", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "new":
			if m != nil {
				require.NoError(t, m.Close())
			}
			opts := &Options{
				Compression:   func() CompressionSetting { return NoCompression },
				CompactOnSort: td.HasArg("compact-on-sort"),
				Logger:        base.NoopLogger{},
			}
			td.MaybeScanArgs(t, "block-size", &opts.BlockSize)
			var err error
			m, err = NewLazyMap[string, string](StringCodec{}, LazyMapOptions[string]{
				Storage: opts,
				Release: func(v string) { released = append(released, v) },
			})
			require.NoError(t, err)
			return ""

		case "set":
			for _, line := range strings.Split(td.Input, "\n") {
				k, v, ok := strings.Cut(line, "=")
				if !ok {
					return fmt.Sprintf("malformed: %q", line)
				}
				if err := m.Set(k, v); err != nil {
					return err.Error()
				}
			}
			return withReleased(fmt.Sprintf("mode=%s\n", m.Mode()))

		case "get":
			var k string
			td.ScanArgs(t, "k", &k)
			v, ok, err := m.Get(k)
			switch {
			case err != nil:
				return err.Error()
			case !ok:
				return "not found"
			}
			return v

		case "del":
			var k string
			td.ScanArgs(t, "k", &k)
			ok, err := m.Del(k)
			if err != nil {
				return err.Error()
			}
			return withReleased(fmt.Sprintf("%t\n", ok))

		case "sort":
			if err := m.Sort(); err != nil {
				return err.Error()
			}
			return withReleased(fmt.Sprintf("mode=%s\n", m.Mode()))

		case "clear":
			if err := m.Clear(); err != nil {
				return err.Error()
			}
			return withReleased(fmt.Sprintf("mode=%s\n", m.Mode()))

		case "scan":
			var buf strings.Builder
			err := m.Scan(func(k, v string) error {
				fmt.Fprintf(&buf, "%s=%s\n", k, v)
				return nil
			})
			if err != nil {
				return err.Error()
			}
			return buf.String()

		case "mode":
			return m.Mode().String()

		case "len":
			return fmt.Sprint(m.Len())

		case "storage":
			s := m.Storage()
			return fmt.Sprintf("blocks=%d raw=%d compressed=%d live=%d records=%d\n",
				len(s.blocks), s.QueryBytes(), s.QueryCBytes(), s.LiveBytes(), s.Len())

		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}

func newTestLazyMap[K cmp.Ordered, V any](
	t testing.TB, codec ValueCodec[V], opts *Options, release func(V),
) *LazyMap[K, V] {
	if opts == nil {
		opts = &Options{}
	}
	opts.Logger = base.NoopLogger{}
	m, err := NewLazyMap[K](codec, LazyMapOptions[V]{Storage: opts, Release: release})
	require.NoError(t, err)
	return m
}

func TestLazyMapDirtyFindMisses(t *testing.T) {
	m := newTestLazyMap[int, uint64](t, Uint64Codec{}, nil, nil)
	defer m.Close()

	require.NoError(t, m.Set(1, 10))
	require.Equal(t, Dirty, m.Mode())
	_, ok, err := m.Get(1)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = m.Del(1)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Sort())
	v, ok, err := m.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10), v)
}

func TestLazyMapLastWriteWins(t *testing.T) {
	var released []uint64
	m := newTestLazyMap[string, uint64](t, Uint64Codec{}, nil, func(v uint64) {
		released = append(released, v)
	})
	defer m.Close()

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, m.Set("k", i))
		require.NoError(t, m.Set(fmt.Sprint("other", i), 100+i))
	}
	require.Equal(t, 10, m.Len())
	require.NoError(t, m.Sort())
	require.Equal(t, 6, m.Len())
	require.Equal(t, []uint64{1, 2, 3, 4}, released)

	v, ok, err := m.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), v)

	// Sorting an ordered map is a no-op.
	require.NoError(t, m.Sort())
	require.Equal(t, 6, m.Len())
}

func TestLazyMapLiveBytesExcludeSuperseded(t *testing.T) {
	for _, compactOnSort := range []bool{false, true} {
		t.Run(fmt.Sprintf("compact-on-sort=%t", compactOnSort), func(t *testing.T) {
			m := newTestLazyMap[int, []byte](t, BytesCodec{}, &Options{
				BlockSize:     256,
				CompactOnSort: compactOnSort,
			}, nil)
			defer m.Close()

			for round := 0; round < 4; round++ {
				for k := 0; k < 50; k++ {
					require.NoError(t, m.Set(k, make([]byte, 10)))
				}
			}
			require.NoError(t, m.Sort())
			s := m.Storage()
			require.Equal(t, int64(500), s.LiveBytes())
			require.Equal(t, 50, s.Len())
			if compactOnSort {
				require.Equal(t, int64(500), s.QueryBytes())
			} else {
				require.Equal(t, int64(2000), s.QueryBytes())
			}
		})
	}
}

func TestLazyMapOverwriteInPlace(t *testing.T) {
	var released []string
	m := newTestLazyMap[int, string](t, StringCodec{}, nil, func(v string) {
		released = append(released, v)
	})
	defer m.Close()

	require.NoError(t, m.Set(1, "one"))
	require.NoError(t, m.Set(2, "two"))
	require.NoError(t, m.Sort())
	require.Equal(t, Ordered, m.Mode())

	// Overwrite a key whose block is frozen and then one whose block is
	// writable.
	require.NoError(t, m.Set(1, "uno"))
	require.NoError(t, m.Set(1, "eins"))
	require.Equal(t, Ordered, m.Mode())
	require.Equal(t, []string{"one", "uno"}, released)
	v, ok, err := m.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "eins", v)
	require.Equal(t, int64(len("eins")+len("two")), m.Storage().LiveBytes())
}

func TestFixedCodec(t *testing.T) {
	type point struct {
		X, Y int32
		Z    float64
	}
	c, err := NewFixedCodec[point]()
	require.NoError(t, err)
	require.Equal(t, 16, c.Size())

	m := newTestLazyMap[uint32](t, ValueCodec[point](c), nil, nil)
	defer m.Close()
	for i := uint32(0); i < 100; i++ {
		require.NoError(t, m.Set(99-i, point{X: int32(i), Y: -int32(i), Z: float64(i) / 2}))
	}
	require.NoError(t, m.Sort())
	var keys []uint32
	for k, p := range m.All() {
		require.Equal(t, int32(99-k), p.X)
		keys = append(keys, k)
	}
	require.True(t, slices.IsSorted(keys))
	require.Len(t, keys, 100)

	_, err = NewFixedCodec[[]byte]()
	require.Error(t, err)
	_, err = NewFixedCodec[struct{ N int }]()
	require.Error(t, err)
	_, err = NewFixedCodec[struct{}]()
	require.Error(t, err)

	// The layout check looks at the type and not at the zero value, whose
	// slices would otherwise report a size of zero.
	_, err = NewFixedCodec[[]uint32]()
	require.Error(t, err)
	_, err = NewFixedCodec[string]()
	require.Error(t, err)
	_, err = NewFixedCodec[struct {
		ID   uint64
		Tags []byte
	}]()
	require.Error(t, err)
	_, err = NewFixedCodec[[2]struct{ P *int32 }]()
	require.Error(t, err)

	arr, err := NewFixedCodec[[3]uint16]()
	require.NoError(t, err)
	require.Equal(t, 6, arr.Size())
	enc, err := arr.Encode(nil, [3]uint16{1, 2, 3})
	require.NoError(t, err)
	dec, err := arr.Decode(enc)
	require.NoError(t, err)
	require.Equal(t, [3]uint16{1, 2, 3}, dec)

	_, err = c.Decode(make([]byte, 3))
	require.Error(t, err)
	_, err = Uint64Codec{}.Decode(make([]byte, 3))
	require.Error(t, err)
}

// TestLazyMapRandomized runs random operations against a LazyMap and a model
// that tracks the expected contents.
func TestLazyMapRandomized(t *testing.T) {
	seed := uint64(time.Now().UnixNano())
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewPCG(0, seed))

	// ordered holds the contents as of the last Sort or ordered-mode
	// mutation; pending holds writes appended since.
	ordered := map[int]string{}
	var pending []struct {
		k int
		v string
	}
	live := map[string]int{}
	release := func(v string) {
		live[v]--
		if live[v] == 0 {
			delete(live, v)
		}
	}

	m := newTestLazyMap[int, string](t, StringCodec{}, &Options{
		BlockSize:     rng.IntN(200) + 16,
		CacheSize:     int64(rng.IntN(1000) + 1),
		CompactOnSort: rng.IntN(2) == 0,
		Compression: func() CompressionSetting {
			presets := CompressionPresets()
			return presets[int(seed%uint64(len(presets)))]
		},
	}, release)
	defer m.Close()

	var n int
	nextValue := func() string {
		n++
		v := fmt.Sprintf("v%d-%s", n, strings.Repeat("x", rng.IntN(40)))
		live[v]++
		return v
	}
	const keySpace = 200

	ops := metamorphic.Weighted[func()]{
		{Weight: 10, Item: func() {
			k, v := rng.IntN(keySpace), nextValue()
			require.NoError(t, m.Set(k, v))
			if _, ok := ordered[k]; ok && len(pending) == 0 {
				ordered[k] = v
				return
			}
			pending = append(pending, struct {
				k int
				v string
			}{k, v})
		}},
		{Weight: 4, Item: func() {
			k := rng.IntN(keySpace)
			v, ok, err := m.Get(k)
			require.NoError(t, err)
			if len(pending) > 0 {
				require.False(t, ok)
				return
			}
			want, wantOK := ordered[k]
			require.Equal(t, wantOK, ok, "key %d", k)
			require.Equal(t, want, v)
		}},
		{Weight: 2, Item: func() {
			k := rng.IntN(keySpace)
			ok, err := m.Del(k)
			require.NoError(t, err)
			if len(pending) > 0 {
				require.False(t, ok)
				return
			}
			_, wantOK := ordered[k]
			require.Equal(t, wantOK, ok)
			delete(ordered, k)
		}},
		{Weight: 2, Item: func() {
			require.NoError(t, m.Sort())
			for _, p := range pending {
				ordered[p.k] = p.v
			}
			pending = pending[:0]
			require.Equal(t, Ordered, m.Mode())
			require.Equal(t, len(ordered), m.Len())
		}},
		{Weight: 1, Item: func() {
			require.NoError(t, m.Storage().Compress())
		}},
		{Weight: 1, Item: func() {
			var keys []int
			require.NoError(t, m.Scan(func(k int, v string) error {
				if len(pending) == 0 {
					require.Equal(t, ordered[k], v)
				}
				keys = append(keys, k)
				return nil
			}))
			if len(pending) == 0 {
				require.True(t, slices.IsSorted(keys))
				require.Len(t, keys, len(ordered))
			}
		}},
	}
	next := ops.RandomDeck(randv1.New(randv1.NewSource(int64(seed))))
	for i := 0; i < 5000; i++ {
		next()()
	}

	require.NoError(t, m.Sort())
	for _, p := range pending {
		ordered[p.k] = p.v
	}
	// Every value still referenced by the map is live, and nothing else is.
	want := map[string]int{}
	for _, v := range ordered {
		want[v]++
	}
	require.Equal(t, want, live)

	var liveBytes int64
	for _, v := range ordered {
		liveBytes += int64(len(v))
	}
	require.Equal(t, liveBytes, m.Storage().LiveBytes())

	require.NoError(t, m.Clear())
	require.Empty(t, live)
}
