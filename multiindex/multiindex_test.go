// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package multiindex

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

type player struct {
	id    int
	name  string
	level int
}

func byID(a, b player) int    { return cmp.Compare(a.id, b.id) }
func byLevel(a, b player) int { return cmp.Compare(a.level, b.level) }
func byName(a, b player) int  { return cmp.Compare(a.name, b.name) }

func names(seq func(func(*player) bool)) []string {
	var out []string
	for p := range seq {
		out = append(out, p.name)
	}
	return out
}

func TestSet(t *testing.T) {
	var s Set[player]
	require.True(t, s.Empty())
	ids := s.AddIndex(byID)

	s.Insert(player{id: 3, name: "carol", level: 10})
	bob := s.Insert(player{id: 2, name: "bob", level: 20})
	s.Insert(player{id: 1, name: "alice", level: 10})

	// Indexes added later see the existing values.
	levels := s.AddIndex(byLevel)
	byNames := s.AddIndex(byName)
	require.Equal(t, 3, s.Len())

	require.Equal(t, []string{"alice", "bob", "carol"}, names(s.Ascend(ids)))
	require.Equal(t, []string{"carol", "alice", "bob"}, names(s.Ascend(levels)))
	require.Equal(t, []string{"carol", "bob", "alice"}, names(s.All()))

	p, ok := s.Find(ids, player{id: 2})
	require.True(t, ok)
	require.Same(t, bob, p)
	_, ok = s.Find(ids, player{id: 4})
	require.False(t, ok)

	// Ties resolve to the earliest inserted value.
	p, ok = s.Find(levels, player{level: 10})
	require.True(t, ok)
	require.Equal(t, "carol", p.name)

	bob = s.Update(bob, player{id: 2, name: "bob", level: 5})
	require.Equal(t, []string{"bob", "carol", "alice"}, names(s.Ascend(levels)))
	require.Equal(t, []string{"carol", "alice", "bob"}, names(s.All()))

	require.True(t, s.Erase(bob))
	require.False(t, s.Erase(bob))
	require.Equal(t, 2, s.Len())
	_, ok = s.Find(byNames, player{name: "bob"})
	require.False(t, ok)
	require.Equal(t, []string{"alice", "carol"}, names(s.Ascend(byNames)))

	s.Clear()
	require.True(t, s.Empty())
	require.Empty(t, names(s.All()))
	require.Panics(t, func() { s.Ascend(ids) })
}

func TestSetBounds(t *testing.T) {
	var s Set[player]
	levels := s.AddIndex(byLevel)
	for i, lvl := range []int{10, 20, 20, 30, 40} {
		s.Insert(player{id: i, name: string(rune('a' + i)), level: lvl})
	}

	it := s.LowerBound(levels, player{level: 20})
	require.True(t, it.Valid())
	require.Equal(t, "b", it.Value().name)
	it.Prev()
	require.Equal(t, "a", it.Value().name)

	it = s.UpperBound(levels, player{level: 20})
	require.Equal(t, "d", it.Value().name)
	it = s.UpperBound(levels, player{level: 40})
	require.False(t, it.Valid())
	it = s.LowerBound(levels, player{level: 15})
	require.Equal(t, "b", it.Value().name)

	require.Equal(t, []string{"b", "c", "d"},
		names(s.EqualRange(levels, player{level: 20}, player{level: 30})))
	// Reversed bounds are swapped.
	require.Equal(t, []string{"b", "c", "d"},
		names(s.EqualRange(levels, player{level: 30}, player{level: 20})))
	require.Equal(t, []string{"b", "c"},
		names(s.EqualRange(levels, player{level: 20}, player{level: 20})))
	require.Empty(t, names(s.EqualRange(levels, player{level: 41}, player{level: 50})))
}

func TestSetRandomized(t *testing.T) {
	seed := rand.Uint64()
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewPCG(seed, seed))

	var s Set[player]
	ids := s.AddIndex(byID)
	levels := s.AddIndex(byLevel)
	var model []*player
	for i := 0; i < 2000; i++ {
		switch {
		case len(model) == 0 || rng.IntN(3) > 0:
			model = append(model, s.Insert(player{id: rng.IntN(100), level: rng.IntN(10)}))
		default:
			j := rng.IntN(len(model))
			require.True(t, s.Erase(model[j]))
			model = slices.Delete(model, j, j+1)
		}
	}
	require.Equal(t, len(model), s.Len())
	require.Equal(t, model, slices.Collect(s.All()))

	for _, idx := range []struct {
		i   Index
		cmp func(a, b player) int
	}{{ids, byID}, {levels, byLevel}} {
		want := slices.Clone(model)
		slices.SortStableFunc(want, func(a, b *player) int { return idx.cmp(*a, *b) })
		require.Equal(t, want, slices.Collect(s.Ascend(idx.i)))
	}
}
