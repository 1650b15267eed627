// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package btree implements an in-memory B-Tree ordered by a comparison
// function.
package btree

import (
	"fmt"
	"iter"
	"sort"
)

const (
	degree   = 16
	maxItems = 2*degree - 1
	minItems = degree - 1
)

// node is a node in a tree. Leaf nodes never use their children array.
type node[T any] struct {
	parent   *node[T]
	pos      int16
	count    int16
	leaf     bool
	items    [maxItems]T
	children [maxItems + 1]*node[T]
}

func newLeafNode[T any]() *node[T] {
	return &node[T]{leaf: true}
}

func (n *node[T]) updatePos(start, end int) {
	for i := start; i < end; i++ {
		n.children[i].pos = int16(i)
	}
}

func (n *node[T]) insertAt(index int, item T, nd *node[T]) {
	if index < int(n.count) {
		copy(n.items[index+1:n.count+1], n.items[index:n.count])
		if !n.leaf {
			copy(n.children[index+2:n.count+2], n.children[index+1:n.count+1])
			n.updatePos(index+2, int(n.count+2))
		}
	}
	n.items[index] = item
	if !n.leaf {
		n.children[index+1] = nd
		nd.parent = n
		nd.pos = int16(index + 1)
	}
	n.count++
}

func (n *node[T]) pushBack(item T, nd *node[T]) {
	n.items[n.count] = item
	if !n.leaf {
		n.children[n.count+1] = nd
		nd.parent = n
		nd.pos = n.count + 1
	}
	n.count++
}

func (n *node[T]) pushFront(item T, nd *node[T]) {
	if !n.leaf {
		copy(n.children[1:n.count+2], n.children[:n.count+1])
		n.updatePos(1, int(n.count+2))
		n.children[0] = nd
		nd.parent = n
		nd.pos = 0
	}
	copy(n.items[1:n.count+1], n.items[:n.count])
	n.items[0] = item
	n.count++
}

// removeAt removes a value at a given index, pulling all subsequent values
// back.
func (n *node[T]) removeAt(index int) (T, *node[T]) {
	var zero T
	var child *node[T]
	if !n.leaf {
		child = n.children[index+1]
		copy(n.children[index+1:n.count], n.children[index+2:n.count+1])
		n.updatePos(index+1, int(n.count))
		n.children[n.count] = nil
	}
	n.count--
	out := n.items[index]
	copy(n.items[index:n.count], n.items[index+1:n.count+1])
	n.items[n.count] = zero
	return out, child
}

// popBack removes and returns the last element in the list.
func (n *node[T]) popBack() (T, *node[T]) {
	var zero T
	n.count--
	out := n.items[n.count]
	n.items[n.count] = zero
	if n.leaf {
		return out, nil
	}
	child := n.children[n.count+1]
	n.children[n.count+1] = nil
	return out, child
}

// popFront removes and returns the first element in the list.
func (n *node[T]) popFront() (T, *node[T]) {
	var zero T
	n.count--
	var child *node[T]
	if !n.leaf {
		child = n.children[0]
		copy(n.children[:n.count+1], n.children[1:n.count+2])
		n.updatePos(0, int(n.count+1))
		n.children[n.count+1] = nil
	}
	out := n.items[0]
	copy(n.items[:n.count], n.items[1:n.count+1])
	n.items[n.count] = zero
	return out, child
}

// find returns the index where the given item should be inserted into this
// list. 'found' is true if the item already exists in the list at the given
// index.
func (n *node[T]) find(cmp func(a, b T) int, item T) (index int, found bool) {
	i := sort.Search(int(n.count), func(i int) bool {
		return cmp(item, n.items[i]) < 0
	})
	if i > 0 && cmp(n.items[i-1], item) == 0 {
		return i - 1, true
	}
	return i, false
}

// split splits the given node at the given index. The current node shrinks,
// and this function returns the item that existed at that index and a new node
// containing all items/children after it.
func (n *node[T]) split(i int) (T, *node[T]) {
	var zero T
	out := n.items[i]
	next := &node[T]{leaf: n.leaf}
	next.count = n.count - int16(i+1)
	copy(next.items[:], n.items[i+1:n.count])
	for j := int16(i); j < n.count; j++ {
		n.items[j] = zero
	}
	if !n.leaf {
		copy(next.children[:], n.children[i+1:n.count+1])
		for j := int16(i + 1); j <= n.count; j++ {
			n.children[j] = nil
		}
		for j := int16(0); j <= next.count; j++ {
			next.children[j].parent = next
			next.children[j].pos = j
		}
	}
	n.count = int16(i)
	return out, next
}

// insert inserts an item into the subtree rooted at this node, making sure no
// nodes in the subtree exceed maxItems items. Returns the replaced item and
// true if an existing item was replaced.
func (n *node[T]) insert(cmp func(a, b T) int, item T) (T, bool) {
	i, found := n.find(cmp, item)
	if found {
		old := n.items[i]
		n.items[i] = item
		return old, true
	}
	if n.leaf {
		n.insertAt(i, item, nil)
		var zero T
		return zero, false
	}
	if n.children[i].count >= maxItems {
		splitItem, splitNode := n.children[i].split(maxItems / 2)
		n.insertAt(i, splitItem, splitNode)

		switch c := cmp(item, n.items[i]); {
		case c < 0:
			// no change, we want first split node
		case c > 0:
			i++ // we want second split node
		default:
			old := n.items[i]
			n.items[i] = item
			return old, true
		}
	}
	return n.children[i].insert(cmp, item)
}

func (n *node[T]) removeMax() T {
	var zero T
	if n.leaf {
		n.count--
		out := n.items[n.count]
		n.items[n.count] = zero
		return out
	}
	child := n.children[n.count]
	if child.count <= minItems {
		n.rebalanceOrMerge(int(n.count))
		return n.removeMax()
	}
	return child.removeMax()
}

// remove removes an item from the subtree rooted at this node.
func (n *node[T]) remove(cmp func(a, b T) int, probe T) (T, bool) {
	var zero T
	i, found := n.find(cmp, probe)
	if n.leaf {
		if found {
			out, _ := n.removeAt(i)
			return out, true
		}
		return zero, false
	}
	child := n.children[i]
	if child.count <= minItems {
		n.rebalanceOrMerge(i)
		return n.remove(cmp, probe)
	}
	if found {
		// Replace the item being removed with the max item in our left child.
		out := n.items[i]
		n.items[i] = child.removeMax()
		return out, true
	}
	return child.remove(cmp, probe)
}

func (n *node[T]) rebalanceOrMerge(i int) {
	switch {
	case i > 0 && n.children[i-1].count > minItems:
		// Rebalance from left sibling.
		left := n.children[i-1]
		child := n.children[i]
		item, grandChild := left.popBack()
		child.pushFront(n.items[i-1], grandChild)
		n.items[i-1] = item

	case i < int(n.count) && n.children[i+1].count > minItems:
		// Rebalance from right sibling.
		right := n.children[i+1]
		child := n.children[i]
		item, grandChild := right.popFront()
		child.pushBack(n.items[i], grandChild)
		n.items[i] = item

	default:
		// Merge with either the left or right sibling.
		if i >= int(n.count) {
			i = int(n.count - 1)
		}
		child := n.children[i]
		mergeItem, mergeChild := n.removeAt(i)
		child.items[child.count] = mergeItem
		copy(child.items[child.count+1:], mergeChild.items[:mergeChild.count])
		if !child.leaf {
			copy(child.children[child.count+1:], mergeChild.children[:mergeChild.count+1])
			for i := int16(0); i <= mergeChild.count; i++ {
				mergeChild.children[i].parent = child
			}
			child.updatePos(int(child.count+1), int(child.count+mergeChild.count+2))
		}
		child.count += mergeChild.count + 1
	}
}

func (n *node[T]) verify(cmp func(a, b T) int) {
	for i := int16(1); i < n.count; i++ {
		if cmp(n.items[i-1], n.items[i]) >= 0 {
			panic(fmt.Sprintf("items are not sorted @ %d: %v >= %v",
				i, n.items[i-1], n.items[i]))
		}
	}
	if !n.leaf {
		for i := int16(0); i < n.count; i++ {
			prev := n.children[i]
			if cmp(prev.items[prev.count-1], n.items[i]) >= 0 {
				panic(fmt.Sprintf("items are not sorted @ %d: %v >= %v",
					i, n.items[i], prev.items[prev.count-1]))
			}
			next := n.children[i+1]
			if cmp(n.items[i], next.items[0]) >= 0 {
				panic(fmt.Sprintf("items are not sorted @ %d: %v >= %v",
					i, n.items[i], next.items[0]))
			}
		}
		for i := int16(0); i <= n.count; i++ {
			if n.children[i].pos != i {
				panic(fmt.Sprintf("child has incorrect pos: %d != %d/%d", n.children[i].pos, i, n.count))
			}
			if n.children[i].parent != n {
				panic(fmt.Sprintf("child does not point to parent: %d/%d", i, n.count))
			}
			n.children[i].verify(cmp)
		}
	}
}

// BTree is an implementation of a B-Tree.
//
// BTree stores items in an ordered structure, allowing easy insertion,
// removal, and iteration. Items comparing equal are considered the same item.
//
// Write operations are not safe for concurrent mutation by multiple
// goroutines, but Read operations are.
type BTree[T any] struct {
	cmp    func(a, b T) int
	root   *node[T]
	length int
}

// New returns an empty tree ordered by cmp.
func New[T any](cmp func(a, b T) int) *BTree[T] {
	return &BTree[T]{
		cmp: cmp,
	}
}

// Reset removes all items from the btree.
func (t *BTree[T]) Reset() {
	t.root = nil
	t.length = 0
}

// Delete removes an item equal to the passed in item from the tree, returning
// the removed item.
func (t *BTree[T]) Delete(probe T) (T, bool) {
	var zero T
	if t.root == nil || t.root.count == 0 {
		return zero, false
	}
	out, found := t.root.remove(t.cmp, probe)
	if found {
		t.length--
	}
	if t.root.count == 0 && !t.root.leaf {
		t.root = t.root.children[0]
		t.root.parent = nil
	}
	return out, found
}

// Set adds the given item to the tree. If an item in the tree already equals
// the given one, it is replaced with the new item and returned.
func (t *BTree[T]) Set(item T) (old T, replaced bool) {
	if t.root == nil {
		t.root = newLeafNode[T]()
	} else if t.root.count >= maxItems {
		splitItem, splitNode := t.root.split(maxItems / 2)
		newRoot := &node[T]{}
		newRoot.count = 1
		newRoot.items[0] = splitItem
		newRoot.children[0] = t.root
		newRoot.children[1] = splitNode
		t.root.parent = newRoot
		t.root.pos = 0
		splitNode.parent = newRoot
		splitNode.pos = 1
		t.root = newRoot
	}
	old, replaced = t.root.insert(t.cmp, item)
	if !replaced {
		t.length++
	}
	return old, replaced
}

// Get returns the item equal to probe.
func (t *BTree[T]) Get(probe T) (T, bool) {
	var zero T
	n := t.root
	for n != nil {
		i, found := n.find(t.cmp, probe)
		if found {
			return n.items[i], true
		}
		if n.leaf {
			break
		}
		n = n.children[i]
	}
	return zero, false
}

// Min returns the smallest item in the tree.
func (t *BTree[T]) Min() (T, bool) {
	it := t.NewIter()
	it.First()
	if !it.Valid() {
		var zero T
		return zero, false
	}
	return it.Item(), true
}

// Max returns the largest item in the tree.
func (t *BTree[T]) Max() (T, bool) {
	it := t.NewIter()
	it.Last()
	if !it.Valid() {
		var zero T
		return zero, false
	}
	return it.Item(), true
}

// All returns an iterator over the items in ascending order. The tree must
// not be modified during iteration.
func (t *BTree[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		it := t.NewIter()
		for it.First(); it.Valid(); it.Next() {
			if !yield(it.Item()) {
				return
			}
		}
	}
}

// NewIter returns a new Iterator object. Note that it is safe for an iterator
// to be copied by value.
func (t *BTree[T]) NewIter() Iterator[T] {
	return Iterator[T]{t: t, pos: -1}
}

// Height returns the height of the tree.
func (t *BTree[T]) Height() int {
	if t.root == nil {
		return 0
	}
	h := 1
	n := t.root
	for !n.leaf {
		n = n.children[0]
		h++
	}
	return h
}

// Len returns the number of items currently in the tree.
func (t *BTree[T]) Len() int {
	return t.length
}

// Verify panics if the tree structure is inconsistent.
func (t *BTree[T]) Verify() {
	if t.root == nil {
		return
	}
	t.root.verify(t.cmp)
}

// Iterator is a positioned cursor over a BTree.
type Iterator[T any] struct {
	t   *BTree[T]
	n   *node[T]
	pos int16
}

// SeekGE positions the iterator at the first item >= probe.
func (i *Iterator[T]) SeekGE(probe T) {
	i.n = i.t.root
	if i.n == nil {
		return
	}
	for {
		pos, found := i.n.find(i.t.cmp, probe)
		i.pos = int16(pos)
		if found {
			return
		}
		if i.n.leaf {
			if i.pos == i.n.count {
				i.Next()
			}
			return
		}
		i.n = i.n.children[i.pos]
	}
}

// SeekLT positions the iterator at the last item < probe.
func (i *Iterator[T]) SeekLT(probe T) {
	i.n = i.t.root
	if i.n == nil {
		return
	}
	for {
		pos, found := i.n.find(i.t.cmp, probe)
		i.pos = int16(pos)
		if found || i.n.leaf {
			i.Prev()
			return
		}
		i.n = i.n.children[i.pos]
	}
}

// First positions the iterator at the smallest item.
func (i *Iterator[T]) First() {
	i.n = i.t.root
	if i.n == nil {
		return
	}
	for !i.n.leaf {
		i.n = i.n.children[0]
	}
	i.pos = 0
}

// Last positions the iterator at the largest item.
func (i *Iterator[T]) Last() {
	i.n = i.t.root
	if i.n == nil {
		return
	}
	for !i.n.leaf {
		i.n = i.n.children[i.n.count]
	}
	i.pos = i.n.count - 1
}

// Next advances the iterator.
func (i *Iterator[T]) Next() {
	if i.n == nil {
		return
	}

	if i.n.leaf {
		i.pos++
		if i.pos < i.n.count {
			return
		}
		for i.n.parent != nil && i.pos >= i.n.count {
			i.pos = i.n.pos
			i.n = i.n.parent
		}
		return
	}

	i.n = i.n.children[i.pos+1]
	for !i.n.leaf {
		i.n = i.n.children[0]
	}
	i.pos = 0
}

// Prev moves the iterator backwards.
func (i *Iterator[T]) Prev() {
	if i.n == nil {
		return
	}

	if i.n.leaf {
		i.pos--
		if i.pos >= 0 {
			return
		}
		for i.n.parent != nil && i.pos < 0 {
			i.pos = i.n.pos - 1
			i.n = i.n.parent
		}
		return
	}

	i.n = i.n.children[i.pos]
	for !i.n.leaf {
		i.n = i.n.children[i.n.count]
	}
	i.pos = i.n.count - 1
}

// Valid returns whether the iterator is positioned at an item.
func (i *Iterator[T]) Valid() bool {
	return i.n != nil && i.pos >= 0 && i.pos < i.n.count
}

// Item returns the item at the current position.
func (i *Iterator[T]) Item() T {
	return i.n.items[i.pos]
}
