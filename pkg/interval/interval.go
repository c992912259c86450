// Package interval provides an augmented interval tree for range-overlap
// queries. Insert, Remove and exact lookup run in O(log N); overlap search
// runs in O(log N + k), where k is the number of overlapping entries.
//
// The tree is a red-black tree where each node stores the maximum upper bound
// (max) of its subtree, so overlap search can skip subtrees that end before
// the query starts. Nodes live in an arena owned by the tree and are addressed
// by Handle; slot 0 is the shared black sentinel.
//
// A Tree is not safe for concurrent use. Callers sharing one across
// goroutines must serialize access themselves (see package index).
package interval

import (
	"cmp"
	"iter"
)

// Entry is a (key, value) pair stored in the tree.
type Entry[K any, V any] struct {
	Key   K
	Value V
}

// Tree is an augmented interval tree keyed by K with bounds of type B.
// The zero value is an empty tree ready to use.
type Tree[K Key[K, B], B cmp.Ordered, V comparable] struct {
	nodes []node[K, B, V]
	free  []Handle
	root  Handle
	count int
}

// New creates an empty interval tree.
func New[K Key[K, B], B cmp.Ordered, V comparable]() *Tree[K, B, V] {
	return &Tree[K, B, V]{
		nodes: []node[K, B, V]{{color: black}},
	}
}

// NewRangeTree creates an empty tree keyed by closed ranges over B.
func NewRangeTree[B cmp.Ordered, V comparable]() *Tree[Range[B], B, V] {
	return New[Range[B], B, V]()
}

// InsertKey stores key as its own value.
func InsertKey[K interface {
	Key[K, B]
	comparable
}, B cmp.Ordered](t *Tree[K, B, K], key K) Handle {
	return t.Insert(key, key)
}

// Len returns the number of entries in the tree.
func (t *Tree[K, B, V]) Len() int {
	return t.count
}

// IsEmpty reports whether the tree holds no entries.
func (t *Tree[K, B, V]) IsEmpty() bool {
	return t.root == NilHandle
}

// Clear removes all entries. Outstanding handles become invalid.
func (t *Tree[K, B, V]) Clear() {
	clear(t.nodes)
	t.nodes = append(t.nodes[:0], node[K, B, V]{color: black})
	t.free = nil
	t.root = NilHandle
	t.count = 0
}

// Insert adds (key, value) and returns its handle. Keys equal under Less may
// coexist; among them iteration follows insertion order. An undefined key
// (nil, or one whose Valid method reports false) is ignored and NilHandle is
// returned.
func (t *Tree[K, B, V]) Insert(key K, value V) Handle {
	if undefined(key) {
		return NilHandle
	}

	h := t.malloc()
	n := &t.nodes[h]
	n.key = key
	n.value = value
	n.max = key.High()
	n.color = red
	n.used = true

	t.bstInsert(h)
	t.insertFixup(h)
	t.propagateMax(h)
	t.count++

	return h
}

// Exist reports whether an entry with exactly this key and value is stored.
func (t *Tree[K, B, V]) Exist(key K, value V) bool {
	if undefined(key) {
		return false
	}

	return t.findExact(t.root, key, value) != NilHandle
}

// Remove deletes one entry matching key and value. It reports whether an
// entry was found.
func (t *Tree[K, B, V]) Remove(key K, value V) bool {
	if undefined(key) {
		return false
	}

	h := t.findExact(t.root, key, value)
	if h == NilHandle {
		return false
	}

	t.deleteNode(h)

	return true
}

// RemoveHandle deletes the entry named by h. It reports false for NilHandle
// or a handle whose entry was already removed.
func (t *Tree[K, B, V]) RemoveHandle(h Handle) bool {
	if !t.live(h) {
		return false
	}

	t.deleteNode(h)

	return true
}

// Get returns the entry named by h.
func (t *Tree[K, B, V]) Get(h Handle) (K, V, bool) {
	if !t.live(h) {
		var (
			key   K
			value V
		)

		return key, value, false
	}

	n := &t.nodes[h]

	return n.key, n.value, true
}

// Min returns the entry with the smallest key.
func (t *Tree[K, B, V]) Min() (Entry[K, V], bool) {
	return t.entryAt(t.minimum(t.root))
}

// Max returns the entry with the largest key.
func (t *Tree[K, B, V]) Max() (Entry[K, V], bool) {
	return t.entryAt(t.maximum(t.root))
}

// Search returns the values of all entries whose keys intersect query, in
// ascending key order.
func (t *Tree[K, B, V]) Search(query K) []V {
	var res []V

	t.visitOverlap(t.root, query, func(h Handle) bool {
		res = append(res, t.nodes[h].value)

		return true
	})

	return res
}

// SearchKeys returns the keys of all entries intersecting query, in
// ascending order.
func (t *Tree[K, B, V]) SearchKeys(query K) []K {
	var res []K

	t.visitOverlap(t.root, query, func(h Handle) bool {
		res = append(res, t.nodes[h].key)

		return true
	})

	return res
}

// SearchEntries returns all entries whose keys intersect query, in ascending
// key order.
func (t *Tree[K, B, V]) SearchEntries(query K) []Entry[K, V] {
	var res []Entry[K, V]

	t.visitOverlap(t.root, query, func(h Handle) bool {
		n := &t.nodes[h]
		res = append(res, Entry[K, V]{Key: n.key, Value: n.value})

		return true
	})

	return res
}

// Overlaps reports whether any entry intersects query.
func (t *Tree[K, B, V]) Overlaps(query K) bool {
	found := false

	t.visitOverlap(t.root, query, func(Handle) bool {
		found = true

		return false
	})

	return found
}

// ForEach calls visitor for every entry in ascending key order.
func (t *Tree[K, B, V]) ForEach(visitor func(key K, value V)) {
	t.walk(t.root, func(h Handle) bool {
		visitor(t.nodes[h].key, t.nodes[h].value)

		return true
	})
}

// All returns an iterator over all entries in ascending key order. The tree
// must not be modified while iterating.
func (t *Tree[K, B, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		t.walk(t.root, func(h Handle) bool {
			return yield(t.nodes[h].key, t.nodes[h].value)
		})
	}
}

// Keys returns all keys in ascending order.
func (t *Tree[K, B, V]) Keys() []K {
	res := make([]K, 0, t.count)

	t.walk(t.root, func(h Handle) bool {
		res = append(res, t.nodes[h].key)

		return true
	})

	return res
}

// bstInsert links h as a leaf. Keys equivalent to an existing one descend
// right, which keeps duplicates in insertion order.
func (t *Tree[K, B, V]) bstInsert(h Handle) {
	if t.root == NilHandle {
		t.root = h

		return
	}

	nodes := t.nodes
	key := nodes[h].key
	current := t.root

	for {
		nodes[current].max = max(nodes[current].max, key.High())

		if key.Less(nodes[current].key) {
			if nodes[current].left == NilHandle {
				nodes[current].left = h
				nodes[h].parent = current

				return
			}

			current = nodes[current].left
		} else {
			if nodes[current].right == NilHandle {
				nodes[current].right = h
				nodes[h].parent = current

				return
			}

			current = nodes[current].right
		}
	}
}

// findExact locates a node matching key and value in the subtree rooted at h.
func (t *Tree[K, B, V]) findExact(h Handle, key K, value V) Handle {
	for h != NilHandle {
		n := &t.nodes[h]
		if n.equalTo(key, value) {
			return h
		}

		switch {
		case key.Less(n.key):
			h = n.left
		case n.lessThan(key):
			h = n.right
		default:
			// Equivalent keys may sit on either side after rotations.
			if found := t.findExact(n.left, key, value); found != NilHandle {
				return found
			}

			h = n.right
		}
	}

	return NilHandle
}

// visitOverlap calls fn for every node under h intersecting query, in order.
// It returns false once fn asks to stop.
func (t *Tree[K, B, V]) visitOverlap(h Handle, query K, fn func(Handle) bool) bool {
	if h == NilHandle {
		return true
	}

	if !t.skipLeft(h, query) && !t.visitOverlap(t.nodes[h].left, query, fn) {
		return false
	}

	if t.nodes[h].intersects(query) && !fn(h) {
		return false
	}

	if !t.skipRight(h, query) {
		return t.visitOverlap(t.nodes[h].right, query, fn)
	}

	return true
}

// walk visits the subtree rooted at h in order until fn returns false.
func (t *Tree[K, B, V]) walk(h Handle, fn func(Handle) bool) bool {
	if h == NilHandle {
		return true
	}

	if !t.walk(t.nodes[h].left, fn) {
		return false
	}

	if !fn(h) {
		return false
	}

	return t.walk(t.nodes[h].right, fn)
}

func (t *Tree[K, B, V]) live(h Handle) bool {
	return h != NilHandle && int(h) < len(t.nodes) && t.nodes[h].used
}

func (t *Tree[K, B, V]) entryAt(h Handle) (Entry[K, V], bool) {
	if h == NilHandle {
		return Entry[K, V]{}, false
	}

	return Entry[K, V]{Key: t.nodes[h].key, Value: t.nodes[h].value}, true
}

// undefined reports whether key is a nil interface or declares itself invalid.
func undefined(key any) bool {
	if key == nil {
		return true
	}

	if v, ok := key.(validator); ok {
		return !v.Valid()
	}

	return false
}
