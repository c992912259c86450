package interval

import (
	"cmp"
	"math"
)

// Handle names an entry stored in a Tree. It stays bound to the same
// (key, value) until that entry is removed; afterwards the slot may be reused.
type Handle uint32

// NilHandle is the sentinel handle: "no node".
const NilHandle Handle = 0

// maxNodes bounds the arena; math.MaxUint32 itself is never handed out.
const maxNodes = math.MaxUint32

// color is the red-black color of a node.
type color bool

// Red-black tree color constants.
const (
	red   color = false
	black color = true
)

// node is a tree vertex stored in the arena. Slot 0 of the arena is the
// sentinel: black, empty, and never written after creation.
type node[K Key[K, B], B cmp.Ordered, V comparable] struct {
	key                 K
	value               V
	max                 B
	parent, left, right Handle
	color               color
	used                bool
}

func (n *node[K, B, V]) lessThan(key K) bool {
	return n.key.Less(key)
}

// equalTo matches on key and value, unlike ordering equivalence.
func (n *node[K, B, V]) equalTo(key K, value V) bool {
	return n.key.Equal(key) && n.value == value
}

func (n *node[K, B, V]) intersects(query K) bool {
	return n.key.Intersects(query)
}

// skipLeft reports whether the left subtree of h cannot overlap query:
// nothing in it ends at or after query.Low().
func (t *Tree[K, B, V]) skipLeft(h Handle, query K) bool {
	left := t.nodes[h].left

	return left == NilHandle || t.nodes[left].max < query.Low()
}

// skipRight reports whether the right subtree of h cannot overlap query:
// every key there starts at or after h's low, which is already past query.High().
func (t *Tree[K, B, V]) skipRight(h Handle, query K) bool {
	n := &t.nodes[h]

	return n.right == NilHandle || query.High() < n.key.Low()
}

// updateMax recomputes the augmented max of h from its key and children.
// The sentinel contributes nothing.
func (t *Tree[K, B, V]) updateMax(h Handle) {
	if h == NilHandle {
		return
	}

	n := &t.nodes[h]
	m := n.key.High()

	if n.left != NilHandle {
		m = max(m, t.nodes[n.left].max)
	}

	if n.right != NilHandle {
		m = max(m, t.nodes[n.right].max)
	}

	n.max = m
}

// propagateMax recomputes max from h up to the root.
func (t *Tree[K, B, V]) propagateMax(h Handle) {
	for h != NilHandle {
		t.updateMax(h)
		h = t.nodes[h].parent
	}
}

func (t *Tree[K, B, V]) colorOf(h Handle) color {
	if h == NilHandle {
		return black
	}

	return t.nodes[h].color
}

// setColor paints h; the sentinel is left untouched.
func (t *Tree[K, B, V]) setColor(h Handle, c color) {
	if h != NilHandle {
		t.nodes[h].color = c
	}
}

func (t *Tree[K, B, V]) parentOf(h Handle) Handle {
	if h == NilHandle {
		return NilHandle
	}

	return t.nodes[h].parent
}

// childOf returns the left child when left is true, the right child otherwise.
func (t *Tree[K, B, V]) childOf(h Handle, left bool) Handle {
	if h == NilHandle {
		return NilHandle
	}

	if left {
		return t.nodes[h].left
	}

	return t.nodes[h].right
}

// minimum returns the leftmost node of the subtree rooted at h.
func (t *Tree[K, B, V]) minimum(h Handle) Handle {
	for h != NilHandle && t.nodes[h].left != NilHandle {
		h = t.nodes[h].left
	}

	return h
}

// maximum returns the rightmost node of the subtree rooted at h.
func (t *Tree[K, B, V]) maximum(h Handle) Handle {
	for h != NilHandle && t.nodes[h].right != NilHandle {
		h = t.nodes[h].right
	}

	return h
}

// malloc hands out a zeroed arena slot, reusing freed slots first.
func (t *Tree[K, B, V]) malloc() Handle {
	if n := len(t.free); n > 0 {
		h := t.free[n-1]
		t.free = t.free[:n-1]

		return h
	}

	if len(t.nodes) == 0 {
		// Zero is reserved for the sentinel.
		t.nodes = append(t.nodes, node[K, B, V]{color: black})
	}

	if uint64(len(t.nodes)) >= maxNodes {
		panic("interval: node arena reached the maximum value for uint32")
	}

	t.nodes = append(t.nodes, node[K, B, V]{})

	return Handle(len(t.nodes) - 1)
}

func (t *Tree[K, B, V]) release(h Handle) {
	if h == NilHandle {
		panic("interval: the sentinel slot cannot be released")
	}

	t.nodes[h] = node[K, B, V]{}
	t.free = append(t.free, h)
}
