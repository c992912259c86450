package interval

import (
	"errors"
	"fmt"
)

// ErrBlackHeight reports a broken red-black tree: two paths from the same node
// to the sentinel cross a different number of black nodes.
var ErrBlackHeight = errors.New("red-black height property violated")

// CheckRedBlack reports whether the root is black and no red node has a red child.
func (t *Tree[K, B, V]) CheckRedBlack() bool {
	if t.colorOf(t.root) != black {
		return false
	}

	ok := true

	t.walk(t.root, func(h Handle) bool {
		n := &t.nodes[h]
		if n.color == red && (t.colorOf(n.left) == red || t.colorOf(n.right) == red) {
			ok = false
		}

		return ok
	})

	return ok
}

// BlackHeight returns the black-height of the tree, counting the sentinel.
// It panics with ErrBlackHeight if any node has unequal black-heights on its
// two sides. Intended for tests and diagnostics only.
func (t *Tree[K, B, V]) BlackHeight() int {
	return t.blackHeight(t.root)
}

func (t *Tree[K, B, V]) blackHeight(h Handle) int {
	if h == NilHandle {
		return 1
	}

	n := &t.nodes[h]

	left := t.blackHeight(n.left)
	right := t.blackHeight(n.right)

	if left != right {
		panic(fmt.Errorf("%w: node %v has black-heights %d and %d", ErrBlackHeight, n.key, left, right))
	}

	if n.color == black {
		return left + 1
	}

	return left
}

// CheckMax reports whether every node's max equals the largest high bound in
// its subtree.
func (t *Tree[K, B, V]) CheckMax() bool {
	ok := true

	t.walk(t.root, func(h Handle) bool {
		n := &t.nodes[h]
		m := n.key.High()

		if n.left != NilHandle {
			m = max(m, t.nodes[n.left].max)
		}

		if n.right != NilHandle {
			m = max(m, t.nodes[n.right].max)
		}

		ok = n.max == m

		return ok
	})

	return ok
}

// CheckOrder reports whether parent links are consistent and an in-order
// walk never sees a key less than its predecessor.
func (t *Tree[K, B, V]) CheckOrder() bool {
	if t.root != NilHandle && t.nodes[t.root].parent != NilHandle {
		return false
	}

	var prev Handle

	ok := true
	seen := 0

	t.walk(t.root, func(h Handle) bool {
		n := &t.nodes[h]

		for _, child := range [2]Handle{n.left, n.right} {
			if child != NilHandle && t.nodes[child].parent != h {
				ok = false
			}
		}

		if prev != NilHandle && n.key.Less(t.nodes[prev].key) {
			ok = false
		}

		prev = h
		seen++

		return ok
	})

	return ok && seen == t.count
}
