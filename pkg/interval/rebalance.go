package interval

// rotate performs a rotation at h. When left is true, rotates left;
// otherwise rotates right. Maintains the max augmentation.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation is the mirror image.
//
//nolint:dupword // ASCII art diagram contains repeated letters.
func (t *Tree[K, B, V]) rotate(h Handle, left bool) {
	nodes := t.nodes
	pivot := t.childOf(h, !left)
	inner := t.childOf(pivot, left)

	if left {
		nodes[h].right = inner
		nodes[pivot].left = h
	} else {
		nodes[h].left = inner
		nodes[pivot].right = h
	}

	if inner != NilHandle {
		nodes[inner].parent = h
	}

	parent := nodes[h].parent
	nodes[pivot].parent = parent

	switch {
	case parent == NilHandle:
		t.root = pivot
	case nodes[parent].left == h:
		nodes[parent].left = pivot
	default:
		nodes[parent].right = pivot
	}

	nodes[h].parent = pivot

	// h is now below pivot: recompute it first.
	t.updateMax(h)
	t.updateMax(pivot)
}

// insertFixup restores the red-black properties after h was linked as a red leaf.
func (t *Tree[K, B, V]) insertFixup(h Handle) {
	for h != t.root && t.colorOf(t.parentOf(h)) == red {
		parent := t.parentOf(h)

		grandparent := t.parentOf(parent)
		if grandparent == NilHandle {
			break
		}

		h = t.insertFixupCase(h, parent, grandparent, parent == t.nodes[grandparent].left)
	}

	t.setColor(t.root, black)
}

// insertFixupCase handles one side of the insert fixup and returns the node
// to continue from. When leftCase is true, parent is grandparent's left child.
func (t *Tree[K, B, V]) insertFixupCase(h, parent, grandparent Handle, leftCase bool) Handle {
	uncle := t.childOf(grandparent, !leftCase)

	// Red uncle: push the blackness down from the grandparent and continue there.
	if t.colorOf(uncle) == red {
		t.setColor(parent, black)
		t.setColor(uncle, black)
		t.setColor(grandparent, red)

		return grandparent
	}

	// Inner child: rotate it to the outside first.
	if h == t.childOf(parent, !leftCase) {
		t.rotate(parent, leftCase)
		h, parent = parent, h
	}

	t.setColor(parent, black)
	t.setColor(grandparent, red)
	t.rotate(grandparent, !leftCase)

	return h
}

// transplant puts v in u's place under u's parent. v may be the sentinel,
// whose parent link is never written.
func (t *Tree[K, B, V]) transplant(u, v Handle) {
	parent := t.nodes[u].parent

	switch {
	case parent == NilHandle:
		t.root = v
	case t.nodes[parent].left == u:
		t.nodes[parent].left = v
	default:
		t.nodes[parent].right = v
	}

	if v != NilHandle {
		t.nodes[v].parent = parent
	}
}

// deleteNode unlinks h and releases its slot.
//
// A node with two children is replaced by its in-order successor, which is
// relinked rather than copied so that every other handle keeps naming its
// own entry. The splice target x may be the sentinel; its parent is tracked
// separately because the sentinel carries no parent link.
func (t *Tree[K, B, V]) deleteNode(h Handle) {
	nodes := t.nodes
	removedColor := nodes[h].color

	var x, xParent Handle

	switch {
	case nodes[h].left == NilHandle:
		x = nodes[h].right
		xParent = nodes[h].parent
		t.transplant(h, x)
	case nodes[h].right == NilHandle:
		x = nodes[h].left
		xParent = nodes[h].parent
		t.transplant(h, x)
	default:
		succ := t.minimum(nodes[h].right)
		removedColor = nodes[succ].color
		x = nodes[succ].right

		if nodes[succ].parent == h {
			xParent = succ
		} else {
			xParent = nodes[succ].parent
			t.transplant(succ, x)
			nodes[succ].right = nodes[h].right
			nodes[nodes[succ].right].parent = succ
		}

		t.transplant(h, succ)
		nodes[succ].left = nodes[h].left
		nodes[nodes[succ].left].parent = succ
		nodes[succ].color = nodes[h].color
	}

	// Every node whose subtree changed lies on the path from xParent to the root.
	t.propagateMax(xParent)

	if removedColor == black {
		t.deleteFixup(x, xParent)
	}

	t.release(h)
	t.count--
}

// deleteFixup restores black-height after a black node was removed above x.
// x carries an extra black; parent is x's parent (needed when x is the sentinel).
func (t *Tree[K, B, V]) deleteFixup(x, parent Handle) {
	for x != t.root && t.colorOf(x) == black {
		isLeft := x == t.nodes[parent].left

		x = t.deleteFixupCase(parent, isLeft)
		parent = t.parentOf(x)
	}

	t.setColor(x, black)
}

// deleteFixupCase runs one iteration of the delete fixup for the side given
// by isLeft and returns the next doubly-black node (the root when done).
func (t *Tree[K, B, V]) deleteFixupCase(parent Handle, isLeft bool) Handle {
	sibling := t.childOf(parent, !isLeft)

	// Red sibling: rotate it above parent so the new sibling is black.
	if t.colorOf(sibling) == red {
		t.setColor(sibling, black)
		t.setColor(parent, red)
		t.rotate(parent, isLeft)

		sibling = t.childOf(parent, !isLeft)
	}

	outer := t.childOf(sibling, !isLeft)
	inner := t.childOf(sibling, isLeft)

	// Both nephews black: move the extra black up.
	if t.colorOf(inner) == black && t.colorOf(outer) == black {
		t.setColor(sibling, red)

		return parent
	}

	// Outer nephew black: rotate the red inner nephew to the outside.
	if t.colorOf(outer) == black {
		t.setColor(inner, black)
		t.setColor(sibling, red)
		t.rotate(sibling, !isLeft)

		sibling = t.childOf(parent, !isLeft)
		outer = t.childOf(sibling, !isLeft)
	}

	t.setColor(sibling, t.colorOf(parent))
	t.setColor(parent, black)
	t.setColor(outer, black)
	t.rotate(parent, isLeft)

	return t.root
}
