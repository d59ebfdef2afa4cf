package statedb

import (
	"bytes"
)

// indexTree is an AVL tree mapping bytewise-ordered keys to object ids. It
// backs every table index; kvstore backings cannot seek, so ordered access
// lives in memory.
type indexTree struct {
	root *treeNode
	size int
}

type treeNode struct {
	key    []byte
	id     uint64
	left   *treeNode
	right  *treeNode
	parent *treeNode
	height int
}

func newIndexTree() *indexTree {
	return &indexTree{}
}

func (t *indexTree) len() int {
	return t.size
}

func height(n *treeNode) int {
	if n == nil {
		return 0
	}

	return n.height
}

func (n *treeNode) update() {
	n.height = 1 + max(height(n.left), height(n.right))
}

func balance(n *treeNode) int {
	return height(n.left) - height(n.right)
}

func rotateLeft(n *treeNode) *treeNode {
	r := n.right
	n.right = r.left
	if r.left != nil {
		r.left.parent = n
	}
	r.left = n
	r.parent = n.parent
	n.parent = r
	n.update()
	r.update()

	return r
}

func rotateRight(n *treeNode) *treeNode {
	l := n.left
	n.left = l.right
	if l.right != nil {
		l.right.parent = n
	}
	l.right = n
	l.parent = n.parent
	n.parent = l
	n.update()
	l.update()

	return l
}

func rebalance(n *treeNode) *treeNode {
	n.update()
	switch b := balance(n); {
	case b > 1:
		if balance(n.left) < 0 {
			n.left = rotateLeft(n.left)
			n.left.parent = n
		}

		return rotateRight(n)
	case b < -1:
		if balance(n.right) > 0 {
			n.right = rotateRight(n.right)
			n.right.parent = n
		}

		return rotateLeft(n)
	default:
		return n
	}
}

// insert adds key -> id and reports whether the key was new.
func (t *indexTree) insert(key []byte, id uint64) bool {
	root, added := t.insertInto(t.root, key, id)
	t.root = root
	t.root.parent = nil
	if added {
		t.size++
	}

	return added
}

func (t *indexTree) insertInto(n *treeNode, key []byte, id uint64) (*treeNode, bool) {
	if n == nil {
		return &treeNode{key: key, id: id, height: 1}, true
	}

	var added bool
	switch cmp := bytes.Compare(key, n.key); {
	case cmp < 0:
		n.left, added = t.insertInto(n.left, key, id)
		n.left.parent = n
	case cmp > 0:
		n.right, added = t.insertInto(n.right, key, id)
		n.right.parent = n
	default:
		return n, false
	}

	return rebalance(n), added
}

// remove deletes key and reports whether it was present.
func (t *indexTree) remove(key []byte) bool {
	root, removed := t.removeFrom(t.root, key)
	t.root = root
	if t.root != nil {
		t.root.parent = nil
	}
	if removed {
		t.size--
	}

	return removed
}

func (t *indexTree) removeFrom(n *treeNode, key []byte) (*treeNode, bool) {
	if n == nil {
		return nil, false
	}

	var removed bool
	switch cmp := bytes.Compare(key, n.key); {
	case cmp < 0:
		n.left, removed = t.removeFrom(n.left, key)
		if n.left != nil {
			n.left.parent = n
		}
	case cmp > 0:
		n.right, removed = t.removeFrom(n.right, key)
		if n.right != nil {
			n.right.parent = n
		}
	default:
		removed = true
		switch {
		case n.left == nil:
			if n.right != nil {
				n.right.parent = n.parent
			}

			return n.right, true
		case n.right == nil:
			n.left.parent = n.parent

			return n.left, true
		default:
			successor := minNode(n.right)
			n.key = successor.key
			n.id = successor.id
			n.right, _ = t.removeFrom(n.right, successor.key)
			if n.right != nil {
				n.right.parent = n
			}
		}
	}

	return rebalance(n), removed
}

func (t *indexTree) get(key []byte) (uint64, bool) {
	n := t.root
	for n != nil {
		switch cmp := bytes.Compare(key, n.key); {
		case cmp < 0:
			n = n.left
		case cmp > 0:
			n = n.right
		default:
			return n.id, true
		}
	}

	return 0, false
}

// seek returns the first node with key >= target, or nil.
func (t *indexTree) seek(target []byte) *treeNode {
	var candidate *treeNode
	n := t.root
	for n != nil {
		if bytes.Compare(n.key, target) >= 0 {
			candidate = n
			n = n.left
		} else {
			n = n.right
		}
	}

	return candidate
}

// seekAfter returns the first node with key > target, or nil.
func (t *indexTree) seekAfter(target []byte) *treeNode {
	var candidate *treeNode
	n := t.root
	for n != nil {
		if bytes.Compare(n.key, target) > 0 {
			candidate = n
			n = n.left
		} else {
			n = n.right
		}
	}

	return candidate
}

func minNode(n *treeNode) *treeNode {
	for n.left != nil {
		n = n.left
	}

	return n
}

func maxNode(n *treeNode) *treeNode {
	for n.right != nil {
		n = n.right
	}

	return n
}

func (t *indexTree) first() *treeNode {
	if t.root == nil {
		return nil
	}

	return minNode(t.root)
}

func (t *indexTree) last() *treeNode {
	if t.root == nil {
		return nil
	}

	return maxNode(t.root)
}

func (n *treeNode) next() *treeNode {
	if n.right != nil {
		return minNode(n.right)
	}
	for n.parent != nil && n.parent.right == n {
		n = n.parent
	}

	return n.parent
}

func (n *treeNode) prev() *treeNode {
	if n.left != nil {
		return maxNode(n.left)
	}
	for n.parent != nil && n.parent.left == n {
		n = n.parent
	}

	return n.parent
}
