package statedb

import (
	"encoding/binary"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func key16(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)

	return b
}

func TestIndexTreeRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tree := newIndexTree()
	reference := make(map[uint64]uint64)

	for i := 0; i < 5000; i++ {
		v := uint64(rng.Intn(1000))
		if rng.Intn(3) == 0 {
			delete(reference, v)
			tree.remove(key16(v))
		} else {
			if _, exists := reference[v]; !exists {
				reference[v] = v * 10
				require.True(t, tree.insert(key16(v), v*10))
			} else {
				require.False(t, tree.insert(key16(v), v*10))
			}
		}
	}

	require.Equal(t, len(reference), tree.len())

	sorted := make([]uint64, 0, len(reference))
	for v := range reference {
		sorted = append(sorted, v)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var walked []uint64
	for n := tree.first(); n != nil; n = n.next() {
		walked = append(walked, binary.BigEndian.Uint64(n.key))
	}
	require.Equal(t, sorted, walked)

	var reversed []uint64
	for n := tree.last(); n != nil; n = n.prev() {
		reversed = append(reversed, binary.BigEndian.Uint64(n.key))
	}
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	require.Equal(t, sorted, reversed)

	for _, v := range sorted {
		id, exists := tree.get(key16(v))
		require.True(t, exists)
		require.Equal(t, v*10, id)
	}

	checkHeights(t, tree.root)
}

func checkHeights(t *testing.T, n *treeNode) int {
	t.Helper()
	if n == nil {
		return 0
	}
	left := checkHeights(t, n.left)
	right := checkHeights(t, n.right)
	require.LessOrEqual(t, left-right, 1)
	require.LessOrEqual(t, right-left, 1)
	require.Equal(t, 1+max(left, right), n.height)
	if n.left != nil {
		require.Same(t, n, n.left.parent)
	}
	if n.right != nil {
		require.Same(t, n, n.right.parent)
	}

	return n.height
}

func TestIndexTreeBounds(t *testing.T) {
	tree := newIndexTree()
	for _, v := range []uint64{10, 20, 30} {
		tree.insert(key16(v), v)
	}

	require.EqualValues(t, 10, tree.seek(key16(5)).id)
	require.EqualValues(t, 20, tree.seek(key16(20)).id)
	require.EqualValues(t, 30, tree.seekAfter(key16(20)).id)
	require.Nil(t, tree.seek(key16(31)))
	require.Nil(t, tree.seekAfter(key16(30)))
}
