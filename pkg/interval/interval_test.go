package interval

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test constants.
const (
	testLow10    = 10
	testHigh20   = 20
	testLow15    = 15
	testHigh25   = 25
	testLow30    = 30
	testHigh40   = 40
	testPoint12  = 12
	testPoint50  = 50
	testCount100 = 100
	testCount500 = 500
	testSeed     = 42
)

func rng(low, high int) Range[int] {
	return MustRange(low, high)
}

// assertInvariants checks every structural invariant of the tree.
func assertInvariants[K Key[K, B], B cmp.Ordered, V comparable](t *testing.T, tree *Tree[K, B, V]) {
	t.Helper()

	assert.True(t, tree.CheckRedBlack(), "red-black coloring")
	assert.NotPanics(t, func() { tree.BlackHeight() }, "black-height")
	assert.True(t, tree.CheckMax(), "max augmentation")
	assert.True(t, tree.CheckOrder(), "ordering and parent links")
}

// TestNew verifies empty tree creation.
func TestNew(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	assert.NotNil(t, tree)
	assert.Equal(t, 0, tree.Len())
	assert.True(t, tree.IsEmpty())
	assert.Empty(t, tree.Keys())
}

// TestZeroValueTree verifies the zero Tree is usable.
func TestZeroValueTree(t *testing.T) {
	t.Parallel()

	var tree Tree[Range[int], int, string]

	assert.False(t, tree.Exist(rng(1, 2), "a"))
	assert.Empty(t, tree.Search(rng(1, 2)))

	h := tree.Insert(rng(1, 2), "a")
	assert.NotEqual(t, NilHandle, h)
	assert.True(t, tree.Exist(rng(1, 2), "a"))
	assertInvariants(t, &tree)
}

// TestInsert_Len verifies length tracking after inserts.
func TestInsert_Len(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(testLow10, testHigh20), "a")
	assert.Equal(t, 1, tree.Len())
	assert.False(t, tree.IsEmpty())

	tree.Insert(rng(testLow30, testHigh40), "b")
	assert.Equal(t, 2, tree.Len())
}

// TestInsert_UndefinedKey verifies an invalid key is ignored.
func TestInsert_UndefinedKey(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()

	h := tree.Insert(Range[int]{low: 5, high: 1}, "bad")
	assert.Equal(t, NilHandle, h)
	assert.True(t, tree.IsEmpty())
	assert.False(t, tree.Exist(Range[int]{low: 5, high: 1}, "bad"))
	assert.False(t, tree.Remove(Range[int]{low: 5, high: 1}, "bad"))
}

// TestSearch_ThreeIntervals verifies search before and after removing the middle interval.
func TestSearch_ThreeIntervals(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(1, 3), "a")
	tree.Insert(rng(5, 8), "b")
	tree.Insert(rng(2, 6), "c")

	assert.Equal(t, []string{"c", "b"}, tree.Search(rng(4, 5)))
	assert.Empty(t, tree.Search(rng(9, 10)))

	require.True(t, tree.Remove(rng(2, 6), "c"))
	assert.Equal(t, []string{"b"}, tree.Search(rng(4, 5)))
	assertInvariants(t, tree)
}

// TestSearch_Basic verifies basic insert and query.
func TestSearch_Basic(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(testLow10, testHigh20), "a")

	results := tree.SearchEntries(rng(testLow15, testHigh25))
	require.Len(t, results, 1)
	assert.Equal(t, rng(testLow10, testHigh20), results[0].Key)
	assert.Equal(t, "a", results[0].Value)
}

// TestSearch_NoMatch verifies no results when no overlap.
func TestSearch_NoMatch(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(testLow10, testHigh20), "a")

	assert.Empty(t, tree.Search(rng(testLow30, testHigh40)))
	assert.False(t, tree.Overlaps(rng(testLow30, testHigh40)))
}

// TestSearch_EmptyTree verifies query on empty tree.
func TestSearch_EmptyTree(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()

	assert.Nil(t, tree.Search(rng(testLow10, testHigh20)))
	assert.Nil(t, tree.SearchKeys(rng(testLow10, testHigh20)))
}

// TestSearch_MultipleResults verifies multiple overlapping intervals.
func TestSearch_MultipleResults(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(testLow10, testHigh20), "a")
	tree.Insert(rng(testLow15, testHigh25), "b")
	tree.Insert(rng(testLow30, testHigh40), "c")

	// Query [12, 18] should overlap [10,20] and [15,25] but not [30,40].
	keys := tree.SearchKeys(rng(testPoint12, 18))
	assert.Equal(t, []Range[int]{rng(testLow10, testHigh20), rng(testLow15, testHigh25)}, keys)
	assert.True(t, tree.Overlaps(rng(testPoint12, 18)))
}

// TestSearch_PointBoundary verifies point queries at interval boundaries.
func TestSearch_PointBoundary(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(testLow10, testHigh20), "a")

	assert.Len(t, tree.Search(Point(testLow10)), 1)
	assert.Len(t, tree.Search(Point(testHigh20)), 1)
	assert.Empty(t, tree.Search(Point(testPoint50)))
}

// TestSearch_Adjacent verifies adjacent intervals don't overlap.
func TestSearch_Adjacent(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(testLow10, testHigh20), "a")
	tree.Insert(rng(21, testHigh40), "b")

	assert.Equal(t, []string{"a"}, tree.Search(Point(testHigh20)))
	assert.Equal(t, []string{"b"}, tree.Search(Point(21)))
}

// TestSearch_ZeroWidth verifies point intervals (low == high) work.
func TestSearch_ZeroWidth(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(Point(testLow15), "p")

	assert.Len(t, tree.Search(Point(testLow15)), 1)
	assert.Empty(t, tree.Search(Point(testLow10)))
}

// TestSearch_KeysWhenValuesAreKeys verifies key-valued trees.
func TestSearch_KeysWhenValuesAreKeys(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, Range[int]]()
	InsertKey(tree, rng(1, 3))
	InsertKey(tree, rng(5, 8))

	assert.Equal(t, []Range[int]{rng(5, 8)}, tree.Search(rng(4, 5)))
	assert.True(t, tree.Exist(rng(1, 3), rng(1, 3)))
}

// TestRemove_Basic verifies basic delete and re-query.
func TestRemove_Basic(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(testLow10, testHigh20), "a")

	assert.True(t, tree.Remove(rng(testLow10, testHigh20), "a"))
	assert.Equal(t, 0, tree.Len())
	assert.True(t, tree.IsEmpty())
	assert.Empty(t, tree.Search(rng(testLow10, testHigh20)))
}

// TestRemove_NonExistent verifies deleting a non-existent entry.
func TestRemove_NonExistent(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(testLow10, testHigh20), "a")

	assert.False(t, tree.Remove(rng(testLow30, testHigh40), "b"))
	assert.False(t, tree.Remove(rng(testLow10, testHigh20), "other"))
	assert.Equal(t, 1, tree.Len())
}

// TestRemove_EmptyTree verifies delete on empty tree.
func TestRemove_EmptyTree(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()

	assert.False(t, tree.Remove(rng(testLow10, testHigh20), "a"))
}

// TestRemove_PreservesOthers verifies delete doesn't affect other entries.
func TestRemove_PreservesOthers(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(testLow10, testHigh20), "a")
	tree.Insert(rng(testLow30, testHigh40), "b")

	tree.Remove(rng(testLow10, testHigh20), "a")

	assert.Equal(t, []string{"b"}, tree.Search(rng(testLow30, testHigh40)))
}

// TestDuplicates verifies equal keys with different values coexist and are
// removed individually.
func TestDuplicates(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, int]()
	for v := range 10 {
		tree.Insert(rng(testLow10, testHigh20), v)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, tree.Search(Point(testLow15)))

	for _, v := range []int{7, 0, 9, 4} {
		require.True(t, tree.Remove(rng(testLow10, testHigh20), v))
		assert.False(t, tree.Exist(rng(testLow10, testHigh20), v))
		assertInvariants(t, tree)
	}

	assert.Equal(t, []int{1, 2, 3, 5, 6, 8}, tree.Search(Point(testLow15)))
}

// TestHandles_StableAcrossRemoval verifies handles keep naming their entry
// when a node with two children is removed.
func TestHandles_StableAcrossRemoval(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, int]()
	handles := make(map[int]Handle, testCount100)

	for i := range testCount100 {
		handles[i] = tree.Insert(rng(i, i+5), i)
	}

	for i := 0; i < testCount100; i += 3 {
		require.True(t, tree.RemoveHandle(handles[i]))
		delete(handles, i)
	}

	for i, h := range handles {
		key, value, ok := tree.Get(h)
		require.True(t, ok)
		assert.Equal(t, rng(i, i+5), key)
		assert.Equal(t, i, value)
	}

	assertInvariants(t, tree)
}

// TestRemoveHandle_Stale verifies stale handles are rejected.
func TestRemoveHandle_Stale(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	h := tree.Insert(rng(1, 2), "a")

	require.True(t, tree.RemoveHandle(h))
	assert.False(t, tree.RemoveHandle(h))
	assert.False(t, tree.RemoveHandle(NilHandle))
	assert.False(t, tree.RemoveHandle(Handle(testCount100)))

	_, _, ok := tree.Get(h)
	assert.False(t, ok)
}

// TestClear verifies clear removes all entries.
func TestClear(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, string]()
	tree.Insert(rng(testLow10, testHigh20), "a")
	tree.Insert(rng(testLow30, testHigh40), "b")

	tree.Clear()
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.Search(rng(0, testCount100)))

	// Old entries must not stay reachable through the retained arena.
	for _, n := range tree.nodes[:cap(tree.nodes)] {
		assert.Empty(t, n.value)
		assert.Equal(t, Range[int]{}, n.key)
	}

	tree.Insert(rng(1, 2), "c")
	assert.Equal(t, []string{"c"}, tree.Search(rng(0, testCount100)))
	assertInvariants(t, tree)
}

// TestTraversal verifies ForEach, All and Keys yield ascending keys.
func TestTraversal(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, int]()
	r := rand.New(rand.NewPCG(testSeed, testSeed))

	for i := range testCount100 {
		low := r.IntN(testCount500)
		tree.Insert(rng(low, low+r.IntN(testLow10)), i)
	}

	keys := tree.Keys()
	require.Len(t, keys, testCount100)
	assert.True(t, slices.IsSortedFunc(keys, func(a, b Range[int]) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	}))

	var visited []Range[int]

	tree.ForEach(func(key Range[int], _ int) {
		visited = append(visited, key)
	})
	assert.Equal(t, keys, visited)

	var iterated []Range[int]

	for key := range tree.All() {
		iterated = append(iterated, key)
		if len(iterated) == testLow10 {
			break
		}
	}

	assert.Equal(t, keys[:testLow10], iterated)

	minEntry, ok := tree.Min()
	require.True(t, ok)
	assert.Equal(t, keys[0], minEntry.Key)

	maxEntry, ok := tree.Max()
	require.True(t, ok)
	assert.Equal(t, keys[len(keys)-1], maxEntry.Key)
}

// TestMinMax_Empty verifies Min/Max on an empty tree.
func TestMinMax_Empty(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, int]()

	_, ok := tree.Min()
	assert.False(t, ok)

	_, ok = tree.Max()
	assert.False(t, ok)
}

// TestSentinel_NeverWritten verifies slot 0 stays pristine.
func TestSentinel_NeverWritten(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, int]()
	r := rand.New(rand.NewPCG(testSeed, 1))

	for i := range testCount500 {
		low := r.IntN(testCount100)
		tree.Insert(rng(low, low+r.IntN(testLow10)), i)
	}

	for _, key := range tree.Keys() {
		for _, v := range tree.Search(key) {
			tree.Remove(key, v)
		}
	}

	assert.Equal(t, node[Range[int], int, int]{color: black}, tree.nodes[NilHandle])
	assert.True(t, tree.IsEmpty())
}

// TestLargeScale verifies correctness with many intervals against a brute-force scan.
func TestLargeScale(t *testing.T) {
	t.Parallel()

	tree := NewRangeTree[int, int]()
	r := rand.New(rand.NewPCG(testSeed, 2))

	var all []Entry[Range[int], int]

	for i := range testCount500 * 2 {
		low := r.IntN(testCount500 * testLow10)
		key := rng(low, low+r.IntN(testCount100))
		tree.Insert(key, i)
		all = append(all, Entry[Range[int], int]{Key: key, Value: i})
	}

	assertInvariants(t, tree)

	for range testCount100 {
		low := r.IntN(testCount500 * testLow10)
		query := rng(low, low+r.IntN(testCount100))

		assert.ElementsMatch(t, bruteForce(all, query), tree.SearchEntries(query))
	}

	// Remove half and re-check.
	r.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	for _, e := range all[:len(all)/2] {
		require.True(t, tree.Remove(e.Key, e.Value))
	}

	all = all[len(all)/2:]
	assert.Equal(t, len(all), tree.Len())
	assertInvariants(t, tree)

	for range testCount100 {
		low := r.IntN(testCount500 * testLow10)
		query := rng(low, low+r.IntN(testCount100))

		assert.ElementsMatch(t, bruteForce(all, query), tree.SearchEntries(query))
	}
}

func bruteForce[K interface{ Intersects(other K) bool }, V any](all []Entry[K, V], query K) []Entry[K, V] {
	var res []Entry[K, V]

	for _, e := range all {
		if e.Key.Intersects(query) {
			res = append(res, e)
		}
	}

	return res
}
