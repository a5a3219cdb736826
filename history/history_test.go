package history

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuplespace/history.go/common"
)

func newEmptyHistory(t *testing.T) (*RadixHistory, common.KeyValueTypedStore[[]byte, []byte]) {
	store := CreateStore(common.NewInMemoryKVStore())
	h, err := NewRadixHistory(EmptyRootHash(), store)
	require.NoError(t, err)
	return h, store
}

// randomKeys returns n distinct 32-byte keys derived from the seed
func randomKeys(seed, n int) [][]byte {
	ret := make([][]byte, n)
	for i := range ret {
		h := common.HashData([]byte(fmt.Sprintf("key-%d-%d", seed, i)))
		ret[i] = h.Bytes()
	}
	return ret
}

func TestEmptyRoot(t *testing.T) {
	// S1
	h, _ := newEmptyHistory(t)
	require.EqualValues(t, EmptyRootHash(), h.Root())

	v, err := h.Read([]byte{0x01})
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSingleInsert(t *testing.T) {
	// S2
	h0, _ := newEmptyHistory(t)
	h1, err := h0.Process([]Action{
		InsertAction{KeyPath: []byte{0xAA, 0xBB}, Value: []byte{0x10}},
	})
	require.NoError(t, err)

	v, err := h1.Read([]byte{0xAA, 0xBB})
	require.NoError(t, err)
	require.EqualValues(t, []byte{0x10}, v)

	v, err = h1.Read([]byte{0xAA, 0xBC})
	require.NoError(t, err)
	require.Nil(t, v)

	require.False(t, h1.Root().Equal(h0.Root()))
}

func TestOrderIndependence(t *testing.T) {
	// S3
	k1, v1 := []byte{0x00}, []byte{0x01}
	k2, v2 := []byte{0xFF}, []byte{0x02}

	ha, _ := newEmptyHistory(t)
	hb, _ := newEmptyHistory(t)

	ra, err := ha.Process([]Action{
		InsertAction{KeyPath: k1, Value: v1},
		InsertAction{KeyPath: k2, Value: v2},
	})
	require.NoError(t, err)
	rb, err := hb.Process([]Action{
		InsertAction{KeyPath: k2, Value: v2},
		InsertAction{KeyPath: k1, Value: v1},
	})
	require.NoError(t, err)
	require.EqualValues(t, ra.Root(), rb.Root())
}

func TestDeleteToEmpty(t *testing.T) {
	// S4
	h0, _ := newEmptyHistory(t)
	h1, err := h0.Process([]Action{
		InsertAction{KeyPath: []byte{0xAA, 0xBB}, Value: []byte{0x10}},
	})
	require.NoError(t, err)

	h2, err := h1.Process([]Action{
		DeleteAction{KeyPath: []byte{0xAA, 0xBB}},
	})
	require.NoError(t, err)
	require.EqualValues(t, h0.Root(), h2.Root())
}

func TestDuplicateActionRejected(t *testing.T) {
	// S5
	h0, _ := newEmptyHistory(t)
	_, err := h0.Process([]Action{
		InsertAction{KeyPath: []byte{0x01}, Value: []byte{0xAA}},
		DeleteAction{KeyPath: []byte{0x01}},
	})
	require.ErrorIs(t, err, ErrDuplicateAction)
	require.EqualValues(t, EmptyRootHash(), h0.Root())

	v, err := h0.Read([]byte{0x01})
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestReset(t *testing.T) {
	// S6
	h0, _ := newEmptyHistory(t)
	r0 := h0.Root()
	h1, err := h0.Process([]Action{
		InsertAction{KeyPath: []byte{0xAA, 0xBB}, Value: []byte{0x10}},
	})
	require.NoError(t, err)
	r1 := h1.Root()

	back0, err := h1.Reset(r0)
	require.NoError(t, err)
	v, err := back0.Read([]byte{0xAA, 0xBB})
	require.NoError(t, err)
	require.Nil(t, v)

	back1, err := back0.Reset(r1)
	require.NoError(t, err)
	v, err = back1.Read([]byte{0xAA, 0xBB})
	require.NoError(t, err)
	require.EqualValues(t, []byte{0x10}, v)
}

func TestResetUnknownRoot(t *testing.T) {
	h0, _ := newEmptyHistory(t)
	_, err := h0.Reset(common.HashData([]byte("no such root")))
	require.ErrorIs(t, err, ErrMissingNode)
}

func TestEmptyKeyRejected(t *testing.T) {
	h0, _ := newEmptyHistory(t)
	_, err := h0.Process([]Action{InsertAction{KeyPath: nil, Value: []byte{0x01}}})
	common.RequireErrorWith(t, err, "empty key")
}

func TestNoopBatchKeepsRoot(t *testing.T) {
	h0, _ := newEmptyHistory(t)
	h1, err := h0.Process([]Action{
		InsertAction{KeyPath: []byte{0xAA, 0xBB}, Value: []byte{0x10}},
	})
	require.NoError(t, err)

	t.Run("delete of absent key", func(t *testing.T) {
		h2, err := h1.Process([]Action{DeleteAction{KeyPath: []byte{0xAA, 0xCC}}})
		require.NoError(t, err)
		require.EqualValues(t, h1.Root(), h2.Root())
	})
	t.Run("insert of the same value", func(t *testing.T) {
		h2, err := h1.Process([]Action{
			InsertAction{KeyPath: []byte{0xAA, 0xBB}, Value: []byte{0x10}},
		})
		require.NoError(t, err)
		require.EqualValues(t, h1.Root(), h2.Root())
	})
	t.Run("empty batch", func(t *testing.T) {
		h2, err := h1.Process(nil)
		require.NoError(t, err)
		require.EqualValues(t, h1.Root(), h2.Root())
	})
}

func TestDeterminism(t *testing.T) {
	// the root depends only on the set of final mappings, not on the
	// insertion order or the batching
	const n = 300
	keys := randomKeys(1, n)
	values := randomKeys(2, n)

	build := func(order []int, batch int) common.Hash {
		h, _ := newEmptyHistory(t)
		var cur History = h
		actions := make([]Action, 0, batch)
		flush := func() {
			if len(actions) == 0 {
				return
			}
			next, err := cur.Process(actions)
			require.NoError(t, err)
			cur = next
			actions = actions[:0]
		}
		for _, i := range order {
			actions = append(actions, InsertAction{KeyPath: keys[i], Value: values[i]})
			if len(actions) == batch {
				flush()
			}
		}
		flush()
		return cur.Root()
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	root1 := build(order, n)

	rnd := rand.New(rand.NewSource(3))
	rnd.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	root2 := build(order, 7)
	require.EqualValues(t, root1, root2)

	rnd.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	root3 := build(order, 1)
	require.EqualValues(t, root1, root3)
}

func TestRoundTripRandom(t *testing.T) {
	// every written value is readable, every deleted or unwritten key is nil
	const n = 500
	keys := randomKeys(10, n)
	values := randomKeys(11, n)

	h0, _ := newEmptyHistory(t)
	actions := make([]Action, n)
	for i := range actions {
		actions[i] = InsertAction{KeyPath: keys[i], Value: values[i]}
	}
	h1, err := h0.Process(actions)
	require.NoError(t, err)

	for i := range keys {
		v, err := h1.Read(keys[i])
		require.NoError(t, err)
		require.EqualValues(t, values[i], v)
	}
	for _, k := range randomKeys(12, 50) {
		v, err := h1.Read(k)
		require.NoError(t, err)
		require.Nil(t, v)
	}

	// delete a half, overwrite a quarter
	mutations := make([]Action, 0, n)
	for i := 0; i < n/2; i++ {
		mutations = append(mutations, DeleteAction{KeyPath: keys[i]})
	}
	for i := n / 2; i < n/2+n/4; i++ {
		mutations = append(mutations, InsertAction{KeyPath: keys[i], Value: keys[i]})
	}
	h2, err := h1.Process(mutations)
	require.NoError(t, err)

	for i, k := range keys {
		v, err := h2.Read(k)
		require.NoError(t, err)
		switch {
		case i < n/2:
			require.Nil(t, v)
		case i < n/2+n/4:
			require.EqualValues(t, keys[i], v)
		default:
			require.EqualValues(t, values[i], v)
		}
	}

	// the old root is untouched
	v, err := h1.Read(keys[0])
	require.NoError(t, err)
	require.EqualValues(t, values[0], v)
}

func TestDeleteAllRestoresEmptyRoot(t *testing.T) {
	const n = 100
	keys := randomKeys(20, n)

	h0, _ := newEmptyHistory(t)
	inserts := make([]Action, n)
	deletes := make([]Action, n)
	for i := range keys {
		inserts[i] = InsertAction{KeyPath: keys[i], Value: []byte{0x01}}
		deletes[i] = DeleteAction{KeyPath: keys[i]}
	}
	h1, err := h0.Process(inserts)
	require.NoError(t, err)
	require.False(t, h1.Root().Equal(EmptyRootHash()))

	h2, err := h1.Process(deletes)
	require.NoError(t, err)
	require.EqualValues(t, EmptyRootHash(), h2.Root())
}

func TestPersistence(t *testing.T) {
	// a reset history is behaviorally indistinguishable from the one which
	// produced the root
	const n = 200
	keys := randomKeys(30, n)

	h0, _ := newEmptyHistory(t)
	var roots []common.Hash
	var cur History = h0
	for i := 0; i < n; i += 20 {
		actions := make([]Action, 0, 20)
		for j := i; j < i+20; j++ {
			actions = append(actions, InsertAction{KeyPath: keys[j], Value: keys[j]})
		}
		next, err := cur.Process(actions)
		require.NoError(t, err)
		cur = next
		roots = append(roots, cur.Root())
	}

	for ri, root := range roots {
		snapshot, err := cur.Reset(root)
		require.NoError(t, err)
		written := (ri + 1) * 20
		for i, k := range keys {
			v, err := snapshot.Read(k)
			require.NoError(t, err)
			if i < written {
				require.EqualValues(t, keys[i], v)
			} else {
				require.Nil(t, v)
			}
		}
	}
}

// walkTrie loads every node reachable from the root and calls fn with a flag
// telling whether the node is the root
func walkTrie(t *testing.T, store common.KeyValueTypedStore[[]byte, []byte], root common.Hash, fn func(node Node, isRoot bool)) {
	tree := NewTree(store)
	var walk func(hash common.Hash, isRoot bool)
	walk = func(hash common.Hash, isRoot bool) {
		node, err := tree.LoadNode(hash, false)
		require.NoError(t, err)
		fn(node, isRoot)
		for _, item := range node {
			if ptr, ok := item.(*NodePtr); ok {
				walk(ptr.Ptr, false)
			}
		}
	}
	walk(root, true)
}

func TestStructuralMinimality(t *testing.T) {
	// every inner node below the root has at least two non-empty branches
	const n = 300
	keys := randomKeys(40, n)

	h0, store := newEmptyHistory(t)
	inserts := make([]Action, n)
	for i := range keys {
		inserts[i] = InsertAction{KeyPath: keys[i], Value: []byte{0x01}}
	}
	h1, err := h0.Process(inserts)
	require.NoError(t, err)

	deletes := make([]Action, 0, n/3)
	for i := 0; i < n; i += 3 {
		deletes = append(deletes, DeleteAction{KeyPath: keys[i]})
	}
	h2, err := h1.Process(deletes)
	require.NoError(t, err)

	for _, root := range []common.Hash{h1.Root(), h2.Root()} {
		walkTrie(t, store, root, func(node Node, isRoot bool) {
			count, _ := node.CountNonEmpty()
			if !isRoot {
				require.GreaterOrEqual(t, count, 2)
			}
		})
	}
}

func TestDeterminismAfterDeletes(t *testing.T) {
	// delete-then-compare equals never-inserted
	keysA := randomKeys(50, 100)
	keysB := randomKeys(51, 100)

	buildBoth := func() common.Hash {
		h, _ := newEmptyHistory(t)
		actions := make([]Action, 0, 200)
		for _, k := range append(append([][]byte{}, keysA...), keysB...) {
			actions = append(actions, InsertAction{KeyPath: k, Value: k})
		}
		h1, err := h.Process(actions)
		require.NoError(t, err)
		deletes := make([]Action, len(keysB))
		for i, k := range keysB {
			deletes[i] = DeleteAction{KeyPath: k}
		}
		h2, err := h1.Process(deletes)
		require.NoError(t, err)
		return h2.Root()
	}
	buildOnlyA := func() common.Hash {
		h, _ := newEmptyHistory(t)
		actions := make([]Action, len(keysA))
		for i, k := range keysA {
			actions[i] = InsertAction{KeyPath: k, Value: k}
		}
		h1, err := h.Process(actions)
		require.NoError(t, err)
		return h1.Root()
	}
	require.EqualValues(t, buildOnlyA(), buildBoth())
}

func TestMixedLengthKeysPanic(t *testing.T) {
	h0, _ := newEmptyHistory(t)
	common.RequirePanicWith(t, func() {
		_, _ = h0.Process([]Action{
			InsertAction{KeyPath: []byte{0xAA}, Value: []byte{0x01}},
			InsertAction{KeyPath: []byte{0xAA, 0xBB}, Value: []byte{0x02}},
		})
	}, "same length")
}

func TestReadAfterReopen(t *testing.T) {
	// a fresh history over the same raw store sees only committed state
	raw := common.NewInMemoryKVStore()
	store := CreateStore(raw)
	h0, err := NewRadixHistory(EmptyRootHash(), store)
	require.NoError(t, err)

	keys := randomKeys(60, 50)
	actions := make([]Action, len(keys))
	for i, k := range keys {
		actions[i] = InsertAction{KeyPath: k, Value: k}
	}
	h1, err := h0.Process(actions)
	require.NoError(t, err)

	reopened, err := NewRadixHistory(h1.Root(), CreateStore(raw))
	require.NoError(t, err)
	for _, k := range keys {
		v, err := reopened.Read(k)
		require.NoError(t, err)
		require.EqualValues(t, k, v)
	}
}

func TestRootHashMatchesSortedSet(t *testing.T) {
	// cross-check: inserting the same set in one batch, in sorted and in
	// unsorted order, yields the same root
	keys := randomKeys(70, 64)
	sorted := make([][]byte, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	build := func(kk [][]byte) common.Hash {
		h, _ := newEmptyHistory(t)
		actions := make([]Action, len(kk))
		for i, k := range kk {
			actions[i] = InsertAction{KeyPath: k, Value: common.HashData(k).Bytes()}
		}
		h1, err := h.Process(actions)
		require.NoError(t, err)
		return h1.Root()
	}
	require.EqualValues(t, build(keys), build(sorted))
}
