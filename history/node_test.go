package history

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuplespace/history.go/common"
)

func randomNode(rnd *rand.Rand, numItems int) Node {
	node := EmptyNode()
	for i := 0; i < numItems; i++ {
		idx := byte(rnd.Intn(NumItems))
		prefix := make([]byte, rnd.Intn(10))
		rnd.Read(prefix)
		if rnd.Intn(2) == 0 {
			value := make([]byte, rnd.Intn(64))
			rnd.Read(value)
			node[idx] = &Leaf{Prefix: prefix, Value: value}
		} else {
			var ptr common.Hash
			rnd.Read(ptr[:])
			node[idx] = &NodePtr{Prefix: prefix, Ptr: ptr}
		}
	}
	return node
}

func TestNodeCodecEmpty(t *testing.T) {
	require.Len(t, EmptyNode().Bytes(), 0)
	node, err := NodeFromBytes(nil)
	require.NoError(t, err)
	require.True(t, node.Equal(EmptyNode()))
}

func TestNodeCodecRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		node := randomNode(rnd, 1+rnd.Intn(20))
		bin := node.Bytes()
		back, err := NodeFromBytes(bin)
		require.NoError(t, err)
		require.True(t, node.Equal(back))
		// the encoding is canonical: re-encoding yields identical bytes
		require.EqualValues(t, bin, back.Bytes())
		require.True(t, common.HashData(bin).Equal(common.HashData(back.Bytes())))
	}
}

func TestNodeCodecCorrupt(t *testing.T) {
	var ptr common.Hash
	node := EmptyNode()
	node[0x10] = &Leaf{Prefix: []byte{0x01}, Value: []byte{0x02}}
	node[0x20] = &NodePtr{Prefix: []byte{0x03}, Ptr: ptr}
	bin := node.Bytes()

	t.Run("truncated", func(t *testing.T) {
		for cut := 1; cut < len(bin); cut++ {
			if _, err := NodeFromBytes(bin[:cut]); err != nil {
				require.ErrorIs(t, err, ErrCorruptNode)
			}
		}
		_, err := NodeFromBytes(bin[:len(bin)-1])
		require.ErrorIs(t, err, ErrCorruptNode)
	})
	t.Run("unknown tag", func(t *testing.T) {
		mangled := common.Concat(bin)
		mangled[1] = 0x7F
		_, err := NodeFromBytes(mangled)
		require.ErrorIs(t, err, ErrCorruptNode)
	})
	t.Run("branch bytes not ascending", func(t *testing.T) {
		first := node.Clone()
		first[0x20] = nil
		second := node.Clone()
		second[0x10] = nil
		_, err := NodeFromBytes(common.Concat(second.Bytes(), first.Bytes()))
		require.ErrorIs(t, err, ErrCorruptNode)
		// duplicate branch byte
		_, err = NodeFromBytes(common.Concat(first.Bytes(), first.Bytes()))
		require.ErrorIs(t, err, ErrCorruptNode)
	})
	t.Run("wrong pointer size", func(t *testing.T) {
		var buf []byte
		buf = append(buf, 0x00, nodePtrTag)
		buf = append(buf, 0x00, 0x00) // empty prefix
		buf = append(buf, 31)         // pointer length != 32
		buf = append(buf, make([]byte, 31)...)
		_, err := NodeFromBytes(buf)
		require.ErrorIs(t, err, ErrCorruptNode)
	})
}

func TestEmptyRootHash(t *testing.T) {
	require.EqualValues(t, common.HashData(EmptyNode().Bytes()), EmptyRootHash())
	require.EqualValues(t, common.HashData(nil), EmptyRootHash())
}
