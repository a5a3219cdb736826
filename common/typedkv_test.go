package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryKVStore(t *testing.T) {
	store := NewInMemoryKVStore()

	values, err := store.Get([][]byte{[]byte("a")})
	require.NoError(t, err)
	require.Nil(t, values[0])

	require.NoError(t, store.Put([]KVPair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte{}},
	}))
	values, err = store.Get([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.NoError(t, err)
	require.EqualValues(t, []byte("1"), values[0])
	require.NotNil(t, values[1]) // empty value is still present
	require.Nil(t, values[2])

	present, err := store.Contains([][]byte{[]byte("a"), []byte("c")})
	require.NoError(t, err)
	require.EqualValues(t, []bool{true, false}, present)

	deleted, err := store.Delete([][]byte{[]byte("a"), []byte("c")})
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
	require.EqualValues(t, 1, store.NumEntries())
}

func TestTypedStore(t *testing.T) {
	store := NewTypedStore[Hash, []byte](NewInMemoryKVStore(), HashCodec(), BytesCodec())

	k1 := HashData([]byte("k1"))
	k2 := HashData([]byte("k2"))

	v, found, err := store.GetOne(k1)
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, v)

	require.NoError(t, store.Put([]TypedKVPair[Hash, []byte]{
		{Key: k1, Value: []byte("v1")},
	}))
	v, found, err = store.GetOne(k1)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, []byte("v1"), v)

	t.Run("get many", func(t *testing.T) {
		values, found, err := store.Get([]Hash{k1, k2})
		require.NoError(t, err)
		require.EqualValues(t, []bool{true, false}, found)
		require.EqualValues(t, []byte("v1"), values[0])
	})
	t.Run("put if absent", func(t *testing.T) {
		require.NoError(t, store.PutIfAbsent([]TypedKVPair[Hash, []byte]{
			{Key: k1, Value: []byte("other")},
			{Key: k2, Value: []byte("v2")},
		}))
		v, _, err := store.GetOne(k1)
		require.NoError(t, err)
		require.EqualValues(t, []byte("v1"), v) // not overwritten
		v, _, err = store.GetOne(k2)
		require.NoError(t, err)
		require.EqualValues(t, []byte("v2"), v)
	})
	t.Run("contains and delete", func(t *testing.T) {
		present, err := store.Contains([]Hash{k1, k2})
		require.NoError(t, err)
		require.EqualValues(t, []bool{true, true}, present)

		deleted, err := store.Delete([]Hash{k1})
		require.NoError(t, err)
		require.EqualValues(t, 1, deleted)
		_, found, err := store.GetOne(k1)
		require.NoError(t, err)
		require.False(t, found)
	})
	t.Run("corrupt value surfaces as store error", func(t *testing.T) {
		raw := NewInMemoryKVStore()
		require.NoError(t, raw.Put([]KVPair{{Key: []byte("short"), Value: []byte("v")}}))
		// a Hash-valued view over the same partition cannot decode stored values
		typed := NewTypedStore[[]byte, Hash](raw, BytesCodec(), HashCodec())
		_, _, err := typed.GetOne([]byte("short"))
		RequireErrorWith(t, err, "store error")
	})
}
