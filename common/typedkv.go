package common

import (
	"golang.org/x/xerrors"
)

// Codec is a bidirectional binary serialization of a caller-chosen type.
// Encode must be deterministic: equal values yield equal bytes
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// TypedKVPair is one key/value pair of a typed batched write
type TypedKVPair[K, V any] struct {
	Key   K
	Value V
}

// KeyValueTypedStore layers binary serialization over the untyped store.
// The parallel bool slices of Get report presence; serialization failures
// surface wrapped into ErrStore
type KeyValueTypedStore[K, V any] interface {
	Get(keys []K) ([]V, []bool, error)
	Put(pairs []TypedKVPair[K, V]) error
	Delete(keys []K) (int, error)
	Contains(keys []K) ([]bool, error)

	// GetOne retrieves a single value; the bool reports presence
	GetOne(key K) (V, bool, error)
	// PutIfAbsent writes only those pairs whose keys are not yet present
	PutIfAbsent(pairs []TypedKVPair[K, V]) error
}

type typedStore[K, V any] struct {
	store      KeyValueStore
	keyCodec   Codec[K]
	valueCodec Codec[V]
}

// NewTypedStore creates a KeyValueTypedStore over the untyped store with the
// given key and value codecs
func NewTypedStore[K, V any](store KeyValueStore, keyCodec Codec[K], valueCodec Codec[V]) KeyValueTypedStore[K, V] {
	return &typedStore[K, V]{
		store:      store,
		keyCodec:   keyCodec,
		valueCodec: valueCodec,
	}
}

func (s *typedStore[K, V]) encodeKeys(keys []K) ([][]byte, error) {
	ret := make([][]byte, len(keys))
	for i, k := range keys {
		kBin, err := s.keyCodec.Encode(k)
		if err != nil {
			return nil, xerrors.Errorf("%w: encoding key: %v", ErrStore, err)
		}
		ret[i] = kBin
	}
	return ret, nil
}

func (s *typedStore[K, V]) Get(keys []K) ([]V, []bool, error) {
	keysBin, err := s.encodeKeys(keys)
	if err != nil {
		return nil, nil, err
	}
	valuesBin, err := s.store.Get(keysBin)
	if err != nil {
		return nil, nil, err
	}
	values := make([]V, len(keys))
	found := make([]bool, len(keys))
	for i, vBin := range valuesBin {
		if vBin == nil {
			continue
		}
		v, err := s.valueCodec.Decode(vBin)
		if err != nil {
			return nil, nil, xerrors.Errorf("%w: decoding value: %v", ErrStore, err)
		}
		values[i] = v
		found[i] = true
	}
	return values, found, nil
}

func (s *typedStore[K, V]) Put(pairs []TypedKVPair[K, V]) error {
	pairsBin := make([]KVPair, len(pairs))
	for i, kv := range pairs {
		kBin, err := s.keyCodec.Encode(kv.Key)
		if err != nil {
			return xerrors.Errorf("%w: encoding key: %v", ErrStore, err)
		}
		vBin, err := s.valueCodec.Encode(kv.Value)
		if err != nil {
			return xerrors.Errorf("%w: encoding value: %v", ErrStore, err)
		}
		pairsBin[i] = KVPair{Key: kBin, Value: vBin}
	}
	return s.store.Put(pairsBin)
}

func (s *typedStore[K, V]) Delete(keys []K) (int, error) {
	keysBin, err := s.encodeKeys(keys)
	if err != nil {
		return 0, err
	}
	return s.store.Delete(keysBin)
}

func (s *typedStore[K, V]) Contains(keys []K) ([]bool, error) {
	keysBin, err := s.encodeKeys(keys)
	if err != nil {
		return nil, err
	}
	return s.store.Contains(keysBin)
}

func (s *typedStore[K, V]) GetOne(key K) (V, bool, error) {
	values, found, err := s.Get([]K{key})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return values[0], found[0], nil
}

func (s *typedStore[K, V]) PutIfAbsent(pairs []TypedKVPair[K, V]) error {
	keys := make([]K, len(pairs))
	for i, kv := range pairs {
		keys[i] = kv.Key
	}
	present, err := s.Contains(keys)
	if err != nil {
		return err
	}
	absent := make([]TypedKVPair[K, V], 0, len(pairs))
	for i, kv := range pairs {
		if !present[i] {
			absent = append(absent, kv)
		}
	}
	if len(absent) == 0 {
		return nil
	}
	return s.Put(absent)
}

//----------------------------------------------------------------------------
// common codecs

type bytesCodec struct{}

func (bytesCodec) Encode(data []byte) ([]byte, error) { return data, nil }
func (bytesCodec) Decode(data []byte) ([]byte, error) { return data, nil }

// BytesCodec is the identity codec for raw byte strings
func BytesCodec() Codec[[]byte] {
	return bytesCodec{}
}

type hashCodec struct{}

func (hashCodec) Encode(h Hash) ([]byte, error) { return h.Bytes(), nil }
func (hashCodec) Decode(data []byte) (Hash, error) {
	return HashFromBytes(data)
}

// HashCodec serializes digests as their 32 raw bytes
func HashCodec() Codec[Hash] {
	return hashCodec{}
}
