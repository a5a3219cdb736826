// Package hiveadaptor binds the key/value stores of the `hive.go` repository
// to the store contracts the history core consumes
package hiveadaptor

import (
	"errors"

	"github.com/iotaledger/hive.go/core/kvstore"
	"github.com/tuplespace/history.go/common"
	"golang.org/x/xerrors"
)

// KVStore maps a prefixed partition of a hive.go KVStore to
// common.KeyValueStore. Writes are applied through a hive batch so that one
// Put is atomic at the store's native level
type KVStore struct {
	kvs    kvstore.KVStore
	prefix []byte
}

// New creates a store over the whole hive.go KVStore
func New(kvs kvstore.KVStore) *KVStore {
	return &KVStore{kvs: kvs}
}

// NewPartition creates a store over a prefixed partition of the hive.go
// KVStore
func NewPartition(kvs kvstore.KVStore, prefix []byte) *KVStore {
	return &KVStore{kvs: kvs, prefix: prefix}
}

func (s *KVStore) makeKey(k []byte) []byte {
	if len(s.prefix) == 0 {
		return k
	}
	return common.Concat(s.prefix, k)
}

func (s *KVStore) Get(keys [][]byte) ([][]byte, error) {
	ret := make([][]byte, len(keys))
	for i, k := range keys {
		v, err := s.kvs.Get(s.makeKey(k))
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, xerrors.Errorf("%w: %v", common.ErrStore, err)
		}
		if v == nil {
			v = []byte{}
		}
		ret[i] = v
	}
	return ret, nil
}

func (s *KVStore) Put(pairs []common.KVPair) error {
	batch, err := s.kvs.Batched()
	if err != nil {
		return xerrors.Errorf("%w: %v", common.ErrStore, err)
	}
	for _, kv := range pairs {
		if err = batch.Set(s.makeKey(kv.Key), kv.Value); err != nil {
			batch.Cancel()
			return xerrors.Errorf("%w: %v", common.ErrStore, err)
		}
	}
	if err = batch.Commit(); err != nil {
		return xerrors.Errorf("%w: %v", common.ErrStore, err)
	}
	if err = s.kvs.Flush(); err != nil {
		return xerrors.Errorf("%w: %v", common.ErrStore, err)
	}
	return nil
}

func (s *KVStore) Delete(keys [][]byte) (int, error) {
	deleted := 0
	for _, k := range keys {
		has, err := s.kvs.Has(s.makeKey(k))
		if err != nil {
			return deleted, xerrors.Errorf("%w: %v", common.ErrStore, err)
		}
		if !has {
			continue
		}
		if err = s.kvs.Delete(s.makeKey(k)); err != nil {
			return deleted, xerrors.Errorf("%w: %v", common.ErrStore, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *KVStore) Contains(keys [][]byte) ([]bool, error) {
	ret := make([]bool, len(keys))
	for i, k := range keys {
		has, err := s.kvs.Has(s.makeKey(k))
		if err != nil {
			return nil, xerrors.Errorf("%w: %v", common.ErrStore, err)
		}
		ret[i] = has
	}
	return ret, nil
}
