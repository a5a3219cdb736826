package history

import (
	"github.com/tuplespace/history.go/common"
)

// RootsStore is the persisted set of roots produced by committed mutation
// batches, with a pointer to the most recent one. It lives in its own
// namespace of the backing database
type RootsStore interface {
	// CurrentRoot returns the most recently recorded root; the bool reports
	// whether any root was recorded yet
	CurrentRoot() (common.Hash, bool, error)
	// Validate checks the root was recorded before
	Validate(root common.Hash) (bool, error)
	// RecordRoot marks the root as known and makes it current
	RecordRoot(root common.Hash) error
}

var currentRootKey = []byte("current-root")

type rootsStore struct {
	store common.KeyValueStore
}

// NewRootsStore creates a RootsStore over the untyped namespace store
func NewRootsStore(store common.KeyValueStore) RootsStore {
	return &rootsStore{store: store}
}

func (rs *rootsStore) CurrentRoot() (common.Hash, bool, error) {
	bin, found, err := common.GetOne(rs.store, currentRootKey)
	if err != nil || !found {
		return common.Hash{}, false, err
	}
	root, err := common.HashFromBytes(bin)
	if err != nil {
		return common.Hash{}, false, err
	}
	return root, true, nil
}

func (rs *rootsStore) Validate(root common.Hash) (bool, error) {
	present, err := rs.store.Contains([][]byte{root.Bytes()})
	if err != nil {
		return false, err
	}
	return present[0], nil
}

func (rs *rootsStore) RecordRoot(root common.Hash) error {
	return rs.store.Put([]common.KVPair{
		{Key: root.Bytes(), Value: []byte{}},
		{Key: currentRootKey, Value: root.Bytes()},
	})
}
