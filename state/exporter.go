// Package state exposes the export surface of the history store: resumable
// Merkle-subtree slices for state synchronization between peers
package state

import (
	"github.com/tuplespace/history.go/common"
	"github.com/tuplespace/history.go/history"
	"golang.org/x/xerrors"
)

// StoreItem is one (digest, record) pair fetched from a persisted namespace
type StoreItem struct {
	Key   common.Hash
	Value []byte
}

// ExporterStore reads the persisted layout directly (no engine, no caches,
// no mutation): trie nodes from the history namespace, leaf payloads from
// the cold namespace and root pointers from the roots namespace
type ExporterStore struct {
	historyStore common.KeyValueStore
	valueStore   common.KeyValueStore
	roots        history.RootsStore
}

// NewExporterStore creates the exporter over the three namespace stores
func NewExporterStore(historyStore, valueStore, rootsStore common.KeyValueStore) *ExporterStore {
	return &ExporterStore{
		historyStore: historyStore,
		valueStore:   valueStore,
		roots:        history.NewRootsStore(rootsStore),
	}
}

// GetRoot returns the current root recorded in the roots namespace
func (e *ExporterStore) GetRoot() (common.Hash, error) {
	root, found, err := e.roots.CurrentRoot()
	if err != nil {
		return common.Hash{}, err
	}
	if !found {
		return common.Hash{}, xerrors.Errorf("%w: no root recorded", common.ErrKeyNotFound)
	}
	return root, nil
}

func (e *ExporterStore) getItems(store common.KeyValueStore, keys []common.Hash) ([]StoreItem, error) {
	keysBin := make([][]byte, len(keys))
	for i, k := range keys {
		keysBin[i] = k.Bytes()
	}
	values, err := store.Get(keysBin)
	if err != nil {
		return nil, err
	}
	ret := make([]StoreItem, 0, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		ret = append(ret, StoreItem{Key: keys[i], Value: v})
	}
	return ret, nil
}

// GetHistoryItems fetches encoded trie nodes by digest; absent keys are
// dropped from the result
func (e *ExporterStore) GetHistoryItems(keys []common.Hash) ([]StoreItem, error) {
	return e.getItems(e.historyStore, keys)
}

// GetDataItems fetches cold leaf payloads by digest; absent keys are
// dropped from the result
func (e *ExporterStore) GetDataItems(keys []common.Hash) ([]StoreItem, error) {
	return e.getItems(e.valueStore, keys)
}

// Export streams the next slice of the subtree below root. See
// history.SequentialExport for cursor and counter semantics
func (e *ExporterStore) Export(
	root common.Hash,
	lastPrefix []byte,
	skipSize, takeSize int,
	settings history.ExportDataSettings,
) (*history.ExportData, []byte, error) {
	getNode := func(hash common.Hash) ([]byte, bool, error) {
		return common.GetOne(e.historyStore, hash.Bytes())
	}
	return history.SequentialExport(root, lastPrefix, skipSize, takeSize, getNode, settings)
}
