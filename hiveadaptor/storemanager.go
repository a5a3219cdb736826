package hiveadaptor

import (
	"path/filepath"

	"github.com/iotaledger/hive.go/core/kvstore"
	"github.com/iotaledger/hive.go/core/kvstore/badger"
	"github.com/iotaledger/hive.go/core/kvstore/mapdb"
	"github.com/tuplespace/history.go/common"
)

// environment names: each is one hive.go database (a directory for badger)
const (
	historyEnvName  = "history"
	coldEnvName     = "cold"
	channelsEnvName = "channels"
)

// partition prefixes inside the environments
var (
	historyPrefix  = []byte{0x00} // trie nodes, in the history environment
	rootsPrefix    = []byte{0x01} // root pointers, shares the history environment
	coldPrefix     = []byte{0x00} // leaf payloads, in the cold environment
	channelsPrefix = []byte{0x00} // channel index, in the channels environment
)

// StoreManager owns the environments of the persisted layout and hands out
// the namespace stores: trie nodes and root pointers share the history
// environment, leaf payloads live in the cold environment and the channel
// index in the channels environment
type StoreManager struct {
	envs map[string]kvstore.KVStore
}

// NewBadgerStoreManager opens (or creates) the directory-based environments
// under dir
func NewBadgerStoreManager(dir string) (*StoreManager, error) {
	envs := make(map[string]kvstore.KVStore)
	for _, name := range []string{historyEnvName, coldEnvName, channelsEnvName} {
		db, err := badger.CreateDB(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		envs[name] = badger.New(db)
	}
	return &StoreManager{envs: envs}, nil
}

// NewInMemoryStoreManager creates map-backed environments for tests and
// ephemeral use
func NewInMemoryStoreManager() *StoreManager {
	return &StoreManager{
		envs: map[string]kvstore.KVStore{
			historyEnvName:  mapdb.NewMapDB(),
			coldEnvName:     mapdb.NewMapDB(),
			channelsEnvName: mapdb.NewMapDB(),
		},
	}
}

// HistoryStore returns the trie node namespace (`rspace-history`)
func (m *StoreManager) HistoryStore() common.KeyValueStore {
	return NewPartition(m.envs[historyEnvName], historyPrefix)
}

// RootsStore returns the root pointer namespace (`rspace-roots`)
func (m *StoreManager) RootsStore() common.KeyValueStore {
	return NewPartition(m.envs[historyEnvName], rootsPrefix)
}

// ColdStore returns the leaf payload namespace (`rspace-cold`)
func (m *StoreManager) ColdStore() common.KeyValueStore {
	return NewPartition(m.envs[coldEnvName], coldPrefix)
}

// ChannelsStore returns the channel index namespace (`rspace-channels`);
// the namespace is owned by the tuple-space layer, the manager only maps it
func (m *StoreManager) ChannelsStore() common.KeyValueStore {
	return NewPartition(m.envs[channelsEnvName], channelsPrefix)
}

// Close flushes and closes all environments
func (m *StoreManager) Close() error {
	var firstErr error
	for _, env := range m.envs {
		if err := env.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := env.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
