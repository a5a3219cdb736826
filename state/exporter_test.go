package state

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuplespace/history.go/common"
	"github.com/tuplespace/history.go/history"
)

func buildStores(t *testing.T, numLeaves int) (*ExporterStore, common.Hash, [][]byte) {
	historyStore := common.NewInMemoryKVStore()
	coldStore := common.NewInMemoryKVStore()
	rootsStore := common.NewInMemoryKVStore()

	h, err := history.NewRadixHistory(history.EmptyRootHash(), history.CreateStore(historyStore))
	require.NoError(t, err)

	keys := make([][]byte, numLeaves)
	actions := make([]history.Action, numLeaves)
	typedCold := history.NewColdStore(coldStore)
	for i := range keys {
		keys[i] = common.HashData([]byte(fmt.Sprintf("channel-%d", i))).Bytes()
		record := history.PersistedData(&history.DataLeaf{Payload: keys[i]})
		require.NoError(t, typedCold.PutIfAbsent([]common.TypedKVPair[common.Hash, history.PersistedData]{
			{Key: history.ColdKey(record), Value: record},
		}))
		actions[i] = history.InsertAction{KeyPath: keys[i], Value: history.ColdKey(record).Bytes()}
	}
	next, err := h.Process(actions)
	require.NoError(t, err)

	roots := history.NewRootsStore(rootsStore)
	require.NoError(t, roots.RecordRoot(next.Root()))

	return NewExporterStore(historyStore, coldStore, rootsStore), next.Root(), keys
}

func TestExporterGetRoot(t *testing.T) {
	exporter, root, _ := buildStores(t, 10)
	got, err := exporter.GetRoot()
	require.NoError(t, err)
	require.EqualValues(t, root, got)
}

func TestExporterGetRootEmpty(t *testing.T) {
	exporter := NewExporterStore(common.NewInMemoryKVStore(), common.NewInMemoryKVStore(), common.NewInMemoryKVStore())
	_, err := exporter.GetRoot()
	require.ErrorIs(t, err, common.ErrKeyNotFound)
}

func TestExporterItems(t *testing.T) {
	exporter, root, _ := buildStores(t, 10)

	absent := common.HashData([]byte("absent"))
	items, err := exporter.GetHistoryItems([]common.Hash{root, absent})
	require.NoError(t, err)
	require.Len(t, items, 1) // absent keys are dropped
	require.EqualValues(t, root, items[0].Key)
	require.NotEmpty(t, items[0].Value)

	dataItems, err := exporter.GetDataItems([]common.Hash{absent})
	require.NoError(t, err)
	require.Empty(t, dataItems)
}

func TestExporterExport(t *testing.T) {
	exporter, root, keys := buildStores(t, 200)

	settings := history.ExportDataSettings{
		FlagNodeKeys:     true,
		FlagLeafPrefixes: true,
		FlagLeafValues:   true,
	}
	leaves := 0
	var lastPrefix []byte
	for {
		data, next, err := exporter.Export(root, lastPrefix, 0, 16, settings)
		require.NoError(t, err)
		leaves += len(data.LeafPrefixes)
		if next == nil {
			break
		}
		lastPrefix = next
	}
	require.EqualValues(t, len(keys), leaves)

	// the exported leaf values resolve in the cold namespace
	data, _, err := exporter.Export(root, nil, 0, 50, settings)
	require.NoError(t, err)
	require.NotEmpty(t, data.LeafValues)
	for _, lv := range data.LeafValues {
		coldKey, err := common.HashFromBytes(lv)
		require.NoError(t, err)
		items, err := exporter.GetDataItems([]common.Hash{coldKey})
		require.NoError(t, err)
		require.Len(t, items, 1)
	}
}
