package history

import (
	"github.com/tuplespace/history.go/common"
	"golang.org/x/xerrors"
)

// ExportData is one slice of the resumable subtree traversal. The five
// vectors are parallel to the DFS-preorder of the subtree; only those
// enabled in ExportDataSettings are populated
type ExportData struct {
	NodePrefixes [][]byte
	NodeKeys     [][]byte
	NodeValues   [][]byte
	LeafPrefixes [][]byte
	LeafValues   [][]byte
}

// ExportDataSettings selects which vectors of ExportData are populated.
// When both leaf flags are disabled, leaves are not visited at all
type ExportDataSettings struct {
	FlagNodePrefixes bool
	FlagNodeKeys     bool
	FlagNodeValues   bool
	FlagLeafPrefixes bool
	FlagLeafValues   bool
}

// GetNodeFunc loads an encoded node record by digest; the bool reports
// presence
type GetNodeFunc func(hash common.Hash) ([]byte, bool, error)

// exportFrame is one element of the DFS path stack: the node, its
// accumulated key-path from the root, and the last visited branch index
type exportFrame struct {
	prefix  []byte
	node    Node
	lastIdx int
}

// findNextNonEmptyItem returns the first non-empty branch strictly after
// lastIdx, or -1 when the node is exhausted. Leaves do not qualify when both
// leaf flags are disabled
func findNextNonEmptyItem(node Node, lastIdx int, settings ExportDataSettings) (int, Item) {
	for idx := lastIdx + 1; idx < NumItems; idx++ {
		switch node[idx].(type) {
		case nil:
			continue
		case *Leaf:
			if settings.FlagLeafPrefixes || settings.FlagLeafValues {
				return idx, node[idx]
			}
		case *NodePtr:
			return idx, node[idx]
		}
	}
	return -1, nil
}

// SequentialExport streams a deterministic ordered slice of the subtree
// below rootHash.
//
// lastPrefix is the resumption cursor: nil starts from the root (the root
// node is the first emitted element), a non-nil prefix identifies the last
// node returned by the previous call (a non-nil empty prefix addresses the
// root). skipSize nodes are passed over, then takeSize nodes are emitted;
// leaves ride along with their containing node and do not consume the
// counters. Returns the collected data and the cursor for the next call;
// a nil cursor means the subtree is exhausted.
//
// The traversal reads nodes through getNodeFromStore only and never mutates
// anything. For a fixed (root, settings, skip, take) the output is
// bit-identical run to run, and concatenating successive calls with matched
// cursors reproduces the full DFS-preorder enumeration
func SequentialExport(
	rootHash common.Hash,
	lastPrefix []byte,
	skipSize, takeSize int,
	getNodeFromStore GetNodeFunc,
	settings ExportDataSettings,
) (*ExportData, []byte, error) {
	if takeSize <= 0 {
		return nil, nil, xerrors.New("sequential export: take size must be positive")
	}
	data := &ExportData{}
	skip, take := skipSize, takeSize

	loadNode := func(hash common.Hash) (Node, []byte, error) {
		bin, found, err := getNodeFromStore(hash)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return nil, nil, xerrors.Errorf("sequential export: %w: key=%s", ErrMissingNode, hash)
		}
		node, err := NodeFromBytes(bin)
		if err != nil {
			return nil, nil, xerrors.Errorf("sequential export: node %s: %w", hash, err)
		}
		return node, bin, nil
	}

	// emitNode accounts for one node arrival; reports whether take is exhausted
	emitNode := func(prefix []byte, hash common.Hash, bin []byte) bool {
		if skip > 0 {
			skip--
			return false
		}
		if settings.FlagNodePrefixes {
			data.NodePrefixes = append(data.NodePrefixes, prefix)
		}
		if settings.FlagNodeKeys {
			data.NodeKeys = append(data.NodeKeys, hash.Bytes())
		}
		if settings.FlagNodeValues {
			data.NodeValues = append(data.NodeValues, bin)
		}
		take--
		return take == 0
	}

	var stack []exportFrame
	if lastPrefix == nil {
		node, bin, err := loadNode(rootHash)
		if err != nil {
			return nil, nil, err
		}
		if emitNode([]byte{}, rootHash, bin) {
			return data, []byte{}, nil
		}
		stack = append(stack, exportFrame{prefix: []byte{}, node: node, lastIdx: -1})
	} else {
		// rebuild the DFS path from the root down to the cursor node
		hash := rootHash
		nodePrefix := []byte{}
		rest := lastPrefix
		for {
			node, _, err := loadNode(hash)
			if err != nil {
				return nil, nil, err
			}
			if len(rest) == 0 {
				stack = append(stack, exportFrame{prefix: nodePrefix, node: node, lastIdx: -1})
				break
			}
			ptr, ok := node[rest[0]].(*NodePtr)
			if !ok {
				return nil, nil, xerrors.Errorf("sequential export: node with prefix %x not found", common.Concat(nodePrefix, rest))
			}
			shared, restTail, ptrRest := commonPrefix(rest[1:], ptr.Prefix)
			if len(ptrRest) != 0 {
				return nil, nil, xerrors.Errorf("sequential export: node with prefix %x not found", common.Concat(nodePrefix, rest))
			}
			stack = append(stack, exportFrame{prefix: nodePrefix, node: node, lastIdx: int(rest[0])})
			nodePrefix = common.Concat(nodePrefix, rest[0], shared)
			rest = restTail
			hash = ptr.Ptr
		}
	}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		idx, item := findNextNonEmptyItem(top.node, top.lastIdx, settings)
		if idx < 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		top.lastIdx = idx
		switch it := item.(type) {
		case *Leaf:
			if skip == 0 {
				if settings.FlagLeafPrefixes {
					data.LeafPrefixes = append(data.LeafPrefixes, common.Concat(top.prefix, byte(idx), it.Prefix))
				}
				if settings.FlagLeafValues {
					data.LeafValues = append(data.LeafValues, it.Value)
				}
			}
		case *NodePtr:
			childPrefix := common.Concat(top.prefix, byte(idx), it.Prefix)
			node, bin, err := loadNode(it.Ptr)
			if err != nil {
				return nil, nil, err
			}
			if emitNode(childPrefix, it.Ptr, bin) {
				return data, childPrefix, nil
			}
			stack = append(stack, exportFrame{prefix: childPrefix, node: node, lastIdx: -1})
		}
	}
	return data, nil, nil
}
