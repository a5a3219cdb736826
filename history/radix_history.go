package history

import (
	"github.com/tuplespace/history.go/common"
	"golang.org/x/xerrors"
)

// RadixHistory is the History implementation over the radix trie engine.
// The engine caches are private to one RadixHistory value; every Process
// and Reset hands out a fresh engine bound to the shared store
type RadixHistory struct {
	rootHash common.Hash
	rootNode Node
	tree     *Tree
	store    common.KeyValueTypedStore[[]byte, []byte]
}

// CreateStore wraps the untyped backing store into the typed node store the
// engine consumes
func CreateStore(store common.KeyValueStore) common.KeyValueTypedStore[[]byte, []byte] {
	return common.NewTypedStore[[]byte, []byte](store, common.BytesCodec(), common.BytesCodec())
}

// NewRadixHistory creates a History bound to the root. The canonical empty
// root is recognized without a store read; any other root must exist in the
// store or the call fails with ErrMissingNode
func NewRadixHistory(root common.Hash, store common.KeyValueTypedStore[[]byte, []byte]) (*RadixHistory, error) {
	tree := NewTree(store)
	var node Node
	if root == EmptyRootHash() {
		node = EmptyNode()
	} else {
		var err error
		node, err = tree.LoadNode(root, false)
		if err != nil {
			return nil, err
		}
	}
	return &RadixHistory{
		rootHash: root,
		rootNode: node,
		tree:     tree,
		store:    store,
	}, nil
}

func (h *RadixHistory) Root() common.Hash {
	return h.rootHash
}

func (h *RadixHistory) Read(key KeyPath) ([]byte, error) {
	return h.tree.Read(h.rootNode, key)
}

// Process validates the batch, rebuilds the nodes along modified paths,
// commits them to the store in one batch and returns the History bound to
// the new root. A batch with no structural effect commits nothing and the
// returned History keeps the current root
func (h *RadixHistory) Process(actions []Action) (History, error) {
	for _, action := range actions {
		if len(action.Key()) == 0 {
			return nil, xerrors.New("history: empty key in the action batch")
		}
	}
	newRoot, changed, err := h.tree.MakeActions(h.rootNode, actions)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &RadixHistory{
			rootHash: h.rootHash,
			rootNode: h.rootNode,
			tree:     NewTree(h.store),
			store:    h.store,
		}, nil
	}
	newRootHash := h.tree.SaveNode(newRoot)
	if err = h.tree.Commit(); err != nil {
		return nil, err
	}
	return &RadixHistory{
		rootHash: newRootHash,
		rootNode: newRoot,
		tree:     NewTree(h.store),
		store:    h.store,
	}, nil
}

// Reset loads the node at root strictly and returns a fresh History
func (h *RadixHistory) Reset(root common.Hash) (History, error) {
	return NewRadixHistory(root, h.store)
}
