package history

import (
	"bytes"
	"sync"

	"github.com/tuplespace/history.go/common"
	"golang.org/x/xerrors"
)

// Tree is the radix trie engine: node I/O, caching, point reads, batched
// mutations and the commit discipline.
//
// Two caches are kept, both keyed by digest. The read cache holds decoded
// nodes and is populated on every store hit and on every saved node. The
// write cache holds canonical encodings of nodes which must be flushed to
// the store on Commit. Both caches are unbounded within one transaction and
// are cleared after a successful Commit.
//
// The caches tolerate parallel read-through, but MakeActions/SaveNode/Commit
// form a logical critical section: callers must not overlap two mutations on
// the same engine
type Tree struct {
	store common.KeyValueTypedStore[[]byte, []byte]

	mu     sync.RWMutex
	cacheR map[common.Hash]Node
	cacheW map[common.Hash][]byte
}

// NewTree creates an engine bound to the typed node store
func NewTree(store common.KeyValueTypedStore[[]byte, []byte]) *Tree {
	return &Tree{
		store:  store,
		cacheR: make(map[common.Hash]Node),
		cacheW: make(map[common.Hash][]byte),
	}
}

func (t *Tree) loadNodeFromStore(ptr common.Hash) (Node, bool, error) {
	bin, found, err := t.store.GetOne(ptr.Bytes())
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	node, err := NodeFromBytes(bin)
	if err != nil {
		return nil, false, xerrors.Errorf("node %s: %w", ptr, err)
	}
	return node, true, nil
}

// LoadNode returns the decoded node behind the digest. Resolution order:
// read cache, then the backing store (decoding and populating the cache).
// If the digest resolves nowhere and noAssert is set, the empty node is
// returned; otherwise the load fails with ErrMissingNode
func (t *Tree) LoadNode(ptr common.Hash, noAssert bool) (Node, error) {
	t.mu.RLock()
	if node, inCache := t.cacheR[ptr]; inCache {
		t.mu.RUnlock()
		return node, nil
	}
	t.mu.RUnlock()

	node, found, err := t.loadNodeFromStore(ptr)
	if err != nil {
		return nil, err
	}
	if !found {
		if noAssert {
			return EmptyNode(), nil
		}
		return nil, xerrors.Errorf("%w: ptr=%s", ErrMissingNode, ptr)
	}
	t.mu.Lock()
	t.cacheR[ptr] = node
	t.mu.Unlock()
	return node, nil
}

// SaveNode encodes and hashes the node and stages the encoding for Commit.
// The decoded node is kept in the read cache. Returns the node digest.
// A differing encoding already staged under the same digest is a hash
// collision and must never occur; it panics
func (t *Tree) SaveNode(node Node) common.Hash {
	bin := node.Bytes()
	hash := common.HashData(bin)

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.cacheW[hash]; ok {
		common.Assert(bytes.Equal(prev, bin), "SaveNode: hash collision on %s", hash)
	}
	t.cacheW[hash] = bin
	t.cacheR[hash] = node
	return hash
}

// Commit writes every staged (digest, encoding) pair into the backing store
// in one batch. An existing record with a different value under some digest
// fails the commit with ErrStoreCollision and indicates corruption. After a
// successful commit both caches are cleared
func (t *Tree) Commit() error {
	t.mu.Lock()
	keys := make([][]byte, 0, len(t.cacheW))
	pairs := make([]common.TypedKVPair[[]byte, []byte], 0, len(t.cacheW))
	for hash, bin := range t.cacheW {
		keys = append(keys, hash.Bytes())
		pairs = append(pairs, common.TypedKVPair[[]byte, []byte]{Key: hash.Bytes(), Value: bin})
	}
	t.mu.Unlock()

	if len(pairs) == 0 {
		t.ClearReadCache()
		return nil
	}
	existing, found, err := t.store.Get(keys)
	if err != nil {
		return err
	}
	for i := range pairs {
		if found[i] && !bytes.Equal(existing[i], pairs[i].Value) {
			return xerrors.Errorf("%w: digest=%x", ErrStoreCollision, keys[i])
		}
	}
	if err = t.store.Put(pairs); err != nil {
		return err
	}
	t.ClearWriteCache()
	t.ClearReadCache()
	return nil
}

// ClearReadCache drops all cached decoded nodes
func (t *Tree) ClearReadCache() {
	t.mu.Lock()
	t.cacheR = make(map[common.Hash]Node)
	t.mu.Unlock()
}

// ClearWriteCache drops all staged encodings
func (t *Tree) ClearWriteCache() {
	t.mu.Lock()
	t.cacheW = make(map[common.Hash][]byte)
	t.mu.Unlock()
}

//----------------------------------------------------------------------------
// reading

// Read returns the leaf value stored under the key in the subtree rooted at
// startNode, or nil if the key is absent. It performs O(len(key)) node loads
// and does not mutate the caches beyond lazy read-through
func (t *Tree) Read(startNode Node, key KeyPath) ([]byte, error) {
	node := startNode
	rest := key
	for {
		if len(rest) == 0 {
			return nil, nil
		}
		switch it := node[rest[0]].(type) {
		case nil:
			return nil, nil
		case *Leaf:
			if bytes.Equal(rest[1:], it.Prefix) {
				return it.Value, nil
			}
			return nil, nil
		case *NodePtr:
			if !bytes.HasPrefix(rest[1:], it.Prefix) {
				return nil, nil
			}
			child, err := t.LoadNode(it.Ptr, false)
			if err != nil {
				return nil, err
			}
			node = child
			rest = rest[1+len(it.Prefix):]
		}
	}
}

//----------------------------------------------------------------------------
// mutation

// pendingAction is an action whose key has been stripped down to the part
// relevant below the current node
type pendingAction struct {
	key    []byte
	value  []byte
	insert bool
}

// commonPrefix splits two byte strings into their longest shared prefix and
// the two remainders
func commonPrefix(l, r []byte) (prefix, lRest, rRest []byte) {
	n := 0
	for n < len(l) && n < len(r) && l[n] == r[n] {
		n++
	}
	return l[:n], l[n:], r[n:]
}

// MakeActions applies the mutation batch to curNode, rebuilding only the
// nodes along modified paths. New inner nodes are staged via SaveNode; the
// returned node is NOT staged (the caller decides whether it becomes a
// root). The bool reports whether anything changed; false means the batch
// was a structural no-op and curNode is returned as-is.
//
// Keys in one batch must be unique, or the batch is rejected with
// ErrDuplicateAction and nothing is staged
func (t *Tree) MakeActions(curNode Node, actions []Action) (Node, bool, error) {
	seen := make(map[string]struct{}, len(actions))
	pending := make([]pendingAction, len(actions))
	for i, action := range actions {
		key := action.Key()
		if len(key) == 0 {
			return nil, false, xerrors.New("empty key in the action batch")
		}
		if _, ok := seen[string(key)]; ok {
			return nil, false, xerrors.Errorf("%w: key=%x", ErrDuplicateAction, key)
		}
		seen[string(key)] = struct{}{}
		insert, ok := action.(InsertAction)
		if ok {
			pending[i] = pendingAction{key: key, value: insert.Value, insert: true}
		} else {
			pending[i] = pendingAction{key: key}
		}
	}
	return t.makeActions(curNode, pending)
}

func (t *Tree) makeActions(curNode Node, actions []pendingAction) (Node, bool, error) {
	var groups [NumItems][]pendingAction
	for _, a := range actions {
		idx := a.key[0]
		groups[idx] = append(groups[idx], pendingAction{key: a.key[1:], value: a.value, insert: a.insert})
	}
	var newNode Node
	changed := false
	for idx := 0; idx < NumItems; idx++ {
		if len(groups[idx]) == 0 {
			continue
		}
		newItem, itemChanged, err := t.applyToItem(curNode[idx], groups[idx])
		if err != nil {
			return nil, false, err
		}
		if !itemChanged {
			continue
		}
		if newNode == nil {
			newNode = curNode.Clone()
		}
		newNode[idx] = newItem
		changed = true
	}
	if !changed {
		return curNode, false, nil
	}
	return newNode, true, nil
}

// applyToItem reconciles the actions of one branch against its current item.
// Action keys have the branch byte already stripped
func (t *Tree) applyToItem(item Item, actions []pendingAction) (Item, bool, error) {
	switch it := item.(type) {
	case nil:
		// deletes of absent keys are silently dropped
		inserts := make([]leafEntry, 0, len(actions))
		for _, a := range actions {
			if a.insert {
				inserts = append(inserts, leafEntry{key: a.key, value: a.value})
			}
		}
		if len(inserts) == 0 {
			return nil, false, nil
		}
		newItem := t.buildSubtree(inserts)
		return newItem, true, nil

	case *Leaf:
		entries := []leafEntry{{key: it.Prefix, value: it.Value}}
		for _, a := range actions {
			entries = applyToEntries(entries, a)
		}
		if len(entries) == 1 && bytes.Equal(entries[0].key, it.Prefix) && bytes.Equal(entries[0].value, it.Value) {
			return item, false, nil
		}
		if len(entries) == 0 {
			return nil, true, nil
		}
		return t.buildSubtree(entries), true, nil

	case *NodePtr:
		shared := it.Prefix
		for _, a := range actions {
			shared, _, _ = commonPrefix(shared, a.key)
		}
		if len(shared) == len(it.Prefix) {
			// every action continues into the child subtree
			child, err := t.LoadNode(it.Ptr, false)
			if err != nil {
				return nil, false, err
			}
			newChild, childChanged, err := t.makeActions(child, stripKeys(actions, len(shared)))
			if err != nil {
				return nil, false, err
			}
			if !childChanged {
				return item, false, nil
			}
			return t.sealNode(newChild, it.Prefix), true, nil
		}
		// divergence inside the compressed prefix: push the existing subtree
		// down under an intermediate node and replay the actions against it
		rest := it.Prefix[len(shared):]
		mid := EmptyNode()
		mid[rest[0]] = &NodePtr{Prefix: common.Concat(rest[1:]), Ptr: it.Ptr}
		newMid, midChanged, err := t.makeActions(mid, stripKeys(actions, len(shared)))
		if err != nil {
			return nil, false, err
		}
		if !midChanged {
			// every action was a delete of an absent key
			return item, false, nil
		}
		return t.sealNode(newMid, shared), true, nil
	}
	panic("applyToItem: unknown item type")
}

func stripKeys(actions []pendingAction, n int) []pendingAction {
	ret := make([]pendingAction, len(actions))
	for i, a := range actions {
		common.Assert(len(a.key) > n, "makeActions: key too short, all keys must have the same length")
		ret[i] = pendingAction{key: a.key[n:], value: a.value, insert: a.insert}
	}
	return ret
}

// leafEntry is a (remaining key, value) mapping below one branch
type leafEntry struct {
	key   []byte
	value []byte
}

func applyToEntries(entries []leafEntry, a pendingAction) []leafEntry {
	for i, e := range entries {
		if bytes.Equal(e.key, a.key) {
			if a.insert {
				entries[i].value = a.value
				return entries
			}
			return append(entries[:i], entries[i+1:]...)
		}
	}
	if a.insert {
		return append(entries, leafEntry{key: a.key, value: a.value})
	}
	return entries
}

// buildSubtree constructs the canonical subtree holding the entries and
// returns the item referencing it. Inner nodes are staged via SaveNode.
// Requires len(entries) >= 1 with distinct keys
func (t *Tree) buildSubtree(entries []leafEntry) Item {
	if len(entries) == 1 {
		return &Leaf{Prefix: common.Concat(entries[0].key), Value: entries[0].value}
	}
	shared := entries[0].key
	for _, e := range entries[1:] {
		shared, _, _ = commonPrefix(shared, e.key)
	}
	var groups [NumItems][]leafEntry
	for _, e := range entries {
		common.Assert(len(e.key) > len(shared), "buildSubtree: key too short, all keys must have the same length")
		idx := e.key[len(shared)]
		groups[idx] = append(groups[idx], leafEntry{key: e.key[len(shared)+1:], value: e.value})
	}
	node := EmptyNode()
	for idx := 0; idx < NumItems; idx++ {
		if len(groups[idx]) == 0 {
			continue
		}
		node[idx] = t.buildSubtree(groups[idx])
	}
	hash := t.SaveNode(node)
	return &NodePtr{Prefix: common.Concat(shared), Ptr: hash}
}

// sealNode normalizes a rebuilt inner node and returns the item pointing at
// it. A node left with a single item is merged upward by extending the
// prefix, keeping the trie canonical: an inner node below the root always
// has at least two non-empty branches
func (t *Tree) sealNode(node Node, prefix []byte) Item {
	count, last := node.CountNonEmpty()
	switch count {
	case 0:
		return nil
	case 1:
		switch only := node[last].(type) {
		case *Leaf:
			return &Leaf{Prefix: common.Concat(prefix, byte(last), only.Prefix), Value: only.Value}
		case *NodePtr:
			return &NodePtr{Prefix: common.Concat(prefix, byte(last), only.Prefix), Ptr: only.Ptr}
		}
		panic("sealNode: unknown item type")
	default:
		hash := t.SaveNode(node)
		return &NodePtr{Prefix: common.Concat(prefix), Ptr: hash}
	}
}
