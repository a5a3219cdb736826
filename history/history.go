// Package history implements the authenticated radix-trie history store:
// a persistent Merkle-hashed mapping from fixed-length binary keys to opaque
// values, backed by a pluggable key/value database. Every mutation batch
// yields a new root digest; prior roots remain fully navigable
package history

import "github.com/tuplespace/history.go/common"

// History is a versioned view over the trie bound to one root. A History
// value is logically immutable: Process and Reset return new values sharing
// the same backing store. One History presents a single-writer, many-reader
// contract; callers wrap it in their own concurrency discipline
type History interface {
	// Root returns the digest the view is bound to
	Root() common.Hash
	// Read returns the value stored under the key, or nil if absent
	Read(key KeyPath) ([]byte, error)
	// Process applies the mutation batch and returns the History bound to
	// the resulting root. The receiver remains valid and unchanged
	Process(actions []Action) (History, error)
	// Reset returns a History bound to an arbitrary historical root
	Reset(root common.Hash) (History, error)
}

var emptyRootHash = common.HashData(EmptyNode().Bytes())

// EmptyRootHash returns the digest of the canonical empty node: the root of
// a history with no keys. It is a fixed constant
func EmptyRootHash() common.Hash {
	return emptyRootHash
}
