package common

import (
	"bytes"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/xerrors"
)

// HashSize is the byte size of all digests in the store
const HashSize = 32

// Hash is a 32-byte blake2b digest of canonical bytes. Two digests are equal
// iff their bytes are equal; ordering is lexicographic
type Hash [HashSize]byte

// ErrWrongHashSize is returned when raw bytes cannot be interpreted as a digest
var ErrWrongHashSize = xerrors.New("wrong hash size")

// HashData computes the digest of arbitrary data
func HashData(data []byte) Hash {
	return blake2b.Sum256(data)
}

// HashFromBytes interprets exactly HashSize bytes as a digest
func HashFromBytes(data []byte) (Hash, error) {
	var ret Hash
	if len(data) != HashSize {
		return ret, xerrors.Errorf("%w: expected %d bytes, got %d", ErrWrongHashSize, HashSize, len(data))
	}
	copy(ret[:], data)
	return ret, nil
}

// MustHashFromBytes is HashFromBytes which panics on wrong size
func MustHashFromBytes(data []byte) Hash {
	ret, err := HashFromBytes(data)
	if err != nil {
		panic(err)
	}
	return ret
}

// Bytes returns the digest as a fresh byte slice
func (h Hash) Bytes() []byte {
	ret := make([]byte, HashSize)
	copy(ret, h[:])
	return ret
}

func (h Hash) Equal(other Hash) bool {
	return h == other
}

// Compare orders digests lexicographically. Returns -1, 0 or 1
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
