package common

import "golang.org/x/xerrors"

var (
	// ErrNotAllBytesConsumed is returned when deserialization leaves
	// trailing bytes in the input
	ErrNotAllBytesConsumed = xerrors.New("serialization error: not all bytes were consumed")

	// ErrStore wraps I/O and (de)serialization failures of the backing store
	ErrStore = xerrors.New("store error")

	// ErrKeyNotFound is returned by typed store lookups which require presence
	ErrKeyNotFound = xerrors.New("key not found in the store")
)
