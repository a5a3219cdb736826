package history

import "golang.org/x/xerrors"

var (
	// ErrDuplicateAction reports two actions sharing a key in one batch.
	// The batch is rejected, the state is unchanged
	ErrDuplicateAction = xerrors.New("duplicate key in the action batch")

	// ErrMissingNode reports a pointer to a digest absent from both the
	// store and the caches
	ErrMissingNode = xerrors.New("missing node in the database")

	// ErrCorruptNode reports a node record which cannot be decoded
	ErrCorruptNode = xerrors.New("corrupt node record")

	// ErrStoreCollision reports an existing store record which differs from
	// the one being committed under the same digest
	ErrStoreCollision = xerrors.New("store collision: different value exists for the same digest")
)
