package kvfs

import (
	"errors"
	gofs "io/fs"
)

// Error kinds surfaced to the protocol layer. Callers match with errors.Is;
// the filesystem name or inode number involved is carried in the wrapping
// message. ErrExist and ErrNotExist alias io/fs so standard tooling
// interoperates.
var (
	ErrExist        = gofs.ErrExist
	ErrNotExist     = gofs.ErrNotExist
	ErrNotEmpty     = errors.New("directory is not empty")
	ErrInodeMissing = errors.New("inode record missing")
	ErrBlockMissing = errors.New("block missing")
	ErrCorrupt      = errors.New("corrupt record")

	// ErrStore wraps every error reported by the underlying key-value
	// store, including a conflicting commit. The transaction layer never
	// retries; whoever owns the transaction does.
	ErrStore = errors.New("store failure")

	ErrReadOnlyTx = errors.New("write inside read transaction")
)
