package octree

import (
	"errors"
	"fmt"
)

/*
Errors that can be returned by the octree package. Storage read errors are
per-node and recoverable: the streaming path logs them and skips the node.
Format errors indicate a corrupt or incompatible octree object and fail the
whole open.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrInvalidNode is returned when a node ID does not exist in the index.
var ErrInvalidNode = errors.New("invalid node id")

// StorageReadError is returned when a node's payload cannot be read or
// decoded. The caller is expected to skip the node rather than abort.
type StorageReadError struct {
	node NodeID
	err  error
}

// Error returns a string representation of the error.
func (e StorageReadError) Error() string {
	return fmt.Sprintf("failed to read payload of node %d: %v", e.node, e.err)
}

// Is returns true if the target error is a StorageReadError.
func (e StorageReadError) Is(target error) bool {
	_, ok := target.(StorageReadError)
	return ok
}

// Unwrap returns the underlying cause.
func (e StorageReadError) Unwrap() error {
	return e.err
}

func newStorageReadError(node NodeID, err error) error {
	return StorageReadError{node: node, err: err}
}

// FormatError is returned when an octree object fails structural validation.
type FormatError struct {
	reason string
}

// Error returns a string representation of the error.
func (e FormatError) Error() string {
	return fmt.Sprintf("bad octree object: %s", e.reason)
}

// Is returns true if the target error is a FormatError.
func (e FormatError) Is(target error) bool {
	_, ok := target.(FormatError)
	return ok
}

func newFormatError(format string, args ...any) error {
	return FormatError{reason: fmt.Sprintf(format, args...)}
}
