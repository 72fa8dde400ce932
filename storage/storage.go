package storage

import (
	"context"
	"fmt"
)

/*
Storage providers supply random access to immutable octree objects. An object
is written once at build time with Put and then served piecemeal through
GetRange: the octree index resolves every node to a byte range inside a
single object, so a provider never needs to understand the file format.
*/

////////////////////////////////////////////////////////////////////////////////

// Provider is the interface implemented by object storage backends.
type Provider interface {
	fmt.Stringer

	// Put stores an object under the given name, replacing any previous
	// content.
	Put(ctx context.Context, object string, data []byte) error

	// GetRange reads length bytes starting at offset from the named object.
	// It returns ErrObjectNotFound if the object does not exist and
	// ErrInvalidRange if the range falls outside the object.
	GetRange(ctx context.Context, object string, offset int64, length int64) ([]byte, error)

	// Delete removes the named object. Deleting a nonexistent object is not
	// an error.
	Delete(ctx context.Context, object string) error
}
