package gribdex

import (
	"fmt"

	"github.com/atmolab/gribdex/blobstore"
	"github.com/atmolab/gribdex/coords"
)

var (
	// ErrOutOfBounds is returned when a selection index is past the end
	// of its dimension.
	ErrOutOfBounds = coords.ErrOutOfBounds

	// ErrNotFound is returned when an object or published snapshot does
	// not exist.
	ErrNotFound = blobstore.ErrNotFound
)

// TransportError wraps a storage or network failure during indexing with
// the operation and object that failed.
//
// The original underlying error can be accessed via errors.Unwrap.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
