package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is the object-storage abstraction the indexer reads sidecar files
// through. Implementations are safe for concurrent use; all operations are
// cancellable through the context and may fail or time out — retry policy
// belongs to the implementation, not the caller.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// List returns every blob name under the prefix, recursively.
	List(ctx context.Context, prefix string) ([]string, error)
	// ListPrefixes returns the immediate "directory" prefixes below the
	// prefix, the way archives expose one folder per model run.
	ListPrefixes(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to one object.
type Blob interface {
	// ReadAt reads len(p) bytes starting at off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// Size returns the size of the blob in bytes.
	Size() int64
	Close() error
}

// Fetch reads a whole blob. Sidecar files are small (tens of kilobytes),
// so whole-object reads are the common case during indexing.
func Fetch(ctx context.Context, s Store, name string) ([]byte, int64, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	defer b.Close()

	size := b.Size()
	buf := make([]byte, size)
	n, err := b.ReadAt(ctx, buf, 0)
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	return buf[:n], size, nil
}
