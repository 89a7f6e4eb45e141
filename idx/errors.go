package idx

import (
	"errors"
	"fmt"
)

var (
	errTooFewFields = errors.New("too few fields")
	errBadOffset    = errors.New("byte offset is not an unsigned integer")
	errEmptyField   = errors.New("empty variable or level field")
	errOffsetOrder  = errors.New("byte offset precedes the previous row's")
)

// RowError reports one malformed sidecar row. It is scoped to that row:
// the surrounding file keeps parsing and the caller's RowPolicy decides
// whether to skip the row or abort the file.
type RowError struct {
	Path string
	Row  int
	Line string

	cause error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("sidecar row %d of %s: %v", e.Row, e.Path, e.cause)
}

func (e *RowError) Unwrap() error { return e.cause }
