package idx

import "fmt"

// RowPolicy decides what happens when a sidecar row or file cannot be
// read: drop it silently, log and keep going, or abort that file. One bad
// row never aborts a whole indexing run.
type RowPolicy uint8

const (
	// Skip drops the bad row without comment.
	Skip RowPolicy = iota
	// Warn logs the bad row and continues.
	Warn
	// AbortFile fails the whole file the row belongs to.
	AbortFile
)

func (p RowPolicy) String() string {
	switch p {
	case Skip:
		return "skip"
	case Warn:
		return "warn"
	case AbortFile:
		return "abort-file"
	default:
		return fmt.Sprintf("row-policy(%d)", uint8(p))
	}
}
