// Package coords models the coordinate system of a gridded weather archive:
// composite keys, per-dimension ordered label sets, and the mapping between
// labels and dense integer indices.
package coords

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrOutOfBounds is returned when an index exceeds a dimension's label count.
var ErrOutOfBounds = errors.New("label index out of bounds")

// Dimension enumerates the five coordinate axes of a key.
type Dimension uint8

const (
	DimReferenceTime Dimension = iota
	DimMember
	DimStep
	DimVariable
	DimLevel

	// NumDimensions is the number of coordinate axes.
	NumDimensions = 5
)

var dimensionNames = [NumDimensions]string{
	"reference_datetime",
	"ensemble_member",
	"forecast_step",
	"variable",
	"vertical_level",
}

func (d Dimension) String() string {
	if int(d) < len(dimensionNames) {
		return dimensionNames[d]
	}
	return fmt.Sprintf("dimension(%d)", uint8(d))
}

// Dimensions returns all axes in key order.
func Dimensions() [NumDimensions]Dimension {
	return [NumDimensions]Dimension{DimReferenceTime, DimMember, DimStep, DimVariable, DimLevel}
}

// DimensionByName resolves a serialized dimension name.
func DimensionByName(name string) (Dimension, bool) {
	for i, n := range dimensionNames {
		if n == name {
			return Dimension(i), true
		}
	}
	return 0, false
}

// CompareLabels orders two labels within one dimension by that dimension's
// domain order. Reference times and forecast steps use fixed-width labels
// whose lexical order matches the domain order; levels have their own
// altitude ordering; members order by kind then ordinal; variables are
// opaque strings.
func CompareLabels(dim Dimension, a, b string) int {
	switch dim {
	case DimLevel:
		return CompareLevels(a, b)
	case DimMember:
		ma, errA := ParseMember(a)
		mb, errB := ParseMember(b)
		if errA == nil && errB == nil {
			return ma.Compare(mb)
		}
		return strings.Compare(a, b)
	default:
		return strings.Compare(a, b)
	}
}

// Registry holds one ordered set of distinct labels per dimension and the
// label<->index mapping over it.
//
// A Registry has two phases: during indexing a single writer grows it via
// Register; after the owning index is published it is read-only and safe
// for unsynchronized concurrent reads. Registering a label can shift the
// indices of labels that sort after it, so indices are only stable once
// the registry is frozen.
type Registry struct {
	labels [NumDimensions][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register inserts the label into the dimension's ordered set and returns
// its index. Registering an existing label is a no-op returning the
// existing index. Insertion is an ordered insert via binary search; lookups
// dominate once a dataset is built, so the flat sorted slice is the right
// trade.
func (r *Registry) Register(dim Dimension, label string) int {
	set := r.labels[dim]
	i, found := slices.BinarySearchFunc(set, label, func(a, b string) int {
		return CompareLabels(dim, a, b)
	})
	if found {
		return i
	}
	r.labels[dim] = slices.Insert(set, i, label)
	return i
}

// LabelAt returns the label at the given index.
func (r *Registry) LabelAt(dim Dimension, i int) (string, error) {
	set := r.labels[dim]
	if i < 0 || i >= len(set) {
		return "", fmt.Errorf("%w: %s index %d, have %d labels", ErrOutOfBounds, dim, i, len(set))
	}
	return set[i], nil
}

// IndexOf returns the index of the label, if registered.
func (r *Registry) IndexOf(dim Dimension, label string) (int, bool) {
	set := r.labels[dim]
	i, found := slices.BinarySearchFunc(set, label, func(a, b string) int {
		return CompareLabels(dim, a, b)
	})
	if !found {
		return 0, false
	}
	return i, true
}

// Len returns the number of distinct labels in the dimension.
func (r *Registry) Len(dim Dimension) int {
	return len(r.labels[dim])
}

// Labels returns a copy of the dimension's ordered label set.
func (r *Registry) Labels(dim Dimension) []string {
	return slices.Clone(r.labels[dim])
}
