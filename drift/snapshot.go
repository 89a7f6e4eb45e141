package drift

import (
	"slices"

	"github.com/atmolab/gribdex/coords"
)

// Snapshot captures the label sets observed for one reference datetime:
// which ensemble members, forecast steps, variables, and vertical levels
// the archive actually published for that model run. The reference
// datetime dimension itself is not part of the snapshot.
type Snapshot struct {
	labels [coords.NumDimensions][]string
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Add records a label for the given dimension. Labels are kept sorted
// in the dimension's domain order and deduplicated.
func (s *Snapshot) Add(dim coords.Dimension, label string) {
	if dim == coords.DimReferenceTime {
		return
	}
	set := s.labels[dim]
	i, found := slices.BinarySearchFunc(set, label, func(a, b string) int {
		return coords.CompareLabels(dim, a, b)
	})
	if found {
		return
	}
	s.labels[dim] = slices.Insert(set, i, label)
}

// AddKey records the member, step, variable and level labels of a key.
func (s *Snapshot) AddKey(k coords.Key) {
	for _, dim := range coords.Dimensions() {
		if dim == coords.DimReferenceTime {
			continue
		}
		s.Add(dim, k.Label(dim))
	}
}

// Labels returns the observed labels for a dimension, in domain order.
// The returned slice is owned by the snapshot.
func (s *Snapshot) Labels(dim coords.Dimension) []string {
	return s.labels[dim]
}

// Len returns the total number of labels across all dimensions.
func (s *Snapshot) Len() int {
	n := 0
	for _, set := range s.labels {
		n += len(set)
	}
	return n
}

// Merge folds another snapshot's labels into this one.
func (s *Snapshot) Merge(o *Snapshot) {
	if o == nil {
		return
	}
	for dim, set := range o.labels {
		for _, label := range set {
			s.Add(coords.Dimension(dim), label)
		}
	}
}

// Equal reports whether two snapshots observed identical label sets.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	for dim := range s.labels {
		if !slices.Equal(s.labels[dim], o.labels[dim]) {
			return false
		}
	}
	return true
}
