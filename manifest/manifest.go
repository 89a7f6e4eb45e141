// Package manifest implements the ordered key-to-location index at the
// core of gribdex: a map from coordinate key to the exact byte range of
// one GRIB message in one remote file.
//
// The manifest has a build phase and a serve phase. A single writer grows
// a Builder while sidecar files are ingested; Freeze then publishes an
// immutable Manifest whose sorted entry table, deduplicated path table and
// label registry may be read concurrently without synchronization.
package manifest

import (
	"fmt"
	"iter"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/atmolab/gribdex/coords"
)

// Location is the byte range of one GRIB message. The file path is stored
// once in the manifest's shared path table and referenced by index, since
// on the order of a hundred messages share each file.
type Location struct {
	PathIndex int
	Offset    uint64
	// Length in bytes; zero means "to end of file".
	Length uint32
}

// Entry pairs a key with its location.
type Entry struct {
	Key      coords.Key
	Location Location
}

// DuplicateKeyError reports an insert whose key already maps to a
// different location. This is a data inconsistency in the source archive
// and is never silently resolved.
type DuplicateKeyError struct {
	Key      coords.Key
	Existing Location
	Offered  Location
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("key %s already mapped to path#%d+%d, refusing path#%d+%d",
		e.Key, e.Existing.PathIndex, e.Existing.Offset, e.Offered.PathIndex, e.Offered.Offset)
}

// Builder accumulates entries during indexing. It is not safe for
// concurrent use: the indexing pipeline funnels all merges through one
// writer so label-index assignment stays monotonic.
type Builder struct {
	registry  *coords.Registry
	entries   map[coords.Key]Location
	paths     []string
	pathIndex map[string]int
}

// NewBuilder creates an empty builder registering labels into reg.
func NewBuilder(reg *coords.Registry) *Builder {
	return &Builder{
		registry:  reg,
		entries:   make(map[coords.Key]Location),
		pathIndex: make(map[string]int),
	}
}

// PathIndex interns the path and returns its table index.
func (b *Builder) PathIndex(path string) int {
	if i, ok := b.pathIndex[path]; ok {
		return i
	}
	i := len(b.paths)
	b.paths = append(b.paths, path)
	b.pathIndex[path] = i
	return i
}

// Insert maps the key to the location. Re-inserting an identical pair is
// a no-op so re-ingesting a file is idempotent; the same key with a
// different location is rejected with *DuplicateKeyError and the manifest
// is left unchanged. On success every dimension value of the key is
// registered in the label registry.
func (b *Builder) Insert(key coords.Key, loc Location) error {
	if existing, ok := b.entries[key]; ok {
		if existing == loc {
			return nil
		}
		return &DuplicateKeyError{Key: key, Existing: existing, Offered: loc}
	}
	b.entries[key] = loc
	for _, dim := range coords.Dimensions() {
		b.registry.Register(dim, key.Label(dim))
	}
	return nil
}

// Len returns the number of entries inserted so far.
func (b *Builder) Len() int { return len(b.entries) }

// Freeze sorts the accumulated entries and publishes the immutable
// manifest, attaching the drift epochs computed alongside it. The builder
// must not be used afterwards.
func (b *Builder) Freeze(epochs []Epoch) *Manifest {
	entries := make([]Entry, 0, len(b.entries))
	for k, loc := range b.entries {
		entries = append(entries, Entry{Key: k, Location: loc})
	}
	slices.SortFunc(entries, func(a, e Entry) int { return a.Key.Compare(e.Key) })

	m := &Manifest{
		registry: b.registry,
		entries:  entries,
		paths:    b.paths,
		epochs:   epochs,
		presence: make(map[string]*roaring.Bitmap),
	}
	for _, e := range entries {
		bm, ok := m.presence[e.Key.Variable]
		if !ok {
			bm = roaring.New()
			m.presence[e.Key.Variable] = bm
		}
		if li, found := b.registry.IndexOf(coords.DimLevel, e.Key.Level); found {
			bm.Add(uint32(li))
		}
	}
	b.entries = nil
	b.paths = nil
	b.pathIndex = nil
	return m
}

// Manifest is the frozen, published index. All methods are pure reads and
// safe for unlimited concurrent use.
type Manifest struct {
	registry *coords.Registry
	entries  []Entry
	paths    []string
	epochs   []Epoch

	// presence holds, per variable, the set of vertical-level indices the
	// variable actually occurs at, so sparse range scans skip the bulk of
	// the Cartesian product without touching the entry table.
	presence map[string]*roaring.Bitmap
}

// Registry returns the frozen label registry.
func (m *Manifest) Registry() *coords.Registry { return m.registry }

// Epochs returns the drift epochs in chronological order.
func (m *Manifest) Epochs() []Epoch { return m.epochs }

// Len returns the number of entries.
func (m *Manifest) Len() int { return len(m.entries) }

// Paths returns the deduplicated path table.
func (m *Manifest) Paths() []string { return slices.Clone(m.paths) }

// Path resolves a location's path-table index.
func (m *Manifest) Path(loc Location) string { return m.paths[loc.PathIndex] }

// Lookup returns the location of the key, if indexed.
func (m *Manifest) Lookup(key coords.Key) (Location, bool) {
	i, found := slices.BinarySearchFunc(m.entries, key, func(e Entry, k coords.Key) int {
		return e.Key.Compare(k)
	})
	if !found {
		return Location{}, false
	}
	return m.entries[i].Location, true
}

// HasCombination reports whether any entry pairs the variable with the
// vertical level.
func (m *Manifest) HasCombination(variable, level string) bool {
	bm, ok := m.presence[variable]
	if !ok {
		return false
	}
	li, found := m.registry.IndexOf(coords.DimLevel, level)
	if !found {
		return false
	}
	return bm.Contains(uint32(li))
}

// Constraint restricts one dimension of a range scan. An empty label set
// means "all".
type Constraint struct {
	labels map[string]struct{}
}

// All matches every label.
func All() Constraint { return Constraint{} }

// Exact matches one label.
func Exact(label string) Constraint { return AnyOf(label) }

// AnyOf matches any of the given labels.
func AnyOf(labels ...string) Constraint {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return Constraint{labels: set}
}

func (c Constraint) matches(label string) bool {
	if len(c.labels) == 0 {
		return true
	}
	_, ok := c.labels[label]
	return ok
}

// Constraints restricts a range scan, one constraint per dimension in key
// order. The zero value matches everything.
type Constraints [coords.NumDimensions]Constraint

// Range iterates the entries matching the constraints in key order, so
// downstream consumers can group by file and coalesce adjacent byte
// ranges cheaply. The sequence is lazy and restartable.
func (m *Manifest) Range(c Constraints) iter.Seq2[coords.Key, Location] {
	return func(yield func(coords.Key, Location) bool) {
		for _, e := range m.entries {
			if !m.entryMatches(e, c) {
				continue
			}
			if !yield(e.Key, e.Location) {
				return
			}
		}
	}
}

func (m *Manifest) entryMatches(e Entry, c Constraints) bool {
	for _, dim := range coords.Dimensions() {
		if !c[dim].matches(e.Key.Label(dim)) {
			return false
		}
	}
	return true
}
