package gribdex

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/atmolab/gribdex/blobstore"
	"github.com/atmolab/gribdex/codec"
	"github.com/atmolab/gribdex/coords"
	"github.com/atmolab/gribdex/dataset"
	"github.com/atmolab/gribdex/manifest"
)

// Index is a frozen, queryable coordinate index over one archive. It is
// immutable after Build or Load: any number of goroutines may resolve
// against it concurrently without coordination.
type Index struct {
	manifest    *manifest.Manifest
	rules       dataset.SkipRules
	logger      *Logger
	metrics     MetricsCollector
	codec       codec.Codec
	compression string
}

// Manifest exposes the underlying key-to-location manifest.
func (ix *Index) Manifest() *manifest.Manifest { return ix.manifest }

// Registry exposes the published coordinate labels. Selection indices
// refer to positions in this registry.
func (ix *Index) Registry() *coords.Registry { return ix.manifest.Registry() }

// Selection names coordinates by their registry indices, one slice per
// dimension. A nil slice selects the whole dimension; a one-element
// slice selects a single label.
type Selection struct {
	ReferenceTimes []int
	Members        []int
	Steps          []int
	Variables      []int
	Levels         []int
}

func (s Selection) indices(dim coords.Dimension) []int {
	switch dim {
	case coords.DimReferenceTime:
		return s.ReferenceTimes
	case coords.DimMember:
		return s.Members
	case coords.DimStep:
		return s.Steps
	case coords.DimVariable:
		return s.Variables
	default:
		return s.Levels
	}
}

// ByteRange addresses one GRIB message inside a file. Length 0 means
// the message runs to the end of the file.
type ByteRange struct {
	Offset uint64
	Length uint32
}

// Resolution is the answer to a selection: for every file, the byte
// ranges to read, ordered by offset, plus the selected keys the archive
// never published. It is the unit handed to a download scheduler.
type Resolution struct {
	Ranges  map[string][]ByteRange
	Missing []coords.Key
}

// NumRanges returns the total number of byte ranges across all files.
func (r *Resolution) NumRanges() int {
	n := 0
	for _, ranges := range r.Ranges {
		n += len(ranges)
	}
	return n
}

// Resolve expands the selection into byte ranges. Selected combinations
// the archive does not hold are reported in Resolution.Missing, never as
// an error; combinations the dataset rules exclude are silently pruned.
// Indices past the end of a dimension return ErrOutOfBounds.
func (ix *Index) Resolve(ctx context.Context, sel Selection) (*Resolution, error) {
	start := time.Now()
	res, err := ix.resolve(ctx, sel)
	ix.logger.LogResolve(ctx, resNumRanges(res), resNumMissing(res), err)
	ix.metrics.RecordResolve(resNumRanges(res), resNumMissing(res), time.Since(start), err)
	return res, err
}

func (ix *Index) resolve(ctx context.Context, sel Selection) (*Resolution, error) {
	reg := ix.manifest.Registry()

	var labels [coords.NumDimensions][]string
	for _, dim := range coords.Dimensions() {
		expanded, err := expandSelection(reg, dim, sel.indices(dim))
		if err != nil {
			return nil, err
		}
		labels[dim] = expanded
	}

	// Parse the axis labels once, outside the cross product.
	refTimes := make([]time.Time, len(labels[coords.DimReferenceTime]))
	for i, l := range labels[coords.DimReferenceTime] {
		t, err := coords.ParseReferenceTime(l)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", l, err)
		}
		refTimes[i] = t
	}
	members := make([]coords.EnsembleMember, len(labels[coords.DimMember]))
	for i, l := range labels[coords.DimMember] {
		m, err := coords.ParseMember(l)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", l, err)
		}
		members[i] = m
	}
	steps := make([]time.Duration, len(labels[coords.DimStep]))
	for i, l := range labels[coords.DimStep] {
		s, err := coords.ParseStep(l)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", l, err)
		}
		steps[i] = s
	}

	// Variable/level pairs the archive never published are classified by
	// the presence bitmaps up front, so the hot loop skips the entry-table
	// binary search for combinations that cannot hit.
	present := make([][]bool, len(labels[coords.DimVariable]))
	for vi, variable := range labels[coords.DimVariable] {
		present[vi] = make([]bool, len(labels[coords.DimLevel]))
		for li, level := range labels[coords.DimLevel] {
			present[vi][li] = ix.manifest.HasCombination(variable, level)
		}
	}

	res := &Resolution{Ranges: make(map[string][]ByteRange)}
	for _, t := range refTimes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		epoch, inEpoch := ix.manifest.EpochAt(t)

		for mi, member := range members {
			memberKnown := inEpoch && epoch.HasLabel(coords.DimMember, reg, labels[coords.DimMember][mi])
			for si, step := range steps {
				stepKnown := memberKnown && epoch.HasLabel(coords.DimStep, reg, labels[coords.DimStep][si])
				for vi, variable := range labels[coords.DimVariable] {
					varKnown := stepKnown && epoch.HasLabel(coords.DimVariable, reg, variable)
					for li, level := range labels[coords.DimLevel] {
						key := coords.Key{
							ReferenceTime: t,
							Member:        member,
							Step:          step,
							Variable:      variable,
							Level:         level,
						}
						if ix.rules.Skip(key) {
							continue
						}
						if !varKnown || !epoch.HasLabel(coords.DimLevel, reg, level) || !present[vi][li] {
							res.Missing = append(res.Missing, key)
							continue
						}
						loc, ok := ix.manifest.Lookup(key)
						if !ok {
							res.Missing = append(res.Missing, key)
							continue
						}
						path := ix.manifest.Path(loc)
						res.Ranges[path] = append(res.Ranges[path], ByteRange{
							Offset: loc.Offset,
							Length: loc.Length,
						})
					}
				}
			}
		}
	}

	for path := range res.Ranges {
		slices.SortFunc(res.Ranges[path], func(a, b ByteRange) int {
			switch {
			case a.Offset < b.Offset:
				return -1
			case a.Offset > b.Offset:
				return 1
			default:
				return 0
			}
		})
	}
	return res, nil
}

func expandSelection(reg *coords.Registry, dim coords.Dimension, indices []int) ([]string, error) {
	if indices == nil {
		return reg.Labels(dim), nil
	}
	out := make([]string, len(indices))
	for i, n := range indices {
		label, err := reg.LabelAt(dim, n)
		if err != nil {
			return nil, err
		}
		out[i] = label
	}
	return out, nil
}

func resNumRanges(r *Resolution) int {
	if r == nil {
		return 0
	}
	return r.NumRanges()
}

func resNumMissing(r *Resolution) int {
	if r == nil {
		return 0
	}
	return len(r.Missing)
}

// Encode serializes the index's manifest snapshot for persistence or
// publication, using the codec and compression the index was configured
// with.
func (ix *Index) Encode() ([]byte, error) {
	return manifest.Encode(ix.manifest.Snapshot(), ix.codec, ix.compression)
}

// Load restores an index from encoded snapshot bytes. The descriptor
// supplies the dataset rules that are not part of the snapshot.
func Load(data []byte, desc *dataset.Descriptor, opts ...Option) (*Index, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	snap, err := manifest.Decode(data)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Restore(snap)
	if err != nil {
		return nil, err
	}
	var rules dataset.SkipRules
	if desc != nil {
		rules = desc.Rules()
	}
	return &Index{
		manifest:    m,
		rules:       rules,
		logger:      o.logger,
		metrics:     o.metrics,
		codec:       o.codec,
		compression: o.compression,
	}, nil
}

// LoadFrom fetches a named snapshot from a blob store and restores it.
func LoadFrom(ctx context.Context, store blobstore.Store, name string, desc *dataset.Descriptor, opts ...Option) (*Index, error) {
	data, _, err := blobstore.Fetch(ctx, store, name)
	if err != nil {
		return nil, err
	}
	return Load(data, desc, opts...)
}
