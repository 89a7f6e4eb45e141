package manifest

import (
	"time"

	"github.com/atmolab/gribdex/coords"
)

// Epoch is a contiguous interval of the reference-datetime axis over
// which the dataset's coordinate label sets are constant. The ordered
// epoch list covers the whole indexed range with no gaps or overlaps.
type Epoch struct {
	// Start is inclusive, End exclusive. A zero End leaves the epoch
	// open-ended (the newest epoch of a live archive).
	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitzero"`

	// Overrides freezes the label sets observed during this epoch, keyed
	// by dimension name. A dimension without an override uses the
	// registry's full (union) label set.
	Overrides map[string][]string `json:"dimension_overrides,omitempty"`
}

// Contains reports whether the reference time falls inside the epoch.
func (e Epoch) Contains(t time.Time) bool {
	if t.Before(e.Start) {
		return false
	}
	return e.End.IsZero() || t.Before(e.End)
}

// Labels returns the epoch's label set for the dimension: the frozen
// override if one exists, otherwise the registry's full set.
func (e Epoch) Labels(dim coords.Dimension, reg *coords.Registry) []string {
	if set, ok := e.Overrides[dim.String()]; ok {
		return set
	}
	return reg.Labels(dim)
}

// HasLabel reports whether the label is available in this epoch along the
// dimension.
func (e Epoch) HasLabel(dim coords.Dimension, reg *coords.Registry, label string) bool {
	set, ok := e.Overrides[dim.String()]
	if !ok {
		_, found := reg.IndexOf(dim, label)
		return found
	}
	for _, l := range set {
		if l == label {
			return true
		}
	}
	return false
}

// EpochAt returns the epoch containing the reference time.
func (m *Manifest) EpochAt(t time.Time) (Epoch, bool) {
	for _, e := range m.epochs {
		if e.Contains(t) {
			return e, true
		}
	}
	return Epoch{}, false
}
