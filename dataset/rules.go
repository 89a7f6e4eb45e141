package dataset

import (
	"slices"
	"time"

	"github.com/atmolab/gribdex/coords"
)

// SkipRules answers whether a coordinate combination is known to be absent
// from the archive. Real datasets are sparse: a parameter may exist only at
// some levels or steps, so the resolver prunes keys through these rules
// instead of enumerating the full Cartesian product.
//
// The zero value skips nothing.
type SkipRules struct {
	filters map[string][]ParameterFilter
}

// Skip reports whether the key is implausible and should not be probed.
// A variable with no declared filters is assumed present everywhere.
func (r SkipRules) Skip(k coords.Key) bool {
	filters, ok := r.filters[k.Variable]
	if !ok || len(filters) == 0 {
		return false
	}
	for _, f := range filters {
		if f.admits(k.Level, k.Step) {
			return false
		}
	}
	return true
}

func (f ParameterFilter) admits(level string, step time.Duration) bool {
	if len(f.IncludeVerticalLevels) > 0 && !slices.Contains(f.IncludeVerticalLevels, level) {
		return false
	}
	if slices.Contains(f.ExcludeVerticalLevels, level) {
		return false
	}
	hours := int(step.Hours())
	if len(f.IncludeForecastSteps) > 0 && !slices.Contains(f.IncludeForecastSteps, hours) {
		return false
	}
	if slices.Contains(f.ExcludeForecastSteps, hours) {
		return false
	}
	return true
}
