// Package dataset describes a provider's archive declaratively: where the
// files live, how file names are generated and parsed, which coordinate
// combinations exist at all, and the enumerations (ensemble members,
// forecast steps) that cannot be discovered from sidecar files alone.
package dataset

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atmolab/gribdex/coords"
	"github.com/atmolab/gribdex/idx"
)

// PathScheme generates and parses provider-specific object paths. One
// implementation is selected per provider via the descriptor.
type PathScheme interface {
	// IdxPath returns the sidecar path for the file holding the key.
	IdxPath(k coords.Key) string
	// ParseIdxPath recovers the filename-derived coordinates from a
	// sidecar path.
	ParseIdxPath(path string) (idx.FileContext, error)
	// RunPrefix returns the listing prefix under which all of one
	// reference datetime's files live, with a trailing slash.
	RunPrefix(t time.Time) string
	// ParseRunPrefix recovers the reference datetime from a depth-2
	// listing prefix. Prefixes that are not runs return an error.
	ParseRunPrefix(prefix string) (time.Time, error)
}

// Descriptor is the declarative description of one indexable dataset,
// loaded from YAML.
type Descriptor struct {
	Name        string `yaml:"name"`
	DatasetID   string `yaml:"dataset_id"`
	Scheme      string `yaml:"path_scheme"`
	BucketURL   string `yaml:"bucket_url"`
	IdxSuffix   string `yaml:"idx_suffix"`
	ReferenceDatetimes struct {
		Start               time.Time  `yaml:"start"`
		End                 *time.Time `yaml:"end"`
		NumberOfDailyCycles int        `yaml:"number_of_daily_cycles"`
	} `yaml:"reference_datetimes"`
	EnsembleMembers struct {
		Control   bool `yaml:"control"`
		Perturbed struct {
			Start int `yaml:"start"`
			End   int `yaml:"end"`
		} `yaml:"perturbed"`
		Mean   bool `yaml:"ens_mean"`
		Spread bool `yaml:"ens_spread"`
	} `yaml:"ensemble_members"`
	ForecastSteps []ForecastStepRange `yaml:"forecast_steps"`
	VerticalLevels []string           `yaml:"vertical_levels"`

	// Parameters maps a variable abbreviation to the filters that decide
	// which (level, step) combinations actually exist for it. A variable
	// with no entry is assumed present everywhere.
	Parameters map[string][]ParameterFilter `yaml:"parameters"`
}

// ForecastStepRange enumerates an arithmetic range of forecast steps.
type ForecastStepRange struct {
	StartHour           int `yaml:"start_hour"`
	EndHour             int `yaml:"end_hour"`
	StepDurationInHours int `yaml:"step_duration_in_hours"`
}

// ParameterFilter narrows where one variable exists. Empty include lists
// admit everything; exclude lists are applied after.
type ParameterFilter struct {
	IncludeVerticalLevels []string `yaml:"include_vertical_levels"`
	ExcludeVerticalLevels []string `yaml:"exclude_vertical_levels"`
	IncludeForecastSteps  []int    `yaml:"include_forecast_steps"`
	ExcludeForecastSteps  []int    `yaml:"exclude_forecast_steps"`
}

// Load parses a YAML descriptor.
func Load(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse dataset descriptor: %w", err)
	}
	if d.ReferenceDatetimes.NumberOfDailyCycles <= 0 {
		d.ReferenceDatetimes.NumberOfDailyCycles = 1
	}
	return &d, nil
}

// NewPathScheme instantiates the path scheme the descriptor names.
func (d *Descriptor) NewPathScheme() (PathScheme, error) {
	switch d.Scheme {
	case "gefs", "":
		return GEFS{}, nil
	default:
		return nil, fmt.Errorf("unknown path scheme %q", d.Scheme)
	}
}

// CycleInterval is the spacing between model initializations, the minimum
// granularity of the reference-datetime axis.
func (d *Descriptor) CycleInterval() time.Duration {
	return 24 * time.Hour / time.Duration(d.ReferenceDatetimes.NumberOfDailyCycles)
}

// Members enumerates the declared ensemble members in domain order.
func (d *Descriptor) Members() []coords.EnsembleMember {
	var out []coords.EnsembleMember
	if d.EnsembleMembers.Control {
		out = append(out, coords.Control())
	}
	p := d.EnsembleMembers.Perturbed
	for n := p.Start; n <= p.End && n > 0; n++ {
		out = append(out, coords.Perturbed(uint16(n)))
	}
	if d.EnsembleMembers.Mean {
		out = append(out, coords.Mean())
	}
	if d.EnsembleMembers.Spread {
		out = append(out, coords.Spread())
	}
	return out
}

// Steps enumerates the declared forecast steps in ascending order.
func (d *Descriptor) Steps() []time.Duration {
	seen := map[time.Duration]struct{}{}
	var out []time.Duration
	for _, r := range d.ForecastSteps {
		if r.StepDurationInHours <= 0 {
			continue
		}
		for h := r.StartHour; h <= r.EndHour; h += r.StepDurationInHours {
			step := time.Duration(h) * time.Hour
			if _, ok := seen[step]; !ok {
				seen[step] = struct{}{}
				out = append(out, step)
			}
		}
	}
	return out
}

// Rules derives the missing-combination rules from the parameter filters.
func (d *Descriptor) Rules() SkipRules {
	return SkipRules{filters: d.Parameters}
}
