package coords

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReferenceTimeLayout is the canonical label format for the reference-time
// axis. It is fixed-width UTC so chronological and lexical order coincide.
const ReferenceTimeLayout = "2006-01-02T15:04:05Z"

// Key identifies one GRIB message within an archive: which model run,
// which ensemble member, how far into the forecast, which variable, and
// at which vertical level.
//
// Keys are immutable values, totally ordered lexicographically over the
// field order below.
type Key struct {
	ReferenceTime time.Time
	Member        EnsembleMember
	Step          time.Duration
	Variable      string
	Level         string
}

// Compare orders keys by (reference time, member, step, variable, level).
func (k Key) Compare(o Key) int {
	if c := k.ReferenceTime.Compare(o.ReferenceTime); c != 0 {
		return c
	}
	if c := k.Member.Compare(o.Member); c != 0 {
		return c
	}
	if k.Step != o.Step {
		if k.Step < o.Step {
			return -1
		}
		return 1
	}
	if c := strings.Compare(k.Variable, o.Variable); c != 0 {
		return c
	}
	return CompareLevels(k.Level, o.Level)
}

// Label returns the canonical label of the key along one dimension.
func (k Key) Label(dim Dimension) string {
	switch dim {
	case DimReferenceTime:
		return k.ReferenceTime.UTC().Format(ReferenceTimeLayout)
	case DimMember:
		return k.Member.String()
	case DimStep:
		return FormatStep(k.Step)
	case DimVariable:
		return k.Variable
	case DimLevel:
		return k.Level
	default:
		panic(fmt.Sprintf("coords: unknown dimension %d", dim))
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		k.Label(DimReferenceTime), k.Member, FormatStep(k.Step), k.Variable, k.Level)
}

// FormatStep renders a forecast step as the canonical "f006"-style label.
func FormatStep(d time.Duration) string {
	return fmt.Sprintf("f%03d", int(d.Hours()))
}

// ParseStep parses forecast-step spellings found in sidecar rows and
// canonical labels: "anl", "f006", "6 hour fcst", "2 day fcst".
func ParseStep(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "anl" || s == "f000":
		return 0, nil
	case strings.HasPrefix(s, "f"):
		h, err := strconv.Atoi(s[1:])
		if err != nil {
			return 0, fmt.Errorf("invalid forecast step %q: %w", s, err)
		}
		return time.Duration(h) * time.Hour, nil
	case strings.HasSuffix(s, " hour fcst"):
		h, err := strconv.Atoi(strings.TrimSuffix(s, " hour fcst"))
		if err != nil {
			return 0, fmt.Errorf("invalid forecast step %q: %w", s, err)
		}
		return time.Duration(h) * time.Hour, nil
	case strings.HasSuffix(s, " day fcst"):
		d, err := strconv.Atoi(strings.TrimSuffix(s, " day fcst"))
		if err != nil {
			return 0, fmt.Errorf("invalid forecast step %q: %w", s, err)
		}
		return time.Duration(d) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown forecast step %q", s)
	}
}

// ParseReferenceTime parses a canonical reference-time label.
func ParseReferenceTime(s string) (time.Time, error) {
	t, err := time.Parse(ReferenceTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference time %q: %w", s, err)
	}
	return t, nil
}
