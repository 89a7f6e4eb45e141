package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/atmolab/gribdex/coords"
	"github.com/atmolab/gribdex/idx"
)

// GEFS implements PathScheme for NOAA's Global Ensemble Forecast System
// archive (s3://noaa-gefs-pds). The bucket layout changed several times
// over the archive's life; the boundaries below were identified from the
// real paths in the bucket:
//
//	gefs.20170101/00/gec00.t00z.pgrb2aanl.idx
//	gefs.20180727/00/pgrb2a/gec00.t00z.pgrb2aanl.idx
//	gefs.20200923/12/atmos/pgrb2ap5/geavg.t12z.pgrb2a.0p50.f000.idx
//
// The two runs at 2020-09-23T00 and T06 published both the old and the new
// layout; the old layout's folders are the complete ones, so those two
// runs are treated as the middle generation.
type GEFS struct{}

var (
	gefsLayout2Start = time.Date(2018, 7, 27, 0, 0, 0, 0, time.UTC)
	gefsLayout3Start = time.Date(2020, 9, 23, 12, 0, 0, 0, time.UTC)
)

func gefsMemberToken(m coords.EnsembleMember) string {
	switch m.Kind {
	case coords.MemberControl:
		return "gec00"
	case coords.MemberPerturbed:
		return fmt.Sprintf("gep%02d", m.Number)
	case coords.MemberMean:
		return "geavg"
	default:
		return "gespr"
	}
}

func gefsParseMemberToken(tok string) (coords.EnsembleMember, error) {
	switch {
	case tok == "gec00":
		return coords.Control(), nil
	case tok == "geavg":
		return coords.Mean(), nil
	case tok == "gespr":
		return coords.Spread(), nil
	case strings.HasPrefix(tok, "gep"):
		n, err := strconv.ParseUint(tok[3:], 10, 16)
		if err != nil {
			return coords.EnsembleMember{}, fmt.Errorf("invalid GEFS member token %q", tok)
		}
		return coords.Perturbed(uint16(n)), nil
	default:
		return coords.EnsembleMember{}, fmt.Errorf("unknown GEFS member token %q", tok)
	}
}

// IdxPath generates the sidecar path for the file holding the key. The
// variable and level do not participate: GEFS packs every variable of a
// parameter set into one file per (run, member, step).
func (GEFS) IdxPath(k coords.Key) string {
	t := k.ReferenceTime.UTC()
	day := t.Format("gefs.20060102")
	hour := fmt.Sprintf("%02d", t.Hour())
	member := gefsMemberToken(k.Member)

	switch {
	case t.Before(gefsLayout2Start):
		step := "anl"
		if k.Step > 0 {
			step = coords.FormatStep(k.Step)
		}
		return fmt.Sprintf("%s/%s/%s.t%sz.pgrb2a%s.idx", day, hour, member, hour, step)
	case t.Before(gefsLayout3Start):
		step := "anl"
		if k.Step > 0 {
			step = coords.FormatStep(k.Step)
		}
		return fmt.Sprintf("%s/%s/pgrb2a/%s.t%sz.pgrb2a%s.idx", day, hour, member, hour, step)
	default:
		return fmt.Sprintf("%s/%s/atmos/pgrb2ap5/%s.t%sz.pgrb2a.0p50.%s.idx",
			day, hour, member, hour, coords.FormatStep(k.Step))
	}
}

var gefsStepRe = regexp.MustCompile(`^f\d{3}$`)

// ParseIdxPath recovers the run, member and step encoded in a GEFS sidecar
// path of any layout generation.
func (GEFS) ParseIdxPath(path string) (idx.FileContext, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return idx.FileContext{}, fmt.Errorf("GEFS path %q: want at least day/hour/file", path)
	}

	day, err := time.Parse("gefs.20060102", parts[0])
	if err != nil {
		return idx.FileContext{}, fmt.Errorf("GEFS path %q: %w", path, err)
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return idx.FileContext{}, fmt.Errorf("GEFS path %q: invalid cycle hour %q", path, parts[1])
	}

	name := strings.TrimSuffix(parts[len(parts)-1], ".idx")
	fields := strings.Split(name, ".")
	if len(fields) < 3 {
		return idx.FileContext{}, fmt.Errorf("GEFS path %q: unrecognized file name %q", path, name)
	}
	member, err := gefsParseMemberToken(fields[0])
	if err != nil {
		return idx.FileContext{}, fmt.Errorf("GEFS path %q: %w", path, err)
	}

	var step time.Duration
	switch {
	case gefsStepRe.MatchString(fields[len(fields)-1]):
		// New layout: trailing ".fNNN" component.
		step, err = coords.ParseStep(fields[len(fields)-1])
	case strings.HasPrefix(fields[2], "pgrb2a") || strings.HasPrefix(fields[2], "pgrb2b"):
		// Old layout: step fused onto the product token ("pgrb2aanl").
		step, err = coords.ParseStep(fields[2][len("pgrb2a"):])
	default:
		err = fmt.Errorf("no forecast step in %q", name)
	}
	if err != nil {
		return idx.FileContext{}, fmt.Errorf("GEFS path %q: %w", path, err)
	}

	return idx.FileContext{
		Path:          strings.TrimSuffix(path, ".idx"),
		ReferenceTime: day.Add(time.Duration(hour) * time.Hour),
		Member:        member,
		Step:          step,
	}, nil
}

// RunPrefix returns the depth-2 prefix holding one run's files.
func (GEFS) RunPrefix(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%02d/", t.Format("gefs.20060102"), t.Hour())
}

func (GEFS) ParseRunPrefix(prefix string) (time.Time, error) {
	return ParseRunPrefix(prefix)
}

// ParseRunPrefix converts a depth-2 listing prefix such as
// "gefs.20191122/18" into the run's reference datetime.
func ParseRunPrefix(prefix string) (time.Time, error) {
	parts := strings.Split(strings.Trim(prefix, "/"), "/")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("run prefix %q: want gefs.YYYYMMDD/HH", prefix)
	}
	day, err := time.Parse("gefs.20060102", parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("run prefix %q: %w", prefix, err)
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("run prefix %q: invalid cycle hour", prefix)
	}
	return day.Add(time.Duration(hour) * time.Hour), nil
}
