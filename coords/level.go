package coords

import (
	"strconv"
	"strings"
)

// Vertical levels are ordered by physical altitude, not lexically: the
// surface sits below fixed heights above ground, which sit below isobaric
// levels ordered by decreasing pressure, capped by the nominal top of the
// atmosphere. Labels the parser cannot classify sort last, lexically, so
// the order stays total and deterministic.

type levelClass uint8

const (
	classBelowGround levelClass = iota
	classMeanSeaLevel
	classSurface
	classAboveGround
	classIsobaric
	classTopOfAtmosphere
	classOpaque
)

type parsedLevel struct {
	class levelClass
	// altitude sorts ascending within a class: metres above ground for
	// classAboveGround, negated hPa for classIsobaric (10 mb is higher up
	// than 850 mb), negated depth for classBelowGround.
	altitude float64
}

func classifyLevel(label string) parsedLevel {
	s := strings.TrimSpace(strings.ToLower(label))
	switch s {
	case "mean sea level":
		return parsedLevel{class: classMeanSeaLevel}
	case "surface":
		return parsedLevel{class: classSurface}
	case "top of atmosphere", "nominal top of atmosphere":
		return parsedLevel{class: classTopOfAtmosphere}
	}
	if v, ok := strings.CutSuffix(s, " mb"); ok {
		if hpa, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsedLevel{class: classIsobaric, altitude: -hpa}
		}
	}
	if v, ok := strings.CutSuffix(s, " m above ground"); ok {
		if m, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsedLevel{class: classAboveGround, altitude: m}
		}
	}
	if v, ok := strings.CutSuffix(s, " m below ground"); ok {
		if m, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsedLevel{class: classBelowGround, altitude: -m}
		}
	}
	return parsedLevel{class: classOpaque}
}

// CompareLevels orders two vertical-level labels by physical altitude.
func CompareLevels(a, b string) int {
	if a == b {
		return 0
	}
	pa, pb := classifyLevel(a), classifyLevel(b)
	if pa.class != pb.class {
		if pa.class < pb.class {
			return -1
		}
		return 1
	}
	if pa.altitude != pb.altitude {
		if pa.altitude < pb.altitude {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
