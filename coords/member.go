package coords

import (
	"fmt"
	"strconv"
	"strings"
)

// MemberKind discriminates the ensemble-member variants.
type MemberKind uint8

const (
	// MemberControl is the unperturbed control run.
	MemberControl MemberKind = iota
	// MemberPerturbed is one of the perturbed runs, identified by ordinal.
	MemberPerturbed
	// MemberMean is the ensemble mean product.
	MemberMean
	// MemberSpread is the ensemble spread product.
	MemberSpread
)

// EnsembleMember identifies one run within an ensemble forecast.
//
// Number is meaningful only for MemberPerturbed. The zero value is the
// control member.
type EnsembleMember struct {
	Kind   MemberKind
	Number uint16
}

// Control returns the control member.
func Control() EnsembleMember { return EnsembleMember{Kind: MemberControl} }

// Perturbed returns the n-th perturbed member (1-based by provider convention).
func Perturbed(n uint16) EnsembleMember {
	return EnsembleMember{Kind: MemberPerturbed, Number: n}
}

// Mean returns the ensemble-mean member.
func Mean() EnsembleMember { return EnsembleMember{Kind: MemberMean} }

// Spread returns the ensemble-spread member.
func Spread() EnsembleMember { return EnsembleMember{Kind: MemberSpread} }

// Compare orders members Control < Perturbed(1..n) < Mean < Spread.
func (m EnsembleMember) Compare(o EnsembleMember) int {
	if m.Kind != o.Kind {
		if m.Kind < o.Kind {
			return -1
		}
		return 1
	}
	if m.Number != o.Number {
		if m.Number < o.Number {
			return -1
		}
		return 1
	}
	return 0
}

// String renders the canonical label: "c00", "p03", "avg", "spr".
func (m EnsembleMember) String() string {
	switch m.Kind {
	case MemberControl:
		return "c00"
	case MemberPerturbed:
		return fmt.Sprintf("p%02d", m.Number)
	case MemberMean:
		return "avg"
	case MemberSpread:
		return "spr"
	default:
		return fmt.Sprintf("member(%d)", m.Kind)
	}
}

// ParseMember parses a canonical member label produced by String.
func ParseMember(s string) (EnsembleMember, error) {
	switch {
	case s == "c00":
		return Control(), nil
	case s == "avg":
		return Mean(), nil
	case s == "spr":
		return Spread(), nil
	case strings.HasPrefix(s, "p"):
		n, err := strconv.ParseUint(s[1:], 10, 16)
		if err != nil {
			return EnsembleMember{}, fmt.Errorf("invalid perturbed member %q: %w", s, err)
		}
		return Perturbed(uint16(n)), nil
	default:
		return EnsembleMember{}, fmt.Errorf("unknown ensemble member label %q", s)
	}
}
