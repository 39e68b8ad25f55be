// Package quality maps an operator-facing quality level to the concrete
// freshness and seller-tenure gates applied while filtering leads.
package quality

// Policy carries the gates derived from a slot's quality level.
type Policy struct {
	MinMemberMonths int `json:"min_member_months"`
	MaxAgeHours     int `json:"max_age_hours"`
}

// Mapping returns the policy for a quality level. Levels outside [0, 100]
// are clamped before lookup.
func Mapping(qualityLevel int) Policy {
	q := qualityLevel
	if q < 0 {
		q = 0
	}
	if q > 100 {
		q = 100
	}
	switch {
	case q >= 90:
		return Policy{MinMemberMonths: 24, MaxAgeHours: 24}
	case q >= 70:
		return Policy{MinMemberMonths: 12, MaxAgeHours: 36}
	case q >= 40:
		return Policy{MinMemberMonths: 6, MaxAgeHours: 48}
	default:
		return Policy{MinMemberMonths: 0, MaxAgeHours: 48}
	}
}
