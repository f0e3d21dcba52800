package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Tier is the desirability class of a commute route. Higher values rank better.
type Tier uint8

const (
	// TierUnknown is the zero value and is never valid on a route.
	TierUnknown Tier = iota
	TierDirect
	TierGood
	TierExcellent
	TierPremium
)

// AllTiers returns every valid tier, best first.
func AllTiers() []Tier {
	return []Tier{TierPremium, TierExcellent, TierGood, TierDirect}
}

func (t Tier) String() string {
	switch t {
	case TierPremium:
		return "PREMIUM"
	case TierExcellent:
		return "EXCELLENT"
	case TierGood:
		return "GOOD"
	case TierDirect:
		return "DIRECT"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is one of the four declared tiers.
func (t Tier) Valid() bool {
	return t >= TierDirect && t <= TierPremium
}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PREMIUM":
		return TierPremium, nil
	case "EXCELLENT":
		return TierExcellent, nil
	case "GOOD":
		return TierGood, nil
	case "DIRECT":
		return TierDirect, nil
	default:
		return TierUnknown, eris.Errorf("model: unknown tier %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, eris.Errorf("model: cannot marshal invalid tier %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
