// Package types provides type definitions for structured data used throughout the resume renderer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
)

// Tier represents a caller's subscription level. Tiers are totally ordered:
// TierFree < TierBasic < TierProfessional.
type Tier int

const (
	// TierFree is the default tier for every caller and every template
	TierFree Tier = iota
	// TierBasic unlocks the mid-range templates
	TierBasic
	// TierProfessional unlocks every template
	TierProfessional
)

var tierNames = map[Tier]string{
	TierFree:         "FREE",
	TierBasic:        "BASIC",
	TierProfessional: "PROFESSIONAL",
}

// ErrUnknownTier is returned by ParseTier for values outside the known set
type ErrUnknownTier struct {
	Value string
}

func (e *ErrUnknownTier) Error() string {
	return fmt.Sprintf("unknown subscription tier: %q", e.Value)
}

// ParseTier parses a tier name case-insensitively, ignoring surrounding whitespace.
func ParseTier(s string) (Tier, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	for tier, name := range tierNames {
		if name == normalized {
			return tier, nil
		}
	}
	return TierFree, &ErrUnknownTier{Value: s}
}

// String returns the canonical upper-case name of the tier
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Valid reports whether t is one of the declared tiers
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// Covers reports whether a caller holding t may use something that requires required.
// Values outside the declared tiers cover nothing and are covered by nothing.
func (t Tier) Covers(required Tier) bool {
	return t.Valid() && required.Valid() && required <= t
}

// MarshalText implements encoding.TextMarshaler
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unlike descriptor loading,
// it is strict: unknown values are an error.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// AllTiers returns every tier in ascending order
func AllTiers() []Tier {
	return []Tier{TierFree, TierBasic, TierProfessional}
}
