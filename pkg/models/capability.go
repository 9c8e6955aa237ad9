package models

import (
	"sort"
	"strings"
)

// CapabilitySet is a set of capability names such as "security-audit".
// It is stored as a sorted slice of unique, trimmed names.
type CapabilitySet []string

// NewCapabilitySet normalizes names into a sorted set, dropping blanks and duplicates.
func NewCapabilitySet(names ...string) CapabilitySet {
	seen := make(map[string]struct{}, len(names))
	out := make(CapabilitySet, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Normalize returns the set in canonical form.
func (c CapabilitySet) Normalize() CapabilitySet {
	return NewCapabilitySet(c...)
}

// Has reports whether name is in the set.
func (c CapabilitySet) Has(name string) bool {
	for _, n := range c {
		if n == name {
			return true
		}
	}
	return false
}

// Covers reports whether c is a superset of required.
func (c CapabilitySet) Covers(required CapabilitySet) bool {
	for _, r := range required {
		if !c.Has(r) {
			return false
		}
	}
	return true
}

// Clone returns a copy of the set.
func (c CapabilitySet) Clone() CapabilitySet {
	return CapabilitySet(cloneStrings(c))
}

// String renders the set as "{a,b}".
func (c CapabilitySet) String() string {
	return "{" + strings.Join(c, ",") + "}"
}
