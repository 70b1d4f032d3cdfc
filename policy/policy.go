package policy

import (
	"go.starlark.net/starlark"
)

// Tier names a closed capability set. The enumeration is fixed at compile
// time; callers select among these values and nothing else.
type Tier string

// Capability tiers
const (
	// TierMinimal exposes only safe primitive helpers on top of the
	// interpreter's core: arithmetic, comparison, container construction,
	// and printing into the capture buffer.
	TierMinimal Tier = "minimal"

	// TierAnalysis adds the sanctioned data-analysis modules (math, stats,
	// ta) as pre-bound handles with explicitly reviewed member sets.
	TierAnalysis Tier = "analysis"
)

// ParseTier maps a wire string onto the closed enumeration, failing closed
// to TierMinimal for anything unrecognized.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierMinimal, TierAnalysis:
		return Tier(s)
	default:
		return TierMinimal
	}
}

// Table is the immutable tier-to-namespace mapping. It is built once at
// process start and shared read-only by every run; all values in it are
// frozen so concurrent runs cannot race on them.
type Table struct {
	tiers map[Tier]starlark.StringDict
}

// NewTable builds the policy table. Every exposed value is frozen before
// the table becomes visible.
func NewTable() *Table {
	minimal := minimalNames()
	analysis := make(starlark.StringDict, len(minimal)+3)
	for name, v := range minimal {
		analysis[name] = v
	}
	analysis["math"] = mathModule()
	analysis["stats"] = statsModule()
	analysis["ta"] = taModule()

	for _, dict := range []starlark.StringDict{minimal, analysis} {
		for _, v := range dict {
			v.Freeze()
		}
	}

	return &Table{tiers: map[Tier]starlark.StringDict{
		TierMinimal:  minimal,
		TierAnalysis: analysis,
	}}
}

// Resolve returns the exposed names for a tier. It is total: unrecognized
// tiers fail closed to the minimal set. The returned dict is shared and
// must be treated as read-only; every value in it is frozen.
func (t *Table) Resolve(tier Tier) starlark.StringDict {
	if names, ok := t.tiers[tier]; ok {
		return names
	}
	return t.tiers[TierMinimal]
}

// Tiers lists the closed enumeration, minimal first.
func (t *Table) Tiers() []Tier {
	return []Tier{TierMinimal, TierAnalysis}
}
