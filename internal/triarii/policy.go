package triarii

import (
	"fmt"
	"strings"
)

// SeedMode selects where the Four or Fewer search starts.
type SeedMode string

const (
	// SeedCorner starts from the opponent's home corner only.
	SeedCorner SeedMode = "corner"
	// SeedEdge starts from every cell of the opponent's home row, treating
	// the endzone as adjacent to the whole edge.
	SeedEdge SeedMode = "edge"
)

// ParseSeedMode accepts "corner" and "edge"; empty means corner.
func ParseSeedMode(s string) (SeedMode, error) {
	switch SeedMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeedCorner:
		return SeedCorner, nil
	case SeedEdge:
		return SeedEdge, nil
	}
	return SeedCorner, fmt.Errorf("unknown four-or-fewer seed %q", s)
}

// Policy holds the tunable rule constants.
type Policy struct {
	// PinRatio: a stack of n pieces can pin an opposing stack of at most
	// n/PinRatio pieces, paying opponent*PinRatio from the budget.
	PinRatio int
	// OversizeThreshold: opposing stacks larger than this are pinned by any
	// stack for a cost of one piece.
	OversizeThreshold int
	// SmallStack is the largest stack size that satisfies Four or Fewer.
	SmallStack int
	// EndzoneTarget is the endzone count that wins.
	EndzoneTarget int
	Seed          SeedMode
}

// DefaultPolicy returns the standard rules.
func DefaultPolicy() Policy {
	return Policy{
		PinRatio:          2,
		OversizeThreshold: 8,
		SmallStack:        4,
		EndzoneTarget:     6,
		Seed:              SeedCorner,
	}
}

// withDefaults fills unset fields, so the zero Policy plays standard rules.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.PinRatio <= 0 {
		p.PinRatio = d.PinRatio
	}
	if p.OversizeThreshold <= 0 {
		p.OversizeThreshold = d.OversizeThreshold
	}
	if p.SmallStack <= 0 {
		p.SmallStack = d.SmallStack
	}
	if p.EndzoneTarget <= 0 {
		p.EndzoneTarget = d.EndzoneTarget
	}
	if p.Seed == "" {
		p.Seed = d.Seed
	}
	return p
}

// Validate rejects policies the engine cannot run with.
func (p Policy) Validate() error {
	if p.PinRatio < 1 {
		return fmt.Errorf("pin ratio must be >= 1, got %d", p.PinRatio)
	}
	if p.OversizeThreshold < 1 {
		return fmt.Errorf("oversize threshold must be >= 1, got %d", p.OversizeThreshold)
	}
	if p.SmallStack < 1 {
		return fmt.Errorf("small stack threshold must be >= 1, got %d", p.SmallStack)
	}
	if p.EndzoneTarget < 1 {
		return fmt.Errorf("endzone target must be >= 1, got %d", p.EndzoneTarget)
	}
	if p.Seed != SeedCorner && p.Seed != SeedEdge {
		return fmt.Errorf("unknown four-or-fewer seed %q", p.Seed)
	}
	return nil
}
