// Package tier defines the subscription tiers and the static
// tier→duration table consulted at mint time.
package tier

import "fmt"

// Tier identifies a subscription class with a fixed entitlement duration.
type Tier uint8

// The three tiers provisioned at genesis.
const (
	Basic      Tier = 1
	Pro        Tier = 2
	Enterprise Tier = 3
)

// String returns the tier name, or "tier(N)" for unknown identifiers.
func (t Tier) String() string {
	switch t {
	case Basic:
		return "basic"
	case Pro:
		return "pro"
	case Enterprise:
		return "enterprise"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Table maps tier identifiers to entitlement durations in block-height
// units. It is seeded once at genesis and read-only afterwards; a tier
// absent from the table is invalid for minting.
type Table map[Tier]uint64

// DefaultTable returns the genesis tier table. One block-height unit is
// one consensus round; at ten-minute rounds Basic is roughly 30 days,
// Pro 90 and Enterprise 365.
func DefaultTable() Table {
	return Table{
		Basic:      4320,
		Pro:        12960,
		Enterprise: 52560,
	}
}

// Duration looks up the duration for a tier. The second return is false
// when the tier is not in the table.
func (tb Table) Duration(t Tier) (uint64, bool) {
	d, ok := tb[t]
	return d, ok
}
