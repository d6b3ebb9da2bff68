package subledger

import (
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/tier"
	"github.com/xraph/subledger/types"
)

// Re-export common types for convenience so users don't have to import
// the leaf packages for everyday calls.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Principal is re-exported from id package.
type Principal = id.Principal

// Tier is re-exported from tier package.
type Tier = tier.Tier

// Re-export Amount constructors
var (
	Tokens = types.Tokens
	Micro  = types.Micro
	Zero   = types.Zero
	Sum    = types.Sum
)

// Re-export principal helpers
var (
	NewPrincipal   = id.NewPrincipal
	ParsePrincipal = id.ParsePrincipal
	NilPrincipal   = id.Nil
)

// Re-export tier constants
const (
	TierBasic      = tier.Basic
	TierPro        = tier.Pro
	TierEnterprise = tier.Enterprise
)
