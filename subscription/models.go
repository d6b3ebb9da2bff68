package subscription

import (
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/tier"
	"github.com/xraph/subledger/types"
)

// Record is the per-account subscription state. At most one record
// exists per account; it is replaced in place on renewal and retained
// as history after cancellation, never deleted.
type Record struct {
	types.Entity
	ID          id.SubscriptionID `json:"id"`
	Account     id.Principal      `json:"account"`
	Tier        tier.Tier         `json:"tier"`
	StartHeight uint64            `json:"start_height"`
	// Duration is copied from the tier table at mint time and kept
	// through renewals; it is never re-looked-up.
	Duration  uint64 `json:"duration"`
	AutoRenew bool   `json:"auto_renew"`
	// Active is the stored flag. It is not flipped automatically when
	// the expiration height passes; see EntitledAt.
	Active bool `json:"active"`
}

// ExpirationHeight returns the block height at which entitlement lapses.
func (r *Record) ExpirationHeight() uint64 {
	return r.StartHeight + r.Duration
}

// EntitledAt is the derived "currently entitled" predicate: the stored
// active flag is set and the given height has not passed the expiration
// height. A lapsed subscription keeps Active=true but stops being
// entitled here.
func (r *Record) EntitledAt(height uint64) bool {
	return r.Active && height <= r.ExpirationHeight()
}

// Renewable reports whether the record can be renewed: only an
// inactive (cancelled or deactivated) record may be reactivated.
func (r *Record) Renewable() bool {
	return !r.Active
}
