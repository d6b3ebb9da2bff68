// Package store defines the storage contract for the whole durable
// state surface: role singletons, balances, total supply, allowances,
// subscription records, the tier table and the event log.
package store

import (
	"context"

	"github.com/xraph/subledger/event"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/tier"
	"github.com/xraph/subledger/types"
)

// Roles holds the singleton principals and the global pause flag.
type Roles struct {
	Admin  id.Principal `json:"admin"`
	Minter id.Principal `json:"minter"`
	Paused bool         `json:"paused"`
}

// Store is the unified storage interface. Instead of embedding
// sub-interfaces, all methods are declared explicitly to avoid naming
// conflicts.
//
// Every method is individually atomic. The multi-write ledger
// operations (Transfer, MintSubscription, CancelSubscription, Burn)
// are composite methods so each backend can commit them as one unit —
// a mutex section, a SQL transaction — and they re-check their own
// invariants so a violated precondition can never half-apply.
// Serialization of whole entry points is the engine's job.
type Store interface {
	// Role singletons. SeedRoles installs the genesis roles only when
	// none exist yet; Roles returns subledger.ErrStoreNotReady before
	// seeding.
	Roles(ctx context.Context) (Roles, error)
	SeedRoles(ctx context.Context, admin, minter id.Principal) error
	SetAdmin(ctx context.Context, admin id.Principal) error
	SetMinter(ctx context.Context, minter id.Principal) error
	SetPaused(ctx context.Context, paused bool) error

	// Balances and supply. An absent balance reads as zero.
	Balance(ctx context.Context, acct id.Principal) (types.Amount, error)
	TotalSupply(ctx context.Context) (types.Amount, error)

	// Allowances. An absent entry reads as zero — the only place
	// absence is defaulted rather than surfaced.
	Allowance(ctx context.Context, owner, spender id.Principal) (types.Amount, error)
	SetAllowance(ctx context.Context, owner, spender id.Principal, amount types.Amount) error

	// Transfer debits from, credits to, and — when spender is non-nil —
	// decrements the (from, spender) allowance by exactly amount, all in
	// one unit. Fails with subledger.ErrInsufficientBalance or
	// subledger.ErrInsufficientAllowance without mutating.
	Transfer(ctx context.Context, from, to id.Principal, amount types.Amount, spender *id.Principal) error

	// Burn debits the account and decrements total supply in one unit.
	Burn(ctx context.Context, acct id.Principal, amount types.Amount) error

	// Subscription records, keyed by account. Subscription returns
	// subledger.ErrNoSubscription when absent.
	Subscription(ctx context.Context, acct id.Principal) (*subscription.Record, error)
	PutSubscription(ctx context.Context, rec *subscription.Record) error

	// MintSubscription credits the account, increments total supply and
	// inserts the record in one unit. Fails with
	// subledger.ErrAlreadySubscribed if a record exists for the account.
	MintSubscription(ctx context.Context, rec *subscription.Record, amount types.Amount) error

	// CancelSubscription burns exactly burn from the account, decrements
	// total supply and sets the record inactive in one unit. All other
	// record fields are retained.
	CancelSubscription(ctx context.Context, acct id.Principal, burn types.Amount) error

	// Tier table. SeedTiers installs entries only when the table is
	// empty; TierDuration returns subledger.ErrInvalidTier when absent.
	TierDuration(ctx context.Context, t tier.Tier) (uint64, error)
	Tiers(ctx context.Context) (tier.Table, error)
	SeedTiers(ctx context.Context, table tier.Table) error

	// Append-only event log.
	AppendEvent(ctx context.Context, e *event.Event) error
	Events(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
