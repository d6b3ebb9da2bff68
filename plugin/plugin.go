// Package plugin provides an extensible plugin system for subledger.
// Plugins can hook into ledger lifecycle events to extend functionality:
// audit trails, metrics, off-chain indexing.
package plugin

import (
	"context"

	"github.com/xraph/subledger/event"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. The ledger is passed as
// interface{} to avoid an import cycle.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, ledger interface{}) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Fungible ledger hooks
// ──────────────────────────────────────────────────

// OnTransfer is called after a successful balance transfer.
type OnTransfer interface {
	Plugin
	OnTransfer(ctx context.Context, from, to id.Principal, amount types.Amount) error
}

// OnApproval is called after an allowance is set, increased or decreased.
type OnApproval interface {
	Plugin
	OnApproval(ctx context.Context, owner, spender id.Principal, amount types.Amount) error
}

// OnEmergencyBurn is called after an admin emergency burn.
type OnEmergencyBurn interface {
	Plugin
	OnEmergencyBurn(ctx context.Context, acct id.Principal, amount types.Amount) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed is called after a tiered mint creates a subscription.
type OnSubscribed interface {
	Plugin
	OnSubscribed(ctx context.Context, rec *subscription.Record, amount types.Amount) error
}

// OnCancelled is called after a prorated cancellation. refund is the
// advisory amount for off-ledger disbursement; burned is the full
// holding destroyed.
type OnCancelled interface {
	Plugin
	OnCancelled(ctx context.Context, rec *subscription.Record, refund, burned types.Amount) error
}

// OnRenewed is called after a subscription is reactivated.
type OnRenewed interface {
	Plugin
	OnRenewed(ctx context.Context, rec *subscription.Record) error
}

// OnAutoRenewToggled is called after the auto-renew flag is flipped.
type OnAutoRenewToggled interface {
	Plugin
	OnAutoRenewToggled(ctx context.Context, acct id.Principal, enabled bool) error
}

// ──────────────────────────────────────────────────
// Guard hooks
// ──────────────────────────────────────────────────

// OnAdminTransferred is called after the admin role changes hands.
type OnAdminTransferred interface {
	Plugin
	OnAdminTransferred(ctx context.Context, previous, current id.Principal) error
}

// OnMinterChanged is called after the minter role is reassigned.
type OnMinterChanged interface {
	Plugin
	OnMinterChanged(ctx context.Context, previous, current id.Principal) error
}

// OnPauseChanged is called after the global pause flag changes.
type OnPauseChanged interface {
	Plugin
	OnPauseChanged(ctx context.Context, paused bool) error
}

// ──────────────────────────────────────────────────
// Indexer hook
// ──────────────────────────────────────────────────

// OnEvent receives every appended event record, in order. Implement
// this for off-chain indexers that want the raw type-tag + payload
// stream instead of typed hooks.
type OnEvent interface {
	Plugin
	OnEvent(ctx context.Context, e *event.Event) error
}
