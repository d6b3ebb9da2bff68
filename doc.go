// Package subledger provides an embeddable subscription-accounting ledger
// for Go applications.
//
// Subledger is designed as a library, not a service. Import it directly
// into your Go application and drive it from your own payment and API
// layers. It provides:
//
//   - A fungible token ledger with owner and delegated (allowance) transfers
//   - Role-gated minting and burning (admin, minter, pause guard)
//   - A tiered subscription lifecycle: mint, cancel with prorated refund,
//     renew, auto-renew delegation
//   - Block-height based entitlement checks
//   - An append-only event log plus a plugin hook pipeline for indexers
//   - Pluggable storage: memory, SQLite, Postgres, MongoDB
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/xraph/subledger"
//	    "github.com/xraph/subledger/store/memory"
//	)
//
//	admin := subledger.NewPrincipal()
//	l := subledger.New(memory.New(), admin)
//
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// The minter (typically a payment-routing collaborator) creates a
// subscription and its backing balance in one atomic step:
//
//	err := l.SubscribeAndMint(ctx, minter, user, subledger.TierBasic,
//	    subledger.Tokens(1000), true)
//
// Entitlement is a derived check against the current block height:
//
//	active, err := l.IsActive(ctx, user)
//
// Cancellation burns the whole balance and reports a prorated refund for
// the unused portion of the subscription window:
//
//	refund, err := l.CancelAndBurn(ctx, user)
//
// # Accounting
//
// All amounts use integer arithmetic: the Amount type carries micro
// units (6 implied decimals), so one token is 1_000_000 micro. The sum
// of all balances equals the total supply after every operation, and a
// rejected operation changes nothing.
//
// # Time
//
// Subledger measures subscription windows in block heights rather than
// wall-clock time. The default clock derives a height from wall time in
// ten-minute rounds; supply a ManualClock in tests or wire your own
// chain-height source via the Clock interface.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account principal
//	sub_01h2xcejqtf2nbrexx3vqjhp41   // Subscription record
//	evt_01h455vb4pex5vsknk084sn02q   // Ledger event
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package subledger
