package subledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/subledger/event"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/plugin"
	"github.com/xraph/subledger/store"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/tier"
	"github.com/xraph/subledger/types"
)

// Ledger is the subscription-accounting engine. It fuses the access
// guard, the fungible balance ledger and the subscription lifecycle
// manager over one store, executing each entry point as a single
// serialized state transition: every validation runs, in order, before
// the first mutation, and a rejected call changes nothing.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   Clock

	genesisAdmin id.Principal
	tiers        tier.Table

	// mu scopes each mutating operation so concurrent callers never
	// observe an in-flight intermediate state.
	mu sync.Mutex
}

// New creates a Ledger over the given store. genesisAdmin becomes the
// admin (and, until reassigned, the minter) when Start seeds a fresh
// store; an existing store keeps its recorded roles.
func New(s store.Store, genesisAdmin id.Principal, opts ...Option) *Ledger {
	l := &Ledger{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		genesisAdmin: genesisAdmin,
		tiers:        tier.DefaultTable(),
	}
	l.clock = NewIntervalClock(time.Now(), 10*time.Minute)

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithClock sets the block-height source.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithTierTable overrides the genesis tier table. The table is seeded
// once at Start and read-only afterwards; this has no effect on a store
// that was already seeded.
func WithTierTable(t tier.Table) Option {
	return func(l *Ledger) {
		l.tiers = t
	}
}

// Start migrates the store, seeds the genesis roles and tier table when
// absent, and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if l.genesisAdmin.IsNil() {
		return ErrZeroAddress
	}

	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	// Minter defaults to admin until reassigned to a payment router.
	if err := l.store.SeedRoles(ctx, l.genesisAdmin, l.genesisAdmin); err != nil {
		return err
	}
	if err := l.store.SeedTiers(ctx, l.tiers); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("subledger started",
		"admin", l.genesisAdmin.String(),
		"tiers", len(l.tiers),
		"height", l.clock.Height(),
	)

	return nil
}

// Stop shuts down the Ledger.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Height returns the current block height from the configured clock.
func (l *Ledger) Height() uint64 { return l.clock.Height() }

// ──────────────────────────────────────────────────
// Access & pause guard
// ──────────────────────────────────────────────────

// TransferAdmin replaces the admin principal. Only the current admin
// may call it; the zero sentinel is rejected as the new admin. Not
// gated by pause.
func (l *Ledger) TransferAdmin(ctx context.Context, caller, newAdmin id.Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return err
	}
	if err := authorize(roles, caller, roleAdmin); err != nil {
		return err
	}
	if err := requireNonZero(newAdmin); err != nil {
		return err
	}

	if err := l.store.SetAdmin(ctx, newAdmin); err != nil {
		return err
	}

	l.emit(ctx, event.TypeAdminTransferred, caller, l.clock.Height(), map[string]any{
		event.FieldAdmin: newAdmin.String(),
	})
	l.plugins.EmitAdminTransferred(ctx, roles.Admin, newAdmin)

	l.logger.Info("admin transferred",
		"previous", roles.Admin.String(),
		"current", newAdmin.String(),
	)

	return nil
}

// SetMinter reassigns the minter principal, intended to point at a
// payment-routing collaborator. Admin only; not gated by pause.
func (l *Ledger) SetMinter(ctx context.Context, caller, newMinter id.Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return err
	}
	if err := authorize(roles, caller, roleAdmin); err != nil {
		return err
	}
	if err := requireNonZero(newMinter); err != nil {
		return err
	}

	if err := l.store.SetMinter(ctx, newMinter); err != nil {
		return err
	}

	l.emit(ctx, event.TypeMinterChanged, caller, l.clock.Height(), map[string]any{
		event.FieldMinter: newMinter.String(),
	})
	l.plugins.EmitMinterChanged(ctx, roles.Minter, newMinter)

	return nil
}

// SetPaused sets the global pause flag and returns the new value.
// Admin only; never gated by pause, so the admin can always unpause.
func (l *Ledger) SetPaused(ctx context.Context, caller id.Principal, paused bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return false, err
	}
	if err := authorize(roles, caller, roleAdmin); err != nil {
		return false, err
	}

	if err := l.store.SetPaused(ctx, paused); err != nil {
		return false, err
	}

	l.emit(ctx, event.TypePauseChanged, caller, l.clock.Height(), map[string]any{
		event.FieldPaused: paused,
	})
	l.plugins.EmitPauseChanged(ctx, paused)

	l.logger.Info("pause flag changed", "paused", paused)

	return paused, nil
}

// ──────────────────────────────────────────────────
// Fungible ledger
// ──────────────────────────────────────────────────

// Transfer moves amount from one account to another. The caller must be
// the owner or hold sufficient allowance from the owner; a delegated
// transfer decrements the (from, caller) allowance by exactly amount,
// while owner self-transfers never touch allowances.
func (l *Ledger) Transfer(ctx context.Context, caller, from, to id.Principal, amount types.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return err
	}
	if err := requireUnpaused(roles); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := requireNonZero(to); err != nil {
		return err
	}
	if err := requireNonZero(from); err != nil {
		return err
	}

	balance, err := l.store.Balance(ctx, from)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	var spender *id.Principal
	if !caller.Equal(from) {
		allowance, err := l.store.Allowance(ctx, from, caller)
		if err != nil {
			return err
		}
		if allowance.LessThan(amount) {
			return ErrInsufficientAllowance
		}
		spender = &caller
	}

	if err := l.store.Transfer(ctx, from, to, amount, spender); err != nil {
		return err
	}

	l.emit(ctx, event.TypeTransfer, caller, l.clock.Height(), map[string]any{
		event.FieldFrom:   from.String(),
		event.FieldTo:     to.String(),
		event.FieldAmount: amount.Micro,
	})
	l.plugins.EmitTransfer(ctx, from, to, amount)

	return nil
}

// Approve sets (not adds) the caller's allowance for spender.
func (l *Ledger) Approve(ctx context.Context, caller, spender id.Principal, amount types.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.approve(ctx, caller, spender, amount)
}

// approve is the shared validation path for Approve and the
// increase/decrease operations. Callers hold l.mu.
func (l *Ledger) approve(ctx context.Context, caller, spender id.Principal, amount types.Amount) error {
	roles, err := l.store.Roles(ctx)
	if err != nil {
		return err
	}
	if err := requireUnpaused(roles); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := requireNonZero(spender); err != nil {
		return err
	}

	if err := l.store.SetAllowance(ctx, caller, spender, amount); err != nil {
		return err
	}

	l.emit(ctx, event.TypeApproval, caller, l.clock.Height(), map[string]any{
		event.FieldSpender: spender.String(),
		event.FieldAmount:  amount.Micro,
	})
	l.plugins.EmitApproval(ctx, caller, spender, amount)

	return nil
}

// IncreaseAllowance atomically raises the caller's allowance for
// spender by delta, delegating to the Approve validation path.
func (l *Ledger) IncreaseAllowance(ctx context.Context, caller, spender id.Principal, delta types.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return err
	}
	if err := requireUnpaused(roles); err != nil {
		return err
	}
	if !delta.IsPositive() {
		return ErrInvalidAmount
	}

	current, err := l.store.Allowance(ctx, caller, spender)
	if err != nil {
		return err
	}

	return l.approve(ctx, caller, spender, current.Add(delta))
}

// DecreaseAllowance atomically lowers the caller's allowance for
// spender by delta. It rejects a subtraction that would go negative,
// then delegates to the Approve validation path.
func (l *Ledger) DecreaseAllowance(ctx context.Context, caller, spender id.Principal, delta types.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return err
	}
	if err := requireUnpaused(roles); err != nil {
		return err
	}
	if !delta.IsPositive() {
		return ErrInvalidAmount
	}

	current, err := l.store.Allowance(ctx, caller, spender)
	if err != nil {
		return err
	}
	if current.LessThan(delta) {
		return ErrInsufficientAllowance
	}

	return l.approve(ctx, caller, spender, current.Subtract(delta))
}

// ──────────────────────────────────────────────────
// Subscription lifecycle
// ──────────────────────────────────────────────────

// SubscribeAndMint mints amount into recipient's balance and creates
// their subscription record at the current height. Minter only — the
// payment-routing collaborator calls this after collecting payment.
// One record per account, ever: a second mint fails regardless of
// whether the existing record is still active. Not gated by pause
// (minting is a minter-role operation, not a user-facing one).
func (l *Ledger) SubscribeAndMint(ctx context.Context, caller, recipient id.Principal, t tier.Tier, amount types.Amount, autoRenew bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return err
	}
	if err := authorize(roles, caller, roleMinter); err != nil {
		return err
	}
	if err := requireNonZero(recipient); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	duration, err := l.store.TierDuration(ctx, t)
	if err != nil {
		return err
	}

	if _, err := l.store.Subscription(ctx, recipient); err == nil {
		return ErrAlreadySubscribed
	} else if !IsNotFound(err) {
		return err
	}

	height := l.clock.Height()
	rec := &subscription.Record{
		Entity:      types.NewEntity(),
		ID:          id.NewSubscriptionID(),
		Account:     recipient,
		Tier:        t,
		StartHeight: height,
		Duration:    duration,
		AutoRenew:   autoRenew,
		Active:      true,
	}

	if err := l.store.MintSubscription(ctx, rec, amount); err != nil {
		return err
	}

	l.emit(ctx, event.TypeSubscribed, caller, height, map[string]any{
		event.FieldUser:   recipient.String(),
		event.FieldTier:   uint8(t),
		event.FieldAmount: amount.Micro,
	})
	l.plugins.EmitSubscribed(ctx, rec, amount)

	l.logger.Info("subscription minted",
		"user", recipient.String(),
		"tier", t.String(),
		"amount", amount.String(),
		"height", height,
	)

	return nil
}

// CancelAndBurn cancels the caller's active subscription, burns their
// entire balance and returns the prorated refund for the unused span:
// floor(balance * (duration - used) / duration), computed on the full
// pre-burn balance. The refund is advisory output for an external
// payment component; nothing is disbursed in-ledger. When the
// subscription has already lapsed past its expiration height, used is
// clamped to duration and the refund floors at zero rather than
// underflowing. The record is retained with active set false.
func (l *Ledger) CancelAndBurn(ctx context.Context, caller id.Principal) (types.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return types.Zero(), err
	}
	if err := requireUnpaused(roles); err != nil {
		return types.Zero(), err
	}
	if err := requireNonZero(caller); err != nil {
		return types.Zero(), err
	}

	rec, err := l.store.Subscription(ctx, caller)
	if err != nil {
		return types.Zero(), err
	}
	if !rec.Active {
		return types.Zero(), ErrNoSubscription
	}

	balance, err := l.store.Balance(ctx, caller)
	if err != nil {
		return types.Zero(), err
	}
	if !balance.IsPositive() {
		return types.Zero(), ErrInsufficientBalance
	}

	height := l.clock.Height()
	used := height - rec.StartHeight
	remaining := uint64(0)
	if used < rec.Duration {
		remaining = rec.Duration - used
	}
	refund := balance.Prorate(remaining, rec.Duration)

	if err := l.store.CancelSubscription(ctx, caller, balance); err != nil {
		return types.Zero(), err
	}

	l.emit(ctx, event.TypeCancelled, caller, height, map[string]any{
		event.FieldUser:   caller.String(),
		event.FieldRefund: refund.Micro,
		event.FieldAmount: balance.Micro,
	})
	rec.Active = false
	l.plugins.EmitCancelled(ctx, rec, refund, balance)

	l.logger.Info("subscription cancelled",
		"user", caller.String(),
		"refund", refund.String(),
		"burned", balance.String(),
		"height", height,
	)

	return refund, nil
}

// Renew reactivates an inactive subscription, resetting its start to
// the current height while keeping the stored tier and duration. The
// caller must be the owner, or anyone when the record carries
// auto-renew (so an automation bot can renew on the owner's behalf).
// Balance is not re-minted: the account must already hold tokens.
func (l *Ledger) Renew(ctx context.Context, caller, user id.Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return err
	}
	if err := requireUnpaused(roles); err != nil {
		return err
	}
	if err := requireNonZero(user); err != nil {
		return err
	}

	rec, err := l.store.Subscription(ctx, user)
	if err != nil {
		return err
	}
	if !caller.Equal(user) && !rec.AutoRenew {
		return ErrNotAuthorized
	}
	if !rec.Renewable() {
		return ErrNotRenewable
	}

	balance, err := l.store.Balance(ctx, user)
	if err != nil {
		return err
	}
	if !balance.IsPositive() {
		return ErrInsufficientBalance
	}

	height := l.clock.Height()
	rec.StartHeight = height
	rec.Active = true
	rec.Touch()

	if err := l.store.PutSubscription(ctx, rec); err != nil {
		return err
	}

	l.emit(ctx, event.TypeRenewed, caller, height, map[string]any{
		event.FieldUser: user.String(),
		event.FieldTier: uint8(rec.Tier),
	})
	l.plugins.EmitRenewed(ctx, rec)

	l.logger.Info("subscription renewed",
		"user", user.String(),
		"tier", rec.Tier.String(),
		"height", height,
	)

	return nil
}

// ToggleAutoRenew sets the auto-renew flag on the caller's own record.
// No balance or timing effect.
func (l *Ledger) ToggleAutoRenew(ctx context.Context, caller id.Principal, enable bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return err
	}
	if err := requireUnpaused(roles); err != nil {
		return err
	}
	if err := requireNonZero(caller); err != nil {
		return err
	}

	rec, err := l.store.Subscription(ctx, caller)
	if err != nil {
		return err
	}

	rec.AutoRenew = enable
	rec.Touch()

	if err := l.store.PutSubscription(ctx, rec); err != nil {
		return err
	}

	l.emit(ctx, event.TypeAutoRenewToggled, caller, l.clock.Height(), map[string]any{
		event.FieldUser:      caller.String(),
		event.FieldAutoRenew: enable,
	})
	l.plugins.EmitAutoRenewToggled(ctx, caller, enable)

	return nil
}

// EmergencyBurn destroys exactly amount from the target account without
// touching the subscription record — the admin escape hatch for
// disputes. A subscription can remain formally active with zero balance
// afterwards. Admin only; deliberately not gated by pause.
func (l *Ledger) EmergencyBurn(ctx context.Context, caller, user id.Principal, amount types.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	roles, err := l.store.Roles(ctx)
	if err != nil {
		return err
	}
	if err := authorize(roles, caller, roleAdmin); err != nil {
		return err
	}
	if err := requireNonZero(user); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	balance, err := l.store.Balance(ctx, user)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	if err := l.store.Burn(ctx, user, amount); err != nil {
		return err
	}

	l.emit(ctx, event.TypeEmergencyBurn, caller, l.clock.Height(), map[string]any{
		event.FieldUser:   user.String(),
		event.FieldAmount: amount.Micro,
	})
	l.plugins.EmitEmergencyBurn(ctx, user, amount)

	l.logger.Warn("emergency burn",
		"user", user.String(),
		"amount", amount.String(),
	)

	return nil
}

// ──────────────────────────────────────────────────
// Read accessors
// ──────────────────────────────────────────────────

// BalanceOf returns the account's balance; an account never seen by the
// ledger reads as zero.
func (l *Ledger) BalanceOf(ctx context.Context, acct id.Principal) (types.Amount, error) {
	return l.store.Balance(ctx, acct)
}

// AllowanceOf returns the remaining amount spender may move out of
// owner's balance; an absent entry reads as zero.
func (l *Ledger) AllowanceOf(ctx context.Context, owner, spender id.Principal) (types.Amount, error) {
	return l.store.Allowance(ctx, owner, spender)
}

// TotalSupply returns the total minted supply. The sum of all balances
// equals this at all times.
func (l *Ledger) TotalSupply(ctx context.Context) (types.Amount, error) {
	return l.store.TotalSupply(ctx)
}

// Admin returns the current admin principal.
func (l *Ledger) Admin(ctx context.Context) (id.Principal, error) {
	roles, err := l.store.Roles(ctx)
	if err != nil {
		return id.Nil, err
	}
	return roles.Admin, nil
}

// Minter returns the current minter principal.
func (l *Ledger) Minter(ctx context.Context) (id.Principal, error) {
	roles, err := l.store.Roles(ctx)
	if err != nil {
		return id.Nil, err
	}
	return roles.Minter, nil
}

// Paused returns the global pause flag.
func (l *Ledger) Paused(ctx context.Context) (bool, error) {
	roles, err := l.store.Roles(ctx)
	if err != nil {
		return false, err
	}
	return roles.Paused, nil
}

// GetSubscription returns the account's subscription record, or
// ErrNoSubscription.
func (l *Ledger) GetSubscription(ctx context.Context, acct id.Principal) (*subscription.Record, error) {
	return l.store.Subscription(ctx, acct)
}

// IsActive is the derived "currently entitled" predicate: the record
// exists, its active flag is set, and the current height has not passed
// the expiration height. An account without a record is simply not
// entitled.
func (l *Ledger) IsActive(ctx context.Context, acct id.Principal) (bool, error) {
	rec, err := l.store.Subscription(ctx, acct)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return rec.EntitledAt(l.clock.Height()), nil
}

// TierDuration returns the duration for a tier from the genesis table,
// or ErrInvalidTier.
func (l *Ledger) TierDuration(ctx context.Context, t tier.Tier) (uint64, error) {
	return l.store.TierDuration(ctx, t)
}

// Events reads the append-only event log in append order, filtered and
// paged per opts.
func (l *Ledger) Events(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	return l.store.Events(ctx, opts)
}
