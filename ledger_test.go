package subledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/event"
	"github.com/xraph/subledger/store/memory"
	"github.com/xraph/subledger/tier"
	"github.com/xraph/subledger/types"
)

// newTestLedger returns a started ledger over a memory store with a
// manual clock at height 1. The genesis admin doubles as minter.
func newTestLedger(t *testing.T) (*subledger.Ledger, subledger.Principal, *subledger.ManualClock) {
	t.Helper()

	admin := subledger.NewPrincipal()
	clock := subledger.NewManualClock(1)
	l := subledger.New(memory.New(), admin, subledger.WithClock(clock))

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.Stop() })

	return l, admin, clock
}

func mustBalance(t *testing.T, l *subledger.Ledger, acct subledger.Principal) types.Amount {
	t.Helper()
	b, err := l.BalanceOf(context.Background(), acct)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	return b
}

func TestStartRejectsNilAdmin(t *testing.T) {
	l := subledger.New(memory.New(), subledger.NilPrincipal)
	if err := l.Start(context.Background()); !errors.Is(err, subledger.ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
}

func TestGenesisRoles(t *testing.T) {
	l, admin, _ := newTestLedger(t)
	ctx := context.Background()

	got, err := l.Admin(ctx)
	if err != nil {
		t.Fatalf("Admin: %v", err)
	}
	if !got.Equal(admin) {
		t.Errorf("admin = %s, want %s", got, admin)
	}

	minter, err := l.Minter(ctx)
	if err != nil {
		t.Fatalf("Minter: %v", err)
	}
	if !minter.Equal(admin) {
		t.Errorf("minter should default to admin, got %s", minter)
	}

	paused, err := l.Paused(ctx)
	if err != nil {
		t.Fatalf("Paused: %v", err)
	}
	if paused {
		t.Error("ledger should start unpaused")
	}
}

func TestSubscribeAndMint(t *testing.T) {
	l, admin, clock := newTestLedger(t)
	ctx := context.Background()
	user := subledger.NewPrincipal()

	clock.Set(100)
	if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(1000), true); err != nil {
		t.Fatalf("SubscribeAndMint: %v", err)
	}

	if got := mustBalance(t, l, user); !got.Equal(subledger.Tokens(1000)) {
		t.Errorf("balance = %s, want 1000 tokens", got)
	}

	supply, err := l.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("TotalSupply: %v", err)
	}
	if !supply.Equal(subledger.Tokens(1000)) {
		t.Errorf("supply = %s, want 1000 tokens", supply)
	}

	rec, err := l.GetSubscription(ctx, user)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if rec.Tier != tier.Basic {
		t.Errorf("tier = %v, want Basic", rec.Tier)
	}
	if rec.StartHeight != 100 {
		t.Errorf("start height = %d, want 100", rec.StartHeight)
	}
	if rec.Duration != 4320 {
		t.Errorf("duration = %d, want 4320", rec.Duration)
	}
	if !rec.AutoRenew {
		t.Error("auto-renew flag should be set")
	}
	if !rec.Active {
		t.Error("record should be active")
	}

	active, err := l.IsActive(ctx, user)
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if !active {
		t.Error("user should be entitled after mint")
	}
}

func TestSubscribeAndMintValidation(t *testing.T) {
	l, admin, _ := newTestLedger(t)
	ctx := context.Background()
	user := subledger.NewPrincipal()
	stranger := subledger.NewPrincipal()

	tests := []struct {
		name    string
		caller  subledger.Principal
		recip   subledger.Principal
		tier    tier.Tier
		amount  types.Amount
		wantErr error
	}{
		{"not minter", stranger, user, tier.Basic, subledger.Tokens(100), subledger.ErrNotAuthorized},
		{"nil caller", subledger.NilPrincipal, user, tier.Basic, subledger.Tokens(100), subledger.ErrNotAuthorized},
		{"zero recipient", admin, subledger.NilPrincipal, tier.Basic, subledger.Tokens(100), subledger.ErrZeroAddress},
		{"zero amount", admin, user, tier.Basic, subledger.Zero(), subledger.ErrInvalidAmount},
		{"negative amount", admin, user, tier.Basic, subledger.Micro(-1), subledger.ErrInvalidAmount},
		{"unknown tier", admin, user, tier.Tier(99), subledger.Tokens(100), subledger.ErrInvalidTier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.SubscribeAndMint(ctx, tt.caller, tt.recip, tt.tier, tt.amount, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	// A failed mint leaves no record and no supply.
	if _, err := l.GetSubscription(ctx, user); !errors.Is(err, subledger.ErrNoSubscription) {
		t.Errorf("expected no record after failed mints, got %v", err)
	}
	supply, _ := l.TotalSupply(ctx)
	if !supply.IsZero() {
		t.Errorf("supply = %s, want zero", supply)
	}
}

func TestSubscribeAndMintRejectsSecondRecord(t *testing.T) {
	l, admin, _ := newTestLedger(t)
	ctx := context.Background()
	user := subledger.NewPrincipal()

	if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(1000), false); err != nil {
		t.Fatalf("first mint: %v", err)
	}

	// Active record blocks a second mint.
	err := l.SubscribeAndMint(ctx, admin, user, tier.Pro, subledger.Tokens(500), false)
	if !errors.Is(err, subledger.ErrAlreadySubscribed) {
		t.Fatalf("got %v, want ErrAlreadySubscribed", err)
	}

	// So does a cancelled one: one mint per account, ever.
	if _, err := l.CancelAndBurn(ctx, user); err != nil {
		t.Fatalf("CancelAndBurn: %v", err)
	}
	err = l.SubscribeAndMint(ctx, admin, user, tier.Pro, subledger.Tokens(500), false)
	if !errors.Is(err, subledger.ErrAlreadySubscribed) {
		t.Fatalf("after cancel: got %v, want ErrAlreadySubscribed", err)
	}
}

func TestCancelAndBurnProratedRefund(t *testing.T) {
	// Reference scenario: Basic (duration 4320), 1000 tokens minted at
	// block 10000, cancelled at 12160 after half the duration: refund
	// is half the balance.
	l, admin, clock := newTestLedger(t)
	ctx := context.Background()
	user := subledger.NewPrincipal()

	clock.Set(10000)
	if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(1000), false); err != nil {
		t.Fatalf("SubscribeAndMint: %v", err)
	}

	clock.Set(12160)
	refund, err := l.CancelAndBurn(ctx, user)
	if err != nil {
		t.Fatalf("CancelAndBurn: %v", err)
	}
	if !refund.Equal(subledger.Tokens(500)) {
		t.Errorf("refund = %s, want 500 tokens", refund)
	}

	// The whole balance is burned, not just the refund portion.
	if got := mustBalance(t, l, user); !got.IsZero() {
		t.Errorf("balance = %s, want zero", got)
	}
	supply, _ := l.TotalSupply(ctx)
	if !supply.IsZero() {
		t.Errorf("supply = %s, want zero", supply)
	}

	rec, err := l.GetSubscription(ctx, user)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if rec.Active {
		t.Error("record should be inactive after cancel")
	}
	if rec.StartHeight != 10000 || rec.Duration != 4320 {
		t.Errorf("record history mutated: start=%d duration=%d", rec.StartHeight, rec.Duration)
	}
}

func TestCancelAndBurnEdgeCases(t *testing.T) {
	l, admin, clock := newTestLedger(t)
	ctx := context.Background()

	t.Run("never subscribed", func(t *testing.T) {
		stranger := subledger.NewPrincipal()
		if _, err := l.CancelAndBurn(ctx, stranger); !errors.Is(err, subledger.ErrNoSubscription) {
			t.Errorf("got %v, want ErrNoSubscription", err)
		}
	})

	t.Run("already cancelled", func(t *testing.T) {
		user := subledger.NewPrincipal()
		if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(100), false); err != nil {
			t.Fatalf("mint: %v", err)
		}
		if _, err := l.CancelAndBurn(ctx, user); err != nil {
			t.Fatalf("first cancel: %v", err)
		}
		if _, err := l.CancelAndBurn(ctx, user); !errors.Is(err, subledger.ErrNoSubscription) {
			t.Errorf("got %v, want ErrNoSubscription", err)
		}
	})

	t.Run("zero balance", func(t *testing.T) {
		user := subledger.NewPrincipal()
		if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(100), false); err != nil {
			t.Fatalf("mint: %v", err)
		}
		// Admin empties the account without touching the record.
		if err := l.EmergencyBurn(ctx, admin, user, subledger.Tokens(100)); err != nil {
			t.Fatalf("EmergencyBurn: %v", err)
		}
		if _, err := l.CancelAndBurn(ctx, user); !errors.Is(err, subledger.ErrInsufficientBalance) {
			t.Errorf("got %v, want ErrInsufficientBalance", err)
		}
	})

	t.Run("past expiration refunds zero", func(t *testing.T) {
		user := subledger.NewPrincipal()
		start := clock.Height()
		if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(100), false); err != nil {
			t.Fatalf("mint: %v", err)
		}
		// Two full durations past the start: the used span clamps to
		// the duration instead of underflowing.
		clock.Set(start + 2*4320)
		refund, err := l.CancelAndBurn(ctx, user)
		if err != nil {
			t.Fatalf("CancelAndBurn: %v", err)
		}
		if !refund.IsZero() {
			t.Errorf("refund = %s, want zero", refund)
		}
		if got := mustBalance(t, l, user); !got.IsZero() {
			t.Errorf("balance = %s, want zero", got)
		}
	})
}

func TestRenew(t *testing.T) {
	l, admin, clock := newTestLedger(t)
	ctx := context.Background()
	user := subledger.NewPrincipal()
	funder := subledger.NewPrincipal()

	clock.Set(100)
	if err := l.SubscribeAndMint(ctx, admin, user, tier.Pro, subledger.Tokens(1000), false); err != nil {
		t.Fatalf("mint user: %v", err)
	}
	if err := l.SubscribeAndMint(ctx, admin, funder, tier.Pro, subledger.Tokens(1000), false); err != nil {
		t.Fatalf("mint funder: %v", err)
	}

	// Renewing an active subscription is rejected.
	if err := l.Renew(ctx, user, user); !errors.Is(err, subledger.ErrNotRenewable) {
		t.Fatalf("active renew: got %v, want ErrNotRenewable", err)
	}

	clock.Set(500)
	if _, err := l.CancelAndBurn(ctx, user); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Inactive with zero balance: renewal is meaningless.
	if err := l.Renew(ctx, user, user); !errors.Is(err, subledger.ErrInsufficientBalance) {
		t.Fatalf("broke renew: got %v, want ErrInsufficientBalance", err)
	}

	// Refund the account from elsewhere, then renew.
	if err := l.Transfer(ctx, funder, funder, user, subledger.Tokens(400)); err != nil {
		t.Fatalf("funding transfer: %v", err)
	}
	clock.Set(600)
	if err := l.Renew(ctx, user, user); err != nil {
		t.Fatalf("Renew: %v", err)
	}

	rec, err := l.GetSubscription(ctx, user)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if !rec.Active {
		t.Error("record should be active after renew")
	}
	if rec.StartHeight != 600 {
		t.Errorf("start = %d, want current height 600", rec.StartHeight)
	}
	if rec.Tier != tier.Pro || rec.Duration != 12960 {
		t.Errorf("tier/duration changed on renew: %v/%d", rec.Tier, rec.Duration)
	}
}

func TestRenewDelegation(t *testing.T) {
	l, admin, clock := newTestLedger(t)
	ctx := context.Background()
	bot := subledger.NewPrincipal()

	setup := func(t *testing.T, autoRenew bool) subledger.Principal {
		t.Helper()
		user := subledger.NewPrincipal()
		if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(100), autoRenew); err != nil {
			t.Fatalf("mint: %v", err)
		}
		clock.Advance(10)
		if _, err := l.CancelAndBurn(ctx, user); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		// Leave the account funded so only authorization decides.
		other := subledger.NewPrincipal()
		if err := l.SubscribeAndMint(ctx, admin, other, tier.Basic, subledger.Tokens(100), false); err != nil {
			t.Fatalf("mint other: %v", err)
		}
		if err := l.Transfer(ctx, other, other, user, subledger.Tokens(50)); err != nil {
			t.Fatalf("fund: %v", err)
		}
		return user
	}

	t.Run("third party without auto-renew", func(t *testing.T) {
		user := setup(t, false)
		if err := l.Renew(ctx, bot, user); !errors.Is(err, subledger.ErrNotAuthorized) {
			t.Errorf("got %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("third party with auto-renew", func(t *testing.T) {
		user := setup(t, true)
		if err := l.Renew(ctx, bot, user); err != nil {
			t.Errorf("Renew by bot: %v", err)
		}
	})
}

func TestToggleAutoRenew(t *testing.T) {
	l, admin, _ := newTestLedger(t)
	ctx := context.Background()
	user := subledger.NewPrincipal()

	if err := l.ToggleAutoRenew(ctx, user, true); !errors.Is(err, subledger.ErrNoSubscription) {
		t.Fatalf("no record: got %v, want ErrNoSubscription", err)
	}

	if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(100), false); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.ToggleAutoRenew(ctx, user, true); err != nil {
		t.Fatalf("ToggleAutoRenew: %v", err)
	}

	rec, err := l.GetSubscription(ctx, user)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if !rec.AutoRenew {
		t.Error("auto-renew flag should be set")
	}

	// No balance or timing effect.
	if rec.StartHeight == 0 || !rec.Active {
		t.Error("toggle must not change lifecycle state")
	}
	if got := mustBalance(t, l, user); !got.Equal(subledger.Tokens(100)) {
		t.Errorf("balance = %s, want 100 tokens", got)
	}
}

func TestTransfer(t *testing.T) {
	l, admin, _ := newTestLedger(t)
	ctx := context.Background()
	alice := subledger.NewPrincipal()
	bob := subledger.NewPrincipal()

	if err := l.SubscribeAndMint(ctx, admin, alice, tier.Basic, subledger.Tokens(500), false); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := l.Transfer(ctx, alice, alice, bob, subledger.Tokens(200)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := mustBalance(t, l, alice); !got.Equal(subledger.Tokens(300)) {
		t.Errorf("alice = %s, want 300 tokens", got)
	}
	if got := mustBalance(t, l, bob); !got.Equal(subledger.Tokens(200)) {
		t.Errorf("bob = %s, want 200 tokens", got)
	}

	// Conservation: transfers never change the total supply.
	supply, _ := l.TotalSupply(ctx)
	if !supply.Equal(subledger.Tokens(500)) {
		t.Errorf("supply = %s, want 500 tokens", supply)
	}

	tests := []struct {
		name    string
		from    subledger.Principal
		to      subledger.Principal
		amount  types.Amount
		wantErr error
	}{
		{"insufficient balance", alice, bob, subledger.Tokens(10000), subledger.ErrInsufficientBalance},
		{"zero destination", alice, subledger.NilPrincipal, subledger.Tokens(10), subledger.ErrZeroAddress},
		{"zero amount", alice, bob, subledger.Zero(), subledger.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := l.Transfer(ctx, tt.from, tt.from, tt.to, tt.amount); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDelegatedTransfer(t *testing.T) {
	// Reference scenario: owner approves spender for 300 of a 500
	// balance; spender moves 200 to a third account.
	l, admin, _ := newTestLedger(t)
	ctx := context.Background()
	owner := subledger.NewPrincipal()
	spender := subledger.NewPrincipal()
	third := subledger.NewPrincipal()
	bystander := subledger.NewPrincipal()

	if err := l.SubscribeAndMint(ctx, admin, owner, tier.Basic, subledger.Tokens(500), false); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Approve(ctx, owner, spender, subledger.Tokens(300)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := l.Approve(ctx, owner, bystander, subledger.Tokens(50)); err != nil {
		t.Fatalf("Approve bystander: %v", err)
	}

	if err := l.Transfer(ctx, spender, owner, third, subledger.Tokens(200)); err != nil {
		t.Fatalf("delegated Transfer: %v", err)
	}

	if got := mustBalance(t, l, owner); !got.Equal(subledger.Tokens(300)) {
		t.Errorf("owner = %s, want 300 tokens", got)
	}
	if got := mustBalance(t, l, third); !got.Equal(subledger.Tokens(200)) {
		t.Errorf("third = %s, want 200 tokens", got)
	}

	remaining, err := l.AllowanceOf(ctx, owner, spender)
	if err != nil {
		t.Fatalf("AllowanceOf: %v", err)
	}
	if !remaining.Equal(subledger.Tokens(100)) {
		t.Errorf("allowance = %s, want 100 tokens", remaining)
	}

	// Other allowances for the same owner are untouched.
	other, _ := l.AllowanceOf(ctx, owner, bystander)
	if !other.Equal(subledger.Tokens(50)) {
		t.Errorf("bystander allowance = %s, want 50 tokens", other)
	}

	// Spending past the remaining allowance fails even though the
	// owner's balance covers it.
	err = l.Transfer(ctx, spender, owner, third, subledger.Tokens(150))
	if !errors.Is(err, subledger.ErrInsufficientAllowance) {
		t.Fatalf("got %v, want ErrInsufficientAllowance", err)
	}
}

func TestAllowanceAdjustments(t *testing.T) {
	l, admin, _ := newTestLedger(t)
	ctx := context.Background()
	owner := subledger.NewPrincipal()
	spender := subledger.NewPrincipal()

	if err := l.SubscribeAndMint(ctx, admin, owner, tier.Basic, subledger.Tokens(500), false); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := l.Approve(ctx, owner, spender, subledger.Tokens(100)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := l.IncreaseAllowance(ctx, owner, spender, subledger.Tokens(50)); err != nil {
		t.Fatalf("IncreaseAllowance: %v", err)
	}
	got, _ := l.AllowanceOf(ctx, owner, spender)
	if !got.Equal(subledger.Tokens(150)) {
		t.Errorf("allowance = %s, want 150 tokens", got)
	}

	if err := l.DecreaseAllowance(ctx, owner, spender, subledger.Tokens(50)); err != nil {
		t.Fatalf("DecreaseAllowance: %v", err)
	}
	got, _ = l.AllowanceOf(ctx, owner, spender)
	if !got.Equal(subledger.Tokens(100)) {
		t.Errorf("allowance = %s, want 100 tokens", got)
	}

	// Subtracting below zero is rejected before the approve path runs.
	err := l.DecreaseAllowance(ctx, owner, spender, subledger.Tokens(500))
	if !errors.Is(err, subledger.ErrInsufficientAllowance) {
		t.Fatalf("got %v, want ErrInsufficientAllowance", err)
	}

	// Approval of a zero target value is invalid; revoke via Approve
	// semantics is not offered, only positive allowances exist.
	err = l.DecreaseAllowance(ctx, owner, spender, subledger.Tokens(100))
	if !errors.Is(err, subledger.ErrInvalidAmount) {
		t.Fatalf("decrease to zero: got %v, want ErrInvalidAmount", err)
	}

	if err := l.Approve(ctx, owner, subledger.NilPrincipal, subledger.Tokens(10)); !errors.Is(err, subledger.ErrZeroAddress) {
		t.Fatalf("zero spender: got %v, want ErrZeroAddress", err)
	}
}

func TestPauseMatrix(t *testing.T) {
	l, admin, clock := newTestLedger(t)
	ctx := context.Background()
	user := subledger.NewPrincipal()
	other := subledger.NewPrincipal()

	if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(500), false); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := l.SetPaused(ctx, admin, true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}

	// User-facing operations are all rejected while paused.
	paused := []struct {
		name string
		call func() error
	}{
		{"transfer", func() error { return l.Transfer(ctx, user, user, other, subledger.Tokens(10)) }},
		{"approve", func() error { return l.Approve(ctx, user, other, subledger.Tokens(10)) }},
		{"increase allowance", func() error { return l.IncreaseAllowance(ctx, user, other, subledger.Tokens(10)) }},
		{"decrease allowance", func() error { return l.DecreaseAllowance(ctx, user, other, subledger.Tokens(10)) }},
		{"cancel", func() error { _, err := l.CancelAndBurn(ctx, user); return err }},
		{"renew", func() error { return l.Renew(ctx, user, user) }},
		{"toggle auto-renew", func() error { return l.ToggleAutoRenew(ctx, user, true) }},
	}
	for _, tt := range paused {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, subledger.ErrPaused) {
				t.Errorf("got %v, want ErrPaused", err)
			}
		})
	}

	// Role management, minting and the emergency burn stay available so
	// the operator can always intervene.
	clock.Advance(1)
	if err := l.SubscribeAndMint(ctx, admin, other, tier.Basic, subledger.Tokens(100), false); err != nil {
		t.Errorf("mint while paused: %v", err)
	}
	if err := l.EmergencyBurn(ctx, admin, user, subledger.Tokens(100)); err != nil {
		t.Errorf("emergency burn while paused: %v", err)
	}
	if err := l.SetMinter(ctx, admin, other); err != nil {
		t.Errorf("set minter while paused: %v", err)
	}

	if _, err := l.SetPaused(ctx, admin, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := l.Approve(ctx, user, other, subledger.Tokens(10)); err != nil {
		t.Errorf("approve after unpause: %v", err)
	}
}

func TestEmergencyBurn(t *testing.T) {
	l, admin, _ := newTestLedger(t)
	ctx := context.Background()
	user := subledger.NewPrincipal()
	stranger := subledger.NewPrincipal()

	if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(1000), false); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := l.EmergencyBurn(ctx, stranger, user, subledger.Tokens(100)); !errors.Is(err, subledger.ErrNotAuthorized) {
		t.Fatalf("non-admin: got %v, want ErrNotAuthorized", err)
	}
	if err := l.EmergencyBurn(ctx, admin, user, subledger.Tokens(5000)); !errors.Is(err, subledger.ErrInsufficientBalance) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientBalance", err)
	}
	if err := l.EmergencyBurn(ctx, admin, user, subledger.Zero()); !errors.Is(err, subledger.ErrInvalidAmount) {
		t.Fatalf("zero: got %v, want ErrInvalidAmount", err)
	}

	if err := l.EmergencyBurn(ctx, admin, user, subledger.Tokens(500)); err != nil {
		t.Fatalf("EmergencyBurn: %v", err)
	}
	if got := mustBalance(t, l, user); !got.Equal(subledger.Tokens(500)) {
		t.Errorf("balance = %s, want 500 tokens", got)
	}
	supply, _ := l.TotalSupply(ctx)
	if !supply.Equal(subledger.Tokens(500)) {
		t.Errorf("supply = %s, want 500 tokens", supply)
	}

	// The subscription record is untouched: formally active with a
	// reduced balance.
	rec, err := l.GetSubscription(ctx, user)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if !rec.Active {
		t.Error("record must stay active after emergency burn")
	}
}

func TestRoleManagement(t *testing.T) {
	l, admin, _ := newTestLedger(t)
	ctx := context.Background()
	successor := subledger.NewPrincipal()
	router := subledger.NewPrincipal()
	user := subledger.NewPrincipal()

	if err := l.TransferAdmin(ctx, user, successor); !errors.Is(err, subledger.ErrNotAuthorized) {
		t.Fatalf("non-admin transfer: got %v, want ErrNotAuthorized", err)
	}
	if err := l.TransferAdmin(ctx, admin, subledger.NilPrincipal); !errors.Is(err, subledger.ErrZeroAddress) {
		t.Fatalf("zero successor: got %v, want ErrZeroAddress", err)
	}

	// Reassign the minter to the payment router; the admin loses the
	// minting authority it held by default.
	if err := l.SetMinter(ctx, admin, router); err != nil {
		t.Fatalf("SetMinter: %v", err)
	}
	if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(100), false); !errors.Is(err, subledger.ErrNotAuthorized) {
		t.Fatalf("admin mint after reassign: got %v, want ErrNotAuthorized", err)
	}
	if err := l.SubscribeAndMint(ctx, router, user, tier.Basic, subledger.Tokens(100), false); err != nil {
		t.Fatalf("router mint: %v", err)
	}

	if err := l.TransferAdmin(ctx, admin, successor); err != nil {
		t.Fatalf("TransferAdmin: %v", err)
	}
	if err := l.SetMinter(ctx, admin, admin); !errors.Is(err, subledger.ErrNotAuthorized) {
		t.Fatalf("old admin: got %v, want ErrNotAuthorized", err)
	}
	if err := l.SetMinter(ctx, successor, successor); err != nil {
		t.Fatalf("new admin: %v", err)
	}
}

func TestSupplyConservation(t *testing.T) {
	l, admin, clock := newTestLedger(t)
	ctx := context.Background()

	accounts := make([]subledger.Principal, 4)
	for i := range accounts {
		accounts[i] = subledger.NewPrincipal()
		if err := l.SubscribeAndMint(ctx, admin, accounts[i], tier.Basic, subledger.Tokens(int64(100*(i+1))), false); err != nil {
			t.Fatalf("mint %d: %v", i, err)
		}
	}

	if err := l.Transfer(ctx, accounts[3], accounts[3], accounts[0], subledger.Tokens(150)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := l.EmergencyBurn(ctx, admin, accounts[1], subledger.Tokens(50)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	clock.Advance(100)
	if _, err := l.CancelAndBurn(ctx, accounts[2]); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var sum types.Amount
	for _, acct := range accounts {
		sum = sum.Add(mustBalance(t, l, acct))
	}
	supply, err := l.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("TotalSupply: %v", err)
	}
	if !sum.Equal(supply) {
		t.Errorf("sum of balances %s != total supply %s", sum, supply)
	}
}

func TestEventLog(t *testing.T) {
	l, admin, clock := newTestLedger(t)
	ctx := context.Background()
	user := subledger.NewPrincipal()
	other := subledger.NewPrincipal()

	clock.Set(50)
	if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(1000), false); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Transfer(ctx, user, user, other, subledger.Tokens(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	clock.Set(2210)
	if _, err := l.CancelAndBurn(ctx, user); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	all, err := l.Events(ctx, event.QueryOpts{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	// Exactly one event per successful mutation, in commit order.
	wantTypes := []event.Type{event.TypeSubscribed, event.TypeTransfer, event.TypeCancelled}
	if len(all) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(all), len(wantTypes))
	}
	for i, e := range all {
		if e.Type != wantTypes[i] {
			t.Errorf("event %d type = %s, want %s", i, e.Type, wantTypes[i])
		}
	}

	cancelled, err := l.Events(ctx, event.QueryOpts{Type: event.TypeCancelled})
	if err != nil {
		t.Fatalf("Events by type: %v", err)
	}
	if len(cancelled) != 1 {
		t.Fatalf("got %d cancelled events, want 1", len(cancelled))
	}
	e := cancelled[0]
	if e.Height != 2210 {
		t.Errorf("height = %d, want 2210", e.Height)
	}
	if !e.Actor.Equal(user) {
		t.Errorf("actor = %s, want %s", e.Actor, user)
	}
	// Half the Basic duration used, so the refund is half of the
	// remaining 900 balance.
	if got := e.Payload[event.FieldRefund]; got != int64(subledger.Tokens(450).Micro) {
		t.Errorf("refund payload = %v, want %d", got, subledger.Tokens(450).Micro)
	}
}

func TestIsActiveBoundary(t *testing.T) {
	l, admin, clock := newTestLedger(t)
	ctx := context.Background()
	user := subledger.NewPrincipal()

	clock.Set(100)
	if err := l.SubscribeAndMint(ctx, admin, user, tier.Basic, subledger.Tokens(100), false); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Entitled up to and including the expiration height.
	clock.Set(100 + 4320)
	active, err := l.IsActive(ctx, user)
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if !active {
		t.Error("should be entitled at exactly the expiration height")
	}

	// One past it the entitlement lapses, but the stored flag stays
	// true: lapse is derived, never written back.
	clock.Advance(1)
	active, err = l.IsActive(ctx, user)
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Error("should not be entitled past the expiration height")
	}
	rec, _ := l.GetSubscription(ctx, user)
	if !rec.Active {
		t.Error("stored active flag must not auto-flip on lapse")
	}

	// No record means simply not entitled, not an error.
	active, err = l.IsActive(ctx, subledger.NewPrincipal())
	if err != nil {
		t.Fatalf("IsActive without record: %v", err)
	}
	if active {
		t.Error("account without record must not be entitled")
	}
}

func TestTierDuration(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		tier tier.Tier
		want uint64
	}{
		{tier.Basic, 4320},
		{tier.Pro, 12960},
		{tier.Enterprise, 52560},
	}
	for _, tt := range tests {
		got, err := l.TierDuration(ctx, tt.tier)
		if err != nil {
			t.Fatalf("TierDuration(%v): %v", tt.tier, err)
		}
		if got != tt.want {
			t.Errorf("TierDuration(%v) = %d, want %d", tt.tier, got, tt.want)
		}
	}

	if _, err := l.TierDuration(ctx, tier.Tier(42)); !errors.Is(err, subledger.ErrInvalidTier) {
		t.Errorf("got %v, want ErrInvalidTier", err)
	}
}

func TestCustomTierTable(t *testing.T) {
	admin := subledger.NewPrincipal()
	clock := subledger.NewManualClock(1)
	l := subledger.New(memory.New(), admin,
		subledger.WithClock(clock),
		subledger.WithTierTable(tier.Table{tier.Basic: 100}),
	)
	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Stop()

	got, err := l.TierDuration(ctx, tier.Basic)
	if err != nil {
		t.Fatalf("TierDuration: %v", err)
	}
	if got != 100 {
		t.Errorf("duration = %d, want 100", got)
	}
	if _, err := l.TierDuration(ctx, tier.Pro); !errors.Is(err, subledger.ErrInvalidTier) {
		t.Errorf("Pro should be absent from the custom table, got %v", err)
	}
}
