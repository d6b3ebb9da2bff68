// Package memory provides an in-memory store for tests, examples and
// single-process embedding. All state is lost on Close.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/event"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/store"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/tier"
	"github.com/xraph/subledger/types"
)

type allowanceKey struct {
	owner   string
	spender string
}

type Store struct {
	mu sync.RWMutex

	roles  *store.Roles
	closed bool

	balances map[string]types.Amount
	supply   types.Amount

	allowances map[allowanceKey]types.Amount

	// Subscription records keyed by account principal.
	subscriptions map[string]*subscription.Record

	tiers tier.Table

	events []*event.Event
}

func New() *Store {
	return &Store{
		balances:      make(map[string]types.Amount),
		allowances:    make(map[allowanceKey]types.Amount),
		subscriptions: make(map[string]*subscription.Record),
		tiers:         make(tier.Table),
		events:        make([]*event.Event, 0),
	}
}

// Role singletons

func (s *Store) Roles(_ context.Context) (store.Roles, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.roles == nil {
		return store.Roles{}, subledger.ErrStoreNotReady
	}
	return *s.roles, nil
}

func (s *Store) SeedRoles(_ context.Context, admin, minter id.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roles != nil {
		return nil
	}
	s.roles = &store.Roles{Admin: admin, Minter: minter}
	return nil
}

func (s *Store) SetAdmin(_ context.Context, admin id.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roles == nil {
		return subledger.ErrStoreNotReady
	}
	s.roles.Admin = admin
	return nil
}

func (s *Store) SetMinter(_ context.Context, minter id.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roles == nil {
		return subledger.ErrStoreNotReady
	}
	s.roles.Minter = minter
	return nil
}

func (s *Store) SetPaused(_ context.Context, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roles == nil {
		return subledger.ErrStoreNotReady
	}
	s.roles.Paused = paused
	return nil
}

// Balances and supply

func (s *Store) Balance(_ context.Context, acct id.Principal) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[acct.String()], nil
}

func (s *Store) TotalSupply(_ context.Context) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.supply, nil
}

// Allowances

func (s *Store) Allowance(_ context.Context, owner, spender id.Principal) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.allowances[allowanceKey{owner.String(), spender.String()}], nil
}

func (s *Store) SetAllowance(_ context.Context, owner, spender id.Principal, amount types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := allowanceKey{owner.String(), spender.String()}
	if amount.IsZero() {
		delete(s.allowances, key)
		return nil
	}
	s.allowances[key] = amount
	return nil
}

// Composite ledger operations

func (s *Store) Transfer(_ context.Context, from, to id.Principal, amount types.Amount, spender *id.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balances[from.String()]
	if balance.LessThan(amount) {
		return subledger.ErrInsufficientBalance
	}

	var akey allowanceKey
	if spender != nil {
		akey = allowanceKey{from.String(), spender.String()}
		if s.allowances[akey].LessThan(amount) {
			return subledger.ErrInsufficientAllowance
		}
	}

	s.balances[from.String()] = balance.Subtract(amount)
	s.balances[to.String()] = s.balances[to.String()].Add(amount)
	if spender != nil {
		remaining := s.allowances[akey].Subtract(amount)
		if remaining.IsZero() {
			delete(s.allowances, akey)
		} else {
			s.allowances[akey] = remaining
		}
	}
	return nil
}

func (s *Store) Burn(_ context.Context, acct id.Principal, amount types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.burnLocked(acct, amount)
}

func (s *Store) burnLocked(acct id.Principal, amount types.Amount) error {
	balance := s.balances[acct.String()]
	if balance.LessThan(amount) {
		return subledger.ErrInsufficientBalance
	}

	s.balances[acct.String()] = balance.Subtract(amount)
	s.supply = s.supply.Subtract(amount)
	return nil
}

// Subscription records

func (s *Store) Subscription(_ context.Context, acct id.Principal) (*subscription.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.subscriptions[acct.String()]
	if !ok {
		return nil, subledger.ErrNoSubscription
	}

	cp := *rec
	return &cp, nil
}

func (s *Store) PutSubscription(_ context.Context, rec *subscription.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.subscriptions[rec.Account.String()] = &cp
	return nil
}

func (s *Store) MintSubscription(_ context.Context, rec *subscription.Record, amount types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[rec.Account.String()]; exists {
		return subledger.ErrAlreadySubscribed
	}

	s.balances[rec.Account.String()] = s.balances[rec.Account.String()].Add(amount)
	s.supply = s.supply.Add(amount)

	cp := *rec
	s.subscriptions[rec.Account.String()] = &cp
	return nil
}

func (s *Store) CancelSubscription(_ context.Context, acct id.Principal, burn types.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.subscriptions[acct.String()]
	if !ok {
		return subledger.ErrNoSubscription
	}

	if err := s.burnLocked(acct, burn); err != nil {
		return err
	}

	rec.Active = false
	rec.Touch()
	return nil
}

// Tier table

func (s *Store) TierDuration(_ context.Context, t tier.Tier) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	duration, ok := s.tiers[t]
	if !ok {
		return 0, subledger.ErrInvalidTier
	}
	return duration, nil
}

func (s *Store) Tiers(_ context.Context) (tier.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(tier.Table, len(s.tiers))
	for t, d := range s.tiers {
		result[t] = d
	}
	return result, nil
}

func (s *Store) SeedTiers(_ context.Context, table tier.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tiers) > 0 {
		return nil
	}
	for t, d := range table {
		s.tiers[t] = d
	}
	return nil
}

// Event log

func (s *Store) AppendEvent(_ context.Context, e *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
	return nil
}

func (s *Store) Events(_ context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0)
	for _, e := range s.events {
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		if !opts.Actor.IsNil() && !e.Actor.Equal(opts.Actor) {
			continue
		}
		result = append(result, e)
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return subledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
