package subledger

import (
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/store"
)

// role identifies the authority a mutating operation requires.
type role uint8

const (
	roleAdmin role = iota
	roleMinter
)

// authorize is the single role check invoked at the top of each
// role-gated operation. It returns ErrNotAuthorized uniformly.
func authorize(roles store.Roles, caller id.Principal, r role) error {
	if caller.IsNil() {
		return ErrNotAuthorized
	}

	switch r {
	case roleAdmin:
		if !caller.Equal(roles.Admin) {
			return ErrNotAuthorized
		}
	case roleMinter:
		if !caller.Equal(roles.Minter) {
			return ErrNotAuthorized
		}
	}

	return nil
}

// requireNonZero is the shared zero/burn sentinel guard for every entry
// point that accepts a destination or target account.
func requireNonZero(p id.Principal) error {
	if p.IsNil() {
		return ErrZeroAddress
	}
	return nil
}

// requireUnpaused gates user-facing ledger and subscription operations.
// Admin and minter management and the emergency burn bypass it so the
// admin can always unpause or intervene.
func requireUnpaused(roles store.Roles) error {
	if roles.Paused {
		return ErrPaused
	}
	return nil
}
