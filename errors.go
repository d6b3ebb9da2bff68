package subledger

import "errors"

// Sentinel errors for every failure kind an entry point can return.
// Each mutating operation returns either its success value or exactly
// one of these; on error no state mutation has occurred.
var (
	// Authorization and guard errors
	ErrNotAuthorized = errors.New("subledger: not authorized")
	ErrZeroAddress   = errors.New("subledger: zero address")
	ErrPaused        = errors.New("subledger: ledger is paused")

	// Ledger errors
	ErrInvalidAmount         = errors.New("subledger: invalid amount")
	ErrInsufficientBalance   = errors.New("subledger: insufficient balance")
	ErrInsufficientAllowance = errors.New("subledger: insufficient allowance")

	// Subscription errors
	ErrInvalidTier       = errors.New("subledger: invalid tier")
	ErrAlreadySubscribed = errors.New("subledger: already subscribed")
	ErrNoSubscription    = errors.New("subledger: no subscription")
	ErrNotRenewable      = errors.New("subledger: subscription not renewable")

	// Store errors
	ErrStoreNotReady     = errors.New("subledger: store not ready")
	ErrStoreClosed       = errors.New("subledger: store is closed")
	ErrTransactionFailed = errors.New("subledger: transaction failed")
	ErrMigrationFailed   = errors.New("subledger: migration failed")
)

// IsNotFound returns true if the error reports absent state.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoSubscription) ||
		errors.Is(err, ErrInvalidTier)
}

// IsAuthError returns true if the error is an authorization failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrZeroAddress) ||
		errors.Is(err, ErrPaused)
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried by the caller. The core itself never retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
