package audithook

// Action constants for audit events.
const (
	// Ledger actions
	ActionTransfer      = "ledger.transfer"
	ActionAllowanceSet  = "ledger.allowance_set"
	ActionEmergencyBurn = "ledger.emergency_burn"

	// Subscription actions
	ActionSubscribed       = "subscription.created"
	ActionCancelled        = "subscription.cancelled"
	ActionRenewed          = "subscription.renewed"
	ActionAutoRenewToggled = "subscription.auto_renew_toggled"

	// Governance actions
	ActionAdminTransferred = "governance.admin_transferred"
	ActionMinterChanged    = "governance.minter_changed"
	ActionPauseChanged     = "governance.pause_changed"
)

// Resource constants for audit events.
const (
	ResourceLedger       = "ledger"
	ResourceSubscription = "subscription"
	ResourceGovernance   = "governance"
)

// Category constants for audit events.
const (
	CategoryAccounting   = "accounting"
	CategorySubscription = "subscription"
	CategoryGovernance   = "governance"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
