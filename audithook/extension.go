// Package audithook bridges subledger lifecycle events to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/plugin"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnTransfer         = (*Extension)(nil)
	_ plugin.OnApproval         = (*Extension)(nil)
	_ plugin.OnEmergencyBurn    = (*Extension)(nil)
	_ plugin.OnSubscribed       = (*Extension)(nil)
	_ plugin.OnCancelled        = (*Extension)(nil)
	_ plugin.OnRenewed          = (*Extension)(nil)
	_ plugin.OnAutoRenewToggled = (*Extension)(nil)
	_ plugin.OnAdminTransferred = (*Extension)(nil)
	_ plugin.OnMinterChanged    = (*Extension)(nil)
	_ plugin.OnPauseChanged     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audithook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges subledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnTransfer implements plugin.OnTransfer.
func (e *Extension) OnTransfer(ctx context.Context, from, to id.Principal, amount types.Amount) error {
	return e.record(ctx, ActionTransfer, SeverityInfo, OutcomeSuccess,
		ResourceLedger, from.String(), CategoryAccounting, nil,
		"from", from.String(),
		"to", to.String(),
		"amount", amount.Micro,
	)
}

// OnApproval implements plugin.OnApproval.
func (e *Extension) OnApproval(ctx context.Context, owner, spender id.Principal, amount types.Amount) error {
	return e.record(ctx, ActionAllowanceSet, SeverityInfo, OutcomeSuccess,
		ResourceLedger, owner.String(), CategoryAccounting, nil,
		"owner", owner.String(),
		"spender", spender.String(),
		"amount", amount.Micro,
	)
}

// OnEmergencyBurn implements plugin.OnEmergencyBurn.
func (e *Extension) OnEmergencyBurn(ctx context.Context, acct id.Principal, amount types.Amount) error {
	return e.record(ctx, ActionEmergencyBurn, SeverityCritical, OutcomeSuccess,
		ResourceLedger, acct.String(), CategoryAccounting, nil,
		"account", acct.String(),
		"amount", amount.Micro,
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed implements plugin.OnSubscribed.
func (e *Extension) OnSubscribed(ctx context.Context, rec *subscription.Record, amount types.Amount) error {
	return e.record(ctx, ActionSubscribed, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, rec.ID.String(), CategorySubscription, nil,
		"account", rec.Account.String(),
		"tier", rec.Tier.String(),
		"amount", amount.Micro,
		"start_height", rec.StartHeight,
		"duration", rec.Duration,
	)
}

// OnCancelled implements plugin.OnCancelled.
func (e *Extension) OnCancelled(ctx context.Context, rec *subscription.Record, refund, burned types.Amount) error {
	return e.record(ctx, ActionCancelled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, rec.ID.String(), CategorySubscription, nil,
		"account", rec.Account.String(),
		"refund", refund.Micro,
		"burned", burned.Micro,
	)
}

// OnRenewed implements plugin.OnRenewed.
func (e *Extension) OnRenewed(ctx context.Context, rec *subscription.Record) error {
	return e.record(ctx, ActionRenewed, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, rec.ID.String(), CategorySubscription, nil,
		"account", rec.Account.String(),
		"tier", rec.Tier.String(),
		"start_height", rec.StartHeight,
	)
}

// OnAutoRenewToggled implements plugin.OnAutoRenewToggled.
func (e *Extension) OnAutoRenewToggled(ctx context.Context, acct id.Principal, enabled bool) error {
	return e.record(ctx, ActionAutoRenewToggled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, acct.String(), CategorySubscription, nil,
		"account", acct.String(),
		"enabled", enabled,
	)
}

// ──────────────────────────────────────────────────
// Governance hooks
// ──────────────────────────────────────────────────

// OnAdminTransferred implements plugin.OnAdminTransferred.
func (e *Extension) OnAdminTransferred(ctx context.Context, previous, current id.Principal) error {
	return e.record(ctx, ActionAdminTransferred, SeverityWarning, OutcomeSuccess,
		ResourceGovernance, current.String(), CategoryGovernance, nil,
		"previous", previous.String(),
		"current", current.String(),
	)
}

// OnMinterChanged implements plugin.OnMinterChanged.
func (e *Extension) OnMinterChanged(ctx context.Context, previous, current id.Principal) error {
	return e.record(ctx, ActionMinterChanged, SeverityWarning, OutcomeSuccess,
		ResourceGovernance, current.String(), CategoryGovernance, nil,
		"previous", previous.String(),
		"current", current.String(),
	)
}

// OnPauseChanged implements plugin.OnPauseChanged.
func (e *Extension) OnPauseChanged(ctx context.Context, paused bool) error {
	severity := SeverityWarning
	if !paused {
		severity = SeverityInfo
	}
	return e.record(ctx, ActionPauseChanged, severity, OutcomeSuccess,
		ResourceGovernance, "", CategoryGovernance, nil,
		"paused", paused,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audithook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
