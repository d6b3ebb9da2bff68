// Package observability provides a metrics extension for subledger that
// records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/plugin"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnTransfer         = (*MetricsExtension)(nil)
	_ plugin.OnApproval         = (*MetricsExtension)(nil)
	_ plugin.OnEmergencyBurn    = (*MetricsExtension)(nil)
	_ plugin.OnSubscribed       = (*MetricsExtension)(nil)
	_ plugin.OnCancelled        = (*MetricsExtension)(nil)
	_ plugin.OnRenewed          = (*MetricsExtension)(nil)
	_ plugin.OnAutoRenewToggled = (*MetricsExtension)(nil)
	_ plugin.OnPauseChanged     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a subledger plugin to automatically track ledger metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Ledger metrics
	Transfers      Counter
	TransferVolume Histogram
	Approvals      Counter
	EmergencyBurns Counter
	BurnVolume     Histogram

	// Subscription metrics
	Subscribed       Counter
	Cancelled        Counter
	Renewed          Counter
	AutoRenewToggled Counter
	RefundAmount     Histogram
	MintAmount       Histogram

	// Governance metrics
	PauseChanges Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Ledger metrics
		Transfers:      factory.Counter("subledger.transfer.count"),
		TransferVolume: factory.Histogram("subledger.transfer.volume_micro"),
		Approvals:      factory.Counter("subledger.approval.count"),
		EmergencyBurns: factory.Counter("subledger.emergency_burn.count"),
		BurnVolume:     factory.Histogram("subledger.emergency_burn.volume_micro"),

		// Subscription metrics
		Subscribed:       factory.Counter("subledger.subscription.created"),
		Cancelled:        factory.Counter("subledger.subscription.cancelled"),
		Renewed:          factory.Counter("subledger.subscription.renewed"),
		AutoRenewToggled: factory.Counter("subledger.subscription.auto_renew_toggled"),
		RefundAmount:     factory.Histogram("subledger.subscription.refund_micro"),
		MintAmount:       factory.Histogram("subledger.subscription.mint_micro"),

		// Governance metrics
		PauseChanges: factory.Counter("subledger.pause.changes"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnTransfer implements plugin.OnTransfer.
func (m *MetricsExtension) OnTransfer(_ context.Context, _, _ id.Principal, amount types.Amount) error {
	m.Transfers.Inc()
	m.TransferVolume.Observe(float64(amount.Micro))
	return nil
}

// OnApproval implements plugin.OnApproval.
func (m *MetricsExtension) OnApproval(_ context.Context, _, _ id.Principal, _ types.Amount) error {
	m.Approvals.Inc()
	return nil
}

// OnEmergencyBurn implements plugin.OnEmergencyBurn.
func (m *MetricsExtension) OnEmergencyBurn(_ context.Context, _ id.Principal, amount types.Amount) error {
	m.EmergencyBurns.Inc()
	m.BurnVolume.Observe(float64(amount.Micro))
	return nil
}

// OnSubscribed implements plugin.OnSubscribed.
func (m *MetricsExtension) OnSubscribed(_ context.Context, _ *subscription.Record, amount types.Amount) error {
	m.Subscribed.Inc()
	m.MintAmount.Observe(float64(amount.Micro))
	return nil
}

// OnCancelled implements plugin.OnCancelled.
func (m *MetricsExtension) OnCancelled(_ context.Context, _ *subscription.Record, refund, _ types.Amount) error {
	m.Cancelled.Inc()
	m.RefundAmount.Observe(float64(refund.Micro))
	return nil
}

// OnRenewed implements plugin.OnRenewed.
func (m *MetricsExtension) OnRenewed(_ context.Context, _ *subscription.Record) error {
	m.Renewed.Inc()
	return nil
}

// OnAutoRenewToggled implements plugin.OnAutoRenewToggled.
func (m *MetricsExtension) OnAutoRenewToggled(_ context.Context, _ id.Principal, _ bool) error {
	m.AutoRenewToggled.Inc()
	return nil
}

// OnPauseChanged implements plugin.OnPauseChanged.
func (m *MetricsExtension) OnPauseChanged(_ context.Context, _ bool) error {
	m.PauseChanges.Inc()
	return nil
}
