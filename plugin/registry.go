package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/subledger/event"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Registry manages all registered plugins and provides efficient
// dispatch via type-cached plugin lists.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	onInit             []OnInit
	onShutdown         []OnShutdown
	onTransfer         []OnTransfer
	onApproval         []OnApproval
	onEmergencyBurn    []OnEmergencyBurn
	onSubscribed       []OnSubscribed
	onCancelled        []OnCancelled
	onRenewed          []OnRenewed
	onAutoRenewToggled []OnAutoRenewToggled
	onAdminTransferred []OnAdminTransferred
	onMinterChanged    []OnMinterChanged
	onPauseChanged     []OnPauseChanged
	onEvent            []OnEvent
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnTransfer); ok {
		r.onTransfer = append(r.onTransfer, v)
	}
	if v, ok := p.(OnApproval); ok {
		r.onApproval = append(r.onApproval, v)
	}
	if v, ok := p.(OnEmergencyBurn); ok {
		r.onEmergencyBurn = append(r.onEmergencyBurn, v)
	}
	if v, ok := p.(OnSubscribed); ok {
		r.onSubscribed = append(r.onSubscribed, v)
	}
	if v, ok := p.(OnCancelled); ok {
		r.onCancelled = append(r.onCancelled, v)
	}
	if v, ok := p.(OnRenewed); ok {
		r.onRenewed = append(r.onRenewed, v)
	}
	if v, ok := p.(OnAutoRenewToggled); ok {
		r.onAutoRenewToggled = append(r.onAutoRenewToggled, v)
	}
	if v, ok := p.(OnAdminTransferred); ok {
		r.onAdminTransferred = append(r.onAdminTransferred, v)
	}
	if v, ok := p.(OnMinterChanged); ok {
		r.onMinterChanged = append(r.onMinterChanged, v)
	}
	if v, ok := p.(OnPauseChanged); ok {
		r.onPauseChanged = append(r.onPauseChanged, v)
	}
	if v, ok := p.(OnEvent); ok {
		r.onEvent = append(r.onEvent, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())

	return nil
}

// Get returns a plugin by name, or nil.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, ledger)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitTransfer emits a transfer event.
func (r *Registry) EmitTransfer(ctx context.Context, from, to id.Principal, amount types.Amount) {
	r.mu.RLock()
	plugins := r.onTransfer
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnTransfer", func() error {
			return p.OnTransfer(ctx, from, to, amount)
		})
	}
}

// EmitApproval emits an allowance change event.
func (r *Registry) EmitApproval(ctx context.Context, owner, spender id.Principal, amount types.Amount) {
	r.mu.RLock()
	plugins := r.onApproval
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnApproval", func() error {
			return p.OnApproval(ctx, owner, spender, amount)
		})
	}
}

// EmitEmergencyBurn emits an emergency burn event.
func (r *Registry) EmitEmergencyBurn(ctx context.Context, acct id.Principal, amount types.Amount) {
	r.mu.RLock()
	plugins := r.onEmergencyBurn
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnEmergencyBurn", func() error {
			return p.OnEmergencyBurn(ctx, acct, amount)
		})
	}
}

// EmitSubscribed emits a subscription created event.
func (r *Registry) EmitSubscribed(ctx context.Context, rec *subscription.Record, amount types.Amount) {
	r.mu.RLock()
	plugins := r.onSubscribed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnSubscribed", func() error {
			return p.OnSubscribed(ctx, rec, amount)
		})
	}
}

// EmitCancelled emits a cancellation event.
func (r *Registry) EmitCancelled(ctx context.Context, rec *subscription.Record, refund, burned types.Amount) {
	r.mu.RLock()
	plugins := r.onCancelled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnCancelled", func() error {
			return p.OnCancelled(ctx, rec, refund, burned)
		})
	}
}

// EmitRenewed emits a renewal event.
func (r *Registry) EmitRenewed(ctx context.Context, rec *subscription.Record) {
	r.mu.RLock()
	plugins := r.onRenewed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnRenewed", func() error {
			return p.OnRenewed(ctx, rec)
		})
	}
}

// EmitAutoRenewToggled emits an auto-renew toggle event.
func (r *Registry) EmitAutoRenewToggled(ctx context.Context, acct id.Principal, enabled bool) {
	r.mu.RLock()
	plugins := r.onAutoRenewToggled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnAutoRenewToggled", func() error {
			return p.OnAutoRenewToggled(ctx, acct, enabled)
		})
	}
}

// EmitAdminTransferred emits an admin change event.
func (r *Registry) EmitAdminTransferred(ctx context.Context, previous, current id.Principal) {
	r.mu.RLock()
	plugins := r.onAdminTransferred
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnAdminTransferred", func() error {
			return p.OnAdminTransferred(ctx, previous, current)
		})
	}
}

// EmitMinterChanged emits a minter change event.
func (r *Registry) EmitMinterChanged(ctx context.Context, previous, current id.Principal) {
	r.mu.RLock()
	plugins := r.onMinterChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnMinterChanged", func() error {
			return p.OnMinterChanged(ctx, previous, current)
		})
	}
}

// EmitPauseChanged emits a pause flag change event.
func (r *Registry) EmitPauseChanged(ctx context.Context, paused bool) {
	r.mu.RLock()
	plugins := r.onPauseChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnPauseChanged", func() error {
			return p.OnPauseChanged(ctx, paused)
		})
	}
}

// EmitEvent forwards a raw event record to indexer plugins.
func (r *Registry) EmitEvent(ctx context.Context, e *event.Event) {
	r.mu.RLock()
	plugins := r.onEvent
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnEvent", func() error {
			return p.OnEvent(ctx, e)
		})
	}
}

// call invokes a plugin hook with a timeout and logs failures.
// Plugins must never block or fail the ledger pipeline.
func (r *Registry) call(ctx context.Context, pluginName, hook string, fn func() error) {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		err = fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		r.logger.Warn("plugin hook failed",
			"plugin", pluginName,
			"hook", hook,
			"error", err,
		)
	}
}
