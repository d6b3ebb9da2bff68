package extension

import (
	"time"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/plugin"
	"github.com/xraph/subledger/store"
	"github.com/xraph/subledger/tier"
)

// Option configures the subledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithAdmin sets the genesis admin principal programmatically, taking
// precedence over the config file's admin field.
func WithAdmin(admin id.Principal) Option {
	return func(e *Extension) {
		e.admin = admin
	}
}

// WithLedgerOption passes a subledger.Option through to the underlying engine.
func WithLedgerOption(opt subledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a subledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, subledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration and genesis seeding on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithClockInterval sets the wall-clock span of one block height unit.
func WithClockInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ClockInterval = d }
}

// WithTierTable overrides the genesis tier table.
func WithTierTable(t tier.Table) Option {
	return func(e *Extension) {
		e.config.Tiers = make(map[uint8]uint64, len(t))
		for k, v := range t {
			e.config.Tiers[uint8(k)] = v
		}
	}
}
