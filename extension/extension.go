// Package extension provides the Forge extension adapter for subledger.
//
// It implements the forge.Extension interface to integrate subledger
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.subledger" or
// "subledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/store"
	"github.com/xraph/subledger/store/memory"
	"github.com/xraph/subledger/tier"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "subledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Embeddable subscription-accounting ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts subledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	admin      id.Principal
	engine     *subledger.Ledger
	store      store.Store
	ledgerOpts []subledger.Option
}

// New creates a new subledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *subledger.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	admin, err := e.resolveAdmin()
	if err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := e.buildLedgerOpts()
	if err != nil {
		return err
	}

	e.engine = subledger.New(e.store, admin, opts...)

	return vessel.Provide(fapp.Container(), func() (*subledger.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("subledger: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("subledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// resolveAdmin prefers the programmatic admin, then the config field.
func (e *Extension) resolveAdmin() (id.Principal, error) {
	if !e.admin.IsNil() {
		return e.admin, nil
	}
	if e.config.Admin == "" {
		return id.Nil, errors.New("subledger: genesis admin is required; " +
			"set it via WithAdmin or the 'admin' config field")
	}

	admin, err := id.ParsePrincipal(e.config.Admin)
	if err != nil {
		return id.Nil, fmt.Errorf("subledger: invalid admin principal: %w", err)
	}
	return admin, nil
}

// buildLedgerOpts constructs subledger.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() ([]subledger.Option, error) {
	opts := make([]subledger.Option, 0, len(e.ledgerOpts)+2)

	genesis := time.Now()
	if e.config.ClockGenesis != "" {
		parsed, err := time.Parse(time.RFC3339, e.config.ClockGenesis)
		if err != nil {
			return nil, fmt.Errorf("subledger: invalid clock_genesis: %w", err)
		}
		genesis = parsed
	}
	opts = append(opts, subledger.WithClock(
		subledger.NewIntervalClock(genesis, e.config.ClockInterval)))

	if len(e.config.Tiers) > 0 {
		table := make(tier.Table, len(e.config.Tiers))
		for t, d := range e.config.Tiers {
			table[tier.Tier(t)] = d
		}
		opts = append(opts, subledger.WithTierTable(table))
	}

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("subledger: configuration is required but not found in config files; " +
				"ensure 'extensions.subledger' or 'subledger' key exists in your config")
		}

		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("subledger: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("clock_interval", e.config.ClockInterval),
		forge.F("tiers", len(e.config.Tiers)),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.subledger" first (namespaced pattern).
	if cm.IsSet("extensions.subledger") {
		if err := cm.Bind("extensions.subledger", &cfg); err == nil {
			e.Logger().Debug("subledger: loaded config from file",
				forge.F("key", "extensions.subledger"),
			)
			return cfg, true
		}
		e.Logger().Warn("subledger: failed to bind extensions.subledger config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "subledger" key.
	if cm.IsSet("subledger") {
		if err := cm.Bind("subledger", &cfg); err == nil {
			e.Logger().Debug("subledger: loaded config from file",
				forge.F("key", "subledger"),
			)
			return cfg, true
		}
		e.Logger().Warn("subledger: failed to bind subledger config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ClockInterval == 0 {
		cfg.ClockInterval = defaults.ClockInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.Admin == "" && programmaticConfig.Admin != "" {
		yamlConfig.Admin = programmaticConfig.Admin
	}
	if yamlConfig.ClockGenesis == "" && programmaticConfig.ClockGenesis != "" {
		yamlConfig.ClockGenesis = programmaticConfig.ClockGenesis
	}
	if yamlConfig.ClockInterval == 0 && programmaticConfig.ClockInterval != 0 {
		yamlConfig.ClockInterval = programmaticConfig.ClockInterval
	}
	if len(yamlConfig.Tiers) == 0 && len(programmaticConfig.Tiers) != 0 {
		yamlConfig.Tiers = programmaticConfig.Tiers
	}

	return e.mergeWithDefaults(yamlConfig)
}
