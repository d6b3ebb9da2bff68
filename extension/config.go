package extension

import "time"

// Config holds the subledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.subledger" or "subledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration and genesis seeding on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Admin is the genesis admin principal ("acct_..."). Required unless
	// set programmatically via WithAdmin.
	Admin string `json:"admin" mapstructure:"admin" yaml:"admin"`

	// ClockInterval is the wall-clock span of one block height unit for
	// the default interval clock (default: 10m).
	ClockInterval time.Duration `json:"clock_interval" mapstructure:"clock_interval" yaml:"clock_interval"`

	// ClockGenesis is the RFC3339 instant height 0 corresponds to.
	// Empty means the process start time.
	ClockGenesis string `json:"clock_genesis" mapstructure:"clock_genesis" yaml:"clock_genesis"`

	// Tiers overrides the genesis tier table, mapping tier number to
	// duration in block heights. Empty means the built-in defaults.
	Tiers map[uint8]uint64 `json:"tiers" mapstructure:"tiers" yaml:"tiers"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ClockInterval: 10 * time.Minute,
	}
}
