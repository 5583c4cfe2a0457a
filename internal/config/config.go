// Package config loads the admission, upgrade-rate and size limits that
// parameterize a Runtime from an optional TOML file laid over built-in
// defaults. cmd/contractctl takes the file path from its -config flag; it
// has no per-field flags.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// RuntimeConfig mirrors the numeric constants spec.md §3/§4 hard-codes,
// made overridable so operators can tune admission and size limits without
// a rebuild. Every field's default equals the spec's constant, so an empty
// config file reproduces the reference behavior exactly.
type RuntimeConfig struct {
	// Tracker admission caps (pkg/contracts/tracker).
	MaxConcurrentOperations int `toml:"max_concurrent_operations"`
	MaxOperationsPerSecond  int `toml:"max_operations_per_second"`
	MaxPerAddressActive     int `toml:"max_per_address_active"`
	OperationTTLSeconds     int `toml:"operation_ttl_seconds"`

	// Upgrade rate limits (pkg/contracts/runtime).
	MinUpgradeIntervalSeconds int `toml:"min_upgrade_interval_seconds"`
	MaxUpgradesPerDay         int `toml:"max_upgrades_per_day"`

	// Registry bytecode ceiling (pkg/contracts/registry).
	MaxBytecodeSize int `toml:"max_bytecode_size"`

	// State size caps (pkg/contracts/state).
	MaxKeySize   int    `toml:"max_key_size"`
	MaxValueSize int    `toml:"max_value_size"`
	MaxStateSize uint64 `toml:"max_state_size"`
	MaxEntries   int    `toml:"max_entries"`
}

// Default returns the spec's reference constants.
func Default() RuntimeConfig {
	return RuntimeConfig{
		MaxConcurrentOperations: 100,
		MaxOperationsPerSecond:  1000,
		MaxPerAddressActive:     10,
		OperationTTLSeconds:     30,

		MinUpgradeIntervalSeconds: 3600,
		MaxUpgradesPerDay:         5,

		MaxBytecodeSize: 2 * 1024 * 1024,

		MaxKeySize:   1024,
		MaxValueSize: 1024 * 1024,
		MaxStateSize: 100 * 1024 * 1024,
		MaxEntries:   100_000,
	}
}

// Load reads path (if non-empty) as TOML over the defaults. A missing or
// empty path returns Default() unmodified.
func Load(path string) (RuntimeConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return cfg, nil
}
