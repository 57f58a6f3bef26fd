// Package cellctl implements the cellctl command-line tool: a small
// administrative client over a file- and SQLite-backed entry registry,
// layering defaults < a JSONC config file < environment < flags the way
// a layered-configuration CLI typically does.
package cellctl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// Config holds cellctl's resolved configuration.
type Config struct {
	StoreBackend    string        `json:"store_backend"` // "file" | "sqlite"
	StoreDir        string        `json:"store_dir"`
	StoreDSN        string        `json:"store_dsn"`
	SwapBackend     string        `json:"swap_backend"` // "sqlite" | "memory"
	SwapDSN         string        `json:"swap_dsn"`
	Capacity        int           `json:"capacity"`
	Shards          int           `json:"shards"`
	Policy          string        `json:"policy"`
	ConflictEnabled bool          `json:"conflict_enabled"`
	TTLSweepInterval time.Duration `json:"ttl_sweep_interval"`
}

// DefaultConfig returns cellctl's built-in defaults, the weakest layer in
// the precedence chain.
func DefaultConfig() Config {
	return Config{
		StoreBackend:     "file",
		StoreDir:         ".cellctl/store",
		StoreDSN:         ".cellctl/entrystore.db",
		SwapBackend:      "sqlite",
		SwapDSN:          ".cellctl/swap.db",
		Capacity:         10_000,
		Shards:           0,
		Policy:           "lru",
		ConflictEnabled:  false,
		TTLSweepInterval: 5 * time.Second,
	}
}

// ConfigFileName is the default, comment-tolerant config file cellctl
// looks for in the working directory.
const ConfigFileName = "cell.hujson"

// LoadConfigFile reads and JSONC-standardizes path, overlaying any field
// it sets onto base. A missing file at the default location is not an
// error; an explicitly-named missing file is.
func LoadConfigFile(base Config, path string, mustExist bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return base, nil
		}
		return base, fmt.Errorf("cellctl: read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return base, fmt.Errorf("cellctl: invalid JSONC in %s: %w", path, err)
	}

	var overlay Config
	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return base, fmt.Errorf("cellctl: invalid config %s: %w", path, err)
	}
	return mergeConfig(base, overlay), nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.StoreBackend != "" {
		base.StoreBackend = overlay.StoreBackend
	}
	if overlay.StoreDir != "" {
		base.StoreDir = overlay.StoreDir
	}
	if overlay.StoreDSN != "" {
		base.StoreDSN = overlay.StoreDSN
	}
	if overlay.SwapBackend != "" {
		base.SwapBackend = overlay.SwapBackend
	}
	if overlay.SwapDSN != "" {
		base.SwapDSN = overlay.SwapDSN
	}
	if overlay.Capacity != 0 {
		base.Capacity = overlay.Capacity
	}
	if overlay.Shards != 0 {
		base.Shards = overlay.Shards
	}
	if overlay.Policy != "" {
		base.Policy = overlay.Policy
	}
	if overlay.ConflictEnabled {
		base.ConflictEnabled = overlay.ConflictEnabled
	}
	if overlay.TTLSweepInterval != 0 {
		base.TTLSweepInterval = overlay.TTLSweepInterval
	}
	return base
}

// resolveConfigPath returns explicit if non-empty, otherwise
// ConfigFileName under workDir.
func resolveConfigPath(workDir, explicit string) (path string, mustExist bool) {
	if explicit != "" {
		return explicit, true
	}
	return filepath.Join(workDir, ConfigFileName), false
}
